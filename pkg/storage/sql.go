package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// SQLStore is a SQL-backed store.
// It works with any database/sql compatible driver (PostgreSQL, MySQL, SQLite).
// Requires a table with schema (see Migrate):
//
//	CREATE TABLE persist_items (
//	    item_key VARCHAR(255) PRIMARY KEY,
//	    item_value TEXT NOT NULL,
//	    updated_at TIMESTAMP NOT NULL
//	);
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	closed    atomic.Bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// ParseDialect maps a config name to a dialect.
func ParseDialect(name string) (SQLDialect, error) {
	switch name {
	case "postgres", "postgresql", "pgx":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return 0, fmt.Errorf("storage: unknown sql dialect %q", name)
}

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*sqlStoreConfig)

type sqlStoreConfig struct {
	tableName string
	dialect   SQLDialect
}

// WithSQLTableName sets the table name.
// Default: "persist_items".
func WithSQLTableName(name string) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.dialect = dialect
	}
}

// NewSQLStore creates a new SQL-backed store. The caller owns db.
func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	cfg := &sqlStoreConfig{
		tableName: "persist_items",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQLStore{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
	}
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLStore) placeholder(n int) string {
	switch s.dialect {
	case DialectPostgreSQL:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

// Migrate creates the items table if it doesn't exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				item_key VARCHAR(255) PRIMARY KEY,
				item_value TEXT NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			)
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				item_key VARCHAR(255) PRIMARY KEY,
				item_value TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("storage: migrate %s: %w", s.tableName, err)
	}
	return nil
}

// GetItem returns the text stored under key.
func (s *SQLStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, &StorageError{Op: "get", Key: key, Err: ErrClosed}
	}

	query := fmt.Sprintf(`SELECT item_value FROM %s WHERE item_key = %s`, s.tableName, s.placeholder(1))

	var text string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, &StorageError{Op: "get", Key: key, Err: err}
	}
	return text, true, nil
}

// SetItem upserts text under key.
func (s *SQLStore) SetItem(ctx context.Context, key, text string) error {
	if s.closed.Load() {
		return &StorageError{Op: "set", Key: key, Err: ErrClosed}
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (item_key, item_value, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (item_key) DO UPDATE SET
				item_value = EXCLUDED.item_value,
				updated_at = EXCLUDED.updated_at
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (item_key, item_value, updated_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				item_value = VALUES(item_value),
				updated_at = VALUES(updated_at)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (item_key, item_value, updated_at)
			VALUES (?, ?, ?)
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query, key, text, time.Now().UTC()); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// RemoveItem deletes key.
func (s *SQLStore) RemoveItem(ctx context.Context, key string) error {
	if s.closed.Load() {
		return &StorageError{Op: "remove", Key: key, Err: ErrClosed}
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE item_key = %s`, s.tableName, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// Keys returns every key in lexical order.
func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, &StorageError{Op: "keys", Err: ErrClosed}
	}

	query := fmt.Sprintf(`SELECT item_key FROM %s ORDER BY item_key`, s.tableName)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &StorageError{Op: "keys", Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &StorageError{Op: "keys", Err: err}
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "keys", Err: err}
	}
	return keys, nil
}

// Clear deletes every row.
func (s *SQLStore) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return &StorageError{Op: "clear", Err: ErrClosed}
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.tableName)); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	return nil
}

// Close marks the store closed. The database handle is left open.
func (s *SQLStore) Close() error {
	s.closed.Store(true)
	return nil
}
