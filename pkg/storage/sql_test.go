package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"
)

func newSQLiteStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLStore(db, WithSQLDialect(DialectSQLite))
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return store, db
}

func TestSQLStore_RoundTrip(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetItem(ctx, "k"); err != nil || ok {
		t.Fatalf("GetItem(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := store.SetItem(ctx, "k", `"one"`); err != nil {
		t.Fatalf("SetItem() error: %v", err)
	}
	if err := store.SetItem(ctx, "k", `"two"`); err != nil {
		t.Fatalf("SetItem() overwrite error: %v", err)
	}

	text, ok, err := store.GetItem(ctx, "k")
	if err != nil || !ok || text != `"two"` {
		t.Fatalf("GetItem() = (%q, %v, %v), want (%q, true, nil)", text, ok, err, `"two"`)
	}

	if err := store.RemoveItem(ctx, "k"); err != nil {
		t.Fatalf("RemoveItem() error: %v", err)
	}
	if _, ok, _ := store.GetItem(ctx, "k"); ok {
		t.Fatal("GetItem() found removed key")
	}
	if err := store.RemoveItem(ctx, "k"); err != nil {
		t.Fatalf("RemoveItem(missing) error: %v", err)
	}
}

func TestSQLStore_KeysAndClear(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	for _, k := range []string{"z", "m", "a"} {
		if err := store.SetItem(ctx, k, "null"); err != nil {
			t.Fatalf("SetItem(%q) error: %v", k, err)
		}
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "m", "z"}, keys); diff != "" {
		t.Fatalf("Keys() mismatch (-want +got):\n%s", diff)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	keys, _ = store.Keys(ctx)
	if len(keys) != 0 {
		t.Fatalf("Keys() after Clear = %v, want empty", keys)
	}
}

func TestSQLStore_CustomTable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	store := NewSQLStore(db, WithSQLDialect(DialectSQLite), WithSQLTableName("prefs"))
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	// Migrate is idempotent
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() second call error: %v", err)
	}
	if err := store.SetItem(ctx, "k", "1"); err != nil {
		t.Fatalf("SetItem() error: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM prefs`).Scan(&n); err != nil {
		t.Fatalf("count query error: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows in prefs = %d, want 1", n)
	}
}

func TestSQLStore_Errors(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()

	_ = db.Close()
	_, _, err := store.GetItem(ctx, "k")
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "get" {
		t.Fatalf("GetItem() on closed db error = %v, want *StorageError op=get", err)
	}

	_ = store.Close()
	if err := store.SetItem(ctx, "k", "1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("SetItem() after Close error = %v, want ErrClosed", err)
	}
}

func TestSQLStore_Placeholder(t *testing.T) {
	tests := []struct {
		dialect SQLDialect
		want    string
	}{
		{DialectPostgreSQL, "$2"},
		{DialectMySQL, "?"},
		{DialectSQLite, "?"},
	}
	for _, tt := range tests {
		s := NewSQLStore(nil, WithSQLDialect(tt.dialect))
		if got := s.placeholder(2); got != tt.want {
			t.Errorf("placeholder(2) for dialect %d = %q, want %q", tt.dialect, got, tt.want)
		}
	}
}

func TestParseDialect(t *testing.T) {
	tests := map[string]SQLDialect{
		"postgres": DialectPostgreSQL,
		"mysql":    DialectMySQL,
		"sqlite":   DialectSQLite,
		"sqlite3":  DialectSQLite,
	}
	for name, want := range tests {
		got, err := ParseDialect(name)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = (%v, %v), want (%v, nil)", name, got, err, want)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Error("ParseDialect(oracle) expected error")
	}
}
