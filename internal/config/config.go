package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/vango-dev/persist/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "persist.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PERSIST_"

	// DefaultPort is the default server port.
	DefaultPort = 7400

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultMaxBodyBytes caps PUT bodies at 1 MiB.
	DefaultMaxBodyBytes = 1 << 20

	// DefaultTable is the default SQL table.
	DefaultTable = "persist_items"
)

// Backend names accepted in storage.backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config represents the complete persist.json configuration.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server" envPrefix:"SERVER_"`

	// Storage selects and configures the backend.
	Storage StorageConfig `json:"storage" envPrefix:"STORAGE_"`

	// Log configures the slog handler.
	Log LogConfig `json:"log" envPrefix:"LOG_"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `json:"host,omitempty" env:"HOST"`
	Port int    `json:"port,omitempty" env:"PORT"`

	// MaxBodyBytes limits the size of stored values.
	MaxBodyBytes int64 `json:"maxBodyBytes,omitempty" env:"MAX_BODY_BYTES"`

	// AllowedOrigins lists origins allowed to open watch sockets.
	// Empty allows same-origin requests only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite", "s3".
	Backend string `json:"backend,omitempty" env:"BACKEND"`

	// Prefix namespaces every key.
	Prefix string `json:"prefix,omitempty" env:"PREFIX"`

	SQLite SQLiteConfig `json:"sqlite,omitempty" envPrefix:"SQLITE_"`
	S3     S3Config     `json:"s3,omitempty" envPrefix:"S3_"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" keeps it in memory.
	Path  string `json:"path,omitempty" env:"PATH"`
	Table string `json:"table,omitempty" env:"TABLE"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Bucket string `json:"bucket,omitempty" env:"BUCKET"`
	Prefix string `json:"prefix,omitempty" env:"PREFIX"`
	Region string `json:"region,omitempty" env:"REGION"`

	// Endpoint overrides the AWS endpoint, e.g. for MinIO.
	Endpoint     string `json:"endpoint,omitempty" env:"ENDPOINT"`
	UsePathStyle bool   `json:"usePathStyle,omitempty" env:"USE_PATH_STYLE"`

	// Credentials are read from the environment only.
	AccessKeyID     string `json:"-" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" env:"SECRET_ACCESS_KEY"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `json:"level,omitempty" env:"LEVEL"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty" env:"FORMAT"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			SQLite: SQLiteConfig{
				Path:  "persist.db",
				Table: DefaultTable,
			},
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// A missing persist.json is not an error; defaults are returned.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("P100").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("P100").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// ApplyEnv overrides fields from PERSIST_* variables. A nil environ reads
// the process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return errors.New("P102").Wrap(err)
	}
	c.applyDefaults()
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Storage.SQLite.Table == "" {
		c.Storage.SQLite.Table = DefaultTable
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "persist.db"
	}
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = "us-east-1"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("P101").
			WithDetail("server.port must be between 0 and 65535")
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.New("P101").
			WithDetail("server.maxBodyBytes must not be negative")
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite:
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("P101").
				WithDetail("storage.s3.bucket is required for the s3 backend").
				WithSuggestion("Set storage.s3.bucket or PERSIST_STORAGE_S3_BUCKET")
		}
	default:
		return errors.New("P101").
			WithDetail("unknown storage backend " + strconv.Quote(c.Storage.Backend)).
			WithSuggestion("Use one of: memory, sqlite, s3")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return errors.New("P101").WithDetail(err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("P101").
			WithDetail("log.format must be \"text\" or \"json\"")
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Logger builds a slog logger writing to w according to c.Log.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}
