package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendMemory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Missing file yields defaults
	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() without file error: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}

	configJSON := `{
  "server": {
    "port": 8080,
    "allowedOrigins": ["https://app.example.com"]
  },
  "storage": {
    "backend": "SQLite",
    "sqlite": { "path": "/tmp/p.db" }
  },
  "log": { "level": "debug" }
}
`
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err = Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want default %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendSQLite)
	}
	if cfg.Storage.SQLite.Table != DefaultTable {
		t.Errorf("Storage.SQLite.Table = %q, want %q", cfg.Storage.SQLite.Table, DefaultTable)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(tmpDir)
	if err == nil {
		t.Fatal("Load() expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "P100") {
		t.Errorf("error = %q, want code P100", err.Error())
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := New()
	err := cfg.ApplyEnv(map[string]string{
		"PERSIST_SERVER_PORT":              "9090",
		"PERSIST_SERVER_ALLOWED_ORIGINS":   "https://a.example,https://b.example",
		"PERSIST_STORAGE_BACKEND":          "s3",
		"PERSIST_STORAGE_S3_BUCKET":        "prefs",
		"PERSIST_STORAGE_S3_ACCESS_KEY_ID": "AKIA",
		"PERSIST_LOG_FORMAT":               "json",
		"UNRELATED":                        "x",
	})
	if err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins); diff != "" {
		t.Errorf("AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Storage.Backend != BackendS3 || cfg.Storage.S3.Bucket != "prefs" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Storage.S3.AccessKeyID != "AKIA" {
		t.Errorf("S3.AccessKeyID = %q, want AKIA", cfg.Storage.S3.AccessKeyID)
	}
	// Untouched fields keep their values
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	cfg := New()
	err := cfg.ApplyEnv(map[string]string{"PERSIST_SERVER_PORT": "not-a-number"})
	if err == nil || !strings.Contains(err.Error(), "P102") {
		t.Fatalf("ApplyEnv() error = %v, want P102", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"PortTooLarge", func(c *Config) { c.Server.Port = 70000 }},
		{"NegativeBody", func(c *Config) { c.Server.MaxBodyBytes = -1 }},
		{"UnknownBackend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"S3WithoutBucket", func(c *Config) { c.Storage.Backend = BackendS3 }},
		{"BadLevel", func(c *Config) { c.Log.Level = "loud" }},
		{"BadFormat", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), "P101") {
				t.Errorf("error = %q, want code P101", err.Error())
			}
		})
	}
}

func TestAddress(t *testing.T) {
	cfg := New()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080

	if got := cfg.Address(); got != "0.0.0.0:8080" {
		t.Errorf("Address() = %q, want %q", got, "0.0.0.0:8080")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"
	logger := cfg.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "theme")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record logged at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"key":"theme"`) {
		t.Errorf("unexpected JSON log output: %s", out)
	}
}
