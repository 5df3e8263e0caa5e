package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configDir string
	backend   string
	prefix    string
	logLevel  string
	remote    string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configDir, "config", "c", ".", "Directory containing "+config.ConfigFileName)
	pf.StringVarP(&f.backend, "backend", "b", "", "Storage backend: memory, sqlite, s3 (default from config)")
	pf.StringVar(&f.prefix, "prefix", "", "Namespace prepended to every key")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVarP(&f.remote, "remote", "r", "", "Use a running persistd at this URL instead of opening the backend")
}

// loadConfig reads persist.json, then the environment, then flags.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}

	if f.backend != "" {
		cfg.Storage.Backend = strings.ToLower(f.backend)
	}
	if f.prefix != "" {
		cfg.Storage.Prefix = f.prefix
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
