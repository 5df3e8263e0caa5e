package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/config"
	"github.com/vango-dev/persist/internal/errors"
	"github.com/vango-dev/persist/pkg/server"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the store over HTTP",
		Long: `Serve the configured store over HTTP.

Endpoints:
  GET/PUT/DELETE /v1/items/{key}
  GET            /v1/items
  GET            /v1/watch   (WebSocket)
  GET            /metrics
  GET            /healthz

Examples:
  persistd serve
  persistd serve --port=8080 --backend=sqlite
  PERSIST_STORAGE_BACKEND=s3 PERSIST_STORAGE_S3_BUCKET=prefs persistd serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Logger(os.Stderr)

	store, closeStore, err := openStore(ctx, cfg, storeOptions{
		logger:     logger,
		registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}()

	srv := server.New(store, server.Config{
		Address:        cfg.Address(),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	fmt.Fprintf(os.Stderr, "persistd %s listening on http://%s (backend %s)\n", version, cfg.Address(), cfg.Storage.Backend)
	if err := srv.Run(ctx); err != nil {
		return errors.New("P300").Wrap(err)
	}
	return nil
}
