package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"github.com/vango-dev/persist/internal/config"
	"github.com/vango-dev/persist/internal/errors"
	"github.com/vango-dev/persist/pkg/storage"
)

// storeOptions controls how openStore decorates the backend.
type storeOptions struct {
	logger         *slog.Logger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
}

// openStore opens the configured backend, namespaced by the configured
// prefix and instrumented. The returned close function releases it.
func openStore(ctx context.Context, cfg *config.Config, opts storeOptions) (storage.Store, func() error, error) {
	var (
		store   storage.Store
		closeFn = func() error { return nil }
	)

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		mem := storage.NewMemoryStore()
		store, closeFn = mem, mem.Close

	case config.BackendSQLite:
		db, err := sql.Open("sqlite", cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, errors.New("P200").Wrap(err)
		}
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		// and keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)

		sqlStore := storage.NewSQLStore(db,
			storage.WithSQLDialect(storage.DialectSQLite),
			storage.WithSQLTableName(cfg.Storage.SQLite.Table),
		)
		if err := sqlStore.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, errors.New("P200").
				WithDetail("Could not create table in " + cfg.Storage.SQLite.Path).
				Wrap(err)
		}
		store = sqlStore
		closeFn = func() error {
			_ = sqlStore.Close()
			return db.Close()
		}

	case config.BackendS3:
		store = storage.NewS3Store(newS3Client(cfg.Storage.S3), cfg.Storage.S3.Bucket, cfg.Storage.S3.Prefix)

	default:
		return nil, nil, errors.New("P101").WithDetail("unknown storage backend " + cfg.Storage.Backend)
	}

	if cfg.Storage.Prefix != "" {
		store = storage.Prefixed(store, cfg.Storage.Prefix)
	}

	instrumentOpts := []storage.InstrumentOption{
		storage.WithBackendLabel(cfg.Storage.Backend),
	}
	if opts.logger != nil {
		instrumentOpts = append(instrumentOpts, storage.WithLogger(opts.logger))
	}
	if opts.registerer != nil {
		instrumentOpts = append(instrumentOpts, storage.WithRegistry(opts.registerer))
	}
	if opts.tracerProvider != nil {
		instrumentOpts = append(instrumentOpts, storage.WithTracerProvider(opts.tracerProvider))
	}
	return storage.Instrument(store, instrumentOpts...), closeFn, nil
}

// newS3Client builds an S3 client from config. Static credentials come from
// the config or the standard AWS_* variables; without them requests are
// sent unsigned, which suits public or local test buckets.
func newS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	keyID, secret := cfg.AccessKeyID, cfg.SecretAccessKey
	if keyID == "" {
		keyID, secret = os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if keyID != "" {
		session := os.Getenv("AWS_SESSION_TOKEN")
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     keyID,
				SecretAccessKey: secret,
				SessionToken:    session,
				Source:          "persistd",
			}, nil
		})
	}
	return s3.New(opts)
}
