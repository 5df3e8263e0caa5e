package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for instrumented stores.
const defaultTracerName = "persist/storage"

// InstrumentConfig configures Instrument.
type InstrumentConfig struct {
	// Namespace is the metrics namespace (default: "persist").
	Namespace string

	// Subsystem is the metrics subsystem (default: "storage").
	Subsystem string

	// Backend labels every metric and span, e.g. "memory" or "s3".
	Backend string

	// Buckets are the histogram buckets for operation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// TracerProvider supplies the tracer.
	// Default: the global OpenTelemetry provider.
	TracerProvider trace.TracerProvider

	// Logger receives a debug record per operation.
	// Default: slog.Default()
	Logger *slog.Logger
}

// InstrumentOption configures Instrument.
type InstrumentOption func(*InstrumentConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.Namespace = namespace
	}
}

// WithBackendLabel sets the backend label.
func WithBackendLabel(backend string) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.Backend = backend
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.Registry = registry
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.TracerProvider = tp
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.Logger = logger
	}
}

func defaultInstrumentConfig() InstrumentConfig {
	return InstrumentConfig{
		Namespace: "persist",
		Subsystem: "storage",
		Backend:   "unknown",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type storeMetrics struct {
	opsTotal   *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
}

func newStoreMetrics(cfg InstrumentConfig) *storeMetrics {
	return &storeMetrics{
		opsTotal: registerOrReuse(cfg.Registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "operations_total",
			Help:      "Total number of store operations by backend, operation and status",
		}, []string{"backend", "op", "status"})),

		opDuration: registerOrReuse(cfg.Registry, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   cfg.Buckets,
		}, []string{"backend", "op"})),
	}
}

// registerOrReuse registers c, returning the already registered collector
// when an identical one exists so several stores can share a registry.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// InstrumentedStore decorates a Store with metrics, tracing and logging.
type InstrumentedStore struct {
	inner   Store
	backend string
	metrics *storeMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Instrument wraps inner so that every operation:
//   - increments persist_storage_operations_total{backend,op,status}
//   - observes persist_storage_operation_duration_seconds{backend,op}
//   - runs inside an OpenTelemetry span named "storage.<op>"
//   - logs a debug record with key, duration and error
//
// Example:
//
//	store := storage.Instrument(storage.NewMemoryStore(),
//	    storage.WithBackendLabel("memory"),
//	    storage.WithRegistry(reg),
//	)
func Instrument(inner Store, opts ...InstrumentOption) *InstrumentedStore {
	cfg := defaultInstrumentConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &InstrumentedStore{
		inner:   inner,
		backend: cfg.Backend,
		metrics: newStoreMetrics(cfg),
		tracer:  tp.Tracer(defaultTracerName),
		logger:  logger.With("backend", cfg.Backend),
	}
}

// Unwrap returns the decorated store.
func (s *InstrumentedStore) Unwrap() Store {
	return s.inner
}

// observe runs fn inside a span and records its outcome.
func (s *InstrumentedStore) observe(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	attrs := []attribute.KeyValue{
		attribute.String("storage.backend", s.backend),
		attribute.String("storage.op", op),
	}
	if key != "" {
		attrs = append(attrs, attribute.String("storage.key", key))
	}

	ctx, span := s.tracer.Start(ctx, "storage."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	s.metrics.opsTotal.WithLabelValues(s.backend, op, status).Inc()
	s.metrics.opDuration.WithLabelValues(s.backend, op).Observe(duration.Seconds())

	if err != nil {
		s.logger.Debug("storage operation failed", "op", op, "key", key, "duration", duration, "error", err)
	} else {
		s.logger.Debug("storage operation", "op", op, "key", key, "duration", duration)
	}
	return err
}

func (s *InstrumentedStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	var (
		text string
		ok   bool
	)
	err := s.observe(ctx, "get", key, func(ctx context.Context) error {
		var err error
		text, ok, err = s.inner.GetItem(ctx, key)
		return err
	})
	return text, ok, err
}

func (s *InstrumentedStore) SetItem(ctx context.Context, key, text string) error {
	return s.observe(ctx, "set", key, func(ctx context.Context) error {
		return s.inner.SetItem(ctx, key, text)
	})
}

func (s *InstrumentedStore) RemoveItem(ctx context.Context, key string) error {
	return s.observe(ctx, "remove", key, func(ctx context.Context) error {
		return s.inner.RemoveItem(ctx, key)
	})
}

// Keys forwards to the wrapped store when it is a Lister.
func (s *InstrumentedStore) Keys(ctx context.Context) ([]string, error) {
	l, ok := s.inner.(Lister)
	if !ok {
		return nil, &StorageError{Op: "keys", Err: ErrUnsupported}
	}
	var keys []string
	err := s.observe(ctx, "keys", "", func(ctx context.Context) error {
		var err error
		keys, err = l.Keys(ctx)
		return err
	})
	return keys, err
}

// Clear forwards to the wrapped store when it is a Clearer.
func (s *InstrumentedStore) Clear(ctx context.Context) error {
	c, ok := s.inner.(Clearer)
	if !ok {
		return &StorageError{Op: "clear", Err: ErrUnsupported}
	}
	return s.observe(ctx, "clear", "", c.Clear)
}

// Watch forwards to the wrapped store when it is a Watcher.
func (s *InstrumentedStore) Watch(key string, fn func(Change)) func() {
	w, ok := s.inner.(Watcher)
	if !ok {
		return func() {}
	}
	return w.Watch(key, fn)
}

// Close closes the wrapped store when it is an io.Closer.
func (s *InstrumentedStore) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
