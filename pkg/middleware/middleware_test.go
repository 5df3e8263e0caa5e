package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRouter(mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	for _, m := range mw {
		r.Use(m)
	}
	r.Get("/v1/items/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Put("/v1/items/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newRouter(Prometheus(WithRegistry(reg)))

	serve(r, http.MethodGet, "/v1/items/theme")
	serve(r, http.MethodGet, "/v1/items/lang")
	serve(r, http.MethodPut, "/v1/items/theme")
	serve(r, http.MethodGet, "/healthz")
	serve(r, http.MethodGet, "/nope")

	m := initMetrics(MetricsConfig{Namespace: "persist", Subsystem: "http", Buckets: prometheus.DefBuckets, Registry: reg})

	tests := []struct {
		method, route, code string
		want                float64
	}{
		{"GET", "/v1/items/{key}", "404", 2},
		{"PUT", "/v1/items/{key}", "204", 1},
		{"GET", "/healthz", "200", 1},
		{"GET", "unmatched", "404", 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(tt.method, tt.route, tt.code))
		if got != tt.want {
			t.Errorf("requests_total{%s,%s,%s} = %v, want %v", tt.method, tt.route, tt.code, got, tt.want)
		}
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("requests_in_flight = %v, want 0", got)
	}
}

func TestPrometheus_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("second Prometheus() on same registry panicked: %v", r)
		}
	}()
	_ = Prometheus(WithRegistry(reg))
	_ = Prometheus(WithRegistry(reg))
}

func TestOpenTelemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := newRouter(OpenTelemetry(
		WithTracerProvider(tp),
		WithRequestFilter(func(r *http.Request) bool { return r.URL.Path != "/healthz" }),
	))

	serve(r, http.MethodGet, "/v1/items/theme")
	serve(r, http.MethodGet, "/boom")
	serve(r, http.MethodGet, "/healthz")

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}

	if spans[0].Name() != "GET /v1/items/{key}" {
		t.Errorf("span[0] name = %q", spans[0].Name())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["http.response.status_code"].AsInt64() != 404 {
		t.Errorf("status attribute = %v, want 404", attrs["http.response.status_code"].AsInt64())
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("4xx should not mark the span as error")
	}

	if spans[1].Name() != "GET /boom" {
		t.Errorf("span[1] name = %q", spans[1].Name())
	}
	if spans[1].Status().Code != codes.Error {
		t.Error("5xx should mark the span as error")
	}
}
