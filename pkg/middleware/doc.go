// Package middleware provides net/http middleware for the persistd API.
//
// This package includes:
//   - Prometheus request metrics
//   - OpenTelemetry request tracing
//
// Both label requests by their chi route pattern (e.g. "/v1/items/{key}")
// rather than the raw path, so keys never become metric labels.
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry())
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
package middleware
