// Package server exposes a storage.Store over HTTP.
//
// Routes:
//
//	GET    /v1/items        list keys (501 when the store cannot list)
//	GET    /v1/items/{key}  stored JSON text, 404 when absent
//	PUT    /v1/items/{key}  store the request body, which must be valid JSON
//	DELETE /v1/items/{key}  remove the key
//	GET    /v1/watch        WebSocket stream of changes
//	GET    /metrics         Prometheus metrics
//	GET    /healthz         liveness
//
// storage.HTTPStore is the matching client, so a persist.Value can be bound
// to a key held by a remote persistd:
//
//	store := storage.NewHTTPStore("http://localhost:7400")
//	theme, err := persist.Bind(ctx, store, "theme", persist.Literal("light"))
//
// Watch clients receive a hello event carrying their id, then one event per
// change:
//
//	{"type":"hello","id":"5f0c..."}
//	{"type":"set","key":"theme","value":"dark"}
//	{"type":"remove","key":"theme"}
//
// A "key" query parameter restricts the stream to one key. Clients that
// cannot keep up are disconnected.
package server
