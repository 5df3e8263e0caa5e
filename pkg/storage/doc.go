// Package storage defines the synchronous key-value store that persisted
// values are bound to, plus the backends shipped with persist.
//
// A Store mirrors the browser localStorage contract: every slot holds a
// single string under a string key, and each operation is atomic per key.
//
//	GetItem(ctx, key)       -> (text, ok, err)
//	SetItem(ctx, key, text) -> err
//	RemoveItem(ctx, key)    -> err
//
// # Backends
//
//   - MemoryStore: process-local map. Default store, and the test double.
//   - SQLStore: any database/sql driver (PostgreSQL, MySQL, SQLite).
//   - S3Store: one object per key in an S3 bucket.
//   - HTTPStore: client for a persistd server.
//   - browser.LocalStorage: window.localStorage under GOOS=js.
//
// Backends may implement the optional Lister, Clearer and Watcher
// interfaces. Wrap any backend with Prefixed to namespace its keys and with
// Instrument to add metrics, tracing and logging.
package storage
