// Package persist binds a piece of state to a slot in a key-value store.
//
// A Value[T] is seeded from the store when its key already exists, and from
// an Initial otherwise. From then on every change is mirrored to the store
// before the call returns: Set writes the JSON encoding, Unset removes the key.
//
// Example:
//
//	store := storage.NewMemoryStore()
//
//	theme, err := persist.Bind(ctx, store, "theme", persist.Literal("light"))
//	if err != nil {
//	    return err
//	}
//
//	cancel := theme.Subscribe(func(v string, ok bool) {
//	    log.Println("theme is now", v)
//	})
//	defer cancel()
//
//	theme.Set(ctx, "dark") // store["theme"] == `"dark"`
//	theme.Unset(ctx)       // "theme" removed from store
//
// # Initial values
//
// The initial value is a tagged union: Literal(v), Thunk(fn) or Absent().
// A thunk runs at most once per Bind, and never when the store already holds
// the key.
//
// # Errors
//
// Store failures surface as *storage.StorageError. Set and Unset still update
// the in-memory value and notify subscribers when only the write fails, so
// state stays usable while persistence is best-effort. Stored text that is
// not valid JSON fails Bind with *DecodeError unless OnDecodeError is set to
// DecodeFallback.
package persist
