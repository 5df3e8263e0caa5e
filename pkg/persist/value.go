package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vango-dev/persist/pkg/storage"
)

// Value is state bound to one key of a store.
// It is safe for concurrent use; writes are serialized and the last one wins.
type Value[T any] struct {
	key     string
	store   storage.Store
	initial Initial[T]
	codec   Codec
	logger  *slog.Logger

	// opMu serializes operations that touch the store.
	opMu sync.Mutex

	// mu protects value, present and text.
	mu      sync.RWMutex
	value   T
	present bool

	// text is the encoding of value, empty when absent.
	text string

	subMu   sync.RWMutex
	subs    []subscriber[T]
	nextSub uint64

	unwatch func()
}

type subscriber[T any] struct {
	id uint64
	fn func(T, bool)
}

// Bind binds key in store to a new Value.
//
// If the store holds key, the stored text is decoded and initial is not
// evaluated. Otherwise initial is forced. Either way the seed is written back
// so the store matches the value before Bind returns.
//
// A read failure returns (nil, err). When only the write-back fails, the
// usable Value is returned together with a *StorageError.
func Bind[T any](ctx context.Context, store storage.Store, key string, initial Initial[T], opts ...Option) (*Value[T], error) {
	o := applyOptions(opts)

	v := &Value[T]{
		key:     key,
		store:   store,
		initial: initial,
		codec:   o.codec,
		logger:  o.logger.With("key", key),
	}

	seed, present, err := v.readSeed(ctx, o.decodePolicy)
	if err != nil {
		return nil, err
	}

	text, err := v.encode(seed, present)
	if err != nil {
		return nil, err
	}
	v.value, v.present, v.text = seed, present, text

	writeErr := v.persist(ctx, text, present)

	if o.sync {
		if w, ok := store.(storage.Watcher); ok && storage.Publishes(store) {
			v.unwatch = w.Watch(key, v.applyChange)
		} else {
			v.logger.Debug("store does not publish changes, sync disabled")
		}
	}

	if writeErr != nil {
		return v, writeErr
	}
	return v, nil
}

// readSeed returns the stored value if the key exists, else the initial.
func (v *Value[T]) readSeed(ctx context.Context, policy DecodePolicy) (T, bool, error) {
	text, ok, err := v.store.GetItem(ctx, v.key)
	if err != nil {
		var zero T
		return zero, false, asStorageError("get", v.key, err)
	}

	if ok {
		seed, err := v.decode(text)
		if err == nil {
			return seed, true, nil
		}
		if policy != DecodeFallback {
			var zero T
			return zero, false, err
		}
		v.logger.Warn("discarding undecodable stored value", "error", err)
	}

	seed, present := v.initial.force()
	return seed, present, nil
}

// Key returns the bound key.
func (v *Value[T]) Key() string {
	return v.key
}

// Get returns the current value and whether it is present.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.present
}

// Set replaces the value with next and writes its encoding to the store.
//
// If the write fails the in-memory value has still changed and subscribers
// are notified; the *StorageError is returned. If next cannot be encoded
// nothing changes and an *EncodeError is returned.
func (v *Value[T]) Set(ctx context.Context, next T) error {
	text, err := v.encode(next, true)
	if err != nil {
		return err
	}
	return v.update(ctx, next, true, text)
}

// Unset makes the value absent and removes the key from the store.
func (v *Value[T]) Unset(ctx context.Context) error {
	var zero T
	return v.update(ctx, zero, false, "")
}

// Reset re-forces the initial value and stores it like Set or Unset.
// A Thunk initial is evaluated again.
func (v *Value[T]) Reset(ctx context.Context) error {
	next, present := v.initial.force()
	text, err := v.encode(next, present)
	if err != nil {
		return err
	}
	return v.update(ctx, next, present, text)
}

func (v *Value[T]) update(ctx context.Context, next T, present bool, text string) error {
	v.opMu.Lock()

	v.mu.Lock()
	changed := present != v.present || text != v.text
	v.value, v.present, v.text = next, present, text
	v.mu.Unlock()

	err := v.persist(ctx, text, present)
	v.opMu.Unlock()

	if err != nil {
		v.logger.Debug("persist failed", "error", err)
	}
	if changed {
		v.notify(next, present)
	}
	return err
}

// Reload re-reads the key and adopts whatever the store holds, including
// absence, without writing back. Subscribers are notified on change.
func (v *Value[T]) Reload(ctx context.Context) error {
	v.opMu.Lock()

	text, ok, err := v.store.GetItem(ctx, v.key)
	if err != nil {
		v.opMu.Unlock()
		return asStorageError("get", v.key, err)
	}

	var next T
	if ok {
		next, err = v.decode(text)
		if err != nil {
			v.opMu.Unlock()
			return err
		}
	} else {
		text = ""
	}

	changed := v.adopt(next, ok, text)
	v.opMu.Unlock()

	if changed {
		v.notify(next, ok)
	}
	return nil
}

// applyChange adopts a change published by the store. It does not take opMu
// because the store may deliver changes while one of our own writes is in
// flight; those carry the text we already hold and are ignored.
func (v *Value[T]) applyChange(c storage.Change) {
	var (
		next    T
		present bool
		text    string
	)

	switch c.Kind {
	case storage.ChangeSet:
		v.mu.RLock()
		same := v.present && v.text == c.Text
		v.mu.RUnlock()
		if same {
			return
		}

		decoded, err := v.decode(c.Text)
		if err != nil {
			v.logger.Warn("ignoring undecodable change", "error", err)
			return
		}
		next, present, text = decoded, true, c.Text
	case storage.ChangeRemove:
	default:
		return
	}

	if v.adopt(next, present, text) {
		v.notify(next, present)
	}
}

func (v *Value[T]) adopt(next T, present bool, text string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if present == v.present && text == v.text {
		return false
	}
	v.value, v.present, v.text = next, present, text
	return true
}

// Subscribe calls fn after every change of the value, once the store has
// been updated. Sets that leave the encoding unchanged do not notify.
// The returned function unsubscribes.
func (v *Value[T]) Subscribe(fn func(value T, ok bool)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	v.subMu.Lock()
	v.nextSub++
	id := v.nextSub
	v.subs = append(v.subs, subscriber[T]{id: id, fn: fn})
	v.subMu.Unlock()

	return func() {
		v.subMu.Lock()
		defer v.subMu.Unlock()
		for i, s := range v.subs {
			if s.id == id {
				v.subs = append(v.subs[:i], v.subs[i+1:]...)
				return
			}
		}
	}
}

// notify calls subscribers in registration order without holding any lock,
// so a subscriber may call back into the Value.
func (v *Value[T]) notify(value T, present bool) {
	v.subMu.RLock()
	subs := make([]subscriber[T], len(v.subs))
	copy(subs, v.subs)
	v.subMu.RUnlock()

	for _, s := range subs {
		s.fn(value, present)
	}
}

// Close stops store synchronization started by SyncWithStore.
// The value and the stored key are left as they are.
func (v *Value[T]) Close() {
	v.opMu.Lock()
	unwatch := v.unwatch
	v.unwatch = nil
	v.opMu.Unlock()

	if unwatch != nil {
		unwatch()
	}
}

func (v *Value[T]) persist(ctx context.Context, text string, present bool) error {
	if !present {
		return asStorageError("remove", v.key, v.store.RemoveItem(ctx, v.key))
	}
	return asStorageError("set", v.key, v.store.SetItem(ctx, v.key, text))
}

func (v *Value[T]) encode(value T, present bool) (string, error) {
	if !present {
		return "", nil
	}
	data, err := v.codec.Marshal(value)
	if err != nil {
		return "", &EncodeError{Key: v.key, Err: err}
	}
	return string(data), nil
}

func (v *Value[T]) decode(text string) (T, error) {
	var out T
	if err := v.codec.Unmarshal([]byte(text), &out); err != nil {
		var zero T
		return zero, &DecodeError{Key: v.key, Text: text, Err: err}
	}
	return out, nil
}

// asStorageError wraps err in a *StorageError unless it already is one.
func asStorageError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Key: key, Err: err}
}
