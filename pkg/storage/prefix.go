package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupported is returned when the wrapped store lacks an optional
// capability such as listing keys.
var ErrUnsupported = errors.New("storage: operation not supported")

// PrefixedStore namespaces every key of an underlying store.
type PrefixedStore struct {
	inner  Store
	prefix string
}

// Prefixed returns a store that reads and writes inner under prefix+key.
// Useful for sharing one backend between applications or users.
func Prefixed(inner Store, prefix string) *PrefixedStore {
	return &PrefixedStore{inner: inner, prefix: prefix}
}

// Unwrap returns the underlying store.
func (p *PrefixedStore) Unwrap() Store {
	return p.inner
}

func (p *PrefixedStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	return p.inner.GetItem(ctx, p.prefix+key)
}

func (p *PrefixedStore) SetItem(ctx context.Context, key, text string) error {
	return p.inner.SetItem(ctx, p.prefix+key, text)
}

func (p *PrefixedStore) RemoveItem(ctx context.Context, key string) error {
	return p.inner.RemoveItem(ctx, p.prefix+key)
}

// Keys returns the keys under the prefix, with the prefix stripped.
func (p *PrefixedStore) Keys(ctx context.Context) ([]string, error) {
	l, ok := p.inner.(Lister)
	if !ok {
		return nil, &StorageError{Op: "keys", Err: ErrUnsupported}
	}
	all, err := l.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if rest, found := strings.CutPrefix(k, p.prefix); found {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}

// Clear removes only the keys under the prefix.
func (p *PrefixedStore) Clear(ctx context.Context) error {
	keys, err := p.Keys(ctx)
	if err != nil {
		return wrapErr("clear", "", err)
	}
	for _, k := range keys {
		if err := p.RemoveItem(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Watch forwards changes under the prefix. It is a no-op when the
// underlying store is not a Watcher.
func (p *PrefixedStore) Watch(key string, fn func(Change)) func() {
	w, ok := p.inner.(Watcher)
	if !ok || fn == nil {
		return func() {}
	}

	if key != "" {
		return w.Watch(p.prefix+key, func(c Change) {
			c.Key = key
			fn(c)
		})
	}
	return w.Watch("", func(c Change) {
		rest, found := strings.CutPrefix(c.Key, p.prefix)
		if !found {
			return
		}
		c.Key = rest
		fn(c)
	})
}
