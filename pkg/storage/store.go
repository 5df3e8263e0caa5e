package storage

import (
	"context"
	"errors"
)

// Store is a synchronous key-value store holding text under string keys.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetItem returns the text stored under key.
	// Returns ("", false, nil) if the key doesn't exist.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores text under key, replacing any previous value.
	SetItem(ctx context.Context, key, text string) error

	// RemoveItem deletes key.
	// Should not return an error if the key doesn't exist.
	RemoveItem(ctx context.Context, key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Clearer is implemented by stores that can drop every key at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

// ChangeKind describes what happened to a key.
type ChangeKind string

const (
	ChangeSet    ChangeKind = "set"
	ChangeRemove ChangeKind = "remove"
)

// Change is delivered to watchers after a key is written or removed.
type Change struct {
	Kind ChangeKind `json:"type"`
	Key  string     `json:"key"`

	// Text is the new stored text. Empty for ChangeRemove.
	Text string `json:"value,omitempty"`
}

// Watcher is implemented by stores that publish changes, the equivalent of
// the browser "storage" event.
type Watcher interface {
	// Watch calls fn after every change to key. An empty key watches all keys.
	// The returned function stops delivery; it is safe to call more than once.
	Watch(key string, fn func(Change)) (cancel func())
}

// Publishes reports whether s delivers changes to watchers. Wrappers such as
// PrefixedStore always implement Watcher, so it looks through Unwrap.
func Publishes(s Store) bool {
	for s != nil {
		if u, ok := s.(interface{ Unwrap() Store }); ok {
			s = u.Unwrap()
			continue
		}
		_, ok := s.(Watcher)
		return ok
	}
	return false
}

// ErrClosed is returned when operations are attempted on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// StorageError wraps a backend failure for a single operation.
type StorageError struct {
	// Op is the failing operation: "get", "set", "remove", "keys" or "clear".
	Op string

	// Key is the key involved, if any.
	Key string

	// Err is the underlying backend error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key == "" {
		return "storage: " + e.Op + ": " + e.Err.Error()
	}
	return "storage: " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// wrapErr returns nil for a nil err, an existing *StorageError unchanged,
// and otherwise wraps err.
func wrapErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Key: key, Err: err}
}
