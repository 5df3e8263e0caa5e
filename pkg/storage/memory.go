package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory store.
// It's the default store and the stand-in for localStorage in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]string
	closed bool

	watchMu  sync.RWMutex
	watchers map[uint64]watcher
	nextID   uint64
}

type watcher struct {
	key string
	fn  func(Change)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]string),
		watchers: make(map[uint64]watcher),
	}
}

// GetItem returns the text stored under key.
func (m *MemoryStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, &StorageError{Op: "get", Key: key, Err: ErrClosed}
	}

	text, ok := m.items[key]
	return text, ok, nil
}

// SetItem stores text under key.
func (m *MemoryStore) SetItem(ctx context.Context, key, text string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &StorageError{Op: "set", Key: key, Err: ErrClosed}
	}
	m.items[key] = text
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeSet, Key: key, Text: text})
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error and
// publishes no change.
func (m *MemoryStore) RemoveItem(ctx context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &StorageError{Op: "remove", Key: key, Err: ErrClosed}
	}
	_, existed := m.items[key]
	delete(m.items, key)
	m.mu.Unlock()

	if existed {
		m.notify(Change{Kind: ChangeRemove, Key: key})
	}
	return nil
}

// Keys returns every key in lexical order.
func (m *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, &StorageError{Op: "keys", Err: ErrClosed}
	}

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every key, publishing a ChangeRemove for each.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &StorageError{Op: "clear", Err: ErrClosed}
	}
	removed := make([]string, 0, len(m.items))
	for k := range m.items {
		removed = append(removed, k)
	}
	m.items = make(map[string]string)
	m.mu.Unlock()

	sort.Strings(removed)
	for _, k := range removed {
		m.notify(Change{Kind: ChangeRemove, Key: k})
	}
	return nil
}

// Len returns the number of stored keys.
// This is for monitoring/testing purposes.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Watch registers fn for changes to key, or to all keys when key is empty.
func (m *MemoryStore) Watch(key string, fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}

	m.watchMu.Lock()
	m.nextID++
	id := m.nextID
	m.watchers[id] = watcher{key: key, fn: fn}
	m.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.watchMu.Lock()
			delete(m.watchers, id)
			m.watchMu.Unlock()
		})
	}
}

// Close drops all items and watchers. Subsequent operations return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.items = nil

	m.watchMu.Lock()
	m.watchers = make(map[uint64]watcher)
	m.watchMu.Unlock()
	return nil
}

// notify delivers c to matching watchers without holding any store lock, so
// a watcher may call back into the store.
func (m *MemoryStore) notify(c Change) {
	m.watchMu.RLock()
	ids := make([]uint64, 0, len(m.watchers))
	for id, w := range m.watchers {
		if w.key == "" || w.key == c.Key {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.watchers[id].fn)
	}
	m.watchMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
