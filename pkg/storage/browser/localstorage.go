//go:build js && wasm

// Package browser adapts window.localStorage to storage.Store for programs
// compiled with GOOS=js GOARCH=wasm.
package browser

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"syscall/js"

	"github.com/vango-dev/persist/pkg/storage"
)

// LocalStorage is a storage.Store over the page's window.localStorage.
type LocalStorage struct {
	ls js.Value

	mu       sync.Mutex
	handlers map[uint64]watchHandler
	nextID   uint64
}

type watchHandler struct {
	key string
	fn  func(storage.Change)
	cb  js.Func
}

// New returns the page's localStorage.
// Returns an error if the global is missing (e.g. inside a worker).
func New() (*LocalStorage, error) {
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return nil, fmt.Errorf("browser: localStorage is not available")
	}
	return &LocalStorage{ls: ls, handlers: make(map[uint64]watchHandler)}, nil
}

// call invokes a localStorage method, turning thrown exceptions
// (SecurityError, QuotaExceededError) into errors.
func (l *LocalStorage) call(op, key, method string, args ...any) (res js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &storage.StorageError{Op: op, Key: key, Err: fmt.Errorf("%v", r)}
		}
	}()
	return l.ls.Call(method, args...), nil
}

func (l *LocalStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	res, err := l.call("get", key, "getItem", key)
	if err != nil {
		return "", false, err
	}
	if res.IsNull() || res.IsUndefined() {
		return "", false, nil
	}
	return res.String(), true, nil
}

func (l *LocalStorage) SetItem(ctx context.Context, key, text string) error {
	_, err := l.call("set", key, "setItem", key, text)
	return err
}

func (l *LocalStorage) RemoveItem(ctx context.Context, key string) error {
	_, err := l.call("remove", key, "removeItem", key)
	return err
}

func (l *LocalStorage) Clear(ctx context.Context) error {
	_, err := l.call("clear", "", "clear")
	return err
}

func (l *LocalStorage) Keys(ctx context.Context) ([]string, error) {
	n := l.ls.Get("length").Int()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k, err := l.call("keys", "", "key", i)
		if err != nil {
			return nil, err
		}
		if !k.IsNull() {
			keys = append(keys, k.String())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch listens for the window "storage" event, which fires when another
// document of the same origin changes localStorage.
func (l *LocalStorage) Watch(key string, fn func(storage.Change)) func() {
	if fn == nil {
		return func() {}
	}

	cb := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		ev := args[0]
		k := ev.Get("key")
		if k.IsNull() {
			// localStorage.clear() in another document
			return nil
		}
		if key != "" && k.String() != key {
			return nil
		}
		nv := ev.Get("newValue")
		if nv.IsNull() {
			fn(storage.Change{Kind: storage.ChangeRemove, Key: k.String()})
		} else {
			fn(storage.Change{Kind: storage.ChangeSet, Key: k.String(), Text: nv.String()})
		}
		return nil
	})
	js.Global().Call("addEventListener", "storage", cb)

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.handlers[id] = watchHandler{key: key, fn: fn, cb: cb}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			h, ok := l.handlers[id]
			delete(l.handlers, id)
			l.mu.Unlock()
			if ok {
				js.Global().Call("removeEventListener", "storage", h.cb)
				h.cb.Release()
			}
		})
	}
}
