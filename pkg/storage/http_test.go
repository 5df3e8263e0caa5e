package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPStore_ItemURL(t *testing.T) {
	store := NewHTTPStore("http://localhost:7400/")

	tests := []struct {
		key  string
		want string
	}{
		{"theme", "http://localhost:7400/v1/items/theme"},
		{"a/b", "http://localhost:7400/v1/items/a%2Fb"},
		{"a b", "http://localhost:7400/v1/items/a%20b"},
	}
	for _, tt := range tests {
		if got := store.itemURL(tt.key); got != tt.want {
			t.Errorf("itemURL(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestHTTPStore_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer ts.Close()

	store := NewHTTPStore(ts.URL)
	ctx := context.Background()

	_, _, err := store.GetItem(ctx, "k")
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "get" || se.Key != "k" {
		t.Fatalf("GetItem() error = %v, want *StorageError op=get", err)
	}
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusInternalServerError || status.Body != "backend down" {
		t.Fatalf("GetItem() error = %v, want *StatusError 500 \"backend down\"", err)
	}

	if err := store.SetItem(ctx, "k", "1"); !errors.As(err, &status) {
		t.Fatalf("SetItem() error = %v, want *StatusError", err)
	}
	if err := store.RemoveItem(ctx, "k"); !errors.As(err, &status) {
		t.Fatalf("RemoveItem() error = %v, want *StatusError", err)
	}
	if _, err := store.Keys(ctx); !errors.As(err, &status) {
		t.Fatalf("Keys() error = %v, want *StatusError", err)
	}
}

func TestHTTPStore_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	store := NewHTTPStore(url, WithHTTPClient(&http.Client{Timeout: time.Second}))
	err := store.SetItem(context.Background(), "k", "1")
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "set" {
		t.Fatalf("SetItem() error = %v, want *StorageError op=set", err)
	}
}

func TestHTTPStore_SendsJSON(t *testing.T) {
	var gotType, gotMethod, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType, gotMethod, gotPath = r.Header.Get("Content-Type"), r.Method, r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if err := NewHTTPStore(ts.URL).SetItem(context.Background(), "x/y", `{"a":1}`); err != nil {
		t.Fatalf("SetItem() error: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/v1/items/x%2Fy" || gotType != "application/json" {
		t.Fatalf("request = %s %s (%s)", gotMethod, gotPath, gotType)
	}
}
