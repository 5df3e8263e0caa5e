package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/persist/pkg/storage"
)

// keyParam returns the {key} route parameter. chi matches against RawPath
// when the request path has escaped characters, so the parameter is
// unescaped only in that case.
func keyParam(r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key, key != ""
	}
	unescaped, err := url.PathUnescape(key)
	if err != nil {
		return "", false
	}
	return unescaped, unescaped != ""
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	text, found, err := s.store.GetItem(r.Context(), key)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, text)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "body is not valid JSON", http.StatusBadRequest)
		return
	}

	text := string(body)
	if err := s.store.SetItem(r.Context(), key, text); err != nil {
		s.storeError(w, err)
		return
	}
	if !s.publishes {
		s.hub.publish(storage.Change{Kind: storage.ChangeSet, Key: key, Text: text})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	if err := s.store.RemoveItem(r.Context(), key); err != nil {
		s.storeError(w, err)
		return
	}
	if !s.publishes {
		s.hub.publish(storage.Change{Kind: storage.ChangeRemove, Key: key})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.store.(storage.Lister)
	if !ok {
		http.Error(w, "store cannot list keys", http.StatusNotImplemented)
		return
	}

	keys, err := lister.Keys(r.Context())
	if errors.Is(err, storage.ErrUnsupported) {
		http.Error(w, "store cannot list keys", http.StatusNotImplemented)
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(keys)
}

// storeError logs err and answers 503 for a closed store, 500 otherwise.
// Store errors are not echoed to clients.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	s.logger.Error("store operation failed", "error", err)
	if errors.Is(err, storage.ErrClosed) {
		http.Error(w, "store closed", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "storage error", http.StatusInternalServerError)
}
