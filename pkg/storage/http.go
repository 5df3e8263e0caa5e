package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore is a client for the persistd HTTP API.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// HTTPStoreOption configures HTTPStore behavior.
type HTTPStoreOption func(*HTTPStore)

// WithHTTPClient sets the HTTP client.
// Default: a client with a 10 second timeout.
func WithHTTPClient(c *http.Client) HTTPStoreOption {
	return func(s *HTTPStore) {
		s.client = c
	}
}

// NewHTTPStore creates a client for the server at baseURL,
// e.g. "http://localhost:7400".
func NewHTTPStore(baseURL string, opts ...HTTPStoreOption) *HTTPStore {
	s := &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPStore) itemURL(key string) string {
	return s.baseURL + "/v1/items/" + url.PathEscape(key)
}

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (s *HTTPStore) do(ctx context.Context, method, u string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.client.Do(req)
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}

// GetItem fetches key from the server.
func (s *HTTPStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	resp, err := s.do(ctx, http.MethodGet, s.itemURL(key), nil)
	if err != nil {
		return "", false, &StorageError{Op: "get", Key: key, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", false, &StorageError{Op: "get", Key: key, Err: err}
		}
		return string(data), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, &StorageError{Op: "get", Key: key, Err: statusError(resp)}
	}
}

// SetItem stores text under key on the server. The server rejects text that
// is not valid JSON.
func (s *HTTPStore) SetItem(ctx context.Context, key, text string) error {
	resp, err := s.do(ctx, http.MethodPut, s.itemURL(key), bytes.NewReader([]byte(text)))
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return &StorageError{Op: "set", Key: key, Err: statusError(resp)}
	}
	return nil
}

// RemoveItem deletes key on the server.
func (s *HTTPStore) RemoveItem(ctx context.Context, key string) error {
	resp, err := s.do(ctx, http.MethodDelete, s.itemURL(key), nil)
	if err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return &StorageError{Op: "remove", Key: key, Err: statusError(resp)}
	}
	return nil
}

// Keys lists the server's keys.
func (s *HTTPStore) Keys(ctx context.Context) ([]string, error) {
	resp, err := s.do(ctx, http.MethodGet, s.baseURL+"/v1/items", nil)
	if err != nil {
		return nil, &StorageError{Op: "keys", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotImplemented {
		return nil, &StorageError{Op: "keys", Err: ErrUnsupported}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StorageError{Op: "keys", Err: statusError(resp)}
	}

	var keys []string
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, &StorageError{Op: "keys", Err: err}
	}
	return keys, nil
}
