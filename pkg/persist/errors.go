package persist

import (
	"fmt"

	"github.com/vango-dev/persist/pkg/storage"
)

// StorageError is the error type for store failures.
type StorageError = storage.StorageError

// DecodeError is returned when stored text cannot be decoded into the
// binding's type.
type DecodeError struct {
	Key  string
	Text string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("persist: decode %q: %v", e.Key, e.Err)
}

// Unwrap returns the codec error for errors.Is/As support.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError is returned when a value cannot be encoded, e.g. a channel or
// function. Nothing is changed when it occurs.
type EncodeError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("persist: encode %q: %v", e.Key, e.Err)
}

// Unwrap returns the codec error for errors.Is/As support.
func (e *EncodeError) Unwrap() error {
	return e.Err
}
