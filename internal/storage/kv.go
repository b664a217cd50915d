package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// UpdateFunc computes the next value of a key from its current one.
// found is false when the key is absent. Returning a nil slice leaves the
// key untouched.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// KV is a durable string-keyed store of opaque values.
// Implementations must run Update as an atomic read-modify-write.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Update applies fn to the current value and stores the result, with no
	// other writer able to change the key in between.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying connection or files.
	Close() error
}
