// Package store defines the session store abstraction used for persisting
// application state between runs.
//
// The store is a small string key/value contract. Repositories serialize
// their state to JSON and hand it to a Store; they treat every store
// failure as non-fatal and keep serving from memory.
//
// Two backends implement the contract:
//   - File: one file per key under a state directory, guarded by flock
//   - Memory: map-backed, for tests and ephemeral runs
//
// A PostgreSQL backend lives in the store/postgres subpackage.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the key has no stored value.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey indicates the key contains unsupported characters.
	ErrInvalidKey = errors.New("invalid key")
)

// Store persists string values by key.
//
// Get returns ErrNotFound when the key has never been written.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ValidateKey checks that a key is non-empty and uses only characters
// that are safe as a filename and a database key: ASCII letters, digits,
// '.', '_' and '-'.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return fmt.Errorf("%w: %q contains unsupported character %q", ErrInvalidKey, key, c)
		}
	}
	return nil
}
