// Package kv provides the small key-value store interface backing local
// persistence, with a BadgerDB implementation for on-disk use and an
// in-memory implementation for tests.
//
// Keys are flat strings; hierarchical grouping is by convention with a
// prefix (e.g. "turn:<timestamp>") and served by prefix iteration.
package kv

import (
	"context"
	"errors"
	"iter"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a minimal key-value store.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not
	// present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List iterates over all entries whose key starts with prefix, in
	// lexicographic key order.
	List(ctx context.Context, prefix string) iter.Seq2[Entry, error]

	// Close releases any resources held by the store.
	Close() error
}
