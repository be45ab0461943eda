// Package kv provides the blob persistence layer: a small key-value store
// holding one serialized collection per fixed logical key.
package kv

import "context"

// Store reads and writes opaque blobs under fixed logical keys.
type Store interface {
	// Get returns the blob for key, or ok=false when the key was never set.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set writes the blob for key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}
