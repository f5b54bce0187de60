package store

import "errors"

// Standard errors for store operations.
//
// Use errors.Is to check for these errors:
//
//	data, err := kv.Get(ctx, key)
//	if errors.Is(err, store.ErrNotFound) {
//		// key never existed, expired, or was consumed
//	}
var (
	// ErrNotFound is returned when a key does not exist or has expired.
	// Callers must not distinguish "expired" from "never existed" in
	// user-facing responses; the store deliberately reports both the same.
	ErrNotFound = errors.New("store: key not found")

	// ErrClosed is returned when operations are attempted on a closed store.
	ErrClosed = errors.New("store: store is closed")

	// ErrNotCounter is returned when Incr is applied to a key holding a
	// value that is not an integer counter.
	ErrNotCounter = errors.New("store: value is not a counter")
)
