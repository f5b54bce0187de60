// Package store provides the shared key-value store keygate uses for all
// ephemeral authentication state: magic-link tokens, sessions, OAuth CSRF
// state, and rate-limit counters.
//
// The store package abstracts over three backends:
//   - Memory mode: exact in-process store for single-instance and test use
//   - Embedded mode (Olric): a local Olric node, clusterable via peers
//   - Cluster mode (Olric): client for an external Olric cluster
//
// All implementations are safe for concurrent use. Every record carries a
// TTL; the store is the sole owner of expiry, the service layer holds no
// durable state of its own.
//
// Basic usage:
//
//	cfg := store.Config{Mode: store.ModeMemory}
//	kv, err := store.New(context.Background(), &cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer kv.Close()
//
//	err = kv.SetWithTTL(ctx, "magic:abc", payload, 15*time.Minute)
//
//	data, err := kv.GetDelete(ctx, "magic:abc")
//	if errors.Is(err, store.ErrNotFound) {
//		// already redeemed, expired, or never issued
//	}
package store

import (
	"context"
	"time"
)

// Store defines the key-value operations the auth flows rely on.
// All implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value. Returns ErrNotFound if the key does not exist
	// or has expired. Returns ErrClosed if the store has been closed.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores a value with a time-to-live. After the TTL expires
	// the key is no longer retrievable.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. The returned bool reports whether a live key
	// was actually removed, which makes Delete usable as a single-use
	// consumption primitive: exactly one concurrent caller observes true.
	Delete(ctx context.Context, key string) (bool, error)

	// GetDelete retrieves a value and removes the key. At most one
	// concurrent caller receives the value; the rest get ErrNotFound.
	GetDelete(ctx context.Context, key string) ([]byte, error)

	// Incr atomically increments the integer counter at key by delta and
	// returns the new value. A missing key counts from zero.
	Incr(ctx context.Context, key string, delta int) (int64, error)

	// Expire sets or replaces the TTL of an existing key.
	// Returns ErrNotFound if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining time-to-live of a key.
	// Returns ErrNotFound if the key does not exist; a zero duration means
	// the key has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Close releases resources associated with the store.
	// After Close is called, all operations return ErrClosed.
	// Close is idempotent.
	Close() error
}

// Pinger is an optional interface for backends that support health checks.
// For the memory backend, Ping always returns nil. For Olric backends,
// Ping validates node or cluster connectivity.
//
// Use type assertion to check if a store implements this interface:
//
//	if p, ok := kv.(store.Pinger); ok {
//		if err := p.Ping(ctx); err != nil {
//			// degraded
//		}
//	}
type Pinger interface {
	// Ping verifies the store connection is alive.
	Ping(ctx context.Context) error
}
