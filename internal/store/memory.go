package store

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// memoryStore is an exact in-process Store. Unlike an admission-based
// cache, it never drops writes: single-use redemption and counters need
// strict read-your-writes semantics, so entries live in a plain map
// guarded by a mutex, with lazy TTL eviction on access.
//
// State is process-local. ModeMemory is only correct for single-instance
// deployments and tests; multi-instance deployments must use Olric.
type memoryStore struct {
	entries map[string]memoryEntry
	log     zerolog.Logger
	now     func() time.Time
	mu      sync.Mutex
	closed  atomic.Bool
}

type memoryEntry struct {
	value    []byte
	expireAt time.Time // zero means no expiry
}

// Ensure memoryStore implements the required interfaces.
var (
	_ Store  = (*memoryStore)(nil)
	_ Pinger = (*memoryStore)(nil)
)

func newMemoryStore() *memoryStore {
	log := logger().With().Str("backend", "memory").Logger()
	log.Debug().Msg("memory store created")
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		log:     log,
	}
}

// live returns the entry for key if it exists and has not expired,
// evicting it if it has. Caller must hold mu.
func (m *memoryStore) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expireAt.IsZero() && !m.now().Before(e.expireAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		m.log.Debug().Str("key", key).Bool("hit", false).Msg("store get")
		return nil, ErrNotFound
	}

	m.log.Debug().Str("key", key).Bool("hit", true).Int("size", len(e.value)).Msg("store get")

	result := make([]byte, len(e.value))
	copy(result, e.value)
	return result, nil
}

func (m *memoryStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed.Load() {
		return ErrClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	var expireAt time.Time
	if ttl > 0 {
		expireAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{value: valueCopy, expireAt: expireAt}
	m.mu.Unlock()

	m.log.Debug().Str("key", key).Int("size", len(value)).Dur("ttl", ttl).Msg("store set")
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.closed.Load() {
		return false, ErrClosed
	}

	m.mu.Lock()
	_, ok := m.live(key)
	if ok {
		delete(m.entries, key)
	}
	m.mu.Unlock()

	m.log.Debug().Str("key", key).Bool("removed", ok).Msg("store delete")
	return ok, nil
}

func (m *memoryStore) GetDelete(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}

	m.mu.Lock()
	e, ok := m.live(key)
	if ok {
		delete(m.entries, key)
	}
	m.mu.Unlock()

	if !ok {
		m.log.Debug().Str("key", key).Bool("hit", false).Msg("store getdelete")
		return nil, ErrNotFound
	}

	m.log.Debug().Str("key", key).Bool("hit", true).Msg("store getdelete")
	return e.value, nil
}

func (m *memoryStore) Incr(ctx context.Context, key string, delta int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.closed.Load() {
		return 0, ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	e, ok := m.live(key)
	if ok {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, ErrNotCounter
		}
		current = parsed
	}

	current += int64(delta)
	// Keep the existing expiry; a fresh counter has none until Expire is called.
	m.entries[key] = memoryEntry{
		value:    []byte(strconv.FormatInt(current, 10)),
		expireAt: e.expireAt,
	}

	m.log.Debug().Str("key", key).Int64("count", current).Msg("store incr")
	return current, nil
}

func (m *memoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed.Load() {
		return ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return ErrNotFound
	}

	e.expireAt = m.now().Add(ttl)
	m.entries[key] = e

	m.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("store expire")
	return nil
}

func (m *memoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.closed.Load() {
		return 0, ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return 0, ErrNotFound
	}
	if e.expireAt.IsZero() {
		return 0, nil
	}
	return e.expireAt.Sub(m.now()), nil
}

// Ping always succeeds for a live memory store.
func (m *memoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close marks the store as closed and drops all entries. Idempotent.
func (m *memoryStore) Close() error {
	if m.closed.Load() {
		return nil
	}
	m.closed.Store(true)

	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()

	m.log.Info().Msg("memory store closed")
	return nil
}
