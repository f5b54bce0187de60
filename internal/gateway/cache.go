package gateway

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// existenceCache remembers which gateway accounts are known to exist so the
// hot path can skip the get-or-create round trip. Only existence flags are
// cached. Keys and account records are never cached.
type existenceCache struct {
	cache *ristretto.Cache[string, struct{}]
}

func newExistenceCache() (*existenceCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &existenceCache{cache: cache}, nil
}

// Has reports whether the account is known to exist.
// A miss means unknown, not absent.
func (e *existenceCache) Has(accountID string) bool {
	_, found := e.cache.Get(accountID)
	return found
}

// Mark records that the account exists, for ttl.
func (e *existenceCache) Mark(accountID string, ttl time.Duration) {
	e.cache.SetWithTTL(accountID, struct{}{}, 1, ttl)
}

// Forget drops the existence flag for an account.
func (e *existenceCache) Forget(accountID string) {
	e.cache.Del(accountID)
}

// Close releases the cache.
func (e *existenceCache) Close() {
	e.cache.Close()
}
