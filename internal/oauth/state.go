package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"keygate/internal/config"
	"keygate/internal/store"
)

// stateBytes is the entropy of a CSRF state value.
const stateBytes = 32

// stateKeyPrefix namespaces state records in the shared store.
const stateKeyPrefix = "oauth_state:"

// StateManager issues and consumes single-use CSRF state values. The store
// holds only presence; the value carries no meaning beyond existing.
type StateManager struct {
	kv      store.Store
	runtime config.RuntimeConfig
}

// NewStateManager creates a StateManager backed by the shared store.
func NewStateManager(kv store.Store, runtime config.RuntimeConfig) *StateManager {
	return &StateManager{kv: kv, runtime: runtime}
}

// Issue generates a fresh state value and stores it with the configured TTL.
// Unlike magic-link issuance, a store failure here fails the flow: a state
// that was never stored guarantees a failed callback later.
func (s *StateManager) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	ttl := s.runtime.Get().OAuth.GetStateTTL()
	if err := s.kv.SetWithTTL(ctx, stateKeyPrefix+state, []byte("1"), ttl); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return state, nil
}

// Consume atomically verifies and destroys a state value. Exactly one
// concurrent callback can consume a given state; everything else gets
// ErrInvalidState, including expired and never-issued values.
func (s *StateManager) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrInvalidState
	}

	removed, err := s.kv.Delete(ctx, stateKeyPrefix+state)
	if err != nil {
		return fmt.Errorf("consume state: %w", err)
	}
	if !removed {
		return ErrInvalidState
	}
	return nil
}
