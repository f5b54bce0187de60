// Package session implements server-side sessions for externally
// authenticated users. A session binds a browser to an account and the
// delegated gateway key issued at login. Records live in the shared store
// under a TTL; the browser holds only an opaque token in a hardened cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"keygate/internal/config"
	"keygate/internal/store"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

// tokenBytes is the entropy of a session token.
const tokenBytes = 32

// keyPrefix namespaces session records in the shared store.
const keyPrefix = "session:"

// Record is the server-side session state.
type Record struct {
	Email     string    `json:"email"`
	AccountID string    `json:"account_id"`
	Key       string    `json:"key"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager owns the session lifecycle against the shared store.
type Manager struct {
	kv      store.Store
	runtime config.RuntimeConfig
}

// NewManager creates a session Manager.
func NewManager(kv store.Store, runtime config.RuntimeConfig) *Manager {
	return &Manager{kv: kv, runtime: runtime}
}

// Create stores a new session and returns its opaque token.
// Unlike magic-link issuance this is not best-effort: a session that was
// never stored is useless to the caller, so store errors fail the login.
func (m *Manager) Create(ctx context.Context, rec Record) (string, error) {
	tok, err := generateToken()
	if err != nil {
		return "", err
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	ttl := m.runtime.Get().Auth.GetSessionTTL()
	if err := m.kv.SetWithTTL(ctx, keyPrefix+tok, data, ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	logger().Info().
		Str("account_id", rec.AccountID).
		Dur("ttl", ttl).
		Msg("session created")
	return tok, nil
}

// Get returns the session record for a token.
func (m *Manager) Get(ctx context.Context, tok string) (Record, error) {
	if tok == "" {
		return Record{}, ErrNotFound
	}

	data, err := m.kv.Get(ctx, keyPrefix+tok)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return rec, nil
}

// Delete destroys a session immediately. Returns whether a live session
// was actually removed.
func (m *Manager) Delete(ctx context.Context, tok string) (bool, error) {
	if tok == "" {
		return false, nil
	}

	removed, err := m.kv.Delete(ctx, keyPrefix+tok)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	if removed {
		logger().Info().Msg("session destroyed")
	}
	return removed, nil
}

// Refresh extends a session's TTL to the full configured lifetime without
// touching its content. Returns false if the session no longer exists.
func (m *Manager) Refresh(ctx context.Context, tok string) (bool, error) {
	if tok == "" {
		return false, nil
	}

	err := m.kv.Expire(ctx, keyPrefix+tok, m.runtime.Get().Auth.GetSessionTTL())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("refresh session: %w", err)
	}
	return true, nil
}

// generateToken returns a URL-safe random session token.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
