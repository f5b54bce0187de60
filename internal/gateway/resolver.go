package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"keygate/internal/config"
)

// accountIDHexLen is the number of hash hex digits in a derived account ID.
const accountIDHexLen = 12

// AccountID derives the deterministic account ID for an email address.
// The address is trimmed and lowercased first, so the same mailbox always
// maps to the same ID no matter how the caller authenticated or typed it.
func AccountID(prefix, email string) string {
	normalized := NormalizeEmail(email)
	sum := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(sum[:])[:accountIDHexLen]
}

// NormalizeEmail canonicalizes an email address for identity purposes.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Credential is a freshly issued delegated gateway key bound to an account.
type Credential struct {
	AccountID string
	Key       string
}

// AdminAPI is the slice of the gateway client the resolver needs.
type AdminAPI interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateAccount(ctx context.Context, accountID, email string) error
	IssueKey(ctx context.Context, accountID string) (string, error)
}

// Resolver maps caller identities to durable gateway accounts and issues
// fresh delegated keys. It is the single place account IDs are derived.
type Resolver struct {
	api     AdminAPI
	runtime config.RuntimeConfig
	exists  *existenceCache
}

// NewResolver creates a Resolver backed by the given admin API.
func NewResolver(api AdminAPI, runtime config.RuntimeConfig) (*Resolver, error) {
	cache, err := newExistenceCache()
	if err != nil {
		return nil, fmt.Errorf("create existence cache: %w", err)
	}
	return &Resolver{api: api, runtime: runtime, exists: cache}, nil
}

// AccountIDFor derives the account ID for an email using the configured prefix.
func (r *Resolver) AccountIDFor(email string) string {
	return AccountID(r.runtime.Get().Auth.GetAccountPrefix(), email)
}

// AccountExists reports whether the account for an email already exists,
// without creating it. Used by login, which must not create accounts.
func (r *Resolver) AccountExists(ctx context.Context, email string) (bool, error) {
	id := r.AccountIDFor(email)
	if r.exists.Has(id) {
		return true, nil
	}

	_, err := r.api.GetAccount(ctx, id)
	if err == nil {
		r.exists.Mark(id, r.runtime.Get().Gateway.GetExistenceCacheTTL())
		return true, nil
	}
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return false, err
}

// EnsureAccount resolves the durable account for an email, creating it on
// first contact, and returns the account ID. Creation races between
// instances are absorbed by re-fetching after a conflict.
func (r *Resolver) EnsureAccount(ctx context.Context, email string) (string, error) {
	id := r.AccountIDFor(email)
	if r.exists.Has(id) {
		return id, nil
	}
	ttl := r.runtime.Get().Gateway.GetExistenceCacheTTL()

	_, err := r.api.GetAccount(ctx, id)
	if err == nil {
		r.exists.Mark(id, ttl)
		return id, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return "", err
	}

	if err := r.api.CreateAccount(ctx, id, NormalizeEmail(email)); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsConflict() {
			return "", err
		}
		// Another instance won the creation race. The re-fetch below
		// confirms the account landed.
		logger().Debug().
			Str("account_id", id).
			Msg("account creation conflict, re-fetching")
	}

	if _, err := r.api.GetAccount(ctx, id); err != nil {
		return "", fmt.Errorf("verify created account: %w", err)
	}
	r.exists.Mark(id, ttl)
	return id, nil
}

// ResolveAndIssue resolves the account for an email and issues a fresh
// delegated key. Every call yields a new key; keys are never reused.
func (r *Resolver) ResolveAndIssue(ctx context.Context, email string) (Credential, error) {
	id, err := r.EnsureAccount(ctx, email)
	if err != nil {
		return Credential{}, err
	}
	key, err := r.api.IssueKey(ctx, id)
	if err != nil {
		return Credential{}, err
	}
	return Credential{AccountID: id, Key: key}, nil
}

// Close releases resolver resources.
func (r *Resolver) Close() {
	r.exists.Close()
}
