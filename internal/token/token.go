// Package token implements single-use magic-link tokens. A token is an
// opaque random string mapped in the shared store to the claims captured at
// signup or login time. Redeeming a token consumes it: at most one caller
// ever sees the claims, no matter how many verification attempts race.
package token

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

// ErrInvalidToken is returned when a token cannot be redeemed. The caller
// cannot distinguish never-issued, expired, and already-redeemed tokens.
var ErrInvalidToken = errors.New("token: invalid or expired token")

// tokenBytes is the entropy of a magic-link token.
const tokenBytes = 32

// keyPrefix namespaces magic-link records in the shared store.
const keyPrefix = "magic:"

// Claims is the metadata bound to a magic-link token.
type Claims struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Company   string    `json:"company,omitempty"`
	IsSignup  bool      `json:"is_signup"`
	CreatedAt time.Time `json:"created_at"`
}

// Issuer manages the magic-link token lifecycle.
type Issuer struct {
	kv      store.Store
	runtime config.RuntimeConfig
}

// NewIssuer creates a token Issuer backed by the shared store.
func NewIssuer(kv store.Store, runtime config.RuntimeConfig) *Issuer {
	return &Issuer{kv: kv, runtime: runtime}
}

// Issue generates a fresh token for the given claims and stores it with
// the configured TTL. The store write is best-effort: on failure the token
// is still returned (and logged), since the user can simply request a new
// link if verification later fails.
func (i *Issuer) Issue(ctx context.Context, claims Claims) (string, error) {
	tok, err := generateToken()
	if err != nil {
		return "", err
	}

	if claims.CreatedAt.IsZero() {
		claims.CreatedAt = time.Now().UTC()
	}
	record, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	ttl := i.runtime.Get().Auth.GetMagicLinkTTL()
	if err := i.kv.SetWithTTL(ctx, keyPrefix+tok, record, ttl); err != nil {
		logger().Warn().
			Err(err).
			Str("email", claims.Email).
			Msg("magic-link token store write failed")
	} else {
		logger().Debug().
			Str("email", claims.Email).
			Bool("is_signup", claims.IsSignup).
			Dur("ttl", ttl).
			Msg("magic-link token issued")
	}

	return tok, nil
}

// Redeem consumes a token and returns its claims. Exactly one concurrent
// redemption of the same token can succeed; all others, and any attempt on
// an expired or unknown token, get ErrInvalidToken.
func (i *Issuer) Redeem(ctx context.Context, tok string) (Claims, error) {
	if tok == "" {
		return Claims{}, ErrInvalidToken
	}

	record, err := i.kv.GetDelete(ctx, keyPrefix+tok)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Claims{}, ErrInvalidToken
		}
		return Claims{}, fmt.Errorf("redeem token: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal(record, &claims); err != nil {
		return Claims{}, fmt.Errorf("unmarshal claims: %w", err)
	}

	logger().Debug().
		Str("email", claims.Email).
		Bool("is_signup", claims.IsSignup).
		Msg("magic-link token redeemed")
	return claims, nil
}

// generateToken returns a URL-safe random token with tokenBytes of entropy.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
