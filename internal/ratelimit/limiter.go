// Package ratelimit protects the auth flows from abuse.
//
// Two layers compose:
//   - Limiter: fixed-window counters in the shared store, consistent
//     across all keygate instances. This is the authoritative limit.
//   - SurgeGuard: a per-instance token bucket (golang.org/x/time/rate)
//     in front of the shared limiter, shedding load locally before it
//     reaches the store during traffic spikes.
//
// The Limiter fails open: if the store is unreachable, requests are
// allowed and the degradation is logged. Availability of authentication
// is prioritized over strict abuse protection during infra outages.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"keygate/internal/config"
	"keygate/internal/store"
)

// keyPrefix namespaces rate-limit counters in the shared store.
const keyPrefix = "ratelimit:"

// Decision is the outcome of a rate-limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// Reset is the time until the current window expires. For denied
	// requests this is the minimum retry delay.
	Reset time.Duration
}

// Limiter is the store-backed fixed-window rate limiter.
type Limiter struct {
	kv      store.Store
	runtime config.RuntimeConfig
}

// NewLimiter creates a Limiter on the shared store.
func NewLimiter(kv store.Store, runtime config.RuntimeConfig) *Limiter {
	return &Limiter{kv: kv, runtime: runtime}
}

// Check counts one attempt for (action, identifier) and decides whether it
// may proceed. The window is anchored to the first attempt: the counter's
// TTL is set once, on creation, and over-limit attempts still increment so
// hammering does not reset the window.
func (l *Limiter) Check(ctx context.Context, action, identifier string) Decision {
	cfg := l.runtime.Get().RateLimit
	rule := cfg.GetRule(action)
	if !cfg.IsEnabled() {
		return Decision{Allowed: true, Remaining: rule.Limit, Reset: 0}
	}

	key := keyPrefix + action + ":" + identifier

	count, err := l.kv.Incr(ctx, key, 1)
	if err != nil {
		logger().Error().
			Err(err).
			Str("action", action).
			Msg("rate limiter degraded, failing open")
		return Decision{Allowed: true, Remaining: rule.Limit, Reset: 0}
	}

	if count == 1 {
		if err := l.kv.Expire(ctx, key, rule.Window()); err != nil {
			logger().Warn().
				Err(err).
				Str("action", action).
				Msg("failed to arm rate-limit window")
		}
	}

	reset := rule.Window()
	if ttl, err := l.kv.TTL(ctx, key); err == nil && ttl > 0 {
		reset = ttl
	}

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= int64(rule.Limit)
	if !allowed {
		logger().Info().
			Str("action", action).
			Str("identifier", identifier).
			Int64("count", count).
			Int("limit", rule.Limit).
			Msg("rate limit exceeded")
	}
	return Decision{Allowed: allowed, Remaining: remaining, Reset: reset}
}

// CheckIP checks the client-address axis for an action.
func (l *Limiter) CheckIP(ctx context.Context, action, ip string) Decision {
	return l.Check(ctx, action, ip)
}

// CheckEmail checks the email axis for an action. The email is normalized
// so case variants share one counter, and the axis gets its own action
// namespace so it never collides with IP counters.
func (l *Limiter) CheckEmail(ctx context.Context, action, email string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return l.Check(ctx, action+":email", normalized)
}

// CheckBoth applies both the IP and email axes for a sensitive action.
// The attempt counts against both counters; the caller is blocked if
// either axis is exhausted.
func (l *Limiter) CheckBoth(ctx context.Context, action, ip, email string) Decision {
	byIP := l.CheckIP(ctx, action, ip)
	byEmail := l.CheckEmail(ctx, action, email)
	return stricter(byIP, byEmail)
}

// stricter merges two decisions, keeping the most restrictive view.
func stricter(a, b Decision) Decision {
	merged := Decision{
		Allowed:   a.Allowed && b.Allowed,
		Remaining: min(a.Remaining, b.Remaining),
		Reset:     max(a.Reset, b.Reset),
	}
	// Retry delay comes from whichever axis actually blocked.
	if !a.Allowed && b.Allowed {
		merged.Reset = a.Reset
	} else if a.Allowed && !b.Allowed {
		merged.Reset = b.Reset
	}
	return merged
}
