package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// SurgeGuard is the per-instance token bucket sitting in front of the
// shared Limiter. It sheds load locally before a spike reaches the store.
// Unlike the fixed-window Limiter it refills smoothly, so legitimate
// bursts right after a quiet period pass through.
//
// A zero-rate guard is disabled and allows everything.
type SurgeGuard struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

// NewSurgeGuard creates a SurgeGuard allowing rps requests per second with
// the given burst capacity. Non-positive rps disables the guard; a
// non-positive burst defaults to the integer rate (at least 1).
func NewSurgeGuard(rps float64, burst int) *SurgeGuard {
	g := &SurgeGuard{}
	g.configure(rps, burst)
	return g
}

// Allow reports whether one request may pass the guard right now.
func (g *SurgeGuard) Allow() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.limiter == nil {
		return true
	}
	return g.limiter.Allow()
}

// SetLimit reconfigures the guard, replacing the bucket. Used on config
// hot-reload.
func (g *SurgeGuard) SetLimit(rps float64, burst int) {
	g.configure(rps, burst)
}

func (g *SurgeGuard) configure(rps float64, burst int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rps <= 0 {
		g.limiter = nil
		return
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Enabled reports whether the guard is active.
func (g *SurgeGuard) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limiter != nil
}
