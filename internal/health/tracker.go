package health

import (
	"sync"

	"github.com/rs/zerolog"
)

// Tracker manages per-dependency circuit breakers.
// It provides thread-safe access to circuit breakers and exposes
// IsHealthyFunc closures for callers that need a cheap health predicate.
type Tracker struct {
	circuits map[string]*CircuitBreaker
	logger   *zerolog.Logger
	config   CircuitBreakerConfig
	mu       sync.RWMutex
}

// NewTracker creates a new Tracker with the given configuration.
func NewTracker(cfg CircuitBreakerConfig, logger *zerolog.Logger) *Tracker {
	return &Tracker{
		circuits: make(map[string]*CircuitBreaker),
		config:   cfg,
		logger:   logger,
	}
}

// GetOrCreateCircuit returns the circuit breaker for a target, creating it if necessary.
// This method is thread-safe and uses lazy initialization.
func (t *Tracker) GetOrCreateCircuit(name string) *CircuitBreaker {
	// Fast path: check if circuit exists with read lock
	t.mu.RLock()
	cb, exists := t.circuits[name]
	t.mu.RUnlock()

	if exists {
		return cb
	}

	// Slow path: create circuit with write lock
	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, exists = t.circuits[name]; exists {
		return cb
	}

	cb = NewCircuitBreaker(name, t.config, t.logger)
	t.circuits[name] = cb

	if t.logger != nil {
		t.logger.Debug().
			Str("target", name).
			Msg("created circuit breaker")
	}

	return cb
}

// IsHealthyFunc returns a closure that checks if a target is healthy.
//
// A target is considered healthy if its circuit is:
//   - CLOSED: Normal operation, requests flow through
//   - HALF-OPEN: Testing recovery, probe requests are allowed
//
// A target is unhealthy only if the circuit is OPEN.
func (t *Tracker) IsHealthyFunc(name string) func() bool {
	return func() bool {
		cb := t.GetOrCreateCircuit(name)
		// OPEN = unhealthy, CLOSED/HALF-OPEN = healthy
		return cb.State() != StateOpen
	}
}

// GetState returns the current state of a target's circuit breaker.
// Returns StateClosed if no circuit exists for the target (healthy by default).
func (t *Tracker) GetState(name string) State {
	t.mu.RLock()
	cb, exists := t.circuits[name]
	t.mu.RUnlock()

	if !exists {
		return StateClosed
	}
	return cb.State()
}

// RecordSuccess records a successful operation for a target.
func (t *Tracker) RecordSuccess(name string) {
	cb := t.GetOrCreateCircuit(name)
	cb.ReportSuccess()

	if t.logger != nil {
		t.logger.Debug().
			Str("target", name).
			Str("state", cb.State().String()).
			Msg("recorded success")
	}
}

// RecordFailure records a failed operation for a target.
func (t *Tracker) RecordFailure(name string, err error) {
	cb := t.GetOrCreateCircuit(name)
	cb.ReportFailure(err)

	if t.logger != nil {
		t.logger.Debug().
			Str("target", name).
			Str("state", cb.State().String()).
			Err(err).
			Msg("recorded failure")
	}
}

// AllStates returns a snapshot of all circuit states.
// Useful for debugging and the health endpoint.
func (t *Tracker) AllStates() map[string]State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make(map[string]State, len(t.circuits))
	for name, cb := range t.circuits {
		states[name] = cb.State()
	}
	return states
}
