package health

// GetURL returns the url field for testing.
func (h *HTTPHealthCheck) GetURL() string {
	return h.url
}

// GetChecksCount returns the number of registered checks under lock (for testing).
func (c *Checker) GetChecksCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.checks)
}

// HasCheck returns whether a named check is registered under lock (for testing).
func (c *Checker) HasCheck(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.checks[name]
	return ok
}

// NewTestBreaker builds a CircuitBreaker named "test-target" from raw config
// values (for testing).
func NewTestBreaker(failureThreshold, openDurationMS, halfOpenProbes int) *CircuitBreaker {
	return NewCircuitBreaker("test-target", CircuitBreakerConfig{
		FailureThreshold: failureThreshold,
		OpenDurationMS:   openDurationMS,
		HalfOpenProbes:   halfOpenProbes,
	}, nil)
}

// CryptoRandDurationExported exports cryptoRandDuration for testing.
var CryptoRandDurationExported = cryptoRandDuration

// CheckAllTargets exports checkAllTargets for testing.
func (c *Checker) CheckAllTargets() {
	c.checkAllTargets()
}

// HasCircuits returns whether the circuits map is initialized (for testing).
func (t *Tracker) HasCircuits() bool {
	return t.circuits != nil
}
