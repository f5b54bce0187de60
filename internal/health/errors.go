package health

import "errors"

// Sentinel errors for health tracking.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open and rejecting requests.
	ErrCircuitOpen = errors.New("health: circuit breaker is open")

	// ErrHealthCheckFailed is returned when a synthetic health check fails.
	ErrHealthCheckFailed = errors.New("health: health check failed")

	// ErrTargetUnhealthy is returned when a dependency is marked as unhealthy.
	ErrTargetUnhealthy = errors.New("health: target is unhealthy")
)
