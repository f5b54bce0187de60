// The checker.go file implements synthetic health checks during OPEN state.
// When a circuit opens due to failures, the health checker runs periodic
// lightweight probes to detect recovery faster than waiting for the full
// cooldown period.
//
// Key features:
//   - TargetHealthCheck interface for pluggable health checks
//   - HTTPHealthCheck for HTTP-based connectivity validation
//   - PingHealthCheck for store connectivity validation
//   - Periodic monitoring with configurable interval and jitter
//   - Only checks OPEN circuits (not CLOSED or HALF-OPEN)
package health

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TargetHealthCheck defines how to check if a dependency is healthy.
// Implementations should be lightweight and fast (not full API calls).
type TargetHealthCheck interface {
	// Check performs a health check against the target.
	// Returns nil if healthy, error if unhealthy.
	Check(ctx context.Context) error

	// TargetName returns the name of the dependency being checked.
	TargetName() string
}

// HTTPHealthCheck performs health checks via HTTP request.
// Used for the gateway, which exposes a health endpoint.
type HTTPHealthCheck struct {
	name     string
	url      string
	client   *http.Client
	method   string
	expectOK bool
}

// NewHTTPHealthCheck creates an HTTP-based health check.
// By default, it performs a GET request and expects a 2xx response.
func NewHTTPHealthCheck(name, url string, client *http.Client) *HTTPHealthCheck {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPHealthCheck{
		name:     name,
		url:      url,
		client:   client,
		method:   http.MethodGet,
		expectOK: true,
	}
}

// Check performs the HTTP health check.
func (h *HTTPHealthCheck) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, h.method, h.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if h.expectOK && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

// TargetName returns the name of the dependency being checked.
func (h *HTTPHealthCheck) TargetName() string {
	return h.name
}

// PingHealthCheck wraps a ping function, e.g. the state store's Ping.
type PingHealthCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingHealthCheck creates a health check backed by a ping function.
func NewPingHealthCheck(name string, ping func(ctx context.Context) error) *PingHealthCheck {
	return &PingHealthCheck{name: name, ping: ping}
}

// Check invokes the ping function.
func (p *PingHealthCheck) Check(ctx context.Context) error {
	return p.ping(ctx)
}

// TargetName returns the name of the dependency being checked.
func (p *PingHealthCheck) TargetName() string {
	return p.name
}

// NewTargetHealthCheck creates a health check appropriate for the target.
// An empty URL yields a no-op check.
func NewTargetHealthCheck(name, url string, client *http.Client) TargetHealthCheck {
	if url == "" {
		return NewNoOpHealthCheck(name)
	}
	return NewHTTPHealthCheck(name, url, client)
}

// NoOpHealthCheck always returns healthy.
// Used when no health check endpoint is available for a target.
type NoOpHealthCheck struct {
	name string
}

// NewNoOpHealthCheck creates a no-op health check that always succeeds.
func NewNoOpHealthCheck(name string) *NoOpHealthCheck {
	return &NoOpHealthCheck{name: name}
}

// Check always returns nil (healthy).
func (n *NoOpHealthCheck) Check(_ context.Context) error {
	return nil
}

// TargetName returns the name of the target.
func (n *NoOpHealthCheck) TargetName() string {
	return n.name
}

// Checker monitors dependency health and triggers recovery checks.
// It runs periodic health checks against targets with OPEN circuits
// to detect recovery faster than waiting for the full cooldown period.
type Checker struct {
	ctx     context.Context
	tracker *Tracker
	checks  map[string]TargetHealthCheck
	logger  *zerolog.Logger
	cancel  context.CancelFunc
	config  CheckConfig
	wg      sync.WaitGroup
	mu      sync.RWMutex
}

// NewChecker creates a new Checker.
func NewChecker(tracker *Tracker, cfg CheckConfig, logger *zerolog.Logger) *Checker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Checker{
		tracker: tracker,
		config:  cfg,
		checks:  make(map[string]TargetHealthCheck),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RegisterTarget adds a health check for a dependency.
func (h *Checker) RegisterTarget(check TargetHealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[check.TargetName()] = check
}

// Start begins periodic health checking for all registered targets.
// Should be called once after all targets are registered.
func (h *Checker) Start() {
	if !h.config.IsEnabled() {
		if h.logger != nil {
			h.logger.Info().Msg("health checker disabled")
		}
		return
	}

	interval := h.config.GetInterval()
	// Add jitter (0-2s) to prevent thundering herd across instances
	jitter := cryptoRandDuration(2 * time.Second)
	ticker := time.NewTicker(interval + jitter)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer ticker.Stop()

		if h.logger != nil {
			h.logger.Info().
				Dur("interval", interval).
				Dur("jitter", jitter).
				Msg("health checker started")
		}

		for {
			select {
			case <-h.ctx.Done():
				if h.logger != nil {
					h.logger.Info().Msg("health checker stopped")
				}
				return
			case <-ticker.C:
				h.checkAllTargets()
			}
		}
	}()
}

// Stop stops the health checker and waits for the goroutine to finish.
func (h *Checker) Stop() {
	h.cancel()
	h.wg.Wait()
}

// checkAllTargets runs health checks for all targets with OPEN circuits.
func (h *Checker) checkAllTargets() {
	h.mu.RLock()
	checks := make([]TargetHealthCheck, 0, len(h.checks))
	for _, check := range h.checks {
		checks = append(checks, check)
	}
	h.mu.RUnlock()

	for _, check := range checks {
		name := check.TargetName()
		state := h.tracker.GetState(name)

		// Only check targets with OPEN circuits
		if state != StateOpen {
			continue
		}

		// Run health check with timeout
		ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
		err := check.Check(ctx)
		cancel()

		if err != nil {
			if h.logger != nil {
				h.logger.Debug().
					Str("target", name).
					Err(err).
					Msg("health check failed")
			}
			continue
		}

		// Successful health check - record success to help circuit transition
		if h.logger != nil {
			h.logger.Info().
				Str("target", name).
				Msg("health check succeeded, recording success")
		}
		h.tracker.RecordSuccess(name)
	}
}

// cryptoRandDuration returns a cryptographically random duration between 0 and maxDur.
func cryptoRandDuration(maxDur time.Duration) time.Duration {
	if maxDur <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fallback to zero jitter if crypto/rand fails
		return 0
	}
	n := binary.LittleEndian.Uint64(b[:])
	//nolint:gosec // G115: maxDur is always positive (checked above), safe conversion
	return time.Duration(n % uint64(maxDur))
}
