package di

import (
	"sync"

	"github.com/samber/do/v2"

	"keygate/internal/gateway"
	"keygate/internal/health"
	"keygate/internal/store"
)

// HealthTrackerService wraps the health tracker for DI.
type HealthTrackerService struct {
	Tracker *health.Tracker
}

// CheckerService wraps the health checker for DI. The checker probes the
// gateway health endpoint and the store while their circuits are open.
type CheckerService struct {
	Checker   *health.Checker
	started   bool
	startedMu sync.Mutex
}

// NewHealthTracker creates the health tracker from configuration.
func NewHealthTracker(i do.Injector) (*HealthTrackerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	tracker := health.NewTracker(
		cfgSvc.Get().Health.CircuitBreaker,
		loggerSvc.Logger,
	)
	return &HealthTrackerService{Tracker: tracker}, nil
}

// NewChecker creates the health checker and registers recovery probes for
// the gateway and the store.
func NewChecker(i do.Injector) (*CheckerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	gatewaySvc := do.MustInvoke[*GatewayService](i)
	storeSvc := do.MustInvoke[*StoreService](i)

	checker := health.NewChecker(
		trackerSvc.Tracker,
		cfgSvc.Get().Health.HealthCheck,
		loggerSvc.Logger,
	)

	checker.RegisterTarget(health.NewTargetHealthCheck(
		gateway.TargetName, gatewaySvc.Client.HealthURL(), nil))

	if pinger, ok := storeSvc.Store.(store.Pinger); ok {
		checker.RegisterTarget(health.NewPingHealthCheck("store", pinger.Ping))
	}

	return &CheckerService{Checker: checker}, nil
}

// Start starts the health checker and records that it is running.
func (h *CheckerService) Start() {
	h.startedMu.Lock()
	defer h.startedMu.Unlock()
	if !h.started {
		h.Checker.Start()
		h.started = true
	}
}

// Shutdown implements do.Shutdowner for graceful checker cleanup.
func (h *CheckerService) Shutdown() error {
	h.startedMu.Lock()
	defer h.startedMu.Unlock()
	if h.Checker != nil && h.started {
		h.Checker.Stop()
		h.started = false
	}
	return nil
}
