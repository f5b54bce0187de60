package di

import (
	"github.com/samber/do/v2"

	"keygate/internal/config"
	"keygate/internal/ratelimit"
)

// RateLimitService wraps the store-backed limiter and the per-instance
// surge guard for DI.
type RateLimitService struct {
	Limiter *ratelimit.Limiter
	Surge   *ratelimit.SurgeGuard
}

// NewRateLimit creates the limiter and surge guard. The surge guard's
// rate follows config hot reloads so operators can shed load without a
// restart.
func NewRateLimit(i do.Injector) (*RateLimitService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	storeSvc := do.MustInvoke[*StoreService](i)

	rl := cfgSvc.Get().RateLimit
	surge := ratelimit.NewSurgeGuard(rl.LocalRPS, rl.LocalBurst)

	cfgSvc.OnReload(func(newCfg *config.Config) {
		surge.SetLimit(newCfg.RateLimit.LocalRPS, newCfg.RateLimit.LocalBurst)
	})

	return &RateLimitService{
		Limiter: ratelimit.NewLimiter(storeSvc.Store, cfgSvc),
		Surge:   surge,
	}, nil
}
