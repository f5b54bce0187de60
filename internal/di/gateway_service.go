package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"keygate/internal/gateway"
)

// GatewayService wraps the downstream gateway client and the account
// resolver built on it.
type GatewayService struct {
	Client   *gateway.Client
	Resolver *gateway.Resolver
}

// NewGateway creates the gateway client and resolver.
func NewGateway(i do.Injector) (*GatewayService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)

	client := gateway.NewClient(cfgSvc, trackerSvc.Tracker)

	resolver, err := gateway.NewResolver(client, cfgSvc)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	return &GatewayService{Client: client, Resolver: resolver}, nil
}

// Shutdown implements do.Shutdowner, releasing the resolver's caches.
func (g *GatewayService) Shutdown() error {
	if g.Resolver != nil {
		g.Resolver.Close()
	}
	return nil
}
