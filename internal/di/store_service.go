package di

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"keygate/internal/store"
)

// StoreService wraps the shared key-value store for DI.
type StoreService struct {
	Store store.Store
}

// NewStore creates the shared store from configuration.
func NewStore(i do.Injector) (*StoreService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	do.MustInvoke[*LoggerService](i) // store logging is wired before first use

	kv, err := store.New(context.Background(), &cfgSvc.Get().Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	return &StoreService{Store: kv}, nil
}

// Shutdown implements do.Shutdowner for graceful store cleanup.
func (s *StoreService) Shutdown() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
