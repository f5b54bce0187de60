package store

import (
	"context"
	"fmt"
	"time"
)

// New creates a Store based on the configuration.
// It returns an error if the configuration is invalid or if the backend
// fails to initialize.
//
// The context bounds initialization of Olric backends; the memory backend
// ignores it but accepts it for API consistency.
func New(ctx context.Context, cfg *Config) (Store, error) {
	log := logger().With().Str("component", "store_factory").Logger()
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		log.Debug().Err(err).Str("mode", string(cfg.Mode)).Msg("store factory: validation failed")
		return nil, err
	}

	log.Info().
		Str("mode", string(cfg.Mode)).
		Msg("store factory: initializing backend")

	var kv Store
	var err error

	switch cfg.Mode {
	case ModeMemory:
		kv = newMemoryStore()
	case ModeEmbedded, ModeCluster:
		kv, err = newOlricStore(ctx, cfg.Mode, &cfg.Olric)
	default:
		return nil, fmt.Errorf("store: unknown mode %q", cfg.Mode)
	}

	if err != nil {
		log.Error().Err(err).Str("mode", string(cfg.Mode)).Msg("store factory: backend initialization failed")
		return nil, err
	}

	log.Info().
		Str("mode", string(cfg.Mode)).
		Dur("init_time", time.Since(start)).
		Msg("store factory: backend initialized")

	return kv, nil
}
