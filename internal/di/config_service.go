package di

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"keygate/internal/config"
)

// ConfigService wraps the loaded configuration with hot-reload support.
// It uses atomic.Pointer for lock-free config reads, allowing in-flight
// requests to continue uninterrupted while new requests use reloaded config.
// ConfigService implements config.RuntimeConfig.
type ConfigService struct {
	config   atomic.Pointer[config.Config]
	watcher  *config.Watcher
	path     string
	mu       sync.Mutex
	onReload []func(*config.Config)
}

// Get returns the current configuration via atomic load (lock-free read).
// This is the preferred method for accessing config during request handling.
func (c *ConfigService) Get() *config.Config {
	return c.config.Load()
}

// OnReload registers a callback invoked after a validated hot reload has
// been swapped in.
func (c *ConfigService) OnReload(cb func(*config.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReload = append(c.onReload, cb)
}

// StartWatching begins watching the config file for changes. A changed file
// is validated before it is swapped in; invalid edits are logged and the
// running config stays untouched. This should be called after the DI
// container is fully initialized. The context controls the watcher
// lifecycle - cancel to stop watching.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}

	c.watcher.OnReload(func(newCfg *config.Config) error {
		if err := newCfg.Validate(); err != nil {
			log.Error().Err(err).Str("path", c.path).Msg("ignoring invalid config reload")
			return err
		}

		c.config.Store(newCfg)
		log.Info().Str("path", c.path).Msg("config hot-reloaded successfully")

		c.mu.Lock()
		cbs := make([]func(*config.Config), len(c.onReload))
		copy(cbs, c.onReload)
		c.mu.Unlock()

		for _, cb := range cbs {
			cb(newCfg)
		}
		return nil
	})

	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("config watcher error")
		}
	}()

	log.Info().Str("path", c.path).Msg("config file watcher started")
}

// Shutdown implements do.Shutdowner for graceful watcher cleanup.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// NewConfig loads and validates the configuration from the config path and
// creates a watcher. The watcher is created but not started - call
// StartWatching() after container init.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	svc := &ConfigService{path: path}
	svc.config.Store(cfg)

	// Hot reload is optional; a watcher failure only disables it.
	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config watcher creation failed, hot-reload disabled")
	} else {
		svc.watcher = watcher
	}

	return svc, nil
}
