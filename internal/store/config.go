package store

import (
	"errors"
	"fmt"
	"time"
)

// Mode represents the store operating mode.
type Mode string

const (
	// ModeMemory uses an exact in-process store. Suitable for tests and
	// strictly single-instance deployments; state does not survive the
	// process and is not shared across replicas.
	ModeMemory Mode = "memory"

	// ModeEmbedded runs a local Olric node inside the keygate process.
	// Peers may be configured to form a cluster of keygate instances.
	ModeEmbedded Mode = "embedded"

	// ModeCluster connects to an external Olric cluster. This is the
	// canonical production mode for multi-instance deployments.
	ModeCluster Mode = "cluster"
)

// Config defines store configuration.
// Use Validate() to check for configuration errors before creating a store.
type Config struct {
	Mode  Mode        `yaml:"mode" toml:"mode"`
	Olric OlricConfig `yaml:"olric" toml:"olric"`
}

// OlricConfig configures the Olric backend for embedded and cluster modes.
type OlricConfig struct {
	DMapName     string        `yaml:"dmap_name" toml:"dmap_name"`
	BindAddr     string        `yaml:"bind_addr" toml:"bind_addr"`
	Addresses    []string      `yaml:"addresses" toml:"addresses"`
	Peers        []string      `yaml:"peers" toml:"peers"`
	LeaveTimeout time.Duration `yaml:"leave_timeout" toml:"leave_timeout"`
}

// DefaultDMapName is the Olric distributed map holding all keygate state.
const DefaultDMapName = "keygate"

// Validate checks the configuration for errors.
// Returns nil if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeMemory:
		// No backend settings required.
	case ModeEmbedded:
		if c.Olric.BindAddr == "" {
			return errors.New("store: olric.bind_addr required for embedded mode")
		}
	case ModeCluster:
		if len(c.Olric.Addresses) == 0 {
			return errors.New("store: olric.addresses required for cluster mode")
		}
	case "":
		return errors.New("store: mode is required")
	default:
		return fmt.Errorf("store: unknown mode %q", c.Mode)
	}
	return nil
}

// DMapName returns the configured Olric DMap name with default fallback.
func (c *OlricConfig) GetDMapName() string {
	if c.DMapName == "" {
		return DefaultDMapName
	}
	return c.DMapName
}
