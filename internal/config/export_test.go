package config

import (
	"keygate/internal/health"
	"keygate/internal/store"
)

// Test helpers with all fields initialized for exhaustruct compliance.

// MakeTestConfig returns a minimal valid Config with all fields set.
func MakeTestConfig() *Config {
	return &Config{
		Server:    MakeTestServerConfig(),
		Gateway:   MakeTestGatewayConfig(),
		Store:     MakeTestStoreConfig(),
		Auth:      MakeTestAuthConfig(),
		OAuth:     MakeTestOAuthConfig(),
		Mail:      MailConfig{},
		RateLimit: RateLimitConfig{},
		Logging:   MakeTestLoggingConfig(),
		Health:    MakeTestHealthConfig(),
	}
}

// MakeTestServerConfig returns a minimal ServerConfig with all fields set.
func MakeTestServerConfig() ServerConfig {
	return ServerConfig{
		Listen:        "127.0.0.1:8787",
		PublicBaseURL: "https://auth.example.com",
		TimeoutMS:     60000,
		MaxBodyBytes:  0,
		EnableHTTP2:   false,
	}
}

// MakeTestGatewayConfig returns a minimal GatewayConfig with all fields set.
func MakeTestGatewayConfig() GatewayConfig {
	return GatewayConfig{
		BaseURL:            "http://localhost:4000",
		AdminKey:           "sk-admin-test",
		TimeoutMS:          10000,
		KeyMaxBudget:       0,
		KeyBudgetDuration:  "",
		KeyModels:          nil,
		ExistenceCacheTTLS: 0,
	}
}

// MakeTestStoreConfig returns a memory-mode store config.
func MakeTestStoreConfig() store.Config {
	return store.Config{
		Mode:  store.ModeMemory,
		Olric: store.OlricConfig{},
	}
}

// MakeTestAuthConfig returns a minimal AuthConfig with all fields set.
func MakeTestAuthConfig() AuthConfig {
	return AuthConfig{
		AccountPrefix:       "",
		SessionTTLMinutes:   0,
		MagicLinkTTLMinutes: 0,
		Cookie:              CookieConfig{},
		EmailHeaders:        nil,
		UserHeaders:         nil,
		SkipPaths:           nil,
		FailOpen:            nil,
	}
}

// MakeTestOAuthConfig returns an OAuthConfig with GitHub disabled.
func MakeTestOAuthConfig() OAuthConfig {
	return OAuthConfig{
		GitHub:          GitHubOAuthConfig{},
		StateTTLSeconds: 0,
	}
}

// MakeTestLoggingConfig returns a minimal LoggingConfig with all fields set.
func MakeTestLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
		Pretty: false,
	}
}

// MakeTestHealthConfig returns a minimal health.Config with all fields set.
func MakeTestHealthConfig() health.Config {
	return health.Config{
		HealthCheck: health.CheckConfig{
			Enabled:    boolPtr(true),
			IntervalMS: 10000,
		},
		CircuitBreaker: health.CircuitBreakerConfig{
			OpenDurationMS:   30000,
			FailureThreshold: 5,
			HalfOpenProbes:   3,
		},
	}
}

// boolPtr returns a pointer to a bool.
func boolPtr(b bool) *bool {
	return &b
}
