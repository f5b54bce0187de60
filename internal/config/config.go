// Package config provides configuration loading and parsing for keygate.
package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"keygate/internal/health"
	"keygate/internal/store"
)

// RuntimeConfig defines the interface for accessing runtime configuration that supports hot-reload.
// Components that need to observe config changes should use this interface instead of
// holding a direct *Config pointer, which would become stale after hot-reload.
//
// Usage pattern:
//
//	func (l *Limiter) Check(ctx context.Context, action, subject string) (Decision, error) {
//		cfg := l.runtime.Get()
//		rule := cfg.RateLimit.GetRule(action)
//		// Use rule for this request...
//	}
type RuntimeConfig interface {
	Get() *Config
}

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config represents the complete keygate configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Gateway   GatewayConfig   `yaml:"gateway" toml:"gateway"`
	Store     store.Config    `yaml:"store" toml:"store"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	OAuth     OAuthConfig     `yaml:"oauth" toml:"oauth"`
	Mail      MailConfig      `yaml:"mail" toml:"mail"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Health    health.Config   `yaml:"health" toml:"health"`
}

// ServerConfig defines server-level settings.
type ServerConfig struct {
	// Listen is the host:port the HTTP server binds to.
	Listen string `yaml:"listen" toml:"listen"`

	// PublicBaseURL is the externally reachable base URL of this service.
	// Used to build magic-link URLs and the OAuth callback URL.
	// Example: https://auth.example.com
	PublicBaseURL string `yaml:"public_base_url" toml:"public_base_url"`

	TimeoutMS    int   `yaml:"timeout_ms" toml:"timeout_ms"`
	MaxBodyBytes int64 `yaml:"max_body_bytes" toml:"max_body_bytes"`
	EnableHTTP2  bool  `yaml:"enable_http2" toml:"enable_http2"` // Enable HTTP/2 cleartext (h2c) support

	// CORSAllowedOrigins lists origins allowed to call the auth API from a
	// browser. Empty means same-origin only (no CORS headers emitted).
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
}

// GetTimeoutOption returns the timeout as an Option.
// Returns None if TimeoutMS is zero (use default).
func (s *ServerConfig) GetTimeoutOption() mo.Option[time.Duration] {
	if s.TimeoutMS <= 0 {
		return mo.None[time.Duration]()
	}
	return mo.Some(time.Duration(s.TimeoutMS) * time.Millisecond)
}

// GetMaxBodyBytes returns the request body limit with default fallback (1 MiB).
func (s *ServerConfig) GetMaxBodyBytes() int64 {
	if s.MaxBodyBytes <= 0 {
		return 1 << 20
	}
	return s.MaxBodyBytes
}

// Default gateway settings.
const (
	DefaultGatewayTimeoutMS   = 10000
	DefaultKeyBudgetDuration  = "30d"
	DefaultExistenceCacheTTLS = 300
)

// GatewayConfig defines the downstream LLM gateway connection and the shape
// of the delegated keys requested from it.
type GatewayConfig struct {
	// BaseURL is the gateway admin API base URL, e.g. http://litellm:4000.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// AdminKey is the privileged key used for gateway admin calls.
	// Supports ${ENV_VAR} expansion.
	AdminKey string `yaml:"admin_key" toml:"admin_key"`

	TimeoutMS int `yaml:"timeout_ms" toml:"timeout_ms"`

	// KeyMaxBudget caps spend per issued key. Zero means no budget cap.
	KeyMaxBudget float64 `yaml:"key_max_budget" toml:"key_max_budget"`

	// KeyBudgetDuration is the budget reset interval for issued keys, in the
	// gateway's duration syntax (e.g. "30d"). Default: 30d.
	KeyBudgetDuration string `yaml:"key_budget_duration" toml:"key_budget_duration"`

	// KeyModels restricts issued keys to these models. Empty means all models.
	KeyModels []string `yaml:"key_models" toml:"key_models"`

	// ExistenceCacheTTLS is how long (seconds) a positive account-existence
	// answer may be cached in-process. Default: 300.
	ExistenceCacheTTLS int `yaml:"existence_cache_ttl_s" toml:"existence_cache_ttl_s"`
}

// GetTimeout returns the gateway call timeout with default fallback (10s).
func (g *GatewayConfig) GetTimeout() time.Duration {
	if g.TimeoutMS <= 0 {
		return time.Duration(DefaultGatewayTimeoutMS) * time.Millisecond
	}
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

// GetKeyBudgetDuration returns the budget duration with default fallback.
func (g *GatewayConfig) GetKeyBudgetDuration() string {
	if g.KeyBudgetDuration == "" {
		return DefaultKeyBudgetDuration
	}
	return g.KeyBudgetDuration
}

// GetKeyMaxBudgetOption returns the key budget cap as an Option.
// Returns None if KeyMaxBudget is zero or negative (no cap).
func (g *GatewayConfig) GetKeyMaxBudgetOption() mo.Option[float64] {
	if g.KeyMaxBudget <= 0 {
		return mo.None[float64]()
	}
	return mo.Some(g.KeyMaxBudget)
}

// GetExistenceCacheTTL returns the account-existence cache TTL with default fallback.
func (g *GatewayConfig) GetExistenceCacheTTL() time.Duration {
	if g.ExistenceCacheTTLS <= 0 {
		return time.Duration(DefaultExistenceCacheTTLS) * time.Second
	}
	return time.Duration(g.ExistenceCacheTTLS) * time.Second
}

// Default auth settings.
const (
	DefaultAccountPrefix     = "kg-"
	DefaultSessionTTLMinutes = 1440 // 24 hours
	DefaultMagicLinkTTLMin   = 15
	DefaultCookieName        = "keygate_session"
)

// DefaultEmailHeaders are the trusted proxy headers carrying the internal
// user's email, checked in order.
var DefaultEmailHeaders = []string{"X-Auth-Request-Email", "X-Email"}

// DefaultUserHeaders are the trusted proxy headers carrying the internal
// user's username, checked in order.
var DefaultUserHeaders = []string{"X-Auth-Request-User", "X-User"}

// DefaultSkipPaths are request paths exempt from identity mediation.
// The auth endpoints and portal pages are keygate's own surface and
// never carry proxied traffic.
var DefaultSkipPaths = []string{
	"/health",
	"/auth",
	"/signup",
	"/login",
	"/profile",
	"/docs",
	"/redoc",
	"/openapi.json",
	"/favicon.ico",
}

// AuthConfig defines identity mediation and session behavior.
type AuthConfig struct {
	// AccountPrefix prefixes every derived account ID. Default: "kg-".
	AccountPrefix string `yaml:"account_prefix" toml:"account_prefix"`

	SessionTTLMinutes   int `yaml:"session_ttl_minutes" toml:"session_ttl_minutes"`
	MagicLinkTTLMinutes int `yaml:"magic_link_ttl_minutes" toml:"magic_link_ttl_minutes"`

	Cookie CookieConfig `yaml:"cookie" toml:"cookie"`

	// EmailHeaders are trusted proxy headers carrying the user email,
	// checked in order. Defaults to X-Auth-Request-Email then X-Email.
	EmailHeaders []string `yaml:"email_headers" toml:"email_headers"`

	// UserHeaders are trusted proxy headers carrying the username,
	// checked in order. Defaults to X-Auth-Request-User then X-User.
	UserHeaders []string `yaml:"user_headers" toml:"user_headers"`

	// SkipPaths lists path prefixes exempt from identity mediation.
	SkipPaths []string `yaml:"skip_paths" toml:"skip_paths"`

	// FailOpen controls behavior when identity resolution fails on the
	// trusted-header path: true (default) forwards the request untouched,
	// false rejects it.
	FailOpen *bool `yaml:"fail_open" toml:"fail_open"`
}

// CookieConfig defines session cookie attributes.
type CookieConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Domain string `yaml:"domain" toml:"domain"`
	Secure *bool  `yaml:"secure" toml:"secure"`
}

// GetName returns the cookie name with default fallback.
func (c *CookieConfig) GetName() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

// IsSecure returns whether the Secure cookie attribute is set.
// Defaults to true.
func (c *CookieConfig) IsSecure() bool {
	if c.Secure == nil {
		return true
	}
	return *c.Secure
}

// GetAccountPrefix returns the account ID prefix with default fallback.
func (a *AuthConfig) GetAccountPrefix() string {
	if a.AccountPrefix == "" {
		return DefaultAccountPrefix
	}
	return a.AccountPrefix
}

// GetSessionTTL returns the session lifetime with default fallback (24h).
func (a *AuthConfig) GetSessionTTL() time.Duration {
	if a.SessionTTLMinutes <= 0 {
		return time.Duration(DefaultSessionTTLMinutes) * time.Minute
	}
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// GetMagicLinkTTL returns the magic-link token lifetime with default fallback (15m).
func (a *AuthConfig) GetMagicLinkTTL() time.Duration {
	if a.MagicLinkTTLMinutes <= 0 {
		return time.Duration(DefaultMagicLinkTTLMin) * time.Minute
	}
	return time.Duration(a.MagicLinkTTLMinutes) * time.Minute
}

// GetEmailHeaders returns the trusted email headers with default fallback.
func (a *AuthConfig) GetEmailHeaders() []string {
	if len(a.EmailHeaders) == 0 {
		return DefaultEmailHeaders
	}
	return a.EmailHeaders
}

// GetUserHeaders returns the trusted username headers with default fallback.
func (a *AuthConfig) GetUserHeaders() []string {
	if len(a.UserHeaders) == 0 {
		return DefaultUserHeaders
	}
	return a.UserHeaders
}

// GetSkipPaths returns the mediation-exempt paths with default fallback.
func (a *AuthConfig) GetSkipPaths() []string {
	if len(a.SkipPaths) == 0 {
		return DefaultSkipPaths
	}
	return a.SkipPaths
}

// IsFailOpen returns whether identity resolution failures forward the
// request untouched. Defaults to true.
func (a *AuthConfig) IsFailOpen() bool {
	if a.FailOpen == nil {
		return true
	}
	return *a.FailOpen
}

// DefaultOAuthStateTTLSeconds is the single-use OAuth state lifetime.
const DefaultOAuthStateTTLSeconds = 600

// OAuthConfig defines external OAuth providers.
type OAuthConfig struct {
	GitHub GitHubOAuthConfig `yaml:"github" toml:"github"`

	// StateTTLSeconds is the lifetime of the single-use state value.
	// Default: 600.
	StateTTLSeconds int `yaml:"state_ttl_seconds" toml:"state_ttl_seconds"`
}

// GitHubOAuthConfig defines the GitHub OAuth application.
type GitHubOAuthConfig struct {
	ClientID     string   `yaml:"client_id" toml:"client_id"`
	ClientSecret string   `yaml:"client_secret" toml:"client_secret"`
	Scopes       []string `yaml:"scopes" toml:"scopes"`
}

// IsEnabled returns true if a GitHub OAuth app is configured.
func (g *GitHubOAuthConfig) IsEnabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// GetScopes returns the OAuth scopes with default fallback.
func (g *GitHubOAuthConfig) GetScopes() []string {
	if len(g.Scopes) == 0 {
		return []string{"user:email"}
	}
	return g.Scopes
}

// GetStateTTL returns the OAuth state lifetime with default fallback (10m).
func (o *OAuthConfig) GetStateTTL() time.Duration {
	if o.StateTTLSeconds <= 0 {
		return DefaultOAuthStateTTLSeconds * time.Second
	}
	return time.Duration(o.StateTTLSeconds) * time.Second
}

// MailConfig defines SMTP delivery for magic-link email.
type MailConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	From     string `yaml:"from" toml:"from"`
	STARTTLS *bool  `yaml:"starttls" toml:"starttls"`

	// RatePerMinute throttles outbound sends across all recipients.
	// Default: 60.
	RatePerMinute int64 `yaml:"rate_per_minute" toml:"rate_per_minute"`
}

// GetRatePerMinute returns the outbound send throttle with default fallback.
func (m *MailConfig) GetRatePerMinute() int64 {
	if m.RatePerMinute <= 0 {
		return 60
	}
	return m.RatePerMinute
}

// IsEnabled returns true if an SMTP host is configured.
// When disabled, magic links are logged instead of emailed.
func (m *MailConfig) IsEnabled() bool {
	return m.Host != ""
}

// GetPort returns the SMTP port with default fallback (587).
func (m *MailConfig) GetPort() int {
	if m.Port <= 0 {
		return 587
	}
	return m.Port
}

// UseSTARTTLS returns whether to negotiate STARTTLS. Defaults to true.
func (m *MailConfig) UseSTARTTLS() bool {
	if m.STARTTLS == nil {
		return true
	}
	return *m.STARTTLS
}

// Rate limit action names.
const (
	ActionLogin     = "login"
	ActionSignup    = "signup"
	ActionMagicLink = "magic_link"
	ActionOAuth     = "oauth"
	ActionDefault   = "default"
)

// Rule bounds attempts for one action: at most Limit attempts per Window.
type Rule struct {
	Limit         int `yaml:"limit" toml:"limit"`
	WindowSeconds int `yaml:"window_seconds" toml:"window_seconds"`
}

// Window returns the rule window as a duration.
func (r Rule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// defaultRules are the built-in per-action limits.
var defaultRules = map[string]Rule{
	ActionLogin:     {Limit: 5, WindowSeconds: 60},
	ActionSignup:    {Limit: 3, WindowSeconds: 300},
	ActionMagicLink: {Limit: 3, WindowSeconds: 60},
	ActionOAuth:     {Limit: 10, WindowSeconds: 60},
	ActionDefault:   {Limit: 30, WindowSeconds: 60},
}

// RateLimitConfig defines fixed-window rate limiting.
type RateLimitConfig struct {
	Enabled *bool `yaml:"enabled" toml:"enabled"`

	// Rules overrides the built-in per-action limits. Unknown actions fall
	// back to the "default" rule.
	Rules map[string]Rule `yaml:"rules" toml:"rules"`

	// LocalRPS and LocalBurst configure the per-instance surge guard that
	// sits in front of the shared limiter. Zero disables it.
	LocalRPS   float64 `yaml:"local_rps" toml:"local_rps"`
	LocalBurst int     `yaml:"local_burst" toml:"local_burst"`
}

// IsEnabled returns whether rate limiting is active. Defaults to true.
func (r *RateLimitConfig) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// GetRule returns the effective rule for an action. Configured rules take
// precedence over built-ins; unknown actions use the default rule.
func (r *RateLimitConfig) GetRule(action string) Rule {
	if rule, ok := r.Rules[action]; ok && rule.Limit > 0 && rule.WindowSeconds > 0 {
		return rule
	}
	if rule, ok := defaultRules[action]; ok {
		return rule
	}
	if rule, ok := r.Rules[ActionDefault]; ok && rule.Limit > 0 && rule.WindowSeconds > 0 {
		return rule
	}
	return defaultRules[ActionDefault]
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
	Output string `yaml:"output" toml:"output"` // stdout, stderr, or file path
	Pretty bool   `yaml:"pretty" toml:"pretty"` // enable colored console output
}

// ParseLevel converts a string log level to zerolog.Level.
// Returns zerolog.InfoLevel if the level string is invalid.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
