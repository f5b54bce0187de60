// Package config provides configuration loading, parsing, and validation for keygate.
package config

import (
	"net"
	"net/url"
	"strings"
)

// Valid logging levels.
var validLogLevels = map[string]bool{
	"":      true, // Empty defaults to info
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid logging formats.
var validLogFormats = map[string]bool{
	"":        true, // Empty defaults to json
	"json":    true,
	"console": true,
	"text":    true, // Alias for console
	"pretty":  true,
}

// Validate checks the configuration for errors.
// It validates all required fields, valid values, and cross-field constraints.
// Returns a ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{}

	validateServer(c, errs)
	validateGateway(c, errs)
	validateStore(c, errs)
	validateAuth(c, errs)
	validateOAuth(c, errs)
	validateMail(c, errs)
	validateRateLimit(c, errs)
	validateLogging(c, errs)

	return errs.ToError()
}

// validateServer validates the server configuration section.
func validateServer(c *Config, errs *ValidationError) {
	if c.Server.Listen == "" {
		errs.Add("server.listen is required")
	} else {
		validateListenAddress(c.Server.Listen, errs)
	}

	if c.Server.PublicBaseURL != "" {
		u, err := url.Parse(c.Server.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs.Addf("server.public_base_url must be an absolute URL (got %q)", c.Server.PublicBaseURL)
		}
	}

	if c.Server.TimeoutMS < 0 {
		errs.Add("server.timeout_ms must be >= 0")
	}
	if c.Server.MaxBodyBytes < 0 {
		errs.Add("server.max_body_bytes must be >= 0")
	}
}

// validateListenAddress validates a listen address in host:port format.
func validateListenAddress(addr string, errs *ValidationError) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		errs.Addf("server.listen must be in host:port format (got %q)", addr)
		return
	}

	// Host can be empty (listen on all interfaces) or a valid IP/hostname
	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				errs.Add("server.listen host contains invalid characters")
			}
		}
	}

	if port == "" {
		errs.Add("server.listen port is required")
	}
}

// validateGateway validates the gateway configuration section.
func validateGateway(c *Config, errs *ValidationError) {
	if c.Gateway.BaseURL == "" {
		errs.Add("gateway.base_url is required")
	} else {
		u, err := url.Parse(c.Gateway.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs.Addf("gateway.base_url must be an absolute URL (got %q)", c.Gateway.BaseURL)
		}
	}

	if c.Gateway.AdminKey == "" {
		errs.Add("gateway.admin_key is required")
	}
	if c.Gateway.TimeoutMS < 0 {
		errs.Add("gateway.timeout_ms must be >= 0")
	}
	if c.Gateway.KeyMaxBudget < 0 {
		errs.Add("gateway.key_max_budget must be >= 0")
	}
}

// validateStore validates the store configuration section.
func validateStore(c *Config, errs *ValidationError) {
	if c.Store.Mode == "" {
		// Default applied at load time by callers; an unset store section
		// falls back to memory mode.
		return
	}
	if err := c.Store.Validate(); err != nil {
		errs.Add(err.Error())
	}
}

// validateAuth validates the auth configuration section.
func validateAuth(c *Config, errs *ValidationError) {
	if c.Auth.SessionTTLMinutes < 0 {
		errs.Add("auth.session_ttl_minutes must be >= 0")
	}
	if c.Auth.MagicLinkTTLMinutes < 0 {
		errs.Add("auth.magic_link_ttl_minutes must be >= 0")
	}
	for _, p := range c.Auth.SkipPaths {
		if !strings.HasPrefix(p, "/") {
			errs.Addf("auth.skip_paths entries must start with / (got %q)", p)
		}
	}
}

// validateOAuth validates the oauth configuration section.
func validateOAuth(c *Config, errs *ValidationError) {
	gh := &c.OAuth.GitHub
	if gh.ClientID != "" && gh.ClientSecret == "" {
		errs.Add("oauth.github.client_secret is required when client_id is set")
	}
	if gh.ClientSecret != "" && gh.ClientID == "" {
		errs.Add("oauth.github.client_id is required when client_secret is set")
	}
	if gh.IsEnabled() && c.Server.PublicBaseURL == "" {
		errs.Add("server.public_base_url is required when oauth.github is enabled")
	}
	if c.OAuth.StateTTLSeconds < 0 {
		errs.Add("oauth.state_ttl_seconds must be >= 0")
	}
}

// validateMail validates the mail configuration section.
func validateMail(c *Config, errs *ValidationError) {
	if !c.Mail.IsEnabled() {
		return
	}
	if c.Mail.From == "" {
		errs.Add("mail.from is required when mail.host is set")
	}
	if c.Mail.Port < 0 || c.Mail.Port > 65535 {
		errs.Addf("mail.port must be 0-65535 (got %d)", c.Mail.Port)
	}
	if c.Server.PublicBaseURL == "" {
		errs.Add("server.public_base_url is required when mail.host is set")
	}
}

// validateRateLimit validates the rate_limit configuration section.
func validateRateLimit(c *Config, errs *ValidationError) {
	for action, rule := range c.RateLimit.Rules {
		if rule.Limit < 0 {
			errs.Addf("rate_limit.rules[%s].limit must be >= 0 (got %d)", action, rule.Limit)
		}
		if rule.WindowSeconds < 0 {
			errs.Addf("rate_limit.rules[%s].window_seconds must be >= 0 (got %d)", action, rule.WindowSeconds)
		}
	}
	if c.RateLimit.LocalRPS < 0 {
		errs.Add("rate_limit.local_rps must be >= 0")
	}
	if c.RateLimit.LocalBurst < 0 {
		errs.Add("rate_limit.local_burst must be >= 0")
	}
}

// validateLogging validates the logging configuration section.
func validateLogging(c *Config, errs *ValidationError) {
	if !validLogLevels[c.Logging.Level] {
		errs.Addf("logging.level is invalid (got %q, valid: debug, info, warn, error)",
			c.Logging.Level)
	}

	if !validLogFormats[c.Logging.Format] {
		errs.Addf("logging.format is invalid (got %q, valid: json, console, text, pretty)",
			c.Logging.Format)
	}
}
