package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestServerConfig_GetTimeoutOption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		timeoutMS int
		wantSome  bool
		want      time.Duration
	}{
		{"unset", 0, false, 0},
		{"negative", -5, false, 0},
		{"set", 60000, true, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := ServerConfig{TimeoutMS: tt.timeoutMS}
			opt := s.GetTimeoutOption()
			assert.Equal(t, tt.wantSome, opt.IsPresent())
			if tt.wantSome {
				assert.Equal(t, tt.want, opt.MustGet())
			}
		})
	}
}

func TestServerConfig_GetMaxBodyBytes(t *testing.T) {
	t.Parallel()

	s := ServerConfig{}
	assert.Equal(t, int64(1<<20), s.GetMaxBodyBytes())

	s.MaxBodyBytes = 4096
	assert.Equal(t, int64(4096), s.GetMaxBodyBytes())
}

func TestGatewayConfig_Defaults(t *testing.T) {
	t.Parallel()

	g := GatewayConfig{}
	assert.Equal(t, 10*time.Second, g.GetTimeout())
	assert.Equal(t, "30d", g.GetKeyBudgetDuration())
	assert.Equal(t, 5*time.Minute, g.GetExistenceCacheTTL())
	assert.True(t, g.GetKeyMaxBudgetOption().IsAbsent())

	g = GatewayConfig{
		TimeoutMS:          2000,
		KeyBudgetDuration:  "7d",
		KeyMaxBudget:       25.0,
		ExistenceCacheTTLS: 60,
	}
	assert.Equal(t, 2*time.Second, g.GetTimeout())
	assert.Equal(t, "7d", g.GetKeyBudgetDuration())
	assert.InEpsilon(t, 25.0, g.GetKeyMaxBudgetOption().MustGet(), 0.0001)
	assert.Equal(t, time.Minute, g.GetExistenceCacheTTL())
}

func TestAuthConfig_Defaults(t *testing.T) {
	t.Parallel()

	a := AuthConfig{}
	assert.Equal(t, "kg-", a.GetAccountPrefix())
	assert.Equal(t, 24*time.Hour, a.GetSessionTTL())
	assert.Equal(t, 15*time.Minute, a.GetMagicLinkTTL())
	assert.Equal(t, []string{"X-Auth-Request-Email", "X-Email"}, a.GetEmailHeaders())
	assert.Equal(t, []string{"X-Auth-Request-User", "X-User"}, a.GetUserHeaders())
	assert.Contains(t, a.GetSkipPaths(), "/health")
	assert.True(t, a.IsFailOpen(), "fail-open should default to true")
}

func TestAuthConfig_Overrides(t *testing.T) {
	t.Parallel()

	failClosed := false
	a := AuthConfig{
		AccountPrefix:       "acct-",
		SessionTTLMinutes:   60,
		MagicLinkTTLMinutes: 5,
		EmailHeaders:        []string{"X-Custom-Email"},
		SkipPaths:           []string{"/status"},
		FailOpen:            &failClosed,
	}
	assert.Equal(t, "acct-", a.GetAccountPrefix())
	assert.Equal(t, time.Hour, a.GetSessionTTL())
	assert.Equal(t, 5*time.Minute, a.GetMagicLinkTTL())
	assert.Equal(t, []string{"X-Custom-Email"}, a.GetEmailHeaders())
	assert.Equal(t, []string{"/status"}, a.GetSkipPaths())
	assert.False(t, a.IsFailOpen())
}

func TestCookieConfig_Defaults(t *testing.T) {
	t.Parallel()

	c := CookieConfig{}
	assert.Equal(t, DefaultCookieName, c.GetName())
	assert.True(t, c.IsSecure())

	insecure := false
	c = CookieConfig{Name: "sess", Secure: &insecure}
	assert.Equal(t, "sess", c.GetName())
	assert.False(t, c.IsSecure())
}

func TestGitHubOAuthConfig_IsEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    GitHubOAuthConfig
		wantOn bool
	}{
		{"empty", GitHubOAuthConfig{}, false},
		{"id only", GitHubOAuthConfig{ClientID: "id"}, false},
		{"secret only", GitHubOAuthConfig{ClientSecret: "sec"}, false},
		{"both", GitHubOAuthConfig{ClientID: "id", ClientSecret: "sec"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantOn, tt.cfg.IsEnabled())
		})
	}
}

func TestGitHubOAuthConfig_GetScopes(t *testing.T) {
	t.Parallel()

	g := GitHubOAuthConfig{}
	assert.Equal(t, []string{"user:email"}, g.GetScopes())

	g.Scopes = []string{"read:user"}
	assert.Equal(t, []string{"read:user"}, g.GetScopes())
}

func TestOAuthConfig_GetStateTTL(t *testing.T) {
	t.Parallel()

	o := OAuthConfig{}
	assert.Equal(t, 10*time.Minute, o.GetStateTTL())

	o.StateTTLSeconds = 120
	assert.Equal(t, 2*time.Minute, o.GetStateTTL())
}

func TestMailConfig(t *testing.T) {
	t.Parallel()

	m := MailConfig{}
	assert.False(t, m.IsEnabled())
	assert.Equal(t, 587, m.GetPort())
	assert.True(t, m.UseSTARTTLS())

	plain := false
	m = MailConfig{Host: "smtp.example.com", Port: 25, STARTTLS: &plain}
	assert.True(t, m.IsEnabled())
	assert.Equal(t, 25, m.GetPort())
	assert.False(t, m.UseSTARTTLS())
}

func TestRateLimitConfig_GetRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    RateLimitConfig
		action string
		want   Rule
	}{
		{
			name:   "built-in login",
			cfg:    RateLimitConfig{},
			action: ActionLogin,
			want:   Rule{Limit: 5, WindowSeconds: 60},
		},
		{
			name:   "built-in signup",
			cfg:    RateLimitConfig{},
			action: ActionSignup,
			want:   Rule{Limit: 3, WindowSeconds: 300},
		},
		{
			name:   "built-in magic link",
			cfg:    RateLimitConfig{},
			action: ActionMagicLink,
			want:   Rule{Limit: 3, WindowSeconds: 60},
		},
		{
			name:   "built-in oauth",
			cfg:    RateLimitConfig{},
			action: ActionOAuth,
			want:   Rule{Limit: 10, WindowSeconds: 60},
		},
		{
			name:   "unknown action falls back to default",
			cfg:    RateLimitConfig{},
			action: "password_reset",
			want:   Rule{Limit: 30, WindowSeconds: 60},
		},
		{
			name: "configured rule wins",
			cfg: RateLimitConfig{
				Rules: map[string]Rule{
					ActionLogin: {Limit: 10, WindowSeconds: 30},
				},
			},
			action: ActionLogin,
			want:   Rule{Limit: 10, WindowSeconds: 30},
		},
		{
			name: "zero-limit override is ignored",
			cfg: RateLimitConfig{
				Rules: map[string]Rule{
					ActionLogin: {Limit: 0, WindowSeconds: 30},
				},
			},
			action: ActionLogin,
			want:   Rule{Limit: 5, WindowSeconds: 60},
		},
		{
			name: "configured default covers unknown actions",
			cfg: RateLimitConfig{
				Rules: map[string]Rule{
					ActionDefault: {Limit: 100, WindowSeconds: 10},
				},
			},
			action: "password_reset",
			want:   Rule{Limit: 100, WindowSeconds: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.GetRule(tt.action))
		})
	}
}

func TestRateLimitConfig_IsEnabled(t *testing.T) {
	t.Parallel()

	r := RateLimitConfig{}
	assert.True(t, r.IsEnabled(), "rate limiting should default to enabled")

	off := false
	r.Enabled = &off
	assert.False(t, r.IsEnabled())
}

func TestRule_Window(t *testing.T) {
	t.Parallel()

	r := Rule{Limit: 5, WindowSeconds: 60}
	assert.Equal(t, time.Minute, r.Window())
}

func TestLoggingConfig_ParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			t.Parallel()
			l := LoggingConfig{Level: tt.level}
			assert.Equal(t, tt.want, l.ParseLevel())
		})
	}
}
