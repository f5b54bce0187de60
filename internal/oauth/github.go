// Package oauth implements the GitHub authorization-code flow: single-use
// CSRF state, code exchange, and verified-email resolution. The flow never
// trusts an unverified address; an account with no verified email cannot
// authenticate through this path.
package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"keygate/internal/config"
)

// GitHub API endpoints, overridable in tests.
const (
	defaultUserURL   = "https://api.github.com/user"
	defaultEmailsURL = "https://api.github.com/user/emails"
)

// callbackPath is where the provider redirects back to keygate.
const callbackPath = "/auth/oauth/callback"

// maxProfileBytes caps provider API response reads.
const maxProfileBytes = 1 << 20

// User is the provider profile of an authenticated caller.
type User struct {
	ID        int64
	Login     string
	Name      string
	AvatarURL string
}

// DisplayName returns the user's name, falling back to the login handle.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}

// GitHubFlow drives the GitHub authorization-code flow.
type GitHubFlow struct {
	runtime config.RuntimeConfig
	http    *http.Client

	// endpoint and API URLs are fixed in production, swapped in tests.
	endpoint  oauth2.Endpoint
	userURL   string
	emailsURL string
}

// NewGitHubFlow creates a GitHubFlow.
func NewGitHubFlow(runtime config.RuntimeConfig) *GitHubFlow {
	return &GitHubFlow{
		runtime:   runtime,
		http:      &http.Client{Timeout: 10 * time.Second},
		endpoint:  github.Endpoint,
		userURL:   defaultUserURL,
		emailsURL: defaultEmailsURL,
	}
}

// Enabled reports whether a GitHub OAuth application is configured.
func (f *GitHubFlow) Enabled() bool {
	return f.runtime.Get().OAuth.GitHub.IsEnabled()
}

// oauthConfig assembles the oauth2 config from current runtime settings,
// so credential rotation via hot reload takes effect without restart.
func (f *GitHubFlow) oauthConfig() *oauth2.Config {
	cfg := f.runtime.Get()
	return &oauth2.Config{
		ClientID:     cfg.OAuth.GitHub.ClientID,
		ClientSecret: cfg.OAuth.GitHub.ClientSecret,
		Scopes:       cfg.OAuth.GitHub.GetScopes(),
		Endpoint:     f.endpoint,
		RedirectURL:  strings.TrimSuffix(cfg.Server.PublicBaseURL, "/") + callbackPath,
	}
}

// AuthURL returns the provider authorization URL carrying the given state.
func (f *GitHubFlow) AuthURL(state string) string {
	return f.oauthConfig().AuthCodeURL(state)
}

// Exchange swaps an authorization code for an access token.
func (f *GitHubFlow) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.http)
	tok, err := f.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	return tok, nil
}

// FetchUser reads the authenticated user's profile.
func (f *GitHubFlow) FetchUser(ctx context.Context, tok *oauth2.Token) (User, error) {
	body, err := f.apiGet(ctx, f.userURL, tok)
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}

	return User{
		ID:        gjson.GetBytes(body, "id").Int(),
		Login:     gjson.GetBytes(body, "login").String(),
		Name:      gjson.GetBytes(body, "name").String(),
		AvatarURL: gjson.GetBytes(body, "avatar_url").String(),
	}, nil
}

// ResolveEmail determines the caller's verified email address. The primary
// verified address wins; otherwise the first verified address is used.
func (f *GitHubFlow) ResolveEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	body, err := f.apiGet(ctx, f.emailsURL, tok)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}

	entries := gjson.ParseBytes(body).Array()

	for _, entry := range entries {
		if entry.Get("primary").Bool() && entry.Get("verified").Bool() {
			return entry.Get("email").String(), nil
		}
	}
	for _, entry := range entries {
		if entry.Get("verified").Bool() {
			return entry.Get("email").String(), nil
		}
	}
	return "", ErrNoVerifiedEmail
}

// apiGet performs an authenticated provider API request.
func (f *GitHubFlow) apiGet(ctx context.Context, url string, tok *oauth2.Token) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
}
