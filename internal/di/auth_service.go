package di

import (
	"github.com/samber/do/v2"

	"keygate/internal/oauth"
	"keygate/internal/session"
	"keygate/internal/token"
)

// TokenService wraps the magic-link token issuer for DI.
type TokenService struct {
	Issuer *token.Issuer
}

// SessionService wraps the session manager for DI.
type SessionService struct {
	Manager *session.Manager
}

// OAuthService wraps the GitHub flow and its state manager for DI.
type OAuthService struct {
	Flow   *oauth.GitHubFlow
	States *oauth.StateManager
}

// NewTokens creates the magic-link token issuer.
func NewTokens(i do.Injector) (*TokenService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	storeSvc := do.MustInvoke[*StoreService](i)

	return &TokenService{Issuer: token.NewIssuer(storeSvc.Store, cfgSvc)}, nil
}

// NewSessions creates the session manager.
func NewSessions(i do.Injector) (*SessionService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	storeSvc := do.MustInvoke[*StoreService](i)

	return &SessionService{Manager: session.NewManager(storeSvc.Store, cfgSvc)}, nil
}

// NewOAuth creates the GitHub OAuth flow and state manager. Both are
// always constructed; the flow reports Enabled() false when no client
// credentials are configured and the handlers 404 accordingly.
func NewOAuth(i do.Injector) (*OAuthService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	storeSvc := do.MustInvoke[*StoreService](i)

	return &OAuthService{
		Flow:   oauth.NewGitHubFlow(cfgSvc),
		States: oauth.NewStateManager(storeSvc.Store, cfgSvc),
	}, nil
}
