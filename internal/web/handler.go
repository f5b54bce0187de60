package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/rs/zerolog"

	"keygate/internal/config"
	"keygate/internal/gateway"
	"keygate/internal/health"
	kgmail "keygate/internal/mail"
	"keygate/internal/oauth"
	"keygate/internal/ratelimit"
	"keygate/internal/session"
	"keygate/internal/token"
)

// magicLinkSentMsg is the uniform response for signup and login. It must not
// vary with account existence.
const magicLinkSentMsg = "Check your email for the magic link"

// AccountService is the slice of the account resolver the handlers need.
type AccountService interface {
	EnsureAccount(ctx context.Context, email string) (string, error)
	AccountExists(ctx context.Context, email string) (bool, error)
	ResolveAndIssue(ctx context.Context, email string) (gateway.Credential, error)
}

// Mailer queues outbound email without blocking the request.
type Mailer interface {
	Enqueue(msg kgmail.Message) bool
}

// Deps bundles the collaborators behind the auth endpoints.
type Deps struct {
	Runtime  config.RuntimeConfig
	Accounts AccountService
	Tokens   *token.Issuer
	Sessions *session.Manager
	OAuth    *oauth.GitHubFlow
	States   *oauth.StateManager
	Limiter  *ratelimit.Limiter
	Mailer   Mailer
	Tracker  *health.Tracker
}

// Handler serves the auth endpoints, the portal pages, and health.
type Handler struct {
	deps Deps
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

type signupRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
}

type loginRequest struct {
	Email string `json:"email"`
}

// authResponse is shared by signup, login, and logout. AccountID is omitted
// when empty so the login response shape never hints at account existence.
type authResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	AccountID string `json:"account_id,omitempty"`
}

type verifyResponse struct {
	Success    bool   `json:"success"`
	Email      string `json:"email"`
	Credential string `json:"credential"`
	Message    string `json:"message"`
}

type meResponse struct {
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	AccountID  string `json:"account_id"`
	Credential string `json:"credential"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Targets map[string]string `json:"targets,omitempty"`
}

// Signup handles new account signup: resolve (create-if-absent), issue a
// magic link, and queue the email. Whether the account already existed is
// never revealed.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	email, ok := validEmail(w, req.Email)
	if !ok {
		return
	}

	decision := h.deps.Limiter.CheckBoth(ctx, config.ActionSignup, ratelimit.ClientIP(r), email)
	if !decision.Allowed {
		WriteRateLimited(w, decision)
		return
	}

	accountID, err := h.deps.Accounts.EnsureAccount(ctx, email)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("signup account resolution failed")
		WriteError(w, http.StatusInternalServerError, "resolution_failed",
			"Signup failed. Please try again.")
		return
	}

	tok, err := h.deps.Tokens.Issue(ctx, token.Claims{
		Email:    email,
		Name:     req.Name,
		Company:  req.Company,
		IsSignup: true,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("signup token issuance failed")
		WriteError(w, http.StatusInternalServerError, "internal_error",
			"Signup failed. Please try again.")
		return
	}

	h.sendMagicLink(ctx, email, req.Name, tok)

	writeJSON(w, http.StatusOK, authResponse{
		Success:   true,
		Message:   magicLinkSentMsg,
		AccountID: accountID,
	})
}

// Login issues a magic link for an existing account. The response is
// byte-identical whether or not the account exists; only the email send is
// conditional.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	email, ok := validEmail(w, req.Email)
	if !ok {
		return
	}

	decision := h.deps.Limiter.CheckBoth(ctx, config.ActionLogin, ratelimit.ClientIP(r), email)
	if !decision.Allowed {
		WriteRateLimited(w, decision)
		return
	}

	exists, err := h.deps.Accounts.AccountExists(ctx, email)
	if err != nil {
		// A degraded gateway must not change the response; the caller can
		// retry once a reissued link actually arrives.
		zerolog.Ctx(ctx).Warn().Err(err).Msg("login account lookup failed")
		exists = false
	}

	tok, err := h.deps.Tokens.Issue(ctx, token.Claims{Email: email})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("login token issuance failed")
		WriteError(w, http.StatusInternalServerError, "internal_error",
			"Login failed. Please try again.")
		return
	}

	if exists {
		h.sendMagicLink(ctx, email, "", tok)
	}

	writeJSON(w, http.StatusOK, authResponse{Success: true, Message: magicLinkSentMsg})
}

// Verify redeems a magic-link token and establishes a session.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	decision := h.deps.Limiter.CheckIP(ctx, config.ActionMagicLink, ratelimit.ClientIP(r))
	if !decision.Allowed {
		WriteRateLimited(w, decision)
		return
	}

	claims, err := h.deps.Tokens.Redeem(ctx, r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			WriteError(w, http.StatusBadRequest, "invalid_token",
				"Invalid or expired magic link")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("token redemption failed")
		WriteError(w, http.StatusInternalServerError, "internal_error",
			"Verification failed. Please try again.")
		return
	}

	cred, err := h.deps.Accounts.ResolveAndIssue(ctx, claims.Email)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("verify account resolution failed")
		WriteError(w, http.StatusInternalServerError, "resolution_failed",
			"Verification failed. Please try again.")
		return
	}

	sessionToken, err := h.deps.Sessions.Create(ctx, session.Record{
		Email:     claims.Email,
		AccountID: cred.AccountID,
		Key:       cred.Key,
		Name:      claims.Name,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("session creation failed")
		WriteError(w, http.StatusInternalServerError, "internal_error",
			"Failed to create session")
		return
	}

	session.SetCookie(w, h.authConfig(), sessionToken)
	writeJSON(w, http.StatusOK, verifyResponse{
		Success:    true,
		Email:      claims.Email,
		Credential: cred.Key,
		Message:    "Successfully authenticated",
	})
}

// Logout destroys the session record and clears the cookie. It never fails:
// an absent or already-expired session still results in a cleared cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := h.authConfig()

	if tok, ok := session.FromRequest(r, cfg); ok {
		if _, err := h.deps.Sessions.Delete(ctx, tok); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("session delete failed during logout")
		}
	}

	session.ClearCookie(w, cfg)
	writeJSON(w, http.StatusOK, authResponse{Success: true, Message: "Signed out"})
}

// Me returns the authenticated caller's identity, refreshing the session TTL.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := h.authConfig()

	tok, ok := session.FromRequest(r, cfg)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "authentication_error",
			"authentication required")
		return
	}

	rec, err := h.deps.Sessions.Get(ctx, tok)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			session.ClearCookie(w, cfg)
			WriteError(w, http.StatusUnauthorized, "authentication_error",
				"authentication required")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("session lookup failed")
		WriteError(w, http.StatusInternalServerError, "internal_error",
			"Could not load profile")
		return
	}

	if _, err := h.deps.Sessions.Refresh(ctx, tok); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("session refresh failed")
	}

	writeJSON(w, http.StatusOK, meResponse{
		Email:      rec.Email,
		Name:       rec.Name,
		AccountID:  rec.AccountID,
		Credential: rec.Key,
	})
}

// OAuthStart issues CSRF state and redirects to the provider.
func (h *Handler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.deps.OAuth.Enabled() {
		WriteError(w, http.StatusNotFound, "not_found", "OAuth sign-in is not configured")
		return
	}

	decision := h.deps.Limiter.CheckIP(ctx, config.ActionOAuth, ratelimit.ClientIP(r))
	if !decision.Allowed {
		WriteRateLimited(w, decision)
		return
	}

	state, err := h.deps.States.Issue(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("oauth state issuance failed")
		WriteError(w, http.StatusInternalServerError, "internal_error",
			"Could not start OAuth sign-in")
		return
	}

	http.Redirect(w, r, h.deps.OAuth.AuthURL(state), http.StatusFound)
}

// OAuthCallback completes the authorization-code flow and establishes a
// session. Nothing mutates before the single-use state check passes.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.deps.OAuth.Enabled() {
		WriteError(w, http.StatusNotFound, "not_found", "OAuth sign-in is not configured")
		return
	}

	decision := h.deps.Limiter.CheckIP(ctx, config.ActionOAuth, ratelimit.ClientIP(r))
	if !decision.Allowed {
		WriteRateLimited(w, decision)
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		WriteError(w, http.StatusBadRequest, "oauth_error",
			"Provider returned an error: "+providerErr)
		return
	}

	if err := h.deps.States.Consume(ctx, query.Get("state")); err != nil {
		if errors.Is(err, oauth.ErrInvalidState) {
			WriteError(w, http.StatusBadRequest, "invalid_state",
				"Invalid or expired OAuth state")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("oauth state consumption failed")
		WriteError(w, http.StatusInternalServerError, "internal_error",
			"OAuth sign-in failed")
		return
	}

	code := query.Get("code")
	if code == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request",
			"missing authorization code")
		return
	}

	accessToken, err := h.deps.OAuth.Exchange(ctx, code)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("oauth code exchange failed")
		WriteError(w, http.StatusInternalServerError, "oauth_error", "OAuth sign-in failed")
		return
	}

	user, err := h.deps.OAuth.FetchUser(ctx, accessToken)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("oauth profile fetch failed")
		WriteError(w, http.StatusInternalServerError, "oauth_error", "OAuth sign-in failed")
		return
	}

	email, err := h.deps.OAuth.ResolveEmail(ctx, accessToken)
	if err != nil {
		if errors.Is(err, oauth.ErrNoVerifiedEmail) {
			WriteError(w, http.StatusBadRequest, "no_verified_email",
				"No verified email address on the provider account")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("oauth email resolution failed")
		WriteError(w, http.StatusInternalServerError, "oauth_error", "OAuth sign-in failed")
		return
	}

	cred, err := h.deps.Accounts.ResolveAndIssue(ctx, email)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("oauth account resolution failed")
		WriteError(w, http.StatusInternalServerError, "resolution_failed",
			"OAuth sign-in failed")
		return
	}

	sessionToken, err := h.deps.Sessions.Create(ctx, session.Record{
		Email:     email,
		AccountID: cred.AccountID,
		Key:       cred.Key,
		Name:      user.DisplayName(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("session creation failed")
		WriteError(w, http.StatusInternalServerError, "internal_error",
			"Failed to create session")
		return
	}

	session.SetCookie(w, h.authConfig(), sessionToken)
	http.Redirect(w, r, "/profile", http.StatusFound)
}

// Health reports liveness plus the circuit state of tracked targets.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.deps.Tracker != nil {
		states := h.deps.Tracker.AllStates()
		if len(states) > 0 {
			resp.Targets = make(map[string]string, len(states))
			for name, state := range states {
				resp.Targets[name] = state.String()
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// sendMagicLink composes and queues the magic-link email. Failures are
// logged and swallowed: the token stays valid and the user can ask for a
// new link.
func (h *Handler) sendMagicLink(ctx context.Context, email, name, tok string) {
	cfg := h.deps.Runtime.Get()
	msg, err := kgmail.ComposeMagicLink(
		cfg.Server.PublicBaseURL, email, name, tok, cfg.Auth.GetMagicLinkTTL())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("magic-link email composition failed")
		return
	}
	if h.deps.Mailer != nil {
		h.deps.Mailer.Enqueue(msg)
	}
}

func (h *Handler) authConfig() *config.AuthConfig {
	return &h.deps.Runtime.Get().Auth
}

// decodeBody parses a JSON request body, writing the error response itself
// on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if IsBodyTooLargeError(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				"Request body exceeds the maximum allowed size")
			return false
		}
		WriteError(w, http.StatusBadRequest, "invalid_request",
			"request body must be valid JSON")
		return false
	}
	return true
}

// validEmail normalizes and validates an email address, writing the error
// response itself on failure.
func validEmail(w http.ResponseWriter, email string) (string, bool) {
	normalized := gateway.NormalizeEmail(email)
	if normalized == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "email: required")
		return "", false
	}
	if _, err := mail.ParseAddress(normalized); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "email: invalid address")
		return "", false
	}
	return normalized, true
}
