package web

import (
	"net/http"

	"keygate/internal/authn"
	"keygate/internal/config"
	"keygate/internal/ratelimit"
)

// NewRouter assembles the full HTTP handler: routes plus the middleware
// stack. Middleware order, outermost first:
//  1. RequestIDMiddleware - generates the ID everything else logs
//  2. LoggingMiddleware - logs with the ID
//  3. SecurityHeadersMiddleware
//  4. CORSMiddleware
//  5. MaxBodyBytesMiddleware
//  6. SurgeMiddleware - local load shedding on /auth/*
//  7. identity mediation (authn) - trusted-header resolution, skip-listed
//     for keygate's own surface
//
// The issuer may be nil, which disables identity mediation entirely.
func NewRouter(
	handler *Handler,
	runtime config.RuntimeConfig,
	issuer authn.KeyIssuer,
	surge *ratelimit.SurgeGuard,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/signup", handler.Signup)
	mux.HandleFunc("POST /auth/login", handler.Login)
	mux.HandleFunc("GET /auth/verify", handler.Verify)
	mux.HandleFunc("POST /auth/logout", handler.Logout)
	mux.HandleFunc("GET /auth/me", handler.Me)
	mux.HandleFunc("GET /auth/oauth/start", handler.OAuthStart)
	mux.HandleFunc("GET /auth/oauth/callback", handler.OAuthCallback)

	mux.HandleFunc("GET /health", handler.Health)

	mux.HandleFunc("GET /signup", handler.page("signup.html"))
	mux.HandleFunc("GET /login", handler.page("login.html"))
	mux.HandleFunc("GET /profile", handler.page("profile.html"))

	var root http.Handler = mux
	if issuer != nil {
		root = authn.Middleware(runtime, issuer)(root)
	}
	root = SurgeMiddleware(surge)(root)
	root = MaxBodyBytesMiddleware(func() int64 {
		return runtime.Get().Server.GetMaxBodyBytes()
	})(root)
	root = CORSMiddleware(runtime)(root)
	root = SecurityHeadersMiddleware()(root)
	root = LoggingMiddleware()(root)
	root = RequestIDMiddleware()(root)

	return root
}
