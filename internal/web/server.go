// Package web implements keygate's HTTP surface: the auth endpoints, the
// portal pages, and the middleware stack in front of them.
package web

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"keygate/internal/config"
)

// defaultWriteTimeout bounds a response when no server timeout is configured.
const defaultWriteTimeout = 30 * time.Second

// Server wraps http.Server with keygate configuration.
type Server struct {
	httpServer *http.Server
	addr       string
}

// NewServer creates a Server from the server config.
// Timeout rationale:
//   - ReadTimeout: 10s - protect against slowloris attacks
//   - WriteTimeout: configurable, default 30s - auth flows are short
//   - IdleTimeout: 120s - reasonable keep-alive
//
// If EnableHTTP2 is set, HTTP/2 cleartext (h2c) is enabled for non-TLS
// connections, which matters when keygate runs behind a TLS-terminating proxy.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	finalHandler := handler
	if cfg.EnableHTTP2 {
		h2s := &http2.Server{}
		finalHandler = h2c.NewHandler(handler, h2s)
	}

	writeTimeout := cfg.GetTimeoutOption().OrElse(defaultWriteTimeout)

	return &Server{
		addr: cfg.Listen,
		httpServer: &http.Server{
			Addr:         cfg.Listen,
			Handler:      finalHandler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAndServe starts the server (blocks).
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
