package di

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"keygate/internal/web"
)

// ServerService wraps the HTTP server for DI.
type ServerService struct {
	Server *web.Server
}

// NewHTTPServer creates the HTTP server around the routed handler.
func NewHTTPServer(i do.Injector) (*ServerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	handlerSvc := do.MustInvoke[*HandlerService](i)

	server := web.NewServer(cfgSvc.Get().Server, handlerSvc.Router)
	return &ServerService{Server: server}, nil
}

// Shutdown implements do.Shutdowner, draining in-flight requests before
// the rest of the graph is torn down.
func (s *ServerService) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Server.Shutdown(ctx)
}
