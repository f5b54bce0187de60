package di

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"keygate/internal/gateway"
	"keygate/internal/mail"
	"keygate/internal/ratelimit"
	"keygate/internal/session"
	"keygate/internal/store"
	"keygate/internal/token"
	"keygate/internal/web"
)

// LoggerService wraps the zerolog logger for DI.
type LoggerService struct {
	Logger *zerolog.Logger
}

// NewLogger creates the zerolog logger from configuration and fans it out
// to the library packages' settable loggers.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	logger, err := web.NewLogger(cfgSvc.Get().Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	log.Logger = logger

	store.SetLogger(&logger)
	gateway.SetLogger(&logger)
	token.SetLogger(&logger)
	session.SetLogger(&logger)
	mail.SetLogger(&logger)
	ratelimit.SetLogger(&logger)

	return &LoggerService{Logger: &logger}, nil
}
