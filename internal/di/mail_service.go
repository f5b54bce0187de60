package di

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"keygate/internal/mail"
)

// MailService wraps the outbound mail dispatcher for DI.
type MailService struct {
	Dispatcher *mail.Dispatcher
	cancel     context.CancelFunc
}

// NewMail creates the SMTP sender and the throttled dispatcher in front
// of it.
func NewMail(i do.Injector) (*MailService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	do.MustInvoke[*LoggerService](i) // mail logging is wired before first use

	ctx, cancel := context.WithCancel(context.Background())
	sender := mail.NewSender(cfgSvc)
	dispatcher := mail.NewDispatcher(ctx, sender, cfgSvc.Get().Mail.GetRatePerMinute())

	return &MailService{Dispatcher: dispatcher, cancel: cancel}, nil
}

// Shutdown implements do.Shutdowner, draining queued mail before exit.
func (m *MailService) Shutdown() error {
	defer m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.Dispatcher.Shutdown(ctx)
}
