package di

import (
	"net/http"

	"github.com/samber/do/v2"

	"keygate/internal/web"
)

// HandlerService wraps the assembled HTTP handler for DI.
type HandlerService struct {
	Handler *web.Handler
	Router  http.Handler
}

// NewHandler assembles the web handler and the routed middleware stack
// around it.
func NewHandler(i do.Injector) (*HandlerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	gatewaySvc := do.MustInvoke[*GatewayService](i)
	tokenSvc := do.MustInvoke[*TokenService](i)
	sessionSvc := do.MustInvoke[*SessionService](i)
	oauthSvc := do.MustInvoke[*OAuthService](i)
	rateLimitSvc := do.MustInvoke[*RateLimitService](i)
	mailSvc := do.MustInvoke[*MailService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)

	handler := web.NewHandler(web.Deps{
		Runtime:  cfgSvc,
		Accounts: gatewaySvc.Resolver,
		Tokens:   tokenSvc.Issuer,
		Sessions: sessionSvc.Manager,
		OAuth:    oauthSvc.Flow,
		States:   oauthSvc.States,
		Limiter:  rateLimitSvc.Limiter,
		Mailer:   mailSvc.Dispatcher,
		Tracker:  trackerSvc.Tracker,
	})

	router := web.NewRouter(handler, cfgSvc, gatewaySvc.Resolver, rateLimitSvc.Surge)

	return &HandlerService{Handler: handler, Router: router}, nil
}
