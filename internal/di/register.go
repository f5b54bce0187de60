package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons.
// Services are registered in dependency order:
//  1. Config (no dependencies)
//  2. Logger (depends on Config)
//  3. Store (depends on Config, Logger)
//  4. HealthTracker (depends on Config, Logger)
//  5. Gateway (depends on Config, HealthTracker)
//  6. Checker (depends on HealthTracker, Gateway, Store)
//  7. Tokens, Sessions, OAuth (depend on Store, Config)
//  8. RateLimit (depends on Store, Config)
//  9. Mail (depends on Config)
//  10. Handler (depends on all above)
//  11. Server (depends on Handler, Config).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewStore)
	do.Provide(i, NewHealthTracker)
	do.Provide(i, NewGateway)
	do.Provide(i, NewChecker)
	do.Provide(i, NewTokens)
	do.Provide(i, NewSessions)
	do.Provide(i, NewOAuth)
	do.Provide(i, NewRateLimit)
	do.Provide(i, NewMail)
	do.Provide(i, NewHandler)
	do.Provide(i, NewHTTPServer)
}
