package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"keygate/internal/config"
	"keygate/internal/gateway"
)

// KeyIssuer resolves an email to a gateway account and a fresh delegated key.
type KeyIssuer interface {
	ResolveAndIssue(ctx context.Context, email string) (gateway.Credential, error)
}

// Middleware returns the identity-mediation middleware for internal callers.
//
// For every request outside the skip list it checks the trusted identity
// headers. When an internal identity is present it resolves the account,
// issues a fresh key, replaces the Authorization header with it, and
// attaches the identity to the request context. When resolution fails the
// request is forwarded untouched with no injected credential (fail-open:
// the downstream gateway rejects uncredentialed requests on its own),
// unless fail-open is disabled in config, in which case the request is
// rejected with 502.
//
// Requests without identity headers pass through unmodified; the external
// auth flows handle those callers.
func Middleware(runtime config.RuntimeConfig, issuer KeyIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := runtime.Get().Auth

			if skipPath(r.URL.Path, auth.GetSkipPaths()) {
				next.ServeHTTP(w, r)
				return
			}

			ident, ok := FromHeaders(r.Header, auth.GetEmailHeaders(), auth.GetUserHeaders()).Get()
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			log := zerolog.Ctx(r.Context())

			cred, err := issuer.ResolveAndIssue(r.Context(), ident.Email)
			if err != nil {
				log.Warn().
					Err(err).
					Str("email", ident.Email).
					Bool("fail_open", auth.IsFailOpen()).
					Msg("identity resolution failed")

				if auth.IsFailOpen() {
					// Forward untouched. No credential is injected; the
					// downstream gateway rejects the request itself.
					next.ServeHTTP(w, r)
					return
				}
				writeBadGateway(w)
				return
			}

			ident.AccountID = cred.AccountID
			r.Header.Set("Authorization", "Bearer "+cred.Key)

			log.Debug().
				Str("account_id", cred.AccountID).
				Msg("injected delegated credential")

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// skipPath reports whether the request path is exempt from mediation.
// Matching is by exact path or path-segment prefix.
func skipPath(path string, skips []string) bool {
	return lo.SomeBy(skips, func(skip string) bool {
		if path == skip {
			return true
		}
		return strings.HasPrefix(path, strings.TrimSuffix(skip, "/")+"/")
	})
}

// writeBadGateway emits the fail-closed rejection for resolver failures.
func writeBadGateway(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"error":{"type":"resolution_failed","message":"could not resolve caller identity"}}`))
}
