package session

import (
	"net/http"
	"time"

	"keygate/internal/config"
)

// SetCookie binds a session token to the browser. The cookie is HTTP-only
// and SameSite=Lax; Secure follows config (on by default) so local
// plain-HTTP development still works when explicitly configured.
func SetCookie(w http.ResponseWriter, cfg *config.AuthConfig, tok string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Cookie.GetName(),
		Value:    tok,
		Path:     "/",
		Domain:   cfg.Cookie.Domain,
		MaxAge:   int(cfg.GetSessionTTL() / time.Second),
		HttpOnly: true,
		Secure:   cfg.Cookie.IsSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie. Callers must also Delete the
// server-side record; clearing the cookie alone leaves the session live.
func ClearCookie(w http.ResponseWriter, cfg *config.AuthConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Cookie.GetName(),
		Value:    "",
		Path:     "/",
		Domain:   cfg.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Cookie.IsSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest extracts the session token from the request cookie.
func FromRequest(r *http.Request, cfg *config.AuthConfig) (string, bool) {
	cookie, err := r.Cookie(cfg.Cookie.GetName())
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
