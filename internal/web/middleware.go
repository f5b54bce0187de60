package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"keygate/internal/config"
	"keygate/internal/ratelimit"
)

// RequestIDMiddleware adds X-Request-ID header and logger with request ID to context.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			requestID := request.Header.Get("X-Request-ID")
			ctx := AddRequestID(request.Context(), requestID)

			if requestID == "" {
				requestID = GetRequestID(ctx)
			}

			writer.Header().Set("X-Request-ID", requestID)

			request = request.WithContext(ctx)

			next.ServeHTTP(writer, request)
		})
	}
}

// LoggingMiddleware logs each request with method, path, status and duration.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: writer,
				statusCode:     http.StatusOK,
			}

			shortID := GetRequestID(request.Context())
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}

			logger := zerolog.Ctx(request.Context()).With().
				Str("method", request.Method).
				Str("path", request.URL.Path).
				Str("req_id", shortID).
				Logger()

			logger.Debug().Msgf("%s %s", request.Method, request.URL.Path)

			next.ServeHTTP(wrapped, request)

			duration := formatDuration(time.Since(start))
			completion := logger.With().
				Int("status", wrapped.statusCode).
				Str("duration", duration).
				Logger()
			msg := formatCompletionMessage(wrapped.statusCode, duration)

			switch {
			case wrapped.statusCode >= 500:
				completion.Error().Msg(msg)
			case wrapped.statusCode >= 400:
				completion.Warn().Msg(msg)
			default:
				completion.Info().Msg(msg)
			}
		})
	}
}

// cspRelaxedPaths are API paths that serve no markup and get a locked-down CSP.
var cspRelaxedPaths = []string{"/auth/", "/health"}

// strictCSP is the policy for the portal pages.
const strictCSP = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; " +
	"font-src 'self'; connect-src 'self'; frame-ancestors 'none'; " +
	"form-action 'self'; base-uri 'self'; object-src 'none'"

// relaxedCSP is the policy for JSON API responses.
const relaxedCSP = "default-src 'none'; frame-ancestors 'none'"

// hstsMaxAge is one year, the common HSTS baseline.
const hstsMaxAge = 31536000

// SecurityHeadersMiddleware adds security headers to every response: CSP,
// nosniff, frame denial, referrer policy and, on HTTPS, HSTS.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			headers := writer.Header()

			csp := strictCSP
			if isRelaxedCSPPath(request.URL.Path) {
				csp = relaxedCSP
			}
			headers.Set("Content-Security-Policy", csp)
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("X-Frame-Options", "DENY")
			headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			headers.Set("Permissions-Policy",
				"accelerometer=(), camera=(), geolocation=(), microphone=(), payment=(), usb=()")

			if isHTTPS(request) {
				headers.Set("Strict-Transport-Security",
					fmt.Sprintf("max-age=%d; includeSubDomains", hstsMaxAge))
			}

			next.ServeHTTP(writer, request)
		})
	}
}

func isRelaxedCSPPath(path string) bool {
	return lo.SomeBy(cspRelaxedPaths, func(p string) bool {
		return strings.HasPrefix(path, p)
	})
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// CORSMiddleware allows configured browser origins to call the auth API.
// With no configured origins the middleware emits no CORS headers at all,
// keeping the surface same-origin only.
func CORSMiddleware(runtime config.RuntimeConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get("Origin")
			allowed := runtime.Get().Server.CORSAllowedOrigins

			if origin == "" || len(allowed) == 0 {
				next.ServeHTTP(writer, request)
				return
			}

			wildcard := lo.Contains(allowed, "*")
			if !wildcard && !lo.Contains(allowed, origin) {
				next.ServeHTTP(writer, request)
				return
			}

			headers := writer.Header()
			headers.Add("Vary", "Origin")
			if wildcard {
				headers.Set("Access-Control-Allow-Origin", "*")
			} else {
				headers.Set("Access-Control-Allow-Origin", origin)
				headers.Set("Access-Control-Allow-Credentials", "true")
			}

			// Preflight requests terminate here.
			if request.Method == http.MethodOptions &&
				request.Header.Get("Access-Control-Request-Method") != "" {
				headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				headers.Set("Access-Control-Max-Age", "600")
				writer.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// MaxBodyBytesMiddleware creates middleware that limits request body size.
// The limitProvider is called per-request to support hot-reload.
func MaxBodyBytesMiddleware(limitProvider func() int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			limit := limitProvider()
			if limit > 0 && request.Body != nil {
				request.Body = http.MaxBytesReader(writer, request.Body, limit)
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// SurgeMiddleware sheds load on the auth endpoints with the per-instance
// token bucket before any store-backed rate limiting runs. A nil guard or a
// disabled one passes everything through.
func SurgeMiddleware(guard *ratelimit.SurgeGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if guard == nil || !strings.HasPrefix(request.URL.Path, "/auth/") {
				next.ServeHTTP(writer, request)
				return
			}

			if !guard.Allow() {
				zerolog.Ctx(request.Context()).Warn().
					Str("path", request.URL.Path).
					Msg("request shed by surge guard")
				WriteRateLimited(writer, ratelimit.Decision{Reset: time.Second})
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// formatDuration formats duration in a human-readable form with microsecond precision.
// Uses dynamic units so very fast requests show in µs while longer ones show in ms/s.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	duration = duration.Round(time.Microsecond)
	switch {
	case duration < time.Millisecond:
		return fmt.Sprintf("%dµs", duration.Microseconds())
	case duration < time.Second:
		return fmt.Sprintf("%.2fms", float64(duration)/float64(time.Millisecond))
	case duration < time.Minute:
		return fmt.Sprintf("%.2fs", duration.Seconds())
	default:
		return duration.Truncate(time.Second).String()
	}
}

// formatCompletionMessage formats the completion message with status.
func formatCompletionMessage(status int, duration string) string {
	symbol := "✓"
	switch {
	case status >= 500:
		symbol = "✗"
	case status >= 400:
		symbol = "⚠"
	}
	return symbol + " " + http.StatusText(status) + " (" + duration + ")"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
