package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP derives the client network address for rate-limit counting.
// Order: first entry of X-Forwarded-For, then X-Real-IP, then the direct
// peer address. The forwarded headers are trusted because keygate deploys
// behind the reverse proxy that sets them.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
