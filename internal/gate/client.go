package gate

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey derives the rate-limit bucket key for a request: the first hop of
// X-Forwarded-For when present, else the peer address. This identifies an
// origin, not an authenticated principal.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
