package clientip

import (
	"net"
	"net/http"
	"strings"
)

// ProxyHeaders are checked in order before falling back to RemoteAddr.
// X-Forwarded-For may carry a chain; its first valid entry wins.
var ProxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// GetIP returns the caller's address for r, or "" when nothing parses.
func GetIP(r *http.Request) string {
	for _, h := range ProxyHeaders {
		value := r.Header.Get(h)
		if value == "" {
			continue
		}
		for ip := range strings.SplitSeq(value, ",") {
			if parsed := parseIP(ip); parsed != "" {
				return parsed
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
