// Package network provides request-level network helpers.
package network

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address for logging. It prefers the first
// entry of X-Forwarded-For, then X-Real-IP, then RemoteAddr. Header values
// that do not parse as an IP are skipped, so a forged header cannot inject
// arbitrary text into logs.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
