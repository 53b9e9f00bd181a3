// Package util holds request helpers shared by the middleware.
package util

import (
	"net"
	"net/http"
	"strings"
)

// forwardingHeaders are checked in order. Each holds a single address except
// X-Forwarded-For, whose leftmost entry is the client.
var forwardingHeaders = []string{
	"X-Real-IP",
	"X-Forwarded-For",
	"CF-Connecting-IP",
	"True-Client-IP",
}

// ClientIP returns the address of the client that sent r, looking through the
// usual proxy headers before falling back to RemoteAddr
func ClientIP(r *http.Request) string {
	for _, name := range forwardingHeaders {
		value := r.Header.Get(name)
		if name == "X-Forwarded-For" {
			value, _, _ = strings.Cut(value, ",")
		}
		if ip := strings.TrimSpace(value); ip != "" && ip != "unknown" {
			return ip
		}
	}

	if ip := forwardedFor(r.Header.Get("Forwarded")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedFor extracts the for= node of an RFC 7239 Forwarded header
func forwardedFor(header string) string {
	for _, part := range strings.Split(header, ";") {
		value, ok := strings.CutPrefix(strings.TrimSpace(part), "for=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		if strings.HasPrefix(value, "[") {
			if end := strings.Index(value, "]"); end > 0 {
				return value[1:end]
			}
		}
		if host, _, err := net.SplitHostPort(value); err == nil {
			return host
		}
		return value
	}
	return ""
}
