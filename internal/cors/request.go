package cors

import (
	"net/http"
	"strings"
)

// Header names read and written by the policy
const (
	HeaderOrigin                     = "Origin"
	HeaderHost                       = "Host"
	HeaderVary                       = "Vary"
	HeaderContentLength              = "Content-Length"
	HeaderAccessControlRequestHeader = "Access-Control-Request-Headers"

	accessControlPrefix = "Access-Control-"
)

// HeaderStore is the outgoing header collection of a response.
// http.Header satisfies it.
type HeaderStore interface {
	Get(key string) string
	Values(key string) []string
	Set(key, value string)
}

// RequestContext exposes the parts of the incoming request the policy reads
type RequestContext interface {
	Method() string
	Header(name string) string
}

// AccessControl sets the Access-Control-<name> header
func AccessControl(h HeaderStore, name, value string) {
	h.Set(accessControlPrefix+name, value)
}

// addVary appends value to the Vary header unless it is already listed.
// Every existing Vary line is kept; the result is folded into one line.
func addVary(h HeaderStore, value string) {
	var fields []string
	for _, line := range h.Values(HeaderVary) {
		for _, v := range strings.Split(line, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if v == "*" || strings.EqualFold(v, value) {
				return
			}
			fields = append(fields, v)
		}
	}
	h.Set(HeaderVary, strings.Join(append(fields, value), ", "))
}

type httpRequest struct {
	r *http.Request
}

// FromRequest adapts r to a RequestContext. The Host header is served
// from r.Host, where net/http moves it.
func FromRequest(r *http.Request) RequestContext {
	return httpRequest{r: r}
}

func (h httpRequest) Method() string { return h.r.Method }

func (h httpRequest) Header(name string) string {
	if strings.EqualFold(name, HeaderHost) {
		if h.r.Host != "" {
			return h.r.Host
		}
	}
	return h.r.Header.Get(name)
}
