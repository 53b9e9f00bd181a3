// Package cors maps a CORS configuration onto Access-Control-* response
// headers for a single request.
//
// A Policy never writes a response body and never stops a request itself.
// When a preflight request should not reach the application, Apply reports
// it through Result and the caller is expected to answer with Result.Status.
package cors

import (
	"net/http"
	"strconv"
	"strings"
)

// Result describes what Apply decided for a request
type Result struct {
	// Preflight is true for OPTIONS requests
	Preflight bool
	// OriginAllowed is true when Access-Control-Allow-Origin was set
	OriginAllowed bool
	// ShortCircuit is true when the caller must respond with Status and an
	// empty body without running further handlers
	ShortCircuit bool
	Status       int
}

// Policy applies an immutable Config to requests.
// It is safe for concurrent use.
type Policy struct {
	cfg Config
}

// New creates a policy from cfg. A nil Origin is replaced by Wildcard and a
// zero OptionsSuccessStatus by 204.
func New(cfg Config) *Policy {
	cfg = cfg.clone()
	if cfg.Origin == nil {
		cfg.Origin = Wildcard
	}
	if cfg.OptionsSuccessStatus == 0 {
		cfg.OptionsSuccessStatus = http.StatusNoContent
	}
	return &Policy{cfg: cfg}
}

// NewFromMap merges overrides onto the defaults and creates a policy
func NewFromMap(overrides map[string]any) (*Policy, error) {
	cfg, err := FromMap(overrides)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// Config returns a copy of the effective configuration
func (p *Policy) Config() Config {
	return p.cfg.clone()
}

// Apply is a shorthand for New(cfg).Apply(h, r)
func Apply(cfg Config, h HeaderStore, r RequestContext) Result {
	return New(cfg).Apply(h, r)
}

// Apply writes the CORS headers for r into h
func (p *Policy) Apply(h HeaderStore, r RequestContext) Result {
	res := Result{
		Preflight: strings.EqualFold(r.Method(), http.MethodOptions),
	}

	res.OriginAllowed = p.configureOrigin(h, r)
	p.configureAllowedHeaders(h, r)
	p.configureExposedHeaders(h)
	p.configureMaxAge(h)
	p.configureCredentials(h)
	p.configureMethods(h)

	if res.Preflight && !p.cfg.PreflightContinue {
		// Preflight responses carry no body
		h.Set(HeaderContentLength, "0")
		res.ShortCircuit = true
		res.Status = p.cfg.OptionsSuccessStatus
	}

	return res
}

// RequestOrigin returns the Origin header of r, or its Host when Origin is absent
func RequestOrigin(r RequestContext) string {
	if origin := r.Header(HeaderOrigin); origin != "" {
		return origin
	}
	return r.Header(HeaderHost)
}

func (p *Policy) configureOrigin(h HeaderStore, r RequestContext) bool {
	allowed := false
	origin := RequestOrigin(r)
	if origin != "" && IsOriginAllowed(p.cfg.Origin, origin) {
		AccessControl(h, "Allow-Origin", origin)
		allowed = true
	}

	if !isWildcard(p.cfg.Origin) {
		addVary(h, HeaderOrigin)
	}
	return allowed
}

func (p *Policy) configureAllowedHeaders(h HeaderStore, r RequestContext) {
	if len(p.cfg.AllowedHeaders) > 0 {
		AccessControl(h, "Allow-Headers", strings.Join(p.cfg.AllowedHeaders, ", "))
		return
	}

	// Nothing configured: reflect what the browser asked for
	addVary(h, HeaderAccessControlRequestHeader)
	if requested := r.Header(HeaderAccessControlRequestHeader); requested != "" {
		AccessControl(h, "Allow-Headers", requested)
	}
}

func (p *Policy) configureExposedHeaders(h HeaderStore) {
	if len(p.cfg.ExposedHeaders) == 0 {
		return
	}
	AccessControl(h, "Expose-Headers", strings.Join(p.cfg.ExposedHeaders, ", "))
}

func (p *Policy) configureMaxAge(h HeaderStore) {
	if p.cfg.MaxAge == nil {
		return
	}
	AccessControl(h, "Max-Age", strconv.Itoa(*p.cfg.MaxAge))
}

func (p *Policy) configureCredentials(h HeaderStore) {
	if p.cfg.Credentials {
		AccessControl(h, "Allow-Credentials", "true")
	}
}

func (p *Policy) configureMethods(h HeaderStore) {
	AccessControl(h, "Allow-Methods", strings.Join(p.cfg.Methods, ","))
}
