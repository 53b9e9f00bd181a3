package config

import (
	"cors-gateway/internal/cors"
)

// CorsConfig contains CORS configuration. Every key other than enabled is a
// policy override (origin, methods, allowedHeaders, exposedHeaders,
// credentials, maxAge, preflightContinue, optionsSuccessStatus) merged onto
// the policy defaults.
type CorsConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Overrides map[string]any `yaml:",inline"`
}

// Config returns the global policy configuration
func (c *CorsConfig) Config() (cors.Config, error) {
	return cors.FromMap(c.Overrides)
}

// RouteConfig returns the policy configuration for route: the route's
// overrides merged over the global ones
func (c *CorsConfig) RouteConfig(route Route) (cors.Config, error) {
	base, err := c.Config()
	if err != nil {
		return cors.Config{}, err
	}
	return cors.Merge(base, route.Cors)
}
