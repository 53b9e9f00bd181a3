package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cors-gateway/internal/cors"
)

// DefaultMethods is used for routes that do not list any
var DefaultMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"}

// RouteConfig represents a route configuration in routes.yaml
type RouteConfig struct {
	Routes []Route `yaml:"routes"`
}

// Route represents a single statically answered route
type Route struct {
	Path        string         `yaml:"path"`
	Methods     []string       `yaml:"methods"`
	Status      int            `yaml:"status"`
	ContentType string         `yaml:"content_type"`
	Body        string         `yaml:"body"`
	Cors        map[string]any `yaml:"cors"`
}

// Validate checks a single route
func (r *Route) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("missing 'path'")
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("path %q must start with '/'", r.Path)
	}
	if r.Status != 0 && (r.Status < 100 || r.Status > 599) {
		return fmt.Errorf("path %q: invalid status %d", r.Path, r.Status)
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, http.MethodOptions) {
			return fmt.Errorf("path %q: OPTIONS is answered by the CORS layer and must not be listed", r.Path)
		}
	}
	if _, err := cors.FromMap(r.Cors); err != nil {
		return fmt.Errorf("path %q: %w", r.Path, err)
	}
	return nil
}

// LoadRoutes loads route configurations from a YAML file
func LoadRoutes(path string) (*RouteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes config: %w", err)
	}

	var routeConfig RouteConfig
	if err := yaml.Unmarshal(replaceEnvVars(data), &routeConfig); err != nil {
		return nil, fmt.Errorf("failed to parse routes config: %w", err)
	}

	// Validate routes
	for i, route := range routeConfig.Routes {
		if err := route.Validate(); err != nil {
			return nil, fmt.Errorf("route at index %d: %w", i, err)
		}
		if len(route.Methods) == 0 {
			// Default to all methods if none specified
			routeConfig.Routes[i].Methods = append([]string(nil), DefaultMethods...)
		}
		for j, m := range routeConfig.Routes[i].Methods {
			routeConfig.Routes[i].Methods[j] = strings.ToUpper(m)
		}
		if route.Status == 0 {
			routeConfig.Routes[i].Status = http.StatusOK
		}
		if route.ContentType == "" {
			routeConfig.Routes[i].ContentType = "application/json"
		}
	}

	return &routeConfig, nil
}
