package server

import (
	"net/http"
	"strings"

	"cors-gateway/internal/config"
	"cors-gateway/internal/handlers"
	"cors-gateway/pkg/logger"

	"github.com/gorilla/mux"
)

// muxRouter builds the gorilla/mux router serving /health and every
// configured route
func (s *Server) muxRouter() (http.Handler, error) {
	router := mux.NewRouter()

	// Add health check endpoint
	health := s.corsMiddleware.CORS(handlers.HealthCheckHandler(s.version))
	healthMethods := []string{http.MethodGet}
	if s.config.Cors.Enabled {
		healthMethods = append(healthMethods, http.MethodOptions)
	}
	router.Handle("/health", health).Methods(healthMethods...)

	// Register all routes from configuration
	for _, route := range s.routes.Routes {
		if err := s.registerMuxRoute(router, route); err != nil {
			return nil, err
		}
	}

	router.NotFoundHandler = http.HandlerFunc(handlers.NotFoundHandler)
	router.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowedHandler)

	return router, nil
}

// registerMuxRoute configures an individual route. A path ending in "/*"
// matches every path below it.
func (s *Server) registerMuxRoute(router *mux.Router, route config.Route) error {
	policy, err := s.routePolicy(route)
	if err != nil {
		return err
	}
	handler := s.corsMiddleware.ForRoute(route.Path, policy, handlers.RouteHandler(route))

	r := router.NewRoute()
	if strings.HasSuffix(route.Path, "/*") {
		r.PathPrefix(strings.TrimSuffix(route.Path, "*"))
	} else {
		r.Path(route.Path)
	}
	methods := s.routeMethods(route)
	r.Methods(methods...).Handler(handler)

	s.log.Info("Registered route",
		logger.String("path", route.Path),
		logger.Strings("methods", methods),
		logger.Bool("cors", policy != nil),
	)
	return nil
}
