package server

import (
	"fmt"
	"net/http"
	"strings"

	"cors-gateway/internal/config"
	"cors-gateway/internal/handlers"
	"cors-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ginEngine builds the gin flavour of muxRouter
func (s *Server) ginEngine() (http.Handler, error) {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(gin.WrapF(handlers.NotFoundHandler))
	engine.NoMethod(gin.WrapF(handlers.MethodNotAllowedHandler))

	health := []gin.HandlerFunc{
		s.corsMiddleware.Gin("*", s.corsMiddleware.Policy()),
		gin.WrapF(handlers.HealthCheckHandler(s.version)),
	}
	engine.GET("/health", health...)
	if s.config.Cors.Enabled {
		engine.OPTIONS("/health", health...)
	}

	for _, route := range s.routes.Routes {
		if err := s.registerGinRoute(engine, route); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// registerGinRoute configures an individual route. gin panics on conflicting
// paths; that is reported as an error.
func (s *Server) registerGinRoute(engine *gin.Engine, route config.Route) (err error) {
	policy, err := s.routePolicy(route)
	if err != nil {
		return err
	}

	path := route.Path
	if strings.HasSuffix(path, "/*") {
		path += "path"
	}
	methods := s.routeMethods(route)
	chain := []gin.HandlerFunc{
		s.corsMiddleware.Gin(route.Path, policy),
		gin.WrapH(handlers.RouteHandler(route)),
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("route %s: %v", route.Path, r)
		}
	}()
	for _, method := range methods {
		engine.Handle(method, path, chain...)
	}

	s.log.Info("Registered route",
		logger.String("path", route.Path),
		logger.Strings("methods", methods),
		logger.Bool("cors", policy != nil),
		logger.String("engine", config.EngineGin),
	)
	return nil
}
