package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cors-gateway/internal/config"
	"cors-gateway/internal/cors"
	"cors-gateway/internal/middleware"
	"cors-gateway/internal/util"
	"cors-gateway/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Server represents the CORS gateway server
type Server struct {
	config     *config.Config
	routes     *config.RouteConfig
	log        logger.Logger
	version    string
	httpServer *http.Server
	handler    http.Handler
	geo        *util.GeoLocator

	metricsMiddleware *middleware.MetricsMiddleware
	tracingMiddleware *middleware.TracingMiddleware
	corsMiddleware    *middleware.CORSMiddleware
}

// Option customizes a Server
type Option func(*options)

type options struct {
	registry       *prometheus.Registry
	tracerProvider *sdktrace.TracerProvider
	version        string
}

// WithRegistry registers the server metrics on registry
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithTracerProvider traces requests with tp instead of a Jaeger exporter
func WithTracerProvider(tp *sdktrace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithVersion sets the version reported by /health
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

// NewServer creates a new server instance. It fails when a route's CORS
// overrides are invalid or the routes cannot be registered.
func NewServer(cfg *config.Config, routes *config.RouteConfig, log logger.Logger, opts ...Option) (*Server, error) {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if routes == nil {
		routes = &config.RouteConfig{}
	}

	globalCfg, err := cfg.Cors.Config()
	if err != nil {
		return nil, fmt.Errorf("invalid cors section: %w", err)
	}
	globalPolicy := cors.New(globalCfg)

	metricsMiddleware := middleware.NewMetricsMiddleware(&cfg.Metrics, o.registry, log)
	var tracingMiddleware *middleware.TracingMiddleware
	if o.tracerProvider != nil {
		tracingMiddleware = middleware.NewTracingMiddlewareWithProvider(&cfg.Tracing, o.tracerProvider, log)
	} else {
		tracingMiddleware = middleware.NewTracingMiddleware(&cfg.Tracing, log)
	}
	corsMiddleware := middleware.NewCORSMiddleware(&cfg.Cors, globalPolicy, metricsMiddleware, log)

	s := &Server{
		config:            cfg,
		routes:            routes,
		log:               log,
		version:           o.version,
		metricsMiddleware: metricsMiddleware,
		tracingMiddleware: tracingMiddleware,
		corsMiddleware:    corsMiddleware,
	}

	if cfg.Cors.Enabled {
		middleware.WarnMalformedPatterns(log, "*", globalPolicy)
	}

	if cfg.Logging.EnableAccess && cfg.Logging.GeoIPDatabase != "" {
		// Geolocation is best effort
		geo, err := util.NewGeoLocator(cfg.Logging.GeoIPDatabase)
		if err != nil {
			log.Warn("Geolocation disabled", logger.Error(err))
		}
		s.geo = geo
	}

	var router http.Handler
	switch cfg.Server.Engine {
	case config.EngineGin:
		router, err = s.ginEngine()
	default:
		router, err = s.muxRouter()
	}
	if err != nil {
		return nil, err
	}

	s.handler = s.wrap(router)
	s.httpServer = &http.Server{
		Addr:           cfg.Server.Address,
		Handler:        s.handler,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s, nil
}

// wrap applies the server-wide middleware chain around router
func (s *Server) wrap(router http.Handler) http.Handler {
	handler := s.metricsMiddleware.Metrics(router)
	if s.config.Logging.EnableAccess {
		handler = middleware.AccessLog(s.log, s.geo)(handler)
	}
	handler = middleware.RequestID(handler)
	handler = s.tracingMiddleware.Tracing(handler)
	handler = middleware.Recovery(s.log)(handler)
	return s.metricsMiddleware.RegisterMetricsEndpoint(handler)
}

// routePolicy builds the policy of route. It is nil when CORS is disabled.
func (s *Server) routePolicy(route config.Route) (*cors.Policy, error) {
	if !s.config.Cors.Enabled {
		return nil, nil
	}
	cfg, err := s.config.Cors.RouteConfig(route)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", route.Path, err)
	}
	policy := cors.New(cfg)
	middleware.WarnMalformedPatterns(s.log, route.Path, policy)
	return policy, nil
}

// routeMethods returns the methods route answers. OPTIONS is added when CORS
// is enabled so preflight requests reach the CORS layer.
func (s *Server) routeMethods(route config.Route) []string {
	methods := append([]string(nil), route.Methods...)
	if len(methods) == 0 {
		methods = append(methods, config.DefaultMethods...)
	}
	if s.config.Cors.Enabled {
		methods = append(methods, http.MethodOptions)
	}
	return methods
}

// Handler returns the fully wrapped request handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the server and blocks until it is stopped
func (s *Server) Start() error {
	s.log.Info("Starting server",
		logger.String("address", s.config.Server.Address),
		logger.String("engine", s.config.Server.Engine),
		logger.Bool("cors_enabled", s.config.Cors.Enabled),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("Failed to start server", logger.Error(err))
		return err
	}
	return nil
}

// Serve accepts connections on l until the server is stopped
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("Starting server", logger.String("address", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server and flushes pending spans
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down server...")
	err := s.httpServer.Shutdown(ctx)
	if terr := s.tracingMiddleware.Shutdown(ctx); terr != nil {
		s.log.Error("Failed to shut down tracing", logger.Error(terr))
		if err == nil {
			err = terr
		}
	}
	s.geo.Close()
	return err
}
