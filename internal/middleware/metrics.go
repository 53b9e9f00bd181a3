package middleware

import (
	"net/http"
	"strconv"
	"time"

	"cors-gateway/internal/config"
	"cors-gateway/internal/cors"
	"cors-gateway/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsMiddleware provides metrics collection and endpoints
type MetricsMiddleware struct {
	config   *config.MetricsConfig
	log      logger.Logger
	registry *prometheus.Registry

	// requestDuration tracks request duration
	requestDuration *prometheus.HistogramVec
	// requestsTotal tracks the total number of requests
	requestsTotal *prometheus.CounterVec
	// corsDecisions tracks the origin decision of every CORS evaluation
	corsDecisions *prometheus.CounterVec
	// corsShortCircuits tracks preflight requests answered by the CORS layer
	corsShortCircuits *prometheus.CounterVec
}

// NewMetricsMiddleware creates a new metrics middleware. Collectors are
// registered on registry; a nil registry gets a fresh one with the Go and
// process collectors.
func NewMetricsMiddleware(config *config.MetricsConfig, registry *prometheus.Registry, log logger.Logger) *MetricsMiddleware {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &MetricsMiddleware{
		config:   config,
		log:      log,
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Total number of requests",
			},
			[]string{"method", "path", "status"},
		),
		corsDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_cors_requests_total",
				Help: "CORS evaluations by route, origin decision and request kind",
			},
			[]string{"route", "origin", "preflight"},
		),
		corsShortCircuits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_cors_preflight_short_circuits_total",
				Help: "Preflight requests answered without reaching the route handler",
			},
			[]string{"route", "status"},
		),
	}

	registry.MustRegister(m.requestDuration, m.requestsTotal, m.corsDecisions, m.corsShortCircuits)
	return m
}

// Registry returns the registry the collectors live in
func (m *MetricsMiddleware) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterMetricsEndpoint registers the metrics endpoint
func (m *MetricsMiddleware) RegisterMetricsEndpoint(router http.Handler) http.Handler {
	if !m.config.Enabled {
		return router
	}

	// Create a handler for the metrics endpoint
	handler := http.NewServeMux()

	// Copy all requests to the original router
	handler.Handle("/", router)

	// Add the metrics endpoint
	handler.Handle(m.config.Endpoint, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))

	m.log.Info("Registered metrics endpoint",
		logger.String("endpoint", m.config.Endpoint),
	)

	return handler
}

// Metrics middleware collects metrics for each request
func (m *MetricsMiddleware) Metrics(next http.Handler) http.Handler {
	if !m.config.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer that captures the status code
		recorder := newResponseRecorder(w)

		// Process the request
		next.ServeHTTP(recorder, r)

		// Record metrics
		duration := time.Since(start).Seconds()
		path := r.URL.Path
		method := r.Method
		status := strconv.Itoa(recorder.statusCode)

		m.requestDuration.WithLabelValues(method, path, status).Observe(duration)
		m.requestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// ObserveCORS records the outcome of a policy evaluation
func (m *MetricsMiddleware) ObserveCORS(route string, res cors.Result) {
	if !m.config.Enabled {
		return
	}

	origin := "rejected"
	if res.OriginAllowed {
		origin = "allowed"
	}
	m.corsDecisions.WithLabelValues(route, origin, strconv.FormatBool(res.Preflight)).Inc()

	if res.ShortCircuit {
		m.corsShortCircuits.WithLabelValues(route, strconv.Itoa(res.Status)).Inc()
	}
}
