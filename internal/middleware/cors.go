package middleware

import (
	"context"
	"net/http"

	"cors-gateway/internal/config"
	"cors-gateway/internal/cors"
	"cors-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware applies CORS policies to routes
type CORSMiddleware struct {
	config  *config.CorsConfig
	policy  *cors.Policy
	metrics *MetricsMiddleware
	log     logger.Logger
}

// NewCORSMiddleware creates a new CORS middleware. policy is the global
// policy used by CORS; metrics may be nil.
func NewCORSMiddleware(config *config.CorsConfig, policy *cors.Policy, metrics *MetricsMiddleware, log logger.Logger) *CORSMiddleware {
	return &CORSMiddleware{
		config:  config,
		policy:  policy,
		metrics: metrics,
		log:     log,
	}
}

// Policy returns the global policy
func (c *CORSMiddleware) Policy() *cors.Policy {
	return c.policy
}

// CORS wraps next with the global policy
func (c *CORSMiddleware) CORS(next http.Handler) http.Handler {
	return c.ForRoute("*", c.policy, next)
}

// ForRoute wraps next with policy. route only labels logs and metrics.
func (c *CORSMiddleware) ForRoute(route string, policy *cors.Policy, next http.Handler) http.Handler {
	// If CORS is disabled, just pass through
	if !c.config.Enabled || policy == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := policy.Apply(w.Header(), cors.FromRequest(r))
		c.report(r.Context(), route, r, res)

		if res.ShortCircuit {
			// Preflight answered here, the route handler never runs
			w.WriteHeader(res.Status)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Gin returns the gin flavour of ForRoute
func (c *CORSMiddleware) Gin(route string, policy *cors.Policy) gin.HandlerFunc {
	if !c.config.Enabled || policy == nil {
		return func(ctx *gin.Context) { ctx.Next() }
	}

	return func(ctx *gin.Context) {
		res := policy.Apply(ctx.Writer.Header(), cors.FromRequest(ctx.Request))
		c.report(ctx.Request.Context(), route, ctx.Request, res)

		if res.ShortCircuit {
			ctx.AbortWithStatus(res.Status)
			return
		}

		ctx.Next()
	}
}

func (c *CORSMiddleware) report(ctx context.Context, route string, r *http.Request, res cors.Result) {
	if c.metrics != nil {
		c.metrics.ObserveCORS(route, res)
	}
	annotateSpan(ctx, route, res)

	if !res.OriginAllowed {
		c.log.Debug("CORS origin not allowed",
			logger.String("route", route),
			logger.String("origin", cors.RequestOrigin(cors.FromRequest(r))),
			logger.String("method", r.Method),
			logger.String("request_id", GetRequestID(ctx)),
		)
	}

	if res.ShortCircuit {
		c.log.Debug("CORS preflight request processed",
			logger.String("route", route),
			logger.String("origin", r.Header.Get(cors.HeaderOrigin)),
			logger.String("method", r.Header.Get("Access-Control-Request-Method")),
			logger.Int("status", res.Status),
			logger.String("request_id", GetRequestID(ctx)),
		)
	}
}

// WarnMalformedPatterns logs every origin pattern of policy that failed to
// compile. Such patterns never match.
func WarnMalformedPatterns(log logger.Logger, route string, policy *cors.Policy) {
	if policy == nil {
		return
	}
	for _, err := range cors.PatternErrors(policy.Config().Origin) {
		log.Warn("CORS origin pattern is invalid and will never match",
			logger.String("route", route),
			logger.Error(err),
		)
	}
}
