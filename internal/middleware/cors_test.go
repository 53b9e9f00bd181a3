package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cors-gateway/internal/config"
	"cors-gateway/internal/cors"
	"cors-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCORSLogger records messages for testing
type mockCORSLogger struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockCORSLogger) record(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockCORSLogger) Debug(msg string, fields ...logger.Field)  { m.record(msg) }
func (m *mockCORSLogger) Info(msg string, fields ...logger.Field)   { m.record(msg) }
func (m *mockCORSLogger) Warn(msg string, fields ...logger.Field)   { m.record(msg) }
func (m *mockCORSLogger) Error(msg string, fields ...logger.Field)  { m.record(msg) }
func (m *mockCORSLogger) Fatal(msg string, fields ...logger.Field)  { m.record(msg) }
func (m *mockCORSLogger) With(fields ...logger.Field) logger.Logger { return m }

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestCORS(t *testing.T, overrides map[string]any) (*CORSMiddleware, *mockCORSLogger) {
	t.Helper()
	cfg := &config.CorsConfig{Enabled: true, Overrides: overrides}
	policyCfg, err := cfg.Config()
	require.NoError(t, err)

	log := &mockCORSLogger{}
	return NewCORSMiddleware(cfg, cors.New(policyCfg), nil, log), log
}

// okHandler answers 200 "OK" and records that it ran
func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestNewCORSMiddleware(t *testing.T) {
	cfg := &config.CorsConfig{Enabled: true}
	policy := cors.New(cors.DefaultConfig())
	log := &mockCORSLogger{}

	middleware := NewCORSMiddleware(cfg, policy, nil, log)

	assert.NotNil(t, middleware)
	assert.Equal(t, cfg, middleware.config)
	assert.Equal(t, policy, middleware.policy)
	assert.Equal(t, log, middleware.log)
}

func TestCORSMiddleware_CORS_Disabled(t *testing.T) {
	cfg := &config.CorsConfig{Enabled: false}
	middleware := NewCORSMiddleware(cfg, cors.New(cors.DefaultConfig()), nil, &mockCORSLogger{})

	called := false
	handler := middleware.CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "http://allowed-origin.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// CORS is disabled: no headers and the handler answers the preflight itself
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_CORS_Wildcard(t *testing.T) {
	middleware, _ := newTestCORS(t, nil)

	called := false
	handler := middleware.CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "http://any-origin.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "http://any-origin.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,HEAD,PUT,PATCH,POST,DELETE", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Header().Get("Vary"))
}

func TestCORSMiddleware_CORS_NoOriginUsesHost(t *testing.T) {
	middleware, _ := newTestCORS(t, nil)

	called := false
	handler := middleware.CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, "example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_CORS_SpecificOrigin(t *testing.T) {
	allowedOrigin := "http://allowed-origin.com"
	middleware, log := newTestCORS(t, map[string]any{
		"origin":         allowedOrigin,
		"exposedHeaders": []any{"X-Custom-Header"},
	})

	called := false
	handler := middleware.CORS(okHandler(&called))

	// Test case 1: Request with allowed origin
	req1 := httptest.NewRequest(http.MethodGet, "http://example.com/api/test", nil)
	req1.Header.Set("Origin", allowedOrigin)
	rec1 := httptest.NewRecorder()

	handler.ServeHTTP(rec1, req1)

	assert.Equal(t, http.StatusOK, rec1.Code)
	assert.Equal(t, allowedOrigin, rec1.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec1.Header().Get("Vary"))
	assert.Equal(t, "X-Custom-Header", rec1.Header().Get("Access-Control-Expose-Headers"))

	// Test case 2: Request with disallowed origin still reaches the handler
	called = false
	req2 := httptest.NewRequest(http.MethodGet, "http://example.com/api/test", nil)
	req2.Header.Set("Origin", "http://disallowed-origin.com")
	rec2 := httptest.NewRecorder()

	handler.ServeHTTP(rec2, req2)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Empty(t, rec2.Header().Values("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec2.Header().Get("Vary"))
	assert.Contains(t, log.messages, "CORS origin not allowed")
}

func TestCORSMiddleware_CORS_Preflight(t *testing.T) {
	allowedOrigin := "http://allowed-origin.com"
	middleware, log := newTestCORS(t, map[string]any{
		"origin":         []any{allowedOrigin, "http://other.com"},
		"methods":        []any{"GET", "POST", "PUT", "DELETE"},
		"allowedHeaders": []any{"Content-Type", "Authorization"},
		"credentials":    true,
		"maxAge":         86400,
	})

	called := false
	handler := middleware.CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/api/test", nil)
	req.Header.Set("Origin", allowedOrigin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type,Authorization")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	// Preflight is answered by the middleware with an empty 204
	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
	assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "GET,POST,PUT,DELETE", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, log.messages, "CORS preflight request processed")
}

func TestCORSMiddleware_CORS_PreflightContinue(t *testing.T) {
	middleware, _ := newTestCORS(t, map[string]any{"preflightContinue": true})

	called := false
	handler := middleware.CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "http://any-origin.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "http://any-origin.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_CORS_ReflectHeaders(t *testing.T) {
	middleware, _ := newTestCORS(t, map[string]any{"allowedHeaders": ""})

	called := false
	handler := middleware.CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "http://any-origin.com")
	req.Header.Set("Access-Control-Request-Headers", "X-Foo")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "X-Foo", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, rec.Header().Get("Vary"), "Access-Control-Request-Headers")
}

func TestCORSMiddleware_CORS_MalformedPattern(t *testing.T) {
	middleware, _ := newTestCORS(t, map[string]any{
		"origin": map[string]any{"pattern": "(unclosed"},
	})

	called := false
	handler := middleware.CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "http://any-origin.com")
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() { handler.ServeHTTP(rec, req) })
	assert.True(t, called)
	assert.Empty(t, rec.Header().Values("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_ForRoute(t *testing.T) {
	middleware, _ := newTestCORS(t, map[string]any{"origin": "https://global.com"})
	routePolicy, err := cors.NewFromMap(map[string]any{"origin": "https://route.com"})
	require.NoError(t, err)

	called := false
	handler := middleware.ForRoute("/api/route", routePolicy, okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/route", nil)
	req.Header.Set("Origin", "https://route.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://route.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// nil policy means passthrough
	rec = httptest.NewRecorder()
	middleware.ForRoute("/api/none", nil, okHandler(&called)).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_RecordsMetrics(t *testing.T) {
	metrics := NewMetricsMiddleware(&config.MetricsConfig{Enabled: true, Endpoint: "/metrics"}, prometheus.NewRegistry(), &mockCORSLogger{})
	cfg := &config.CorsConfig{Enabled: true}
	middleware := NewCORSMiddleware(cfg, cors.New(cors.DefaultConfig()), metrics, &mockCORSLogger{})

	called := false
	handler := middleware.ForRoute("/api/test", middleware.policy, okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "http://any-origin.com")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	value, err := getMetricValue(metrics.corsShortCircuits, map[string]string{"route": "/api/test", "status": "204"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), value)

	value, err = getMetricValue(metrics.corsDecisions, map[string]string{"route": "/api/test", "origin": "allowed", "preflight": "true"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), value)
}

func TestCORSMiddleware_Gin(t *testing.T) {
	middleware, _ := newTestCORS(t, map[string]any{
		"origin":  []any{"https://a.com", "https://b.com"},
		"methods": []any{"GET", "POST"},
	})

	router := gin.New()
	handlerCalls := 0
	handle := func(c *gin.Context) {
		handlerCalls++
		c.String(http.StatusOK, "OK")
	}
	corsHandler := middleware.Gin("/api/test", middleware.policy)
	router.GET("/api/test", corsHandler, handle)
	router.OPTIONS("/api/test", corsHandler, handle)

	// Actual request
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "https://b.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "https://b.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	// Preflight request
	req = httptest.NewRequest(http.MethodOptions, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "https://a.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "https://a.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, handlerCalls)
}

func TestCORSMiddleware_Gin_Disabled(t *testing.T) {
	cfg := &config.CorsConfig{Enabled: false}
	middleware := NewCORSMiddleware(cfg, cors.New(cors.DefaultConfig()), nil, &mockCORSLogger{})

	router := gin.New()
	router.OPTIONS("/api/test", middleware.Gin("/api/test", middleware.policy), func(c *gin.Context) {
		c.String(http.StatusOK, "handled")
	})

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/api/test", nil)
	req.Header.Set("Origin", "https://a.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "handled", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWarnMalformedPatterns(t *testing.T) {
	policy, err := cors.NewFromMap(map[string]any{
		"origin": []any{map[string]any{"pattern": "["}, "https://a.com", map[string]any{"pattern": "^ok$"}},
	})
	require.NoError(t, err)

	log := &mockCORSLogger{}
	WarnMalformedPatterns(log, "*", policy)
	WarnMalformedPatterns(log, "*", nil)

	assert.Equal(t, []string{"CORS origin pattern is invalid and will never match"}, log.messages)
}
