package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"cors-gateway/internal/handlers"
	"cors-gateway/internal/util"
	"cors-gateway/pkg/logger"
)

// AccessLog logs one line per request. The level follows the status code.
// geo may be nil.
func AccessLog(log logger.Logger, geo *util.GeoLocator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := newResponseRecorder(w)

			next.ServeHTTP(recorder, r)

			clientIP := util.ClientIP(r)
			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", recorder.statusCode),
				logger.Any("duration", time.Since(start)),
				logger.String("client_ip", clientIP),
				logger.String("request_id", GetRequestID(r.Context())),
			}
			if country := geo.Country(clientIP); country != "" {
				fields = append(fields, logger.String("country", country))
			}
			if origin := r.Header.Get("Origin"); origin != "" {
				fields = append(fields, logger.String("origin", origin))
			}

			switch {
			case recorder.statusCode >= 500:
				log.Error("Request completed", fields...)
			case recorder.statusCode >= 400:
				log.Warn("Request completed", fields...)
			default:
				log.Info("Request completed", fields...)
			}
		})
	}
}

// Recovery turns a panic in next into a JSON 500 response
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.Error("Panic recovered",
						logger.Any("error", err),
						logger.String("path", r.URL.Path),
						logger.String("method", r.Method),
						logger.String("request_id", GetRequestID(r.Context())),
						logger.String("stack", string(debug.Stack())),
					)
					handlers.InternalErrorHandler(w, r)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
