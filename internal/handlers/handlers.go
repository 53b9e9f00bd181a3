package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cors-gateway/internal/config"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// HealthCheckHandler returns a handler answering health checks with version
func HealthCheckHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   version,
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// NotFoundHandler handles 404 not found requests
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Code:    http.StatusNotFound,
		Message: "The requested resource was not found",
	})
}

// MethodNotAllowedHandler handles 405 method not allowed requests
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "method_not_allowed",
		Code:    http.StatusMethodNotAllowed,
		Message: "The requested method is not allowed for this resource",
	})
}

// InternalErrorHandler handles 500 internal server error responses
func InternalErrorHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Code:    http.StatusInternalServerError,
		Message: "An internal server error occurred",
	})
}

// RouteHandler answers every request with the route's static response.
// HEAD requests get the headers only.
func RouteHandler(route config.Route) http.Handler {
	body := []byte(route.Body)
	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route.ContentType != "" {
			w.Header().Set("Content-Type", route.ContentType)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(status)
		if r.Method == http.MethodHead {
			return
		}
		w.Write(body)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
