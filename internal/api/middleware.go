package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/sentree/internal/metrics"
)

// AuthMiddleware requires a bearer token equal to apiKey.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				jsonError(w, "missing authorization", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(auth, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				jsonError(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InFlightGuard lets one guarded request run at a time. Requests arriving
// while another is running are refused, not queued.
type InFlightGuard struct {
	mu      sync.Mutex
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewInFlightGuard(m *metrics.Metrics, log *slog.Logger) *InFlightGuard {
	return &InFlightGuard{metrics: m, log: log}
}

func (g *InFlightGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.mu.TryLock() {
			g.metrics.BusyRejection()
			g.log.Warn("analysis refused, another is in progress", "path", r.URL.Path)
			jsonErrorDetails(w, "another analysis is in progress", "wait for the current analysis to finish and try again", http.StatusTooManyRequests)
			return
		}
		defer g.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs incoming requests.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
