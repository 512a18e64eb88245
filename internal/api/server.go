package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/sentree/internal/analyzer"
	"github.com/dgallion1/sentree/internal/cache"
	"github.com/dgallion1/sentree/internal/completion"
	"github.com/dgallion1/sentree/internal/config"
	"github.com/dgallion1/sentree/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CacheLister lists cached sentence entries.
type CacheLister interface {
	List() ([]cache.Metadata, error)
}

// Server is the HTTP API server for sentree.
type Server struct {
	router   chi.Router
	analyzer *analyzer.Analyzer
	entries  CacheLister
	claude   *completion.ClaudeClient
	metrics  *metrics.Metrics
	guard    *InFlightGuard
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(a *analyzer.Analyzer, entries CacheLister, claude *completion.ClaudeClient, m *metrics.Metrics, log *slog.Logger, cfg config.Config) *Server {
	if entries == nil {
		entries = cache.Nop{}
	}
	s := &Server{
		analyzer: a,
		entries:  entries,
		claude:   claude,
		metrics:  m,
		guard:    NewInFlightGuard(m, log),
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey))
		}

		r.Get("/check-api-key", s.handleCheckAPIKey)
		r.Get("/version", s.handleVersion)
		r.Get("/stats/llm", s.handleLLMStats)

		r.Group(func(r chi.Router) {
			r.Use(s.guard.Middleware)
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/analyze-node", s.handleAnalyzeNode)
		})
		r.Post("/prompt-info", s.handlePromptInfo)

		r.Get("/cache", s.handleListCache)
		r.Post("/clear-cache", s.handleClearCache)
		r.Post("/export", s.handleExport)
	})

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
