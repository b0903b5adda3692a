package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/memvault/internal/telemetry"
	"github.com/lazypower/memvault/internal/vault"
)

// Server is the memvault HTTP API server.
type Server struct {
	engine  *vault.Engine
	history *vault.History
	metrics *telemetry.Metrics
	logger  *slog.Logger
	router  chi.Router
	version string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves m at /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHistory sets the conversation buffer used by /api/chat.
func WithHistory(h *vault.History) Option {
	return func(s *Server) { s.history = h }
}

// WithLogger sets the server logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new Server for the given engine and version string.
func New(engine *vault.Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		logger:  slog.Default(),
		version: version,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = vault.NewHistory(0)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", s.handleAddMemory)
			r.Get("/", s.handleListMemories)
			r.Delete("/", s.handleClearMemories)
			r.Get("/{id}", s.handleGetMemory)
			r.Put("/{id}", s.handleUpdateMemory)
			r.Delete("/{id}", s.handleDeleteMemory)
		})

		r.Post("/search", s.handleSearch)
		r.Post("/chat", s.handleChat)
		r.Get("/chat/history", s.handleChatHistory)
		r.Post("/chat/clear", s.handleChatClear)
		r.Post("/reindex", s.handleReindex)
	})

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	status, code := "ok", http.StatusOK
	if err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"records": st.Records,
		"indexed": st.Indexed,
		"chat":    s.engine.ChatEnabled(),
	})
}
