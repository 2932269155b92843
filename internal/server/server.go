package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ogulcanaydogan/spendwatch/pkg/auth"
	"github.com/ogulcanaydogan/spendwatch/pkg/tracker"
)

// Options configures the HTTP API.
type Options struct {
	AllowedOrigins []string
	CORSMaxAge     int
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
}

// Server provides the expense tracker HTTP API.
type Server struct {
	expenses *tracker.ExpenseService
	auth     *auth.Service
	router   chi.Router
	logger   *slog.Logger
}

// NewServer creates an API server.
func NewServer(expenses *tracker.ExpenseService, authSvc *auth.Service, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		expenses: expenses,
		auth:     authSvc,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	s.routes(opts)
	return s
}

func (s *Server) routes(opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	maxAge := opts.CORSMaxAge
	if maxAge == 0 {
		maxAge = 600
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     origins,
		AllowedMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type", "X-Amz-Date", "Authorization", "X-Api-Key", "X-Amz-Security-Token"},
		MaxAge:             maxAge,
		OptionsPassthrough: true,
	}))
	r.Use(preflight)

	r.Get("/health", s.handleHealth)
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.Metrics)
	}

	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/expenses", s.handleCreateExpense)
		r.Get("/expenses", s.handleListExpenses)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)
	})
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}
