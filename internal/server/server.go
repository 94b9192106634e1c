package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookshelf/internal/app"
	"bookshelf/internal/observability"
	"bookshelf/internal/util"
	"bookshelf/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Metrics is optional; nil disables /metrics and request instrumentation.
	Metrics *observability.Metrics
	// LoginLimiter and RegisterLimiter are optional.
	LoginLimiter    RateLimiter
	RegisterLimiter RateLimiter
	TrustedProxies  *util.TrustedProxies
	CORSOrigins     []string
}

// Server exposes the catalog over HTTP.
type Server struct {
	app             *app.App
	metrics         *observability.Metrics
	loginLimiter    RateLimiter
	registerLimiter RateLimiter
	trustedProxies  *util.TrustedProxies
	router          chi.Router
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	s := &Server{
		app:             cfg.App,
		metrics:         cfg.Metrics,
		loginLimiter:    cfg.LoginLimiter,
		registerLimiter: cfg.RegisterLimiter,
		trustedProxies:  cfg.TrustedProxies,
	}
	s.router = s.routes(cfg.CORSOrigins)
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Routes exposes the route tree for inspection.
func (s *Server) Routes() chi.Routes {
	return s.router
}

func (s *Server) routes(corsOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(util.WithRequestID)
	r.Use(util.WithRequestLog)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(util.WithSecurityHeaders)
	r.Use(util.WithCORS(corsOrigins))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	adminOnly := s.authorize(domain.RoleAdmin)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(s.rateLimit("register", s.registerLimiter)).Post("/register", s.handleRegister)
		r.With(s.rateLimit("login", s.loginLimiter)).Post("/login", s.handleLogin)
		r.With(s.authenticate).Post("/logout", s.handleLogout)
	})

	r.Route("/api/admin/users", func(r chi.Router) {
		r.Use(s.authenticate, adminOnly)
		r.Get("/", s.handleListUsers)
		r.Post("/", s.handleCreateUser)
		r.Put("/{id}", s.handleUpdateUser)
		r.Delete("/{id}", s.handleDeleteUser)
	})

	r.Route("/api/books", func(r chi.Router) {
		r.Get("/", s.handleListBooks)
		r.Get("/search", s.handleSearchBooks)
		r.Get("/title/{title}", s.handleBooksByTitle)
		r.Get("/author/{author}", s.handleBooksByAuthor)
		r.Get("/isbn/{isbn}", s.handleBooksByISBN)
		r.Get("/{id}", s.handleGetBook)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate, adminOnly)
			r.Post("/", s.handleAddBook)
			r.Put("/{id}", s.handleUpdateBook)
			r.Delete("/{id}", s.handleDeleteBook)
		})
	})

	r.Route("/api/reviews", func(r chi.Router) {
		r.Get("/{bookId}", s.handleListReviews)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/", s.handleAddReview)
			r.Put("/{reviewId}", s.handleUpdateReview)
			r.Delete("/{reviewId}", s.handleDeleteReview)
		})
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/profile", s.handleProfile)
		r.With(adminOnly).Get("/admin", s.handleAdminWelcome)
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("API is running..."))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ready(r.Context()); err != nil {
		util.LoggerFromContext(r.Context()).Warn("store not ready", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func logServerError(r *http.Request, msg string, err error) {
	util.LoggerFromContext(r.Context()).Error(msg, "err", err, "path", r.URL.Path, "method", r.Method)
}
