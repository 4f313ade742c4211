// Package web provides the HTTP server and handlers for the operator console.
//
// Two surfaces share one set of sessions: server-rendered HTML for the
// operator at a browser, and a JSON API under /api for scripted use or a
// separately hosted front end. Each page load of / starts a new session.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/JonMunkholm/erpload/internal/config"
	"github.com/JonMunkholm/erpload/internal/core"
	"github.com/JonMunkholm/erpload/internal/web/middleware"
)

// Server is the HTTP server for the operator console.
type Server struct {
	cfg      *config.Config
	sessions *core.SessionStore
	limiter  *core.CallLimiter
	visitors *rateLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires routes around a session store. limiter is the shared
// submission limiter, reported by /healthz; it may be nil.
func NewServer(cfg *config.Config, sessions *core.SessionStore, limiter *core.CallLimiter) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		limiter:  limiter,
		router:   chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.visitors = newRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst)
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.visitors != nil {
		s.router.Use(s.visitors.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/session", s.handlePage)
		r.Post("/intake/file", s.handleChooseFile)
		r.Post("/intake/submit", s.handleSubmit)
		r.Post("/folio/apply", s.handleApplyFolio)
		r.Post("/log/clear", s.handleClearLog)
		r.Get("/log/export", s.handleExportLog)
	})

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		if origins := s.cfg.Security.CORSAllowedOrigins; len(origins) > 0 {
			r.Use(cors.New(cors.Options{
				AllowedOrigins:   origins,
				AllowCredentials: true,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowedHeaders:   []string{"Content-Type", "X-API-Key", sessionHeader},
				ExposedHeaders:   []string{sessionHeader},
			}).Handler)
		}
		r.Use(middleware.APIKeyAuth(s.cfg.Security))

		r.Post("/session", s.apiStartSession)

		r.Group(func(r chi.Router) {
			r.Use(s.withSession)

			r.Get("/session", s.apiGetSession)

			// Intake
			r.Post("/intake/file", s.apiChooseFile)
			r.Post("/intake/submit", s.apiSubmit)

			// Folio
			r.Get("/folio", s.apiGetFolio)
			r.Put("/folio/pending", s.apiSetPending)
			r.Post("/folio/apply", s.apiApplyFolio)

			// Ledger
			r.Get("/log", s.apiGetLog)
			r.Delete("/log", s.apiClearLog)
			r.Get("/log/export", s.handleExportLog)
		})
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// once Shutdown has been called, including when Shutdown ran first.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// RunMaintenance evicts idle rate-limit visitors every interval until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) {
	if s.visitors == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.visitors.sweep(now); n > 0 {
				slog.Debug("rate limiter visitors evicted", "count", n)
			}
		}
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status      string              `json:"status"`
	Sessions    int                 `json:"sessions"`
	Submissions *core.LimiterStatus `json:"submissions,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Sessions: s.sessions.Len()}
	if s.limiter != nil {
		st := s.limiter.Status()
		resp.Submissions = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// The page has no scripts; inline styles only.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
