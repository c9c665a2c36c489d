package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cryams/cryams/internal/handler"
	"github.com/cryams/cryams/internal/server/middleware"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/ui"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	// CORSOrigins enables CORS on the JSON API for the listed origins. The
	// HTML pages are same-origin only.
	CORSOrigins     []string
	// TrustProxy keys rate limits and logs on the forwarded client address
	// instead of the connection's remote address.
	TrustProxy      bool
	PublicPerMinute int
	LoginPerMinute  int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            3000,
		ShutdownTimeout: 30 * time.Second,
		PublicPerMinute: 10,
		LoginPerMinute:  5,
	}
}

// Handlers bundles the route handlers the server mounts.
type Handlers struct {
	API     *handler.APIHandler
	Pages   *handler.Pages
	OpenAPI *handler.OpenAPIHandler
	// MCP is mounted at /mcp behind bearer authentication when set.
	MCP http.Handler
}

// Server is the top-level HTTP server for cryams. It owns the Chi router and
// the authentication service guarding the admin routes.
type Server struct {
	cfg        Config
	router     chi.Router
	h          Handlers
	authSvc    *service.AuthService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, h Handlers, authSvc *service.AuthService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		h:       h,
		authSvc: authSvc,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", s.h.OpenAPI.ServeSpec)

	// --- JSON API ---
	r.Route("/api/v1", func(r chi.Router) {
		if len(s.cfg.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.cfg.CORSOrigins,
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         300,
			}))
		}

		r.With(middleware.RateLimit(s.cfg.LoginPerMinute)).Post("/session", s.h.API.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc))

			r.Get("/profiles", s.h.API.ListProfiles)
			r.Post("/profiles", s.h.API.CreateProfile)
			r.Get("/profiles/{uuid}", s.h.API.GetProfile)
			r.Delete("/profiles/{uuid}", s.h.API.DeleteProfile)

			r.Get("/requests", s.h.API.ListRequests)
			r.Post("/requests/{uuid}/approve", s.h.API.ApproveRequest)
			r.Post("/requests/{uuid}/reject", s.h.API.RejectRequest)
		})
	})

	// --- MCP over Streamable HTTP ---
	if s.h.MCP != nil {
		r.With(middleware.Authenticate(s.authSvc)).Handle("/mcp", s.h.MCP)
	}

	// --- Static assets ---
	r.Handle("/static/*", ui.Handler())

	// --- HTML pages ---
	pages := s.h.Pages
	r.Group(func(r chi.Router) {
		r.Use(http.NewCrossOriginProtection().Handler)

		publicLimit := middleware.RateLimitWith(s.cfg.PublicPerMinute, pages.TooManyRequests)
		loginLimit := middleware.RateLimitWith(s.cfg.LoginPerMinute, pages.TooManyRequests)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/setup", pages.SetupForm)
			r.With(loginLimit).Post("/setup", pages.Setup)
			r.Get("/login", pages.LoginForm)
			r.With(loginLimit).Post("/login", pages.Login)
			r.Post("/logout", pages.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession(s.authSvc, handler.LoginPath))

				r.Get("/", pages.Dashboard)
				r.Post("/profiles", pages.CreateProfile)
				r.Post("/profiles/{uuid}/delete", pages.DeleteProfile)
				r.Get("/profiles/{uuid}/sticker.pdf", pages.StickerPDF)
				r.Post("/requests/{uuid}/approve", pages.ApproveRequest)
				r.Post("/requests/{uuid}/reject", pages.RejectRequest)
				r.Get("/password", pages.PasswordForm)
				r.Post("/password", pages.ChangePassword)
			})
		})

		r.Get("/", pages.Index)
		r.With(publicLimit).Post("/request", pages.SubmitRequest)
		r.Get("/qr/{uuid}", pages.QRCode)
		r.Get("/{uuid}", pages.Profile)
		r.With(publicLimit).Post("/{uuid}/message", pages.SendMessage)
	})

	r.NotFound(pages.NotFound)

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. It answers 503 while the admin
// credential file exists but cannot be read, since nobody can log in.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"admin": "configured"}

	_, configured := s.authSvc.Admin()
	switch {
	case configured:
	case s.authSvc.NeedsSetup():
		checks["admin"] = "setup required"
	default:
		checks["admin"] = "credential unreadable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
