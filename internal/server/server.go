// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: config, store, services, handlers and
// middleware meet here and nowhere else. main.go stays minimal.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/foodtrack/internal/auth"
	"github.com/sakif/foodtrack/internal/config"
	"github.com/sakif/foodtrack/internal/handler"
	"github.com/sakif/foodtrack/internal/middleware"
	"github.com/sakif/foodtrack/internal/reminder"
	"github.com/sakif/foodtrack/internal/storage"
	"github.com/sakif/foodtrack/internal/tracker"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Start closes it after the HTTP server and the
// reminder scheduler have stopped, so no request or sweep is cut off
// mid-write.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	store     storage.Store
	services  *Services
	sessions  *tracker.Registry
	scheduler *reminder.Scheduler // nil when reminders are disabled
}

// New wires a Server on top of an open store.
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) (*Server, error) {
	services, err := NewServices(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		services: services,
		sessions: tracker.NewRegistry(services.Cycles, services.Clock, logger),
	}

	if cfg.ReminderSchedule != "" {
		s.scheduler, err = reminder.NewScheduler(cfg.ReminderSchedule, cfg.Location(), services.Sweeper, logger)
		if err != nil {
			return nil, err
		}
	}

	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                          → store health
// POST   /auth/register                    → create account (rate limited)
// POST   /auth/login                       → sign in (rate limited)
// POST   /auth/logout                      → sign out
// GET    /auth/github/login|callback       → GitHub OAuth (when configured)
// GET    /api/me                           → current user
// GET    /api/cycle                        → dashboard
// PUT    /api/cycle/days/{day}/{field}     → edit one field of one day
// POST   /api/cycle/new                    → start the next cycle now
// POST   /api/cycle/restart                → delete all cycles, start at #1
// GET    /api/cycle/export.pdf             → PDF report
// GET    /api/admin/users                  → admin-only user list
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so every later log line carries it; RealIP before the rate
// limiter so it keys on the client, not the proxy.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// A typed nil *GitHubProvider inside the interface would look configured.
	var github auth.OAuthProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	authHandler := handler.NewAuthHandler(s.services.Auth, s.sessions, github, s.config.CookieSecure, s.logger)
	cycleHandler := handler.NewCycleHandler(s.sessions, s.services.Cycles, s.services.Auth, s.logger)
	adminHandler := handler.NewAdminHandler(s.services.Auth)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	limiter := middleware.NewIPLimiter(s.config.LoginRate, s.config.LoginBurst)
	s.router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiter))
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})
		r.Post("/logout", authHandler.HandleLogout)

		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.services.Tokens))

		r.Get("/me", authHandler.HandleMe)

		r.Route("/cycle", func(r chi.Router) {
			r.Get("/", cycleHandler.HandleGet)
			r.Put("/days/{day}/{field}", cycleHandler.HandleUpdateEntry)
			r.Post("/new", cycleHandler.HandleStartNew)
			r.Post("/restart", cycleHandler.HandleRestart)
			r.Get("/export.pdf", cycleHandler.HandleExport)
		})

		r.Get("/admin/users", adminHandler.HandleListUsers)
	})
}

// Start runs the server until SIGINT or SIGTERM, then shuts down gracefully:
//
//  1. Stop accepting connections and let in-flight requests finish (30s)
//  2. Stop the reminder scheduler, waiting for a running sweep
//  3. Close the store (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.scheduler != nil {
		s.scheduler.Start()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("store", s.config.Store),
			slog.String("timezone", s.config.Timezone),
			slog.Bool("github", s.config.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	if s.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.scheduler.Stop(ctx); err != nil {
			s.logger.Warn("reminder sweep still running at shutdown", slog.String("error", err.Error()))
		}
	}

	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}
