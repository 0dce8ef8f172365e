// Package main is the entry point for the foodtrack HTTP server.
//
// The main package stays minimal:
//  1. Read configuration
//  2. Create dependencies (logger, store)
//  3. Start the server
//
// All actual logic lives in internal/.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/foodtrack/internal/config"
	"github.com/sakif/foodtrack/internal/logger"
	"github.com/sakif/foodtrack/internal/server"
	"github.com/sakif/foodtrack/internal/storage"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	log := logger.Setup(cfg)

	if cfg.EphemeralSecret {
		log.Warn("JWT_SECRET not set; using a random secret, sessions will not survive a restart")
	}
	if cfg.IsProduction() && !cfg.CookieSecure {
		log.Warn("COOKIE_SECURE is off in production; session cookies will be sent over plain HTTP")
	}
	if cfg.IsDevelopment() {
		log.Debug("development mode", slog.String("store", cfg.Store))
	}

	// === 3. STORE ===
	store, err := storage.Open(cfg, log)
	if err != nil {
		log.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. SERVER ===
	srv, err := server.New(cfg, store, log)
	if err != nil {
		store.Close()
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
