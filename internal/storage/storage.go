// Package storage opens the configured Store Adapter.
//
// Everything above this package works against repository.Store; this is the
// only place that knows both backends exist.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/foodtrack/internal/config"
	"github.com/sakif/foodtrack/internal/repository"
	boltRepo "github.com/sakif/foodtrack/internal/repository/bolt"
	sqliteRepo "github.com/sakif/foodtrack/internal/repository/sqlite"
)

// Store is a repository.Store that can also report its health.
type Store interface {
	repository.Store
	Ping(ctx context.Context) error
}

var (
	_ Store = (*sqliteRepo.DB)(nil)
	_ Store = (*boltRepo.DB)(nil)
)

// Open opens the backend named by cfg.Store.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		db, err := sqliteRepo.New(cfg.DBPath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("store opened", slog.String("backend", cfg.Store), slog.String("path", cfg.DBPath))
		return db, nil

	case config.StoreBolt:
		// bolt.New creates its own directory.
		return boltRepo.New(cfg.BoltPath, logger)

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Store)
	}
}

// ensureDir creates the parent directory of a file database (like `mkdir -p`).
func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: creating database directory %s: %w", dir, err)
	}
	return nil
}
