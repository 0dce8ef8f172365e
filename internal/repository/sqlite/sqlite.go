// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no C compiler, no CGo, and the same
// binary cross-compiles everywhere Go does.
//
// LAYOUT:
// One row per user, one row per cycle, and one row per day slot
// (food_entries). A cycle and its 30 slots are inserted in one transaction,
// so a reader never sees a half-built cycle.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodtrack/internal/repository"
	"github.com/sakif/foodtrack/internal/repository/sqlite/migrations"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and hands out the repositories.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the database at dbPath and applies migrations.
//
// dbPath examples:
//   - "data/foodtrack.db" → file-based database
//   - ":memory:"          → in-memory database, used by tests
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// ONE CONNECTION:
	// SQLite allows a single writer at a time, and PRAGMAs are per connection.
	// With ":memory:" every new connection would also be a brand new, empty
	// database. Pinning the pool to one connection avoids all three problems.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn, logger: logger}

	if _, err := migrations.Run(context.Background(), conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection; used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Users returns the user repository backed by this database.
func (db *DB) Users() repository.UserRepository {
	return &UserDB{conn: db.conn}
}

// Cycles returns the cycle repository backed by this database.
func (db *DB) Cycles() repository.CycleRepository {
	return &CycleDB{conn: db.conn}
}

// uniqueViolation returns the column named in a UNIQUE constraint failure,
// or "" if err is not one. SQLite reports them as
// "UNIQUE constraint failed: users.email".
func uniqueViolation(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	cols := msg[i+len(marker):]
	// Composite keys list every column: "food_cycles.user_id, food_cycles.cycle_number".
	if j := strings.LastIndex(cols, "."); j >= 0 {
		cols = cols[j+1:]
	}
	if k := strings.IndexAny(cols, " )"); k >= 0 {
		cols = cols[:k]
	}
	return cols
}
