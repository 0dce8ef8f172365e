// Package repository declares the persistence boundary.
//
// Two implementations live in subpackages: sqlite (relational, one row per
// day slot) and bolt (embedded key-value, one value per cycle). The services
// only ever see these interfaces, so the backend is chosen once at startup and
// nothing else changes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/foodtrack/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize applies the default and maximum page size.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// UserRepository stores accounts. Lookups by username and email are
// case-insensitive. Create fills ID and timestamps and returns
// apperror.ErrConflict when the username, email or GitHub ID is taken.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
}

// CycleRepository stores cycles and their day slots.
//
// CreateCycle must make the cycle and all of its empty slots visible together:
// a reader never sees a cycle with fewer than 30 slots.
type CycleRepository interface {
	LatestCycle(ctx context.Context, userID string) (*model.Cycle, error)
	CreateCycle(ctx context.Context, userID string, number int, startDate time.Time) (*model.Cycle, error)
	UpdateEntryField(ctx context.Context, cycleID string, day int, field model.Field, value string) error
	DeleteAllCycles(ctx context.Context, userID string) error
}

// Store is a complete backend.
type Store interface {
	Users() UserRepository
	Cycles() CycleRepository
	Close() error
}
