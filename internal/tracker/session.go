// Package tracker keeps the in-memory state of a user's tracking session.
//
// A Session mirrors the active cycle so reads (current day, grid contents)
// never wait for the store, and applies edits optimistically: the value is
// visible immediately and rolled back if the store rejects it.
package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/model"
)

// Lifecycle is the store-facing half of cycle management.
// *service.CycleService implements it.
type Lifecycle interface {
	Load(ctx context.Context, userID string) (*model.Cycle, error)
	UpdateEntry(ctx context.Context, cycleID string, day int, field model.Field, value string) error
	StartNewCycle(ctx context.Context, userID string) (*model.Cycle, error)
	RestartFromCycle1(ctx context.Context, userID string) (*model.Cycle, error)
}

type slot struct {
	day   int
	field model.Field
}

// Session is one user's view of their active cycle.
//
// The mutex guards the fields below it and is never held across a store
// call, so a slow write does not block readers.
type Session struct {
	userID    string
	lifecycle Lifecycle
	clock     calendar.Clock
	logger    *slog.Logger

	mu      sync.Mutex
	cycle   *model.Cycle // nil until the first successful load
	err     error
	seq     uint64
	pending map[slot]uint64 // latest tentative write per slot
}

// NewSession creates an empty session; call Load before reading.
func NewSession(userID string, lifecycle Lifecycle, clock calendar.Clock, logger *slog.Logger) *Session {
	return &Session{
		userID:    userID,
		lifecycle: lifecycle,
		clock:     clock,
		logger:    logger.With(slog.String("userID", userID)),
		pending:   make(map[slot]uint64),
	}
}

// Load fetches (and if needed creates or rolls over) the active cycle.
// On failure the session is left without a cycle and the error is recorded.
func (s *Session) Load(ctx context.Context) error {
	cycle, err := s.lifecycle.Load(ctx, s.userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.cycle = nil
		s.err = err
		return err
	}
	s.replace(cycle)
	return nil
}

// Ensure loads the cycle if the session has none yet.
func (s *Session) Ensure(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.cycle != nil
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.Load(ctx)
}

// UpdateEntry sets one field of one day: tentative write, confirm or revert.
//
//  1. Validate, then apply the value in memory (visible to Snapshot at once).
//  2. Persist it.
//  3. On failure put the previous value back, unless a later UpdateEntry of
//     the same slot has replaced it in the meantime, and return the error.
//
// There is no retry and no queue: every call is exactly one store write.
func (s *Session) UpdateEntry(ctx context.Context, day int, field model.Field, value string) error {
	if err := model.ValidateDay(day); err != nil {
		return err
	}
	if _, err := model.ParseField(string(field)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.cycle == nil {
		s.mu.Unlock()
		return apperror.NotFound("cycle for user", s.userID)
	}
	entry, _ := s.cycle.Days.Entry(day)
	previous := entry.Get(field)
	entry.Set(field, value)

	key := slot{day: day, field: field}
	s.seq++
	token := s.seq
	s.pending[key] = token
	cycleID := s.cycle.ID
	s.mu.Unlock()

	err := s.lifecycle.UpdateEntry(ctx, cycleID, day, field, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	latest := s.pending[key] == token
	if latest {
		delete(s.pending, key)
	}

	if err != nil {
		if !apperror.IsKind(err) {
			err = apperror.Persistence("saving entry", err)
		}
		// The cycle may have been replaced (start new, restart) while the
		// write was in flight; only the cycle that was edited is reverted.
		if latest && s.cycle != nil && s.cycle.ID == cycleID {
			entry, _ := s.cycle.Days.Entry(day)
			entry.Set(field, previous)
		}
		s.err = err
		s.logger.Warn("entry reverted after failed save",
			slog.Int("day", day),
			slog.String("field", string(field)),
			slog.Bool("superseded", !latest),
		)
		return err
	}

	s.err = nil
	return nil
}

// StartNewCycle begins the next cycle immediately. On failure the current
// cycle stays in place.
func (s *Session) StartNewCycle(ctx context.Context) error {
	return s.swap(s.lifecycle.StartNewCycle(ctx, s.userID))
}

// RestartFromCycle1 discards every cycle and starts over at #1. On failure
// the current cycle stays in place.
func (s *Session) RestartFromCycle1(ctx context.Context) error {
	return s.swap(s.lifecycle.RestartFromCycle1(ctx, s.userID))
}

func (s *Session) swap(cycle *model.Cycle, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		return err
	}
	s.replace(cycle)
	return nil
}

// replace installs a new cycle. Callers hold mu.
func (s *Session) replace(cycle *model.Cycle) {
	s.cycle = cycle
	s.err = nil
	clear(s.pending)
}

// Snapshot returns a copy of the active cycle. ok is false before the first
// successful load.
func (s *Session) Snapshot() (cycle model.Cycle, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycle == nil {
		return model.Cycle{}, false
	}
	return *s.cycle, true
}

// CurrentDay is the 1-based day of the active cycle, or 1 without one.
func (s *Session) CurrentDay() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycle == nil {
		return 1
	}
	return calendar.CurrentDay(s.cycle.StartDate, s.clock.Today())
}

// RemainingDays counts today and the days after it, or 30 without a cycle.
func (s *Session) RemainingDays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycle == nil {
		return calendar.CycleLength
	}
	return calendar.RemainingDays(s.cycle.StartDate, s.clock.Today())
}

// Err is the error of the last failed operation, cleared by the next success.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
