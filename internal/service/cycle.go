// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the store
//
// Services take repository interfaces, never a concrete store, and return
// apperror kinds, never HTTP status codes. The same services back the HTTP
// server, the admin CLI and the reminder job.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/repository"
)

// CycleService owns the cycle lifecycle: first cycle, rollover after day 30,
// explicit start-new and restart-from-1.
//
// It is stateless; per-user in-memory state lives in package tracker.
// "Today" always comes from the injected clock.
type CycleService struct {
	cycles repository.CycleRepository
	clock  calendar.Clock
	logger *slog.Logger
}

// NewCycleService creates a CycleService.
func NewCycleService(cycles repository.CycleRepository, clock calendar.Clock, logger *slog.Logger) *CycleService {
	return &CycleService{
		cycles: cycles,
		clock:  clock,
		logger: logger,
	}
}

// Status is the calculator's view of a cycle on a given day.
type Status struct {
	CurrentDay    int  `json:"currentDay"`
	RemainingDays int  `json:"remainingDays"`
	Progress      int  `json:"progress"`
	IsComplete    bool `json:"isComplete"`
}

// Today returns the current calendar date in the configured timezone.
func (s *CycleService) Today() time.Time {
	return s.clock.Today()
}

// Status evaluates c against today.
func (s *CycleService) Status(c *model.Cycle) Status {
	return StatusOn(c, s.clock.Today())
}

// StatusOn evaluates c against an explicit date.
func StatusOn(c *model.Cycle, today time.Time) Status {
	return Status{
		CurrentDay:    calendar.CurrentDay(c.StartDate, today),
		RemainingDays: calendar.RemainingDays(c.StartDate, today),
		Progress:      calendar.Progress(c.StartDate, today),
		IsComplete:    calendar.IsComplete(c.StartDate, today),
	}
}

// Load returns the user's active cycle, creating it when needed:
//
//   - no cycle yet        → cycle #1 starting today
//   - latest is complete  → cycle #(n+1) starting today; the old one is kept
//   - otherwise           → the latest cycle, unchanged
//
// Loading twice without a mutation in between returns the same cycle.
func (s *CycleService) Load(ctx context.Context, userID string) (*model.Cycle, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	latest, err := s.cycles.LatestCycle(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return s.create(ctx, userID, 1, "creating first cycle")
	}
	if err != nil {
		s.logger.Error("failed to load cycle",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, persistence("loading cycle", err)
	}

	today := s.clock.Today()
	if !calendar.IsComplete(latest.StartDate, today) {
		return latest, nil
	}

	next, err := s.create(ctx, userID, latest.Number+1, "starting next cycle")
	if err != nil {
		return nil, err
	}
	s.logger.Info("cycle rolled over",
		slog.String("userID", userID),
		slog.Int("from", latest.Number),
		slog.Int("to", next.Number),
		slog.String("previousStart", calendar.FormatISO(latest.StartDate)),
	)
	return next, nil
}

// Latest returns the user's highest-numbered cycle without creating or
// rolling over anything. Used by read-only callers (reminders, the CLI).
func (s *CycleService) Latest(ctx context.Context, userID string) (*model.Cycle, error) {
	latest, err := s.cycles.LatestCycle(ctx, userID)
	if err != nil {
		return nil, persistence("loading cycle", err)
	}
	return latest, nil
}

// UpdateEntry persists one field of one day slot. Day and field are
// validated before the store is touched.
func (s *CycleService) UpdateEntry(ctx context.Context, cycleID string, day int, field model.Field, value string) error {
	if strings.TrimSpace(cycleID) == "" {
		return apperror.ValidationFailed("cycleId", "cycle ID is required")
	}
	if err := model.ValidateDay(day); err != nil {
		return err
	}
	if _, err := model.ParseField(string(field)); err != nil {
		return err
	}

	if err := s.cycles.UpdateEntryField(ctx, cycleID, day, field, value); err != nil {
		s.logger.Error("entry update failed",
			slog.String("cycleID", cycleID),
			slog.Int("day", day),
			slog.String("field", string(field)),
			slog.String("error", err.Error()),
		)
		return persistence("saving entry", err)
	}

	s.logger.Debug("entry saved",
		slog.String("cycleID", cycleID),
		slog.Int("day", day),
		slog.String("field", string(field)),
	)
	return nil
}

// StartNewCycle creates cycle #(latest+1), or #1 if the user has none, even
// when the current cycle is not finished. Previous cycles are kept.
func (s *CycleService) StartNewCycle(ctx context.Context, userID string) (*model.Cycle, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	number := 1
	latest, err := s.cycles.LatestCycle(ctx, userID)
	switch {
	case err == nil:
		number = latest.Number + 1
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, persistence("loading cycle", err)
	}

	return s.create(ctx, userID, number, "starting new cycle")
}

// RestartFromCycle1 deletes every cycle of the user and creates #1 starting
// today. If the delete succeeds but the create fails, the next Load creates #1.
func (s *CycleService) RestartFromCycle1(ctx context.Context, userID string) (*model.Cycle, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	if err := s.cycles.DeleteAllCycles(ctx, userID); err != nil {
		s.logger.Error("failed to delete cycles",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, persistence("restarting cycles", err)
	}
	s.logger.Info("cycles deleted for restart", slog.String("userID", userID))

	return s.create(ctx, userID, 1, "restarting cycles")
}

// create persists a new cycle starting today.
//
// ROLLOVER RACE:
// Two sessions of one user can both see the old cycle as complete and both
// try to create the next number. The store rejects the second insert with
// ErrConflict; the loser re-reads and returns the winner's cycle, so both
// sessions end up on the same cycle.
func (s *CycleService) create(ctx context.Context, userID string, number int, op string) (*model.Cycle, error) {
	cycle, err := s.cycles.CreateCycle(ctx, userID, number, s.clock.Today())
	if errors.Is(err, apperror.ErrConflict) {
		latest, rerr := s.cycles.LatestCycle(ctx, userID)
		if rerr == nil && latest.Number >= number {
			s.logger.Info("cycle already created by another session",
				slog.String("userID", userID),
				slog.Int("cycle", latest.Number),
			)
			return latest, nil
		}
	}
	if err != nil {
		s.logger.Error("failed to create cycle",
			slog.String("userID", userID),
			slog.Int("cycle", number),
			slog.String("error", err.Error()),
		)
		return nil, persistence(op, err)
	}

	s.logger.Info("cycle created",
		slog.String("userID", userID),
		slog.Int("cycle", cycle.Number),
		slog.String("start", calendar.FormatISO(cycle.StartDate)),
	)
	return cycle, nil
}

// persistence wraps a store failure unless it already carries a kind
// (NotFound, Validation, Conflict), which must reach the caller unchanged.
func persistence(op string, err error) error {
	if apperror.IsKind(err) {
		return err
	}
	return apperror.Persistence(op, err)
}
