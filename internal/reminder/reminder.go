// Package reminder runs the periodic "days remaining" sweep.
//
// The sweep only reads: it never creates or rolls over a cycle. A user whose
// cycle is complete is told a new one starts on their next visit, and the
// rollover itself happens when they load the tracker.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/repository"
	"github.com/sakif/foodtrack/internal/service"
)

// pageSize is how many users one List call fetches.
const pageSize = 100

// UserLister pages through every account. *service.AuthService implements it.
type UserLister interface {
	AllUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error)
}

// CycleReader reads a user's latest cycle without side effects.
// *service.CycleService implements it.
type CycleReader interface {
	Latest(ctx context.Context, userID string) (*model.Cycle, error)
	Today() time.Time
}

// Reminder is one notification.
type Reminder struct {
	User        model.User
	CycleNumber int
	Status      service.Status
}

// Message is the human-readable text of the reminder.
func (r Reminder) Message() string {
	switch {
	case r.Status.IsComplete:
		return fmt.Sprintf("Cycle #%d is complete. Cycle #%d starts on your next visit.",
			r.CycleNumber, r.CycleNumber+1)
	case r.Status.RemainingDays == 1:
		return fmt.Sprintf("Today is the last day of cycle #%d.", r.CycleNumber)
	default:
		return fmt.Sprintf("%d days remaining in cycle #%d.", r.Status.RemainingDays, r.CycleNumber)
	}
}

// Notifier delivers reminders.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// LogNotifier writes reminders to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, r Reminder) error {
	n.Logger.Info("cycle reminder",
		slog.String("userID", r.User.ID),
		slog.String("username", r.User.Username),
		slog.Int("cycle", r.CycleNumber),
		slog.Int("remainingDays", r.Status.RemainingDays),
		slog.Bool("complete", r.Status.IsComplete),
		slog.String("message", r.Message()),
	)
	return nil
}

// Result summarises one sweep.
type Result struct {
	Users    int
	Notified int
	Failed   int
}

// Sweeper finds users whose cycle is ending and notifies them.
type Sweeper struct {
	users     UserLister
	cycles    CycleReader
	notifier  Notifier
	threshold int
	logger    *slog.Logger
}

// NewSweeper creates a Sweeper that reminds when at most threshold days remain.
func NewSweeper(users UserLister, cycles CycleReader, notifier Notifier, threshold int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		users:     users,
		cycles:    cycles,
		notifier:  notifier,
		threshold: threshold,
		logger:    logger,
	}
}

// Due reports whether a cycle in status st warrants a reminder.
func (s *Sweeper) Due(st service.Status) bool {
	return st.IsComplete || st.RemainingDays <= s.threshold
}

// RunOnce sweeps every user once. A failure for one user is logged and
// counted; only a failure to list users aborts the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	today := s.cycles.Today()

	for offset := 0; ; offset += pageSize {
		page, err := s.users.AllUsers(ctx, repository.ListOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return res, fmt.Errorf("reminder: listing users: %w", err)
		}

		for _, user := range page {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Users++

			sent, err := s.remind(ctx, user, today)
			if err != nil {
				res.Failed++
				s.logger.Warn("reminder failed",
					slog.String("userID", user.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if sent {
				res.Notified++
			}
		}

		if len(page) < pageSize {
			break
		}
	}

	s.logger.Info("reminder sweep finished",
		slog.Int("users", res.Users),
		slog.Int("notified", res.Notified),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Sweeper) remind(ctx context.Context, user model.User, today time.Time) (bool, error) {
	cycle, err := s.cycles.Latest(ctx, user.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		// Never opened the tracker.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	st := service.StatusOn(cycle, today)
	if !s.Due(st) {
		return false, nil
	}
	return true, s.notifier.Notify(ctx, Reminder{
		User:        user,
		CycleNumber: cycle.Number,
		Status:      st,
	})
}
