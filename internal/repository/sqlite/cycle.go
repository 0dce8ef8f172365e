package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/repository"
)

var _ repository.CycleRepository = (*CycleDB)(nil)

// CycleDB is the food_cycles and food_entries tables.
type CycleDB struct {
	conn *sql.DB
}

// LatestCycle returns the user's highest-numbered cycle with all 30 slots.
// Returns apperror.ErrNotFound when the user has no cycle yet.
func (c *CycleDB) LatestCycle(ctx context.Context, userID string) (*model.Cycle, error) {
	var (
		cycle     model.Cycle
		startDate string
	)
	err := c.conn.QueryRowContext(ctx,
		`SELECT id, user_id, cycle_number, start_date, created_at
		 FROM food_cycles
		 WHERE user_id = ?
		 ORDER BY cycle_number DESC
		 LIMIT 1`,
		userID,
	).Scan(&cycle.ID, &cycle.UserID, &cycle.Number, &startDate, &cycle.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("cycle for user", userID)
		}
		return nil, fmt.Errorf("sqlite: loading latest cycle for user %s: %w", userID, err)
	}

	if cycle.StartDate, err = calendar.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("sqlite: cycle %s: %w", cycle.ID, err)
	}

	if err := c.loadEntries(ctx, &cycle); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// loadEntries fills cycle.Days from food_entries.
//
// Missing rows are left empty rather than treated as an error: the array
// already has 30 slots, so a damaged cycle still renders as a full grid.
func (c *CycleDB) loadEntries(ctx context.Context, cycle *model.Cycle) error {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT day_number, morning, noon, evening, total_calories
		 FROM food_entries
		 WHERE cycle_id = ?
		 ORDER BY day_number`,
		cycle.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading entries for cycle %s: %w", cycle.ID, err)
	}
	defer rows.Close()

	cycle.Days = model.NewTrackingData()
	for rows.Next() {
		var (
			day   int
			entry model.DayEntry
		)
		if err := rows.Scan(&day, &entry.Morning, &entry.Noon, &entry.Evening, &entry.TotalCalories); err != nil {
			return fmt.Errorf("sqlite: scanning entry row: %w", err)
		}
		slot, err := cycle.Days.Entry(day)
		if err != nil {
			continue // CHECK constraint makes this unreachable
		}
		*slot = entry
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating entries for cycle %s: %w", cycle.ID, err)
	}
	return nil
}

// CreateCycle inserts a cycle and its 30 empty slots in one transaction.
//
// The (user_id, cycle_number) UNIQUE constraint turns a second insert of the
// same number (two sessions rolling over at once) into apperror.ErrConflict.
func (c *CycleDB) CreateCycle(ctx context.Context, userID string, number int, startDate time.Time) (*model.Cycle, error) {
	cycle := model.NewCycle(userID, number, startDate)
	cycle.ID = xid.New().String()
	cycle.CreatedAt = time.Now().UTC()

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning cycle transaction: %w", err)
	}
	// Rollback after Commit is a no-op, so deferring it is always safe.
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO food_cycles (id, user_id, cycle_number, start_date, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		cycle.ID,
		cycle.UserID,
		cycle.Number,
		calendar.FormatISO(cycle.StartDate),
		cycle.CreatedAt,
	)
	if err != nil {
		if col := uniqueViolation(err); col != "" {
			return nil, apperror.Conflict("cycle", col)
		}
		return nil, fmt.Errorf("sqlite: inserting cycle %d for user %s: %w", number, userID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO food_entries (cycle_id, day_number, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: preparing entry insert: %w", err)
	}
	defer stmt.Close()

	for day := 1; day <= calendar.CycleLength; day++ {
		if _, err := stmt.ExecContext(ctx, cycle.ID, day, cycle.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: inserting entry %d for cycle %s: %w", day, cycle.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing cycle %s: %w", cycle.ID, err)
	}

	return cycle, nil
}

// UpdateEntryField writes one field of one slot.
//
// The column name comes from model.Field.Column, a closed set, never from
// user input, so formatting it into the statement is safe.
func (c *CycleDB) UpdateEntryField(ctx context.Context, cycleID string, day int, field model.Field, value string) error {
	if err := model.ValidateDay(day); err != nil {
		return err
	}
	if _, err := model.ParseField(string(field)); err != nil {
		return err
	}

	result, err := c.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE food_entries SET %s = ?, updated_at = ?
		 WHERE cycle_id = ? AND day_number = ?`, field.Column()),
		value,
		time.Now().UTC(),
		cycleID,
		day,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s of day %d in cycle %s: %w", field, day, cycleID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("cycle", cycleID)
	}
	return nil
}

// DeleteAllCycles removes every cycle and slot of the user.
// Deleting a user with no cycles is not an error.
func (c *CycleDB) DeleteAllCycles(ctx context.Context, userID string) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	// ON DELETE CASCADE would cover the entries, but only while the
	// foreign_keys pragma is on; deleting them explicitly does not depend on it.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM food_entries
		 WHERE cycle_id IN (SELECT id FROM food_cycles WHERE user_id = ?)`, userID); err != nil {
		return fmt.Errorf("sqlite: deleting entries of user %s: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM food_cycles WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: deleting cycles of user %s: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing delete for user %s: %w", userID, err)
	}
	return nil
}
