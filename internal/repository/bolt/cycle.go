package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	bbolt "go.etcd.io/bbolt"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/repository"
)

var _ repository.CycleRepository = (*CycleDB)(nil)

// CycleDB stores one JSON value per cycle in a per-user nested bucket.
type CycleDB struct {
	db *bbolt.DB
}

type cycleRecord struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Number    int                `json:"cycleNumber"`
	StartDate string             `json:"startDate"`
	Days      model.TrackingData `json:"days"`
	CreatedAt time.Time          `json:"createdAt"`
}

type cycleOwner struct {
	UserID string `json:"userId"`
	Number int    `json:"cycleNumber"`
}

func (r cycleRecord) toModel() (*model.Cycle, error) {
	start, err := calendar.ParseDate(r.StartDate)
	if err != nil {
		return nil, err
	}
	return &model.Cycle{
		ID:        r.ID,
		UserID:    r.UserID,
		Number:    r.Number,
		StartDate: start,
		Days:      r.Days,
		CreatedAt: r.CreatedAt,
	}, nil
}

// LatestCycle reads the last key of the user's bucket, which is the highest
// cycle number because keys are big-endian.
func (c *CycleDB) LatestCycle(ctx context.Context, userID string) (*model.Cycle, error) {
	var rec cycleRecord
	err := view(ctx, c.db, func(tx *bbolt.Tx) error {
		userBucket := tx.Bucket(bucketCycles).Bucket([]byte(userID))
		if userBucket == nil {
			return apperror.NotFound("cycle for user", userID)
		}
		_, data := userBucket.Cursor().Last()
		if data == nil {
			return apperror.NotFound("cycle for user", userID)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		if apperror.IsKind(err) {
			return nil, err
		}
		return nil, fmt.Errorf("bolt: loading latest cycle for user %s: %w", userID, err)
	}

	cycle, err := rec.toModel()
	if err != nil {
		return nil, fmt.Errorf("bolt: cycle %s: %w", rec.ID, err)
	}
	return cycle, nil
}

// CreateCycle stores a new cycle with 30 empty slots. A number that already
// exists for the user is apperror.ErrConflict.
func (c *CycleDB) CreateCycle(ctx context.Context, userID string, number int, startDate time.Time) (*model.Cycle, error) {
	cycle := model.NewCycle(userID, number, startDate)
	cycle.ID = xid.New().String()
	cycle.CreatedAt = time.Now().UTC()

	rec := cycleRecord{
		ID:        cycle.ID,
		UserID:    userID,
		Number:    number,
		StartDate: calendar.FormatISO(cycle.StartDate),
		Days:      cycle.Days,
		CreatedAt: cycle.CreatedAt,
	}

	err := update(ctx, c.db, func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsers).Get([]byte(userID)) == nil {
			return apperror.NotFound("user", userID)
		}
		userBucket, err := tx.Bucket(bucketCycles).CreateBucketIfNotExists([]byte(userID))
		if err != nil {
			return err
		}
		key := numberKey(number)
		if userBucket.Get(key) != nil {
			return apperror.Conflict("cycle", "cycle_number")
		}
		if err := putJSON(userBucket, key, rec); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketCycleOwners), []byte(cycle.ID), cycleOwner{UserID: userID, Number: number})
	})
	if err != nil {
		if apperror.IsKind(err) {
			return nil, err
		}
		return nil, fmt.Errorf("bolt: inserting cycle %d for user %s: %w", number, userID, err)
	}
	return cycle, nil
}

// UpdateEntryField rewrites the cycle value with one field changed.
// Read-modify-write is safe because bbolt serialises write transactions.
func (c *CycleDB) UpdateEntryField(ctx context.Context, cycleID string, day int, field model.Field, value string) error {
	if err := model.ValidateDay(day); err != nil {
		return err
	}
	if _, err := model.ParseField(string(field)); err != nil {
		return err
	}

	err := update(ctx, c.db, func(tx *bbolt.Tx) error {
		ownerData := tx.Bucket(bucketCycleOwners).Get([]byte(cycleID))
		if ownerData == nil {
			return apperror.NotFound("cycle", cycleID)
		}
		var owner cycleOwner
		if err := json.Unmarshal(ownerData, &owner); err != nil {
			return err
		}

		userBucket := tx.Bucket(bucketCycles).Bucket([]byte(owner.UserID))
		if userBucket == nil {
			return apperror.NotFound("cycle", cycleID)
		}
		key := numberKey(owner.Number)
		data := userBucket.Get(key)
		if data == nil {
			return apperror.NotFound("cycle", cycleID)
		}

		var rec cycleRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		slot, err := rec.Days.Entry(day)
		if err != nil {
			return err
		}
		slot.Set(field, value)
		return putJSON(userBucket, key, rec)
	})
	if err != nil {
		if apperror.IsKind(err) {
			return err
		}
		return fmt.Errorf("bolt: updating %s of day %d in cycle %s: %w", field, day, cycleID, err)
	}
	return nil
}

// DeleteAllCycles drops the user's nested bucket and the owner entries that
// point into it.
func (c *CycleDB) DeleteAllCycles(ctx context.Context, userID string) error {
	err := update(ctx, c.db, func(tx *bbolt.Tx) error {
		cycles := tx.Bucket(bucketCycles)
		userBucket := cycles.Bucket([]byte(userID))
		if userBucket == nil {
			return nil
		}

		owners := tx.Bucket(bucketCycleOwners)
		var ids [][]byte
		err := userBucket.ForEach(func(_, v []byte) error {
			var rec cycleRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			ids = append(ids, []byte(rec.ID))
			return nil
		})
		if err != nil {
			return err
		}
		// Deleting while iterating with ForEach is not allowed, hence the two passes.
		for _, id := range ids {
			if err := owners.Delete(id); err != nil {
				return err
			}
		}
		return cycles.DeleteBucket([]byte(userID))
	})
	if err != nil {
		return fmt.Errorf("bolt: deleting cycles of user %s: %w", userID, err)
	}
	return nil
}
