package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
	bbolt "go.etcd.io/bbolt"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores users and their three lookup indexes.
type UserDB struct {
	db *bbolt.DB
}

// userRecord is the stored form. model.User hides PasswordHash from JSON,
// so it cannot be marshaled directly.
type userRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	GitHubID     int64     `json:"githubId,omitempty"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toRecord(u *model.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		GitHubID:     u.GitHubID,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRecord) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		GitHubID:     r.GitHubID,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fold(s string) []byte { return []byte(strings.ToLower(s)) }

// Create inserts the user and its index entries in one transaction. The
// indexes are checked inside that same transaction, so two concurrent
// registrations of one name cannot both succeed.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := update(ctx, u.db, func(tx *bbolt.Tx) error {
		byName := tx.Bucket(bucketUsersByName)
		byMail := tx.Bucket(bucketUsersByMail)
		byGH := tx.Bucket(bucketUsersByGH)

		if byName.Get(fold(user.Username)) != nil {
			return apperror.Conflict("user", "username")
		}
		if byMail.Get(fold(user.Email)) != nil {
			return apperror.Conflict("user", "email")
		}
		ghKey := []byte(strconv.FormatInt(user.GitHubID, 10))
		if user.GitHubID != 0 && byGH.Get(ghKey) != nil {
			return apperror.Conflict("user", "github_id")
		}

		if err := putJSON(tx.Bucket(bucketUsers), []byte(user.ID), toRecord(user)); err != nil {
			return err
		}
		id := []byte(user.ID)
		if err := byName.Put(fold(user.Username), id); err != nil {
			return err
		}
		if err := byMail.Put(fold(user.Email), id); err != nil {
			return err
		}
		if user.GitHubID != 0 {
			return byGH.Put(ghKey, id)
		}
		return nil
	})
	if err != nil {
		if apperror.IsKind(err) {
			return err
		}
		return fmt.Errorf("bolt: inserting user %q: %w", user.Username, err)
	}
	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getVia(ctx, nil, []byte(id), id)
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getVia(ctx, bucketUsersByName, fold(username), username)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getVia(ctx, bucketUsersByMail, fold(email), email)
}

func (u *UserDB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	key := strconv.FormatInt(githubID, 10)
	return u.getVia(ctx, bucketUsersByGH, []byte(key), key)
}

// getVia resolves key through an index bucket (or directly when index is
// nil) and decodes the user record.
func (u *UserDB) getVia(ctx context.Context, index, key []byte, display string) (*model.User, error) {
	var rec userRecord
	err := view(ctx, u.db, func(tx *bbolt.Tx) error {
		id := key
		if index != nil {
			id = tx.Bucket(index).Get(key)
			if id == nil {
				return apperror.NotFound("user", display)
			}
		}
		data := tx.Bucket(bucketUsers).Get(id)
		if data == nil {
			return apperror.NotFound("user", display)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		if apperror.IsKind(err) {
			return nil, err
		}
		return nil, fmt.Errorf("bolt: getting user %q: %w", display, err)
	}
	return rec.toModel(), nil
}

var errStopIteration = errors.New("stop")

// List returns users oldest first. xid IDs sort by creation time, so key
// order in the users bucket is already the right order.
func (u *UserDB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	opts = opts.Normalize()
	users := make([]model.User, 0, opts.Limit)

	err := view(ctx, u.db, func(tx *bbolt.Tx) error {
		skipped := 0
		err := tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			if skipped < opts.Offset {
				skipped++
				return nil
			}
			if len(users) == opts.Limit {
				return errStopIteration
			}
			var rec userRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			users = append(users, *rec.toModel())
			return nil
		})
		if errors.Is(err, errStopIteration) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: listing users: %w", err)
	}
	return users, nil
}
