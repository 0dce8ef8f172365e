package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================
//
// In-memory implementations of the repository interfaces. A fake (not a mock
// framework) keeps the tests readable: you can see exactly what the store does.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	// set to a non-nil error to simulate a store failure
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		switch {
		case strings.EqualFold(u.Username, user.Username):
			return apperror.Conflict("user", "username")
		case strings.EqualFold(u.Email, user.Email):
			return apperror.Conflict("user", "email")
		case user.GitHubID != 0 && u.GitHubID == user.GitHubID:
			return apperror.Conflict("user", "github_id")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool, display string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", display)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return strings.EqualFold(u.Username, username) }, username)
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

func (f *fakeUserRepo) GetByGitHubID(_ context.Context, id int64) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.GitHubID == id }, fmt.Sprint(id))
}

func (f *fakeUserRepo) List(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	opts = opts.Normalize()
	all := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if opts.Offset >= len(all) {
		return []model.User{}, nil
	}
	all = all[opts.Offset:]
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

type fakeCycleRepo struct {
	mu     sync.Mutex
	cycles map[string][]*model.Cycle // by user, ascending number
	nextID int

	latestErr error
	createErr error
	updateErr error
	deleteErr error

	// beforeCreate runs inside CreateCycle before the duplicate check, to
	// simulate another session winning a race.
	beforeCreate func(userID string, number int)

	creates int
}

func newFakeCycleRepo() *fakeCycleRepo {
	return &fakeCycleRepo{cycles: make(map[string][]*model.Cycle)}
}

// seed stores a cycle directly, bypassing error injection.
func (f *fakeCycleRepo) seed(userID string, number int, start time.Time) *model.Cycle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(userID, number, start)
}

func (f *fakeCycleRepo) insert(userID string, number int, start time.Time) *model.Cycle {
	f.nextID++
	c := model.NewCycle(userID, number, start)
	c.ID = fmt.Sprintf("cycle-%d", f.nextID)
	c.CreatedAt = time.Now()
	f.cycles[userID] = append(f.cycles[userID], c)
	return c
}

func (f *fakeCycleRepo) LatestCycle(_ context.Context, userID string) (*model.Cycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	list := f.cycles[userID]
	if len(list) == 0 {
		return nil, apperror.NotFound("cycle for user", userID)
	}
	copied := *list[len(list)-1]
	return &copied, nil
}

func (f *fakeCycleRepo) CreateCycle(_ context.Context, userID string, number int, start time.Time) (*model.Cycle, error) {
	if f.beforeCreate != nil {
		f.beforeCreate(userID, number)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, c := range f.cycles[userID] {
		if c.Number == number {
			return nil, apperror.Conflict("cycle", "cycle_number")
		}
	}
	copied := *f.insert(userID, number, start)
	return &copied, nil
}

func (f *fakeCycleRepo) UpdateEntryField(_ context.Context, cycleID string, day int, field model.Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, list := range f.cycles {
		for _, c := range list {
			if c.ID == cycleID {
				slot, err := c.Days.Entry(day)
				if err != nil {
					return err
				}
				slot.Set(field, value)
				return nil
			}
		}
	}
	return apperror.NotFound("cycle", cycleID)
}

func (f *fakeCycleRepo) DeleteAllCycles(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.cycles, userID)
	return nil
}

func (f *fakeCycleRepo) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cycles[userID])
}
