// Package repotest holds the behaviour every repository.Store must share.
//
// Each backend's test file calls Run with a constructor for a fresh, empty
// store. Keeping the cases here means the sqlite and bolt backends are held
// to exactly the same contract.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/repository"
)

// Factory returns a fresh, empty store. It should register its own cleanup.
type Factory func(t *testing.T) repository.Store

// Run executes the contract suite as subtests.
func Run(t *testing.T, newStore Factory) {
	t.Run("UserCreateAndGet", func(t *testing.T) { testUserCreateAndGet(t, newStore(t)) })
	t.Run("UserLookupsIgnoreCase", func(t *testing.T) { testUserLookupsIgnoreCase(t, newStore(t)) })
	t.Run("UserConflicts", func(t *testing.T) { testUserConflicts(t, newStore(t)) })
	t.Run("UserNotFound", func(t *testing.T) { testUserNotFound(t, newStore(t)) })
	t.Run("UserList", func(t *testing.T) { testUserList(t, newStore(t)) })
	t.Run("LatestCycleNotFound", func(t *testing.T) { testLatestCycleNotFound(t, newStore(t)) })
	t.Run("CreateCycleHasThirtyEmptySlots", func(t *testing.T) { testCreateCycle(t, newStore(t)) })
	t.Run("LatestCycleIsHighestNumber", func(t *testing.T) { testLatestIsHighest(t, newStore(t)) })
	t.Run("DuplicateCycleNumberConflicts", func(t *testing.T) { testDuplicateCycleNumber(t, newStore(t)) })
	t.Run("UpdateEntryField", func(t *testing.T) { testUpdateEntryField(t, newStore(t)) })
	t.Run("UpdateEntryFieldErrors", func(t *testing.T) { testUpdateEntryFieldErrors(t, newStore(t)) })
	t.Run("DeleteAllCycles", func(t *testing.T) { testDeleteAllCycles(t, newStore(t)) })
	t.Run("CyclesAreIsolatedPerUser", func(t *testing.T) { testCyclesIsolated(t, newStore(t)) })
	t.Run("ConcurrentUpdatesToDifferentDays", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
}

// CreateUser inserts a password user named name with email name@example.com.
func CreateUser(t *testing.T, s repository.Store, name string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderplace",
	}
	require.NoError(t, s.Users().Create(context.Background(), u), "creating user %s", name)
	return u
}

func testUserCreateAndGet(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", IsAdmin: true}
	require.NoError(t, s.Users().Create(ctx, u))

	assert.NotEmpty(t, u.ID, "Create should set ID")
	assert.False(t, u.CreatedAt.IsZero(), "Create should set CreatedAt")

	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, got.IsAdmin)
	assert.Zero(t, got.GitHubID)
}

func testUserLookupsIgnoreCase(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "Bob")

	byName, err := s.Users().GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := s.Users().GetByEmail(ctx, "BOB@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	gh := &model.User{Username: "octocat", Email: "octo@example.com", GitHubID: 583231}
	require.NoError(t, s.Users().Create(ctx, gh))
	byGH, err := s.Users().GetByGitHubID(ctx, 583231)
	require.NoError(t, err)
	assert.Equal(t, gh.ID, byGH.ID)
}

func testUserConflicts(t *testing.T, s repository.Store) {
	ctx := context.Background()
	CreateUser(t, s, "carol")
	require.NoError(t, s.Users().Create(ctx, &model.User{Username: "gh1", Email: "gh1@example.com", GitHubID: 7}))

	tests := []struct {
		name      string
		user      *model.User
		wantField string
	}{
		{"same username other case", &model.User{Username: "CAROL", Email: "other@example.com"}, "username"},
		{"same email other case", &model.User{Username: "carol2", Email: "Carol@Example.com"}, "email"},
		{"same github id", &model.User{Username: "gh2", Email: "gh2@example.com", GitHubID: 7}, "github_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Users().Create(ctx, tt.user)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrConflict), "want ErrConflict, got %v", err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}

	// Two accounts without GitHub are not a github_id conflict.
	CreateUser(t, s, "dave")
	CreateUser(t, s, "erin")
}

func testUserNotFound(t *testing.T, s repository.Store) {
	ctx := context.Background()

	_, err := s.Users().GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "GetByID: %v", err)
	_, err = s.Users().GetByUsername(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "GetByUsername: %v", err)
	_, err = s.Users().GetByEmail(ctx, "missing@example.com")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "GetByEmail: %v", err)
	_, err = s.Users().GetByGitHubID(ctx, 42)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "GetByGitHubID: %v", err)
}

func testUserList(t *testing.T, s repository.Store) {
	ctx := context.Background()
	for i := range 5 {
		CreateUser(t, s, fmt.Sprintf("user%d", i))
	}

	all, err := s.Users().List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := s.Users().List(ctx, repository.ListOptions{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func testLatestCycleNotFound(t *testing.T, s repository.Store) {
	u := CreateUser(t, s, "frank")
	_, err := s.Cycles().LatestCycle(context.Background(), u.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "want ErrNotFound, got %v", err)
}

func testCreateCycle(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "grace")
	start := calendar.MustParse("2024-01-01")

	created, err := s.Cycles().CreateCycle(ctx, u.ID, 1, start)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Number)
	assert.True(t, created.StartDate.Equal(start))

	loaded, err := s.Cycles().LatestCycle(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, u.ID, loaded.UserID)
	assert.True(t, loaded.StartDate.Equal(start), "StartDate = %v", loaded.StartDate)
	assert.Equal(t, model.NewTrackingData(), loaded.Days)
}

func testLatestIsHighest(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "heidi")

	for n := 1; n <= 3; n++ {
		_, err := s.Cycles().CreateCycle(ctx, u.ID, n, calendar.MustParse("2024-01-01").AddDate(0, 0, 31*(n-1)))
		require.NoError(t, err)
	}

	latest, err := s.Cycles().LatestCycle(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Number)
}

func testDuplicateCycleNumber(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "ivan")
	start := calendar.MustParse("2024-01-01")

	_, err := s.Cycles().CreateCycle(ctx, u.ID, 1, start)
	require.NoError(t, err)

	_, err = s.Cycles().CreateCycle(ctx, u.ID, 1, start)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "want ErrConflict, got %v", err)
}

func testUpdateEntryField(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "judy")
	c, err := s.Cycles().CreateCycle(ctx, u.ID, 1, calendar.MustParse("2024-01-01"))
	require.NoError(t, err)

	require.NoError(t, s.Cycles().UpdateEntryField(ctx, c.ID, 5, model.FieldMorning, "oats"))
	require.NoError(t, s.Cycles().UpdateEntryField(ctx, c.ID, 5, model.FieldTotalCalories, "~1500"))
	require.NoError(t, s.Cycles().UpdateEntryField(ctx, c.ID, 30, model.FieldEvening, "rice"))
	// Overwrite wins.
	require.NoError(t, s.Cycles().UpdateEntryField(ctx, c.ID, 5, model.FieldMorning, "porridge"))

	loaded, err := s.Cycles().LatestCycle(ctx, u.ID)
	require.NoError(t, err)

	want := model.NewTrackingData()
	want[4] = model.DayEntry{Morning: "porridge", TotalCalories: "~1500"}
	want[29] = model.DayEntry{Evening: "rice"}
	assert.Equal(t, want, loaded.Days)
}

func testUpdateEntryFieldErrors(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "ken")
	c, err := s.Cycles().CreateCycle(ctx, u.ID, 1, calendar.MustParse("2024-01-01"))
	require.NoError(t, err)

	err = s.Cycles().UpdateEntryField(ctx, "no-such-cycle", 1, model.FieldNoon, "x")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "unknown cycle: %v", err)

	err = s.Cycles().UpdateEntryField(ctx, c.ID, 31, model.FieldNoon, "x")
	assert.True(t, errors.Is(err, apperror.ErrValidation), "day 31: %v", err)

	err = s.Cycles().UpdateEntryField(ctx, c.ID, 1, model.Field("snack"), "x")
	assert.True(t, errors.Is(err, apperror.ErrValidation), "unknown field: %v", err)
}

func testDeleteAllCycles(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "leo")
	for n := 1; n <= 2; n++ {
		_, err := s.Cycles().CreateCycle(ctx, u.ID, n, calendar.MustParse("2024-01-01"))
		require.NoError(t, err)
	}

	require.NoError(t, s.Cycles().DeleteAllCycles(ctx, u.ID))

	_, err := s.Cycles().LatestCycle(ctx, u.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "after delete: %v", err)

	// Numbering can start over once everything is gone.
	_, err = s.Cycles().CreateCycle(ctx, u.ID, 1, calendar.MustParse("2024-03-01"))
	require.NoError(t, err)

	// Deleting for a user without cycles is fine.
	other := CreateUser(t, s, "mallory")
	require.NoError(t, s.Cycles().DeleteAllCycles(ctx, other.ID))
}

func testCyclesIsolated(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a := CreateUser(t, s, "nina")
	b := CreateUser(t, s, "oscar")

	ca, err := s.Cycles().CreateCycle(ctx, a.ID, 1, calendar.MustParse("2024-01-01"))
	require.NoError(t, err)
	_, err = s.Cycles().CreateCycle(ctx, b.ID, 1, calendar.MustParse("2024-01-01"))
	require.NoError(t, err)

	require.NoError(t, s.Cycles().UpdateEntryField(ctx, ca.ID, 1, model.FieldNoon, "only nina"))
	require.NoError(t, s.Cycles().DeleteAllCycles(ctx, b.ID))

	la, err := s.Cycles().LatestCycle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "only nina", la.Days[0].Noon)

	_, err = s.Cycles().LatestCycle(ctx, b.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func testConcurrentUpdates(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "peggy")
	c, err := s.Cycles().CreateCycle(ctx, u.ID, 1, calendar.MustParse("2024-01-01"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, calendar.CycleLength)
	for day := 1; day <= calendar.CycleLength; day++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			errs <- s.Cycles().UpdateEntryField(ctx, c.ID, day, model.FieldMorning, fmt.Sprintf("meal %d", day))
		}(day)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	loaded, err := s.Cycles().LatestCycle(ctx, u.ID)
	require.NoError(t, err)
	for day := 1; day <= calendar.CycleLength; day++ {
		assert.Equal(t, fmt.Sprintf("meal %d", day), loaded.Days[day-1].Morning)
	}
}
