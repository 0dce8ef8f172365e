package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/auth"
	"github.com/sakif/foodtrack/internal/repository"
)

// =========================================================================
// HELPERS
// =========================================================================

func newTestAuthService(t *testing.T, repo *fakeUserRepo, admins ...string) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAuthService(repo, ts, auth.NewPasswordServiceForTest(), admins, testLogger())
}

func validInput() RegisterInput {
	return RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

func assertField(t *testing.T, err error, kind error, field string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want %v", err, kind)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an *AppError", err)
	}
	if appErr.Field != field {
		t.Errorf("Field = %q, want %q", appErr.Field, field)
	}
}

// =========================================================================
// Register
// =========================================================================

func TestRegister_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	in := validInput()
	in.Username = "  alice  "
	res, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if res.User.ID == "" || res.Token == "" {
		t.Fatalf("Register() = %+v, want ID and token", res)
	}
	if res.User.Username != "alice" {
		t.Errorf("Username = %q, want trimmed %q", res.User.Username, "alice")
	}
	if res.User.PasswordHash == "secret1" || !strings.HasPrefix(res.User.PasswordHash, "$2") {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", res.User.PasswordHash)
	}
	if res.User.IsAdmin {
		t.Error("IsAdmin should be false for unlisted usernames")
	}

	userID, err := svc.ValidateToken(res.Token)
	if err != nil || userID != res.User.ID {
		t.Errorf("ValidateToken() = %q, %v; want %q", userID, err, res.User.ID)
	}
}

func TestRegister_AdminUsername(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), "Alice")

	res, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !res.User.IsAdmin {
		t.Error("IsAdmin should be true for a listed username")
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"empty username", func(in *RegisterInput) { in.Username = "" }, "username"},
		{"short username", func(in *RegisterInput) { in.Username = "al" }, "username"},
		{"username with space", func(in *RegisterInput) { in.Username = "al ice" }, "username"},
		{"username with at", func(in *RegisterInput) { in.Username = "al@ice" }, "username"},
		{"long username", func(in *RegisterInput) { in.Username = strings.Repeat("a", MaxUsernameLength+1) }, "username"},
		{"empty email", func(in *RegisterInput) { in.Email = "" }, "email"},
		{"email without dot", func(in *RegisterInput) { in.Email = "alice@example" }, "email"},
		{"email without at", func(in *RegisterInput) { in.Email = "alice.example.com" }, "email"},
		{"empty password", func(in *RegisterInput) { in.Password, in.ConfirmPassword = "", "" }, "password"},
		{"short password", func(in *RegisterInput) { in.Password, in.ConfirmPassword = "12345", "12345" }, "password"},
		{"long password", func(in *RegisterInput) {
			p := strings.Repeat("a", auth.MaxPasswordBytes+1)
			in.Password, in.ConfirmPassword = p, p
		}, "password"},
		{"mismatch", func(in *RegisterInput) { in.ConfirmPassword = "secret2" }, "confirmPassword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			svc := newTestAuthService(t, repo)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			assertField(t, err, apperror.ErrValidation, tt.field)
			if len(repo.users) != 0 {
				t.Error("no user should be stored when validation fails")
			}
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	in := validInput()
	in.Username = "ALICE"
	in.Email = "other@example.com"
	_, err := svc.Register(ctx, in)
	assertField(t, err, apperror.ErrConflict, "username")

	in = validInput()
	in.Username = "alice2"
	in.Email = "Alice@Example.com"
	_, err = svc.Register(ctx, in)
	assertField(t, err, apperror.ErrConflict, "email")
}

func TestRegister_StoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errDisk
	svc := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), validInput())
	if !errors.Is(err, apperror.ErrPersistence) {
		t.Fatalf("error = %v, want ErrPersistence", err)
	}
}

// =========================================================================
// Login
// =========================================================================

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()
	reg, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{"by username", "alice", "secret1", nil},
		{"by username any case", "ALICE", "secret1", nil},
		{"by email", "alice@example.com", "secret1", nil},
		{"wrong password", "alice", "secret2", apperror.ErrUnauthorized},
		{"unknown user", "bob", "secret1", apperror.ErrUnauthorized},
		{"unknown email", "bob@example.com", "secret1", apperror.ErrUnauthorized},
		{"empty identifier", "  ", "secret1", apperror.ErrValidation},
		{"empty password", "alice", "", apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(ctx, tt.identifier, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if res.User.ID != reg.User.ID || res.Token == "" {
				t.Errorf("Login() = %+v, want user %s with token", res.User, reg.User.ID)
			}
		})
	}
}

func TestLogin_SameMessageForUnknownAndWrongPassword(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()
	svc.Register(ctx, validInput())

	_, errUnknown := svc.Login(ctx, "nobody", "secret1")
	_, errWrong := svc.Login(ctx, "alice", "wrong-pw")
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestLogin_GitHubOnlyAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()
	if _, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "octocat", Email: "o@example.com"}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Login(ctx, "octocat", "anything")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestLogin_StoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.getErr = errDisk
	svc := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), "alice", "secret1")
	if !errors.Is(err, apperror.ErrPersistence) {
		t.Fatalf("error = %v, want ErrPersistence", err)
	}
}

// =========================================================================
// LoginOrRegisterGitHub
// =========================================================================

func TestLoginOrRegisterGitHub_NewThenExisting(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()
	gh := &auth.GitHubUser{ID: 42, Login: "octocat", Email: "octocat@github.com"}

	first, err := svc.LoginOrRegisterGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("first login error = %v", err)
	}
	if first.User.Username != "octocat" || first.User.GitHubID != 42 || first.Token == "" {
		t.Errorf("first login = %+v", first.User)
	}
	if first.User.HasPassword() {
		t.Error("GitHub account should not have a password")
	}

	second, err := svc.LoginOrRegisterGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("second login error = %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Errorf("second login created a new account: %s vs %s", second.User.ID, first.User.ID)
	}
	if len(repo.users) != 1 {
		t.Errorf("users = %d, want 1", len(repo.users))
	}
}

func TestLoginOrRegisterGitHub_UsernameTaken(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()
	in := validInput()
	in.Username = "octocat"
	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatal(err)
	}

	res, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat", Email: "gh@example.com"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if res.User.Username != "octocat-2" {
		t.Errorf("Username = %q, want %q", res.User.Username, "octocat-2")
	}
}

func TestLoginOrRegisterGitHub_HiddenEmailAndShortLogin(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	res, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 9, Login: "x"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if res.User.Email != "9+x@users.noreply.github.com" {
		t.Errorf("Email = %q", res.User.Email)
	}
	if len(res.User.Username) < MinUsernameLength {
		t.Errorf("Username %q shorter than %d", res.User.Username, MinUsernameLength)
	}
}

func TestLoginOrRegisterGitHub_Invalid(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	for _, gh := range []*auth.GitHubUser{nil, {ID: 0, Login: "ghost"}} {
		if _, err := svc.LoginOrRegisterGitHub(context.Background(), gh); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("LoginOrRegisterGitHub(%v) error = %v, want ErrValidation", gh, err)
		}
	}
}

// =========================================================================
// GetUserByID / ListUsers / ValidateToken
// =========================================================================

func TestGetUserByID(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()
	reg, _ := svc.Register(ctx, validInput())

	u, err := svc.GetUserByID(ctx, reg.User.ID)
	if err != nil || u.Username != "alice" {
		t.Fatalf("GetUserByID() = %v, %v", u, err)
	}

	if _, err := svc.GetUserByID(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetUserByID(ctx, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty id error = %v, want ErrValidation", err)
	}
}

func TestListUsers_AdminOnly(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), "root")
	ctx := context.Background()

	admin := validInput()
	admin.Username, admin.Email = "root", "root@example.com"
	adminRes, _ := svc.Register(ctx, admin)
	userRes, _ := svc.Register(ctx, validInput())

	users, err := svc.ListUsers(ctx, adminRes.User.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListUsers() as admin error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("ListUsers() returned %d users, want 2", len(users))
	}

	_, err = svc.ListUsers(ctx, userRes.User.ID, repository.ListOptions{})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("ListUsers() as non-admin error = %v, want ErrForbidden", err)
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	if _, err := svc.ValidateToken("garbage"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	if svc.SessionTTL() != time.Hour {
		t.Errorf("SessionTTL() = %s, want 1h", svc.SessionTTL())
	}
}
