package service

// AuthService is the business logic layer for authentication:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (store)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// It never sets cookies or reads requests; that is the handler's job.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/auth"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/repository"
)

// Validation constants for registration.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	MaxEmailLength    = 254
)

// emailPattern is intentionally loose: something@something.something.
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// githubUsernameAttempts bounds the suffix search for a free username when a
// GitHub login collides with an existing account name.
const githubUsernameAttempts = 5

// AuthService handles registration, login and session tokens.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	admins    map[string]bool // lower-cased usernames granted IsAdmin at registration
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. adminUsernames (case-insensitive)
// become admins when they register.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	adminUsernames []string,
	logger *slog.Logger,
) *AuthService {
	admins := make(map[string]bool, len(adminUsernames))
	for _, name := range adminUsernames {
		admins[strings.ToLower(name)] = true
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		admins:    admins,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks the form and returns the first problem as a
// ValidationError naming the offending field.
func (in *RegisterInput) Validate() error {
	switch {
	case in.Username == "":
		return apperror.ValidationFailed("username", "username is required")
	case len(in.Username) < MinUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be at least %d characters", MinUsernameLength))
	case len(in.Username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	case strings.ContainsAny(in.Username, " \t\n@"):
		return apperror.ValidationFailed("username", "username must not contain spaces or @")
	}

	switch {
	case in.Email == "":
		return apperror.ValidationFailed("email", "email is required")
	case len(in.Email) > MaxEmailLength || !emailPattern.MatchString(in.Email):
		return apperror.ValidationFailed("email", "email is invalid")
	}

	switch {
	case in.Password == "":
		return apperror.ValidationFailed("password", "password is required")
	case len(in.Password) < MinPasswordLength:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	case len(in.Password) > auth.MaxPasswordBytes:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	case in.Password != in.ConfirmPassword:
		return apperror.ValidationFailed("confirmPassword", "passwords do not match")
	}

	return nil
}

// Register validates the form, creates the account and signs it in.
// A taken username or email is apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      s.admins[strings.ToLower(in.Username)],
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, persistence("creating account", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.Bool("admin", user.IsAdmin),
	)

	return s.issue(user)
}

// Login checks credentials. identifier is a username, or an email address
// when it contains "@". Unknown user and wrong password give the same
// Unauthorized error so the response does not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, identifier)
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, persistence("signing in", err)
	}

	if !user.HasPassword() {
		// GitHub-only account.
		return nil, errInvalidCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Error("password verification failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, errInvalidCredentials
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

var errInvalidCredentials = apperror.Unauthorized("invalid username or password")

// LoginOrRegisterGitHub signs in the account linked to a GitHub profile,
// creating it on first login.
//
// The GitHub login becomes the username when it is free; otherwise a numeric
// suffix is tried ("octocat-2", "octocat-3", ...). A hidden email falls back
// to GitHub's noreply address.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil || ghUser.ID == 0 {
		return nil, apperror.ValidationFailed("github", "GitHub profile is missing")
	}

	existing, err := s.users.GetByGitHubID(ctx, ghUser.ID)
	if err == nil {
		s.logger.Info("user authenticated via GitHub", slog.String("userID", existing.ID))
		return s.issue(existing)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, persistence("signing in with GitHub", err)
	}

	email := ghUser.Email
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", ghUser.ID, ghUser.Login)
	}

	base := githubUsername(ghUser.Login)
	for attempt := 1; attempt <= githubUsernameAttempts+1; attempt++ {
		username := base
		switch {
		case attempt > githubUsernameAttempts:
			username = base + "-" + xid.New().String()[:8]
		case attempt > 1:
			username = fmt.Sprintf("%s-%d", base, attempt)
		}

		user := &model.User{
			Username: username,
			Email:    email,
			GitHubID: ghUser.ID,
			IsAdmin:  s.admins[strings.ToLower(username)],
		}
		err := s.users.Create(ctx, user)
		if err == nil {
			s.logger.Info("user registered via GitHub",
				slog.String("userID", user.ID),
				slog.String("username", user.Username),
				slog.Int64("githubID", ghUser.ID),
			)
			return s.issue(user)
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) && appErr.Field == "username" {
			continue
		}
		return nil, persistence("creating account", err)
	}

	return nil, apperror.Conflict("user", "username")
}

// githubUsername makes a GitHub login acceptable as a username.
func githubUsername(login string) string {
	login = strings.TrimSpace(login)
	if login == "" {
		login = "github"
	}
	for len(login) < MinUsernameLength {
		login += "_"
	}
	if len(login) > MaxUsernameLength-10 {
		login = login[:MaxUsernameLength-10]
	}
	return login
}

// GetUserByID returns the account for an authenticated user ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("loading account", err)
	}
	return user, nil
}

// GetUserByUsername is used by the admin CLI.
func (s *AuthService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, persistence("loading account", err)
	}
	return user, nil
}

// ListUsers returns a page of accounts. Only admins may list users.
func (s *AuthService) ListUsers(ctx context.Context, requesterID string, opts repository.ListOptions) ([]model.User, error) {
	requester, err := s.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsAdmin {
		return nil, apperror.Forbidden("admin access required")
	}
	return s.AllUsers(ctx, opts)
}

// AllUsers lists accounts without a permission check. For trusted callers
// only: the CLI and the reminder job.
func (s *AuthService) AllUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	users, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, persistence("listing users", err)
	}
	return users, nil
}

// ValidateToken returns the user ID encoded in a session token.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", apperror.Unauthorized("session is invalid or expired")
	}
	return userID, nil
}

// SessionTTL is the lifetime of issued tokens; the handler uses it for the
// cookie's Max-Age.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
