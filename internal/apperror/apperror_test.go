package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	storeErr := errors.New("disk I/O error")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("cycle", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("day", "day must be between 1 and 30"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "username"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid username or password"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Persistence wraps ErrPersistence",
			err:       Persistence("saving entry", storeErr),
			target:    ErrPersistence,
			wantMatch: true,
		},
		{
			name:      "Persistence keeps the store cause",
			err:       Persistence("saving entry", storeErr),
			target:    storeErr,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("cycle", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Persistence does NOT match ErrNotFound",
			err:       Persistence("loading cycle", storeErr),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("cycle", "abc123"),
			wantMessage: "cycle not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("username", "Username is required"),
			wantMessage: "Username is required",
		},
		{
			name:        "Conflict names the duplicated field",
			err:         Conflict("user", "email"),
			wantMessage: "user with this email already exists",
		},
		{
			name:        "Persistence hides the cause",
			err:         Persistence("loading cycle", errors.New("sqlite: SELECT ... no such table")),
			wantMessage: "loading cycle failed, please try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("cycle", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "Please enter a valid email")
	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}

func TestIsKind(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", NotFound("cycle", "x"))
	if !IsKind(wrapped) {
		t.Error("IsKind() should see an AppError through fmt.Errorf wrapping")
	}
	if IsKind(errors.New("plain")) {
		t.Error("IsKind() should be false for a plain error")
	}
}
