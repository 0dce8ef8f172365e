// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts are created either by username/password registration or by the
// first GitHub login. A password-registered user has GitHubID == 0; a
// GitHub-only user has an empty PasswordHash and cannot log in with a password.
//
// Username and Email are unique, compared case-insensitively. The stores
// enforce this and report violations as apperror.ErrConflict.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialised to clients
	GitHubID     int64     `json:"githubId,omitempty"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
