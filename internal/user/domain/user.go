package domain

import (
	"errors"
	"time"
)

// Provider identifies how a user's credential was established.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// User is the core user entity. PasswordHash is never exposed outside the
// service layer; handlers serialize the Redacted projection only.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string // empty for Google-only accounts
	Picture      string
	Provider     Provider
	IsVerified   bool // gate on password login; Google accounts are created verified
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Redacted is the user projection returned to clients: credentials and
// internal fields stripped.
type Redacted struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Picture    string `json:"picture,omitempty"`
	IsVerified bool   `json:"isVerified"`
}

// Redacted returns the client-safe projection of the user.
func (u *User) Redacted() Redacted {
	return Redacted{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		Picture:    u.Picture,
		IsVerified: u.IsVerified,
	}
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Provider == "" {
		u.Provider = ProviderLocal
	}
	if u.Provider == ProviderLocal && u.PasswordHash == "" {
		return errors.New("password hash is required for local accounts")
	}
	return nil
}
