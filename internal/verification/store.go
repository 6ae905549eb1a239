// Package verification issues and checks the short-lived email verification
// codes sent on registration.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	// ErrCodeNotFound is returned when no code is pending for the address
	// (never issued, already consumed, or expired).
	ErrCodeNotFound = errors.New("verification code not found")
	// ErrCodeMismatch is returned when the presented code does not match the pending one.
	ErrCodeMismatch = errors.New("verification code mismatch")
)

// Store keeps pending verification codes keyed by email address.
// Codes expire after the TTL given at issue time; Consume removes the code on success.
type Store interface {
	// Put stores code for email with the given TTL, replacing any pending code.
	Put(ctx context.Context, email, code string, ttl time.Duration) error
	// Consume checks code against the pending entry for email. On match the
	// entry is removed. Returns ErrCodeNotFound or ErrCodeMismatch on failure.
	Consume(ctx context.Context, email, code string) error
}

// NewCode returns a random six-digit verification code.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
