// Package mailer delivers outbound mail. The auth service depends only on the
// Mailer interface; delivery failures are reported, not fatal (register
// responds with sent=false).
package mailer

import "context"

// Mailer sends mail to a single recipient.
type Mailer interface {
	// SendVerificationCode mails the verification code to the address.
	SendVerificationCode(ctx context.Context, to, code string) error
}
