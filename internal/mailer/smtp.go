package mailer

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPMailer sends mail through a plain-auth SMTP relay (e.g. smtp.gmail.com:587).
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewSMTPMailer returns a Mailer delivering through the given SMTP relay.
func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

// SendVerificationCode mails the verification code to the address.
// The ctx is accepted for interface symmetry; net/smtp does not support cancellation mid-send.
func (m *SMTPMailer) SendVerificationCode(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := "Subject: Mix Master - Verify Your Email Address\n"
	mime := "MIME-version: 1.0;\nContent-Type: text/plain; charset=\"UTF-8\";\n\n"
	body := fmt.Sprintf(
		"Hello,\n\n"+
			"Thank you for signing up for Mix Master! To complete your registration, please use the verification code below:\n\n"+
			"Verification Code: %s\n\n"+
			"If you did not request this email, please ignore it.\n\n"+
			"Cheers,\nThe Mix Master Team",
		code)

	msg := []byte(subject + mime + body)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	return smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, msg)
}
