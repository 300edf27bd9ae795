package auth

import (
	"context"

	"townhall/internal/logging"
)

// Mailer delivers login links.
type Mailer interface {
	SendLoginCode(ctx context.Context, to, link string) error
}

// LogMailer writes login links to the auth log instead of sending mail.
type LogMailer struct{}

// SendLoginCode logs the link.
func (LogMailer) SendLoginCode(_ context.Context, to, link string) error {
	logging.Auth("Login link for %s: %s", to, link)
	return nil
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, to, link string) error

// SendLoginCode calls f.
func (f MailerFunc) SendLoginCode(ctx context.Context, to, link string) error {
	return f(ctx, to, link)
}
