package service

import (
	"context"
	"log/slog"
)

// Message is one outgoing email
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them. It is the
// mailer of development and test setups.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs msg
func (m LogMailer) Send(ctx context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
	)
	return nil
}
