package mail

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Log is a development sender that only logs each email.
type Log struct {
	logger *slog.Logger
	from   string
}

// NewLog returns a sender that writes one log record per email.
func NewLog(logger *slog.Logger, from string) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, from: from}
}

// Send logs email and returns a fresh ID.
func (l *Log) Send(ctx context.Context, email Email) (string, error) {
	if err := email.Validate(); err != nil {
		return "", err
	}
	if email.From == "" {
		email.From = l.from
	}
	id := uuid.NewString()
	l.logger.InfoContext(ctx, "email not delivered (log transport)",
		"id", id,
		"from", email.From,
		"to", email.To,
		"subject", email.Subject,
		"html_bytes", len(email.HTML),
	)
	return id, nil
}
