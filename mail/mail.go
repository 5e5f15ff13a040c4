// Package mail delivers rendered HTML emails through a pluggable transport.
//
// Two senders are provided: Resend, which delivers through the Resend API,
// and Log, which records each message with slog and delivers nothing. Both
// return a delivery ID for every accepted message.
package mail

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoRecipient = errors.New("mail: no recipient")
	ErrNoSubject   = errors.New("mail: no subject")
	ErrNoContent   = errors.New("mail: no html content")
)

// Email is one outgoing message.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Validate checks the fields every transport needs.
func (e Email) Validate() error {
	switch {
	case strings.TrimSpace(e.To) == "":
		return ErrNoRecipient
	case strings.TrimSpace(e.Subject) == "":
		return ErrNoSubject
	case strings.TrimSpace(e.HTML) == "":
		return ErrNoContent
	}
	return nil
}

// Sender delivers one email and returns the transport's delivery ID.
type Sender interface {
	Send(ctx context.Context, email Email) (string, error)
}
