package circlepress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	netmail "net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/circlepress/mail"
)

// ValidateEmail accepts a single bare address such as "ada@example.org".
// Display names and address lists are rejected.
func ValidateEmail(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return invalidf("email is required")
	}
	parsed, err := netmail.ParseAddress(addr)
	if err != nil || parsed.Name != "" || parsed.Address != addr {
		return invalidf("invalid email address")
	}
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || !strings.Contains(addr[at+1:], ".") || strings.HasSuffix(addr, ".") {
		return invalidf("invalid email address")
	}
	return nil
}

// Dispatcher hands composed digests to the mail transport.
type Dispatcher struct {
	sender   mail.Sender
	from     string
	notify   string
	siteName string
	timeout  time.Duration
	logger   *slog.Logger
}

// defaultNotifyTimeout bounds a confirmation send when mail.timeout_seconds
// is unset.
const defaultNotifyTimeout = 15 * time.Second

// NewDispatcher builds a dispatcher. A blank cfg.NotifyAddress disables
// confirmation emails.
func NewDispatcher(sender mail.Sender, cfg MailConfig, siteName string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:   sender,
		from:     cfg.From,
		notify:   strings.TrimSpace(cfg.NotifyAddress),
		siteName: siteName,
		timeout:  notifyTimeout(cfg.TimeoutSeconds),
		logger:   logger,
	}
}

func notifyTimeout(secs int) time.Duration {
	if secs <= 0 {
		return defaultNotifyTimeout
	}
	return seconds(secs)
}

// Send delivers email with exactly one transport call. The confirmation
// email that follows is best effort: its outcome is reported in the result
// and never fails the send.
func (d *Dispatcher) Send(ctx context.Context, email ComposedEmail) (DispatchResult, error) {
	if err := ValidateEmail(email.To); err != nil {
		return DispatchResult{}, err
	}
	id, err := d.sender.Send(ctx, mail.Email{
		From:    d.from,
		To:      strings.TrimSpace(email.To),
		Subject: email.Subject,
		HTML:    email.HTML,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "digest delivery failed", "to", email.To, "error", err)
		return DispatchResult{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	d.logger.InfoContext(ctx, "digest sent", "id", id, "to", email.To, "posts", len(email.Posts))

	return DispatchResult{ID: id, Confirmation: d.confirm(ctx, email, id)}, nil
}

func (d *Dispatcher) confirm(ctx context.Context, email ComposedEmail, id string) NotifyResult {
	if d.notify == "" {
		return NotifyResult{}
	}
	// The digest is already delivered; a client that hangs up now must not
	// cancel the confirmation, and a slow transport must not hold it forever.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	res := NotifyResult{Attempted: true}
	var buf bytes.Buffer
	if err := confirmationEmail(email, id).Render(ctx, &buf); err != nil {
		res.Err = err
	} else {
		res.ID, res.Err = d.sender.Send(ctx, mail.Email{
			From:    d.from,
			To:      d.notify,
			Subject: fmt.Sprintf("[%s] Digest sent to %s", d.siteName, email.To),
			HTML:    buf.String(),
		})
	}
	if res.Err != nil {
		d.logger.WarnContext(ctx, "digest confirmation failed", "digest_id", id, "notify", d.notify, "error", res.Err)
	} else {
		d.logger.InfoContext(ctx, "digest confirmation sent", "digest_id", id, "id", res.ID)
	}
	return res
}

func confirmationEmail(email ComposedEmail, id string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := &htmlWriter{w: w}
		e.raw(`<!DOCTYPE html><html><body style="` + styleBody + `"><div style="` + styleIntro + `">`)
		e.raw(`<p>The digest <strong>`)
		e.text(email.Subject)
		e.raw(`</strong> was sent to `)
		e.text(email.To)
		e.raw(`.</p><p style="` + styleMeta + `">Delivery ID: `)
		e.text(id)
		e.raw(`<br/>Posts: ` + strconv.Itoa(len(email.Posts)) + `</p>`)
		if len(email.Posts) > 0 {
			e.raw(`<ul>`)
			for _, p := range email.Posts {
				e.raw(`<li>`)
				e.text(p.Title)
				e.raw(`</li>`)
			}
			e.raw(`</ul>`)
		}
		e.raw(`</div></body></html>`)
		return e.err
	})
}
