package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkwise/internal/config"

	"github.com/go-mail/mail/v2"
)

var ErrNoRecipient = errors.New("no recipient")

type Mailer struct {
	dialer *mail.Dialer
	sender string
}

func NewMailer(cfg config.EmailConfig) *Mailer {
	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = 10 * time.Second

	return &Mailer{
		dialer: dialer,
		sender: cfg.Sender,
	}
}

// Send delivers a multipart message. The SMTP exchange itself is not
// cancellable; ctx is checked before dialing.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := mail.NewMessage()
	out.SetHeader("To", msg.To)
	out.SetHeader("From", m.sender)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/plain", msg.PlainBody)
	if msg.HTMLBody != "" {
		out.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := m.dialer.DialAndSend(out); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}
