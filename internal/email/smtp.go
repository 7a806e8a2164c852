package email

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"

	"SessionPulse/internal/models"
)

// SMTPSender delivers messages immediately over SMTP. It serves ad-hoc
// session update notifications, which are never delayed.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	// Retries bounds the total retry window in seconds.
	Retries int
}

// Deliver builds and sends one message.
func (s *SMTPSender) Deliver(msg models.RenderedEmail, to models.Recipient) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetAddressHeader("To", to.Email, to.Name)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}

	return nil
}

// Send retries delivery with exponential backoff.
func (s *SMTPSender) Send(
	ctx context.Context,
	msg models.RenderedEmail,
	to models.Recipient,
) error {

	operation := func() error {
		return s.Deliver(msg, to)
	}

	if s.Retries <= 0 {
		return operation()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = time.Duration(s.Retries) * time.Second

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
