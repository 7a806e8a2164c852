package email

import (
	"context"
	"time"

	"SessionPulse/internal/models"
)

type submitter interface {
	Submit(ctx context.Context, msg models.RenderedEmail, to models.Recipient, sendAt time.Time) (string, error)
}

// ImmediateDispatch sends through the delayed-delivery provider without a
// send time, for deployments that have no SMTP relay.
type ImmediateDispatch struct {
	Provider submitter
}

func (d ImmediateDispatch) Send(ctx context.Context, msg models.RenderedEmail, to models.Recipient) error {
	_, err := d.Provider.Submit(ctx, msg, to, time.Time{})
	return err
}
