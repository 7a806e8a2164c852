package email

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SessionPulse/internal/models"
)

// ConsoleDispatcher logs messages instead of handing them to a provider.
// It is used for local runs without provider credentials.
type ConsoleDispatcher struct {
	Log *zap.Logger
}

func (c *ConsoleDispatcher) Submit(_ context.Context, msg models.RenderedEmail, to models.Recipient, sendAt time.Time) (string, error) {
	id := "console-" + uuid.NewString()
	c.Log.Info("email submitted",
		zap.String("provider_id", id),
		zap.String("to", to.Email),
		zap.String("subject", msg.Subject),
		zap.Time("send_at", sendAt),
		zap.Any("tags", msg.Tags),
	)
	return id, nil
}

func (c *ConsoleDispatcher) UpdateTime(_ context.Context, providerID string, sendAt time.Time) error {
	c.Log.Info("email rescheduled", zap.String("provider_id", providerID), zap.Time("send_at", sendAt))
	return nil
}

func (c *ConsoleDispatcher) Cancel(_ context.Context, providerID string) error {
	c.Log.Info("email cancelled", zap.String("provider_id", providerID))
	return nil
}

func (c *ConsoleDispatcher) Send(ctx context.Context, msg models.RenderedEmail, to models.Recipient) error {
	_, err := c.Submit(ctx, msg, to, time.Time{})
	return err
}
