package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"SessionPulse/internal/models"
)

// EventHandler applies one provider delivery event.
type EventHandler interface {
	ApplyDeliveryEvent(ctx context.Context, event models.DeliveryEvent) error
}

// StartPool starts workers that drain events until ctx is done or the
// channel is closed. Webhook requests enqueue and return; status writes
// happen here.
func StartPool(
	ctx context.Context,
	wg *sync.WaitGroup,
	workers int,
	events <-chan models.DeliveryEvent,
	handler EventHandler,
	logger *zap.Logger,
) {

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()

			logger.Info("worker started", zap.Int("worker_id", id))

			for {
				select {

				case <-ctx.Done():
					logger.Info("worker shutting down", zap.Int("worker_id", id))
					return

				case event, ok := <-events:
					if !ok {
						logger.Info("event channel closed", zap.Int("worker_id", id))
						return
					}

					if err := handler.ApplyDeliveryEvent(ctx, event); err != nil {
						logger.Error("failed to apply delivery event",
							zap.Int("worker_id", id),
							zap.String("event", event.Type),
							zap.String("provider_id", event.ProviderID),
							zap.Error(err),
						)
						continue
					}

					logger.Debug("delivery event processed",
						zap.Int("worker_id", id),
						zap.String("event", event.Type),
					)
				}
			}
		}(i)
	}
}
