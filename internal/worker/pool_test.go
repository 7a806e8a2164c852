package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"SessionPulse/internal/models"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []models.DeliveryEvent
}

func (h *recordingHandler) ApplyDeliveryEvent(_ context.Context, event models.DeliveryEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	if event.Type == "email.failed" {
		return errors.New("store write failed")
	}
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestStartPool_DrainsUntilClosed(t *testing.T) {
	handler := &recordingHandler{}
	events := make(chan models.DeliveryEvent, 10)
	var wg sync.WaitGroup

	StartPool(context.Background(), &wg, 3, events, handler, zap.NewNop())

	for _, typ := range []string{"email.sent", "email.failed", "email.delivered", "email.sent"} {
		events <- models.DeliveryEvent{Type: typ}
	}
	close(events)
	wg.Wait()

	assert.Equal(t, 4, handler.count())
}

func TestStartPool_StopsOnCancel(t *testing.T) {
	handler := &recordingHandler{}
	events := make(chan models.DeliveryEvent)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	StartPool(ctx, &wg, 2, events, handler, zap.NewNop())
	events <- models.DeliveryEvent{Type: "email.sent"}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancel")
	}
	assert.Equal(t, 1, handler.count())
}
