package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"SessionPulse/internal/models"
)

var receivedAt = time.Now

const maxWebhookBody = 1 << 20

// providerEvent is the provider's webhook payload.
type providerEvent struct {
	Type string `json:"type"`
	Data struct {
		EmailID string            `json:"email_id"`
		Tags    map[string]string `json:"tags"`
		Bounce  *struct {
			Message string `json:"message"`
		} `json:"bounce,omitempty"`
		Failed *struct {
			Reason string `json:"reason"`
		} `json:"failed,omitempty"`
	} `json:"data"`
}

func (e providerEvent) deliveryEvent() models.DeliveryEvent {
	event := models.DeliveryEvent{
		Type:       e.Type,
		ProviderID: e.Data.EmailID,
		Tags:       e.Data.Tags,
		ReceivedAt: receivedAt().UTC(),
	}
	switch {
	case e.Data.Bounce != nil:
		event.Reason = e.Data.Bounce.Message
	case e.Data.Failed != nil:
		event.Reason = e.Data.Failed.Reason
	}
	return event
}

// ProviderWebhook queues a delivery event for the worker pool. With a
// WebhookSecret set, unsigned or mis-signed requests get 401. A full queue
// answers 503 so the provider redelivers later.
func (h *Handler) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if h.WebhookSecret != "" {
		if err := verifyWebhookSignature(h.WebhookSecret, r.Header, body, receivedAt()); err != nil {
			h.Log.Warn("webhook rejected", zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}
	}

	var payload providerEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	event := payload.deliveryEvent()
	if err := h.Validate.Struct(event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	select {
	case h.Events <- event:
		w.WriteHeader(http.StatusAccepted)
	default:
		h.Log.Warn("delivery event queue full", zap.String("event", event.Type), zap.String("provider_id", event.ProviderID))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event queue full"})
	}
}
