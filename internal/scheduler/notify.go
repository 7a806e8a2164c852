package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"SessionPulse/internal/metrics"
	"SessionPulse/internal/models"
)

type NotifyResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// SendSessionUpdateNotifications sends an immediate "your session changed"
// email to each selected participant. recipientIDs are contact ids; ids that
// are not participants of the session, or have no email, count as failed.
// Each send is recorded as a sessionUpdate job when the store is available.
func (s *Service) SendSessionUpdateNotifications(ctx context.Context, session models.Session, changes []models.FieldChange, recipientIDs []string) NotifyResult {
	var result NotifyResult
	log := s.log.With(zap.String("session_id", session.ID))

	participants := map[string]models.Recipient{}
	for _, p := range session.Participants() {
		participants[p.ContactID] = p
	}

	track := s.store.IsAvailable(ctx)
	if !track {
		log.Warn("job store unavailable, update notifications not tracked")
	}

	batchID := s.newID()
	seen := map[string]bool{}

	for _, id := range recipientIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		to, ok := participants[id]
		if !ok {
			log.Warn("update notification recipient not found", zap.String("contact_id", id))
			result.Failed++
			metrics.NotificationsSent.WithLabelValues("failed").Inc()
			continue
		}

		err := s.notify(ctx, batchID, session, changes, to, track)
		if err != nil {
			log.Warn("update notification failed", zap.String("to", to.Email), zap.Error(err))
			result.Failed++
			metrics.NotificationsSent.WithLabelValues("failed").Inc()
			continue
		}
		result.Sent++
		metrics.NotificationsSent.WithLabelValues("sent").Inc()
	}

	log.Info("session update notifications sent", zap.Int("sent", result.Sent), zap.Int("failed", result.Failed))
	return result
}

func (s *Service) notify(ctx context.Context, batchID string, session models.Session, changes []models.FieldChange, to models.Recipient, track bool) error {
	now := s.now().UTC()
	job := models.EmailJob{
		ID:             s.newID(),
		SessionID:      session.ID,
		BatchID:        batchID,
		Type:           models.JobSessionUpdate,
		RecipientEmail: to.Email,
		RecipientName:  to.Name,
		RecipientRole:  to.Role,
		SendAt:         now,
		Status:         models.StatusProcessing,
		Attempts:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	msg, err := s.renderer.Render(models.JobSessionUpdate, session, to, changes)
	if err == nil {
		job.Subject = msg.Subject
		job.Body = msg.HTML
		err = s.sendNow(ctx, withJobTags(msg, job), to, &job)
	}

	if err != nil {
		job.Status = models.StatusFailed
		job.LastError = err.Error()
	} else {
		job.Status = models.StatusCompleted
	}

	if track {
		if upsertErr := s.store.Upsert(ctx, job); upsertErr != nil {
			s.log.Error("failed to record update notification", zap.String("job_id", job.ID), zap.Error(upsertErr))
		}
	}
	return err
}

func (s *Service) sendNow(ctx context.Context, msg models.RenderedEmail, to models.Recipient, job *models.EmailJob) error {
	if s.instant != nil {
		return s.instant.Send(ctx, msg, to)
	}
	providerID, err := s.dispatch.Submit(ctx, msg, to, time.Time{})
	if err != nil {
		return err
	}
	job.ProviderID = providerID
	return nil
}
