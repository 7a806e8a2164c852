package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
	"SessionPulse/internal/schedule"
)

// ImportLegacy records the provider messages of an inline id map as
// scheduled jobs. Keys that already have a job with the same provider id are
// skipped, so an import can be repeated. It returns the number of jobs
// created.
func (s *Service) ImportLegacy(ctx context.Context, session models.Session, ids models.ScheduledEmailIDs) (int, error) {
	if !s.store.IsAvailable(ctx) {
		return 0, errs.ErrStoreUnavailable
	}

	existing, err := s.store.ListBySession(ctx, session.ID)
	if err != nil {
		return 0, fmt.Errorf("list jobs of session %s: %w", session.ID, err)
	}
	known := map[string]bool{}
	for _, job := range existing {
		if job.ProviderID != "" {
			known[job.ProviderID] = true
		}
	}

	recipients := map[string]models.Recipient{}
	for _, p := range session.Participants() {
		recipients[p.Email] = p
	}

	times := schedule.Compute(session.ScheduledStart, session.Duration)
	batchID := s.newID()
	now := s.now().UTC()
	imported := 0

	for key, providerID := range ids {
		if providerID == "" || known[providerID] {
			continue
		}
		sendAt, ok := times.For(key.Type)
		if !ok {
			s.log.Warn("legacy entry has unknown email type", zap.String("job_key", key.String()))
			continue
		}

		to, ok := recipients[key.Email]
		if !ok {
			to = models.Recipient{Email: key.Email, Role: models.RoleStudent}
		}

		job := models.EmailJob{
			ID:             s.newID(),
			SessionID:      session.ID,
			BatchID:        batchID,
			Type:           key.Type,
			RecipientEmail: key.Email,
			RecipientName:  to.Name,
			RecipientRole:  to.Role,
			SendAt:         sendAt,
			Status:         models.StatusScheduled,
			ProviderID:     providerID,
			Attempts:       1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.Upsert(ctx, job); err != nil {
			return imported, fmt.Errorf("record legacy job %s: %w", key, err)
		}
		known[providerID] = true
		imported++
	}

	return imported, nil
}
