package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/metrics"
	"SessionPulse/internal/models"
)

func (s *Service) GetSessionJobs(ctx context.Context, sessionID string) ([]models.EmailJob, error) {
	if !s.store.IsAvailable(ctx) {
		return nil, errs.ErrStoreUnavailable
	}
	jobs, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list jobs of session %s: %w", sessionID, err)
	}
	return jobs, nil
}

// GetJob returns nil without error when the job does not exist.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.EmailJob, error) {
	if !s.store.IsAvailable(ctx) {
		return nil, errs.ErrStoreUnavailable
	}
	job, err := s.store.Get(ctx, jobID)
	if errors.Is(err, errs.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJobStatus sets a job's status. Completed and cancelled jobs are
// final: moving them anywhere else returns errs.ErrStatusTransitionDenied.
func (s *Service) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, lastError string) error {
	if !status.Valid() {
		return fmt.Errorf("unknown job status %q", status)
	}
	if !s.store.IsAvailable(ctx) {
		return errs.ErrStoreUnavailable
	}

	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == status && job.LastError == lastError {
		return nil
	}
	if job.Status.Terminal() && job.Status != status {
		return errs.ErrStatusTransitionDenied
	}

	return s.store.SetStatus(ctx, jobID, status, lastError)
}

// DeliveryStatus maps a provider webhook event type to a job status. ok is
// false for events that carry no status change.
func DeliveryStatus(eventType string) (status models.JobStatus, ok bool) {
	switch eventType {
	case "email.scheduled":
		return models.StatusScheduled, true
	case "email.sent", "email.delivery_delayed":
		return models.StatusProcessing, true
	case "email.delivered":
		return models.StatusCompleted, true
	case "email.bounced", "email.failed":
		return models.StatusFailed, true
	case "email.canceled":
		return models.StatusCancelled, true
	default:
		return "", false
	}
}

// deliveryAdvances reports whether a delivery event may move a job from one
// status to another. Events arrive out of order, so a job never moves back
// from processing, and a failed job only leaves failed for a resubmission or
// a cancellation.
func deliveryAdvances(from, to models.JobStatus) bool {
	switch from {
	case models.StatusCompleted, models.StatusCancelled:
		return false
	case models.StatusFailed:
		return to == models.StatusScheduled || to == models.StatusCancelled
	case models.StatusProcessing:
		return to != models.StatusPending && to != models.StatusScheduled
	}
	return true
}

// ApplyDeliveryEvent moves the job named by the event's job id tag to the
// status the event reports. Events for unknown jobs, events from an earlier
// submission of the job, events without a status and events that would move
// the job backwards are dropped.
func (s *Service) ApplyDeliveryEvent(ctx context.Context, event models.DeliveryEvent) error {
	log := s.log.With(zap.String("event", event.Type), zap.String("provider_id", event.ProviderID))

	status, ok := DeliveryStatus(event.Type)
	if !ok {
		log.Debug("delivery event ignored")
		return nil
	}

	jobID := event.Tags[models.TagJobID]
	if jobID == "" {
		log.Debug("delivery event without job id ignored")
		return nil
	}
	log = log.With(zap.String("job_id", jobID))

	if !s.store.IsAvailable(ctx) {
		return errs.ErrStoreUnavailable
	}

	job, err := s.store.Get(ctx, jobID)
	if errors.Is(err, errs.ErrJobNotFound) {
		log.Debug("delivery event for unknown job dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply %s to job %s: %w", event.Type, jobID, err)
	}

	if event.ProviderID != "" && event.ProviderID != job.ProviderID {
		log.Debug("delivery event for superseded submission dropped", zap.String("current_provider_id", job.ProviderID))
		return nil
	}

	lastError := ""
	if status == models.StatusFailed {
		lastError = event.Reason
		if lastError == "" {
			lastError = event.Type
		}
	}

	if job.Status == status {
		return nil
	}
	if !deliveryAdvances(job.Status, status) {
		log.Debug("delivery event out of order, dropped",
			zap.String("from", string(job.Status)),
			zap.String("to", string(status)),
		)
		return nil
	}

	if err := s.store.SetStatus(ctx, jobID, status, lastError); err != nil {
		return fmt.Errorf("apply %s to job %s: %w", event.Type, jobID, err)
	}

	metrics.DeliveryEvents.WithLabelValues(string(status)).Inc()
	log.Debug("delivery event applied", zap.String("status", string(status)))
	return nil
}
