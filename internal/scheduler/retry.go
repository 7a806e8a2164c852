package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/metrics"
	"SessionPulse/internal/models"
	"SessionPulse/internal/schedule"
)

type RetryResult struct {
	Total   int `json:"total"`
	Retried int `json:"retried"`
}

// RetryAllFailedJobsForSession resubmits every failed job of a session with
// its original send time. Jobs whose send time has passed, and jobs whose key
// already has an active replacement, stay failed.
func (s *Service) RetryAllFailedJobsForSession(ctx context.Context, sessionID string) (RetryResult, error) {
	if !s.store.IsAvailable(ctx) {
		return RetryResult{}, errs.ErrStoreUnavailable
	}

	jobs, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return RetryResult{}, fmt.Errorf("list jobs of session %s: %w", sessionID, err)
	}

	active := map[models.JobKey]bool{}
	for _, job := range jobs {
		if job.Status.Active() {
			active[job.Key()] = true
		}
	}

	var result RetryResult
	now := s.now()
	log := s.log.With(zap.String("session_id", sessionID))

	for _, job := range jobs {
		if job.Status != models.StatusFailed {
			continue
		}
		result.Total++

		if !schedule.IsValidScheduleTime(job.SendAt, now) {
			log.Info("send time passed, not retrying", zap.String("job_id", job.ID), zap.Time("send_at", job.SendAt))
			continue
		}
		if active[job.Key()] {
			log.Info("job superseded, not retrying", zap.String("job_id", job.ID))
			continue
		}
		if job.Body == "" {
			log.Warn("job has no rendered content, not retrying", zap.String("job_id", job.ID))
			continue
		}

		if err := s.resubmit(ctx, job); err != nil {
			log.Warn("retry failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}

		active[job.Key()] = true
		result.Retried++
		metrics.JobsRetried.Inc()
	}

	log.Info("failed session emails retried", zap.Int("total", result.Total), zap.Int("retried", result.Retried))
	return result, nil
}

func (s *Service) resubmit(ctx context.Context, job models.EmailJob) error {
	job.Attempts++
	msg := withJobTags(models.RenderedEmail{Subject: job.Subject, HTML: job.Body}, job)

	providerID, err := s.dispatch.Submit(ctx, msg, job.Recipient(), job.SendAt)
	if err != nil {
		job.LastError = err.Error()
		if upsertErr := s.store.Upsert(ctx, job); upsertErr != nil {
			s.log.Error("failed to record retry failure", zap.String("job_id", job.ID), zap.Error(upsertErr))
		}
		return err
	}

	job.Status = models.StatusScheduled
	job.ProviderID = providerID
	job.LastError = ""
	if err := s.store.Upsert(ctx, job); err != nil {
		log := s.log.With(zap.String("job_id", job.ID))
		log.Error("failed to record retried email job", zap.String("provider_id", providerID), zap.Error(err))
		s.withdraw(ctx, log, providerID)
		return fmt.Errorf("record retried job %s: %w", job.ID, err)
	}
	return nil
}
