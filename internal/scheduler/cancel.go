package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/metrics"
	"SessionPulse/internal/models"
)

type CancelResult struct {
	Attempted int `json:"attempted"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// CancelSessionJobs cancels every job of a session that is not completed or
// already cancelled. Jobs the provider may already be delivering are
// attempted too; the provider refuses those harmlessly.
//
// Individual failures are logged and leave the job untouched. The returned
// error is errs.ErrStoreUnavailable or a failure to list the jobs.
func (s *Service) CancelSessionJobs(ctx context.Context, sessionID string) (CancelResult, error) {
	if !s.store.IsAvailable(ctx) {
		return CancelResult{}, errs.ErrStoreUnavailable
	}

	jobs, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return CancelResult{}, fmt.Errorf("list jobs of session %s: %w", sessionID, err)
	}

	return s.cancel(ctx, jobs), nil
}

// CancelJobs cancels an explicit list of jobs. Unknown ids count as failed.
func (s *Service) CancelJobs(ctx context.Context, jobIDs []string) (CancelResult, error) {
	if !s.store.IsAvailable(ctx) {
		return CancelResult{}, errs.ErrStoreUnavailable
	}

	var (
		jobs    []models.EmailJob
		missing int
	)
	for _, id := range jobIDs {
		job, err := s.store.Get(ctx, id)
		if err != nil {
			s.log.Warn("cannot cancel email job", zap.String("job_id", id), zap.Error(err))
			missing++
			continue
		}
		jobs = append(jobs, job)
	}

	result := s.cancel(ctx, jobs)
	result.Attempted += missing
	result.Failed += missing
	return result, nil
}

// CancelSessionEmails cancels the provider messages of a legacy inline id
// map and marks the matching tracked jobs cancelled. It never fails.
func (s *Service) CancelSessionEmails(ctx context.Context, ids models.ScheduledEmailIDs) {
	bySession := map[string]map[string]bool{}
	var failures error

	for key, providerID := range ids {
		if providerID == "" {
			continue
		}
		err := s.dispatch.Cancel(ctx, providerID)
		if err != nil && !errors.Is(err, errs.ErrAlreadyFinal) {
			metrics.CancelFailures.Inc()
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if key.SessionID != "" {
			if bySession[key.SessionID] == nil {
				bySession[key.SessionID] = map[string]bool{}
			}
			bySession[key.SessionID][providerID] = true
		}
	}
	if failures != nil {
		s.log.Warn("some legacy session emails could not be cancelled", zap.Error(failures))
	}

	if len(bySession) == 0 || !s.store.IsAvailable(ctx) {
		return
	}
	for sessionID, providerIDs := range bySession {
		jobs, err := s.store.ListBySession(ctx, sessionID)
		if err != nil {
			s.log.Warn("failed to load jobs for legacy cancel", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		for _, job := range jobs {
			if !providerIDs[job.ProviderID] || job.Status.Terminal() {
				continue
			}
			if err := s.store.SetStatus(ctx, job.ID, models.StatusCancelled, job.LastError); err != nil {
				s.log.Warn("failed to mark email job cancelled", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			metrics.JobsCancelled.Inc()
		}
	}
}

func (s *Service) cancel(ctx context.Context, jobs []models.EmailJob) CancelResult {
	var (
		result   CancelResult
		failures error
	)

	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}
		result.Attempted++

		if job.ProviderID != "" {
			err := s.dispatch.Cancel(ctx, job.ProviderID)
			if err != nil && !errors.Is(err, errs.ErrAlreadyFinal) {
				metrics.CancelFailures.Inc()
				result.Failed++
				failures = multierror.Append(failures, fmt.Errorf("job %s: %w", job.ID, err))
				continue
			}
		}

		if err := s.store.SetStatus(ctx, job.ID, models.StatusCancelled, job.LastError); err != nil {
			result.Failed++
			failures = multierror.Append(failures, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}

		result.Cancelled++
		metrics.JobsCancelled.Inc()
	}

	if failures != nil {
		s.log.Warn("some email jobs could not be cancelled",
			zap.Int("failed", result.Failed),
			zap.Error(failures),
		)
	}

	return result
}
