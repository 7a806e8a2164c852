package scheduler

import (
	"context"
	"fmt"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
)

// Aggregate counts jobs by status and derives the overall status. Cancelled
// jobs are counted but do not take part in the overall status.
func Aggregate(jobs []models.EmailJob) models.JobProgress {
	p := models.JobProgress{Total: len(jobs), Jobs: jobs}
	if p.Jobs == nil {
		p.Jobs = []models.EmailJob{}
	}

	for _, job := range jobs {
		switch job.Status {
		case models.StatusPending:
			p.Pending++
		case models.StatusScheduled:
			p.Scheduled++
		case models.StatusProcessing:
			p.Processing++
		case models.StatusCompleted:
			p.Completed++
		case models.StatusFailed:
			p.Failed++
		case models.StatusCancelled:
			p.Cancelled++
		}
	}

	live := p.Total - p.Cancelled
	switch {
	case live == 0:
		p.Status = models.OverallPending
	case p.Completed == live:
		p.Status = models.OverallCompleted
	case p.Failed == live:
		p.Status = models.OverallFailed
	case p.Failed > 0:
		p.Status = models.OverallPartialFailure
	case p.Pending+p.Scheduled == live:
		p.Status = models.OverallPending
	default:
		p.Status = models.OverallInProgress
	}

	return p
}

func (s *Service) SessionProgress(ctx context.Context, sessionID string) (models.JobProgress, error) {
	if !s.store.IsAvailable(ctx) {
		return models.JobProgress{}, errs.ErrStoreUnavailable
	}
	jobs, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return models.JobProgress{}, fmt.Errorf("list jobs of session %s: %w", sessionID, err)
	}
	p := Aggregate(jobs)
	p.SessionID = sessionID
	return p, nil
}

func (s *Service) BatchProgress(ctx context.Context, batchID string) (models.JobProgress, error) {
	if !s.store.IsAvailable(ctx) {
		return models.JobProgress{}, errs.ErrStoreUnavailable
	}
	jobs, err := s.store.ListByBatch(ctx, batchID)
	if err != nil {
		return models.JobProgress{}, fmt.Errorf("list jobs of batch %s: %w", batchID, err)
	}
	p := Aggregate(jobs)
	p.BatchID = batchID
	return p, nil
}
