package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/metrics"
	"SessionPulse/internal/models"
	"SessionPulse/internal/schedule"
)

// JobFailure describes one email the provider did not accept.
type JobFailure struct {
	Type  models.JobType `json:"type"`
	Email string         `json:"email"`
	Error string         `json:"error"`
}

type ScheduleResult struct {
	BatchID   string                   `json:"batchId"`
	Scheduled models.ScheduledEmailIDs `json:"scheduled"`
	Jobs      []models.EmailJob        `json:"jobs"`
	Failures  []JobFailure             `json:"failures"`
}

// attempt is one planned (type, recipient) email.
type attempt struct {
	typ models.JobType
	to  models.Recipient
}

var (
	initialPrepTypes     = []models.JobType{models.JobPrep48h, models.JobPrep24h}
	rescheduledPrepTypes = []models.JobType{models.JobPrep24h}
)

// plan lists the emails a session needs for the given prep reminder types.
// Prep reminders go to students only and only when the session requires
// preparation; the feedback request goes to every participant.
func plan(session models.Session, prepTypes []models.JobType) []attempt {
	var attempts []attempt

	if session.PrepRequired() {
		for _, student := range session.Students() {
			for _, typ := range prepTypes {
				attempts = append(attempts, attempt{typ: typ, to: student})
			}
		}
	}

	if session.FeedbackRequired() {
		for _, p := range session.Participants() {
			attempts = append(attempts, attempt{typ: models.JobFeedbackImmediate, to: p})
		}
	}

	return attempts
}

// ScheduleSessionEmails creates the initial reminder and feedback jobs of a
// newly created session. Keys that already have an active job are skipped,
// so calling it twice does not double-schedule.
func (s *Service) ScheduleSessionEmails(ctx context.Context, session models.Session) ScheduleResult {
	return s.run(ctx, session, plan(session, initialPrepTypes), true)
}

// run submits every valid attempt in order. skipActive leaves keys that
// already have an active job alone.
func (s *Service) run(ctx context.Context, session models.Session, attempts []attempt, skipActive bool) ScheduleResult {
	result := ScheduleResult{
		BatchID:   s.newID(),
		Scheduled: models.ScheduledEmailIDs{},
		Jobs:      []models.EmailJob{},
		Failures:  []JobFailure{},
	}
	log := s.log.With(zap.String("session_id", session.ID), zap.String("batch_id", result.BatchID))

	if !s.store.IsAvailable(ctx) {
		log.Warn("job store unavailable, session emails not scheduled")
		return result
	}

	active := map[models.JobKey]bool{}
	if skipActive {
		existing, err := s.store.ListBySession(ctx, session.ID)
		if err != nil {
			log.Warn("failed to load existing jobs", zap.Error(err))
		}
		for _, job := range existing {
			if job.Status.Active() {
				active[job.Key()] = true
			}
		}
	}

	now := s.now()
	times := schedule.Compute(session.ScheduledStart, session.Duration)

	var failures error
	for _, a := range attempts {
		sendAt, ok := times.For(a.typ)
		if !ok || !schedule.IsValidScheduleTime(sendAt, now) {
			log.Debug("send time outside schedule window, skipping",
				zap.String("type", string(a.typ)),
				zap.String("to", a.to.Email),
				zap.Time("send_at", sendAt),
			)
			continue
		}

		key := models.JobKey{SessionID: session.ID, Type: a.typ, Email: a.to.Email}
		if active[key] {
			log.Debug("active job exists, skipping", zap.String("job_key", key.String()))
			continue
		}

		job, err := s.submit(ctx, result.BatchID, session, a, sendAt)
		if err != nil {
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", key, err))
			result.Failures = append(result.Failures, JobFailure{Type: a.typ, Email: a.to.Email, Error: err.Error()})
			continue
		}

		active[key] = true
		result.Scheduled[key] = job.ProviderID
		result.Jobs = append(result.Jobs, job)
	}

	log.Info("session emails scheduled",
		zap.Int("scheduled", len(result.Jobs)),
		zap.Int("failed", len(result.Failures)),
	)
	if failures != nil {
		log.Warn("some session emails could not be scheduled", zap.Error(failures))
	}

	return result
}

// submit renders and hands one email to the provider, then records the job.
// A provider rejection is recorded as a failed job so operators can retry it.
func (s *Service) submit(ctx context.Context, batchID string, session models.Session, a attempt, sendAt time.Time) (models.EmailJob, error) {
	now := s.now().UTC()
	job := models.EmailJob{
		ID:             s.newID(),
		SessionID:      session.ID,
		BatchID:        batchID,
		Type:           a.typ,
		RecipientEmail: a.to.Email,
		RecipientName:  a.to.Name,
		RecipientRole:  a.to.Role,
		SendAt:         sendAt,
		Status:         models.StatusPending,
		Attempts:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	log := s.log.With(
		zap.String("session_id", session.ID),
		zap.String("job_id", job.ID),
		zap.String("type", string(a.typ)),
		zap.String("to", a.to.Email),
	)

	msg, err := s.renderer.Render(a.typ, session, a.to, nil)
	if err != nil {
		log.Error("failed to render email", zap.Error(err))
		s.recordFailure(ctx, job, err)
		return job, err
	}
	job.Subject = msg.Subject
	job.Body = msg.HTML

	providerID, err := s.dispatch.Submit(ctx, withJobTags(msg, job), a.to, sendAt)
	if err != nil {
		log.Error("failed to schedule email", zap.Error(err))
		s.recordFailure(ctx, job, err)
		return job, err
	}

	job.Status = models.StatusScheduled
	job.ProviderID = providerID
	if err := s.store.Upsert(ctx, job); err != nil {
		log.Error("failed to record scheduled email job",
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
		// An untracked provider message could never be cancelled or
		// rescheduled, so it is withdrawn and the attempt fails.
		s.withdraw(ctx, log, providerID)
		job.ProviderID = ""
		err = fmt.Errorf("record email job %s: %w", job.ID, err)
		s.recordFailure(ctx, job, err)
		return job, err
	}

	metrics.JobsScheduled.WithLabelValues(string(a.typ)).Inc()
	log.Debug("email scheduled", zap.String("provider_id", providerID), zap.Time("send_at", sendAt))
	return job, nil
}

func (s *Service) recordFailure(ctx context.Context, job models.EmailJob, cause error) {
	metrics.ScheduleFailures.WithLabelValues(string(job.Type)).Inc()

	job.Status = models.StatusFailed
	job.LastError = cause.Error()
	if err := s.store.Upsert(ctx, job); err != nil {
		s.log.Error("failed to record email job failure",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}

// withdraw cancels a provider message whose job could not be recorded.
func (s *Service) withdraw(ctx context.Context, log *zap.Logger, providerID string) {
	if err := s.dispatch.Cancel(ctx, providerID); err != nil && !errors.Is(err, errs.ErrAlreadyFinal) {
		log.Error("failed to withdraw untracked provider message",
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
	}
}

// withJobTags attaches the job id (echoed back in delivery events) and an
// idempotency key unique per submission attempt.
func withJobTags(msg models.RenderedEmail, job models.EmailJob) models.RenderedEmail {
	msg.Tags = map[string]string{
		models.TagJobID:       job.ID,
		"email_type":          string(job.Type),
		models.TagIdempotency: fmt.Sprintf("%s-%d", job.ID, job.Attempts),
	}
	return msg
}
