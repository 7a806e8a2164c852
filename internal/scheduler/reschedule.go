package scheduler

import (
	"context"

	"go.uber.org/zap"

	"SessionPulse/internal/models"
	"SessionPulse/internal/schedule"
)

// prepCutoffHours is the proximity below which a rescheduled session gets no
// prep reminder at all.
const prepCutoffHours = 24

// HandleReschedule replaces every job of a session whose start or duration
// changed. Old jobs are cancelled first because their content embeds the old
// date; new ones are only submitted after every cancellation was attempted.
//
// More than 24 hours out, students get a new prep24h reminder (never prep48h)
// and every participant a new feedback request. Within 24 hours only the
// feedback requests are recreated.
func (s *Service) HandleReschedule(ctx context.Context, session models.Session) ScheduleResult {
	hours := schedule.HoursUntil(session.ScheduledStart, s.now())
	log := s.log.With(zap.String("session_id", session.ID), zap.Float64("hours_until_session", hours))

	cancelled, err := s.CancelSessionJobs(ctx, session.ID)
	if err != nil {
		log.Warn("could not cancel previous session emails", zap.Error(err))
	} else {
		log.Info("previous session emails cancelled",
			zap.Int("attempted", cancelled.Attempted),
			zap.Int("cancelled", cancelled.Cancelled),
			zap.Int("failed", cancelled.Failed),
		)
	}

	var prepTypes []models.JobType
	if hours > prepCutoffHours {
		prepTypes = rescheduledPrepTypes
	}

	return s.run(ctx, session, plan(session, prepTypes), false)
}

// HandlePrepReminderRescheduling is HandleReschedule for sessions that still
// carry the legacy inline id map: the provider ids in current are cancelled
// as well, and the new map is returned for storing back on the record.
func (s *Service) HandlePrepReminderRescheduling(ctx context.Context, session models.Session, current models.ScheduledEmailIDs) models.ScheduledEmailIDs {
	s.CancelSessionEmails(ctx, current)
	return s.HandleReschedule(ctx, session).Scheduled
}

// HandleSessionUpdate reacts to a session change: moving to Cancelled cancels
// every job, and a new start or duration on a scheduled session reschedules.
// It returns the reschedule result, or nil when nothing was rescheduled.
func (s *Service) HandleSessionUpdate(ctx context.Context, prev, next models.Session) *ScheduleResult {
	log := s.log.With(zap.String("session_id", next.ID))

	if next.Status == models.SessionCancelled {
		if prev.Status != models.SessionCancelled {
			if _, err := s.CancelSessionJobs(ctx, next.ID); err != nil {
				log.Warn("could not cancel emails of cancelled session", zap.Error(err))
			}
		}
		return nil
	}

	if next.Status != models.SessionScheduled {
		return nil
	}

	if prev.ScheduledStart.Equal(next.ScheduledStart) && prev.Duration == next.Duration {
		return nil
	}

	result := s.HandleReschedule(ctx, next)
	return &result
}

// HandleSessionDeleted cancels every job of a deleted session and then
// removes its job records.
func (s *Service) HandleSessionDeleted(ctx context.Context, sessionID string) {
	log := s.log.With(zap.String("session_id", sessionID))

	if _, err := s.CancelSessionJobs(ctx, sessionID); err != nil {
		log.Warn("could not cancel emails of deleted session", zap.Error(err))
		return
	}

	if err := s.store.DeleteBySession(ctx, sessionID); err != nil {
		log.Warn("could not remove email jobs of deleted session", zap.Error(err))
	}
}
