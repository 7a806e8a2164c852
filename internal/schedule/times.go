// Package schedule maps a session's start and duration to email send times.
// It is the only place the reminder offsets are defined.
package schedule

import (
	"time"

	"SessionPulse/internal/models"
)

const (
	Prep48hOffset = 48 * time.Hour
	Prep24hOffset = 24 * time.Hour

	// Horizon is the furthest ahead the email provider accepts a send time.
	Horizon = 30 * 24 * time.Hour
)

type Times struct {
	Prep48h           time.Time
	Prep24h           time.Time
	FeedbackImmediate time.Time
}

// Compute returns the target send times for a session starting at start and
// lasting durationMinutes.
func Compute(start time.Time, durationMinutes int) Times {
	return Times{
		Prep48h:           start.Add(-Prep48hOffset),
		Prep24h:           start.Add(-Prep24hOffset),
		FeedbackImmediate: start.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// For returns the send time for a reminder type. Types without a computed
// offset report false.
func (t Times) For(typ models.JobType) (time.Time, bool) {
	switch typ {
	case models.JobPrep48h:
		return t.Prep48h, true
	case models.JobPrep24h:
		return t.Prep24h, true
	case models.JobFeedbackImmediate:
		return t.FeedbackImmediate, true
	}
	return time.Time{}, false
}

// IsValidScheduleTime reports whether t is strictly after now and no more
// than Horizon ahead. Invalid times are skipped by callers, never errors.
func IsValidScheduleTime(t, now time.Time) bool {
	if !t.After(now) {
		return false
	}
	return t.Sub(now) <= Horizon
}

// HoursUntil returns the fractional hours from now until start.
func HoursUntil(start, now time.Time) float64 {
	return start.Sub(now).Hours()
}
