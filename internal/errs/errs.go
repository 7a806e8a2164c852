package errs

import "errors"

var (
	// ErrStoreUnavailable is returned by every job-status read or write path
	// when the job store availability check fails.
	ErrStoreUnavailable = errors.New("job tracking service unavailable")

	ErrJobNotFound = errors.New("email job not found")

	// ErrStatusTransitionDenied is returned when a status update would move a
	// job out of a terminal state (completed/cancelled).
	ErrStatusTransitionDenied = errors.New("status transition denied: job already in terminal state")

	// ErrAlreadyFinal is returned by dispatch clients when the provider refuses
	// a cancel or update because the message was already sent or cancelled.
	ErrAlreadyFinal = errors.New("message already delivered or cancelled")

	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidJobKey   = errors.New("invalid job key")
)
