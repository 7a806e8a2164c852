// Package scheduler owns the session notification lifecycle: it decides which
// reminder and feedback emails a session needs, submits them to the delayed
// delivery provider, tracks them as jobs and replaces or cancels them when the
// session moves, is cancelled or is deleted.
//
// Every per-recipient step is best effort. A failure for one recipient is
// logged and collected; it never aborts the rest of the run and never fails
// the session operation that triggered it. Only job-store unavailability is
// surfaced to callers, as errs.ErrStoreUnavailable.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SessionPulse/internal/models"
)

// JobStore is the durable registry of email jobs.
type JobStore interface {
	IsAvailable(ctx context.Context) bool
	Get(ctx context.Context, id string) (models.EmailJob, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.EmailJob, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.EmailJob, error)
	Upsert(ctx context.Context, job models.EmailJob) error
	SetStatus(ctx context.Context, id string, status models.JobStatus, lastError string) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

// Dispatcher is the delayed-delivery email provider.
type Dispatcher interface {
	Submit(ctx context.Context, msg models.RenderedEmail, to models.Recipient, sendAt time.Time) (string, error)
	UpdateTime(ctx context.Context, providerID string, sendAt time.Time) error
	// Cancel must report errs.ErrAlreadyFinal for messages that were already
	// sent or cancelled.
	Cancel(ctx context.Context, providerID string) error
}

// InstantSender delivers a message right away.
type InstantSender interface {
	Send(ctx context.Context, msg models.RenderedEmail, to models.Recipient) error
}

type Renderer interface {
	Render(typ models.JobType, s models.Session, to models.Recipient, changes []models.FieldChange) (models.RenderedEmail, error)
}

// SessionSource resolves and mutates session records owned by the
// application database.
type SessionSource interface {
	GetSessionDetail(ctx context.Context, sessionID string) (models.Session, error)
	UpdateSession(ctx context.Context, sessionID string, update models.SessionUpdate) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type Service struct {
	store    JobStore
	dispatch Dispatcher
	instant  InstantSender
	renderer Renderer
	log      *zap.Logger

	now   func() time.Time
	newID func() string
}

type Option func(s *Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithInstantSender sets the sender used for session update notifications.
// Without one, they are submitted to the dispatcher with no send time.
func WithInstantSender(sender InstantSender) Option {
	return func(s *Service) {
		s.instant = sender
	}
}

// WithIDGenerator replaces the uuid generator for job and batch ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

func New(store JobStore, dispatch Dispatcher, renderer Renderer, log *zap.Logger, options ...Option) *Service {
	s := &Service{
		store:    store,
		dispatch: dispatch,
		renderer: renderer,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}

	for _, option := range options {
		option(s)
	}

	if s.log == nil {
		s.log = zap.NewNop()
	}

	return s
}
