package models

import (
	"fmt"
	"strings"
	"time"

	"SessionPulse/internal/errs"
)

type JobType string

const (
	JobPrep48h           JobType = "prep48h"
	JobPrep24h           JobType = "prep24h"
	JobFeedbackImmediate JobType = "feedbackImmediate"
	JobSessionUpdate     JobType = "sessionUpdate"
)

func (t JobType) Valid() bool {
	switch t {
	case JobPrep48h, JobPrep24h, JobFeedbackImmediate, JobSessionUpdate:
		return true
	}
	return false
}

type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusScheduled  JobStatus = "scheduled"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a job in this status may still be delivered.
func (s JobStatus) Active() bool {
	return s == StatusPending || s == StatusScheduled || s == StatusProcessing
}

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Recipient struct {
	ContactID string `json:"contactId,omitempty"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
}

// JobKey identifies the (session, type, recipient) triple of a job. At most one
// active job exists per key.
type JobKey struct {
	SessionID string
	Type      JobType
	Email     string
}

// String returns the legacy "{type}_{email}" encoding. The session id is not
// part of it; legacy maps are always stored per session.
func (k JobKey) String() string {
	return string(k.Type) + "_" + k.Email
}

func (k JobKey) MarshalText() ([]byte, error) {
	if k.Type == "" || k.Email == "" {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidJobKey, k.String())
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses "{type}_{email}". Job types never contain an
// underscore, so the first one separates the two parts.
func (k *JobKey) UnmarshalText(text []byte) error {
	typ, email, ok := strings.Cut(string(text), "_")
	if !ok || typ == "" || email == "" {
		return fmt.Errorf("%w: %q", errs.ErrInvalidJobKey, text)
	}
	k.Type = JobType(typ)
	k.Email = email
	return nil
}

type EmailJob struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	BatchID   string `json:"batchId"`

	Type           JobType `json:"type"`
	RecipientEmail string  `json:"recipientEmail"`
	RecipientName  string  `json:"recipientName"`
	RecipientRole  Role    `json:"recipientRole"`

	SendAt time.Time `json:"sendAt"`

	Subject string `json:"subject"`
	Body    string `json:"body"`

	Status     JobStatus `json:"status"`
	ProviderID string    `json:"providerId,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	Attempts   int       `json:"attempts"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (j EmailJob) Key() JobKey {
	return JobKey{SessionID: j.SessionID, Type: j.Type, Email: j.RecipientEmail}
}

func (j EmailJob) Recipient() Recipient {
	return Recipient{Email: j.RecipientEmail, Name: j.RecipientName, Role: j.RecipientRole}
}

// RenderedEmail is the provider-ready content of one message.
type RenderedEmail struct {
	Subject string
	HTML    string
	// Tags are attached to the provider message and echoed back in
	// delivery events.
	Tags map[string]string
}

// DeliveryEvent is a provider webhook notification about one message.
type DeliveryEvent struct {
	Type       string            `json:"type" validate:"required"`
	ProviderID string            `json:"providerId"`
	Tags       map[string]string `json:"tags"`
	Reason     string            `json:"reason,omitempty"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

const (
	// TagJobID is the provider tag carrying the job id.
	TagJobID = "job_id"
	// TagIdempotency is not sent as a tag; its value becomes the provider
	// request's idempotency key.
	TagIdempotency = "idempotency_key"
)
