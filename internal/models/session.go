package models

import "time"

type SessionStatus string

const (
	SessionScheduled SessionStatus = "Scheduled"
	SessionCompleted SessionStatus = "Completed"
	SessionCancelled SessionStatus = "Cancelled"
	SessionNoShow    SessionStatus = "No-Show"
)

type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Team struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Members []Contact `json:"members"`
}

// Session is the fully resolved meeting record as returned by the session
// source. The scheduling engine never writes to it.
type Session struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	ScheduledStart time.Time     `json:"scheduledStart"`
	Duration       int           `json:"duration"` // minutes
	Status         SessionStatus `json:"status"`

	Mentor *Contact `json:"mentor,omitempty"`
	Team   Team     `json:"team"`

	RequirePrep     *bool `json:"requirePrep,omitempty"`
	RequireFeedback *bool `json:"requireFeedback,omitempty"`
}

// PrepRequired reports the requirePrep flag, defaulting to true when unset.
func (s Session) PrepRequired() bool {
	return s.RequirePrep == nil || *s.RequirePrep
}

// FeedbackRequired reports the requireFeedback flag, defaulting to true when unset.
func (s Session) FeedbackRequired() bool {
	return s.RequireFeedback == nil || *s.RequireFeedback
}

// Students returns team members that have an email address.
func (s Session) Students() []Recipient {
	out := make([]Recipient, 0, len(s.Team.Members))
	for _, m := range s.Team.Members {
		if m.Email == "" {
			continue
		}
		out = append(out, Recipient{ContactID: m.ID, Email: m.Email, Name: m.Name, Role: RoleStudent})
	}
	return out
}

// Participants returns the students followed by the mentor, when the mentor
// has an email address.
func (s Session) Participants() []Recipient {
	out := s.Students()
	if s.Mentor != nil && s.Mentor.Email != "" {
		out = append(out, Recipient{ContactID: s.Mentor.ID, Email: s.Mentor.Email, Name: s.Mentor.Name, Role: RoleMentor})
	}
	return out
}

// SessionUpdate carries the mutable fields of a session. Nil fields are left
// untouched.
type SessionUpdate struct {
	ScheduledStart  *time.Time     `json:"scheduledStart,omitempty"`
	Duration        *int           `json:"duration,omitempty" validate:"omitempty,min=1"`
	Status          *SessionStatus `json:"status,omitempty" validate:"omitempty,oneof=Scheduled Completed Cancelled No-Show"`
	RequirePrep     *bool          `json:"requirePrep,omitempty"`
	RequireFeedback *bool          `json:"requireFeedback,omitempty"`
}

// FieldChange describes one changed session attribute for update emails.
type FieldChange struct {
	Field string `json:"field" validate:"required"`
	From  string `json:"from"`
	To    string `json:"to"`
}
