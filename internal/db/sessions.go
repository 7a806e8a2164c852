package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
)

// SessionRepository reads resolved sessions (team members and mentor
// included) from the application database.
type SessionRepository struct {
	db DB
}

func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) GetSessionDetail(ctx context.Context, sessionID string) (models.Session, error) {
	var (
		s                                 models.Session
		mentorID, mentorName, mentorEmail *string
		teamID, teamName                  *string
		requirePrep, requireFeedback      *bool
	)

	err := r.db.QueryRow(ctx,
		`SELECT s.id, s.title, s.scheduled_start, s.duration, s.status,
		        s.require_prep, s.require_feedback,
		        m.id, m.name, m.email,
		        t.id, t.name
		 FROM sessions s
		 LEFT JOIN contacts m ON m.id = s.mentor_id
		 LEFT JOIN teams t ON t.id = s.team_id
		 WHERE s.id = $1`,
		sessionID,
	).Scan(
		&s.ID, &s.Title, &s.ScheduledStart, &s.Duration, &s.Status,
		&requirePrep, &requireFeedback,
		&mentorID, &mentorName, &mentorEmail,
		&teamID, &teamName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Session{}, errs.ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	s.RequirePrep = requirePrep
	s.RequireFeedback = requireFeedback
	if mentorID != nil {
		s.Mentor = &models.Contact{ID: *mentorID, Name: deref(mentorName), Email: deref(mentorEmail)}
	}
	if teamID == nil {
		return s, nil
	}
	s.Team = models.Team{ID: *teamID, Name: deref(teamName)}

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.name, COALESCE(c.email, '')
		 FROM team_members tm
		 JOIN contacts c ON c.id = tm.contact_id
		 WHERE tm.team_id = $1
		 ORDER BY c.name`,
		*teamID,
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("list members of team %s: %w", *teamID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			return models.Session{}, fmt.Errorf("scan team member: %w", err)
		}
		s.Team.Members = append(s.Team.Members, c)
	}
	if err := rows.Err(); err != nil {
		return models.Session{}, fmt.Errorf("iterate team members: %w", err)
	}

	return s, nil
}

func (r *SessionRepository) UpdateSession(ctx context.Context, sessionID string, u models.SessionUpdate) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)

	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if u.ScheduledStart != nil {
		add("scheduled_start", *u.ScheduledStart)
	}
	if u.Duration != nil {
		add("duration", *u.Duration)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.RequirePrep != nil {
		add("require_prep", *u.RequirePrep)
	}
	if u.RequireFeedback != nil {
		add("require_feedback", *u.RequireFeedback)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, sessionID)
	query := fmt.Sprintf(`UPDATE sessions SET %s, updated_at=NOW() WHERE id=$%d`,
		strings.Join(sets, ", "), len(args))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
