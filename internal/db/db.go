package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store is the Postgres-backed job store.
type Store struct {
	Pool DB
}

func New(ctx context.Context, conn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, nil, err
	}

	return &Store{Pool: pool}, pool, nil
}

//go:embed schema.sql
var schema string

// Migrate creates the email_jobs table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate email_jobs: %w", err)
	}
	return nil
}

const jobColumns = `id, session_id, batch_id, type, recipient_email, recipient_name, recipient_role,
	send_at, subject, body, status, COALESCE(provider_id, ''), COALESCE(last_error, ''), attempts,
	created_at, updated_at`

func (s *Store) IsAvailable(ctx context.Context) bool {
	return s.Pool.Ping(ctx) == nil
}

func (s *Store) Upsert(ctx context.Context, job models.EmailJob) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO email_jobs
		 (id, session_id, batch_id, type, recipient_email, recipient_name, recipient_role,
		  send_at, subject, body, status, provider_id, last_error, attempts, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),NULLIF($13,''),$14,$15,NOW())
		 ON CONFLICT (id) DO UPDATE SET
		     send_at=EXCLUDED.send_at,
		     subject=EXCLUDED.subject,
		     body=EXCLUDED.body,
		     status=EXCLUDED.status,
		     provider_id=EXCLUDED.provider_id,
		     last_error=EXCLUDED.last_error,
		     attempts=EXCLUDED.attempts,
		     updated_at=NOW()`,
		job.ID,
		job.SessionID,
		job.BatchID,
		job.Type,
		job.RecipientEmail,
		job.RecipientName,
		job.RecipientRole,
		job.SendAt,
		job.Subject,
		job.Body,
		job.Status,
		job.ProviderID,
		job.LastError,
		job.Attempts,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert email job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Store) SetStatus(
	ctx context.Context,
	id string,
	status models.JobStatus,
	lastError string,
) error {

	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_jobs
		 SET status=$1,
		     last_error=NULLIF($2,''),
		     updated_at=NOW()
		 WHERE id=$3`,
		status,
		lastError,
		id,
	)
	if err != nil {
		return fmt.Errorf("set status of email job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrJobNotFound
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.EmailJob, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM email_jobs WHERE id=$1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.EmailJob{}, errs.ErrJobNotFound
	}
	if err != nil {
		return models.EmailJob{}, fmt.Errorf("get email job %s: %w", id, err)
	}
	return job, nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]models.EmailJob, error) {
	return s.list(ctx,
		`SELECT `+jobColumns+` FROM email_jobs WHERE session_id=$1 ORDER BY send_at, created_at`,
		sessionID)
}

func (s *Store) ListByBatch(ctx context.Context, batchID string) ([]models.EmailJob, error) {
	return s.list(ctx,
		`SELECT `+jobColumns+` FROM email_jobs WHERE batch_id=$1 ORDER BY send_at, created_at`,
		batchID)
}

func (s *Store) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM email_jobs WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete email jobs of session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, query, arg string) ([]models.EmailJob, error) {
	rows, err := s.Pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list email jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.EmailJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate email jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (models.EmailJob, error) {
	var job models.EmailJob
	err := row.Scan(
		&job.ID,
		&job.SessionID,
		&job.BatchID,
		&job.Type,
		&job.RecipientEmail,
		&job.RecipientName,
		&job.RecipientRole,
		&job.SendAt,
		&job.Subject,
		&job.Body,
		&job.Status,
		&job.ProviderID,
		&job.LastError,
		&job.Attempts,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	return job, err
}
