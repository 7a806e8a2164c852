package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
)

// fakeDB records statements and returns canned results.
type fakeDB struct {
	execTag  pgconn.CommandTag
	execErr  error
	execSQL  []string
	execArgs [][]any
	row      pgx.Row
	pingErr  error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row
}

func (f *fakeDB) Ping(ctx context.Context) error {
	return f.pingErr
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

func TestStore_IsAvailable(t *testing.T) {
	fake := &fakeDB{}
	store := &Store{Pool: fake}
	assert.True(t, store.IsAvailable(context.Background()))

	fake.pingErr = errors.New("connection refused")
	assert.False(t, store.IsAvailable(context.Background()))
}

func TestStore_SetStatus(t *testing.T) {
	fake := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
	store := &Store{Pool: fake}

	require.NoError(t, store.SetStatus(context.Background(), "job-1", models.StatusCancelled, ""))
	require.Len(t, fake.execArgs, 1)
	assert.Equal(t, []any{models.StatusCancelled, "", "job-1"}, fake.execArgs[0])

	fake.execTag = pgconn.NewCommandTag("UPDATE 0")
	assert.ErrorIs(t, store.SetStatus(context.Background(), "job-2", models.StatusFailed, "x"), errs.ErrJobNotFound)

	fake.execErr = errors.New("boom")
	err := store.SetStatus(context.Background(), "job-3", models.StatusFailed, "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrJobNotFound)
}

func TestStore_GetNotFound(t *testing.T) {
	store := &Store{Pool: &fakeDB{row: errRow{err: pgx.ErrNoRows}}}
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrJobNotFound)
}

func TestStore_Upsert(t *testing.T) {
	fake := &fakeDB{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	store := &Store{Pool: fake}

	job := models.EmailJob{ID: "job-1", SessionID: "s1", Type: models.JobPrep48h, Status: models.StatusScheduled}
	require.NoError(t, store.Upsert(context.Background(), job))
	require.Len(t, fake.execSQL, 1)
	assert.Contains(t, fake.execSQL[0], "ON CONFLICT (id) DO UPDATE")
	assert.Equal(t, "job-1", fake.execArgs[0][0])
}

func TestSessionRepository_UpdateSession(t *testing.T) {
	fake := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewSessionRepository(fake)

	require.NoError(t, repo.UpdateSession(context.Background(), "s1", models.SessionUpdate{}))
	assert.Empty(t, fake.execSQL, "no fields means no statement")

	duration := 45
	status := models.SessionCancelled
	require.NoError(t, repo.UpdateSession(context.Background(), "s1", models.SessionUpdate{Duration: &duration, Status: &status}))
	require.Len(t, fake.execSQL, 1)
	assert.Contains(t, fake.execSQL[0], "duration=$1, status=$2")
	assert.Contains(t, fake.execSQL[0], "WHERE id=$3")
	assert.Equal(t, []any{45, models.SessionCancelled, "s1"}, fake.execArgs[0])

	fake.execTag = pgconn.NewCommandTag("UPDATE 0")
	assert.ErrorIs(t, repo.UpdateSession(context.Background(), "s9", models.SessionUpdate{Duration: &duration}), errs.ErrSessionNotFound)
}

func TestSessionRepository_GetSessionDetailNotFound(t *testing.T) {
	repo := NewSessionRepository(&fakeDB{row: errRow{err: pgx.ErrNoRows}})
	_, err := repo.GetSessionDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestStore_Migrate(t *testing.T) {
	fake := &fakeDB{}
	store := &Store{Pool: fake}

	require.NoError(t, store.Migrate(context.Background()))
	require.Len(t, fake.execSQL, 1)
	assert.Contains(t, fake.execSQL[0], "CREATE TABLE IF NOT EXISTS email_jobs")

	fake.execErr = errors.New("permission denied")
	assert.Error(t, store.Migrate(context.Background()))
}
