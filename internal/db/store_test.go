package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
)

type jobStore interface {
	IsAvailable(ctx context.Context) bool
	Upsert(ctx context.Context, job models.EmailJob) error
	Get(ctx context.Context, id string) (models.EmailJob, error)
	SetStatus(ctx context.Context, id string, status models.JobStatus, lastError string) error
	ListBySession(ctx context.Context, sessionID string) ([]models.EmailJob, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.EmailJob, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

func newTestJob(id, sessionID, batchID string, sendAt time.Time) models.EmailJob {
	return models.EmailJob{
		ID:             id,
		SessionID:      sessionID,
		BatchID:        batchID,
		Type:           models.JobPrep24h,
		RecipientEmail: id + "@example.com",
		RecipientName:  "Student " + id,
		RecipientRole:  models.RoleStudent,
		SendAt:         sendAt,
		Subject:        "subject",
		Body:           "<p>body</p>",
		Status:         models.StatusScheduled,
		ProviderID:     "prov-" + id,
		CreatedAt:      sendAt.Add(-time.Hour),
	}
}

// runJobStoreConformance exercises the behaviour every backend shares.
func runJobStoreConformance(t *testing.T, store jobStore) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.True(t, store.IsAvailable(ctx))

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrJobNotFound)
	assert.ErrorIs(t, store.SetStatus(ctx, "missing", models.StatusFailed, ""), errs.ErrJobNotFound)

	require.NoError(t, store.Upsert(ctx, newTestJob("j2", "s1", "b1", base.Add(2*time.Hour))))
	require.NoError(t, store.Upsert(ctx, newTestJob("j1", "s1", "b1", base.Add(time.Hour))))
	require.NoError(t, store.Upsert(ctx, newTestJob("j3", "s2", "b2", base)))

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "prov-j1", got.ProviderID)
	assert.True(t, got.SendAt.Equal(base.Add(time.Hour)))

	jobs, err := store.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j1", jobs[0].ID, "ordered by send time")
	assert.Equal(t, "j2", jobs[1].ID)

	batch, err := store.ListByBatch(ctx, "b2")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "j3", batch[0].ID)

	require.NoError(t, store.SetStatus(ctx, "j1", models.StatusFailed, "bounced"))
	got, err = store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "bounced", got.LastError)

	got.Status = models.StatusScheduled
	got.ProviderID = "prov-j1-retry"
	got.LastError = ""
	require.NoError(t, store.Upsert(ctx, got))
	got, err = store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "prov-j1-retry", got.ProviderID)

	require.NoError(t, store.DeleteBySession(ctx, "s1"))
	jobs, err = store.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, jobs)
	batch, err = store.ListByBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, batch)
	_, err = store.Get(ctx, "j2")
	assert.ErrorIs(t, err, errs.ErrJobNotFound)

	// other sessions are untouched
	_, err = store.Get(ctx, "j3")
	assert.NoError(t, err)

	empty, err := store.ListBySession(ctx, "never")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
