package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Conformance(t *testing.T) {
	runJobStoreConformance(t, NewMemoryStore())
}

func TestMemoryStore_Availability(t *testing.T) {
	store := NewMemoryStore()
	store.SetAvailable(false)
	assert.False(t, store.IsAvailable(context.Background()))
	store.SetAvailable(true)
	assert.True(t, store.IsAvailable(context.Background()))
}

func TestMemoryStore_ConcurrentSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				id := fmt.Sprintf("s%d-j%d", s, j)
				_ = store.Upsert(ctx, newTestJob(id, fmt.Sprintf("s%d", s), "shared", base))
			}
		}(s)
	}
	wg.Wait()

	for s := 0; s < 8; s++ {
		jobs, err := store.ListBySession(ctx, fmt.Sprintf("s%d", s))
		require.NoError(t, err)
		assert.Len(t, jobs, 25)
	}
	batch, err := store.ListByBatch(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, batch, 200)
}
