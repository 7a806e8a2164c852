package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
)

// MemoryStore is an in-process job store used for local runs and tests.
// Jobs are sharded per session so requests for different sessions never
// share a lock.
type MemoryStore struct {
	sessions sync.Map // session id -> *memoryBucket
	owners   sync.Map // job id -> session id
	batches  sync.Map // batch id -> *memoryBatch

	unavailable atomic.Bool
}

type memoryBucket struct {
	mu   sync.RWMutex
	jobs map[string]models.EmailJob
}

type memoryBatch struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SetAvailable toggles what IsAvailable reports.
func (s *MemoryStore) SetAvailable(ok bool) {
	s.unavailable.Store(!ok)
}

func (s *MemoryStore) IsAvailable(ctx context.Context) bool {
	return !s.unavailable.Load()
}

func (s *MemoryStore) bucket(sessionID string) *memoryBucket {
	b, _ := s.sessions.LoadOrStore(sessionID, &memoryBucket{jobs: make(map[string]models.EmailJob)})
	return b.(*memoryBucket)
}

func (s *MemoryStore) Upsert(ctx context.Context, job models.EmailJob) error {
	job.UpdatedAt = time.Now().UTC()

	b := s.bucket(job.SessionID)
	b.mu.Lock()
	b.jobs[job.ID] = job
	b.mu.Unlock()

	s.owners.Store(job.ID, job.SessionID)

	if job.BatchID != "" {
		v, _ := s.batches.LoadOrStore(job.BatchID, &memoryBatch{ids: make(map[string]struct{})})
		batch := v.(*memoryBatch)
		batch.mu.Lock()
		batch.ids[job.ID] = struct{}{}
		batch.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.EmailJob, error) {
	owner, ok := s.owners.Load(id)
	if !ok {
		return models.EmailJob{}, errs.ErrJobNotFound
	}

	b := s.bucket(owner.(string))
	b.mu.RLock()
	defer b.mu.RUnlock()

	job, ok := b.jobs[id]
	if !ok {
		return models.EmailJob{}, errs.ErrJobNotFound
	}
	return job, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id string, status models.JobStatus, lastError string) error {
	owner, ok := s.owners.Load(id)
	if !ok {
		return errs.ErrJobNotFound
	}

	b := s.bucket(owner.(string))
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[id]
	if !ok {
		return errs.ErrJobNotFound
	}
	job.Status = status
	job.LastError = lastError
	job.UpdatedAt = time.Now().UTC()
	b.jobs[id] = job
	return nil
}

func (s *MemoryStore) ListBySession(ctx context.Context, sessionID string) ([]models.EmailJob, error) {
	v, ok := s.sessions.Load(sessionID)
	if !ok {
		return []models.EmailJob{}, nil
	}
	b := v.(*memoryBucket)

	b.mu.RLock()
	jobs := make([]models.EmailJob, 0, len(b.jobs))
	for _, job := range b.jobs {
		jobs = append(jobs, job)
	}
	b.mu.RUnlock()

	sortJobs(jobs)
	return jobs, nil
}

func (s *MemoryStore) ListByBatch(ctx context.Context, batchID string) ([]models.EmailJob, error) {
	v, ok := s.batches.Load(batchID)
	if !ok {
		return []models.EmailJob{}, nil
	}
	batch := v.(*memoryBatch)

	batch.mu.Lock()
	ids := make([]string, 0, len(batch.ids))
	for id := range batch.ids {
		ids = append(ids, id)
	}
	batch.mu.Unlock()

	jobs := make([]models.EmailJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	sortJobs(jobs)
	return jobs, nil
}

func (s *MemoryStore) DeleteBySession(ctx context.Context, sessionID string) error {
	v, ok := s.sessions.LoadAndDelete(sessionID)
	if !ok {
		return nil
	}
	b := v.(*memoryBucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, job := range b.jobs {
		s.owners.Delete(id)
		if bv, ok := s.batches.Load(job.BatchID); ok {
			batch := bv.(*memoryBatch)
			batch.mu.Lock()
			delete(batch.ids, id)
			batch.mu.Unlock()
		}
	}
	return nil
}
