package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
)

const redisKeyPrefix = "sessionpulse"

// RedisStore keeps each job as a JSON document with per-session and per-batch
// id sets. Writes touch only the keys of one job.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func jobKey(id string) string         { return fmt.Sprintf("%s:job:%s", redisKeyPrefix, id) }
func sessionJobsKey(id string) string { return fmt.Sprintf("%s:session:%s:jobs", redisKeyPrefix, id) }
func batchJobsKey(id string) string   { return fmt.Sprintf("%s:batch:%s:jobs", redisKeyPrefix, id) }

func (s *RedisStore) IsAvailable(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

func (s *RedisStore) Upsert(ctx context.Context, job models.EmailJob) error {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode email job %s: %w", job.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), data, 0)
		pipe.SAdd(ctx, sessionJobsKey(job.SessionID), job.ID)
		if job.BatchID != "" {
			pipe.SAdd(ctx, batchJobsKey(job.BatchID), job.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert email job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.EmailJob, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.EmailJob{}, errs.ErrJobNotFound
	}
	if err != nil {
		return models.EmailJob{}, fmt.Errorf("redis get email job %s: %w", id, err)
	}

	var job models.EmailJob
	if err := json.Unmarshal(data, &job); err != nil {
		return models.EmailJob{}, fmt.Errorf("decode email job %s: %w", id, err)
	}
	return job, nil
}

// SetStatus is a read-modify-write of one job document; concurrent writers to
// the same job resolve last-writer-wins.
func (s *RedisStore) SetStatus(ctx context.Context, id string, status models.JobStatus, lastError string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	job.Status = status
	job.LastError = lastError
	return s.Upsert(ctx, job)
}

func (s *RedisStore) ListBySession(ctx context.Context, sessionID string) ([]models.EmailJob, error) {
	return s.listSet(ctx, sessionJobsKey(sessionID))
}

func (s *RedisStore) ListByBatch(ctx context.Context, batchID string) ([]models.EmailJob, error) {
	return s.listSet(ctx, batchJobsKey(batchID))
}

func (s *RedisStore) DeleteBySession(ctx context.Context, sessionID string) error {
	jobs, err := s.ListBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, job := range jobs {
			pipe.Del(ctx, jobKey(job.ID))
			if job.BatchID != "" {
				pipe.SRem(ctx, batchJobsKey(job.BatchID), job.ID)
			}
		}
		pipe.Del(ctx, sessionJobsKey(sessionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete email jobs of session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) listSet(ctx context.Context, setKey string) ([]models.EmailJob, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list %s: %w", setKey, err)
	}

	jobs := make([]models.EmailJob, 0, len(ids))
	if len(ids) == 0 {
		return jobs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", setKey, err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// id left in the set after its document was removed
			continue
		}
		var job models.EmailJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, fmt.Errorf("decode email job %s: %w", ids[i], err)
		}
		jobs = append(jobs, job)
	}

	sortJobs(jobs)
	return jobs, nil
}

func sortJobs(jobs []models.EmailJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].SendAt.Equal(jobs[j].SendAt) {
			return jobs[i].SendAt.Before(jobs[j].SendAt)
		}
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
}
