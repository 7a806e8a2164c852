package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestRedisStore_Conformance(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	runJobStoreConformance(t, NewRedisStore(client))
}

func TestRedisStore_UnavailableWhenServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client)
	assert.True(t, store.IsAvailable(context.Background()))

	mr.Close()
	assert.False(t, store.IsAvailable(context.Background()))
}

type RedisStoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
	ctx    context.Context
	base   time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.store = NewRedisStore(s.client)
	s.ctx = context.Background()
	s.base = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *RedisStoreSuite) TearDownTest() {
	s.client.Close()
}

func (s *RedisStoreSuite) TestKeyLayout() {
	s.Require().NoError(s.store.Upsert(s.ctx, newTestJob("j1", "sess-1", "b1", s.base)))

	s.True(s.mr.Exists("sessionpulse:job:j1"))
	members, err := s.mr.Members("sessionpulse:session:sess-1:jobs")
	s.Require().NoError(err)
	s.Equal([]string{"j1"}, members)
	members, err = s.mr.Members("sessionpulse:batch:b1:jobs")
	s.Require().NoError(err)
	s.Equal([]string{"j1"}, members)
}

func (s *RedisStoreSuite) TestDanglingSetMemberIsSkipped() {
	s.Require().NoError(s.store.Upsert(s.ctx, newTestJob("j1", "sess-1", "b1", s.base)))
	s.Require().NoError(s.store.Upsert(s.ctx, newTestJob("j2", "sess-1", "b1", s.base.Add(time.Hour))))
	s.mr.Del("sessionpulse:job:j1")

	jobs, err := s.store.ListBySession(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.Require().Len(jobs, 1)
	s.Equal("j2", jobs[0].ID)
}

func (s *RedisStoreSuite) TestDeleteBySessionLeavesOtherSessions() {
	s.Require().NoError(s.store.Upsert(s.ctx, newTestJob("j1", "sess-1", "shared", s.base)))
	s.Require().NoError(s.store.Upsert(s.ctx, newTestJob("j2", "sess-2", "shared", s.base)))

	s.Require().NoError(s.store.DeleteBySession(s.ctx, "sess-1"))

	s.False(s.mr.Exists("sessionpulse:job:j1"))
	s.False(s.mr.Exists("sessionpulse:session:sess-1:jobs"))

	batch, err := s.store.ListByBatch(s.ctx, "shared")
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Equal("j2", batch[0].ID)
}
