package userdir

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rently-backend/internal/domain"
	"rently-backend/internal/repository/memory"
	"rently-backend/internal/service"
)

// fakeCache is an in-memory stand-in for the redis client.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return redis.NewStringResult("", c.err)
	}
	v, ok := c.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return redis.NewStatusResult("", c.err)
	}
	c.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return redis.NewIntResult(0, c.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Lookup(ctx context.Context, userID string) (*Profile, error) {
	args := m.Called(ctx, userID)
	if p := args.Get(0); p != nil {
		return p.(*Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestStoreDirectory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	users := service.NewUserService(store)
	_, _, err := users.Onboard(ctx, &domain.User{ID: "u1", Name: "Ann", Email: "ann@example.com", FCMToken: "tok"})
	require.NoError(t, err)

	dir := NewStoreDirectory(store)
	p, err := dir.Lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &Profile{UserID: "u1", Name: "Ann", Email: "ann@example.com", FCMToken: "tok"}, p)

	_, err = dir.Lookup(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCachedDirectory(t *testing.T) {
	ctx := context.Background()
	profile := &Profile{UserID: "u1", Email: "ann@example.com"}

	t.Run("Reads through once", func(t *testing.T) {
		next := new(MockDirectory)
		next.On("Lookup", mock.Anything, "u1").Return(profile, nil).Once()
		dir := NewCachedDirectory(next, newFakeCache(), time.Minute)

		for i := 0; i < 3; i++ {
			got, err := dir.Lookup(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, profile, got)
		}
		next.AssertNumberOfCalls(t, "Lookup", 1)
	})

	t.Run("Invalidate forces a reload", func(t *testing.T) {
		next := new(MockDirectory)
		next.On("Lookup", mock.Anything, "u1").Return(profile, nil).Twice()
		cache := newFakeCache()
		dir := NewCachedDirectory(next, cache, time.Minute)

		_, err := dir.Lookup(ctx, "u1")
		require.NoError(t, err)
		require.NoError(t, dir.Invalidate(ctx, "u1"))
		_, err = dir.Lookup(ctx, "u1")
		require.NoError(t, err)
		next.AssertExpectations(t)
	})

	t.Run("Redis outage falls back to the store", func(t *testing.T) {
		next := new(MockDirectory)
		next.On("Lookup", mock.Anything, "u1").Return(profile, nil)
		cache := newFakeCache()
		cache.err = errors.New("connection refused")
		dir := NewCachedDirectory(next, cache, time.Minute)

		got, err := dir.Lookup(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, profile, got)
		assert.Error(t, dir.Invalidate(ctx, "u1"))
	})

	t.Run("Lookup errors are not cached", func(t *testing.T) {
		next := new(MockDirectory)
		next.On("Lookup", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)
		cache := newFakeCache()
		dir := NewCachedDirectory(next, cache, time.Minute)

		_, err := dir.Lookup(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, cache.values)
	})
}
