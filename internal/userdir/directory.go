// Package userdir resolves the contact details notifications are delivered to.
package userdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/repository"
)

// Profile is the subset of a user needed to reach them.
type Profile struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	FCMToken string `json:"fcm_token,omitempty"`
}

type Directory interface {
	Lookup(ctx context.Context, userID string) (*Profile, error)
}

// StoreDirectory reads profiles from the user table.
type StoreDirectory struct {
	store repository.Store
}

func NewStoreDirectory(store repository.Store) *StoreDirectory {
	return &StoreDirectory{store: store}
}

func (d *StoreDirectory) Lookup(ctx context.Context, userID string) (*Profile, error) {
	var profile *Profile
	err := d.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		profile = fromUser(user)
		return nil
	})
	return profile, err
}

func fromUser(u *domain.User) *Profile {
	return &Profile{
		UserID:   u.ID,
		Name:     u.Name,
		Email:    u.Email,
		FCMToken: u.FCMToken,
	}
}

// Cache is the part of the redis client the cached directory uses.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedDirectory keeps profiles in redis for ttl. Redis failures fall back to
// the underlying directory.
type CachedDirectory struct {
	next  Directory
	cache Cache
	ttl   time.Duration
}

func NewCachedDirectory(next Directory, cache Cache, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, cache: cache, ttl: ttl}
}

func profileKey(userID string) string { return fmt.Sprintf("profile:%s", userID) }

func (d *CachedDirectory) Lookup(ctx context.Context, userID string) (*Profile, error) {
	key := profileKey(userID)
	b, err := d.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Profile
		if err := json.Unmarshal(b, &p); err == nil {
			return &p, nil
		}
		logger.Warn("Discarding unreadable cached profile", "user_id", userID)
	case !errors.Is(err, redis.Nil):
		logger.ExternalServiceResult("redis", "GET", err, "key", key)
	}

	profile, err := d.next.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	b, _ = json.Marshal(profile)
	if err := d.cache.Set(ctx, key, b, d.ttl).Err(); err != nil {
		logger.ExternalServiceResult("redis", "SET", err, "key", key)
	}
	return profile, nil
}

// Invalidate drops the cached profile so the next lookup reads the store.
func (d *CachedDirectory) Invalidate(ctx context.Context, userID string) error {
	if err := d.cache.Del(ctx, profileKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate profile %s: %w", userID, err)
	}
	return nil
}
