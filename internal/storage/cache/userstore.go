// Package cache decorates a UserStore with read-aside caching, so the hot
// send path does not hit the backing store for every notification.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ncalexan/autopush-rs/pkg/store"
)

// CacheClient is the subset of Redis commands the decorator needs.
type CacheClient interface {
	// Get fills dest, or returns an error when the key is absent.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedUserStore adds read-aside caching to any UserStore. Writes
// invalidate; only reads populate.
type CachedUserStore struct {
	realStore store.UserStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedUserStore(realStore store.UserStore, cache CacheClient, ttl time.Duration) *CachedUserStore {
	return &CachedUserStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

func (s *CachedUserStore) GetUser(ctx context.Context, uaid uuid.UUID) (*store.User, error) {
	key := s.cacheKey(uaid)

	var cached store.User
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	fresh, err := s.realStore.GetUser(ctx, uaid)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization, not a transaction: if the cache is down
	// we just keep serving from the backing store.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)
	return fresh, nil
}

func (s *CachedUserStore) RegisterUser(ctx context.Context, user *store.User) error {
	if err := s.realStore.RegisterUser(ctx, user); err != nil {
		return err
	}
	return s.invalidate(ctx, user.UAID)
}

// RemoveUser must clear the cache even though the record is gone from the
// backing store: a stale cached record would keep routing sends to a
// registration the relay already reported dead.
func (s *CachedUserStore) RemoveUser(ctx context.Context, uaid uuid.UUID) error {
	if err := s.realStore.RemoveUser(ctx, uaid); err != nil {
		return err
	}
	return s.invalidate(ctx, uaid)
}

func (s *CachedUserStore) invalidate(ctx context.Context, uaid uuid.UUID) error {
	return s.cache.Del(ctx, s.cacheKey(uaid))
}

func (s *CachedUserStore) cacheKey(uaid uuid.UUID) string {
	return fmt.Sprintf("autoendpoint:user:%s", uaid)
}
