package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realtime-backend/internal/cache"

	"github.com/rs/zerolog"
)

// CachedDirectory puts a cache in front of a UserDirectory's display names.
// Existence is never answered from the cache.
// Cache failures fall through to the wrapped directory.
type CachedDirectory struct {
	next  UserDirectory
	cache cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedDirectory(next UserDirectory, c cache.Cache, ttl time.Duration, log zerolog.Logger) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		cache: c,
		ttl:   ttl,
		log:   log.With().Str("component", "directory_cache").Logger(),
	}
}

var _ UserDirectory = (*CachedDirectory)(nil)

// Exists always asks the wrapped directory. A user found missing has its
// cached name evicted.
func (d *CachedDirectory) Exists(ctx context.Context, userID int) (bool, error) {
	ok, err := d.next.Exists(ctx, userID)
	if err != nil || ok {
		return ok, err
	}
	if _, err := d.cache.Del(ctx, nameKey(userID)); err != nil {
		d.log.Warn().Err(err).Int("user_id", userID).Msg("cache del failed")
	}
	return false, nil
}

func (d *CachedDirectory) DisplayName(ctx context.Context, userID int) (string, error) {
	key := nameKey(userID)
	name, err := d.cache.Get(ctx, key)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		d.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
	}

	name, err = d.next.DisplayName(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := d.cache.Set(ctx, key, name, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return name, nil
}

func nameKey(userID int) string {
	return fmt.Sprintf("user:%d:name", userID)
}
