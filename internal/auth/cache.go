package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "auth:token:"
	// revokedMarker occupies a revoked key so a lookup that raced the
	// revocation cannot cache it again.
	revokedMarker = "revoked"
)

// TokenCache memoises token key to user id lookups in Redis.
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenCache instantiates the cache helper. A nil client disables caching.
func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	return &TokenCache{client: client, ttl: ttl}
}

// Get returns the cached user id for key. Revoked keys report a miss.
func (c *TokenCache) Get(ctx context.Context, key string) (int64, bool, error) {
	if c == nil || c.client == nil {
		return 0, false, nil
	}
	raw, err := c.client.Get(ctx, tokenKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) || raw == revokedMarker {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Set stores the user id for key. An existing entry, including a revocation
// marker, is left in place.
func (c *TokenCache) Set(ctx context.Context, key string, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.SetNX(ctx, tokenKeyPrefix+key, strconv.FormatInt(userID, 10), c.ttl).Err()
}

// Revoke replaces any entry for key with the revocation marker for one TTL.
func (c *TokenCache) Revoke(ctx context.Context, key string) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	return c.client.Set(ctx, tokenKeyPrefix+key, revokedMarker, c.ttl).Err()
}

// Delete evicts key.
func (c *TokenCache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	return c.client.Del(ctx, tokenKeyPrefix+key).Err()
}
