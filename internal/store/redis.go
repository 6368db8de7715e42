package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 90 * time.Second

// RedisStore handles Redis operations for presence tracking and rate
// limiting. Redis is optional; callers must tolerate a nil *RedisStore.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// presenceKey returns the key marking a user as online.
func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// rateLimitKey returns the key for a client's request counter window.
func rateLimitKey(clientID string) string {
	return fmt.Sprintf("ratelimit:%s", clientID)
}

// SetOnline marks a user as online. The key expires unless refreshed.
func (s *RedisStore) SetOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, presenceKey(userID), time.Now().UnixMilli(), presenceTTL).Err()
}

// RefreshOnline extends a user's presence window.
func (s *RedisStore) RefreshOnline(ctx context.Context, userID string) error {
	return s.client.Expire(ctx, presenceKey(userID), presenceTTL).Err()
}

// SetOffline removes a user's presence mark.
func (s *RedisStore) SetOffline(ctx context.Context, userID string) error {
	return s.client.Del(ctx, presenceKey(userID)).Err()
}

// IsOnline reports whether a user currently has a live connection.
func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, presenceKey(userID)).Result()
	return n > 0, err
}

// IncrRequestCount bumps the caller's fixed-window request counter and
// returns the new count. The window TTL is set only when the counter is
// created.
func (s *RedisStore) IncrRequestCount(ctx context.Context, clientID string, window time.Duration) (int64, error) {
	key := rateLimitKey(clientID)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}
	return count, nil
}
