package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient interface {
	GetFromCache(ctx context.Context, key string) (string, error)
	SetToCache(ctx context.Context, key string, value string, expiration time.Duration) error
	DeleteFromCache(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

type redisClient struct {
	client *redis.Client
}

func NewRedisClient(addr, password string) (RedisClient, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisClient{client: client}, nil
}

func (r *redisClient) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *redisClient) Ping(ctx context.Context) error {
	if r.client == nil {
		return errors.New("Redis client is not initialized")
	}
	return r.client.Ping(ctx).Err()
}

// GetFromCache returns redis.Nil unchanged when the key is absent.
func (r *redisClient) GetFromCache(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", errors.New("Redis client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", redis.Nil
	} else if err != nil {
		return "", fmt.Errorf("failed to get value from Redis: %w", err)
	}

	return val, nil
}

func (r *redisClient) SetToCache(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.client == nil {
		return errors.New("Redis client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *redisClient) DeleteFromCache(ctx context.Context, key string) error {
	if r.client == nil {
		return errors.New("Redis client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete value from Redis: %w", err)
	}
	return nil
}

// RedisRevocationStore keeps revoked token ids as expiring Redis keys.
type RedisRevocationStore struct {
	cache RedisClient
	now   func() time.Time
}

func NewRedisRevocationStore(cache RedisClient) *RedisRevocationStore {
	return &RedisRevocationStore{cache: cache, now: time.Now}
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.SetToCache(ctx, revokedKey(tokenID), "1", ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := s.cache.GetFromCache(ctx, revokedKey(tokenID))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return true, nil
}
