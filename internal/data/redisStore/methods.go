package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

//bitmap methods for the chunk progress tracker

func (s *Store) SetBit(ctx context.Context, key string, offset int64, value int) error {
	return s.client.SetBit(ctx, key, offset, value).Err()
}

func (s *Store) GetBit(ctx context.Context, key string, offset int64) (int64, error) {
	return s.client.GetBit(ctx, key, offset).Result()
}

// GetBitmap fetches the raw bitmap bytes in one round trip so callers can scan
// every bit locally. Redis stores bit 0 in the most significant position of
// byte 0.
func (s *Store) GetBitmap(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}
