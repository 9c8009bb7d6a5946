package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVStore persists engine blobs as plain Redis strings under "quiz:kv:{key}".
// Writes are last-writer-wins; the engine assumes a single writer per key.
type KVStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewKVStore builds a store; ttl <= 0 keeps keys forever.
func NewKVStore(client *redis.Client, ttl time.Duration) *KVStore {
	return &KVStore{client: client, ttl: ttl}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *KVStore) key(key string) string {
	return "quiz:kv:" + key
}
