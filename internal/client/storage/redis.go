package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSlots stores slots as plain string keys under a prefix. Keys carry
// no TTL; credential lifetime is decided by the backend.
type RedisSlots struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSlots creates a RedisSlots using the default "devtrack:slot:" prefix.
func NewRedisSlots(client redis.UniversalClient) *RedisSlots {
	return NewRedisSlotsWithPrefix(client, "devtrack:slot:")
}

// NewRedisSlotsWithPrefix creates a RedisSlots with a custom key prefix.
func NewRedisSlotsWithPrefix(client redis.UniversalClient, prefix string) *RedisSlots {
	return &RedisSlots{client: client, prefix: prefix}
}

// Get implements Slots.
func (s *RedisSlots) Get(ctx context.Context, slot string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+slot).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Put implements Slots. Values are written in a MULTI/EXEC block.
func (s *RedisSlots) Put(ctx context.Context, values map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range values {
			p.Set(ctx, s.prefix+k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Delete implements Slots.
func (s *RedisSlots) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.prefix + n
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
