package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisPersister keeps the record in Redis, for clients that share a device-wide
// Redis (kiosks, set-top boxes) instead of a local disk.
//
//	key layout: <prefix>:<key>
type RedisPersister struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

// NewRedisPersister creates a persister under prefix:key. A ttl of 0 keeps the
// record until it is deleted.
func NewRedisPersister(client redis.UniversalClient, prefix, key string, ttl time.Duration) (*RedisPersister, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if key == "" {
		return nil, errors.New("session key empty")
	}
	if ttl < 0 {
		return nil, errors.New("negative session ttl")
	}
	if prefix == "" {
		prefix = "tvshows"
	}
	return &RedisPersister{
		redis: client,
		key:   prefix + ":" + key,
		ttl:   ttl,
	}, nil
}

// Key returns the Redis key holding the record.
func (r *RedisPersister) Key() string {
	return r.key
}

func (r *RedisPersister) Load(ctx context.Context) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

func (r *RedisPersister) Save(ctx context.Context, data []byte) error {
	if err := r.redis.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *RedisPersister) Delete(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
