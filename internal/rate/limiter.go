package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config sets the failure budget.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

// Limiter counts failed logins per username and per client IP.
type Limiter struct {
	redis redis.UniversalClient
	cfg   Config
}

// New returns a limiter over client. Zero fields fall back to five attempts
// per 15 minutes under the "tvshows-dev" prefix.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "tvshows-dev"
	}
	return &Limiter{redis: client, cfg: cfg}
}

// Check returns ErrRateLimited when either counter has spent its budget.
func (l *Limiter) Check(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.cfg.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// Fail records a failed attempt and returns ErrRateLimited when it exhausts
// the budget.
func (l *Limiter) Fail(ctx context.Context, username, ip string) error {
	var limited bool
	for _, key := range l.keys(username, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		if count >= int64(l.cfg.MaxAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears both counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, username, ip string) error {
	if err := l.redis.Del(ctx, l.keys(username, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failure count recorded for username in the current
// window.
func (l *Limiter) Attempts(ctx context.Context, username string) (int, error) {
	count, err := l.redis.Get(ctx, l.userKey(username)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

func (l *Limiter) keys(username, ip string) []string {
	keys := []string{l.userKey(username)}
	if ip != "" {
		keys = append(keys, l.cfg.Prefix+":login:ip:"+ip)
	}
	return keys
}

func (l *Limiter) userKey(username string) string {
	return l.cfg.Prefix + ":login:u:" + username
}
