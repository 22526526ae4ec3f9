package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, cfg), mr
}

func TestFailLocksOutAfterBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Fail(ctx, "alice", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
	}
	if err := l.Check(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("expected budget left, got %v", err)
	}
	if err := l.Fail(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on third failure, got %v", err)
	}
	if err := l.Check(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected username lockout regardless of IP, got %v", err)
	}
	if n, _ := l.Attempts(ctx, "alice"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	_ = l.Fail(ctx, "bob", "")
	if err := l.Check(ctx, "bob", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected lockout, got %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if err := l.Check(ctx, "bob", ""); err != nil {
		t.Fatalf("expected lockout lifted, got %v", err)
	}
}

func TestResetClearsCounters(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 2})
	ctx := context.Background()

	_ = l.Fail(ctx, "carol", "10.0.0.2")
	if err := l.Reset(ctx, "carol", "10.0.0.2"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.Attempts(ctx, "carol"); n != 0 {
		t.Fatalf("expected counter cleared, got %d", n)
	}
}

func TestRedisDownIsReported(t *testing.T) {
	l, mr := newTestLimiter(t, Config{})
	mr.Close()
	if err := l.Check(context.Background(), "dave", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
