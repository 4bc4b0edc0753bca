package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ctrdhq/account-directory-server/package/redis"
)

// Rule is a named fixed window: at most Limit hits per Window for one key.
type Rule struct {
	Name   string
	Limit  int64
	Window time.Duration
}

type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter counts attempts per caller-supplied key (identifier, account id,
// or network origin). Implementations must be safe for concurrent use and,
// for multi-worker deployments, must share state across processes.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type RedisLimiter struct {
	cache redis.RedisService
	rule  Rule
}

func NewRedisLimiter(cache redis.RedisService, rule Rule) (*RedisLimiter, error) {
	if cache == nil {
		return nil, fmt.Errorf("redis service is required")
	}

	if rule.Limit <= 0 || rule.Window <= 0 {
		return nil, fmt.Errorf("rate limit rule %q must have positive limit and window", rule.Name)
	}

	return &RedisLimiter{cache: cache, rule: rule}, nil
}

func (l *RedisLimiter) key(key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.rule.Name, key)
}

// Allow increments the key's window counter server-side. INCR is atomic, so
// two workers racing on the same key cannot both observe the last free slot.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	counterKey := l.key(key)

	count, err := l.cache.Incr(ctx, counterKey)
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := l.cache.Expire(ctx, counterKey, l.rule.Window); err != nil {
			return Result{}, fmt.Errorf("failed to start rate limit window: %w", err)
		}
	}

	if count > l.rule.Limit {
		retryAfter, err := l.cache.TTL(ctx, counterKey)
		if err != nil || retryAfter < 0 {
			retryAfter = l.rule.Window
		}
		return Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	return Result{Allowed: true, Remaining: l.rule.Limit - count}, nil
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter keeps counters per process. Correct only for a single
// worker; deployments with more than one instance need the redis limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	rule    Rule
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryLimiter(rule Rule) (*MemoryLimiter, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return nil, fmt.Errorf("rate limit rule %q must have positive limit and window", rule.Name)
	}

	return &MemoryLimiter{
		rule:    rule,
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}, nil
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(l.rule.Window)}
		l.windows[key] = w
	}

	w.count++

	if w.count > l.rule.Limit {
		return Result{Allowed: false, Remaining: 0, RetryAfter: w.resetAt.Sub(now)}, nil
	}

	return Result{Allowed: true, Remaining: l.rule.Limit - w.count}, nil
}
