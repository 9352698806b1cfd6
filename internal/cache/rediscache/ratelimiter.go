package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter — общий лимитер запросов к товарному API. Счётчик в redis,
// чтобы лимит действовал на все конкурентные фетчи (и на несколько воркеров).
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow делает INCR по ключу и ставит TTL, если ключ создаётся впервые.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// AllowPerSecond — посекундный лимит: ключ строится по текущей секунде,
// TTL чуть больше окна, чтобы счётчик успел истечь.
func (rl *RateLimiter) AllowPerSecond(ctx context.Context, name string, perSec int64) (bool, int64, error) {
	key := fmt.Sprintf("rl:%s:%d", name, time.Now().Unix())
	return rl.Allow(ctx, key, perSec, 2*time.Second)
}
