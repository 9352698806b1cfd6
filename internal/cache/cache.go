package cache

import (
	"context"
	"time"
)

// BytesCache — минимальный байтовый кэш (best effort: недоступность кэша не
// должна ломать вызывающего).
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
