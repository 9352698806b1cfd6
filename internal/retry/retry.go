package retry

import (
	"context"
	"time"
)

// Backoff возвращает паузу перед попыткой attempt (нумерация с 1).
type Backoff func(attempt int) time.Duration

// Exponential — 2^attempt базовых интервалов (1s -> 2s, 4s, 8s ...).
func Exponential(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := base
		for i := 0; i < attempt; i++ {
			d *= 2
		}
		return d
	}
}

// Constant — фиксированная пауза между попытками.
func Constant(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Do выполняет op до maxAttempts раз. Повторяем только если retryable(err)
// вернул true; пауза между попытками задаётся backoff. Возвращается ошибка
// последней попытки.
func Do(ctx context.Context, maxAttempts int, backoff Backoff, retryable func(error) bool, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return lastErr
}
