package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsWithinAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, Constant(time.Millisecond), nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), 3, Constant(time.Millisecond), nil, func(ctx context.Context) error {
		calls++
		return boom
	})
	require.Equal(t, boom, err)
	require.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), 5, Constant(time.Millisecond), func(err error) bool {
		return !errors.Is(err, fatal)
	}, func(ctx context.Context) error {
		calls++
		return fatal
	})
	require.Equal(t, fatal, err)
	require.Equal(t, 1, calls)
}

func TestDo_ContextCancelBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 5, Constant(time.Hour), nil, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("temporary")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDo_ClampsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 0, Constant(time.Millisecond), nil, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestExponential(t *testing.T) {
	b := Exponential(time.Second)
	require.Equal(t, 2*time.Second, b(1))
	require.Equal(t, 4*time.Second, b(2))
	require.Equal(t, 8*time.Second, b(3))
}

func TestConstant(t *testing.T) {
	b := Constant(250 * time.Millisecond)
	require.Equal(t, 250*time.Millisecond, b(1))
	require.Equal(t, 250*time.Millisecond, b(7))
}
