package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg *Config
	assert.Equal(t, 3, cfg.GetMaxRetries())
	assert.Equal(t, 1*time.Second, cfg.GetBackoff().Next(0))

	custom := &Config{MaxRetries: 5, Backoff: NewConstantBackoff(3 * time.Second)}
	assert.Equal(t, 5, custom.GetMaxRetries())
	assert.Equal(t, 3*time.Second, custom.GetBackoff().Next(2))
}

func TestDoSucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), &Config{Backoff: NewConstantBackoff(time.Millisecond)}, func() error {
		calls++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), &Config{MaxRetries: 3, Backoff: NewConstantBackoff(time.Millisecond)}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	t.Parallel()

	terminal := errors.New("persistent")
	calls := 0
	err := Do(context.Background(), &Config{MaxRetries: 2, Backoff: NewConstantBackoff(time.Millisecond)}, func() error {
		calls++
		return terminal
	}, nil)

	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 3, calls)
}

func TestDoShouldRetryStopsEarly(t *testing.T) {
	t.Parallel()

	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), &Config{MaxRetries: 5, Backoff: NewConstantBackoff(time.Millisecond)}, func() error {
		calls++
		return fatal
	}, &Options{
		ShouldRetry: func(error) bool { return false },
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDoOnRetryCallback(t *testing.T) {
	t.Parallel()

	var attempts []int
	_ = Do(context.Background(), &Config{MaxRetries: 2, Backoff: NewConstantBackoff(time.Millisecond)}, func() error {
		return errors.New("transient")
	}, &Options{
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			attempts = append(attempts, attempt)
			assert.Error(t, err)
			assert.Equal(t, time.Millisecond, backoff)
		},
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, nil, func() error { return errors.New("never called") }, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, &Config{MaxRetries: 3, Backoff: NewConstantBackoff(10 * time.Second)}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
