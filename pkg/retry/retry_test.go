package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wdaterrors "github.com/G-Node/wdat2-sub001/errors"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	calls := 0
	sentinel := errors.New("down")
	err := Do(context.Background(), fastConfig(4), func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, wdaterrors.ErrMaxRetriesExceeded)
	assert.Equal(t, 4, calls)
}

func TestDo_OnRetry(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		attempts = append(attempts, attempt)
		assert.EqualError(t, err, "down")
		assert.LessOrEqual(t, wait, 5*time.Millisecond)
	}

	_ = Do(context.Background(), cfg, func() error { return errors.New("down") })
	assert.Equal(t, []int{1, 2}, attempts, "no callback after the last attempt")
}

func TestConfig_Backoff(t *testing.T) {
	cfg, err := Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 30 * time.Millisecond, Multiplier: 2}.normalize()
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.next(10*time.Millisecond))
	assert.Equal(t, 30*time.Millisecond, cfg.next(20*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, cfg.wait(10*time.Millisecond), "no jitter unless asked")

	cfg.AddJitter = true
	for range 20 {
		w := cfg.wait(20 * time.Millisecond)
		assert.GreaterOrEqual(t, w, 20*time.Millisecond)
		assert.Less(t, w, 25*time.Millisecond)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return NonRetryable(errors.New("bad credentials"))
	})
	require.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(5), func() error { return errors.New("fail") })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_InvalidConfig(t *testing.T) {
	err := Do(context.Background(), Config{InitialDelay: -1}, func() error { return nil })
	require.Error(t, err)

	err = Do(context.Background(), Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, func() error { return nil })
	require.Error(t, err)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("first")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 3, DefaultConfig().MaxAttempts)
	assert.Equal(t, 10, Quick().MaxAttempts)
}
