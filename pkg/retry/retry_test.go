package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errPermanent = errors.New("permanent")

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := LatencyBoundConfig(3)
	cfg.InitialDelay = time.Millisecond

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	cfg := LatencyBoundConfig(5)
	cfg.InitialDelay = time.Millisecond
	cfg.Retryable = func(err error) bool { return !errors.Is(err, errPermanent) }

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errPermanent
	})

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestDo_SingleAttemptReturnsErrorUnwrapped(t *testing.T) {
	err := Do(context.Background(), LatencyBoundConfig(1), func() error { return errPermanent })
	assert.Equal(t, errPermanent, err)
}

func TestDoWithLog_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := DoWithLog(ctx, DefaultConfig(), "places", func() error { return nil }, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "places: retry aborted")
}

func TestDoWithLog_ReportsEachFailedAttempt(t *testing.T) {
	cfg := LatencyBoundConfig(3)
	cfg.InitialDelay = time.Millisecond

	var attempts []int
	err := DoWithLog(context.Background(), cfg, "places", func() error {
		return errors.New("boom")
	}, func(attempt int, err error, nextDelay time.Duration) {
		attempts = append(attempts, attempt)
	})

	assert.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
}
