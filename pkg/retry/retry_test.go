package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"moodlescraper/pkg/config"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, test := range tests {
		if delay := backoff.NextDelay(test.attempt); delay != test.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", test.attempt, delay, test.expected)
		}
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	}, fastConfig(5))

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.Transfer("https://portal/f.pdf", 503, nil)
	}, cfg)

	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeTransfer))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried, "no wait after the last attempt")
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.Transfer("https://portal/f.pdf", 404, nil)
	}, fastConfig(5))

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(0)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, func(ctx context.Context) error {
			attempts++
			return errors.New("timeout")
		}, cfg)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	assert.Equal(t, 1, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.True(t, DefaultRetryIf(errors.New("eof")))
	assert.True(t, DefaultRetryIf(errs.Transfer("u", 429, nil)))
	assert.False(t, DefaultRetryIf(errs.Transfer("u", 403, nil)))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeNetwork, "dial")))
	assert.False(t, DefaultRetryIf(errs.Structural("layout changed")))
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return "A.pdf", nil
	}, fastConfig(3))

	assert.NoError(t, err)
	assert.Equal(t, "A.pdf", got)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RetryConfig{
		MaxAttempts:       4,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 3,
	}, nil)

	assert.Equal(t, 4, cfg.MaxAttempts)
	eb, ok := cfg.Backoff.(*ExponentialBackoff)
	if assert.True(t, ok) {
		assert.Equal(t, 10*time.Second, eb.MaxDelay)
		assert.Equal(t, 3.0, eb.Multiplier)
	}
}
