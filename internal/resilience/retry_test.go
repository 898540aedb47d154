package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("503"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return errors.New("404 not found")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	var retried []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("busy"), 429)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := fastPolicy(10)
	p.InitialBackoff = time.Hour
	p.MaxBackoff = time.Hour
	p.OnRetry = func(int, error) { cancel() }

	err := Retry(ctx, p, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("503"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryVal_CustomRetryable(t *testing.T) {
	t.Parallel()

	p := fastPolicy(3)
	p.Retryable = func(err error) bool { return err.Error() == "again" }

	calls := 0
	v, err := RetryVal(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("again")
		}
		return "<html></html>", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", v)
	assert.Equal(t, 2, calls)
}

func TestBackoff_CapsAtMax(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, backoff(0, p))
	assert.Equal(t, 2*time.Second, backoff(1, p))
	assert.Equal(t, 4*time.Second, backoff(2, p))
	assert.Equal(t, 4*time.Second, backoff(6, p))
}

func TestPolicyFromConfig(t *testing.T) {
	t.Parallel()

	p := PolicyFromConfig(5, 100, 2000)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, 2*time.Second, p.MaxBackoff)

	d := PolicyFromConfig(0, 0, 0)
	assert.Equal(t, DefaultRetryPolicy().MaxAttempts, d.MaxAttempts)
}
