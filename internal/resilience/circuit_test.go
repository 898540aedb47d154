package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(context.Context) error { return errors.New("provider down") }
func passing(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "lookup", FailureThreshold: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, b.Do(ctx, failing))
	}
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 2})
	ctx := context.Background()

	_ = b.Do(ctx, failing)
	require.NoError(t, b.Do(ctx, passing))
	_ = b.Do(ctx, failing)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Second})
	b.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Do(ctx, failing)
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// Failed probe reopens.
	_ = b.Do(ctx, failing)
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(11 * time.Second)
	require.NoError(t, b.Do(ctx, passing))
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_CountsFilter(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{
		FailureThreshold: 1,
		Counts:           IsTransient,
	})
	_ = b.Do(context.Background(), failing)
	assert.Equal(t, BreakerClosed, b.State(), "permanent errors do not trip")

	_ = b.Do(context.Background(), func(context.Context) error {
		return NewTransientError(errors.New("503"), 503)
	})
	assert.Equal(t, BreakerOpen, b.State())

	b.Reset()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestCall_ReturnsValue(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{})
	v, err := Call(context.Background(), b, func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestBreakerState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}

func TestBreakerFromConfig(t *testing.T) {
	t.Parallel()

	cfg := BreakerFromConfig("lookup", 4, 15)
	assert.Equal(t, "lookup", cfg.Name)
	assert.Equal(t, 4, cfg.FailureThreshold)
	assert.Equal(t, 15*time.Second, cfg.Cooldown)
}
