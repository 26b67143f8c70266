package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
)

// newTestExecutor returns an executor that records sleeps instead of
// performing them and uses zero jitter.
func newTestExecutor() (*Executor, *[]time.Duration) {
	var sleeps []time.Duration
	e := NewExecutor(nil)
	e.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	e.jitter = func(time.Duration) time.Duration { return 0 }
	return e, &sleeps
}

func flakyOp(failures int, calls *int) agents.Operation {
	return func(ctx context.Context, in agents.Input) (*agents.Result, error) {
		*calls++
		if *calls <= failures {
			return nil, errors.New("vendor timeout")
		}
		return &agents.Result{Success: true}, nil
	}
}

func TestWithRetry_RecoversWithinBudget(t *testing.T) {
	e, sleeps := newTestExecutor()
	cfg := Config{Retries: 2, Delay: time.Second, ExponentialBackoff: true, MaxDelay: 30 * time.Second}

	calls := 0
	res, err := e.WithRetry(context.Background(), cfg, flakyOp(2, &calls), agents.Input{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, calls, "two failures then success within a two-retry budget")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestWithRetry_ExhaustsBudget(t *testing.T) {
	e, _ := newTestExecutor()
	cfg := Config{Retries: 2, Delay: time.Millisecond, MaxDelay: time.Second}

	calls := 0
	_, err := e.WithRetry(context.Background(), cfg, flakyOp(10, &calls), agents.Input{})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Contains(t, err.Error(), "vendor timeout")
}

func TestWithRetry_DelaysNonDecreasing(t *testing.T) {
	e, sleeps := newTestExecutor()
	cfg := Config{Retries: 6, Delay: time.Second, ExponentialBackoff: true, MaxDelay: 8 * time.Second}

	calls := 0
	_, err := e.WithRetry(context.Background(), cfg, flakyOp(10, &calls), agents.Input{})
	require.Error(t, err)

	require.Len(t, *sleeps, 6)
	for i := 1; i < len(*sleeps); i++ {
		assert.GreaterOrEqual(t, (*sleeps)[i], (*sleeps)[i-1])
	}
	assert.Equal(t, 8*time.Second, (*sleeps)[len(*sleeps)-1], "delay is capped at MaxDelay")
}

func TestWithRetry_ConstantDelay(t *testing.T) {
	e, sleeps := newTestExecutor()
	cfg := Config{Retries: 3, Delay: time.Second, ExponentialBackoff: false, MaxDelay: 30 * time.Second}

	calls := 0
	_, err := e.WithRetry(context.Background(), cfg, flakyOp(10, &calls), agents.Input{})
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, *sleeps)
}

func TestWithRetry_NonRetryableShortCircuits(t *testing.T) {
	e, sleeps := newTestExecutor()
	cfg := Config{Retries: 5, Delay: time.Second, MaxDelay: time.Minute, RespectRetryable: true}

	calls := 0
	op := func(ctx context.Context, in agents.Input) (*agents.Result, error) {
		calls++
		return &agents.Result{Success: false, Retryable: agents.RetryableFlag(false)}, errors.New("profile is private")
	}

	_, err := e.WithRetry(context.Background(), cfg, op, agents.Input{})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable failures stop immediately")
	assert.Empty(t, *sleeps)
}

func TestWithRetry_UnsuccessfulWithoutError(t *testing.T) {
	e, _ := newTestExecutor()
	cfg := Config{Retries: 1, Delay: time.Millisecond, MaxDelay: time.Second}

	op := func(ctx context.Context, in agents.Input) (*agents.Result, error) {
		return &agents.Result{Success: false}, nil
	}
	_, err := e.WithRetry(context.Background(), cfg, op, agents.Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsuccessful result without error")
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	e := NewExecutor(nil)
	e.jitter = func(time.Duration) time.Duration { return 0 }
	cfg := Config{Retries: 3, Delay: time.Hour, MaxDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func(ctx context.Context, in agents.Input) (*agents.Result, error) {
		calls++
		cancel()
		return nil, errors.New("vendor timeout")
	}

	_, err := e.WithRetry(ctx, cfg, op, agents.Input{})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation aborts the wait between attempts")
}

func TestWithFallback_SecondProviderSucceeds(t *testing.T) {
	e, _ := newTestExecutor()
	cfg := Config{Retries: 1, Delay: time.Millisecond, MaxDelay: time.Second}

	failing := func(ctx context.Context, in agents.Input) (*agents.Result, error) {
		return nil, errors.New("provider down")
	}
	working := func(ctx context.Context, in agents.Input) (*agents.Result, error) {
		return &agents.Result{Success: true, Data: map[string]any{"source": "backup"}}, nil
	}

	res, err := e.WithFallback(context.Background(), cfg, agents.Input{}, failing, working)
	require.NoError(t, err)
	assert.Equal(t, "backup", res.Data["source"])
}

func TestWithFallback_AllFail(t *testing.T) {
	e, _ := newTestExecutor()
	cfg := Config{Retries: 1, Delay: time.Millisecond, MaxDelay: time.Second}

	failing := func(ctx context.Context, in agents.Input) (*agents.Result, error) {
		return nil, errors.New("provider down")
	}

	_, err := e.WithFallback(context.Background(), cfg, agents.Input{}, failing, failing)
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "provider 0")
	assert.Contains(t, err.Error(), "provider 1")
}

func TestWithFallback_NoOperations(t *testing.T) {
	e, _ := newTestExecutor()
	_, err := e.WithFallback(context.Background(), Config{}, agents.Input{})
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}
