// Package retry wraps vendor operations with exponential backoff and
// provider fallback chains. It knows nothing about vendor identity; agents
// compose these helpers around their specific calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
)

// ErrAllProvidersFailed is returned by WithFallback when every operation in
// the chain failed.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Config controls retry behavior.
type Config struct {
	// Retries is the maximum number of retry attempts after the first call.
	Retries int
	// Delay is the base inter-attempt delay.
	Delay time.Duration
	// ExponentialBackoff doubles the delay per attempt when true; otherwise
	// the delay stays constant.
	ExponentialBackoff bool
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
	// RespectRetryable stops immediately when the operation reports a
	// non-retryable failure.
	RespectRetryable bool
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		Retries:            3,
		Delay:              time.Second,
		ExponentialBackoff: true,
		MaxDelay:           30 * time.Second,
		RespectRetryable:   true,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Retries == 0 {
		c.Retries = defaults.Retries
	}
	if c.Delay == 0 {
		c.Delay = defaults.Delay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = defaults.MaxDelay
	}
}

// Executor runs operations with retry and fallback policies.
type Executor struct {
	logger *zap.Logger
	// sleep waits for the given duration or until ctx is done. Replaced in
	// tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
	// jitter returns a random addition in [0, d). Replaced in tests for
	// determinism.
	jitter func(d time.Duration) time.Duration
}

// NewExecutor creates an executor. If logger is nil, uses a no-op logger.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		logger: logger.Named("retry"),
		sleep:  sleepCtx,
		jitter: randJitter,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("operation canceled: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}

func randJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}

// delayFor computes the delay before retry number attempt (0-based), using
// capped exponential backoff plus up to 10% jitter. The pre-jitter delay is
// monotonically non-decreasing across attempts.
func (e *Executor) delayFor(cfg Config, attempt int) time.Duration {
	delay := cfg.Delay
	if cfg.ExponentialBackoff {
		for i := 0; i < attempt; i++ {
			delay *= 2
			if delay >= cfg.MaxDelay {
				delay = cfg.MaxDelay
				break
			}
		}
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay + e.jitter(delay/10)
}

// WithRetry invokes op, retrying failures up to cfg.Retries times. A failure
// whose result reports retryable=false returns immediately when
// RespectRetryable is set. Context cancellation aborts the wait between
// attempts.
func (e *Executor) WithRetry(ctx context.Context, cfg Config, op agents.Operation, in agents.Input) (*agents.Result, error) {
	cfg.ApplyDefaults()

	var lastErr error
	var lastRes *agents.Result
	start := time.Now()

	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		res, err := op(ctx, in)
		if err == nil && res != nil && res.Success {
			if attempt > 0 {
				e.logger.Info("operation recovered after retries",
					zap.Int("attempts", attempt+1),
					zap.Duration("total_time", time.Since(start)),
				)
			}
			return res, nil
		}
		if err == nil {
			err = errors.New("operation returned unsuccessful result without error")
		}
		lastErr = err
		lastRes = res

		if cfg.RespectRetryable && res != nil && res.Retryable != nil && !*res.Retryable {
			e.logger.Debug("failure is not retryable", zap.Error(err))
			return res, err
		}
		if attempt == cfg.Retries {
			break
		}

		delay := e.delayFor(cfg, attempt)
		e.logger.Debug("retrying after failure",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", cfg.Retries+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return lastRes, err
		}
	}

	e.logger.Warn("operation failed after all retries",
		zap.Int("total_attempts", cfg.Retries+1),
		zap.Duration("total_time", time.Since(start)),
		zap.Error(lastErr),
	)
	return lastRes, fmt.Errorf("operation failed after %d retries: %w", cfg.Retries, lastErr)
}

// WithFallback tries each operation in order, each wrapped in WithRetry,
// returning the first success. If every provider fails the errors are
// aggregated under ErrAllProvidersFailed.
func (e *Executor) WithFallback(ctx context.Context, cfg Config, in agents.Input, ops ...agents.Operation) (*agents.Result, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no operations given", ErrAllProvidersFailed)
	}

	errs := make([]error, 0, len(ops))
	for i, op := range ops {
		res, err := e.WithRetry(ctx, cfg, op, in)
		if err == nil {
			if i > 0 {
				e.logger.Info("fallback provider succeeded", zap.Int("provider_index", i))
			}
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation canceled: %w", ctx.Err())
		}
		errs = append(errs, fmt.Errorf("provider %d: %w", i, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}
