package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/redact"
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AttemptFunc performs a single inference attempt.
type AttemptFunc func(ctx context.Context) (string, error)

// RetryPolicy bounds how often and how patiently an inference call is
// retried.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first attempt.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number after an overload status.
	BaseDelay time.Duration

	// NetworkDelay is the fixed wait after a network failure or timeout.
	NetworkDelay time.Duration

	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration

	// Sleep performs the waits between attempts; nil means Sleep.
	Sleep SleepFunc
}

// NewRetryPolicy builds the policy from the inference configuration.
func NewRetryPolicy(cfg config.InferenceConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      cfg.BackoffBase,
		NetworkDelay:   cfg.NetworkRetryDelay,
		AttemptTimeout: cfg.Timeout,
		Sleep:          Sleep,
	}
}

// Validate checks that the policy can make at least one attempt.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidConfig, p.MaxAttempts)
	}
	if p.BaseDelay < 0 || p.NetworkDelay < 0 || p.AttemptTimeout < 0 {
		return fmt.Errorf("%w: retry delays and timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// retryDelay classifies err and returns the wait before the next attempt,
// or ok=false when err is not worth retrying.
func (p RetryPolicy) retryDelay(err error, attempt int) (delay time.Duration, ok bool) {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		if !IsRetryableStatus(statusErr.StatusCode) {
			return 0, false
		}
		return p.BaseDelay * time.Duration(attempt), true
	case errors.Is(err, ErrInvalidResponse), errors.Is(err, ErrNonRetryable):
		return 0, false
	default:
		// Transport failures and attempt timeouts.
		return p.NetworkDelay, true
	}
}

// Do runs call until it succeeds, fails permanently, or the attempt budget
// is spent. No wait follows the final attempt. Cancelling ctx stops the loop
// during an attempt or a wait.
func (p RetryPolicy) Do(ctx context.Context, call AttemptFunc) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		log.DebugContext(ctx, "calling inference endpoint",
			"attempt", attempt,
			"max_attempts", p.MaxAttempts)

		text, err := p.attempt(ctx, call)
		if err == nil {
			return Result{Text: text, Attempts: attempt}, nil
		}

		// The caller gave up; the error is not the endpoint's fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Attempts: attempt}, fmt.Errorf("inference cancelled: %w", ctxErr)
		}

		lastErr = err
		delay, retryable := p.retryDelay(err, attempt)
		if !retryable {
			log.WarnContext(ctx, "permanent inference error, not retrying",
				"attempt", attempt,
				"error", redact.Error(err))
			if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrNonRetryable) {
				return Result{Attempts: attempt}, err
			}
			return Result{Attempts: attempt}, fmt.Errorf("%w: %w", ErrNonRetryable, err)
		}

		if attempt == p.MaxAttempts {
			break
		}

		log.InfoContext(ctx, "retrying inference after delay",
			"attempt", attempt,
			"delay", delay.String(),
			"error", redact.Error(err))

		if err := sleep(ctx, delay); err != nil {
			log.WarnContext(ctx, "inference cancelled during retry delay",
				"attempt", attempt)
			return Result{Attempts: attempt}, fmt.Errorf("inference cancelled: %w", err)
		}
	}

	log.WarnContext(ctx, "maximum inference attempts reached",
		"max_attempts", p.MaxAttempts,
		"error", redact.Error(lastErr))
	return Result{Attempts: p.MaxAttempts}, fmt.Errorf("%w: failed after %d attempts: %w",
		ErrRetriesExhausted, p.MaxAttempts, lastErr)
}

// attempt runs call under the per-attempt timeout.
func (p RetryPolicy) attempt(ctx context.Context, call AttemptFunc) (string, error) {
	if p.AttemptTimeout <= 0 {
		return call(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return call(attemptCtx)
}
