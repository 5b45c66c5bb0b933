package generation_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleepRecorder records requested waits without blocking.
type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

func testPolicy(rec *sleepRecorder) generation.RetryPolicy {
	return generation.RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      5 * time.Second,
		NetworkDelay:   3 * time.Second,
		AttemptTimeout: time.Second,
		Sleep:          rec.Sleep,
	}
}

// scripted returns the given errors in order, then succeeds with text.
func scripted(text string, errs ...error) (generation.AttemptFunc, *int) {
	calls := 0
	return func(ctx context.Context) (string, error) {
		calls++
		if calls <= len(errs) {
			return "", errs[calls-1]
		}
		return text, nil
	}, &calls
}

func TestRetryPolicyAlwaysOverloaded(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{}
	unavailable := &generation.StatusError{StatusCode: 503}
	call, calls := scripted("never", unavailable, unavailable, unavailable, unavailable)

	res, err := testPolicy(rec).Do(context.Background(), call)

	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrRetriesExhausted)
	assert.Equal(t, 3, *calls, "exactly MaxAttempts attempts")
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, rec.delays,
		"linear backoff and no wait after the final attempt")

	var statusErr *generation.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 503, statusErr.StatusCode)
}

func TestRetryPolicyRecoversFromTransientErrors(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{}
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	call, calls := scripted("评语", &generation.StatusError{StatusCode: 429}, netErr)

	res, err := testPolicy(rec).Do(context.Background(), call)

	require.NoError(t, err)
	assert.Equal(t, "评语", res.Text)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 3 * time.Second}, rec.delays)
}

func TestRetryPolicyNonRetryableStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{400, 401, 403, 404, 422} {
		rec := &sleepRecorder{}
		call, calls := scripted("never", &generation.StatusError{StatusCode: code})

		res, err := testPolicy(rec).Do(context.Background(), call)

		assert.ErrorIs(t, err, generation.ErrNonRetryable, "status %d", code)
		assert.NotErrorIs(t, err, generation.ErrRetriesExhausted)
		assert.Equal(t, 1, *calls)
		assert.Equal(t, 1, res.Attempts)
		assert.Empty(t, rec.delays)
	}
}

func TestRetryPolicyInvalidResponseIsNotRetried(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{}
	call, calls := scripted("never", generation.ErrInvalidResponse)

	_, err := testPolicy(rec).Do(context.Background(), call)

	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, rec.delays)
}

func TestRetryPolicyEmptyTextIsSuccess(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{}
	call, calls := scripted("")

	res, err := testPolicy(rec).Do(context.Background(), call)

	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, 1, *calls)
}

func TestRetryPolicyAttemptTimeoutConsumesBudget(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{}
	policy := testPolicy(rec)
	policy.AttemptTimeout = 10 * time.Millisecond

	calls := 0
	call := func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := policy.Do(context.Background(), call)

	assert.ErrorIs(t, err, generation.ErrRetriesExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, rec.delays)
}

func TestRetryPolicyCancelledDuringWait(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{err: context.Canceled}
	call, calls := scripted("never", &generation.StatusError{StatusCode: 500})

	_, err := testPolicy(rec).Do(context.Background(), call)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, generation.ErrRetriesExhausted)
	assert.Equal(t, 1, *calls)
}

func TestRetryPolicyCancelledContextStopsImmediately(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	rec := &sleepRecorder{}
	call := func(context.Context) (string, error) {
		cancel()
		return "", errors.New("connection reset")
	}

	_, err := testPolicy(rec).Do(ctx, call)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.delays)
}

func TestRetryPolicyValidate(t *testing.T) {
	t.Parallel()

	_, err := generation.RetryPolicy{MaxAttempts: 0}.Do(context.Background(),
		func(context.Context) (string, error) { return "", nil })
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	assert.ErrorIs(t, generation.RetryPolicy{MaxAttempts: 1, BaseDelay: -time.Second}.Validate(),
		generation.ErrInvalidConfig)
}

func TestNewRetryPolicyFromConfig(t *testing.T) {
	t.Parallel()

	policy := generation.NewRetryPolicy(config.InferenceConfig{
		MaxAttempts:       4,
		BackoffBase:       2 * time.Second,
		NetworkRetryDelay: time.Second,
		Timeout:           30 * time.Second,
	})

	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, 2*time.Second, policy.BaseDelay)
	assert.Equal(t, time.Second, policy.NetworkDelay)
	assert.Equal(t, 30*time.Second, policy.AttemptTimeout)
	assert.NotNil(t, policy.Sleep)
	assert.NoError(t, policy.Validate())
}

func TestSleepHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := generation.Sleep(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, generation.Sleep(context.Background(), time.Millisecond))
}

func TestStatusErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "inference endpoint returned status 503",
		(&generation.StatusError{StatusCode: 503}).Error())
	assert.True(t, generation.IsRetryableStatus(502))
	assert.False(t, generation.IsRetryableStatus(401))
}
