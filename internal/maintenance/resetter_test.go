package maintenance_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/maintenance"
	"github.com/phrazzld/essaymark/internal/mocks"
	"github.com/phrazzld/essaymark/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedPurger serves n record IDs with page tokens holding the next offset.
func pagedPurger(n int) *mocks.MockRecordPurger {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec%03d", i)
	}
	return &mocks.MockRecordPurger{
		ListIDsFn: func(_ context.Context, pageToken string, pageSize int) ([]string, string, error) {
			offset := 0
			if pageToken != "" {
				offset, _ = strconv.Atoi(pageToken)
			}
			end := min(offset+pageSize, len(ids))
			next := ""
			if end < len(ids) {
				next = strconv.Itoa(end)
			}
			return ids[offset:end], next, nil
		},
	}
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newResetter(t *testing.T, purger *mocks.MockRecordPurger, sleeper *sleepRecorder) *maintenance.Resetter {
	t.Helper()
	r, err := maintenance.NewResetter(purger,
		config.ResetConfig{BatchSize: 100, BatchDelay: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return r.WithSleep(sleeper.Sleep)
}

func TestResetDeletesInBatches(t *testing.T) {
	t.Parallel()

	purger := pagedPurger(250)
	sleeper := &sleepRecorder{}

	summary, err := newResetter(t, purger, sleeper).Reset(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, purger.BatchSizes())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeper.delays)
	assert.Equal(t, maintenance.ResetSummary{Listed: 250, Deleted: 250, Batches: 3}, summary)
	assert.Equal(t, "rec000", purger.Deleted[0][0])
	assert.Equal(t, "rec249", purger.Deleted[2][49])
}

func TestResetListsAcrossPages(t *testing.T) {
	t.Parallel()

	purger := pagedPurger(1203)

	summary, err := newResetter(t, purger, &sleepRecorder{}).Reset(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1203, summary.Listed)
	assert.Equal(t, 13, summary.Batches)
	assert.Equal(t, 3, purger.BatchSizes()[12])
}

func TestResetEmptyTable(t *testing.T) {
	t.Parallel()

	purger := &mocks.MockRecordPurger{}

	summary, err := newResetter(t, purger, &sleepRecorder{}).Reset(context.Background())

	require.NoError(t, err)
	assert.Zero(t, summary.Listed)
	assert.Empty(t, purger.Deleted)
}

func TestResetContinuesAfterFailedBatch(t *testing.T) {
	t.Parallel()

	purger := pagedPurger(250)
	calls := 0
	purger.DeleteBatchFn = func(context.Context, []string) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("%w: code 1254291 write conflict", store.ErrDeleteFailed)
		}
		return nil
	}

	summary, err := newResetter(t, purger, &sleepRecorder{}).Reset(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 1, summary.FailedBatches)
	assert.Equal(t, 100, summary.Failed)
	assert.Equal(t, 150, summary.Deleted)
}

func TestResetListFailure(t *testing.T) {
	t.Parallel()

	purger := &mocks.MockRecordPurger{
		ListIDsFn: func(context.Context, string, int) ([]string, string, error) {
			return nil, "", fmt.Errorf("%w: forbidden", store.ErrQueryFailed)
		},
	}

	_, err := newResetter(t, purger, &sleepRecorder{}).Reset(context.Background())

	assert.ErrorIs(t, err, store.ErrQueryFailed)
	assert.Empty(t, purger.Deleted)
}

func TestResetStopsWhenPageTokenRepeats(t *testing.T) {
	t.Parallel()

	calls := 0
	purger := &mocks.MockRecordPurger{
		ListIDsFn: func(_ context.Context, pageToken string, _ int) ([]string, string, error) {
			calls++
			if calls > 10 {
				return nil, "", fmt.Errorf("listing did not stop")
			}
			return []string{"rec" + pageToken}, "page-2", nil
		},
	}

	_, err := newResetter(t, purger, &sleepRecorder{}).Reset(context.Background())

	assert.ErrorIs(t, err, maintenance.ErrStalledPagination)
	assert.Equal(t, 2, calls)
	assert.Empty(t, purger.Deleted)
}

func TestResetCancelledBetweenBatches(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	purger := pagedPurger(250)
	r, err := maintenance.NewResetter(purger, config.ResetConfig{BatchSize: 100, BatchDelay: time.Second}, nil)
	require.NoError(t, err)
	r = r.WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	summary, err := r.Reset(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, []int{100}, purger.BatchSizes())
}

func TestNewResetterValidation(t *testing.T) {
	t.Parallel()

	_, err := maintenance.NewResetter(nil, config.ResetConfig{}, nil)
	assert.ErrorIs(t, err, maintenance.ErrNilPurger)

	_, err = maintenance.NewResetter(&mocks.MockRecordPurger{}, config.ResetConfig{BatchSize: 101}, nil)
	assert.ErrorIs(t, err, maintenance.ErrInvalidConfig)

	_, err = maintenance.NewResetter(&mocks.MockRecordPurger{}, config.ResetConfig{BatchDelay: -time.Second}, nil)
	assert.ErrorIs(t, err, maintenance.ErrInvalidConfig)

	r, err := maintenance.NewResetter(&mocks.MockRecordPurger{}, config.ResetConfig{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, r)
}
