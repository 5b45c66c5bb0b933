package task_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/domain"
	"github.com/phrazzld/essaymark/internal/mocks"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/prompt"
	"github.com/phrazzld/essaymark/internal/store"
	"github.com/phrazzld/essaymark/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorFunc func(ctx context.Context, item *domain.WorkItem) task.ItemResult

func (f processorFunc) Process(ctx context.Context, item *domain.WorkItem) task.ItemResult {
	return f(ctx, item)
}

func completeAll(_ context.Context, item *domain.WorkItem) task.ItemResult {
	return task.ItemResult{ItemID: item.ID, Stage: task.StageCompleted}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func selectorOf(items ...*domain.WorkItem) *mocks.MockWorkItemStore {
	return &mocks.MockWorkItemStore{
		ListPendingFn: func(context.Context, int) ([]*domain.WorkItem, error) {
			return items, nil
		},
	}
}

func TestRunSelectionFailureAbortsRun(t *testing.T) {
	t.Parallel()

	selector := &mocks.MockWorkItemStore{
		ListPendingFn: func(context.Context, int) ([]*domain.WorkItem, error) {
			return nil, fmt.Errorf("%w: code 91402 NOTEXIST", store.ErrQueryFailed)
		},
	}
	var processed atomic.Int32
	proc := processorFunc(func(ctx context.Context, item *domain.WorkItem) task.ItemResult {
		processed.Add(1)
		return completeAll(ctx, item)
	})
	r, err := task.NewRunner(selector, proc, task.RunnerConfig{Limit: 100}, discardLogger())
	require.NoError(t, err)

	summary, err := r.Run(context.Background())

	assert.ErrorIs(t, err, store.ErrQueryFailed)
	assert.Zero(t, summary.Selected)
	assert.Zero(t, processed.Load())
}

func TestRunEmptyBacklog(t *testing.T) {
	t.Parallel()

	selector := selectorOf()
	r, err := task.NewRunner(selector, processorFunc(completeAll), task.RunnerConfig{Limit: 50}, discardLogger())
	require.NoError(t, err)

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, summary.Selected)
	assert.Empty(t, summary.Results)
	assert.Equal(t, []int{50}, selector.ListLimits)
}

func TestRunSequentialPacing(t *testing.T) {
	t.Parallel()

	items := []*domain.WorkItem{pendingItem("a", "t1"), pendingItem("b"), pendingItem("c", "t3")}
	var order []string
	proc := processorFunc(func(_ context.Context, item *domain.WorkItem) task.ItemResult {
		order = append(order, item.ID)
		if !item.HasAttachments() {
			return task.ItemResult{ItemID: item.ID, Stage: task.StageSkipped, Err: task.ErrNoAttachments}
		}
		return task.ItemResult{ItemID: item.ID, Stage: task.StageCompleted}
	})
	sleeper := &sleepRecorder{}
	r, err := task.NewRunner(selectorOf(items...), proc,
		task.RunnerConfig{Limit: 100, Concurrency: 1, ItemDelay: 5 * time.Second},
		discardLogger(), task.WithSleep(sleeper.Sleep))
	require.NoError(t, err)

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeper.delays, "no wait before the first item")
	assert.Equal(t, 3, summary.Selected)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.NotStarted)
}

func TestRunBoundedConcurrency(t *testing.T) {
	t.Parallel()

	items := make([]*domain.WorkItem, 0, 8)
	for i := 0; i < 8; i++ {
		items = append(items, pendingItem(fmt.Sprintf("rec%d", i), "tok"))
	}

	var inFlight, peak atomic.Int32
	proc := processorFunc(func(ctx context.Context, item *domain.WorkItem) task.ItemResult {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return completeAll(ctx, item)
	})
	r, err := task.NewRunner(selectorOf(items...), proc,
		task.RunnerConfig{Limit: 100, Concurrency: 3},
		discardLogger())
	require.NoError(t, err)

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 8, summary.Completed)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	for i, res := range summary.Results {
		assert.Equal(t, fmt.Sprintf("rec%d", i), res.ItemID, "results keep selection order")
	}
}

func TestRunCancellationStopsDispatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := []*domain.WorkItem{pendingItem("a", "t"), pendingItem("b", "t"), pendingItem("c", "t")}
	var processed []string
	proc := processorFunc(func(ctx context.Context, item *domain.WorkItem) task.ItemResult {
		processed = append(processed, item.ID)
		return completeAll(ctx, item)
	})
	// The interrupt arrives during the first inter-item pause.
	sleep := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	r, err := task.NewRunner(selectorOf(items...), proc,
		task.RunnerConfig{Limit: 100, ItemDelay: time.Second},
		discardLogger(), task.WithSleep(sleep))
	require.NoError(t, err)

	summary, err := r.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, processed)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 2, summary.NotStarted)
}

func TestRunLogsCarryRunID(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	proc := processorFunc(func(ctx context.Context, item *domain.WorkItem) task.ItemResult {
		logger.FromContext(ctx).Info("inside processor")
		return completeAll(ctx, item)
	})
	r, err := task.NewRunner(selectorOf(pendingItem("a", "t")), proc, task.RunnerConfig{Limit: 1}, log,
		task.WithRunIDGenerator(func() string { return "run-fixed" }))
	require.NoError(t, err)

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "run-fixed", summary.RunID)
	entries, err := buf.Entries()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		assert.Equal(t, "run-fixed", entry["run_id"], "entry %v", entry["msg"])
	}
}

// memoryStore is a stateful store used to observe behavior across runs.
type memoryStore struct {
	mu        sync.Mutex
	items     map[string]*domain.WorkItem
	failWrite bool
}

func (s *memoryStore) ListPending(_ context.Context, limit int) ([]*domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.WorkItem, 0)
	for _, item := range s.items {
		if item.Status == domain.ItemStatusPending && len(out) < limit {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) Complete(_ context.Context, id string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return fmt.Errorf("%w: store unavailable", store.ErrUpdateFailed)
	}
	return s.items[id].Complete(text)
}

func TestRunWriteBackFailureIsRetriedNextRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	mem := &memoryStore{
		items:     map[string]*domain.WorkItem{"rec1": pendingItem("rec1", "tok-a")},
		failWrite: true,
	}
	deps := task.ProcessorDeps{
		Fetcher: f.fetcher, Normalizer: f.normalizer, Inferencer: f.inferencer,
		Sanitizer: f.sanitizer, Instruction: prompt.Default(), Writer: mem,
	}
	proc, err := task.NewProcessor(deps, false, discardLogger())
	require.NoError(t, err)
	r, err := task.NewRunner(mem, proc, task.RunnerConfig{Limit: 100}, discardLogger())
	require.NoError(t, err)

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Skipped)
	assert.Equal(t, domain.ItemStatusPending, mem.items["rec1"].Status)

	mem.failWrite = false
	second, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Selected, "item is selected again")
	assert.Equal(t, 1, second.Completed)
	assert.Equal(t, 2, f.inferencer.Calls(), "inference is repeated after a failed write")

	third, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, third.Selected, "a done item is never selected again")
	assert.Equal(t, 2, f.inferencer.Calls())
	assert.Equal(t, domain.ItemStatusDone, mem.items["rec1"].Status)
}

func TestNewRunnerValidation(t *testing.T) {
	t.Parallel()

	_, err := task.NewRunner(nil, processorFunc(completeAll), task.RunnerConfig{}, discardLogger())
	assert.ErrorIs(t, err, task.ErrNilSelector)

	_, err = task.NewRunner(selectorOf(), nil, task.RunnerConfig{}, discardLogger())
	assert.ErrorIs(t, err, task.ErrNilProcessor)

	_, err = task.NewRunner(selectorOf(), processorFunc(completeAll), task.RunnerConfig{}, nil)
	assert.ErrorIs(t, err, task.ErrNilLogger)
}

func TestNewRunnerConfig(t *testing.T) {
	t.Parallel()

	cfg := task.NewRunnerConfig(
		config.StoreConfig{PageSize: 100},
		config.RunConfig{ItemDelay: 5 * time.Second, Concurrency: 2},
	)

	assert.Equal(t, task.RunnerConfig{Limit: 100, Concurrency: 2, ItemDelay: 5 * time.Second}, cfg)
}
