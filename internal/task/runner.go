package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/domain"
	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/redact"
)

// PendingSelector returns the pending work items of one run.
type PendingSelector interface {
	ListPending(ctx context.Context, limit int) ([]*domain.WorkItem, error)
}

// ItemProcessor processes a single work item.
type ItemProcessor interface {
	Process(ctx context.Context, item *domain.WorkItem) ItemResult
}

// RunnerConfig holds configuration for the batch runner
type RunnerConfig struct {
	// Limit bounds the number of items selected per run.
	Limit int

	// Concurrency is the number of items processed at once. Values below 2
	// process items one at a time.
	Concurrency int

	// ItemDelay is the pause between starting consecutive items.
	ItemDelay time.Duration
}

// NewRunnerConfig derives the runner settings from the loaded configuration.
func NewRunnerConfig(storeCfg config.StoreConfig, runCfg config.RunConfig) RunnerConfig {
	return RunnerConfig{
		Limit:       storeCfg.PageSize,
		Concurrency: runCfg.Concurrency,
		ItemDelay:   runCfg.ItemDelay,
	}
}

// RunSummary describes one batch run.
type RunSummary struct {
	RunID     string
	Selected  int
	Completed int
	Skipped   int

	// NotStarted counts selected items left untouched by cancellation.
	NotStarted int

	Duration time.Duration
	Results  []ItemResult
}

// RunnerOption configures optional Runner behavior.
type RunnerOption func(*Runner)

// WithSleep replaces the function used for the inter-item delay.
func WithSleep(sleep generation.SleepFunc) RunnerOption {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// WithRunIDGenerator replaces the run ID source.
func WithRunIDGenerator(newID func() string) RunnerOption {
	return func(r *Runner) {
		r.newRunID = newID
	}
}

// Runner selects one page of pending items and processes them.
type Runner struct {
	selector  PendingSelector
	processor ItemProcessor
	config    RunnerConfig
	logger    *slog.Logger
	sleep     generation.SleepFunc
	newRunID  func() string
}

// NewRunner creates a new Runner
func NewRunner(
	selector PendingSelector,
	processor ItemProcessor,
	config RunnerConfig,
	logger *slog.Logger,
	opts ...RunnerOption,
) (*Runner, error) {
	if selector == nil {
		return nil, ErrNilSelector
	}
	if processor == nil {
		return nil, ErrNilProcessor
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	r := &Runner{
		selector:  selector,
		processor: processor,
		config:    config,
		logger:    logger,
		sleep:     generation.Sleep,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run processes the current backlog once. A selection failure aborts the
// run with an error; item failures are reported in the summary only.
// Cancelling ctx stops dispatching new items and returns the context error.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{RunID: r.newRunID()}
	start := time.Now()

	ctx = logger.WithRunID(logger.WithLogger(ctx, r.logger), summary.RunID)
	log := logger.FromContext(ctx)

	log.InfoContext(ctx, "starting run",
		"limit", r.config.Limit,
		"concurrency", r.config.Concurrency)

	items, err := r.selector.ListPending(ctx, r.config.Limit)
	if err != nil {
		log.ErrorContext(ctx, "failed to select pending work items", "error", redact.Error(err))
		return summary, fmt.Errorf("select pending work items: %w", err)
	}

	summary.Selected = len(items)
	if len(items) == 0 {
		log.InfoContext(ctx, "no pending work items")
		return summary, nil
	}
	log.InfoContext(ctx, "selected pending work items", "count", len(items))

	if r.config.Concurrency > 1 {
		summary.Results = r.processConcurrently(ctx, items)
	} else {
		summary.Results = r.processSequentially(ctx, items)
	}

	for _, res := range summary.Results {
		if res.Completed() {
			summary.Completed++
		} else {
			summary.Skipped++
		}
	}
	summary.NotStarted = summary.Selected - len(summary.Results)
	summary.Duration = time.Since(start)

	log.InfoContext(ctx, "run finished",
		"selected", summary.Selected,
		"completed", summary.Completed,
		"skipped", summary.Skipped,
		"not_started", summary.NotStarted,
		"duration_ms", summary.Duration.Milliseconds())

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run interrupted: %w", err)
	}
	return summary, nil
}

// pace waits before every item but the first. It reports false when the
// run has been cancelled.
func (r *Runner) pace(ctx context.Context, index int) bool {
	if index > 0 && r.config.ItemDelay > 0 {
		if err := r.sleep(ctx, r.config.ItemDelay); err != nil {
			return false
		}
	}
	return ctx.Err() == nil
}

func (r *Runner) processSequentially(ctx context.Context, items []*domain.WorkItem) []ItemResult {
	results := make([]ItemResult, 0, len(items))
	for i, item := range items {
		if !r.pace(ctx, i) {
			break
		}
		results = append(results, r.processor.Process(ctx, item))
	}
	return results
}

// processConcurrently keeps at most Concurrency items in flight. Items are
// started in selection order, ItemDelay apart.
func (r *Runner) processConcurrently(ctx context.Context, items []*domain.WorkItem) []ItemResult {
	results := make([]ItemResult, len(items))
	started := 0

	var g errgroup.Group
	g.SetLimit(r.config.Concurrency)
	for i, item := range items {
		if !r.pace(ctx, i) {
			break
		}
		started++
		g.Go(func() error {
			results[i] = r.processor.Process(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results[:started]
}
