package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/redact"
	"github.com/phrazzld/essaymark/internal/store"
)

// MaxBatchSize is the largest number of records removed per delete call.
const MaxBatchSize = 100

// listPageSize is the page size used while collecting record IDs.
const listPageSize = 500

var (
	// ErrInvalidConfig is returned by NewResetter for unusable settings.
	ErrInvalidConfig = errors.New("invalid reset configuration")

	// ErrNilPurger is returned by NewResetter when no purger is given.
	ErrNilPurger = errors.New("record purger cannot be nil")

	// ErrStalledPagination is returned when a backend hands back the page
	// token it was just given.
	ErrStalledPagination = errors.New("pagination did not advance")
)

// ResetSummary describes one reset.
type ResetSummary struct {
	Listed        int
	Deleted       int
	Failed        int
	Batches       int
	FailedBatches int
}

// Resetter deletes every record of the store in bounded batches. It is not
// status-aware: Pending and Done records are removed alike.
type Resetter struct {
	purger     store.RecordPurger
	batchSize  int
	batchDelay time.Duration
	sleep      generation.SleepFunc
	logger     *slog.Logger
}

// NewResetter creates a Resetter. A zero batch size selects MaxBatchSize.
func NewResetter(purger store.RecordPurger, cfg config.ResetConfig, logger *slog.Logger) (*Resetter, error) {
	if purger == nil {
		return nil, ErrNilPurger
	}

	size := cfg.BatchSize
	if size == 0 {
		size = MaxBatchSize
	}
	if size < 0 || size > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch size %d not in 1..%d", ErrInvalidConfig, size, MaxBatchSize)
	}
	if cfg.BatchDelay < 0 {
		return nil, fmt.Errorf("%w: negative batch delay", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Resetter{
		purger:     purger,
		batchSize:  size,
		batchDelay: cfg.BatchDelay,
		sleep:      generation.Sleep,
		logger:     logger,
	}, nil
}

// WithSleep returns a copy of r that waits between batches with sleep.
func (r *Resetter) WithSleep(sleep generation.SleepFunc) *Resetter {
	clone := *r
	clone.sleep = sleep
	return &clone
}

// Reset lists all record IDs and deletes them batch by batch. A failed
// batch is logged and counted and the remaining batches still run. Only a
// listing failure or cancellation returns an error.
func (r *Resetter) Reset(ctx context.Context) (ResetSummary, error) {
	ctx = logger.WithLogger(ctx, r.logger.With("component", "reset"))
	log := logger.FromContext(ctx)

	var summary ResetSummary

	ids, err := r.listAll(ctx)
	if err != nil {
		log.ErrorContext(ctx, "failed to list records", "error", redact.Error(err))
		return summary, fmt.Errorf("list records: %w", err)
	}
	summary.Listed = len(ids)

	if len(ids) == 0 {
		log.InfoContext(ctx, "table is already empty")
		return summary, nil
	}
	log.InfoContext(ctx, "deleting records",
		"count", len(ids),
		"batch_size", r.batchSize)

	for start := 0; start < len(ids); start += r.batchSize {
		if start > 0 && r.batchDelay > 0 {
			if err := r.sleep(ctx, r.batchDelay); err != nil {
				return summary, fmt.Errorf("reset interrupted: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("reset interrupted: %w", err)
		}

		end := min(start+r.batchSize, len(ids))
		batch := ids[start:end]
		summary.Batches++

		if err := r.purger.DeleteBatch(ctx, batch); err != nil {
			summary.FailedBatches++
			summary.Failed += len(batch)
			log.WarnContext(ctx, "failed to delete batch",
				"batch", summary.Batches,
				"size", len(batch),
				"error", redact.Error(err))
			continue
		}

		summary.Deleted += len(batch)
		log.InfoContext(ctx, "deleted batch",
			"batch", summary.Batches,
			"size", len(batch))
	}

	log.InfoContext(ctx, "reset finished",
		"deleted", summary.Deleted,
		"failed", summary.Failed)
	return summary, nil
}

// listAll collects every record ID before anything is deleted, so page
// tokens are never invalidated by the deletes.
func (r *Resetter) listAll(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	token := ""
	for {
		page, next, err := r.purger.ListIDs(ctx, token, listPageSize)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page...)
		if next == "" {
			return ids, nil
		}
		if next == token {
			return nil, fmt.Errorf("%w: page token %q repeated", ErrStalledPagination, next)
		}
		token = next
	}
}
