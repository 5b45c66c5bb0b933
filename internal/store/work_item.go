package store

import (
	"context"

	"github.com/phrazzld/essaymark/internal/domain"
)

// WorkItemStore selects pending work items and records their results.
// Implementations must filter by status on the server side.
type WorkItemStore interface {
	// ListPending returns at most limit items whose status is Pending.
	// An empty slice with a nil error means there is nothing to do.
	// Failures wrap ErrQueryFailed.
	ListPending(ctx context.Context, limit int) ([]*domain.WorkItem, error)

	// Complete writes resultText and the Done status in a single update.
	// Failures wrap ErrUpdateFailed.
	Complete(ctx context.Context, id string, resultText string) error
}

// AttachmentFetcher resolves attachment tokens to raw bytes.
type AttachmentFetcher interface {
	// Download returns the attachment content.
	// Failures wrap ErrDownloadFailed.
	Download(ctx context.Context, token string) ([]byte, error)
}

// RecordPurger lists and deletes records regardless of status. It backs the
// maintenance reset and is never used by the processing pipeline.
type RecordPurger interface {
	// ListIDs returns one page of record IDs and the token of the next page.
	// An empty next token means the listing is complete.
	ListIDs(ctx context.Context, pageToken string, pageSize int) (ids []string, next string, err error)

	// DeleteBatch deletes the given records in one call.
	// Failures wrap ErrDeleteFailed.
	DeleteBatch(ctx context.Context, ids []string) error
}
