package lark

import (
	"context"
	"fmt"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/domain"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/redact"
	"github.com/phrazzld/essaymark/internal/store"
)

// maxPageSize is the largest page the bitable list endpoint returns.
const maxPageSize = 500

// Store implements store.WorkItemStore, store.AttachmentFetcher and
// store.RecordPurger on one bitable table.
type Store struct {
	api    RecordAPI
	fields config.StoreConfig
}

// Compile-time interface checks.
var (
	_ store.WorkItemStore     = (*Store)(nil)
	_ store.AttachmentFetcher = (*Store)(nil)
	_ store.RecordPurger      = (*Store)(nil)
)

// NewStore creates a Store mapping work item fields onto bitable columns.
func NewStore(api RecordAPI, fields config.StoreConfig) *Store {
	return &Store{api: api, fields: fields}
}

// PendingFilter returns the server-side filter formula selecting pending rows.
func (s *Store) PendingFilter() string {
	return fmt.Sprintf(`CurrentValue.[%s] = "%s"`, s.fields.StatusField, s.fields.PendingValue)
}

// ListPending implements store.WorkItemStore. Only the first page is read;
// items left over are picked up by the next run.
func (s *Store) ListPending(ctx context.Context, limit int) ([]*domain.WorkItem, error) {
	log := logger.FromContext(ctx)

	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	page, err := s.api.ListRecords(ctx, s.PendingFilter(), "", limit)
	if err != nil {
		log.Error("failed to list pending records", "error", redact.Error(err))
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	items := make([]*domain.WorkItem, 0, len(page.Records))
	for _, rec := range page.Records {
		if len(items) == limit {
			break
		}

		if status := textFromField(rec.Fields[s.fields.StatusField]); status != s.fields.PendingValue {
			log.Warn("skipping record not in pending state",
				"item_id", rec.ID,
				"status", status)
			continue
		}

		item, err := s.toWorkItem(rec)
		if err != nil {
			log.Warn("dropping malformed record",
				"item_id", rec.ID,
				"reason", redact.Error(fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)))
			continue
		}
		items = append(items, item)
	}

	log.Debug("selected pending work items",
		"count", len(items),
		"has_more", page.HasMore)
	return items, nil
}

func (s *Store) toWorkItem(rec Record) (*domain.WorkItem, error) {
	attachments, err := attachmentsFromField(rec.Fields[s.fields.AttachmentField])
	if err != nil {
		return nil, err
	}

	item := &domain.WorkItem{
		ID:          rec.ID,
		Attachments: attachments,
		Status:      domain.ItemStatusPending,
	}
	if s.fields.LabelField != "" {
		item.Label = textFromField(rec.Fields[s.fields.LabelField])
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Complete implements store.WorkItemStore. The result and the done status
// are written in one record update.
func (s *Store) Complete(ctx context.Context, id string, resultText string) error {
	fields := map[string]any{
		s.fields.ResultField: resultText,
		s.fields.StatusField: s.fields.DoneValue,
	}

	if err := s.api.UpdateRecord(ctx, id, fields); err != nil {
		logger.FromContext(ctx).Error("failed to update record",
			"item_id", id,
			"error", redact.Error(err))
		return store.NewStoreError("work_item", "complete", id, fmt.Errorf("%w: %w", store.ErrUpdateFailed, err))
	}
	return nil
}

// Download implements store.AttachmentFetcher.
func (s *Store) Download(ctx context.Context, token string) ([]byte, error) {
	data, err := s.api.DownloadMedia(ctx, token)
	if err != nil {
		return nil, store.NewStoreError("attachment", "download", token, fmt.Errorf("%w: %w", store.ErrDownloadFailed, err))
	}
	if len(data) == 0 {
		return nil, store.NewStoreError("attachment", "download", token, fmt.Errorf("%w: empty attachment", store.ErrDownloadFailed))
	}
	return data, nil
}

// ListIDs implements store.RecordPurger.
func (s *Store) ListIDs(ctx context.Context, pageToken string, pageSize int) ([]string, string, error) {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	page, err := s.api.ListRecords(ctx, "", pageToken, pageSize)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	ids := make([]string, 0, len(page.Records))
	for _, rec := range page.Records {
		ids = append(ids, rec.ID)
	}

	next := ""
	if page.HasMore {
		next = page.PageToken
	}
	return ids, next, nil
}

// DeleteBatch implements store.RecordPurger.
func (s *Store) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.api.DeleteRecords(ctx, ids); err != nil {
		return fmt.Errorf("%w: %d records: %w", store.ErrDeleteFailed, len(ids), err)
	}
	return nil
}
