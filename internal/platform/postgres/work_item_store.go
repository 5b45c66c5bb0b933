package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/essaymark/internal/domain"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/redact"
	"github.com/phrazzld/essaymark/internal/store"
)

// WorkItemStore implements store.WorkItemStore, store.AttachmentFetcher and
// store.RecordPurger on PostgreSQL.
type WorkItemStore struct {
	db store.DBTX
}

// NewWorkItemStore creates a new WorkItemStore.
func NewWorkItemStore(db store.DBTX) *WorkItemStore {
	return &WorkItemStore{db: db}
}

// Compile-time interface checks.
var (
	_ store.WorkItemStore     = (*WorkItemStore)(nil)
	_ store.AttachmentFetcher = (*WorkItemStore)(nil)
	_ store.RecordPurger      = (*WorkItemStore)(nil)
)

const listPendingQuery = `
	SELECT w.id, w.label, w.status, a.token, a.name
	FROM (
		SELECT id, label, status, created_at
		FROM work_items
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	) w
	LEFT JOIN work_item_attachments a ON a.work_item_id = w.id
	ORDER BY w.created_at ASC, w.id ASC, a.position ASC
`

// ListPending implements store.WorkItemStore.
func (s *WorkItemStore) ListPending(ctx context.Context, limit int) ([]*domain.WorkItem, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, listPendingQuery, string(domain.ItemStatusPending), limit)
	if err != nil {
		log.Error("failed to query pending work items", "error", redact.Error(err))
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, MapError(err))
	}
	defer func() { _ = rows.Close() }()

	items := make([]*domain.WorkItem, 0)
	var current *domain.WorkItem
	for rows.Next() {
		var (
			id, label, status string
			token, name       sql.NullString
		)
		if err := rows.Scan(&id, &label, &status, &token, &name); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", store.ErrQueryFailed, err)
		}

		if current == nil || current.ID != id {
			current = &domain.WorkItem{
				ID:          id,
				Label:       label,
				Status:      domain.ItemStatus(status),
				Attachments: []domain.Attachment{},
			}
			items = append(items, current)
		}
		if token.Valid {
			current.Attachments = append(current.Attachments, domain.Attachment{
				Token: token.String,
				Name:  name.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, MapError(err))
	}

	valid := items[:0]
	for _, item := range items {
		if err := item.Validate(); err != nil {
			log.Warn("dropping malformed work item",
				"item_id", item.ID,
				"reason", redact.Error(fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)))
			continue
		}
		valid = append(valid, item)
	}

	log.Debug("selected pending work items", "count", len(valid))
	return valid, nil
}

// Complete implements store.WorkItemStore. Only a pending row is updated,
// so a Done item is never rewritten.
func (s *WorkItemStore) Complete(ctx context.Context, id string, resultText string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE work_items
		SET result_text = $1, status = $2, updated_at = NOW(), completed_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		resultText,
		string(domain.ItemStatusDone),
		id,
		string(domain.ItemStatusPending),
	)
	if err != nil {
		log.Error("failed to complete work item",
			"item_id", id,
			"error", redact.Error(err))
		return fmt.Errorf("%w: %w", store.ErrUpdateFailed, MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrWorkItemNotFound); err != nil {
		return fmt.Errorf("%w: %s: %w", store.ErrUpdateFailed, id, err)
	}

	return nil
}

// Download implements store.AttachmentFetcher.
func (s *WorkItemStore) Download(ctx context.Context, token string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM work_item_attachments WHERE token = $1`,
		token,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", store.ErrDownloadFailed, store.ErrAttachmentNotFound)
		}
		return nil, fmt.Errorf("%w: %w", store.ErrDownloadFailed, MapError(err))
	}
	return content, nil
}

// ListIDs implements store.RecordPurger using keyset pagination on id.
func (s *WorkItemStore) ListIDs(ctx context.Context, pageToken string, pageSize int) ([]string, string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM work_items WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		pageToken, pageSize,
	)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", store.ErrQueryFailed, MapError(err))
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0, pageSize)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, "", fmt.Errorf("%w: scan: %w", store.ErrQueryFailed, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %w", store.ErrQueryFailed, MapError(err))
	}

	next := ""
	if len(ids) == pageSize && pageSize > 0 {
		next = ids[len(ids)-1]
	}
	return ids, next, nil
}

// DeleteBatch implements store.RecordPurger. Attachments and items are
// removed in one transaction when the store holds a *sql.DB.
func (s *WorkItemStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	in := strings.Join(placeholders, ", ")

	deleteAll := func(ctx context.Context, tx store.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM work_item_attachments WHERE work_item_id IN (`+in+`)`, args...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM work_items WHERE id IN (`+in+`)`, args...)
		return err
	}

	var err error
	if beginner, ok := s.db.(store.TxBeginner); ok {
		err = store.RunInTransaction(ctx, beginner, deleteAll)
	} else {
		err = deleteAll(ctx, s.db)
	}
	if err != nil {
		return fmt.Errorf("%w: %d records: %w", store.ErrDeleteFailed, len(ids), MapError(err))
	}
	return nil
}
