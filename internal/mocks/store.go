package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/essaymark/internal/domain"
	"github.com/phrazzld/essaymark/internal/store"
)

// CompleteCall records one Complete invocation.
type CompleteCall struct {
	ID         string
	ResultText string
}

// MockWorkItemStore implements store.WorkItemStore for testing.
type MockWorkItemStore struct {
	ListPendingFn func(ctx context.Context, limit int) ([]*domain.WorkItem, error)
	CompleteFn    func(ctx context.Context, id string, resultText string) error

	mu            sync.Mutex
	ListLimits    []int
	CompleteCalls []CompleteCall
}

var _ store.WorkItemStore = (*MockWorkItemStore)(nil)

// ListPending implements store.WorkItemStore.
func (m *MockWorkItemStore) ListPending(ctx context.Context, limit int) ([]*domain.WorkItem, error) {
	m.mu.Lock()
	m.ListLimits = append(m.ListLimits, limit)
	m.mu.Unlock()

	if m.ListPendingFn != nil {
		return m.ListPendingFn(ctx, limit)
	}
	return []*domain.WorkItem{}, nil
}

// Complete implements store.WorkItemStore.
func (m *MockWorkItemStore) Complete(ctx context.Context, id string, resultText string) error {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, CompleteCall{ID: id, ResultText: resultText})
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, id, resultText)
	}
	return nil
}

// Completed returns a copy of the recorded Complete calls.
func (m *MockWorkItemStore) Completed() []CompleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompleteCall(nil), m.CompleteCalls...)
}

// MockAttachmentFetcher implements store.AttachmentFetcher for testing.
type MockAttachmentFetcher struct {
	DownloadFn func(ctx context.Context, token string) ([]byte, error)

	mu     sync.Mutex
	Tokens []string
}

var _ store.AttachmentFetcher = (*MockAttachmentFetcher)(nil)

// Download implements store.AttachmentFetcher.
func (m *MockAttachmentFetcher) Download(ctx context.Context, token string) ([]byte, error) {
	m.mu.Lock()
	m.Tokens = append(m.Tokens, token)
	m.mu.Unlock()

	if m.DownloadFn != nil {
		return m.DownloadFn(ctx, token)
	}
	return []byte(token), nil
}

// Calls returns the number of Download invocations.
func (m *MockAttachmentFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Tokens)
}

// MockRecordPurger implements store.RecordPurger for testing.
type MockRecordPurger struct {
	ListIDsFn     func(ctx context.Context, pageToken string, pageSize int) ([]string, string, error)
	DeleteBatchFn func(ctx context.Context, ids []string) error

	mu      sync.Mutex
	Deleted [][]string
}

var _ store.RecordPurger = (*MockRecordPurger)(nil)

// ListIDs implements store.RecordPurger.
func (m *MockRecordPurger) ListIDs(ctx context.Context, pageToken string, pageSize int) ([]string, string, error) {
	if m.ListIDsFn != nil {
		return m.ListIDsFn(ctx, pageToken, pageSize)
	}
	return []string{}, "", nil
}

// DeleteBatch implements store.RecordPurger.
func (m *MockRecordPurger) DeleteBatch(ctx context.Context, ids []string) error {
	m.mu.Lock()
	m.Deleted = append(m.Deleted, append([]string(nil), ids...))
	m.mu.Unlock()

	if m.DeleteBatchFn != nil {
		return m.DeleteBatchFn(ctx, ids)
	}
	return nil
}

// BatchSizes returns the size of every DeleteBatch call in order.
func (m *MockRecordPurger) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.Deleted))
	for i, batch := range m.Deleted {
		sizes[i] = len(batch)
	}
	return sizes
}
