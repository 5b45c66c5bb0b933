package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/essaymark/internal/generation"
)

// MockInferencer implements generation.Inferencer for testing
type MockInferencer struct {
	// InferFn allows test cases to mock the Infer behavior
	InferFn func(ctx context.Context, req generation.Request) (generation.Result, error)

	// Default response values
	Result generation.Result
	Err    error

	mu       sync.Mutex
	Requests []generation.Request
}

var _ generation.Inferencer = (*MockInferencer)(nil)

// Infer implements generation.Inferencer
func (m *MockInferencer) Infer(ctx context.Context, req generation.Request) (generation.Result, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.InferFn != nil {
		return m.InferFn(ctx, req)
	}
	return m.Result, m.Err
}

// Calls returns the number of Infer invocations.
func (m *MockInferencer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
