package generation

import (
	"context"

	"github.com/phrazzld/essaymark/internal/domain"
)

// Request is one inference call: the instruction text followed by the
// normalized images of a single work item, in attachment order.
type Request struct {
	Instruction string
	Images      []*domain.EncodedImage
}

// Result is the outcome of a successful inference call.
type Result struct {
	// Text is the first generated message. It may be empty; an empty
	// message is a successful call and is not retried.
	Text string

	// Attempts is the number of attempts the call took.
	Attempts int
}

// Inferencer submits a request to the inference service.
// This interface is the boundary between the item pipeline and the
// external service; backends live under internal/platform.
type Inferencer interface {
	// Infer returns the generated text or a terminal error wrapping
	// ErrRetriesExhausted, ErrNonRetryable or ErrInvalidResponse.
	Infer(ctx context.Context, req Request) (Result, error)
}
