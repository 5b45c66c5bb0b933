// Package generation defines the boundary between the item pipeline and the
// external generative inference service. It holds the Inferencer interface
// that the platform backends implement (an OpenAI-compatible chat-completions
// client and a Gemini SDK client), the error taxonomy shared by those
// backends, and RetryPolicy: the bounded attempt/backoff state machine every
// backend runs its calls through.
//
// Retry behavior:
//   - 429, 500, 502, 503 and 504 responses wait BaseDelay multiplied by the
//     attempt number before the next attempt.
//   - Network failures and attempt timeouts wait NetworkDelay.
//   - Any other status fails immediately with ErrNonRetryable.
//   - When the attempt budget is spent the call fails with
//     ErrRetriesExhausted, which callers can tell apart from an empty result.
package generation
