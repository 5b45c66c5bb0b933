package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ciMetadataEnv maps log attribute names to the environment variables a CI
// scheduler sets for a workflow run.
var ciMetadataEnv = map[string]string{
	"ci_workflow":    "GITHUB_WORKFLOW",
	"ci_run_id":      "GITHUB_RUN_ID",
	"ci_run_number":  "GITHUB_RUN_NUMBER",
	"ci_run_attempt": "GITHUB_RUN_ATTEMPT",
	"ci_repository":  "GITHUB_REPOSITORY",
	"ci_sha":         "GITHUB_SHA",
	"ci_event":       "GITHUB_EVENT_NAME",
}

// IsCIEnvironment reports whether the process runs under a CI scheduler.
func IsCIEnvironment() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}

// CIHandler is a custom slog.Handler that adds the metadata of the scheduled
// workflow run to every record, so the logs of one periodic run can be
// correlated with the run that produced them.
type CIHandler struct {
	// The underlying handler (usually JSON)
	handler slog.Handler
	// CI metadata to add to every log record
	metadata []slog.Attr
}

// NewCIHandler creates a new CIHandler that wraps a JSON handler writing to out.
func NewCIHandler(out io.Writer, opts *slog.HandlerOptions) *CIHandler {
	var handlerOpts slog.HandlerOptions
	if opts != nil {
		// Clone the options to avoid modifying the caller's options
		handlerOpts = *opts
	}

	return &CIHandler{
		handler:  slog.NewJSONHandler(out, &handlerOpts),
		metadata: ciMetadata(),
	}
}

// Enabled implements the slog.Handler interface.
func (h *CIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *CIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CIHandler{
		handler:  h.handler.WithAttrs(attrs),
		metadata: h.metadata,
	}
}

// WithGroup implements the slog.Handler interface.
func (h *CIHandler) WithGroup(name string) slog.Handler {
	return &CIHandler{
		handler:  h.handler.WithGroup(name),
		metadata: h.metadata,
	}
}

// Handle implements the slog.Handler interface.
func (h *CIHandler) Handle(ctx context.Context, record slog.Record) error {
	// Clone the record to avoid modifying the original
	enhanced := record.Clone()
	enhanced.AddAttrs(h.metadata...)
	return h.handler.Handle(ctx, enhanced)
}

func ciMetadata() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(ciMetadataEnv))
	for attr, env := range ciMetadataEnv {
		if value := os.Getenv(env); value != "" {
			attrs = append(attrs, slog.String(attr, value))
		}
	}
	return attrs
}
