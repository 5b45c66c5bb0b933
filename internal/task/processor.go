package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/essaymark/internal/domain"
	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/prompt"
	"github.com/phrazzld/essaymark/internal/redact"
	"github.com/phrazzld/essaymark/internal/sanitize"
	"github.com/phrazzld/essaymark/internal/store"
)

// ImageNormalizer converts a downloaded attachment into a transport-ready image.
type ImageNormalizer interface {
	Normalize(raw []byte) (*domain.EncodedImage, error)
}

// OutputSanitizer post-processes generated text.
type OutputSanitizer interface {
	Sanitize(text string) sanitize.Result
}

// InstructionRenderer produces the instruction sent with an item's images.
type InstructionRenderer interface {
	Render(data prompt.Data) (string, error)
}

// ResultWriter records the result together with the Done transition.
type ResultWriter interface {
	Complete(ctx context.Context, id string, resultText string) error
}

// ProcessorDeps holds the collaborators of a Processor.
type ProcessorDeps struct {
	Fetcher     store.AttachmentFetcher
	Normalizer  ImageNormalizer
	Inferencer  generation.Inferencer
	Sanitizer   OutputSanitizer
	Instruction InstructionRenderer
	Writer      ResultWriter
}

// Processor drives a single work item through the grading stages.
// It holds no per-item state and is safe for concurrent use when its
// collaborators are.
type Processor struct {
	deps   ProcessorDeps
	dryRun bool
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a Processor. With dryRun set the sanitized result is
// logged instead of written and the item stays Pending.
func NewProcessor(deps ProcessorDeps, dryRun bool, logger *slog.Logger) (*Processor, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, ErrNilFetcher
	case deps.Normalizer == nil:
		return nil, ErrNilNormalizer
	case deps.Inferencer == nil:
		return nil, ErrNilInferencer
	case deps.Sanitizer == nil:
		return nil, ErrNilSanitizer
	case deps.Instruction == nil:
		return nil, ErrNilInstruction
	case deps.Writer == nil && !dryRun:
		return nil, ErrNilWriter
	case logger == nil:
		return nil, ErrNilLogger
	}

	return &Processor{
		deps:   deps,
		dryRun: dryRun,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Process runs the item state machine and reports the terminal outcome.
// It never returns an error: every failure becomes a skip that leaves the
// item Pending. Cancellation of ctx is honored between stages.
func (p *Processor) Process(ctx context.Context, item *domain.WorkItem) ItemResult {
	start := p.now()
	ctx = logger.WithLogger(ctx, p.logger.With(
		"item_id", item.ID,
		"label", item.DisplayName(),
	))
	log := logger.FromContext(ctx)

	res := ItemResult{ItemID: item.ID, Label: item.Label}
	skip := func(stage Stage, err error) ItemResult {
		res.Stage = StageSkipped
		res.FailedStage = stage
		res.Err = err
		res.Duration = p.now().Sub(start)
		log.WarnContext(ctx, "skipping work item",
			"stage", string(stage),
			"reason", redact.Error(err),
			"duration_ms", res.Duration.Milliseconds())
		return res
	}

	if item.Status != domain.ItemStatusPending {
		return skip(StageSelected, fmt.Errorf("%w: status %q", ErrNotPending, item.Status))
	}
	if !item.HasAttachments() {
		return skip(StageSelected, ErrNoAttachments)
	}

	log.InfoContext(ctx, "processing work item", "attachments", len(item.Attachments))

	// An item is graded on its complete set of pages or not at all.
	images := make([]*domain.EncodedImage, 0, len(item.Attachments))
	for i, att := range item.Attachments {
		if err := ctx.Err(); err != nil {
			return skip(StageFetchingAttachments, err)
		}

		raw, err := p.deps.Fetcher.Download(ctx, att.Token)
		if err != nil {
			return skip(StageFetchingAttachments, fmt.Errorf("attachment %d of %d: %w", i+1, len(item.Attachments), err))
		}

		img, err := p.deps.Normalizer.Normalize(raw)
		if err != nil {
			return skip(StageNormalizing, fmt.Errorf("attachment %d of %d: %w", i+1, len(item.Attachments), err))
		}

		log.DebugContext(ctx, "attachment normalized",
			"index", i,
			"input_bytes", len(raw),
			"output_bytes", len(img.Data),
			"width", img.Width,
			"height", img.Height)
		images = append(images, img)
	}
	res.Images = len(images)

	if err := ctx.Err(); err != nil {
		return skip(StageInvoking, err)
	}

	instruction, err := p.deps.Instruction.Render(prompt.Data{Label: item.Label, ImageCount: len(images)})
	if err != nil {
		return skip(StageInvoking, err)
	}

	out, err := p.deps.Inferencer.Infer(ctx, generation.Request{Instruction: instruction, Images: images})
	res.Attempts = out.Attempts
	if err != nil {
		return skip(StageInvoking, err)
	}

	cleaned := p.deps.Sanitizer.Sanitize(out.Text)
	res.Removed = len(cleaned.Removed)
	for _, removed := range cleaned.Removed {
		log.InfoContext(ctx, "removed generated line",
			"line", removed.Line,
			"rule", removed.Rule,
			"text", removed.Text)
	}
	if cleaned.Changed() {
		log.DebugContext(ctx, "sanitized generated text",
			"backfilled", cleaned.Backfilled,
			"diff", sanitize.Diff(out.Text, cleaned.Text))
	}
	if cleaned.Text == "" {
		return skip(StageSanitizing, ErrEmptyResult)
	}

	if p.dryRun {
		res.Stage = StageCompleted
		res.DryRun = true
		res.Duration = p.now().Sub(start)
		log.InfoContext(ctx, "dry run, result not written",
			"attempts", res.Attempts,
			"result", cleaned.Text,
			"diff", sanitize.Diff(out.Text, cleaned.Text))
		return res
	}

	if err := ctx.Err(); err != nil {
		return skip(StageWritingBack, err)
	}

	if err := p.deps.Writer.Complete(ctx, item.ID, cleaned.Text); err != nil {
		return skip(StageWritingBack, err)
	}
	if err := item.Complete(cleaned.Text); err != nil {
		log.WarnContext(ctx, "in-memory item state not updated", "error", err)
	}

	res.Stage = StageCompleted
	res.Duration = p.now().Sub(start)
	log.InfoContext(ctx, "work item completed",
		"images", res.Images,
		"attempts", res.Attempts,
		"removed_lines", res.Removed,
		"duration_ms", res.Duration.Milliseconds())
	return res
}
