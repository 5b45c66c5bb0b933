package task

import (
	"errors"
	"time"
)

// Stage is a step of the per-item state machine.
type Stage string

// Stages in execution order, followed by the two terminal outcomes.
const (
	StageSelected            Stage = "selected"
	StageFetchingAttachments Stage = "fetching_attachments"
	StageNormalizing         Stage = "normalizing"
	StageInvoking            Stage = "invoking"
	StageSanitizing          Stage = "sanitizing"
	StageWritingBack         Stage = "writing_back"
	StageCompleted           Stage = "completed"
	StageSkipped             Stage = "skipped_retryable"
)

// IsTerminal reports whether s ends processing for the current run.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageSkipped
}

// Item-level skip reasons.
var (
	// ErrNoAttachments is returned for an item without attachments.
	ErrNoAttachments = errors.New("work item has no attachments")

	// ErrEmptyResult is returned when nothing is left to write after sanitizing.
	ErrEmptyResult = errors.New("sanitized result is empty")

	// ErrNotPending is returned for an item that is no longer Pending.
	ErrNotPending = errors.New("work item is not pending")
)

// Construction errors
var (
	ErrNilFetcher     = errors.New("attachment fetcher cannot be nil")
	ErrNilNormalizer  = errors.New("image normalizer cannot be nil")
	ErrNilInferencer  = errors.New("inferencer cannot be nil")
	ErrNilSanitizer   = errors.New("sanitizer cannot be nil")
	ErrNilInstruction = errors.New("instruction cannot be nil")
	ErrNilWriter      = errors.New("result writer cannot be nil")
	ErrNilSelector    = errors.New("selector cannot be nil")
	ErrNilProcessor   = errors.New("processor cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
)

// ItemResult is the outcome of processing one work item.
type ItemResult struct {
	ItemID string
	Label  string

	// Stage is StageCompleted or StageSkipped.
	Stage Stage

	// FailedStage is the stage that caused a skip; empty when completed.
	FailedStage Stage

	// Err is the skip reason; nil when completed.
	Err error

	// Attempts is the number of inference attempts made.
	Attempts int

	// Images is the number of normalized images sent for inference.
	Images int

	// Removed is the number of lines deleted by the sanitizer.
	Removed int

	// DryRun is set when the result was computed but not written.
	DryRun bool

	Duration time.Duration
}

// Completed reports whether the item reached StageCompleted.
func (r ItemResult) Completed() bool {
	return r.Stage == StageCompleted
}
