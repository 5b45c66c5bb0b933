package domain

import (
	"fmt"
	"strings"
)

// ItemStatus represents the persisted completion state of a work item.
type ItemStatus string

// Possible work item status values
const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusDone    ItemStatus = "done"
)

// Attachment is an opaque reference to a binary blob held by the record
// store. The token is resolved through an attachment fetcher.
type Attachment struct {
	Token string `json:"token"`
	Name  string `json:"name,omitempty"`
}

// WorkItem is one unit of backlog work: a submission with image attachments
// and a completion status. Items are created and populated externally; this
// system only reads them and performs the Pending -> Done transition.
type WorkItem struct {
	ID          string       `json:"id"`
	Label       string       `json:"label,omitempty"`
	Attachments []Attachment `json:"attachments"`
	Status      ItemStatus   `json:"status"`
	ResultText  string       `json:"result_text,omitempty"`
}

// Validate checks if the WorkItem has valid data.
// Returns an error if any field fails validation.
func (w *WorkItem) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("%w: work item ID cannot be empty", ErrInvalidID)
	}

	if !IsValidItemStatus(w.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidItemStatus, w.Status)
	}

	for i, a := range w.Attachments {
		if strings.TrimSpace(a.Token) == "" {
			return fmt.Errorf("%w: attachment %d has an empty token", ErrValidation, i)
		}
	}

	return nil
}

// HasAttachments reports whether the item carries at least one attachment.
func (w *WorkItem) HasAttachments() bool {
	return len(w.Attachments) > 0
}

// DisplayName returns the label for logging, falling back to the ID.
func (w *WorkItem) DisplayName() string {
	if w.Label != "" {
		return w.Label
	}
	return w.ID
}

// Complete records the result text and moves the item to Done.
// Only a Pending item with a non-empty result can be completed.
func (w *WorkItem) Complete(resultText string) error {
	if w.Status != ItemStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, w.Status, ItemStatusDone)
	}

	if strings.TrimSpace(resultText) == "" {
		return ErrEmptyResult
	}

	w.ResultText = resultText
	w.Status = ItemStatusDone
	return nil
}

// IsValidItemStatus checks if the given status is a valid ItemStatus.
func IsValidItemStatus(status ItemStatus) bool {
	switch status {
	case ItemStatusPending, ItemStatusDone:
		return true
	default:
		return false
	}
}
