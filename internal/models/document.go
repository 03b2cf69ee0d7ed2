package models

import (
	"time"

	"github.com/google/uuid"
)

// Document lifecycle. Status only moves forward, or lands in failed at any
// point. Terminal states are completed and failed.
const (
	DocStatusNew         = "new"
	DocStatusExtracting  = "extracting"
	DocStatusExtracted   = "extracted"
	DocStatusSummarizing = "summarizing"
	DocStatusCompleted   = "completed"
	DocStatusFailed      = "failed"
)

type Document struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Bucket        string    `json:"bucket" db:"bucket"`
	ObjectKey     string    `json:"object_key" db:"object_key"`
	ContentType   string    `json:"content_type,omitempty" db:"content_type"`
	FileSizeBytes int64     `json:"file_size_bytes,omitempty" db:"file_size_bytes"`
	Status        string    `json:"status" db:"status"`
	FailureReason string    `json:"failure_reason,omitempty" db:"failure_reason"`
	TextLength    int       `json:"text_length" db:"text_length"`
	Summary       *string   `json:"summary,omitempty" db:"summary"`
	Version       int64     `json:"version" db:"version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the document can no longer change state.
func (d *Document) Terminal() bool {
	return d.Status == DocStatusCompleted || d.Status == DocStatusFailed
}
