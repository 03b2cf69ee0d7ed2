// Package workers holds the pipeline stage consumers. Every worker claims
// its deterministic idempotency key before doing work, always acknowledges
// semantic failures, and releases its claim before handing a message back to
// the broker for redelivery.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docpipeline/internal/document"
	"github.com/nikhilbhutani/docpipeline/internal/extraction"
	"github.com/nikhilbhutani/docpipeline/internal/idempotency"
	"github.com/nikhilbhutani/docpipeline/internal/models"
	"github.com/nikhilbhutani/docpipeline/internal/queue"
	"github.com/nikhilbhutani/docpipeline/internal/resilience"
	"github.com/nikhilbhutani/docpipeline/internal/storage"
)

type ExtractionWorker struct {
	guard     idempotency.Guard
	blobs     storage.Storage
	extractor *extraction.Service
	store     document.Store
	publisher queue.Publisher
	envelope  *resilience.Envelope
}

func NewExtractionWorker(guard idempotency.Guard, blobs storage.Storage, extractor *extraction.Service,
	store document.Store, publisher queue.Publisher, envelopes *resilience.Registry) *ExtractionWorker {
	return &ExtractionWorker{
		guard:     guard,
		blobs:     blobs,
		extractor: extractor,
		store:     store,
		publisher: publisher,
		envelope:  envelopes.For("object-store"),
	}
}

// ProcessTask consumes a document.created event and always publishes an
// extraction.completed terminus: SUCCESS with the aggregated text or FAILURE
// with a reason. It never drops a document silently.
func (w *ExtractionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentCreatedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// Malformed payloads can never succeed; acknowledge and move on.
		slog.Error("malformed document.created payload", "error", err)
		return nil
	}

	messageID := queue.ExtractMessageID(payload.DocumentID)
	claimed, err := w.guard.TryClaim(ctx, messageID)
	if err != nil {
		return fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		slog.Info("duplicate delivery absorbed", "message_id", messageID)
		return nil
	}

	slog.Info("extracting document", "document_id", payload.DocumentID)
	w.updateStatus(ctx, payload.DocumentID, models.DocStatusExtracting)

	content, err := resilience.Do(ctx, w.envelope, func(ctx context.Context) ([]byte, error) {
		reader, err := w.blobs.Download(ctx, payload.Bucket, payload.ObjectKey)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	})
	if err != nil {
		// Unreachable store after exhausted retries is still a terminus.
		return w.publishFailure(ctx, payload, fmt.Sprintf("download content: %v", err))
	}

	result, err := w.extractor.Extract(ctx, content, payload.ContentType)
	if err != nil {
		return w.publishFailure(ctx, payload, fmt.Sprintf("extract text: %v", err))
	}

	w.setExtracted(ctx, payload.DocumentID, len(result.Text))

	event := queue.ExtractionCompletedPayload{
		MessageID:  messageID,
		DocumentID: payload.DocumentID,
		Title:      payload.Title,
		Status:     queue.StatusSuccess,
		Text:       result.Text,
		Confidence: result.Confidence,
		TotalPages: result.TotalPages,
		Language:   result.Language,
		Pages:      convertPages(result.Pages),
	}
	if err := w.publisher.PublishExtractionCompleted(event); err != nil {
		// The work is lost if this message dies here: free the claim so the
		// broker can redeliver.
		w.release(ctx, messageID)
		return fmt.Errorf("publish extraction completed: %w", err)
	}

	slog.Info("document extracted",
		"document_id", payload.DocumentID,
		"pages", result.TotalPages,
		"confidence", result.Confidence,
		"text_length", len(result.Text))
	return nil
}

func (w *ExtractionWorker) publishFailure(ctx context.Context, payload queue.DocumentCreatedPayload, reason string) error {
	slog.Warn("extraction failed", "document_id", payload.DocumentID, "reason", reason)

	messageID := queue.ExtractMessageID(payload.DocumentID)
	err := w.publisher.PublishExtractionCompleted(queue.ExtractionCompletedPayload{
		MessageID:  messageID,
		DocumentID: payload.DocumentID,
		Title:      payload.Title,
		Status:     queue.StatusFailure,
		Reason:     reason,
	})
	if err != nil {
		w.release(ctx, messageID)
		return fmt.Errorf("publish extraction failure: %w", err)
	}
	return nil
}

func (w *ExtractionWorker) updateStatus(ctx context.Context, documentID, status string) {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return
	}
	if err := w.store.UpdateStatus(ctx, id, status); err != nil {
		slog.Warn("update document status", "document_id", documentID, "status", status, "error", err)
	}
}

func (w *ExtractionWorker) setExtracted(ctx context.Context, documentID string, textLength int) {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return
	}
	if err := w.store.SetExtracted(ctx, id, textLength); err != nil {
		slog.Warn("record extraction progress", "document_id", documentID, "error", err)
	}
}

func (w *ExtractionWorker) release(ctx context.Context, messageID string) {
	if err := w.guard.Release(ctx, messageID); err != nil {
		slog.Error("release idempotency claim", "message_id", messageID, "error", err)
	}
}

func convertPages(pages []extraction.PageResult) []queue.PageResult {
	out := make([]queue.PageResult, len(pages))
	for i, p := range pages {
		out[i] = queue.PageResult{
			PageNumber: p.PageNumber,
			Text:       p.Text,
			Confidence: p.Confidence,
			Success:    p.Success,
			DurationMs: p.DurationMs,
		}
	}
	return out
}
