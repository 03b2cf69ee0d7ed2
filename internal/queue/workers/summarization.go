package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docpipeline/internal/document"
	"github.com/nikhilbhutani/docpipeline/internal/idempotency"
	"github.com/nikhilbhutani/docpipeline/internal/models"
	"github.com/nikhilbhutani/docpipeline/internal/queue"
	"github.com/nikhilbhutani/docpipeline/internal/resilience"
	"github.com/nikhilbhutani/docpipeline/internal/summarize"
)

type SummarizationWorker struct {
	guard     idempotency.Guard
	svc       *summarize.Service
	store     document.Store
	publisher queue.Publisher
}

func NewSummarizationWorker(guard idempotency.Guard, svc *summarize.Service,
	store document.Store, publisher queue.Publisher) *SummarizationWorker {
	return &SummarizationWorker{
		guard:     guard,
		svc:       svc,
		store:     store,
		publisher: publisher,
	}
}

// ProcessTask consumes an extraction.completed event. Preconditions that
// doom the summary (failed extraction, text below the minimum length,
// missing credentials) short-circuit to a FAILURE result without ever
// touching the external API.
func (w *SummarizationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ExtractionCompletedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		slog.Error("malformed extraction.completed payload", "error", err)
		return nil
	}

	messageID := queue.SummarizeMessageID(payload.DocumentID)
	claimed, err := w.guard.TryClaim(ctx, messageID)
	if err != nil {
		return fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		slog.Info("duplicate delivery absorbed", "message_id", messageID)
		return nil
	}

	if err := w.svc.Preflight(payload.Status == queue.StatusSuccess, payload.Text); err != nil {
		reason := err.Error()
		if payload.Status != queue.StatusSuccess && payload.Reason != "" {
			reason = "extraction failed: " + payload.Reason
		}
		return w.publishFailure(ctx, payload.DocumentID, reason)
	}

	slog.Info("summarizing document", "document_id", payload.DocumentID, "text_length", len(payload.Text))
	w.updateStatus(ctx, payload.DocumentID, models.DocStatusSummarizing)

	outcome, err := w.svc.Summarize(ctx, payload.Text)
	if err != nil {
		if errors.Is(err, resilience.ErrRateLimited) {
			// Local saturation, not a verdict on the document: hand the
			// message back for redelivery.
			w.release(ctx, messageID)
			return err
		}
		return w.publishFailure(ctx, payload.DocumentID, fmt.Sprintf("summarize: %v", err))
	}

	event := queue.SummaryResultPayload{
		MessageID:  queue.ResultMessageID(payload.DocumentID),
		DocumentID: payload.DocumentID,
		Status:     queue.StatusSuccess,
		Summary:    outcome.Summary,
		Degraded:   outcome.Degraded,
		ElapsedMs:  outcome.ElapsedMs,
	}
	if err := w.publisher.PublishSummaryResult(event); err != nil {
		w.release(ctx, messageID)
		return fmt.Errorf("publish summary result: %w", err)
	}

	slog.Info("document summarized",
		"document_id", payload.DocumentID,
		"degraded", outcome.Degraded,
		"elapsed_ms", outcome.ElapsedMs)
	return nil
}

func (w *SummarizationWorker) publishFailure(ctx context.Context, documentID, reason string) error {
	slog.Warn("summarization failed", "document_id", documentID, "reason", reason)

	err := w.publisher.PublishSummaryResult(queue.SummaryResultPayload{
		MessageID:  queue.ResultMessageID(documentID),
		DocumentID: documentID,
		Status:     queue.StatusFailure,
		Reason:     reason,
	})
	if err != nil {
		w.release(ctx, queue.SummarizeMessageID(documentID))
		return fmt.Errorf("publish summary failure: %w", err)
	}
	return nil
}

func (w *SummarizationWorker) updateStatus(ctx context.Context, documentID, status string) {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return
	}
	if err := w.store.UpdateStatus(ctx, id, status); err != nil {
		slog.Warn("update document status", "document_id", documentID, "status", status, "error", err)
	}
}

func (w *SummarizationWorker) release(ctx context.Context, messageID string) {
	if err := w.guard.Release(ctx, messageID); err != nil {
		slog.Error("release idempotency claim", "message_id", messageID, "error", err)
	}
}
