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
)

// ResultWorker is the terminal sink: it folds the summary result back into
// the DocumentRecord. Semantic failures (bad payload, unknown id) are
// acknowledged and never requeued; only transport-level errors go back to
// the broker.
type ResultWorker struct {
	guard idempotency.Guard
	store document.Store
}

func NewResultWorker(guard idempotency.Guard, store document.Store) *ResultWorker {
	return &ResultWorker{guard: guard, store: store}
}

func (w *ResultWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.SummaryResultPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		slog.Error("malformed summary.result payload", "error", err)
		return nil
	}

	id, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		slog.Error("invalid document id in summary result", "document_id", payload.DocumentID)
		return nil
	}

	messageID := queue.ResultMessageID(payload.DocumentID)
	claimed, err := w.guard.TryClaim(ctx, messageID)
	if err != nil {
		return fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		slog.Info("duplicate delivery absorbed", "message_id", messageID)
		return nil
	}

	doc, err := w.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			// The record can never appear; requeueing would loop forever.
			slog.Error("summary result for nonexistent document", "document_id", payload.DocumentID)
			return nil
		}
		w.release(ctx, messageID)
		return fmt.Errorf("load document: %w", err)
	}

	if doc.Status == models.DocStatusCompleted {
		slog.Info("document already completed, result ignored", "document_id", payload.DocumentID)
		return nil
	}

	switch payload.Status {
	case queue.StatusSuccess:
		err = w.store.Complete(ctx, id, payload.Summary, doc.Version)
		if errors.Is(err, document.ErrVersionConflict) {
			current, readErr := w.store.GetByID(ctx, id)
			if readErr == nil && current.Status == models.DocStatusCompleted {
				return nil
			}
			w.release(ctx, messageID)
			return fmt.Errorf("complete document: %w", err)
		}
		if err != nil {
			w.release(ctx, messageID)
			return fmt.Errorf("complete document: %w", err)
		}
		slog.Info("document completed", "document_id", payload.DocumentID, "degraded", payload.Degraded)
	case queue.StatusFailure:
		if err := w.store.Fail(ctx, id, payload.Reason); err != nil {
			w.release(ctx, messageID)
			return fmt.Errorf("fail document: %w", err)
		}
		slog.Info("document failed", "document_id", payload.DocumentID, "reason", payload.Reason)
	default:
		slog.Error("unknown summary result status", "document_id", payload.DocumentID, "status", payload.Status)
	}

	return nil
}

func (w *ResultWorker) release(ctx context.Context, messageID string) {
	if err := w.guard.Release(ctx, messageID); err != nil {
		slog.Error("release idempotency claim", "message_id", messageID, "error", err)
	}
}
