// Package document owns the DocumentRecord: the ingestion coordinator that
// creates it and the record store both sides of the pipeline read and write.
package document

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docpipeline/internal/config"
	"github.com/nikhilbhutani/docpipeline/internal/models"
	"github.com/nikhilbhutani/docpipeline/internal/queue"
	"github.com/nikhilbhutani/docpipeline/internal/resilience"
	"github.com/nikhilbhutani/docpipeline/internal/storage"
)

type Service struct {
	store     Store
	blobs     storage.Storage
	bucket    string
	publisher queue.Publisher
	envelope  *resilience.Envelope
}

func NewService(store Store, blobs storage.Storage, cfg config.StorageConfig, publisher queue.Publisher, envelopes *resilience.Registry) *Service {
	return &Service{
		store:     store,
		blobs:     blobs,
		bucket:    cfg.Bucket,
		publisher: publisher,
		envelope:  envelopes.For("object-store"),
	}
}

type CreateRequest struct {
	Title       string
	ContentType string
	Size        int64
	Data        io.Reader
}

// Create persists a new document and emits the first pipeline event. The
// event is published only after the record is durably committed; a publish
// failure fails the whole create so the caller retries it and no event ever
// references a record that was not written. The id is freshly minted per
// request, so no idempotency claim is needed here.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Document, error) {
	id := uuid.New()
	key := fmt.Sprintf("%s/%s", time.Now().UTC().Format("2006/01/02"), id)

	err := s.envelope.Execute(ctx, func(ctx context.Context) error {
		return s.blobs.Upload(ctx, s.bucket, key, req.Data, req.ContentType)
	})
	if err != nil {
		return nil, fmt.Errorf("upload content: %w", err)
	}

	doc := &models.Document{
		ID:            id,
		Title:         req.Title,
		Bucket:        s.bucket,
		ObjectKey:     key,
		ContentType:   req.ContentType,
		FileSizeBytes: req.Size,
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, err
	}

	err = s.publisher.PublishDocumentCreated(queue.DocumentCreatedPayload{
		MessageID:   queue.CreatedMessageID(id.String()),
		DocumentID:  id.String(),
		Title:       req.Title,
		Bucket:      s.bucket,
		ObjectKey:   key,
		ContentType: req.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("publish document created: %w", err)
	}

	return doc, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.store.GetByID(ctx, id)
}
