package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/docpipeline/internal/models"
)

// ErrNotFound means the document id has no record. For the result sink this
// is a semantic inconsistency, not a retryable condition.
var ErrNotFound = errors.New("document not found")

// ErrVersionConflict means another writer advanced the record since it was
// read. The caller re-reads and decides.
var ErrVersionConflict = errors.New("document version conflict")

// Store is the record store boundary: read and update a DocumentRecord by id
// with an optimistic version check. Only the coordinator and the result sink
// write through it.
type Store interface {
	Insert(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetExtracted(ctx context.Context, id uuid.UUID, textLength int) error
	Complete(ctx context.Context, id uuid.UUID, summary string, expectedVersion int64) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const docColumns = `id, title, bucket, object_key, content_type, file_size_bytes,
	status, failure_reason, text_length, summary, version, created_at, updated_at`

func (s *PgStore) Insert(ctx context.Context, doc *models.Document) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (id, title, bucket, object_key, content_type, file_size_bytes, status, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		 RETURNING version, created_at, updated_at`,
		doc.ID, doc.Title, doc.Bucket, doc.ObjectKey, doc.ContentType, doc.FileSizeBytes, models.DocStatusNew,
	).Scan(&doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.Status = models.DocStatusNew
	return nil
}

func (s *PgStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRow(ctx,
		`SELECT `+docColumns+` FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Bucket, &doc.ObjectKey, &doc.ContentType, &doc.FileSizeBytes,
		&doc.Status, &doc.FailureReason, &doc.TextLength, &doc.Summary, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// UpdateStatus advances coarse pipeline progress. Terminal states are never
// regressed.
func (s *PgStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND status NOT IN ($3, $4)`,
		status, id, models.DocStatusCompleted, models.DocStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (s *PgStore) SetExtracted(ctx context.Context, id uuid.UUID, textLength int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $1, text_length = $2, version = version + 1, updated_at = now()
		 WHERE id = $3 AND status NOT IN ($4, $5)`,
		models.DocStatusExtracted, textLength, id, models.DocStatusCompleted, models.DocStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("set extracted: %w", err)
	}
	return nil
}

// Complete writes the summary under an optimistic version check so a
// concurrent writer cannot be silently overwritten.
func (s *PgStore) Complete(ctx context.Context, id uuid.UUID, summary string, expectedVersion int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET summary = $1, status = $2, failure_reason = '', version = version + 1, updated_at = now()
		 WHERE id = $3 AND version = $4 AND status != $2`,
		summary, models.DocStatusCompleted, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("complete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Fail records a terminal failure. An already-completed record is left
// untouched.
func (s *PgStore) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $1, failure_reason = $2, version = version + 1, updated_at = now()
		 WHERE id = $3 AND status != $4`,
		models.DocStatusFailed, reason, id, models.DocStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("fail document: %w", err)
	}
	return nil
}
