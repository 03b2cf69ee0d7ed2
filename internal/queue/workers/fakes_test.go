package workers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docpipeline/internal/config"
	"github.com/nikhilbhutani/docpipeline/internal/document"
	"github.com/nikhilbhutani/docpipeline/internal/models"
	"github.com/nikhilbhutani/docpipeline/internal/ocr"
	"github.com/nikhilbhutani/docpipeline/internal/queue"
	"github.com/nikhilbhutani/docpipeline/internal/resilience"
)

// memStore mirrors the record store semantics: optimistic versioning on
// Complete, terminal states never regressed.
type memStore struct {
	mu     sync.Mutex
	docs   map[uuid.UUID]*models.Document
	getErr error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[uuid.UUID]*models.Document)}
}

func (s *memStore) Insert(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Status = models.DocStatusNew
	doc.Version = 1
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Terminal() {
		return nil
	}
	doc.Status = status
	doc.Version++
	return nil
}

func (s *memStore) SetExtracted(_ context.Context, id uuid.UUID, textLength int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Terminal() {
		return nil
	}
	doc.Status = models.DocStatusExtracted
	doc.TextLength = textLength
	doc.Version++
	return nil
}

func (s *memStore) Complete(_ context.Context, id uuid.UUID, summary string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Version != expectedVersion || doc.Status == models.DocStatusCompleted {
		return document.ErrVersionConflict
	}
	doc.Summary = &summary
	doc.Status = models.DocStatusCompleted
	doc.FailureReason = ""
	doc.Version++
	return nil
}

func (s *memStore) Fail(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Status == models.DocStatusCompleted {
		return nil
	}
	doc.Status = models.DocStatusFailed
	doc.FailureReason = reason
	doc.Version++
	return nil
}

func (s *memStore) seed(doc *models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
}

func (s *memStore) get(id uuid.UUID) *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil
	}
	cp := *doc
	return &cp
}

// fakeBlobs is an in-memory object store.
type fakeBlobs struct {
	mu          sync.Mutex
	objects     map[string][]byte
	downloadErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) put(bucket, key string, content []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucket+"/"+key] = content
}

func (b *fakeBlobs) Upload(_ context.Context, bucket, path string, data io.Reader, _ string) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.put(bucket, path, content)
	return nil
}

func (b *fakeBlobs) Download(_ context.Context, bucket, path string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.downloadErr != nil {
		return nil, b.downloadErr
	}
	content, ok := b.objects[bucket+"/"+path]
	if !ok {
		return nil, resilience.Permanent(errors.New("object not found"))
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *fakeBlobs) Delete(_ context.Context, bucket, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, bucket+"/"+path)
	return nil
}

// capturePublisher records published events and can fail on demand.
type capturePublisher struct {
	mu         sync.Mutex
	created    []queue.DocumentCreatedPayload
	extraction []queue.ExtractionCompletedPayload
	results    []queue.SummaryResultPayload
	publishErr error
}

func (p *capturePublisher) PublishDocumentCreated(payload queue.DocumentCreatedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.created = append(p.created, payload)
	return nil
}

func (p *capturePublisher) PublishExtractionCompleted(payload queue.ExtractionCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.extraction = append(p.extraction, payload)
	return nil
}

func (p *capturePublisher) PublishSummaryResult(payload queue.SummaryResultPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.results = append(p.results, payload)
	return nil
}

func (p *capturePublisher) extractionEvents() []queue.ExtractionCompletedPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ExtractionCompletedPayload(nil), p.extraction...)
}

func (p *capturePublisher) resultEvents() []queue.SummaryResultPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.SummaryResultPayload(nil), p.results...)
}

// stubEngine recognizes every image as the same text.
type stubEngine struct {
	text       string
	confidence float64
}

func (e *stubEngine) NewClient() (ocr.Client, error) {
	return &stubClient{engine: e}, nil
}

func (e *stubEngine) Language() string { return "eng" }

type stubClient struct {
	engine *stubEngine
}

func (c *stubClient) Recognize(_ context.Context, _ []byte) (ocr.Result, error) {
	return ocr.Result{Text: c.engine.text, Confidence: c.engine.confidence}, nil
}

func (c *stubClient) Close() error { return nil }

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func testResilienceConfig() config.ResilienceConfig {
	return config.ResilienceConfig{
		BreakerWindowSize:  100,
		BreakerMinSamples:  100,
		BreakerThreshold:   0.5,
		BreakerCooldown:    30 * time.Second,
		BreakerHalfOpenMax: 2,
		RetryMaxAttempts:   3,
		RetryInitialDelay:  time.Millisecond,
		RetryMaxDelay:      5 * time.Millisecond,
		RateLimit:          1000,
		RateBurst:          1000,
		RateAcquireTimeout: time.Second,
	}
}
