package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docpipeline/internal/config"
	"github.com/nikhilbhutani/docpipeline/internal/extraction"
	"github.com/nikhilbhutani/docpipeline/internal/idempotency"
	"github.com/nikhilbhutani/docpipeline/internal/models"
	"github.com/nikhilbhutani/docpipeline/internal/queue"
	"github.com/nikhilbhutani/docpipeline/internal/resilience"
)

type extractionFixture struct {
	worker    *ExtractionWorker
	guard     *idempotency.MemoryGuard
	blobs     *fakeBlobs
	store     *memStore
	publisher *capturePublisher
}

func newExtractionFixture(t *testing.T, engine *stubEngine) *extractionFixture {
	t.Helper()
	guard := idempotency.NewMemoryGuard(time.Hour)
	t.Cleanup(guard.Close)

	blobs := newFakeBlobs()
	store := newMemStore()
	publisher := &capturePublisher{}
	envelopes := resilience.NewRegistry(testResilienceConfig())

	extractor := extraction.NewService(config.ExtractionConfig{
		RasterDPI:         300,
		PageWorkers:       2,
		Language:          "eng",
		TextLayerMinChars: 32,
	}, engine, envelopes)

	return &extractionFixture{
		worker:    NewExtractionWorker(guard, blobs, extractor, store, publisher, envelopes),
		guard:     guard,
		blobs:     blobs,
		store:     store,
		publisher: publisher,
	}
}

func createdTask(t *testing.T, payload queue.DocumentCreatedPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeDocumentCreated, data)
}

func TestExtractionWorker_HappyPath(t *testing.T) {
	engine := &stubEngine{text: "Scanned receipt, total due 42.00 EUR.", confidence: 93}
	f := newExtractionFixture(t, engine)

	doc := &models.Document{ID: uuid.New(), Title: "receipt.png", Bucket: "documents",
		ObjectKey: "2026/08/27/receipt", Status: models.DocStatusNew, Version: 1}
	f.store.seed(doc)
	f.blobs.put("documents", "2026/08/27/receipt", pngBytes)

	err := f.worker.ProcessTask(context.Background(), createdTask(t, queue.DocumentCreatedPayload{
		MessageID:   queue.CreatedMessageID(doc.ID.String()),
		DocumentID:  doc.ID.String(),
		Title:       "receipt.png",
		Bucket:      "documents",
		ObjectKey:   "2026/08/27/receipt",
		ContentType: "image/png",
	}))
	require.NoError(t, err)

	events := f.publisher.extractionEvents()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, queue.StatusSuccess, event.Status)
	assert.Equal(t, doc.ID.String(), event.DocumentID)
	assert.Equal(t, queue.ExtractMessageID(doc.ID.String()), event.MessageID)
	assert.Equal(t, "Scanned receipt, total due 42.00 EUR.", event.Text)
	assert.InDelta(t, 93, event.Confidence, 0.001)
	assert.Equal(t, 1, event.TotalPages)

	stored := f.store.get(doc.ID)
	assert.Equal(t, models.DocStatusExtracted, stored.Status)
	assert.Equal(t, len(event.Text), stored.TextLength)
}

func TestExtractionWorker_MalformedPayloadAcknowledged(t *testing.T) {
	f := newExtractionFixture(t, &stubEngine{})

	err := f.worker.ProcessTask(context.Background(),
		asynq.NewTask(queue.TypeDocumentCreated, []byte("{not json")))

	assert.NoError(t, err, "a payload that can never parse must not requeue forever")
	assert.Empty(t, f.publisher.extractionEvents())
}

func TestExtractionWorker_DuplicateDeliveryAbsorbed(t *testing.T) {
	engine := &stubEngine{text: "page text", confidence: 90}
	f := newExtractionFixture(t, engine)

	doc := &models.Document{ID: uuid.New(), Bucket: "documents", ObjectKey: "k",
		Status: models.DocStatusNew, Version: 1}
	f.store.seed(doc)
	f.blobs.put("documents", "k", pngBytes)

	task := createdTask(t, queue.DocumentCreatedPayload{
		DocumentID: doc.ID.String(), Bucket: "documents", ObjectKey: "k", ContentType: "image/png",
	})

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))
	require.NoError(t, f.worker.ProcessTask(context.Background(), task))

	assert.Len(t, f.publisher.extractionEvents(), 1, "redelivery must not publish a second event")
}

func TestExtractionWorker_DownloadFailurePublishesFailureTerminus(t *testing.T) {
	f := newExtractionFixture(t, &stubEngine{})
	f.blobs.downloadErr = errors.New("storage unavailable")

	doc := &models.Document{ID: uuid.New(), Bucket: "documents", ObjectKey: "k",
		Status: models.DocStatusNew, Version: 1}
	f.store.seed(doc)

	err := f.worker.ProcessTask(context.Background(), createdTask(t, queue.DocumentCreatedPayload{
		DocumentID: doc.ID.String(), Bucket: "documents", ObjectKey: "k",
	}))
	require.NoError(t, err, "a failure terminus is an acknowledged outcome")

	events := f.publisher.extractionEvents()
	require.Len(t, events, 1)
	assert.Equal(t, queue.StatusFailure, events[0].Status)
	assert.Contains(t, events[0].Reason, "download content")
}

func TestExtractionWorker_UnsupportedContentPublishesFailure(t *testing.T) {
	f := newExtractionFixture(t, &stubEngine{})

	doc := &models.Document{ID: uuid.New(), Bucket: "documents", ObjectKey: "k",
		Status: models.DocStatusNew, Version: 1}
	f.store.seed(doc)
	f.blobs.put("documents", "k", []byte("plain text, not a document scan"))

	err := f.worker.ProcessTask(context.Background(), createdTask(t, queue.DocumentCreatedPayload{
		DocumentID: doc.ID.String(), Bucket: "documents", ObjectKey: "k", ContentType: "text/plain",
	}))
	require.NoError(t, err)

	events := f.publisher.extractionEvents()
	require.Len(t, events, 1)
	assert.Equal(t, queue.StatusFailure, events[0].Status)
	assert.Contains(t, events[0].Reason, "unsupported content type")
}

func TestExtractionWorker_PublishFailureReleasesClaim(t *testing.T) {
	engine := &stubEngine{text: "page text", confidence: 90}
	f := newExtractionFixture(t, engine)

	doc := &models.Document{ID: uuid.New(), Bucket: "documents", ObjectKey: "k",
		Status: models.DocStatusNew, Version: 1}
	f.store.seed(doc)
	f.blobs.put("documents", "k", pngBytes)

	task := createdTask(t, queue.DocumentCreatedPayload{
		DocumentID: doc.ID.String(), Bucket: "documents", ObjectKey: "k", ContentType: "image/png",
	})

	f.publisher.publishErr = errors.New("broker down")
	err := f.worker.ProcessTask(context.Background(), task)
	require.Error(t, err, "a transport failure must go back to the broker")

	// Redelivery after the broker recovers must reprocess, not be absorbed
	// as a duplicate.
	f.publisher.publishErr = nil
	require.NoError(t, f.worker.ProcessTask(context.Background(), task))
	assert.Len(t, f.publisher.extractionEvents(), 1)
}
