package workers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docpipeline/internal/idempotency"
	"github.com/nikhilbhutani/docpipeline/internal/models"
	"github.com/nikhilbhutani/docpipeline/internal/queue"
)

type resultFixture struct {
	worker *ResultWorker
	guard  *idempotency.MemoryGuard
	store  *memStore
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	guard := idempotency.NewMemoryGuard(time.Hour)
	t.Cleanup(guard.Close)
	store := newMemStore()
	return &resultFixture{
		worker: NewResultWorker(guard, store),
		guard:  guard,
		store:  store,
	}
}

func resultTask(t *testing.T, payload queue.SummaryResultPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeSummaryResult, data)
}

func TestResultWorker_SuccessCompletesDocument(t *testing.T) {
	f := newResultFixture(t)

	doc := &models.Document{ID: uuid.New(), Status: models.DocStatusSummarizing, Version: 3}
	f.store.seed(doc)

	err := f.worker.ProcessTask(context.Background(), resultTask(t, queue.SummaryResultPayload{
		MessageID:  queue.ResultMessageID(doc.ID.String()),
		DocumentID: doc.ID.String(),
		Status:     queue.StatusSuccess,
		Summary:    "An annual report covering revenue and headcount.",
	}))
	require.NoError(t, err)

	stored := f.store.get(doc.ID)
	assert.Equal(t, models.DocStatusCompleted, stored.Status)
	require.NotNil(t, stored.Summary)
	assert.Equal(t, "An annual report covering revenue and headcount.", *stored.Summary)
	assert.Equal(t, int64(4), stored.Version)
}

func TestResultWorker_FailureMarksDocumentFailed(t *testing.T) {
	f := newResultFixture(t)

	doc := &models.Document{ID: uuid.New(), Status: models.DocStatusSummarizing, Version: 3}
	f.store.seed(doc)

	err := f.worker.ProcessTask(context.Background(), resultTask(t, queue.SummaryResultPayload{
		DocumentID: doc.ID.String(),
		Status:     queue.StatusFailure,
		Reason:     "extracted text too short: 10 chars, need at least 50",
	}))
	require.NoError(t, err)

	stored := f.store.get(doc.ID)
	assert.Equal(t, models.DocStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "too short")
	assert.Nil(t, stored.Summary)
}

func TestResultWorker_NonexistentDocumentAcknowledged(t *testing.T) {
	f := newResultFixture(t)

	err := f.worker.ProcessTask(context.Background(), resultTask(t, queue.SummaryResultPayload{
		DocumentID: uuid.New().String(),
		Status:     queue.StatusSuccess,
		Summary:    "orphan",
	}))

	assert.NoError(t, err, "a record that can never appear must not requeue forever")
}

func TestResultWorker_CompletedDocumentNeverOverwritten(t *testing.T) {
	f := newResultFixture(t)

	existing := "the first summary"
	doc := &models.Document{ID: uuid.New(), Status: models.DocStatusCompleted,
		Summary: &existing, Version: 4}
	f.store.seed(doc)

	err := f.worker.ProcessTask(context.Background(), resultTask(t, queue.SummaryResultPayload{
		DocumentID: doc.ID.String(),
		Status:     queue.StatusSuccess,
		Summary:    "a late second summary",
	}))
	require.NoError(t, err)

	stored := f.store.get(doc.ID)
	assert.Equal(t, models.DocStatusCompleted, stored.Status)
	assert.Equal(t, "the first summary", *stored.Summary)
	assert.Equal(t, int64(4), stored.Version, "no write may touch a completed record")
}

func TestResultWorker_FailureNeverDowngradesCompleted(t *testing.T) {
	f := newResultFixture(t)

	existing := "kept summary"
	doc := &models.Document{ID: uuid.New(), Status: models.DocStatusCompleted,
		Summary: &existing, Version: 4}
	f.store.seed(doc)

	err := f.worker.ProcessTask(context.Background(), resultTask(t, queue.SummaryResultPayload{
		DocumentID: doc.ID.String(),
		Status:     queue.StatusFailure,
		Reason:     "late failure",
	}))
	require.NoError(t, err)

	stored := f.store.get(doc.ID)
	assert.Equal(t, models.DocStatusCompleted, stored.Status)
	assert.Empty(t, stored.FailureReason)
}

func TestResultWorker_DuplicateDeliveryAbsorbed(t *testing.T) {
	f := newResultFixture(t)

	doc := &models.Document{ID: uuid.New(), Status: models.DocStatusSummarizing, Version: 3}
	f.store.seed(doc)

	task := resultTask(t, queue.SummaryResultPayload{
		DocumentID: doc.ID.String(),
		Status:     queue.StatusSuccess,
		Summary:    "summary",
	})

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))
	versionAfterFirst := f.store.get(doc.ID).Version

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))
	assert.Equal(t, versionAfterFirst, f.store.get(doc.ID).Version, "the duplicate must not write")
}

func TestResultWorker_MalformedPayloadAcknowledged(t *testing.T) {
	f := newResultFixture(t)

	err := f.worker.ProcessTask(context.Background(),
		asynq.NewTask(queue.TypeSummaryResult, []byte("{{")))
	assert.NoError(t, err)
}

func TestResultWorker_InvalidDocumentIDAcknowledged(t *testing.T) {
	f := newResultFixture(t)

	err := f.worker.ProcessTask(context.Background(), resultTask(t, queue.SummaryResultPayload{
		DocumentID: "not-a-uuid",
		Status:     queue.StatusSuccess,
	}))
	assert.NoError(t, err)
}

func TestResultWorker_VersionConflictWithCompletedWinnerAcknowledged(t *testing.T) {
	f := newResultFixture(t)

	// Seed a document whose version will mismatch: simulate a concurrent
	// writer completing it between the read and the write by seeding it
	// completed with a different version than any reader would carry.
	doc := &models.Document{ID: uuid.New(), Status: models.DocStatusSummarizing, Version: 3}
	f.store.seed(doc)

	// First delivery completes the document.
	require.NoError(t, f.worker.ProcessTask(context.Background(), resultTask(t, queue.SummaryResultPayload{
		DocumentID: doc.ID.String(),
		Status:     queue.StatusSuccess,
		Summary:    "winner",
	})))

	// A second delivery with a different message id (fresh claim) reads the
	// completed record and must acknowledge without writing.
	require.NoError(t, f.guard.Release(context.Background(), queue.ResultMessageID(doc.ID.String())))
	require.NoError(t, f.worker.ProcessTask(context.Background(), resultTask(t, queue.SummaryResultPayload{
		DocumentID: doc.ID.String(),
		Status:     queue.StatusSuccess,
		Summary:    "loser",
	})))

	assert.Equal(t, "winner", *f.store.get(doc.ID).Summary)
}
