package queue

// Task types double as channel names. Each stage consumes exactly one type
// and publishes the next one, so a document moves through the chain strictly
// in order even though workers are concurrent.
const (
	TypeDocumentCreated     = "document:created"
	TypeExtractionCompleted = "extraction:completed"
	TypeSummaryResult       = "summary:result"
)

// Per-stage asynq queues. Each gets its own weight in the worker server.
const (
	QueueExtraction    = "extraction"
	QueueSummarization = "summarization"
	QueueResults       = "results"
)

// Stage outcome carried in event payloads.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Message IDs are deterministic (stage name + document id, never random) so a
// redelivered message reuses the same idempotency key.
func CreatedMessageID(documentID string) string   { return "created-" + documentID }
func ExtractMessageID(documentID string) string   { return "extract-" + documentID }
func SummarizeMessageID(documentID string) string { return "summarize-" + documentID }
func ResultMessageID(documentID string) string    { return "result-" + documentID }

// DocumentCreatedPayload announces a freshly persisted document.
type DocumentCreatedPayload struct {
	MessageID   string `json:"message_id"`
	DocumentID  string `json:"document_id"`
	Title       string `json:"title"`
	Bucket      string `json:"bucket"`
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type,omitempty"`
}

// PageResult is the outcome of extracting a single page. A failed page keeps
// its slot with empty text and zero confidence rather than aborting the
// document.
type PageResult struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	DurationMs int64   `json:"duration_ms"`
}

// ExtractionCompletedPayload is the extraction stage terminus. It is
// published for total failures too, never silently dropped.
type ExtractionCompletedPayload struct {
	MessageID  string       `json:"message_id"`
	DocumentID string       `json:"document_id"`
	Title      string       `json:"title"`
	Status     string       `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	Text       string       `json:"text,omitempty"`
	Confidence float64      `json:"confidence"`
	TotalPages int          `json:"total_pages"`
	Language   string       `json:"language,omitempty"`
	Pages      []PageResult `json:"pages,omitempty"`
}

// SummaryResultPayload is consumed by the result sink.
type SummaryResultPayload struct {
	MessageID  string `json:"message_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
}
