package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/docpipeline/internal/config"
)

// Publisher is the stage-facing side of the queue client. Workers depend on
// this interface so tests can capture published events.
type Publisher interface {
	PublishDocumentCreated(payload DocumentCreatedPayload) error
	PublishExtractionCompleted(payload ExtractionCompletedPayload) error
	PublishSummaryResult(payload SummaryResultPayload) error
}

type Client struct {
	client      *asynq.Client
	maxRetry    int
	taskTimeout time.Duration
}

func NewClient(cfg config.RedisConfig, pipeline config.PipelineConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		maxRetry:    pipeline.MaxRetry,
		taskTimeout: pipeline.TaskTimeout,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) PublishDocumentCreated(payload DocumentCreatedPayload) error {
	return c.enqueue(TypeDocumentCreated, QueueExtraction, payload)
}

func (c *Client) PublishExtractionCompleted(payload ExtractionCompletedPayload) error {
	return c.enqueue(TypeExtractionCompleted, QueueSummarization, payload)
}

func (c *Client) PublishSummaryResult(payload SummaryResultPayload) error {
	return c.enqueue(TypeSummaryResult, QueueResults, payload)
}

// enqueue writes the event to its stage queue. Timeout bounds one processing
// attempt; once MaxRetry is exhausted asynq archives the task, which is the
// dead-letter destination (no auto-replay).
func (c *Client) enqueue(taskType, queueName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task,
		asynq.Queue(queueName),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.taskTimeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
