/**
 * Task producer
 *
 * Enqueues evaluation and ingestion tasks onto the asynq queue. Task
 * IDs are derived from the record IDs so re-enqueueing the same job is
 * a no-op while the first task is still pending.
 */

package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeEvaluationProcess runs the evaluation pipeline for a job
	TypeEvaluationProcess = "evaluation:process"
	// TypeModelAnswerIngest runs OCR and segmentation over a model answer
	TypeModelAnswerIngest = "evaluation:ingest-model-answer"
)

// EvaluationPayload is the payload of an evaluation task
type EvaluationPayload struct {
	JobID string `json:"job_id"`
}

// IngestionPayload is the payload of a model answer ingestion task
type IngestionPayload struct {
	ModelAnswerID string `json:"model_answer_id"`
}

// Producer enqueues pipeline tasks
type Producer struct {
	client     *asynq.Client
	maxRetries int
	timeout    time.Duration
}

// NewProducer creates a producer from a Redis URL
func NewProducer(redisURL string, maxRetries int, timeout time.Duration) (*Producer, error) {
	opts, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &Producer{
		client:     asynq.NewClient(opts),
		maxRetries: maxRetries,
		timeout:    timeout,
	}, nil
}

// EnqueueEvaluation queues the evaluation pipeline for a job
func (p *Producer) EnqueueEvaluation(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}

	payload, err := json.Marshal(EvaluationPayload{JobID: jobID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeEvaluationProcess, payload)
	_, err = p.client.Enqueue(task,
		asynq.TaskID("eval:"+jobID),
		asynq.MaxRetry(p.maxRetries),
		asynq.Timeout(p.timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue evaluation for job %s: %w", jobID, err)
	}
	return nil
}

// EnqueueModelAnswerIngestion queues OCR and segmentation for a model
// answer sheet
func (p *Producer) EnqueueModelAnswerIngestion(modelAnswerID string) error {
	if modelAnswerID == "" {
		return fmt.Errorf("model answer ID is required")
	}

	payload, err := json.Marshal(IngestionPayload{ModelAnswerID: modelAnswerID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeModelAnswerIngest, payload)
	_, err = p.client.Enqueue(task,
		asynq.TaskID("ingest:"+modelAnswerID),
		asynq.MaxRetry(p.maxRetries),
		asynq.Timeout(p.timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue ingestion for model answer %s: %w", modelAnswerID, err)
	}
	return nil
}

// Close releases the queue connection
func (p *Producer) Close() error {
	return p.client.Close()
}
