/**
 * Task consumer
 *
 * Runs the asynq worker server: dispatches evaluation and ingestion
 * tasks to the processor, applies exponential retry backoff, and maps
 * non-retryable pipeline errors to immediate failure.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arjun-kshirsagar/annotex/internal/config"
	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
	"github.com/arjun-kshirsagar/annotex/internal/processor"
)

// Processor handles the pipelines behind the consumer's task types
type Processor interface {
	ProcessEvaluation(ctx context.Context, jobID string) (*processor.Summary, error)
	ProcessModelAnswerIngestion(ctx context.Context, modelAnswerID string) error
	MarkJobFailed(ctx context.Context, jobID, message string) error
}

// Consumer runs the worker server
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor Processor
}

// NewConsumer creates a consumer bound to the processor
func NewConsumer(cfg *config.Config, proc Processor) (*Consumer, error) {
	opts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	baseDelay := time.Duration(cfg.RetryBaseDelay) * time.Second
	maxDelay := time.Duration(cfg.RetryMaxDelay) * time.Second

	server := asynq.NewServer(opts, asynq.Config{
		Concurrency:    cfg.WorkerConcurrency,
		RetryDelayFunc: backoffDelayFunc(baseDelay, maxDelay),
		Logger:         asynqLogger{},
	})

	c := &Consumer{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: proc,
	}
	c.mux.HandleFunc(TypeEvaluationProcess, c.handleEvaluation)
	c.mux.HandleFunc(TypeModelAnswerIngest, c.handleIngestion)

	return c, nil
}

// backoffDelayFunc doubles the base delay per retry up to a cap
func backoffDelayFunc(base, max time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		delay := base
		for i := 0; i < n; i++ {
			delay *= 2
			if delay >= max {
				return max
			}
		}
		if delay > max {
			delay = max
		}
		return delay
	}
}

// handleEvaluation runs the evaluation pipeline for one task
func (c *Consumer) handleEvaluation(ctx context.Context, task *asynq.Task) error {
	var payload EvaluationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid evaluation payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("evaluation payload missing job_id: %w", asynq.SkipRetry)
	}

	summary, err := c.processor.ProcessEvaluation(ctx, payload.JobID)
	if err != nil {
		return c.handlePipelineError(ctx, payload.JobID, err)
	}

	log.Printf("[Job %s] Task complete: %d segments, %d unscored", payload.JobID, summary.SegmentCount, summary.Unscored)
	return nil
}

// handleIngestion runs OCR and segmentation for a model answer task
func (c *Consumer) handleIngestion(ctx context.Context, task *asynq.Task) error {
	var payload IngestionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid ingestion payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ModelAnswerID == "" {
		return fmt.Errorf("ingestion payload missing model_answer_id: %w", asynq.SkipRetry)
	}

	if err := c.processor.ProcessModelAnswerIngestion(ctx, payload.ModelAnswerID); err != nil {
		if !apperrors.IsRetryable(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// handlePipelineError records the failure on the job row, then reports
// the error back to asynq. The row goes to failed with the error
// message immediately so its state is never stale during the backoff
// window; a retried attempt flips it back to processing.
func (c *Consumer) handlePipelineError(ctx context.Context, jobID string, pipelineErr error) error {
	if err := c.processor.MarkJobFailed(ctx, jobID, pipelineErr.Error()); err != nil {
		log.Printf("[Job %s] Failed to mark job failed: %v", jobID, err)
	}

	if !apperrors.IsRetryable(pipelineErr) {
		return fmt.Errorf("%v: %w", pipelineErr, asynq.SkipRetry)
	}
	return pipelineErr
}

// Run starts the worker server and blocks until shutdown
func (c *Consumer) Run() error {
	return c.server.Run(c.mux)
}

// Shutdown stops the worker server gracefully
func (c *Consumer) Shutdown() {
	c.server.Shutdown()
}

// asynqLogger adapts asynq's logger interface onto the standard logger
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { log.Println(append([]interface{}{"[Queue DEBUG]"}, args...)...) }
func (asynqLogger) Info(args ...interface{})  { log.Println(append([]interface{}{"[Queue INFO]"}, args...)...) }
func (asynqLogger) Warn(args ...interface{})  { log.Println(append([]interface{}{"[Queue WARN]"}, args...)...) }
func (asynqLogger) Error(args ...interface{}) { log.Println(append([]interface{}{"[Queue ERROR]"}, args...)...) }
func (asynqLogger) Fatal(args ...interface{}) { log.Println(append([]interface{}{"[Queue FATAL]"}, args...)...) }
