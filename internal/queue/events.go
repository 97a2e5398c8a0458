/**
 * Job status events
 *
 * Publishes job lifecycle transitions on a Redis pub/sub channel so
 * API services can stream progress to clients. Publishing is best
 * effort: a failed publish is logged and the pipeline continues.
 */

package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventChannel is the pub/sub channel for job status events
const EventChannel = "annotex:job-events"

// StatusEvent is the wire format of one job status transition
type StatusEvent struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventPublisher publishes job status events to Redis
type EventPublisher struct {
	client *redis.Client
}

// NewEventPublisher creates a publisher from a Redis URL
func NewEventPublisher(redisURL string) (*EventPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &EventPublisher{client: redis.NewClient(opts)}, nil
}

// PublishStatus broadcasts a job status transition. Failures are
// logged, never returned.
func (e *EventPublisher) PublishStatus(ctx context.Context, jobID, status, message string) {
	event := StatusEvent{
		JobID:     jobID,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Events] Failed to marshal status event for job %s: %v", jobID, err)
		return
	}

	if err := e.client.Publish(ctx, EventChannel, payload).Err(); err != nil {
		log.Printf("[Events] Failed to publish status event for job %s: %v", jobID, err)
	}
}

// Close releases the Redis connection
func (e *EventPublisher) Close() error {
	return e.client.Close()
}
