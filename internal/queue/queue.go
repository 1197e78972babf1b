package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"spend-insight/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

// TaskTypeIngest re-embeds expense records into the vector index. An
// empty payload means a full re-ingest; a payload with ids limits the
// run to those records.
const TaskTypeIngest TaskType = "ingest"

// Task represents a unit of work shared across services.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := q.Enqueue(ctx, task); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}

// NewIngestTask builds an ingest task with a fresh id.
func NewIngestTask(payload []byte) Task {
	return Task{ID: uuid.New(), Type: TaskTypeIngest, Payload: payload}
}
