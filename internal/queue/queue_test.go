package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

func TestEnqueueWithRetrySucceedsFirstTry(t *testing.T) {
	q := new(MockQueue)
	task := NewIngestTask(nil)
	q.On("Enqueue", mock.Anything, task).Return(nil).Once()

	if err := EnqueueWithRetry(context.Background(), q, task, 3, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.AssertNumberOfCalls(t, "Enqueue", 1)
}

func TestEnqueueWithRetryRetriesThenSucceeds(t *testing.T) {
	q := new(MockQueue)
	task := NewIngestTask(nil)
	q.On("Enqueue", mock.Anything, task).Return(errors.New("nats down")).Once()
	q.On("Enqueue", mock.Anything, task).Return(nil).Once()

	if err := EnqueueWithRetry(context.Background(), q, task, 3, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.AssertNumberOfCalls(t, "Enqueue", 2)
}

func TestEnqueueWithRetryExhaustsAttempts(t *testing.T) {
	q := new(MockQueue)
	task := NewIngestTask(nil)
	q.On("Enqueue", mock.Anything, task).Return(errors.New("nats down"))

	if err := EnqueueWithRetry(context.Background(), q, task, 3, time.Millisecond); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	q.AssertNumberOfCalls(t, "Enqueue", 3)
}

func TestNewIngestTaskAssignsID(t *testing.T) {
	task := NewIngestTask([]byte(`{"ids":["a"]}`))
	if task.Type != TaskTypeIngest {
		t.Errorf("type = %s, want %s", task.Type, TaskTypeIngest)
	}
	if task.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected non-nil task id")
	}
}
