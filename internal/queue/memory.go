package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// MemoryQueue is a bounded in-memory queue with context-aware operations.
// It backs local end-to-end runs and tests.
type MemoryQueue struct {
	ch      chan fetch.JobMessage
	closeMu sync.Mutex
	closed  bool
	seq     int
}

// NewMemoryQueue constructs a queue with the provided capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{
		ch: make(chan fetch.JobMessage, capacity),
	}
}

// Publish pushes a job into the queue or returns if the context ends.
func (q *MemoryQueue) Publish(ctx context.Context, job fetch.JobMessage) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("publish canceled: %w", ctx.Err())
	case q.ch <- job:
		q.closeMu.Lock()
		q.seq++
		id := fmt.Sprintf("memory-%d", q.seq)
		q.closeMu.Unlock()
		return id, nil
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *MemoryQueue) Dequeue(ctx context.Context) (fetch.JobMessage, error) {
	select {
	case <-ctx.Done():
		return fetch.JobMessage{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return fetch.JobMessage{}, errors.New("queue closed")
		}
		return job, nil
	}
}

// Receive hands each queued job to the handler until the context ends or the
// queue closes.
func (q *MemoryQueue) Receive(ctx context.Context, handle func(context.Context, fetch.JobMessage) error) error {
	for {
		job, err := q.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := handle(ctx, job); err != nil {
			return err
		}
	}
}

// Len reports how many jobs are waiting.
func (q *MemoryQueue) Len() int { return len(q.ch) }

// Close closes the underlying channel for shutdown.
func (q *MemoryQueue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return nil
	}
	close(q.ch)
	q.closed = true
	return nil
}
