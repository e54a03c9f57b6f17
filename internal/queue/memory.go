package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

var _ Queue = &MemoryQueue{}

// MemoryQueue is a Queue for a single process running both the server and the worker.
type MemoryQueue struct {
	logger *zap.SugaredLogger
	jobs   chan Job
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(logger *zap.SugaredLogger, size int) *MemoryQueue {
	return &MemoryQueue{
		logger: logger,
		jobs:   make(chan Job, size),
	}
}

// Publish never blocks, it returns ErrFull once the buffer is full.
func (q *MemoryQueue) Publish(ctx context.Context, jobs ...Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case q.jobs <- job:
		default:
			return ErrFull
		}
	}
	return nil
}

func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-q.jobs:
			if !ok {
				return ErrClosed
			}
			if err := handler(ctx, job); err != nil {
				q.logger.Warnw("dispatch job failed", "supplier_order_id", job.SupplierOrderID, "error", err)
			}
		}
	}
}

// Len is the number of jobs waiting to be consumed.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
