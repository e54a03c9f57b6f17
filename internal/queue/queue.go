// Package queue carries dispatch jobs from the handlers that create supplier orders to the
// workers that email them.
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Job asks a worker to email one supplier order.
type Job struct {
	SupplierOrderID uuid.UUID `json:"supplier_order_id"`
	OrderID         uuid.UUID `json:"order_id"`
}

// Handler processes a job.  A returned error is logged, the job is not redelivered: the
// supplier order row keeps its state and the worker's recovery pass picks it up again.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	// Publish queues jobs in order.  On ErrFull the jobs before the one that didn't fit are
	// queued, the rest are left to the worker's recovery pass.
	Publish(ctx context.Context, jobs ...Job) error
	// Consume calls handler for every job until ctx is done.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
