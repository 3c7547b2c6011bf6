// Package notify turns reconciliation side effects into jobs on an
// asynchronous task queue. Delivery of email and SMS happens in the workers
// consuming the queue, never here.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind names the job a worker runs for an order.
type Kind string

const (
	KindCancellationConfirmation     Kind = "mailer.cancellation_confirmation"
	KindCourierFailedToLocateAddress Kind = "mailer.courier_failed_to_locate_address"
	KindPackagesNotReady             Kind = "mailer.packages_not_ready"
	KindPickupConfirmation           Kind = "mailer.pickup_confirmation"
	KindLocationTracking             Kind = "sms.location_tracking"
)

// ErrQueueNotConfigured indicates an enqueuer without a backing queue.
var ErrQueueNotConfigured = errors.New("notify: queue is not configured")

// SideEffect is a notification requested by a transition handler.
type SideEffect struct {
	Kind    Kind  `json:"kind"`
	OrderID int64 `json:"order_id"`
}

// Job is a side effect ready to enqueue.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	OrderID    int64     `json:"order_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJob assigns an ID and enqueue time to a side effect.
func NewJob(effect SideEffect, now time.Time) Job {
	return Job{
		ID:         uuid.NewString(),
		Kind:       effect.Kind,
		OrderID:    effect.OrderID,
		EnqueuedAt: now.UTC(),
	}
}

// Enqueuer hands a job to an asynchronous queue. Enqueue returns once the
// queue has accepted the job; it does not wait for the job to run.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}
