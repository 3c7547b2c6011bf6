package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Stats summarizes one dispatch. Err joins every enqueue failure.
type Stats struct {
	Enqueued int
	Failed   int
	Jobs     []Job
	Err      error
}

// Observer is notified of each enqueue attempt.
type Observer func(kind Kind, err error)

// Dispatcher enqueues side effects after their unit of work has committed.
// Failures are reported in Stats and logged; they never propagate back into
// reconciliation.
type Dispatcher struct {
	queue    Enqueuer
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func NewDispatcher(queue Enqueuer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:  queue,
		logger: logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithObserver sets a hook called after every enqueue attempt.
func (d *Dispatcher) WithObserver(fn Observer) *Dispatcher {
	d.observer = fn
	return d
}

// Dispatch enqueues every effect in order.
func (d *Dispatcher) Dispatch(ctx context.Context, effects []SideEffect) Stats {
	var stats Stats
	for _, effect := range effects {
		job := NewJob(effect, d.now())
		err := d.enqueue(ctx, job)
		if d.observer != nil {
			d.observer(effect.Kind, err)
		}
		if err != nil {
			stats.Failed++
			stats.Err = errors.Join(stats.Err, fmt.Errorf("enqueueing %s for order %d: %w", job.Kind, job.OrderID, err))
			d.logger.Warn("side effect enqueue failed",
				"kind", job.Kind,
				"order_id", job.OrderID,
				"job_id", job.ID,
				"error", err)
			continue
		}
		stats.Enqueued++
		stats.Jobs = append(stats.Jobs, job)
		d.logger.Debug("side effect enqueued",
			"kind", job.Kind,
			"order_id", job.OrderID,
			"job_id", job.ID)
	}
	return stats
}

func (d *Dispatcher) enqueue(ctx context.Context, job Job) error {
	if d == nil || d.queue == nil {
		return ErrQueueNotConfigured
	}
	return d.queue.Enqueue(ctx, job)
}
