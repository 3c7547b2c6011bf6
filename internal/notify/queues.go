package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaQueue publishes jobs to a Kafka topic, keyed by order so a worker
// group sees one order's jobs in publish order.
type KafkaQueue struct {
	writer messageWriter
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaQueue returns a queue publishing to topic. By default Enqueue
// returns once every in-sync replica has acknowledged the job. With async set
// it returns as soon as the job is buffered; delivery errors are then only
// logged.
func NewKafkaQueue(brokers []string, topic string, async bool, logger *slog.Logger) *KafkaQueue {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        async,
		BatchTimeout: 10 * time.Millisecond,
	}
	if async && logger != nil {
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("async job delivery failed", "jobs", len(msgs), "error", err)
			}
		}
	}
	return &KafkaQueue{writer: w}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job Job) error {
	if q == nil || q.writer == nil {
		return ErrQueueNotConfigured
	}
	msg, err := jobMessage(job)
	if err != nil {
		return err
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing job: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	if q == nil || q.writer == nil {
		return nil
	}
	return q.writer.Close()
}

func jobMessage(job Job) (kafka.Message, error) {
	value, err := json.Marshal(job)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding job: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(job.OrderID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "job_kind", Value: []byte(job.Kind)},
			{Key: "job_id", Value: []byte(job.ID)},
		},
	}, nil
}

// MemoryQueue keeps jobs in process. Used by tests and one-shot CLI runs.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// FailWith makes every following Enqueue return err. A nil err restores
// normal behaviour.
func (q *MemoryQueue) FailWith(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

// Jobs returns a copy of the queued jobs.
func (q *MemoryQueue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Count returns how many queued jobs have the given kind.
func (q *MemoryQueue) Count(kind Kind) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, job := range q.jobs {
		if job.Kind == kind {
			n++
		}
	}
	return n
}

// LogQueue only logs jobs. It is the default when no broker is configured.
type LogQueue struct {
	logger *slog.Logger
}

func NewLogQueue(logger *slog.Logger) *LogQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogQueue{logger: logger}
}

func (q *LogQueue) Enqueue(_ context.Context, job Job) error {
	q.logger.Info("job queued",
		"job_id", job.ID,
		"kind", job.Kind,
		"order_id", job.OrderID)
	return nil
}
