package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jcieslar/webhooks/internal/config"
	"github.com/jcieslar/webhooks/internal/db"
	"github.com/jcieslar/webhooks/internal/fsm"
	"github.com/jcieslar/webhooks/internal/logging"
	"github.com/jcieslar/webhooks/internal/metrics"
	"github.com/jcieslar/webhooks/internal/notify"
	"github.com/jcieslar/webhooks/internal/reconcile"
)

// app holds the dependencies shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.DB
	queue  notify.Enqueuer
	closeQ func() error
	engine *reconcile.Engine
}

// loadApp loads config, opens and migrates the database and wires the
// reconciliation engine to the configured task queue.
func loadApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	queue, closeQ := newQueue(cfg.Queue, logger)
	dispatcher := notify.NewDispatcher(queue, logger).WithObserver(func(kind notify.Kind, err error) {
		metrics.ObserveSideEffect(string(kind), err)
	})

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     database,
		queue:  queue,
		closeQ: closeQ,
		engine: reconcile.NewEngine(database, fsm.DefaultSequence(), dispatcher, logger),
	}, nil
}

func (a *app) Close() error {
	qErr := a.closeQ()
	dbErr := a.db.Close()
	if qErr != nil {
		return fmt.Errorf("closing queue: %w", qErr)
	}
	return dbErr
}

func newQueue(cfg config.QueueConfig, logger *slog.Logger) (notify.Enqueuer, func() error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case config.QueueDriverKafka:
		q := notify.NewKafkaQueue(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Async, logger)
		return q, q.Close
	case config.QueueDriverMemory:
		return notify.NewMemoryQueue(), noop
	default:
		return notify.NewLogQueue(logger), noop
	}
}
