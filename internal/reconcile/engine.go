// Package reconcile applies courier notifications to orders. Each notification
// runs as one unit of work: the ordering guard drops stale notifications, the
// missing-state reconciler backfills states implied by the attached history,
// and the state's transition handler logs the transition and chooses the side
// effects. Side effects are dispatched only after the unit of work commits.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcieslar/webhooks/internal/courier"
	"github.com/jcieslar/webhooks/internal/db"
	"github.com/jcieslar/webhooks/internal/fsm"
	"github.com/jcieslar/webhooks/internal/metrics"
	"github.com/jcieslar/webhooks/internal/notify"
)

// Outcome of a processed notification.
const (
	OutcomeApplied = "applied"
	OutcomeStale   = "stale"
)

// Result describes what one notification did to its order.
type Result struct {
	Outcome       string              `json:"outcome"`
	OrderID       int64               `json:"order_id"`
	Identifier    string              `json:"identifier"`
	PreviousState string              `json:"previous_state"`
	State         string              `json:"state"`
	Backfilled    []string            `json:"backfilled,omitempty"`
	Effects       []notify.SideEffect `json:"effects,omitempty"`
	Enqueued      int                 `json:"enqueued"`
	DispatchError string              `json:"dispatch_error,omitempty"`
}

// Engine reconciles notifications against stored orders.
type Engine struct {
	store      Store
	sequence   fsm.Sequence
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

func NewEngine(store Store, sequence fsm.Sequence, dispatcher *notify.Dispatcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		sequence:   sequence,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Reconcile applies ev to its order. A stale notification is not an error: it
// commits as a no-op and reports OutcomeStale. Side-effect dispatch failures
// are reported on the Result and never undo the committed state.
func (e *Engine) Reconcile(ctx context.Context, ev *courier.Event) (*Result, error) {
	start := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	order, err := e.store.FindOrderByIdentifier(ctx, ev.Identifier)
	if errors.Is(err, db.ErrOrderNotFound) {
		metrics.ReconcileTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, ev.Identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("finding order: %w", err)
	}

	log := e.logger.With("order_id", order.ID, "identifier", ev.Identifier, "state", ev.State)

	unit := fsm.NewUnitStateMachine()
	unit.OnEnter("", func(from, to string) {
		log.Debug("unit of work phase", "from", from, "to", to)
	})

	result := &Result{OrderID: order.ID, Identifier: ev.Identifier}
	var effects []notify.SideEffect

	err = e.store.WithOrder(ctx, order.ID, func(tx *db.OrderTx) error {
		var err error
		effects, err = e.apply(ctx, unit, tx, ev, result)
		return err
	})
	if err != nil {
		if !unit.Terminal() {
			_ = unit.Event(ctx, fsm.UnitEventFail)
		}
		outcome := "failed"
		if IsMalformed(err) {
			outcome = "malformed"
		}
		metrics.ReconcileTotal.WithLabelValues(outcome).Inc()
		log.Error("reconciliation failed", "error", err)
		return nil, err
	}
	if err := unit.Event(ctx, fsm.UnitEventCommit); err != nil {
		return nil, fmt.Errorf("committing unit of work: %w", err)
	}

	metrics.ReconcileTotal.WithLabelValues(result.Outcome).Inc()
	for _, state := range result.Backfilled {
		metrics.BackfilledTotal.WithLabelValues(state).Inc()
	}

	if result.Outcome == OutcomeStale {
		log.Info("stale notification discarded", "current_state", result.State)
		return result, nil
	}

	result.Effects = effects
	if len(effects) > 0 && e.dispatcher != nil {
		// The unit has committed; a caller hanging up must not drop its jobs.
		stats := e.dispatcher.Dispatch(context.WithoutCancel(ctx), effects)
		result.Enqueued = stats.Enqueued
		if stats.Err != nil {
			result.DispatchError = stats.Err.Error()
		}
	}

	log.Info("notification applied",
		"previous_state", result.PreviousState,
		"backfilled", result.Backfilled,
		"effects", len(effects),
		"enqueued", result.Enqueued)
	return result, nil
}

// apply runs inside the unit of work. Any returned error rolls it back.
func (e *Engine) apply(ctx context.Context, unit *fsm.UnitStateMachine, u Unit, ev *courier.Event, result *Result) ([]notify.SideEffect, error) {
	result.PreviousState = u.State()
	result.Backfilled = nil

	if !e.sequence.ShouldApply(e.guardState(u), ev.State) {
		result.Outcome = OutcomeStale
		result.State = u.State()
		return nil, unit.Event(ctx, fsm.UnitEventDiscard)
	}
	if err := unit.Event(ctx, fsm.UnitEventAccept); err != nil {
		return nil, err
	}

	u.SetState(ev.State)

	added, err := backfill(u, ev)
	if err != nil {
		return nil, err
	}
	result.Backfilled = added
	if err := unit.Event(ctx, fsm.UnitEventBackfill); err != nil {
		return nil, err
	}

	effects, err := handlerFor(ev.State)(u, ev)
	if err != nil {
		return nil, err
	}
	if err := unit.Event(ctx, fsm.UnitEventApply); err != nil {
		return nil, err
	}

	result.Outcome = OutcomeApplied
	result.State = u.State()
	return effects, nil
}

// guardState is the state the ordering guard compares against. An unranked
// current state falls back to the furthest ranked state in the order's log, so
// an unrecognized notification cannot reset the order's progress.
func (e *Engine) guardState(u Unit) string {
	current := u.State()
	if e.sequence.Known(current) {
		return current
	}
	logged := make([]string, 0, len(u.Logs()))
	for _, entry := range u.Logs() {
		logged = append(logged, entry.State)
	}
	if furthest, ok := e.sequence.Furthest(logged); ok {
		return furthest
	}
	return current
}
