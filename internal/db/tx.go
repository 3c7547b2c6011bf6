package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jcieslar/webhooks/internal/courier"
)

// OrderTx is a mutable handle on one order, valid only inside WithOrder.
// State and signature changes are written when the unit of work commits; log
// entries are inserted as they are appended and roll back with the unit.
type OrderTx struct {
	ctx           context.Context
	tx            *sql.Tx
	order         Order
	previousState string
	logs          []LogEntry
	appended      int
	dirty         bool
}

// WithOrder runs fn as one atomic unit of work on the order. Units of work for
// the same order are serialized. Any error returned by fn, or a panic, rolls
// back every change fn made.
func (db *DB) WithOrder(ctx context.Context, orderID int64, fn func(*OrderTx) error) error {
	unlock := db.locks.lock(orderID)
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT id, identifier, current_state, signature_name, signature_url, created_at, updated_at
		FROM orders WHERE id = ?
	`, orderID))
	if err != nil {
		return err
	}

	logs, err := listLogs(ctx, tx, orderID)
	if err != nil {
		return err
	}

	otx := &OrderTx{
		ctx:           ctx,
		tx:            tx,
		order:         *order,
		previousState: order.CurrentState,
		logs:          logs,
	}

	if err := fn(otx); err != nil {
		return err
	}

	if err := otx.save(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Order returns a snapshot of the order including uncommitted changes.
func (t *OrderTx) Order() Order {
	return t.order
}

// State returns the order's current state inside this unit of work.
func (t *OrderTx) State() string {
	return t.order.CurrentState
}

// PreviousState returns the state the order had when the unit of work began.
func (t *OrderTx) PreviousState() string {
	return t.previousState
}

// SetState moves the order to state.
func (t *OrderTx) SetState(state string) {
	if t.order.CurrentState == state {
		return
	}
	t.order.CurrentState = state
	t.dirty = true
}

// StateChanged reports whether the state differs from its value when the unit
// of work began.
func (t *OrderTx) StateChanged() bool {
	return t.order.CurrentState != t.previousState
}

// SetSignature overwrites the order's captured signature. An absent signature
// clears it.
func (t *OrderTx) SetSignature(sig courier.MaybeSignature) {
	t.order.Signature = sig
	t.dirty = true
}

// Logs returns the order's log, including entries appended in this unit.
func (t *OrderTx) Logs() []LogEntry {
	out := make([]LogEntry, len(t.logs))
	copy(out, t.logs)
	return out
}

// Appended returns the entries appended in this unit of work.
func (t *OrderTx) Appended() []LogEntry {
	out := make([]LogEntry, t.appended)
	copy(out, t.logs[len(t.logs)-t.appended:])
	return out
}

// HasLogState reports whether any log entry records state.
func (t *OrderTx) HasLogState(state string) bool {
	for _, e := range t.logs {
		if e.State == state {
			return true
		}
	}
	return false
}

// AppendLog adds a log entry for the order.
func (t *OrderTx) AppendLog(state string, recordedAt time.Time, sig courier.MaybeSignature) (LogEntry, error) {
	name, url := signatureColumns(sig)
	recordedAt = recordedAt.UTC()

	result, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO order_logs (order_id, state, recorded_at, signature_name, signature_url)
		VALUES (?, ?, ?, ?, ?)
	`, t.order.ID, state, recordedAt, name, url)
	if err != nil {
		return LogEntry{}, fmt.Errorf("appending order log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return LogEntry{}, fmt.Errorf("getting order log id: %w", err)
	}

	entry := LogEntry{
		ID:         id,
		OrderID:    t.order.ID,
		State:      state,
		RecordedAt: recordedAt,
		Signature:  sig,
	}
	t.logs = append(t.logs, entry)
	t.appended++
	return entry, nil
}

func (t *OrderTx) save() error {
	if !t.dirty {
		return nil
	}
	name, url := signatureColumns(t.order.Signature)
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE orders
		SET current_state = ?, signature_name = ?, signature_url = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, t.order.CurrentState, name, url, t.order.ID)
	if err != nil {
		return fmt.Errorf("saving order: %w", err)
	}
	return nil
}
