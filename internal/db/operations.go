package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jcieslar/webhooks/internal/courier"
	"github.com/jcieslar/webhooks/internal/fsm"
)

// ErrOrderNotFound indicates no order matches the identifier or ID.
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderExists indicates an order with the identifier is already registered.
var ErrOrderExists = errors.New("order already exists")

// Order is a parcel delivery order tracked by the courier.
type Order struct {
	ID           int64
	Identifier   string // courier-side order identifier
	CurrentState string
	Signature    courier.MaybeSignature
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LogEntry records one observed or backfilled transition of an order.
// RecordedAt comes from the courier, not the local clock.
type LogEntry struct {
	ID         int64
	OrderID    int64
	State      string
	RecordedAt time.Time
	Signature  courier.MaybeSignature
	CreatedAt  time.Time
}

// CreateOrder registers an order at the created state.
func (db *DB) CreateOrder(ctx context.Context, identifier string) (*Order, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO orders (identifier, current_state) VALUES (?, ?)
	`, identifier, fsm.OrderStateCreated)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrOrderExists
		}
		return nil, fmt.Errorf("creating order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting order id: %w", err)
	}

	return db.GetOrderByID(ctx, id)
}

// FindOrderByIdentifier returns the order with the courier identifier.
func (db *DB) FindOrderByIdentifier(ctx context.Context, identifier string) (*Order, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, identifier, current_state, signature_name, signature_url, created_at, updated_at
		FROM orders WHERE identifier = ?
	`, identifier)
	return scanOrder(row)
}

// GetOrderByID returns an order by ID.
func (db *DB) GetOrderByID(ctx context.Context, orderID int64) (*Order, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, identifier, current_state, signature_name, signature_url, created_at, updated_at
		FROM orders WHERE id = ?
	`, orderID)
	return scanOrder(row)
}

// ListLogs returns the order's log in insertion order.
func (db *DB) ListLogs(ctx context.Context, orderID int64) ([]LogEntry, error) {
	return listLogs(ctx, db.DB, orderID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func listLogs(ctx context.Context, q queryer, orderID int64) ([]LogEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, state, recorded_at, signature_name, signature_url, created_at
		FROM order_logs WHERE order_id = ? ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying order logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []LogEntry
	for rows.Next() {
		var e LogEntry
		var name, url sql.NullString
		if err := rows.Scan(&e.ID, &e.OrderID, &e.State, &e.RecordedAt, &name, &url, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order log: %w", err)
		}
		e.RecordedAt = e.RecordedAt.UTC()
		e.Signature = signatureFromColumns(name, url)
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order logs: %w", err)
	}
	return logs, nil
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var name, url sql.NullString
	err := row.Scan(&o.ID, &o.Identifier, &o.CurrentState, &name, &url, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}
	o.Signature = signatureFromColumns(name, url)
	return &o, nil
}

func signatureFromColumns(name, url sql.NullString) courier.MaybeSignature {
	if !name.Valid && !url.Valid {
		return courier.None()
	}
	if name.String == "" && url.String == "" {
		return courier.None()
	}
	return courier.Some(courier.Signature{Name: name.String, URL: url.String})
}

func signatureColumns(sig courier.MaybeSignature) (sql.NullString, sql.NullString) {
	s, ok := sig.Get()
	if !ok {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: s.Name, Valid: s.Name != ""}, sql.NullString{String: s.URL, Valid: s.URL != ""}
}

// isUniqueViolation checks if the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	// SQLite unique constraint error contains "UNIQUE constraint failed"
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
