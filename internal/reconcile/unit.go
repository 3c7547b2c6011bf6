package reconcile

import (
	"context"
	"time"

	"github.com/jcieslar/webhooks/internal/courier"
	"github.com/jcieslar/webhooks/internal/db"
)

// Unit is the mutable view of one order during a unit of work.
type Unit interface {
	Order() db.Order
	State() string
	PreviousState() string
	SetState(state string)
	StateChanged() bool
	SetSignature(sig courier.MaybeSignature)
	Logs() []db.LogEntry
	HasLogState(state string) bool
	AppendLog(state string, recordedAt time.Time, sig courier.MaybeSignature) (db.LogEntry, error)
}

// Store resolves orders and runs units of work against them.
type Store interface {
	FindOrderByIdentifier(ctx context.Context, identifier string) (*db.Order, error)
	WithOrder(ctx context.Context, orderID int64, fn func(*db.OrderTx) error) error
}

var (
	_ Unit  = (*db.OrderTx)(nil)
	_ Store = (*db.DB)(nil)
)
