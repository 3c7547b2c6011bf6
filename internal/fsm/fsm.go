package fsm

// Order lifecycle states reported by the courier.
const (
	OrderStateCreated        = "created"
	OrderStateDispatched     = "dispatched"
	OrderStateCancelled      = "cancelled"
	OrderStatePickupFailed   = "pickup_failed"
	OrderStatePickedUp       = "picked_up"
	OrderStateDeliveryFailed = "delivery_failed"
	OrderStateDelivered      = "delivered"
	OrderStateReturned       = "returned"
)

// Phases of a single reconciliation unit of work.
const (
	UnitStateReceived   = "received"
	UnitStateAccepted   = "accepted"
	UnitStateDiscarded  = "discarded"
	UnitStateBackfilled = "backfilled"
	UnitStateApplied    = "applied"
	UnitStateCommitted  = "committed"
	UnitStateFailed     = "failed"
)

const (
	UnitEventAccept   = "accept"
	UnitEventDiscard  = "discard"
	UnitEventBackfill = "backfill"
	UnitEventApply    = "apply"
	UnitEventCommit   = "commit"
	UnitEventFail     = "fail"
)
