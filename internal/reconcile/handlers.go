package reconcile

import (
	"fmt"

	"github.com/jcieslar/webhooks/internal/courier"
	"github.com/jcieslar/webhooks/internal/fsm"
	"github.com/jcieslar/webhooks/internal/notify"
)

// Failure reasons reported on pickup_failed sub-events.
const (
	ReasonSenderNotAtHome = "sender_was_not_at_home"
)

// TransitionHandler logs the notification's transition on u and returns the
// side effects to dispatch once the unit of work commits.
type TransitionHandler func(u Unit, ev *courier.Event) ([]notify.SideEffect, error)

var transitions = map[string]TransitionHandler{
	fsm.OrderStateCancelled:    handleCancelled,
	fsm.OrderStatePickupFailed: handlePickupFailed,
	fsm.OrderStatePickedUp:     handlePickedUp,
	fsm.OrderStateDelivered:    logOnly,
}

// handlerFor returns the handler for state. States without a dedicated
// handler, including unrecognized ones, are only logged.
func handlerFor(state string) TransitionHandler {
	if h, ok := transitions[state]; ok {
		return h
	}
	return logOnly
}

func logOnly(u Unit, ev *courier.Event) ([]notify.SideEffect, error) {
	if err := appendTransition(u, ev, courier.None()); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleCancelled(u Unit, ev *courier.Event) ([]notify.SideEffect, error) {
	if err := appendTransition(u, ev, courier.None()); err != nil {
		return nil, err
	}
	// A repeated cancellation leaves the state unchanged and must not notify twice.
	if !u.StateChanged() {
		return nil, nil
	}
	return []notify.SideEffect{effect(u, notify.KindCancellationConfirmation)}, nil
}

func handlePickupFailed(u Unit, ev *courier.Event) ([]notify.SideEffect, error) {
	sub, ok := ev.FindSubEvent(fsm.OrderStatePickupFailed)
	if !ok {
		return nil, &MalformedEventError{State: fsm.OrderStatePickupFailed, Reason: "no events entry with current_state pickup_failed"}
	}
	if err := appendTransition(u, ev, sub.Signature); err != nil {
		return nil, err
	}
	if sub.Type == ReasonSenderNotAtHome {
		return []notify.SideEffect{effect(u, notify.KindCourierFailedToLocateAddress)}, nil
	}
	return []notify.SideEffect{effect(u, notify.KindPackagesNotReady)}, nil
}

func handlePickedUp(u Unit, ev *courier.Event) ([]notify.SideEffect, error) {
	u.SetSignature(ev.PickupSignature)
	if err := appendTransition(u, ev, ev.PickupSignature); err != nil {
		return nil, err
	}
	effects := []notify.SideEffect{effect(u, notify.KindPickupConfirmation)}
	if ev.RealTimeTrackingAvailable {
		effects = append(effects, effect(u, notify.KindLocationTracking))
	}
	return effects, nil
}

func appendTransition(u Unit, ev *courier.Event, sig courier.MaybeSignature) error {
	if _, err := u.AppendLog(ev.State, ev.RecordedAt, sig); err != nil {
		return fmt.Errorf("logging %s: %w", ev.State, err)
	}
	return nil
}

func effect(u Unit, kind notify.Kind) notify.SideEffect {
	return notify.SideEffect{Kind: kind, OrderID: u.Order().ID}
}
