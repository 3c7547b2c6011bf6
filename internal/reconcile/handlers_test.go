package reconcile

import (
	"testing"
	"time"

	"github.com/jcieslar/webhooks/internal/courier"
	"github.com/jcieslar/webhooks/internal/db"
	"github.com/jcieslar/webhooks/internal/fsm"
	"github.com/jcieslar/webhooks/internal/notify"
)

type fakeUnit struct {
	order    db.Order
	previous string
	logs     []db.LogEntry
}

func newFakeUnit(state string) *fakeUnit {
	return &fakeUnit{
		order:    db.Order{ID: 11, Identifier: "TMZ-FAKE", CurrentState: state},
		previous: state,
	}
}

func (f *fakeUnit) Order() db.Order       { return f.order }
func (f *fakeUnit) State() string         { return f.order.CurrentState }
func (f *fakeUnit) PreviousState() string { return f.previous }
func (f *fakeUnit) SetState(state string) { f.order.CurrentState = state }
func (f *fakeUnit) StateChanged() bool    { return f.order.CurrentState != f.previous }
func (f *fakeUnit) Logs() []db.LogEntry   { return append([]db.LogEntry(nil), f.logs...) }

func (f *fakeUnit) SetSignature(sig courier.MaybeSignature) {
	f.order.Signature = sig
}

func (f *fakeUnit) HasLogState(state string) bool {
	for _, e := range f.logs {
		if e.State == state {
			return true
		}
	}
	return false
}

func (f *fakeUnit) AppendLog(state string, recordedAt time.Time, sig courier.MaybeSignature) (db.LogEntry, error) {
	e := db.LogEntry{ID: int64(len(f.logs) + 1), OrderID: f.order.ID, State: state, RecordedAt: recordedAt, Signature: sig}
	f.logs = append(f.logs, e)
	return e, nil
}

func kinds(effects []notify.SideEffect) []notify.Kind {
	out := make([]notify.Kind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

func TestHandlers_SideEffects(t *testing.T) {
	recordedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	pickupSig := courier.Some(courier.Signature{Name: "Front desk", URL: "https://cdn.example/p.png"})

	tests := []struct {
		name      string
		previous  string
		ev        courier.Event
		wantKinds []notify.Kind
	}{
		{
			name:      "first cancellation notifies",
			previous:  fsm.OrderStateDispatched,
			ev:        courier.Event{State: fsm.OrderStateCancelled, RecordedAt: recordedAt},
			wantKinds: []notify.Kind{notify.KindCancellationConfirmation},
		},
		{
			name:      "repeated cancellation is silent",
			previous:  fsm.OrderStateCancelled,
			ev:        courier.Event{State: fsm.OrderStateCancelled, RecordedAt: recordedAt},
			wantKinds: []notify.Kind{},
		},
		{
			name:     "pickup failed sender not at home",
			previous: fsm.OrderStateDispatched,
			ev: courier.Event{State: fsm.OrderStatePickupFailed, RecordedAt: recordedAt, Events: []courier.SubEvent{
				{Type: ReasonSenderNotAtHome, CurrentState: fsm.OrderStatePickupFailed},
			}},
			wantKinds: []notify.Kind{notify.KindCourierFailedToLocateAddress},
		},
		{
			name:     "pickup failed any other reason",
			previous: fsm.OrderStateDispatched,
			ev: courier.Event{State: fsm.OrderStatePickupFailed, RecordedAt: recordedAt, Events: []courier.SubEvent{
				{Type: "dispatch", CurrentState: fsm.OrderStateDispatched},
				{Type: "packages_were_not_ready", CurrentState: fsm.OrderStatePickupFailed},
			}},
			wantKinds: []notify.Kind{notify.KindPackagesNotReady},
		},
		{
			name:      "picked up without tracking",
			previous:  fsm.OrderStateDispatched,
			ev:        courier.Event{State: fsm.OrderStatePickedUp, RecordedAt: recordedAt, PickupSignature: pickupSig},
			wantKinds: []notify.Kind{notify.KindPickupConfirmation},
		},
		{
			name:      "picked up with real time tracking",
			previous:  fsm.OrderStateDispatched,
			ev:        courier.Event{State: fsm.OrderStatePickedUp, RecordedAt: recordedAt, RealTimeTrackingAvailable: true},
			wantKinds: []notify.Kind{notify.KindPickupConfirmation, notify.KindLocationTracking},
		},
		{
			name:      "delivered logs only",
			previous:  fsm.OrderStatePickedUp,
			ev:        courier.Event{State: fsm.OrderStateDelivered, RecordedAt: recordedAt},
			wantKinds: []notify.Kind{},
		},
		{
			name:      "delivery failed logs only",
			previous:  fsm.OrderStatePickedUp,
			ev:        courier.Event{State: fsm.OrderStateDeliveryFailed, RecordedAt: recordedAt},
			wantKinds: []notify.Kind{},
		},
		{
			name:      "returned logs only",
			previous:  fsm.OrderStateDeliveryFailed,
			ev:        courier.Event{State: fsm.OrderStateReturned, RecordedAt: recordedAt},
			wantKinds: []notify.Kind{},
		},
		{
			name:      "unrecognized state logs only",
			previous:  fsm.OrderStatePickedUp,
			ev:        courier.Event{State: "held_at_depot", RecordedAt: recordedAt},
			wantKinds: []notify.Kind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newFakeUnit(tt.previous)
			ev := tt.ev
			u.SetState(ev.State)

			effects, err := handlerFor(ev.State)(u, &ev)
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}

			got := kinds(effects)
			if len(got) != len(tt.wantKinds) {
				t.Fatalf("effects = %v, want %v", got, tt.wantKinds)
			}
			for i := range got {
				if got[i] != tt.wantKinds[i] {
					t.Errorf("effect %d = %s, want %s", i, got[i], tt.wantKinds[i])
				}
			}
			for _, e := range effects {
				if e.OrderID != u.order.ID {
					t.Errorf("effect order ID = %d, want %d", e.OrderID, u.order.ID)
				}
			}

			if len(u.logs) != 1 {
				t.Fatalf("got %d log entries, want exactly 1", len(u.logs))
			}
			if u.logs[0].State != ev.State || !u.logs[0].RecordedAt.Equal(recordedAt) {
				t.Errorf("log entry = %s at %v", u.logs[0].State, u.logs[0].RecordedAt)
			}
		})
	}
}

func TestHandlePickupFailed_CapturesSignature(t *testing.T) {
	u := newFakeUnit(fsm.OrderStateDispatched)
	sig := courier.Some(courier.Signature{Name: "Neighbour", URL: "https://cdn.example/n.png"})
	ev := &courier.Event{
		State:      fsm.OrderStatePickupFailed,
		RecordedAt: time.Now(),
		Events:     []courier.SubEvent{{Type: "closed", CurrentState: fsm.OrderStatePickupFailed, Signature: sig}},
	}

	if _, err := handlePickupFailed(u, ev); err != nil {
		t.Fatalf("handlePickupFailed() error: %v", err)
	}
	if got := u.logs[0].Signature.OrEmpty(); got.Name != "Neighbour" {
		t.Errorf("log signature = %+v", got)
	}
}

func TestHandlePickupFailed_MissingSubEvent(t *testing.T) {
	u := newFakeUnit(fsm.OrderStateDispatched)
	ev := &courier.Event{
		State:      fsm.OrderStatePickupFailed,
		RecordedAt: time.Now(),
		Events:     []courier.SubEvent{{Type: "dispatch", CurrentState: fsm.OrderStateDispatched}},
	}

	_, err := handlePickupFailed(u, ev)
	if !IsMalformed(err) {
		t.Fatalf("error = %v, want MalformedEventError", err)
	}
	if len(u.logs) != 0 {
		t.Errorf("got %d log entries, want none before failing", len(u.logs))
	}
}
