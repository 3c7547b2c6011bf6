package reconcile

import (
	"testing"
	"time"

	"github.com/jcieslar/webhooks/internal/courier"
	"github.com/jcieslar/webhooks/internal/db"
	"github.com/jcieslar/webhooks/internal/fsm"
)

func at(hour int) *time.Time {
	t := time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestMissingHistory(t *testing.T) {
	history := []courier.HistoryEntry{
		{Type: "created", RecordedAt: at(7)},
		{Type: HistoryTypePickUp, RecordedAt: at(9)},
		{Type: "delivered", RecordedAt: at(12)},
	}

	tests := []struct {
		name    string
		logs    []db.LogEntry
		exclude string
		want    []string
	}{
		{
			name:    "nothing logged yet",
			logs:    nil,
			exclude: fsm.OrderStateDelivered,
			want:    []string{"created", HistoryTypePickUp},
		},
		{
			name:    "picked_up already logged",
			logs:    []db.LogEntry{{State: fsm.OrderStatePickedUp}},
			exclude: fsm.OrderStateDelivered,
			want:    []string{"created"},
		},
		{
			name:    "history type is matched through its log state",
			logs:    []db.LogEntry{{State: fsm.OrderStateCreated}, {State: fsm.OrderStatePickedUp}},
			exclude: fsm.OrderStateDelivered,
			want:    nil,
		},
		{
			name:    "notification state is excluded",
			logs:    []db.LogEntry{{State: fsm.OrderStateCreated}},
			exclude: fsm.OrderStatePickedUp,
			want:    []string{"delivered"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MissingHistory(tt.logs, history, tt.exclude)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries %v, want %v", len(got), got, tt.want)
			}
			for i := range tt.want {
				if got[i].Type != tt.want[i] {
					t.Errorf("entry %d type = %q, want %q", i, got[i].Type, tt.want[i])
				}
			}
		})
	}
}

func TestMissingHistory_DuplicateTypesReportedOnce(t *testing.T) {
	history := []courier.HistoryEntry{
		{Type: HistoryTypePickUp, RecordedAt: at(9)},
		{Type: HistoryTypePickUp, RecordedAt: at(10)},
	}
	got := MissingHistory(nil, history, fsm.OrderStateDelivered)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if !got[0].RecordedAt.Equal(*at(9)) {
		t.Errorf("kept entry at %v, want the first one", got[0].RecordedAt)
	}
}

func TestBackfill_OnlyRegisteredTypes(t *testing.T) {
	u := newFakeUnit(fsm.OrderStateDispatched)
	sig := courier.Some(courier.Signature{Name: "Reception", URL: "https://cdn.example/s.png"})
	ev := &courier.Event{
		State: fsm.OrderStateDelivered,
		History: []courier.HistoryEntry{
			{Type: "created", RecordedAt: at(7)},
			{Type: "unknown_scan", RecordedAt: at(8)},
			{Type: HistoryTypePickUp, RecordedAt: at(9), Signature: sig},
		},
	}

	added, err := backfill(u, ev)
	if err != nil {
		t.Fatalf("backfill() error: %v", err)
	}
	if len(added) != 1 || added[0] != fsm.OrderStatePickedUp {
		t.Fatalf("added = %v, want [picked_up]", added)
	}
	if len(u.logs) != 1 {
		t.Fatalf("got %d log entries, want 1", len(u.logs))
	}
	entry := u.logs[0]
	if entry.State != fsm.OrderStatePickedUp || !entry.RecordedAt.Equal(*at(9)) {
		t.Errorf("entry = %s at %v", entry.State, entry.RecordedAt)
	}
	if entry.Signature.OrEmpty().Name != "Reception" {
		t.Errorf("entry signature = %+v", entry.Signature.OrEmpty())
	}
	if u.order.Signature.OrEmpty().Name != "Reception" {
		t.Errorf("order signature = %+v, want copied from history", u.order.Signature.OrEmpty())
	}
}

func TestBackfill_PickUpWithoutTimestampIsMalformed(t *testing.T) {
	u := newFakeUnit(fsm.OrderStateDispatched)
	ev := &courier.Event{
		State:   fsm.OrderStateDelivered,
		History: []courier.HistoryEntry{{Type: HistoryTypePickUp}},
	}

	_, err := backfill(u, ev)
	if !IsMalformed(err) {
		t.Fatalf("error = %v, want MalformedEventError", err)
	}
	if len(u.logs) != 0 {
		t.Errorf("got %d log entries, want 0", len(u.logs))
	}
}
