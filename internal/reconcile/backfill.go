package reconcile

import (
	"fmt"

	"github.com/jcieslar/webhooks/internal/courier"
	"github.com/jcieslar/webhooks/internal/db"
	"github.com/jcieslar/webhooks/internal/fsm"
)

// History entry types reported by the courier.
const (
	HistoryTypePickUp = "pick_up"
)

// backfillRule infers a log entry from one history element.
type backfillRule struct {
	state string
	apply func(u Unit, entry courier.HistoryEntry) error
}

// backfills lists every history type that can be backfilled. Types missing
// here are skipped.
var backfills = map[string]backfillRule{
	HistoryTypePickUp: {state: fsm.OrderStatePickedUp, apply: backfillPickUp},
}

// logStateFor maps a history type to the log state it stands for. Types
// without a rule are compared by name.
func logStateFor(historyType string) string {
	if rule, ok := backfills[historyType]; ok {
		return rule.state
	}
	return historyType
}

// MissingHistory returns the history entries whose state has no log entry yet,
// in history order. Entries standing for the exclude state are left out, and
// each state is reported at most once.
func MissingHistory(logs []db.LogEntry, history []courier.HistoryEntry, exclude string) []courier.HistoryEntry {
	logged := make(map[string]bool, len(logs))
	for _, e := range logs {
		logged[e.State] = true
	}

	var missing []courier.HistoryEntry
	for _, entry := range history {
		state := logStateFor(entry.Type)
		if state == exclude || logged[state] {
			continue
		}
		logged[state] = true
		missing = append(missing, entry)
	}
	return missing
}

// backfill logs every missing history state that has a rule and returns the
// states it added.
func backfill(u Unit, ev *courier.Event) ([]string, error) {
	var added []string
	for _, entry := range MissingHistory(u.Logs(), ev.History, ev.State) {
		rule, ok := backfills[entry.Type]
		if !ok {
			continue
		}
		if err := rule.apply(u, entry); err != nil {
			return nil, err
		}
		added = append(added, rule.state)
	}
	return added, nil
}

func backfillPickUp(u Unit, entry courier.HistoryEntry) error {
	if entry.RecordedAt == nil {
		return &MalformedEventError{State: fsm.OrderStatePickedUp, Reason: "pick_up history entry has no recorded_at"}
	}
	u.SetSignature(entry.Signature)
	if _, err := u.AppendLog(fsm.OrderStatePickedUp, *entry.RecordedAt, entry.Signature); err != nil {
		return fmt.Errorf("backfilling picked_up: %w", err)
	}
	return nil
}
