package courier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPayload indicates the notification body is not a usable event.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// SubEvent is one entry of the notification's events array.
type SubEvent struct {
	Type         string         `json:"type"`
	CurrentState string         `json:"current_state"`
	Signature    MaybeSignature `json:"signature"`
}

// HistoryEntry is a prior transition the courier believes took place.
type HistoryEntry struct {
	Type       string         `json:"type"`
	RecordedAt *time.Time     `json:"recorded_at"`
	Signature  MaybeSignature `json:"signature"`
}

// Event is a validated state-change notification for one order.
type Event struct {
	Identifier                string
	State                     string
	RecordedAt                time.Time
	RealTimeTrackingAvailable bool
	PickupSignature           MaybeSignature
	Events                    []SubEvent
	History                   []HistoryEntry
}

type payload struct {
	Identifier                string         `json:"identifier"`
	State                     string         `json:"state"`
	RealTimeTrackingAvailable bool           `json:"real_time_tracking_available"`
	PickupSignature           MaybeSignature `json:"pickup_signature"`
	Events                    []SubEvent     `json:"events"`
	History                   []HistoryEntry `json:"history"`
}

// Parse decodes and validates a notification body. The transition time is read
// from the "<state>_at" field matching the notification's state.
func Parse(body []byte) (*Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	p.Identifier = strings.TrimSpace(p.Identifier)
	p.State = strings.TrimSpace(p.State)
	if p.Identifier == "" {
		return nil, fmt.Errorf("%w: identifier is required", ErrInvalidPayload)
	}
	if p.State == "" {
		return nil, fmt.Errorf("%w: state is required", ErrInvalidPayload)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	key := TimestampField(p.State)
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidPayload, key)
	}
	var recordedAt *time.Time
	if err := json.Unmarshal(raw, &recordedAt); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, key, err)
	}
	if recordedAt == nil {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidPayload, key)
	}

	return &Event{
		Identifier:                p.Identifier,
		State:                     p.State,
		RecordedAt:                recordedAt.UTC(),
		RealTimeTrackingAvailable: p.RealTimeTrackingAvailable,
		PickupSignature:           p.PickupSignature,
		Events:                    p.Events,
		History:                   p.History,
	}, nil
}

// TimestampField returns the payload key holding the transition time for state.
func TimestampField(state string) string {
	return state + "_at"
}

// FindSubEvent returns the first sub-event whose current_state matches state.
func (e *Event) FindSubEvent(state string) (SubEvent, bool) {
	for _, sub := range e.Events {
		if sub.CurrentState == state {
			return sub, true
		}
	}
	return SubEvent{}, false
}

// FindHistory returns the first history entry of the given type.
func (e *Event) FindHistory(entryType string) (HistoryEntry, bool) {
	for _, h := range e.History {
		if h.Type == entryType {
			return h, true
		}
	}
	return HistoryEntry{}, false
}
