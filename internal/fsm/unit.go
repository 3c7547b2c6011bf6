package fsm

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
)

// UnitStateMachine tracks the phases of one reconciliation unit of work:
// guard, backfill, transition handling and commit.
type UnitStateMachine struct {
	fsm     *fsm.FSM
	mu      sync.Mutex
	onEnter map[string]func(from, to string)
}

func NewUnitStateMachine() *UnitStateMachine {
	u := &UnitStateMachine{
		onEnter: make(map[string]func(from, to string)),
	}
	u.fsm = fsm.NewFSM(
		UnitStateReceived,
		fsm.Events{
			{Name: UnitEventAccept, Src: []string{UnitStateReceived}, Dst: UnitStateAccepted},
			{Name: UnitEventDiscard, Src: []string{UnitStateReceived}, Dst: UnitStateDiscarded},
			{Name: UnitEventBackfill, Src: []string{UnitStateAccepted}, Dst: UnitStateBackfilled},
			{Name: UnitEventApply, Src: []string{UnitStateBackfilled}, Dst: UnitStateApplied},
			{Name: UnitEventCommit, Src: []string{UnitStateApplied, UnitStateDiscarded}, Dst: UnitStateCommitted},
			{Name: UnitEventFail, Src: []string{UnitStateReceived, UnitStateAccepted, UnitStateBackfilled, UnitStateApplied, UnitStateDiscarded}, Dst: UnitStateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if fn, ok := u.onEnter[e.Dst]; ok {
					fn(e.Src, e.Dst)
				}
				if fn, ok := u.onEnter[""]; ok {
					fn(e.Src, e.Dst)
				}
			},
		},
	)
	return u
}

func (u *UnitStateMachine) Current() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fsm.Current()
}

func (u *UnitStateMachine) Event(ctx context.Context, event string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fsm.Event(ctx, event)
}

func (u *UnitStateMachine) Can(event string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fsm.Can(event)
}

// Terminal reports whether the unit has committed or failed.
func (u *UnitStateMachine) Terminal() bool {
	switch u.Current() {
	case UnitStateCommitted, UnitStateFailed:
		return true
	}
	return false
}

// OnEnter registers fn to run when the unit enters state. An empty state
// registers fn for every transition.
func (u *UnitStateMachine) OnEnter(state string, fn func(from, to string)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onEnter[state] = fn
}
