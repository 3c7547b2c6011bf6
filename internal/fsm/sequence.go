package fsm

import "sort"

// Sequence ranks lifecycle states by how far along an order is. The ranking is
// a business priority, not a transition graph: it only answers whether one
// state is behind another.
type Sequence struct {
	ranks map[string]int
}

// DefaultSequence returns the courier's standard ranking.
func DefaultSequence() Sequence {
	return NewSequence(map[string]int{
		OrderStateCreated:        0,
		OrderStateDispatched:     1,
		OrderStateCancelled:      2,
		OrderStatePickupFailed:   3,
		OrderStatePickedUp:       4,
		OrderStateDeliveryFailed: 5,
		OrderStateDelivered:      6,
		OrderStateReturned:       7,
	})
}

// NewSequence builds a Sequence from a state to rank mapping. The mapping is
// copied, so later changes to ranks do not affect the Sequence.
func NewSequence(ranks map[string]int) Sequence {
	copied := make(map[string]int, len(ranks))
	for state, rank := range ranks {
		copied[state] = rank
	}
	return Sequence{ranks: copied}
}

// Rank returns the rank of state and whether the state is known.
func (s Sequence) Rank(state string) (int, bool) {
	rank, ok := s.ranks[state]
	return rank, ok
}

// Known reports whether state has a rank.
func (s Sequence) Known(state string) bool {
	_, ok := s.ranks[state]
	return ok
}

// States returns all ranked states, lowest rank first.
func (s Sequence) States() []string {
	states := make([]string, 0, len(s.ranks))
	for state := range s.ranks {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		ri, rj := s.ranks[states[i]], s.ranks[states[j]]
		if ri != rj {
			return ri < rj
		}
		return states[i] < states[j]
	})
	return states
}

// ShouldApply is the ordering guard. A candidate state is stale, and must be
// discarded, only when it ranks strictly behind the current state. Equal ranks
// are applied so that repeated notifications still log and backfill. A state
// outside the table cannot be compared and is applied.
func (s Sequence) ShouldApply(current, candidate string) bool {
	currentRank, ok := s.ranks[current]
	if !ok {
		return true
	}
	candidateRank, ok := s.ranks[candidate]
	if !ok {
		return true
	}
	return currentRank <= candidateRank
}

// Furthest returns the highest-ranked state in states. ok is false when none of
// them is ranked.
func (s Sequence) Furthest(states []string) (state string, ok bool) {
	best := -1
	for _, st := range states {
		rank, known := s.ranks[st]
		if known && rank > best {
			best, state, ok = rank, st, true
		}
	}
	return state, ok
}
