package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

// State is a card's lifecycle state.
type State string

const (
	StateDraft     State = "draft"
	StateActive    State = "active"
	StateSuspended State = "suspended"
	StateArchived  State = "archived"
)

// AllStates lists the lifecycle states.
func AllStates() []State {
	return []State{StateDraft, StateActive, StateSuspended, StateArchived}
}

// transitions is the full adjacency table. Self-transitions are absent on purpose
// and therefore rejected.
var transitions = map[State][]State{
	StateDraft:     {StateActive, StateArchived},
	StateActive:    {StateSuspended, StateArchived},
	StateSuspended: {StateActive, StateArchived},
	StateArchived:  {StateDraft},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Targets returns the states reachable from s in one transition.
func (s State) Targets() []State {
	out := make([]State, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// CanTransition reports whether from -> to is in the adjacency table.
func CanTransition(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a business-rule error naming the attempted
// transition and the legal targets when from -> to is not allowed.
func CheckTransition(from, to State) error {
	if !to.Valid() {
		return apperrors.Field("state", "unknown state %q", to)
	}
	if CanTransition(from, to) {
		return nil
	}
	targets := make([]string, 0, len(transitions[from]))
	for _, t := range transitions[from] {
		targets = append(targets, string(t))
	}
	allowed := strings.Join(targets, ", ")
	return apperrors.WithMetadata(
		apperrors.CodeInvalidStateTransition,
		fmt.Sprintf("cannot transition card from %s to %s; allowed targets: [%s]", from, to, allowed),
		map[string]string{"from": string(from), "to": string(to), "allowed": allowed},
	)
}
