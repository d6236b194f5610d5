// Package encounter tracks the phase progression of a scripted boss encounter.
//
// A Definition is an immutable graph of named states built once per encounter
// module. A Machine walks one Definition for one live encounter, advancing on
// world snapshots through conditional transitions (checked first, in declaration
// order) and timed transitions.
package encounter

import (
	"time"

	"github.com/cory-johannsen/raidplan/internal/game/world"
	"github.com/cory-johannsen/raidplan/internal/scripting"
)

// Ended is the id of the built-in terminal state entered when the encounter
// subject leaves the snapshot or dies. Definitions may target it but not declare it.
const Ended = "ended"

// TrivialState is the id of the single state of an encounter whose timing is not modeled.
const TrivialState = "trivial"

// State is one node of the encounter graph.
type State struct {
	ID    string
	Phase string
	// Timeout is the expected time in state, measured from entry; 0 = open-ended.
	// With Next set it is a timed transition, without it only a hint.
	Timeout     time.Duration
	Next        string
	Transitions []Transition
	Terminal    bool
	Comment     string
}

// PhaseName returns Phase, or ID when the state declares no phase.
func (s *State) PhaseName() string {
	if s.Phase != "" {
		return s.Phase
	}
	return s.ID
}

// Timed reports whether the state leaves on its own once Timeout elapses.
func (s *State) Timed() bool {
	return s.Timeout > 0 && s.Next != ""
}

// Transition is a conditional edge. When is evaluated on every advance while the
// owning state is current.
type Transition struct {
	Name string
	To   string
	When Condition
}

// Scripts evaluates named Lua predicates.
type Scripts interface {
	CallPredicate(encounter, hook string, in scripting.Input) bool
}

// Context is what a Condition sees on one advance.
type Context struct {
	Snap        world.Snapshot
	Subject     *world.Actor
	Encounter   string
	State       *State
	TimeInState time.Duration
	// Elapsed is the time since the encounter started.
	Elapsed     time.Duration
	Scripts     Scripts
}

// Step records one transition taken by a Machine.
type Step struct {
	From string
	To   string
	At   time.Duration
	// Cause is the transition name, "timeout", or "subject gone".
	Cause string
}

var endedState = &State{ID: Ended, Phase: Ended, Terminal: true}
