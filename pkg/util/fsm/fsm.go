// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package fsm provides an interface for defining and working with
// finite-state machines.
//
// The package is split into two main types: Transitions and Machine.
// Transitions is an immutable State graph with Events acting as the directed
// edges between different States. The graph is built by calling Compile on a
// Pattern, which is meant to be done at init time. This pattern is a mapping
// from current States to Events that may be applied on those states to
// resulting Transitions.
//
// Machine is an instantiation of a finite-state machine. It is given a
// Transitions graph when it is created to specify its State graph. Since the
// Transition graph is itself state-less, multiple Machines can be powered by
// the same graph simultaneously.
package fsm

import (
	"context"

	"github.com/cockroachdb/errors"
)

// State is a node in a Machine's transition graph.
type State interface {
	State()
}

// ExtendedState is extra state in a Machine that does not contribute to state
// transition decisions, but that can be affected by a state transition.
type ExtendedState interface{}

// Event is something that happens to a Machine which may or may not trigger a
// state transition.
type Event interface {
	Event()
}

// EventPayload is extra payload on an Event that does not contribute to state
// transition decisions, but that can be affected by a state transition.
type EventPayload interface{}

// Args is a structure containing the arguments passed to Transition actions.
type Args struct {
	Ctx      context.Context
	Prev     State
	Extended ExtendedState
	Payload  EventPayload
}

// Transition is a Machine's response to an Event applied to a State. It may
// transition the machine to a new State and it may also perform an action on
// the Machine's ExtendedState.
type Transition struct {
	Next   State
	Action func(Args) error
	// Description, if set, is reflected in the DOT diagram.
	Description string
}

// TransitionNotFoundError is returned from Machine.Apply when the Event cannot
// be applied to the current State.
type TransitionNotFoundError struct {
	State State
	Event Event
}

func (e TransitionNotFoundError) Error() string {
	return "event " + eventName(e.Event) + " inappropriate in current state " + stateName(e.State)
}

// Pattern is a mapping from (State,Event) pairs to Transitions.
type Pattern map[State]map[Event]Transition

// Transitions is a set of state transitions compiled from a Pattern, forming
// a State graph with Events acting as the directed edges between different
// States.
type Transitions struct {
	expanded Pattern
}

// Compile creates a set of state Transitions from a Pattern. The pattern is
// copied, so it's expected that Compile is called once for each transition
// graph and assigned to a static variable. This variable can then be given to
// MakeMachine, which is cheap.
func Compile(p Pattern) Transitions {
	xp := make(Pattern, len(p))
	for s, sm := range p {
		if s == nil {
			panic("nil State in pattern")
		}
		xsm := make(map[Event]Transition, len(sm))
		for e, t := range sm {
			if e == nil {
				panic("nil Event in pattern")
			}
			xsm[e] = t
		}
		xp[s] = xsm
	}
	return Transitions{expanded: xp}
}

func (t Transitions) apply(a Args, e Event) (State, error) {
	sm, ok := t.expanded[a.Prev]
	if !ok {
		return a.Prev, &TransitionNotFoundError{State: a.Prev, Event: e}
	}
	tr, ok := sm[e]
	if !ok {
		return a.Prev, &TransitionNotFoundError{State: a.Prev, Event: e}
	}
	if tr.Action != nil {
		if err := tr.Action(a); err != nil {
			return a.Prev, err
		}
	}
	return tr.Next, nil
}

// Machine encapsulates a State with a set of State transitions. It reacts to
// Events, adjusting its internal State according to its Transition graph and
// perforing actions on its ExtendedState accordingly.
type Machine struct {
	t   Transitions
	cur State
	es  ExtendedState
}

// MakeMachine returns a new Machine with the specified transition graph,
// starting State, and ExtendedState.
func MakeMachine(t Transitions, start State, es ExtendedState) Machine {
	return Machine{t: t, cur: start, es: es}
}

// Apply applies the Event to the state Machine.
func (m *Machine) Apply(ctx context.Context, e Event) error {
	return m.ApplyWithPayload(ctx, e, nil)
}

// ApplyWithPayload applies the Event to the state Machine, passing along the
// EventPayload to the state transition's Action function.
func (m *Machine) ApplyWithPayload(ctx context.Context, e Event, b EventPayload) error {
	next, err := m.t.apply(Args{
		Ctx:      ctx,
		Prev:     m.cur,
		Extended: m.es,
		Payload:  b,
	}, e)
	if err != nil {
		var tnf *TransitionNotFoundError
		if errors.As(err, &tnf) {
			return errors.AssertionFailedf("%s", tnf.Error())
		}
		return err
	}
	m.cur = next
	return nil
}

// CurState returns the current state.
func (m *Machine) CurState() State {
	return m.cur
}
