// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
)

// optState contains the temporary state of the search for the best plan of
// each group, with respect to each set of required properties. It is
// discarded once optimization is complete; the winners live in the memo.
type optState struct {
	stateMap   map[groupStateKey]*groupState
	stateAlloc groupStateAlloc
}

func (o *optState) init() {
	o.stateMap = make(map[groupStateKey]*groupState)
}

// groupStateKey associates groupState with a group that is being optimized
// with respect to a set of physical properties.
type groupStateKey struct {
	group    memo.GroupID
	required memo.RequiredID
}

// groupState tracks the optimization of one group for one set of required
// properties.
type groupState struct {
	// optimizing is set while the members and enforcers of the group are
	// being costed.
	optimizing bool

	// candidates is the number of candidates, members or enforcers, that were
	// costed. pruned is the number of those abandoned because their children
	// already cost more than the winner.
	candidates int
	pruned     int
}

// lookupOptState looks up the state associated with the given group and
// properties. If no state exists yet, then lookupOptState returns nil.
func (o *optState) lookupOptState(group memo.GroupID, required memo.RequiredID) *groupState {
	return o.stateMap[groupStateKey{group: group, required: required}]
}

// ensureOptState looks up the state associated with the given group and
// properties. If none is associated yet, then ensureOptState allocates new
// state and returns it.
func (o *optState) ensureOptState(group memo.GroupID, required memo.RequiredID) *groupState {
	key := groupStateKey{group: group, required: required}
	state, ok := o.stateMap[key]
	if !ok {
		state = o.stateAlloc.allocate()
		o.stateMap[key] = state
	}
	return state
}

// startOptimizing marks the group as being optimized for the properties. A
// group that requires itself for the same properties would never complete,
// which is a RuleContractViolation.
func (o *optState) startOptimizing(group memo.GroupID, required memo.RequiredID) *groupState {
	state := o.ensureOptState(group, required)
	if state.optimizing {
		panic(opterrors.RuleContractViolationf(
			"G%d is already being optimized for required id %d", group, required))
	}
	state.optimizing = true
	return state
}

// groupStateAlloc allocates pages of groupState structs. This is preferable to
// a slice of groupState structs because pointers are not invalidated when a
// resize occurs, and because there's no need to retain a stable index.
type groupStateAlloc struct {
	page []groupState
}

// allocate returns a pointer to a new, empty groupState struct. The pointer is
// stable, meaning that its location won't change as other groupState structs
// are allocated.
func (a *groupStateAlloc) allocate() *groupState {
	if len(a.page) == 0 {
		a.page = make([]groupState, 8)
	}
	state := &a.page[0]
	a.page = a.page[1:]
	return state
}
