// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/util"
	"github.com/cockroachdb/cascades/pkg/util/syncutil"
	"github.com/google/btree"
)

// GroupID identifies a memo group. Groups are numbered from 1; 0 means
// "unknown group".
type GroupID = opt.GroupID

// RequiredID identifies a set of required physical properties interned by
// the memo. IDs are assigned in interning order, starting at MinRequiredID.
type RequiredID int32

// MinRequiredID is the ID of the empty set of required properties. It is
// always the first set interned by a memo.
const MinRequiredID RequiredID = 1

// GroupExpr is a member of a memo group. Its children are groups rather than
// expressions, so a single GroupExpr stands for every expression tree that
// can be built by picking a member of each child group.
type GroupExpr struct {
	// group is the group that the expression belongs to. It is updated when
	// that group is merged into another.
	group GroupID

	// ord is the position of the expression within its group.
	ord int

	op       opt.Operator
	private  opt.Private
	children []GroupID

	// applied is the set of rules that have been applied to the expression.
	// A rule is applied to an expression at most once.
	applied util.FastIntSet
}

// Op returns the operator of the expression.
func (e *GroupExpr) Op() opt.Operator { return e.op }

// Private returns the payload of the expression. It may be nil.
func (e *GroupExpr) Private() opt.Private { return e.private }

// ChildCount returns the number of child groups.
func (e *GroupExpr) ChildCount() int { return len(e.children) }

// Child returns the nth child group.
func (e *GroupExpr) Child(nth int) GroupID { return e.children[nth] }

// Group returns the group that the expression belongs to.
func (e *GroupExpr) Group() GroupID { return e.group }

// Ordinal returns the position of the expression within its group. Ordinals
// break ties between expressions of equal cost.
func (e *GroupExpr) Ordinal() int { return e.ord }

// IsLogical returns true if the expression has a logical operator.
func (e *GroupExpr) IsLogical() bool { return e.op.IsLogical() }

// IsPhysical returns true if the expression has a physical operator.
func (e *GroupExpr) IsPhysical() bool { return e.op.IsPhysical() }

// HasApplied returns true if the rule was applied to the expression.
func (e *GroupExpr) HasApplied(rule opt.RuleName) bool {
	return e.applied.Contains(int(rule))
}

// MarkApplied records that the rule was applied to the expression. Applying
// a rule twice to the same expression is a contract violation.
func (e *GroupExpr) MarkApplied(rule opt.RuleName) {
	if e.applied.Contains(int(rule)) {
		panic(opterrors.RuleContractViolationf("%s was already applied to %s", rule, e))
	}
	e.applied.Add(int(rule))
}

// AppliedRules returns the set of rules that have been applied.
func (e *GroupExpr) AppliedRules() util.FastIntSet {
	return e.applied.Copy()
}

// String returns the expression in the form "(inner-join G1 G2 [...])".
func (e *GroupExpr) String() string {
	var buf bytes.Buffer
	e.format(&buf, nil)
	return buf.String()
}

func (e *GroupExpr) format(buf *bytes.Buffer, md *opt.Metadata) {
	fmt.Fprintf(buf, "(%s", e.op)
	for _, c := range e.children {
		fmt.Fprintf(buf, " G%d", c)
	}
	if e.private != nil {
		buf.WriteByte(' ')
		if md != nil {
			FormatPrivate(buf, e.op, e.private, md)
		} else {
			buf.WriteString(e.private.Key())
		}
	}
	buf.WriteByte(')')
}

// Winner is the lowest cost way found so far to produce the rows of a group
// with a given set of required physical properties. It is either a physical
// member of the group, or an enforcer placed on top of the same group.
type Winner struct {
	Required RequiredID

	// Expr is the winning physical member. It is nil when the winner is an
	// enforcer, or when no plan was found.
	Expr *GroupExpr

	// Enforcer is the enforcer operator, if the winner is an enforcer.
	Enforcer        opt.Operator
	EnforcerPrivate opt.Private

	// ChildRequired holds the properties required of each child group. An
	// enforcer has a single child: its own group.
	ChildRequired []RequiredID

	// Provided are the properties that the winner's output has.
	Provided physical.Provided

	// Cost is the cost of the whole subtree rooted at the winner.
	Cost Cost

	// Complete is set once all candidates for the required properties have
	// been considered. A complete winner never changes.
	Complete bool
}

// Feasible returns true if a plan was found.
func (w *Winner) Feasible() bool {
	return w.Expr != nil || w.Enforcer != opt.UnknownOp
}

// IsEnforcer returns true if the winner is an enforcer.
func (w *Winner) IsEnforcer() bool {
	return w.Enforcer != opt.UnknownOp
}

// Op returns the operator of the winning expression or enforcer.
func (w *Winner) Op() opt.Operator {
	if w.Expr != nil {
		return w.Expr.op
	}
	return w.Enforcer
}

// Private returns the payload of the winning expression or enforcer.
func (w *Winner) Private() opt.Private {
	if w.Expr != nil {
		return w.Expr.private
	}
	return w.EnforcerPrivate
}

// tieBreak orders candidates of equal cost. Members come first, in ordinal
// order, followed by enforcers in operator order.
func (w *Winner) tieBreak() int {
	if w.Expr != nil {
		return w.Expr.ord
	}
	return 1<<20 + int(w.Enforcer)
}

// beats returns true if the candidate should replace the current winner.
func (w *Winner) beats(other *Winner) bool {
	if !other.Feasible() {
		return w.Feasible()
	}
	if w.Cost.Less(other.Cost) {
		return true
	}
	if other.Cost.Less(w.Cost) {
		return false
	}
	return w.tieBreak() < other.tieBreak()
}

// Group is a set of logically equivalent expressions: every member produces
// the same set of rows. The group also caches, for each set of required
// physical properties that it has been optimized for, the winning plan.
type Group struct {
	id GroupID

	// exprs are the members, in insertion order.
	exprs []*GroupExpr

	// logical are the properties shared by every member. They are derived
	// once, from the first member.
	logical props.Relational

	// version is incremented every time the group gains members.
	version int

	// exploredRound and implemented record the progress of the search over
	// the group.
	exploredRound int
	implemented   bool

	mu struct {
		syncutil.RWMutex
		winners *btree.BTreeG[*Winner]
	}
}

func newGroup(id GroupID) *Group {
	g := &Group{id: id}
	g.mu.winners = btree.NewG[*Winner](8, func(a, b *Winner) bool {
		return a.Required < b.Required
	})
	return g
}

// ID returns the group's id.
func (g *Group) ID() GroupID { return g.id }

// ExprCount returns the number of members.
func (g *Group) ExprCount() int { return len(g.exprs) }

// Expr returns the member at the given ordinal.
func (g *Group) Expr(ord int) *GroupExpr { return g.exprs[ord] }

// FirstExpr returns the member that created the group.
func (g *Group) FirstExpr() *GroupExpr { return g.exprs[0] }

// Relational returns the logical properties of the group.
func (g *Group) Relational() *props.Relational { return &g.logical }

// Version returns a counter that increases every time the group gains
// members.
func (g *Group) Version() int { return g.version }

// ExploredInRound returns true if the group was explored in the given
// exploration round.
func (g *Group) ExploredInRound(round int) bool { return g.exploredRound >= round }

// SetExploredInRound records that the group was explored in the round.
func (g *Group) SetExploredInRound(round int) { g.exploredRound = round }

// Implemented returns true once the implementation rules were applied to the
// group's logical members.
func (g *Group) Implemented() bool { return g.implemented }

// SetImplemented marks the group as implemented.
func (g *Group) SetImplemented() { g.implemented = true }

// Winner returns the winner for the required properties, if the group was
// optimized for them.
func (g *Group) Winner(required RequiredID) (*Winner, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mu.winners.Get(&Winner{Required: required})
}

// UpdateWinner offers a candidate for the required properties. The
// candidate replaces the current winner if it is cheaper, or equally cheap
// and earlier in the group. It returns true if the candidate won. Offering
// a candidate for completed properties is a contract violation.
func (g *Group) UpdateWinner(candidate *Winner) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	cur, ok := g.mu.winners.Get(candidate)
	if ok && cur.Complete {
		panic(opterrors.RuleContractViolationf(
			"winner of G%d for required id %d is already complete", g.id, candidate.Required))
	}
	if !candidate.Feasible() || (ok && !candidate.beats(cur)) {
		return false
	}
	c := *candidate
	c.Complete = false
	g.mu.winners.ReplaceOrInsert(&c)
	return true
}

// CompleteWinner marks the optimization of the group for the required
// properties as finished, and returns the final winner. A winner with no
// plan is recorded if no candidate was found.
func (g *Group) CompleteWinner(required RequiredID) *Winner {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.mu.winners.Get(&Winner{Required: required})
	if !ok {
		w = &Winner{Required: required, Cost: MaxCost}
		g.mu.winners.ReplaceOrInsert(w)
	}
	w.Complete = true
	return w
}

// ForEachWinner calls fn for every winner, in increasing order of required
// properties id.
func (g *Group) ForEachWinner(fn func(w *Winner)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.mu.winners.Ascend(func(w *Winner) bool {
		fn(w)
		return true
	})
}

// WinnerCount returns the number of required property sets that the group
// has been optimized for.
func (g *Group) WinnerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mu.winners.Len()
}
