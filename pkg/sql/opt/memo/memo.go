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
	"github.com/cockroachdb/cascades/pkg/util/buildutil"
	"github.com/cockroachdb/cascades/pkg/util/syncutil"
)

// Memo is a data structure for efficiently storing a forest of expression
// trees. Conceptually, the memo is composed of a numbered set of equivalency
// classes called groups where each group contains a set of logically
// equivalent expressions. Two expressions are considered logically equivalent
// if:
//
//  1. They return the same number and data type of columns. However, order and
//     naming of columns doesn't matter.
//  2. They return the same number of rows, with the same values in each row.
//     However, order of rows doesn't matter.
//
// The different expressions in a single group are called memo expressions
// (GroupExpr). A memo expression has a list of child groups as its children
// rather than a list of individual expressions. The forest is composed of
// every possible combination of parent expression with its children,
// recursively applied.
//
// Memo expressions can be relational (e.g. join) or physical (e.g. hash
// join). Enforcers are never stored in the memo; a group records them as
// winners for the required properties that they establish.
//
// The memo interns every memo expression by its operator, private key and
// (canonical) child groups, so an expression is stored at most once. When a
// rule adds to a group an expression that already lives in another group,
// the two groups are proven equivalent and are merged.
//
// Insertion is single-threaded. Readers may run concurrently with each
// other, as long as no insertion is in progress.
type Memo struct {
	md     *opt.Metadata
	budget Budget

	// groups is indexed by GroupID. groups[0] is unused.
	groups []*Group

	// parent is the union-find forest of merged groups, indexed by GroupID. A
	// live group is its own parent.
	parent []GroupID

	// exprMap interns every memo expression by its key.
	exprMap map[string]*GroupExpr

	liveGroups int
	exprCount  int

	rootGroup    GroupID
	rootRequired RequiredID

	lpb logicalPropsBuilder

	required struct {
		syncutil.Mutex
		byKey map[string]RequiredID
		// list is indexed by RequiredID. list[0] is unused.
		list []*physical.Required
	}
}

// Budget limits the size of the memo. Zero means no limit.
type Budget struct {
	MaxGroups int
	MaxExprs  int
}

// Init initializes a new empty memo instance, or resets existing state so it
// can be reused.
func (m *Memo) Init(md *opt.Metadata, budget Budget) {
	*m = Memo{
		md:      md,
		budget:  budget,
		groups:  make([]*Group, 1, 64),
		parent:  make([]GroupID, 1, 64),
		exprMap: make(map[string]*GroupExpr),
	}
	m.lpb.init(md)
	m.required.byKey = make(map[string]RequiredID)
	m.required.list = make([]*physical.Required, 1, 8)
	if id := m.InternRequired(physical.MinRequired); id != MinRequiredID {
		panic(opterrors.RuleContractViolationf("empty required properties interned as %d", id))
	}
}

// Metadata returns the metadata instance associated with the memo.
func (m *Memo) Metadata() *opt.Metadata {
	return m.md
}

// find returns the live group that id was merged into. It does not compress
// paths, so that it is safe to call from concurrent readers; merge flattens
// the forest instead.
func (m *Memo) find(id GroupID) GroupID {
	for m.parent[id] != id {
		id = m.parent[id]
	}
	return id
}

// Group returns the group with the given id. If the group was merged into
// another, the surviving group is returned.
func (m *Memo) Group(id GroupID) *Group {
	return m.groups[m.find(id)]
}

// IsLive returns false if the expression was dropped from its group as a
// duplicate after a merge.
func (m *Memo) IsLive(e *GroupExpr) bool {
	g := m.Group(e.group)
	return e.ord < len(g.exprs) && g.exprs[e.ord] == e
}

// GroupCount returns the number of live groups.
func (m *Memo) GroupCount() int {
	return m.liveGroups
}

// MaxGroupID returns the id of the most recently created group. Groups
// created later have higher ids.
func (m *Memo) MaxGroupID() GroupID {
	return GroupID(len(m.groups) - 1)
}

// ExprCount returns the number of memo expressions in live groups.
func (m *Memo) ExprCount() int {
	return m.exprCount
}

// Groups returns an iterator over the live groups, in increasing order of id.
// The iterator can be restarted by calling it again.
func (m *Memo) Groups() func(yield func(*Group) bool) {
	return func(yield func(*Group) bool) {
		for id := 1; id < len(m.groups); id++ {
			if m.parent[id] != GroupID(id) {
				continue
			}
			if !yield(m.groups[id]) {
				return
			}
		}
	}
}

// SetRoot stores the root group and the properties required of it.
func (m *Memo) SetRoot(group GroupID, required *physical.Required) {
	m.rootGroup = group
	m.rootRequired = m.InternRequired(required)
}

// RootGroup returns the root group of the memo.
func (m *Memo) RootGroup() GroupID {
	if m.rootGroup == 0 {
		return 0
	}
	return m.find(m.rootGroup)
}

// RootRequired returns the properties required of the root group.
func (m *Memo) RootRequired() RequiredID {
	return m.rootRequired
}

// InternRequired returns the id of the given required properties, assigning
// a new id if they were not seen before. It is safe for concurrent use.
func (m *Memo) InternRequired(required *physical.Required) RequiredID {
	key := required.Key()
	m.required.Lock()
	defer m.required.Unlock()
	if id, ok := m.required.byKey[key]; ok {
		return id
	}
	id := RequiredID(len(m.required.list))
	m.required.byKey[key] = id
	cpy := *required
	m.required.list = append(m.required.list, &cpy)
	return id
}

// LookupRequired returns the required properties with the given id.
func (m *Memo) LookupRequired(id RequiredID) *physical.Required {
	m.required.Lock()
	defer m.required.Unlock()
	return m.required.list[id]
}

// Insert adds an expression tree to the memo and returns the group of its
// root. Every subexpression is interned: a subexpression that is already in
// the memo is not added again, and its existing group is used.
func (m *Memo) Insert(e *opt.Expr) GroupID {
	if e.IsGroupRef() {
		return m.find(e.Group)
	}
	children := m.insertChildren(e)
	id, _ := m.insertExpr(e.Op, e.Private, children, 0)
	return id
}

// InsertInto adds the root of an expression tree to an existing group, and
// the rest of the tree to new or existing groups. It returns true if the
// group gained a new member. A rule output that turns out to already be in
// another group proves the two groups equivalent, and they are merged. If
// the other group is an ancestor or descendant of this one, the output is a
// redundant rewrite and is dropped instead.
//
// Inserting an enforcer, or an expression that would make the group its own
// descendant, is a RuleContractViolation.
func (m *Memo) InsertInto(e *opt.Expr, group GroupID) bool {
	group = m.find(group)
	if e.IsGroupRef() {
		if other := m.find(e.Group); other != group && !m.related(group, other) {
			m.merge(group, other)
		}
		return false
	}
	if e.Op.IsEnforcer() {
		panic(opterrors.RuleContractViolationf("enforcer %s cannot be added to G%d", e.Op, group))
	}
	children := m.insertChildren(e)
	_, added := m.insertExpr(e.Op, e.Private, children, group)
	return added
}

func (m *Memo) insertChildren(e *opt.Expr) []GroupID {
	if !e.Op.IsValid() || len(e.Children) != e.Op.Arity() {
		panic(opterrors.RuleContractViolationf(
			"%s expects %d children, got %d", e.Op, e.Op.Arity(), len(e.Children)))
	}
	if len(e.Children) == 0 {
		return nil
	}
	children := make([]GroupID, len(e.Children))
	for i, c := range e.Children {
		children[i] = m.Insert(c)
	}
	return children
}

// exprKey returns the interning key of a memo expression. The children must
// be live groups.
func exprKey(op opt.Operator, private opt.Private, children []GroupID) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d|%s|", op, opt.PrivateKey(private))
	for i, c := range children {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%d", c)
	}
	return buf.String()
}

// insertExpr interns a memo expression. If target is zero the expression is
// added to a new group, unless it already exists. Otherwise it is added to
// the target group, merging groups if it already exists elsewhere.
func (m *Memo) insertExpr(
	op opt.Operator, private opt.Private, children []GroupID, target GroupID,
) (_ GroupID, added bool) {
	key := exprKey(op, private, children)
	if existing, ok := m.exprMap[key]; ok {
		group := m.find(existing.group)
		if target != 0 && target != group {
			if !m.related(target, group) {
				m.merge(target, group)
			}
			return m.find(target), false
		}
		return group, false
	}

	var g *Group
	if target == 0 {
		g = m.newGroup(op, private, children)
	} else {
		g = m.groups[target]
		m.checkInsertInto(g, op, private, children)
	}

	if m.budget.MaxExprs > 0 && m.exprCount >= m.budget.MaxExprs {
		panic(opterrors.NewResourceExceededError(opterrors.ResourceExprs, m.budget.MaxExprs))
	}
	e := &GroupExpr{group: g.id, ord: len(g.exprs), op: op, private: private, children: children}
	g.exprs = append(g.exprs, e)
	g.version++
	m.exprMap[key] = e
	m.exprCount++
	if buildutil.Invariants {
		m.checkExpr(e)
	}
	return g.id, true
}

func (m *Memo) newGroup(op opt.Operator, private opt.Private, children []GroupID) *Group {
	if m.budget.MaxGroups > 0 && m.liveGroups >= m.budget.MaxGroups {
		panic(opterrors.NewResourceExceededError(opterrors.ResourceGroups, m.budget.MaxGroups))
	}
	g := newGroup(GroupID(len(m.groups)))
	m.groups = append(m.groups, g)
	m.parent = append(m.parent, g.id)
	m.liveGroups++
	m.lpb.buildProps(op, private, m.childProps(children), &g.logical)
	return g
}

func (m *Memo) childProps(children []GroupID) []*props.Relational {
	if len(children) == 0 {
		return nil
	}
	res := make([]*props.Relational, len(children))
	for i, c := range children {
		res[i] = &m.groups[c].logical
	}
	return res
}

// checkInsertInto verifies that an expression can join an existing group: it
// must not reference the group from below, and it must produce the same
// columns.
func (m *Memo) checkInsertInto(
	g *Group, op opt.Operator, private opt.Private, children []GroupID,
) {
	for _, c := range children {
		if m.reachable(c, g.id) {
			panic(opterrors.RuleContractViolationf(
				"adding (%s) to G%d would make G%d its own descendant", op, g.id, g.id))
		}
	}
	cols := outputCols(op, private, m.childProps(children))
	if !cols.Equals(g.logical.OutputCols) {
		panic(opterrors.RuleContractViolationf(
			"(%s) produces columns %s, but G%d produces %s", op, cols, g.id, g.logical.OutputCols))
	}
}

// reachable returns true if target is from, or a descendant of from.
func (m *Memo) reachable(from, target GroupID) bool {
	visited := make(map[GroupID]struct{})
	var visit func(id GroupID) bool
	visit = func(id GroupID) bool {
		id = m.find(id)
		if id == target {
			return true
		}
		if _, ok := visited[id]; ok {
			return false
		}
		visited[id] = struct{}{}
		for _, e := range m.groups[id].exprs {
			for _, c := range e.children {
				if visit(c) {
					return true
				}
			}
		}
		return false
	}
	return visit(from)
}

// related returns true if one of the groups is reachable from the other.
func (m *Memo) related(a, b GroupID) bool {
	return m.reachable(a, b) || m.reachable(b, a)
}

// merge unions two groups that were proven equivalent. The group with the
// lower id survives. Expressions that become identical after the children
// are renamed are deduplicated; if they lived in different groups, those
// groups are merged too.
func (m *Memo) merge(a, b GroupID) {
	pending := [][2]GroupID{{a, b}}
	for len(pending) > 0 {
		a, b = m.find(pending[0][0]), m.find(pending[0][1])
		pending = pending[1:]
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		m.mergeGroups(m.groups[a], m.groups[b])
		pending = append(pending, m.rebuild()...)
	}
}

func (m *Memo) mergeGroups(winner, loser *Group) {
	if winner.WinnerCount() != 0 || loser.WinnerCount() != 0 {
		panic(opterrors.RuleContractViolationf(
			"cannot merge G%d and G%d after optimization started", winner.id, loser.id))
	}
	if m.related(winner.id, loser.id) {
		panic(opterrors.RuleContractViolationf(
			"merging G%d and G%d would create a cycle", winner.id, loser.id))
	}
	if !winner.logical.OutputCols.Equals(loser.logical.OutputCols) {
		panic(opterrors.RuleContractViolationf(
			"cannot merge G%d %s and G%d %s", winner.id, winner.logical.OutputCols,
			loser.id, loser.logical.OutputCols))
	}

	m.parent[loser.id] = winner.id
	for id := range m.parent {
		m.parent[id] = m.find(GroupID(id))
	}
	m.liveGroups--

	for _, e := range loser.exprs {
		e.group = winner.id
		winner.exprs = append(winner.exprs, e)
	}
	loser.exprs = nil
	winner.version += loser.version + 1
	if loser.exploredRound < winner.exploredRound {
		winner.exploredRound = loser.exploredRound
	}
	winner.implemented = winner.implemented && loser.implemented
}

// rebuild renames the children of every expression to live groups and
// re-interns all expressions. Duplicates within a group are dropped. It
// returns the pairs of groups that hold duplicates of each other, which must
// be merged next.
func (m *Memo) rebuild() (congruent [][2]GroupID) {
	m.exprMap = make(map[string]*GroupExpr, len(m.exprMap))
	m.exprCount = 0
	for id := 1; id < len(m.groups); id++ {
		g := m.groups[id]
		if m.parent[id] != GroupID(id) {
			continue
		}
		kept := g.exprs[:0]
		for _, e := range g.exprs {
			for i, c := range e.children {
				e.children[i] = m.find(c)
			}
			key := exprKey(e.op, e.private, e.children)
			if existing, ok := m.exprMap[key]; ok {
				if existing.group != g.id {
					congruent = append(congruent, [2]GroupID{existing.group, g.id})
				}
				continue
			}
			e.ord = len(kept)
			kept = append(kept, e)
			m.exprMap[key] = e
		}
		for i := len(kept); i < len(g.exprs); i++ {
			g.exprs[i] = nil
		}
		g.exprs = kept
		m.exprCount += len(kept)
	}
	return congruent
}
