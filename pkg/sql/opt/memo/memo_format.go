// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cockroachdb/cascades/pkg/util/treeprinter"
)

// FmtFlags controls how the memo is formatted.
type FmtFlags int

const (
	// FmtPretty performs a breadth-first topological sort on the memo groups,
	// and shows the root group at the top of the memo.
	FmtPretty FmtFlags = iota

	// FmtRaw shows the raw memo groups, in the order they were originally
	// added, and including any "orphaned" groups.
	FmtRaw
)

type memoFmtCtx struct {
	buf       *bytes.Buffer
	flags     FmtFlags
	ordering  []GroupID
	numbering []GroupID
}

// String returns a pretty-printed form of the memo.
func (m *Memo) String() string {
	return m.FormatString(FmtPretty)
}

// FormatString returns a string representation of the memo, formatted
// according to the given flags.
func (m *Memo) FormatString(flags FmtFlags) string {
	return m.format(&memoFmtCtx{buf: &bytes.Buffer{}, flags: flags})
}

func (m *Memo) format(f *memoFmtCtx) string {
	// If requested, we topological sort the memo with respect to its root group.
	// Otherwise, we simply print out all the live groups in the order and with
	// the names they're referred to physically.
	if f.flags == FmtRaw || m.RootGroup() == 0 {
		for g := range m.Groups() {
			f.ordering = append(f.ordering, g.id)
		}
	} else {
		f.ordering = m.sortGroups(m.RootGroup())
	}

	// We renumber the groups so that they're still printed in order from 1..N.
	f.numbering = make([]GroupID, len(m.groups))
	for i := range f.ordering {
		if f.flags == FmtRaw {
			f.numbering[f.ordering[i]] = f.ordering[i]
		} else {
			f.numbering[f.ordering[i]] = GroupID(i + 1)
		}
	}

	tp := treeprinter.New()
	root := tp.Childf("memo (%d groups, %d expressions)", m.GroupCount(), m.ExprCount())

	for _, id := range f.ordering {
		g := m.groups[id]
		f.buf.Reset()
		for ord, e := range g.exprs {
			if ord != 0 {
				f.buf.WriteByte(' ')
			}
			m.formatExpr(f, e)
		}
		child := root.Childf("G%d: %s", f.numbering[id], f.buf.String())
		m.formatWinners(f, child, g)
	}

	// If showing raw memo, then add header text to point to root expression if
	// it's available.
	if f.flags == FmtRaw && m.RootGroup() != 0 {
		return fmt.Sprintf("root: G%d, %s\n%s",
			m.RootGroup(), m.LookupRequired(m.RootRequired()), tp.String())
	}
	return tp.String()
}

func (m *Memo) formatExpr(f *memoFmtCtx, e *GroupExpr) {
	fmt.Fprintf(f.buf, "(%s", e.op)
	for _, c := range e.children {
		fmt.Fprintf(f.buf, " G%d", f.numbering[m.find(c)])
	}
	if e.private != nil {
		f.buf.WriteByte(' ')
		FormatPrivate(f.buf, e.op, e.private, m.md)
	}
	f.buf.WriteString(")")
}

type winnerSort struct {
	required RequiredID
	display  string
	winner   *Winner
}

func (m *Memo) formatWinners(f *memoFmtCtx, tp treeprinter.Node, g *Group) {
	cnt := g.WinnerCount()
	if cnt == 0 {
		// No winners to show.
		return
	}

	// Sort the winners by required properties.
	ws := make([]winnerSort, 0, cnt)
	g.ForEachWinner(func(w *Winner) {
		ws = append(ws, winnerSort{
			required: w.Required,
			display:  m.LookupRequired(w.Required).Format(m.md),
			winner:   w,
		})
	})
	sort.Slice(ws, func(i, j int) bool {
		// Always order the root required properties first.
		if g.id == m.RootGroup() && ws[i].required != ws[j].required {
			if ws[i].required == m.RootRequired() {
				return true
			}
			if ws[j].required == m.RootRequired() {
				return false
			}
		}
		return ws[i].display < ws[j].display
	})

	for _, s := range ws {
		child := tp.Childf("\"%s\"", s.display)
		if !s.winner.Feasible() {
			child.Child("best: none")
			continue
		}
		f.buf.Reset()
		m.formatWinner(f, g, s.winner)
		child.Childf("best: %s", f.buf.String())
		child.Childf("cost: %s", s.winner.Cost)
	}
}

func (m *Memo) formatWinner(f *memoFmtCtx, g *Group, w *Winner) {
	fmt.Fprintf(f.buf, "(%s", w.Op())

	for i, required := range w.ChildRequired {
		child := g.id
		if w.Expr != nil {
			child = m.find(w.Expr.children[i])
		}
		fmt.Fprintf(f.buf, " G%d", f.numbering[child])

		// Print properties required of the child if they are interesting.
		if required != MinRequiredID {
			fmt.Fprintf(f.buf, "=\"%s\"", m.LookupRequired(required).Format(m.md))
		}
	}

	if private := w.Private(); private != nil {
		f.buf.WriteByte(' ')
		FormatPrivate(f.buf, w.Op(), private, m.md)
	}
	f.buf.WriteString(")")
}

// sortGroups sorts groups reachable from the root by doing a BFS topological
// sort.
func (m *Memo) sortGroups(root GroupID) (groups []GroupID) {
	indegrees := m.getIndegrees(root)

	res := make([]GroupID, 0, len(m.groups))
	queue := []GroupID{root}

	for len(queue) > 0 {
		var next GroupID
		next, queue = queue[0], queue[1:]
		res = append(res, next)

		// When we visit a group, we conceptually remove it from the dependency
		// graph, so all of its dependencies have their indegree reduced by one.
		// Any dependencies which have no more dependents can now be visited and
		// are added to the queue.
		m.forEachDependency(m.groups[next], func(dep GroupID) {
			indegrees[dep]--
			if indegrees[dep] == 0 {
				queue = append(queue, dep)
			}
		})
	}

	// If there remains any group with nonzero indegree, we had a cycle.
	for i := range indegrees {
		if indegrees[i] != 0 {
			// The memo should never have a cycle.
			panic("memo had a cycle, use raw-memo to print")
		}
	}

	return res
}

// forEachDependency runs fn for each child group of g.
func (m *Memo) forEachDependency(g *Group, fn func(GroupID)) {
	for _, e := range g.exprs {
		for _, c := range e.children {
			fn(m.find(c))
		}
	}
}

// getIndegrees returns the indegree of each group reachable from the root.
func (m *Memo) getIndegrees(root GroupID) (indegrees []int) {
	indegrees = make([]int, len(m.groups))
	m.computeIndegrees(root, make([]bool, len(m.groups)), indegrees)
	return indegrees
}

// computeIndegrees computes the indegree (number of dependents) of each group
// reachable from id. It also populates reachable with true for all reachable
// ids.
func (m *Memo) computeIndegrees(id GroupID, reachable []bool, indegrees []int) {
	if id <= 0 || reachable[id] {
		return
	}
	reachable[id] = true

	m.forEachDependency(m.groups[id], func(dep GroupID) {
		indegrees[dep]++
		m.computeIndegrees(dep, reachable, indegrees)
	})
}
