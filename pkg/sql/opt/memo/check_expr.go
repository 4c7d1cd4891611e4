// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/errors"
)

// checkExpr does sanity checking on a memo expression that was just added to
// its group. It is only called in invariants and race builds, since it can be
// expensive to run.
func (m *Memo) checkExpr(e *GroupExpr) {
	g := m.groups[e.group]

	// Check properties.
	if !g.logical.NotNullCols.SubsetOf(g.logical.OutputCols) {
		panic(errors.AssertionFailedf("G%d: not-null columns %s are not a subset of output columns %s",
			g.id, g.logical.NotNullCols, g.logical.OutputCols))
	}
	if g.logical.Stats.RowCount < 0 {
		panic(errors.AssertionFailedf("G%d: negative row count", g.id))
	}

	for _, c := range e.children {
		if m.find(c) != c {
			panic(errors.AssertionFailedf("(%s) references merged group G%d", e.op, c))
		}
	}

	// Check operator-specific fields.
	switch t := e.private.(type) {
	case *opt.ScanPrivate:
		if e.op != opt.ScanOp && e.op != opt.TableScanOp && e.op != opt.IndexScanOp {
			break
		}
		if e.op == opt.IndexScanOp {
			if n := m.md.Table(t.Table).IndexCount(); t.Index < 0 || t.Index >= n {
				panic(errors.AssertionFailedf("index ordinal %d out of range [0,%d)", t.Index, n))
			}
		}
		return

	case opt.FiltersExpr:
		if e.op == opt.SelectOp || e.op == opt.FilterOp {
			return
		}

	case *opt.ProjectPrivate:
		if e.op == opt.ProjectOp || e.op == opt.PhysProjectOp {
			if !t.Passthrough.SubsetOf(m.groups[e.children[0]].logical.OutputCols) {
				panic(errors.AssertionFailedf("projection passes through columns %s that its input lacks",
					t.Passthrough))
			}
			return
		}

	case *opt.JoinPrivate:
		if e.op.IsJoin() && t.JoinType != e.op {
			panic(errors.AssertionFailedf("%s has join type %s", e.op, t.JoinType))
		}
		if e.op == opt.MergeJoinOp {
			if len(t.LeftOrdering) == 0 || len(t.LeftOrdering) != len(t.RightOrdering) {
				panic(errors.AssertionFailedf("merge join orderings %s and %s do not match",
					t.LeftOrdering, t.RightOrdering))
			}
		}
		if e.op.IsJoin() || e.op.IsPhysicalJoin() {
			return
		}

	case *opt.GroupByPrivate:
		if e.op == opt.StreamGroupByOp && !t.Ordering.ColSet().SubsetOf(t.GroupingCols) {
			panic(errors.AssertionFailedf("stream group by ordering %s is not on grouping columns %s",
				t.Ordering, t.GroupingCols))
		}
		if LogicalOp(e.op, e.private) == opt.GroupByOp {
			return
		}

	case *opt.LimitPrivate:
		if t.Count < 0 {
			panic(errors.AssertionFailedf("negative limit %d", t.Count))
		}
		if e.op == opt.LimitOp || e.op == opt.PhysLimitOp {
			return
		}

	case *opt.ValuesPrivate:
		if e.op == opt.ValuesOp || e.op == opt.PhysValuesOp {
			return
		}

	case *opt.UnionAllPrivate:
		if e.op == opt.UnionAllOp || e.op == opt.AppendOp {
			return
		}
	}
	panic(errors.AssertionFailedf("%s has unexpected private %T", e.op, e.private))
}
