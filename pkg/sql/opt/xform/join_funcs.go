// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
)

// CommuteJoin swaps the inputs of an inner join. The output columns are
// unordered sets, so the result is equivalent.
func (c *CustomFuncs) CommuteJoin(b *Binding) []*opt.Expr {
	private := c.JoinPrivate(b)
	return []*opt.Expr{
		c.MakeJoin(opt.InnerJoinOp, b.Child(1).Ref(), b.Child(0).Ref(), private.On),
	}
}

// CanAssociateJoin returns true if (A ⋈ B) ⋈ C can be rewritten into
// A ⋈ (B ⋈ C) without introducing a cross product between B and C.
func (c *CustomFuncs) CanAssociateJoin(b *Binding) bool {
	newInnerOn, _ := c.associateFilters(b)
	inner := b.Child(0)
	return memo.HasJoinCondition(c.OutputCols(inner.Child(1)), c.OutputCols(b.Child(1)), newInnerOn)
}

// AssociateJoin rewrites (A ⋈ B) ⋈ C into A ⋈ (B ⋈ C). The conditions of
// both joins are redistributed: those that only refer to B and C move to the
// new inner join.
func (c *CustomFuncs) AssociateJoin(b *Binding) []*opt.Expr {
	inner := b.Child(0)
	newInnerOn, newOuterOn := c.associateFilters(b)
	newInner := c.MakeJoin(opt.InnerJoinOp, inner.Child(1).Ref(), b.Child(1).Ref(), newInnerOn)
	return []*opt.Expr{
		c.MakeJoin(opt.InnerJoinOp, inner.Child(0).Ref(), newInner, newOuterOn),
	}
}

func (c *CustomFuncs) associateFilters(b *Binding) (newInnerOn, newOuterOn opt.FiltersExpr) {
	inner := b.Child(0)
	combined := c.JoinPrivate(inner).On.And(c.JoinPrivate(b).On)
	bcCols := c.OutputCols(inner.Child(1)).Union(c.OutputCols(b.Child(1)))
	return combined.Split(bcCols)
}

// CanPushSelectIntoJoin returns true if some of the filters of the Select
// over an inner join only refer to the given side of the join.
func (c *CustomFuncs) CanPushSelectIntoJoin(b *Binding, side int) bool {
	bound, _ := c.Filters(b).Split(c.OutputCols(b.Child(0).Child(side)))
	return !bound.Empty()
}

// PushSelectIntoJoin moves the filters of a Select over an inner join that
// only refer to one side of the join into a new Select on that side. The
// remaining filters stay above the join.
func (c *CustomFuncs) PushSelectIntoJoin(b *Binding, side int) []*opt.Expr {
	join := b.Child(0)
	bound, rest := c.Filters(b).Split(c.OutputCols(join.Child(side)))
	inputs := []*opt.Expr{join.Child(0).Ref(), join.Child(1).Ref()}
	inputs[side] = c.MakeSelect(inputs[side], bound)
	newJoin := c.MakeJoin(opt.InnerJoinOp, inputs[0], inputs[1], c.JoinPrivate(join).On)
	return []*opt.Expr{c.MakeSelect(newJoin, rest)}
}

// MergeSelects combines two stacked Select operators into one.
func (c *CustomFuncs) MergeSelects(b *Binding) []*opt.Expr {
	filters := c.Filters(b).And(c.Filters(b.Child(0)))
	return []*opt.Expr{c.MakeSelect(b.Child(0).Child(0).Ref(), filters)}
}

// physicalJoinPrivate returns the payload of a physical join implementing
// the bound logical join.
func (c *CustomFuncs) physicalJoinPrivate(b *Binding) *opt.JoinPrivate {
	private := c.JoinPrivate(b)
	return &opt.JoinPrivate{JoinType: b.Expr.Op(), On: private.On}
}

// HasEquality returns true if the join condition has an equality between the
// two inputs.
func (c *CustomFuncs) HasEquality(b *Binding) bool {
	leftEq, _ := memo.ExtractJoinEqualityColumns(
		c.OutputCols(b.Child(0)), c.OutputCols(b.Child(1)), c.JoinPrivate(b).On)
	return len(leftEq) > 0
}

// GenerateHashJoin implements a join with equality conditions as a hash
// join that builds a hash table on its right input.
func (c *CustomFuncs) GenerateHashJoin(b *Binding) []*opt.Expr {
	return []*opt.Expr{c.Implement(b, opt.HashJoinOp, c.physicalJoinPrivate(b))}
}

// GenerateMergeJoin implements a join with equality conditions as a merge
// join that consumes both inputs sorted ascending on the equality columns.
func (c *CustomFuncs) GenerateMergeJoin(b *Binding) []*opt.Expr {
	private := c.physicalJoinPrivate(b)
	leftEq, rightEq := memo.ExtractJoinEqualityColumns(
		c.OutputCols(b.Child(0)), c.OutputCols(b.Child(1)), private.On)
	private.LeftOrdering = make(opt.Ordering, len(leftEq))
	private.RightOrdering = make(opt.Ordering, len(rightEq))
	for i := range leftEq {
		private.LeftOrdering[i] = opt.MakeOrderingColumn(leftEq[i], false /* descending */)
		private.RightOrdering[i] = opt.MakeOrderingColumn(rightEq[i], false /* descending */)
	}
	return []*opt.Expr{c.Implement(b, opt.MergeJoinOp, private)}
}

// GenerateNestedLoopJoin implements any join as a nested loop join, which
// rewinds its right input for every left row.
func (c *CustomFuncs) GenerateNestedLoopJoin(b *Binding) []*opt.Expr {
	return []*opt.Expr{c.Implement(b, opt.NestedLoopJoinOp, c.physicalJoinPrivate(b))}
}
