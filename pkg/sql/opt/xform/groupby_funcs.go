// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import "github.com/cockroachdb/cascades/pkg/sql/opt"

// IsScalarGroupBy returns true if the bound group by has no grouping
// columns.
func (c *CustomFuncs) IsScalarGroupBy(b *Binding) bool {
	return b.Private().(*opt.GroupByPrivate).IsScalar()
}

// GenerateHashGroupBy implements a group by with grouping columns as a hash
// aggregation. A scalar group by has a single group, so a hash table would
// only add work.
func (c *CustomFuncs) GenerateHashGroupBy(b *Binding) []*opt.Expr {
	private := b.Private().(*opt.GroupByPrivate)
	return []*opt.Expr{c.Implement(b, opt.HashGroupByOp, &opt.GroupByPrivate{
		GroupingCols: private.GroupingCols,
		Aggs:         private.Aggs,
	})}
}

// GenerateStreamGroupBy implements a group by as a streaming aggregation
// over input sorted ascending on the grouping columns. A scalar group by
// streams over input in any order.
func (c *CustomFuncs) GenerateStreamGroupBy(b *Binding) []*opt.Expr {
	private := b.Private().(*opt.GroupByPrivate)
	var ordering opt.Ordering
	if !private.IsScalar() {
		cols := opt.ColSetToList(private.GroupingCols)
		ordering = make(opt.Ordering, len(cols))
		for i, col := range cols {
			ordering[i] = opt.MakeOrderingColumn(col, false /* descending */)
		}
	}
	return []*opt.Expr{c.Implement(b, opt.StreamGroupByOp, &opt.GroupByPrivate{
		GroupingCols: private.GroupingCols,
		Aggs:         private.Aggs,
		Ordering:     ordering,
	})}
}

// ImplementSelect implements a Select as a Filter.
func (c *CustomFuncs) ImplementSelect(b *Binding) []*opt.Expr {
	return []*opt.Expr{c.Implement(b, opt.FilterOp, b.Private())}
}

// ImplementProject implements a Project as a PhysProject.
func (c *CustomFuncs) ImplementProject(b *Binding) []*opt.Expr {
	return []*opt.Expr{c.Implement(b, opt.PhysProjectOp, b.Private())}
}

// ImplementLimit implements a Limit as a PhysLimit.
func (c *CustomFuncs) ImplementLimit(b *Binding) []*opt.Expr {
	return []*opt.Expr{c.Implement(b, opt.PhysLimitOp, b.Private())}
}

// ImplementUnionAll implements a UnionAll as an Append.
func (c *CustomFuncs) ImplementUnionAll(b *Binding) []*opt.Expr {
	return []*opt.Expr{c.Implement(b, opt.AppendOp, b.Private())}
}

// ImplementValues implements a Values as a PhysValues.
func (c *CustomFuncs) ImplementValues(b *Binding) []*opt.Expr {
	return []*opt.Expr{c.Implement(b, opt.PhysValuesOp, b.Private())}
}
