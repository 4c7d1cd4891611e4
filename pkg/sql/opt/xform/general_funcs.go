// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package xform contains the transformation rules and the search engine of
// the optimizer.
package xform

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props"
)

// CustomFuncs contains the match and replace functions used by the
// transformation rules. Rules run their compute phase concurrently, so the
// functions only read the memo.
type CustomFuncs struct {
	mem *memo.Memo
}

// Init initializes a new CustomFuncs with the given memo.
func (c *CustomFuncs) Init(mem *memo.Memo) {
	// This initialization pattern ensures that fields are not unwittingly
	// reused. Field reuse must be explicit.
	*c = CustomFuncs{
		mem: mem,
	}
}

// Memo returns the memo that the rules read.
func (c *CustomFuncs) Memo() *memo.Memo {
	return c.mem
}

// Metadata returns the metadata of the memo.
func (c *CustomFuncs) Metadata() *opt.Metadata {
	return c.mem.Metadata()
}

// Props returns the logical properties of the bound group.
func (c *CustomFuncs) Props(b *Binding) *props.Relational {
	return c.mem.Group(b.Group).Relational()
}

// OutputCols returns the columns produced by the bound group.
func (c *CustomFuncs) OutputCols(b *Binding) opt.ColSet {
	return c.Props(b).OutputCols
}

// Filters returns the filters of a bound Select.
func (c *CustomFuncs) Filters(b *Binding) opt.FiltersExpr {
	return b.Private().(opt.FiltersExpr)
}

// JoinPrivate returns the payload of a bound join.
func (c *CustomFuncs) JoinPrivate(b *Binding) *opt.JoinPrivate {
	return b.Private().(*opt.JoinPrivate)
}

// MakeSelect returns a Select over the input, or the input itself when there
// are no filters.
func (c *CustomFuncs) MakeSelect(input *opt.Expr, filters opt.FiltersExpr) *opt.Expr {
	if filters.Empty() {
		return input
	}
	return &opt.Expr{Op: opt.SelectOp, Private: opt.MakeFilters(filters...), Children: []*opt.Expr{input}}
}

// MakeJoin returns a logical join of the given type.
func (c *CustomFuncs) MakeJoin(
	joinType opt.Operator, left, right *opt.Expr, on opt.FiltersExpr,
) *opt.Expr {
	return &opt.Expr{
		Op:       joinType,
		Private:  &opt.JoinPrivate{JoinType: joinType, On: opt.MakeFilters(on...)},
		Children: []*opt.Expr{left, right},
	}
}

// Implement returns a physical operator with the same payload and children
// as the bound logical expression.
func (c *CustomFuncs) Implement(b *Binding, op opt.Operator, private opt.Private) *opt.Expr {
	e := &opt.Expr{Op: op, Private: private}
	if len(b.Children) > 0 {
		e.Children = make([]*opt.Expr, len(b.Children))
		for i := range b.Children {
			e.Children[i] = b.Children[i].Ref()
		}
	}
	return e
}
