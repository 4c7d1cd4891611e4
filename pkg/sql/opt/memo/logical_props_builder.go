// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props"
)

// logicalPropsBuilder is a helper class that consolidates the code that
// derives a parent expression's logical properties from those of its
// children.
//
// Physical operators share the derivation of the logical operator that they
// implement, so that a group's properties do not depend on which member
// created it.
type logicalPropsBuilder struct {
	md *opt.Metadata
	sb statisticsBuilder
}

func (b *logicalPropsBuilder) init(md *opt.Metadata) {
	b.md = md
	b.sb.init(md)
}

// LogicalOp returns the logical operator that an operator implements. For
// physical joins, the join type is taken from the payload.
func LogicalOp(op opt.Operator, private opt.Private) opt.Operator {
	switch op {
	case opt.TableScanOp, opt.IndexScanOp:
		return opt.ScanOp
	case opt.PhysValuesOp:
		return opt.ValuesOp
	case opt.FilterOp:
		return opt.SelectOp
	case opt.PhysProjectOp:
		return opt.ProjectOp
	case opt.HashJoinOp, opt.MergeJoinOp, opt.NestedLoopJoinOp:
		return private.(*opt.JoinPrivate).JoinType
	case opt.HashGroupByOp, opt.StreamGroupByOp:
		return opt.GroupByOp
	case opt.PhysLimitOp:
		return opt.LimitOp
	case opt.AppendOp:
		return opt.UnionAllOp
	}
	return op
}

// outputCols returns the columns produced by an expression, given the output
// columns of its children.
func outputCols(op opt.Operator, private opt.Private, children []*props.Relational) opt.ColSet {
	switch LogicalOp(op, private) {
	case opt.ScanOp:
		return private.(*opt.ScanPrivate).Cols
	case opt.ValuesOp:
		return opt.ColListToSet(private.(*opt.ValuesPrivate).Cols)
	case opt.SelectOp, opt.LimitOp, opt.SemiJoinOp, opt.AntiJoinOp:
		return children[0].OutputCols
	case opt.ProjectOp:
		return private.(*opt.ProjectPrivate).OutputCols()
	case opt.InnerJoinOp, opt.LeftJoinOp:
		return children[0].OutputCols.Union(children[1].OutputCols)
	case opt.GroupByOp:
		return private.(*opt.GroupByPrivate).OutputCols()
	case opt.UnionAllOp:
		return opt.ColListToSet(private.(*opt.UnionAllPrivate).OutCols)
	}
	panic(opterrors.RuleContractViolationf("no logical properties for operator %s", op))
}

// buildProps derives the logical properties of a new group from its first
// member.
func (b *logicalPropsBuilder) buildProps(
	op opt.Operator, private opt.Private, children []*props.Relational, rel *props.Relational,
) {
	rel.OutputCols = outputCols(op, private, children)

	switch logical := LogicalOp(op, private); logical {
	case opt.ScanOp:
		b.buildScanProps(private.(*opt.ScanPrivate), rel)

	case opt.ValuesOp:
		b.buildValuesProps(private.(*opt.ValuesPrivate), rel)

	case opt.SelectOp:
		rel.NotNullCols = children[0].NotNullCols.Union(rejectNullCols(private.(opt.FiltersExpr)))
		rel.NotNullCols.IntersectionWith(rel.OutputCols)

	case opt.ProjectOp:
		b.buildProjectProps(private.(*opt.ProjectPrivate), children[0], rel)

	case opt.InnerJoinOp, opt.LeftJoinOp, opt.SemiJoinOp, opt.AntiJoinOp:
		b.buildJoinProps(logical, private.(*opt.JoinPrivate), children[0], children[1], rel)

	case opt.GroupByOp:
		b.buildGroupByProps(private.(*opt.GroupByPrivate), children[0], rel)

	case opt.LimitOp:
		rel.NotNullCols = children[0].NotNullCols.Copy()

	case opt.UnionAllOp:
		b.buildUnionAllProps(private.(*opt.UnionAllPrivate), children[0], children[1], rel)
	}

	b.sb.build(op, private, children, rel)
}

func (b *logicalPropsBuilder) buildScanProps(scan *opt.ScanPrivate, rel *props.Relational) {
	tab := b.md.Table(scan.Table)
	for i, n := 0, tab.ColumnCount(); i < n; i++ {
		col := scan.Table.ColumnID(i)
		if !tab.Column(i).Nullable && scan.Cols.Contains(int(col)) {
			rel.NotNullCols.Add(int(col))
		}
	}
}

func (b *logicalPropsBuilder) buildValuesProps(values *opt.ValuesPrivate, rel *props.Relational) {
	for i, col := range values.Cols {
		notNull := true
		for _, row := range values.Rows {
			if row[i].IsNullConst() {
				notNull = false
				break
			}
		}
		if notNull {
			rel.NotNullCols.Add(int(col))
		}
	}
}

func (b *logicalPropsBuilder) buildProjectProps(
	prj *opt.ProjectPrivate, input *props.Relational, rel *props.Relational,
) {
	rel.NotNullCols = input.NotNullCols.Intersection(prj.Passthrough)
	for i := range prj.Projections {
		item := &prj.Projections[i]
		switch item.Expr.Op {
		case opt.VariableOp:
			if input.NotNullCols.Contains(int(item.Expr.Col)) {
				rel.NotNullCols.Add(int(item.Col))
			}
		case opt.ConstOp:
			if !item.Expr.IsNullConst() {
				rel.NotNullCols.Add(int(item.Col))
			}
		}
	}
}

func (b *logicalPropsBuilder) buildJoinProps(
	joinType opt.Operator,
	join *opt.JoinPrivate,
	left, right *props.Relational,
	rel *props.Relational,
) {
	switch joinType {
	case opt.InnerJoinOp:
		rel.NotNullCols = left.NotNullCols.Union(right.NotNullCols)
		rel.NotNullCols.UnionWith(rejectNullCols(join.On))
		rel.NotNullCols.IntersectionWith(rel.OutputCols)
	case opt.LeftJoinOp, opt.AntiJoinOp:
		rel.NotNullCols = left.NotNullCols.Copy()
	case opt.SemiJoinOp:
		// Rows only survive if the condition held, so the left columns that it
		// compares are not null.
		rel.NotNullCols = left.NotNullCols.Union(rejectNullCols(join.On))
		rel.NotNullCols.IntersectionWith(rel.OutputCols)
	}
}

func (b *logicalPropsBuilder) buildGroupByProps(
	groupBy *opt.GroupByPrivate, input *props.Relational, rel *props.Relational,
) {
	rel.NotNullCols = input.NotNullCols.Intersection(groupBy.GroupingCols)
	for i := range groupBy.Aggs {
		switch groupBy.Aggs[i].Agg.Op {
		case opt.CountOp, opt.CountRowsOp:
			rel.NotNullCols.Add(int(groupBy.Aggs[i].Col))
		}
	}
}

func (b *logicalPropsBuilder) buildUnionAllProps(
	union *opt.UnionAllPrivate, left, right *props.Relational, rel *props.Relational,
) {
	for i, col := range union.OutCols {
		if left.NotNullCols.Contains(int(union.LeftCols[i])) &&
			right.NotNullCols.Contains(int(union.RightCols[i])) {
			rel.NotNullCols.Add(int(col))
		}
	}
}

// rejectNullCols returns the columns that a conjunction guarantees to be not
// null: the columns of comparisons and of IS NOT NULL predicates.
func rejectNullCols(filters opt.FiltersExpr) opt.ColSet {
	var cols opt.ColSet
	for _, cond := range filters {
		switch {
		case cond.Op.IsComparison():
			cols.UnionWith(cond.OuterCols())
		case cond.Op == opt.NotOp && cond.Args[0].Op == opt.IsNullOp &&
			cond.Args[0].Args[0].Op == opt.VariableOp:
			cols.Add(int(cond.Args[0].Args[0].Col))
		}
	}
	return cols
}
