// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/stretchr/testify/require"
)

func TestLogicalOp(t *testing.T) {
	join := func(typ opt.Operator) opt.Private { return &opt.JoinPrivate{JoinType: typ} }
	testCases := []struct {
		op       opt.Operator
		private  opt.Private
		expected opt.Operator
	}{
		{op: opt.TableScanOp, expected: opt.ScanOp},
		{op: opt.IndexScanOp, expected: opt.ScanOp},
		{op: opt.FilterOp, expected: opt.SelectOp},
		{op: opt.PhysProjectOp, expected: opt.ProjectOp},
		{op: opt.HashJoinOp, private: join(opt.LeftJoinOp), expected: opt.LeftJoinOp},
		{op: opt.MergeJoinOp, private: join(opt.InnerJoinOp), expected: opt.InnerJoinOp},
		{op: opt.NestedLoopJoinOp, private: join(opt.AntiJoinOp), expected: opt.AntiJoinOp},
		{op: opt.StreamGroupByOp, expected: opt.GroupByOp},
		{op: opt.PhysLimitOp, expected: opt.LimitOp},
		{op: opt.AppendOp, expected: opt.UnionAllOp},
		{op: opt.PhysValuesOp, expected: opt.ValuesOp},
		{op: opt.SemiJoinOp, expected: opt.SemiJoinOp},
	}
	for _, tc := range testCases {
		t.Run(tc.op.String(), func(t *testing.T) {
			require.Equal(t, tc.expected, LogicalOp(tc.op, tc.private))
		})
	}
}

func TestNotNullCols(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a", "c")
	ax, ay, az := env.col(t, "a.x"), env.col(t, "a.y"), env.col(t, "a.z")
	cx, cw := env.col(t, "c.x"), env.col(t, "c.w")

	relational := func(e *opt.Expr) string {
		rel := env.mem.Group(env.mem.Insert(e)).Relational()
		return fmt.Sprintf("cols=%s not-null=%s", rel.OutputCols, rel.NotNullCols)
	}
	isNotNull := func(col opt.ColumnID) *opt.ScalarExpr {
		return opt.MakeScalar(opt.NotOp, opt.MakeScalar(opt.IsNullOp, opt.Var(col)))
	}

	// Only a.z is nullable.
	require.Equal(t, "cols=(1-3) not-null=(1,2)", relational(env.scan("a")))
	require.Equal(t, "cols=(1-3) not-null=(1-3)", relational(selectExpr(env.scan("a"), isNotNull(az))))
	require.Equal(t, "cols=(1-3) not-null=(1-3)", relational(selectExpr(env.scan("a"),
		opt.Eq(opt.Var(az), opt.Const("foo")))))
	require.Equal(t, "cols=(1-3) not-null=(1,2)", relational(selectExpr(env.scan("a"),
		opt.MakeScalar(opt.IsNullOp, opt.Var(az)))))

	// Projections.
	pz := env.md.AddColumn("pz", cat.StringType)
	pc := env.md.AddColumn("pc", cat.IntType)
	pn := env.md.AddColumn("pn", cat.IntType)
	prj := &opt.Expr{
		Op: opt.ProjectOp,
		Private: &opt.ProjectPrivate{
			Passthrough: opt.MakeColSet(ax, az),
			Projections: []opt.ProjectionItem{
				{Col: pz, Expr: opt.Var(az)},
				{Col: pc, Expr: opt.Const(1)},
				{Col: pn, Expr: opt.Const(nil)},
			},
		},
		Children: []*opt.Expr{env.scan("a")},
	}
	require.Equal(t, fmt.Sprintf("cols=(1,3,%d-%d) not-null=(1,%d)", pz, pn, pc), relational(prj))

	// Joins.
	eq := opt.Eq(opt.Var(az), opt.Var(cx))
	require.Equal(t, "cols=(1-5) not-null=(1-5)",
		relational(env.join(opt.InnerJoinOp, env.scan("a"), env.scan("c"), eq)))
	require.Equal(t, "cols=(1-5) not-null=(1,2)",
		relational(env.join(opt.LeftJoinOp, env.scan("a"), env.scan("c"), eq)))
	require.Equal(t, "cols=(1-3) not-null=(1-3)",
		relational(env.join(opt.SemiJoinOp, env.scan("a"), env.scan("c"), eq)))
	require.Equal(t, "cols=(1-3) not-null=(1,2)",
		relational(env.join(opt.AntiJoinOp, env.scan("a"), env.scan("c"), eq)))

	// Aggregations.
	cnt := env.md.AddColumn("cnt", cat.IntType)
	sum := env.md.AddColumn("sum", cat.FloatType)
	groupBy := &opt.Expr{
		Op: opt.GroupByOp,
		Private: &opt.GroupByPrivate{
			GroupingCols: opt.MakeColSet(ay, az),
			Aggs: []opt.AggregateItem{
				{Col: cnt, Agg: opt.MakeScalar(opt.CountRowsOp)},
				{Col: sum, Agg: opt.MakeScalar(opt.SumOp, opt.Var(ax))},
			},
		},
		Children: []*opt.Expr{env.scan("a")},
	}
	require.Equal(t, fmt.Sprintf("cols=(2,3,%d,%d) not-null=(2,%d)", cnt, sum, cnt), relational(groupBy))

	// Union all: an output column is not null only if both inputs are.
	u1 := env.md.AddColumn("u1", cat.IntType)
	u2 := env.md.AddColumn("u2", cat.IntType)
	union := &opt.Expr{
		Op: opt.UnionAllOp,
		Private: &opt.UnionAllPrivate{
			LeftCols:  opt.ColList{ax, az},
			RightCols: opt.ColList{cx, cw},
			OutCols:   opt.ColList{u1, u2},
		},
		Children: []*opt.Expr{env.scan("a"), env.scan("c")},
	}
	require.Equal(t, fmt.Sprintf("cols=(%d,%d) not-null=(%d)", u1, u2, u1), relational(union))

	// Values.
	v1 := env.md.AddColumn("v1", cat.IntType)
	v2 := env.md.AddColumn("v2", cat.IntType)
	values := &opt.Expr{
		Op: opt.ValuesOp,
		Private: &opt.ValuesPrivate{
			Cols: opt.ColList{v1, v2},
			Rows: [][]*opt.ScalarExpr{
				{opt.Const(1), opt.Const(nil)},
				{opt.Const(2), opt.Const(3)},
			},
		},
	}
	require.Equal(t, fmt.Sprintf("cols=(%d,%d) not-null=(%d)", v1, v2, v1), relational(values))
}

// TestPhysicalOpProps checks that a physical operator derives the same
// logical properties as the logical operator that it implements.
func TestPhysicalOpProps(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a", "c")
	az, cx := env.col(t, "a.z"), env.col(t, "c.x")
	scanA := env.mem.Insert(env.scan("a"))
	scanC := env.mem.Insert(env.scan("c"))
	on := opt.MakeFilters(opt.Eq(opt.Var(az), opt.Var(cx)))

	logical := env.mem.Group(env.mem.Insert(&opt.Expr{
		Op:       opt.LeftJoinOp,
		Private:  &opt.JoinPrivate{JoinType: opt.LeftJoinOp, On: on},
		Children: []*opt.Expr{opt.GroupRef(scanA), opt.GroupRef(scanC)},
	})).Relational()
	physical := env.mem.Group(env.mem.Insert(&opt.Expr{
		Op:       opt.HashJoinOp,
		Private:  &opt.JoinPrivate{JoinType: opt.LeftJoinOp, On: on},
		Children: []*opt.Expr{opt.GroupRef(scanA), opt.GroupRef(scanC)},
	})).Relational()
	require.Equal(t, logical.String(), physical.String())
}
