// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/ordering"
	"github.com/cockroachdb/cascades/pkg/sql/opt/testutils/testcat"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	md   *opt.Metadata
	mem  *memo.Memo
	tabs map[string]opt.TableID
}

func newTestEnv(t *testing.T, tables ...string) *testEnv {
	catalog := testcat.New()
	env := &testEnv{md: &opt.Metadata{}, mem: &memo.Memo{}, tabs: make(map[string]opt.TableID)}
	env.md.Init()
	for _, name := range tables {
		tab, err := catalog.ResolveTable(name)
		require.NoError(t, err)
		env.tabs[name] = env.md.AddTable(tab, "")
	}
	env.mem.Init(env.md, memo.Budget{})
	return env
}

// ordering parses an ordering such as "+b.x,-b.y".
func (env *testEnv) ordering(t *testing.T, s string) opt.Ordering {
	if s == "" {
		return nil
	}
	var res opt.Ordering
	for _, c := range strings.Split(s, ",") {
		col, err := env.md.ColumnByLabel(c[1:])
		require.NoError(t, err)
		res = append(res, opt.MakeOrderingColumn(col, c[0] == '-'))
	}
	return res
}

func (env *testEnv) col(t *testing.T, label string) opt.ColumnID {
	col, err := env.md.ColumnByLabel(label)
	require.NoError(t, err)
	return col
}

func (env *testEnv) scan(op opt.Operator, name string, cols opt.ColSet) memo.GroupID {
	tabID := env.tabs[name]
	if cols.Empty() {
		cols = env.md.TableMeta(tabID).AllCols()
	}
	return env.mem.Insert(&opt.Expr{Op: op, Private: &opt.ScanPrivate{Table: tabID, Cols: cols}})
}

func (env *testEnv) insert(e *opt.Expr) *memo.GroupExpr {
	return env.mem.Group(env.mem.Insert(e)).FirstExpr()
}

func (env *testEnv) format(o opt.Ordering) string {
	return o.Format(env.md)
}

func TestScanOrdering(t *testing.T) {
	env := newTestEnv(t, "b")
	indexScan := env.mem.Group(env.scan(opt.IndexScanOp, "b", opt.ColSet{})).FirstExpr()
	tableScan := env.mem.Group(env.scan(opt.TableScanOp, "b", opt.ColSet{})).FirstExpr()

	testCases := []struct {
		required string
		index    bool
		table    bool
	}{
		{required: "", index: true, table: true},
		{required: "+b.x", index: true, table: false},
		{required: "+b.x,-b.y", index: true, table: false},
		{required: "+b.x,+b.y", index: false, table: false},
		{required: "-b.x", index: false, table: false},
		{required: "+b.y", index: false, table: false},
	}
	for _, tc := range testCases {
		t.Run(tc.required, func(t *testing.T) {
			required := env.ordering(t, tc.required)
			require.Equal(t, tc.index, ordering.CanProvide(env.mem, indexScan, required))
			require.Equal(t, tc.table, ordering.CanProvide(env.mem, tableScan, required))
		})
	}

	require.Equal(t, "+b.x,-b.y", env.format(ordering.BuildProvided(env.mem, indexScan, nil)))
	require.Equal(t, "", env.format(ordering.BuildProvided(env.mem, tableScan, nil)))

	// The index ordering is cut at the first column that is not scanned.
	bx := env.col(t, "b.x")
	narrow := env.mem.Group(env.scan(opt.IndexScanOp, "b", opt.MakeColSet(bx))).FirstExpr()
	require.Equal(t, "+b.x", env.format(ordering.BuildProvided(env.mem, narrow, nil)))
}

func TestPassThroughOrdering(t *testing.T) {
	env := newTestEnv(t, "b")
	bx, by := env.col(t, "b.x"), env.col(t, "b.y")
	input := env.scan(opt.IndexScanOp, "b", opt.ColSet{})
	provided := []opt.Ordering{env.ordering(t, "+b.x,-b.y")}

	filter := env.insert(&opt.Expr{
		Op:       opt.FilterOp,
		Private:  opt.MakeFilters(opt.MakeScalar(opt.GtOp, opt.Var(by), opt.Const(10))),
		Children: []*opt.Expr{opt.GroupRef(input)},
	})
	limit := env.insert(&opt.Expr{
		Op:       opt.PhysLimitOp,
		Private:  &opt.LimitPrivate{Count: 10},
		Children: []*opt.Expr{opt.GroupRef(input)},
	})
	for _, e := range []*memo.GroupExpr{filter, limit} {
		t.Run(e.Op().String(), func(t *testing.T) {
			required := env.ordering(t, "-b.y")
			require.True(t, ordering.CanProvide(env.mem, e, required))
			require.Equal(t, "-b.y", env.format(ordering.BuildChildRequired(env.mem, e, required, 0)))
			require.Equal(t, "+b.x,-b.y", env.format(ordering.BuildProvided(env.mem, e, provided)))
		})
	}

	// A projection passes through orderings on its passthrough columns only.
	bz := env.md.AddColumn("bz", cat.IntType)
	project := env.insert(&opt.Expr{
		Op: opt.PhysProjectOp,
		Private: &opt.ProjectPrivate{
			Passthrough: opt.MakeColSet(bx),
			Projections: []opt.ProjectionItem{{Col: bz, Expr: opt.Var(by)}},
		},
		Children: []*opt.Expr{opt.GroupRef(input)},
	})
	require.True(t, ordering.CanProvide(env.mem, project, env.ordering(t, "+b.x")))
	require.False(t, ordering.CanProvide(env.mem, project, env.ordering(t, "+bz")))
	require.Equal(t, "+b.x", env.format(ordering.BuildProvided(env.mem, project, provided)))
}

func TestJoinOrdering(t *testing.T) {
	env := newTestEnv(t, "a", "b")
	ax, bx := env.col(t, "a.x"), env.col(t, "b.x")
	left := env.scan(opt.TableScanOp, "a", opt.ColSet{})
	right := env.scan(opt.IndexScanOp, "b", opt.ColSet{})
	on := opt.MakeFilters(opt.Eq(opt.Var(ax), opt.Var(bx)))

	join := func(op, joinType opt.Operator, leftOrd, rightOrd opt.Ordering) *memo.GroupExpr {
		return env.insert(&opt.Expr{
			Op: op,
			Private: &opt.JoinPrivate{
				JoinType: joinType, On: on, LeftOrdering: leftOrd, RightOrdering: rightOrd,
			},
			Children: []*opt.Expr{opt.GroupRef(left), opt.GroupRef(right)},
		})
	}

	for _, op := range []opt.Operator{opt.HashJoinOp, opt.NestedLoopJoinOp} {
		t.Run(op.String(), func(t *testing.T) {
			e := join(op, opt.InnerJoinOp, nil, nil)
			require.True(t, ordering.CanProvide(env.mem, e, env.ordering(t, "+a.y,-a.x")))
			require.False(t, ordering.CanProvide(env.mem, e, env.ordering(t, "+a.x,+b.y")))
			required := env.ordering(t, "+a.y")
			require.Equal(t, "+a.y", env.format(ordering.BuildChildRequired(env.mem, e, required, 0)))
			require.Nil(t, ordering.BuildChildRequired(env.mem, e, required, 1))
		})
	}

	t.Run("merge-join", func(t *testing.T) {
		leftOrd, rightOrd := env.ordering(t, "+a.x"), env.ordering(t, "+b.x")
		inner := join(opt.MergeJoinOp, opt.InnerJoinOp, leftOrd, rightOrd)
		leftJoin := join(opt.MergeJoinOp, opt.LeftJoinOp, leftOrd, rightOrd)

		// The merge orderings are required even if no ordering is required of
		// the join.
		require.Equal(t, "+a.x", env.format(ordering.BuildChildRequired(env.mem, inner, nil, 0)))
		require.Equal(t, "+b.x", env.format(ordering.BuildChildRequired(env.mem, inner, nil, 1)))

		require.True(t, ordering.CanProvide(env.mem, inner, leftOrd))
		require.True(t, ordering.CanProvide(env.mem, inner, rightOrd))
		require.True(t, ordering.CanProvide(env.mem, leftJoin, leftOrd))
		require.False(t, ordering.CanProvide(env.mem, leftJoin, rightOrd))
		require.False(t, ordering.CanProvide(env.mem, inner, env.ordering(t, "+a.x,+a.y")))

		provided := ordering.BuildProvided(env.mem, inner, []opt.Ordering{leftOrd, rightOrd})
		require.Equal(t, "+a.x", env.format(provided))
	})
}

func TestStreamGroupByOrdering(t *testing.T) {
	env := newTestEnv(t, "b")
	bx, by := env.col(t, "b.x"), env.col(t, "b.y")
	input := env.scan(opt.IndexScanOp, "b", opt.ColSet{})
	cnt := env.md.AddColumn("cnt", cat.IntType)
	groupBy := env.insert(&opt.Expr{
		Op: opt.StreamGroupByOp,
		Private: &opt.GroupByPrivate{
			GroupingCols: opt.MakeColSet(bx, by),
			Aggs:         []opt.AggregateItem{{Col: cnt, Agg: opt.MakeScalar(opt.CountRowsOp)}},
			Ordering:     env.ordering(t, "+b.x"),
		},
		Children: []*opt.Expr{opt.GroupRef(input)},
	})

	testCases := []struct {
		required   string
		canProvide bool
		child      string
	}{
		{required: "", canProvide: true, child: "+b.x"},
		{required: "+b.x", canProvide: true, child: "+b.x"},
		{required: "+b.x,-b.y", canProvide: true, child: "+b.x,-b.y"},
		{required: "+b.y", canProvide: false},
		{required: "+cnt", canProvide: false},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("required=%s", tc.required), func(t *testing.T) {
			required := env.ordering(t, tc.required)
			require.Equal(t, tc.canProvide, ordering.CanProvide(env.mem, groupBy, required))
			if tc.canProvide {
				child := ordering.BuildChildRequired(env.mem, groupBy, required, 0)
				require.Equal(t, tc.child, env.format(child))
			}
		})
	}
}
