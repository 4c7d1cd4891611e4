// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package distribution_test

import (
	"strings"
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/cockroachdb/cascades/pkg/sql/opt/distribution"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
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

func (env *testEnv) col(t *testing.T, label string) opt.ColumnID {
	col, err := env.md.ColumnByLabel(label)
	require.NoError(t, err)
	return col
}

func (env *testEnv) scan(name string, cols ...opt.ColumnID) memo.GroupID {
	tabID := env.tabs[name]
	colSet := opt.MakeColSet(cols...)
	if colSet.Empty() {
		colSet = env.md.TableMeta(tabID).AllCols()
	}
	return env.mem.Insert(&opt.Expr{Op: opt.TableScanOp, Private: &opt.ScanPrivate{Table: tabID, Cols: colSet}})
}

func (env *testEnv) insert(e *opt.Expr) *memo.GroupExpr {
	return env.mem.Group(env.mem.Insert(e)).FirstExpr()
}

func (env *testEnv) formatAlts(alts [][]physical.Distribution) string {
	var buf strings.Builder
	for i, alt := range alts {
		if i > 0 {
			buf.WriteString(" | ")
		}
		for j, d := range alt {
			if j > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(d.Format(env.md))
		}
	}
	return buf.String()
}

func TestScanDistribution(t *testing.T) {
	env := newTestEnv(t, "a", "c", "e", "s")
	ax, ay := env.col(t, "a.x"), env.col(t, "a.y")
	testCases := []struct {
		group    memo.GroupID
		expected string
	}{
		{group: env.scan("a"), expected: "hash(a.x)"},
		{group: env.scan("a", ay), expected: "random"},
		{group: env.scan("a", ax), expected: "hash(a.x)"},
		{group: env.scan("c"), expected: "random"},
		{group: env.scan("e"), expected: "replicated"},
		{group: env.scan("s"), expected: "singleton"},
	}
	for _, tc := range testCases {
		e := env.mem.Group(tc.group).FirstExpr()
		require.Equal(t, "", env.formatAlts(distribution.ChildAlternatives(env.mem, e, physical.Distribution{})))
		require.Equal(t, tc.expected, distribution.BuildProvided(env.mem, e, nil).Format(env.md))
	}
}

func TestJoinDistribution(t *testing.T) {
	env := newTestEnv(t, "a", "b", "e")
	ax, ay, bx, by := env.col(t, "a.x"), env.col(t, "a.y"), env.col(t, "b.x"), env.col(t, "b.y")
	join := func(joinType opt.Operator, left, right memo.GroupID, on ...*opt.ScalarExpr) *memo.GroupExpr {
		return env.insert(&opt.Expr{
			Op:       opt.HashJoinOp,
			Private:  &opt.JoinPrivate{JoinType: joinType, On: opt.MakeFilters(on...)},
			Children: []*opt.Expr{opt.GroupRef(left), opt.GroupRef(right)},
		})
	}
	scanA, scanB, scanE := env.scan("a"), env.scan("b"), env.scan("e")

	e := join(opt.InnerJoinOp, scanA, scanB, opt.Eq(opt.Var(ax), opt.Var(bx)), opt.Eq(opt.Var(ay), opt.Var(by)))
	require.Equal(t,
		"hash(a.x), hash(b.x) | hash(a.y), hash(b.y) | random, replicated | singleton, singleton",
		env.formatAlts(distribution.ChildAlternatives(env.mem, e, physical.Distribution{})))

	// A hash requirement on left columns is passed to the left side of a
	// broadcast join.
	require.Equal(t,
		"hash(a.x), hash(b.x) | hash(a.y), hash(b.y) | hash(a.y), replicated | singleton, singleton",
		env.formatAlts(distribution.ChildAlternatives(env.mem, e, physical.MakeHashed(ay))))

	cross := join(opt.InnerJoinOp, scanA, scanB)
	require.Equal(t, "random, replicated | singleton, singleton",
		env.formatAlts(distribution.ChildAlternatives(env.mem, cross, physical.Distribution{})))

	provided := distribution.BuildProvided(env.mem, e,
		[]physical.Distribution{physical.MakeHashed(ax), physical.MakeHashed(bx)})
	require.Equal(t, "hash(a.x)", provided.Format(env.md))

	// A replicated left input takes the placement of the right input.
	ex := env.col(t, "e.x")
	replicated := join(opt.InnerJoinOp, scanE, scanB, opt.Eq(opt.Var(ex), opt.Var(bx)))
	provided = distribution.BuildProvided(env.mem, replicated,
		[]physical.Distribution{physical.Replicated, physical.MakeHashed(bx)})
	require.Equal(t, "hash(b.x)", provided.Format(env.md))

	// The right columns of a semi join are not output, so a hash placement on
	// them is lost.
	semi := join(opt.SemiJoinOp, scanE, scanB, opt.Eq(opt.Var(ex), opt.Var(bx)))
	provided = distribution.BuildProvided(env.mem, semi,
		[]physical.Distribution{physical.Replicated, physical.MakeHashed(bx)})
	require.Equal(t, "random", provided.Format(env.md))
}

func TestGroupByDistribution(t *testing.T) {
	env := newTestEnv(t, "b")
	bx, by := env.col(t, "b.x"), env.col(t, "b.y")
	cnt := env.md.AddColumn("cnt", cat.IntType)
	groupBy := func(grouping opt.ColSet) *memo.GroupExpr {
		return env.insert(&opt.Expr{
			Op: opt.HashGroupByOp,
			Private: &opt.GroupByPrivate{
				GroupingCols: grouping,
				Aggs:         []opt.AggregateItem{{Col: cnt, Agg: opt.MakeScalar(opt.CountRowsOp)}},
			},
			Children: []*opt.Expr{opt.GroupRef(env.scan("b"))},
		})
	}

	e := groupBy(opt.MakeColSet(bx, by))
	require.Equal(t, "hash(b.x,b.y) | singleton",
		env.formatAlts(distribution.ChildAlternatives(env.mem, e, physical.Distribution{})))
	require.Equal(t, "hash(b.y) | singleton",
		env.formatAlts(distribution.ChildAlternatives(env.mem, e, physical.MakeHashed(by))))
	require.Equal(t, "singleton",
		env.formatAlts(distribution.ChildAlternatives(env.mem, groupBy(opt.ColSet{}), physical.Distribution{})))
}

func TestAppendDistribution(t *testing.T) {
	env := newTestEnv(t, "a", "b")
	ax, ay, bx, by := env.col(t, "a.x"), env.col(t, "a.y"), env.col(t, "b.x"), env.col(t, "b.y")
	u1, u2 := env.md.AddColumn("u1", cat.IntType), env.md.AddColumn("u2", cat.IntType)
	e := env.insert(&opt.Expr{
		Op: opt.AppendOp,
		Private: &opt.UnionAllPrivate{
			LeftCols:  opt.ColList{ax, ay},
			RightCols: opt.ColList{bx, by},
			OutCols:   opt.ColList{u1, u2},
		},
		Children: []*opt.Expr{opt.GroupRef(env.scan("a", ax, ay)), opt.GroupRef(env.scan("b"))},
	})

	testCases := []struct {
		left, right physical.Distribution
		expected    string
	}{
		{left: physical.MakeHashed(ax), right: physical.MakeHashed(bx), expected: "hash(u1)"},
		{left: physical.MakeHashed(ax), right: physical.MakeHashed(by), expected: "random"},
		{left: physical.Singleton, right: physical.Singleton, expected: "singleton"},
		{left: physical.Replicated, right: physical.Replicated, expected: "replicated"},
		{left: physical.Random, right: physical.MakeHashed(bx), expected: "random"},
	}
	for _, tc := range testCases {
		provided := distribution.BuildProvided(env.mem, e, []physical.Distribution{tc.left, tc.right})
		require.Equal(t, tc.expected, provided.Format(env.md))
	}
}
