// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/sql/opt/testutils/testcat"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	md   *opt.Metadata
	mem  *Memo
	tabs map[string]opt.TableID
}

func newTestEnv(t *testing.T, budget Budget, tables ...string) *testEnv {
	t.Helper()
	catalog := testcat.New()
	env := &testEnv{md: &opt.Metadata{}, mem: &Memo{}, tabs: make(map[string]opt.TableID)}
	env.md.Init()
	for _, name := range tables {
		tab, err := catalog.ResolveTable(name)
		require.NoError(t, err)
		env.tabs[name] = env.md.AddTable(tab, "")
	}
	env.mem.Init(env.md, budget)
	return env
}

func (env *testEnv) col(t *testing.T, label string) opt.ColumnID {
	t.Helper()
	col, err := env.md.ColumnByLabel(label)
	require.NoError(t, err)
	return col
}

func (env *testEnv) scan(name string) *opt.Expr {
	tabID := env.tabs[name]
	return &opt.Expr{
		Op:      opt.ScanOp,
		Private: &opt.ScanPrivate{Table: tabID, Cols: env.md.TableMeta(tabID).AllCols()},
	}
}

func (env *testEnv) join(op opt.Operator, left, right *opt.Expr, on ...*opt.ScalarExpr) *opt.Expr {
	return &opt.Expr{
		Op:       op,
		Private:  &opt.JoinPrivate{JoinType: op, On: opt.MakeFilters(on...)},
		Children: []*opt.Expr{left, right},
	}
}

func selectExpr(input *opt.Expr, conds ...*opt.ScalarExpr) *opt.Expr {
	return &opt.Expr{Op: opt.SelectOp, Private: opt.MakeFilters(conds...), Children: []*opt.Expr{input}}
}

func limitExpr(input *opt.Expr, count int64) *opt.Expr {
	return &opt.Expr{Op: opt.LimitOp, Private: &opt.LimitPrivate{Count: count}, Children: []*opt.Expr{input}}
}

// requireContractViolation runs fn and checks that it panics with a
// RuleContractViolation.
func requireContractViolation(t *testing.T, fn func()) {
	t.Helper()
	err := catchError(fn)
	require.Error(t, err)
	require.True(t, opterrors.IsRuleContractViolation(err), "unexpected error: %v", err)
}

func catchError(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
		}
	}()
	fn()
	return nil
}

func TestMemoInsert(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a", "b")
	ax, bx := env.col(t, "a.x"), env.col(t, "b.x")
	tree := env.join(opt.InnerJoinOp, env.scan("a"), env.scan("b"), opt.Eq(opt.Var(ax), opt.Var(bx)))

	root := env.mem.Insert(tree)
	require.Equal(t, 3, env.mem.GroupCount())
	require.Equal(t, 3, env.mem.ExprCount())

	// Inserting the same tree again is a no-op.
	require.Equal(t, root, env.mem.Insert(tree))
	require.Equal(t, 3, env.mem.GroupCount())
	require.Equal(t, 3, env.mem.ExprCount())

	g := env.mem.Group(root)
	require.Equal(t, opt.InnerJoinOp, g.FirstExpr().Op())
	require.Equal(t, 2, g.FirstExpr().ChildCount())
	require.Equal(t, "(1-5)", g.Relational().OutputCols.String())

	// Adding the commuted join to the root group adds a member once.
	left, right := g.FirstExpr().Child(0), g.FirstExpr().Child(1)
	commuted := env.join(opt.InnerJoinOp, opt.GroupRef(right), opt.GroupRef(left),
		opt.Eq(opt.Var(ax), opt.Var(bx)))
	require.True(t, env.mem.InsertInto(commuted, root))
	require.False(t, env.mem.InsertInto(commuted, root))
	require.Equal(t, 2, g.ExprCount())
	require.Equal(t, 1, g.Expr(1).Ordinal())
	require.Equal(t, 4, env.mem.ExprCount())
	require.Equal(t, 2, g.Version())
}

func TestMemoMerge(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a")
	ay := env.col(t, "a.y")
	scanA := env.scan("a")

	filter := opt.MakeScalar(opt.GtOp, opt.Var(ay), opt.Const(5))
	g1 := env.mem.Insert(scanA)
	g2 := env.mem.Insert(limitExpr(scanA, 10))
	g3 := env.mem.Insert(selectExpr(scanA, filter))
	require.Equal(t, 3, env.mem.GroupCount())

	// Parents of the two groups become duplicates once the groups merge.
	g4 := env.mem.Insert(limitExpr(opt.GroupRef(g2), 5))
	g5 := env.mem.Insert(limitExpr(opt.GroupRef(g3), 5))
	require.NotEqual(t, g4, g5)
	require.Equal(t, 5, env.mem.GroupCount())

	// The select is already in g3, so adding it to g2 proves g2 and g3
	// equivalent.
	before := env.mem.Group(g2).Version() + env.mem.Group(g3).Version()
	require.False(t, env.mem.InsertInto(selectExpr(opt.GroupRef(g1), filter), g2))

	require.Equal(t, 3, env.mem.GroupCount())
	require.Equal(t, env.mem.Group(g2), env.mem.Group(g3))
	require.Equal(t, env.mem.Group(g4), env.mem.Group(g5))
	require.Equal(t, 2, env.mem.Group(g2).ExprCount())
	require.Equal(t, 1, env.mem.Group(g4).ExprCount())
	require.Equal(t, 4, env.mem.ExprCount())
	require.Equal(t, before+1, env.mem.Group(g2).Version())

	var live []GroupID
	for g := range env.mem.Groups() {
		live = append(live, g.ID())
	}
	require.Equal(t, []GroupID{g1, g2, g4}, live)

	// The iterator can be restarted, and stops early when asked to.
	n := 0
	env.mem.Groups()(func(*Group) bool {
		n++
		return false
	})
	require.Equal(t, 1, n)
}

func TestMemoRedundantRewrite(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a")
	ax := env.col(t, "a.x")
	filter := opt.MakeScalar(opt.GtOp, opt.Var(ax), opt.Const(1))

	// Two selects with the same predicate stacked on a scan.
	g1 := env.mem.Insert(env.scan("a"))
	g2 := env.mem.Insert(selectExpr(opt.GroupRef(g1), filter))
	g3 := env.mem.Insert(selectExpr(opt.GroupRef(g2), filter))
	require.Equal(t, 3, env.mem.GroupCount())

	// Merging the selects of g3 yields the select already in g2, a descendant
	// of g3. The rewrite is dropped and the groups stay apart.
	require.NotPanics(t, func() {
		require.False(t, env.mem.InsertInto(selectExpr(opt.GroupRef(g1), filter, filter), g3))
	})
	require.Equal(t, 3, env.mem.GroupCount())
	require.Equal(t, 1, env.mem.Group(g3).ExprCount())
	require.NotEqual(t, env.mem.Group(g2), env.mem.Group(g3))

	// The same holds for a rewrite that is a reference to a descendant, and
	// for one that already lives in an ancestor.
	require.NotPanics(t, func() {
		require.False(t, env.mem.InsertInto(opt.GroupRef(g2), g3))
		require.False(t, env.mem.InsertInto(selectExpr(opt.GroupRef(g2), filter), g1))
	})
	require.Equal(t, 3, env.mem.GroupCount())
	require.Equal(t, 1, env.mem.Group(g1).ExprCount())
	require.Equal(t, 3, env.mem.ExprCount())
}

func TestMemoContractViolations(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a")
	ay := env.col(t, "a.y")
	g1 := env.mem.Insert(env.scan("a"))
	g2 := env.mem.Insert(selectExpr(opt.GroupRef(g1), opt.MakeScalar(opt.GtOp, opt.Var(ay), opt.Const(5))))

	t.Run("cycle", func(t *testing.T) {
		requireContractViolation(t, func() {
			env.mem.InsertInto(limitExpr(opt.GroupRef(g2), 10), g2)
		})
	})

	t.Run("columns", func(t *testing.T) {
		partial := &opt.Expr{
			Op:      opt.ScanOp,
			Private: &opt.ScanPrivate{Table: env.tabs["a"], Cols: opt.MakeColSet(ay)},
		}
		requireContractViolation(t, func() {
			env.mem.InsertInto(partial, g1)
		})
	})

	t.Run("enforcer", func(t *testing.T) {
		sort := &opt.Expr{
			Op:       opt.SortOp,
			Private:  &opt.SortPrivate{Ordering: opt.Ordering{opt.MakeOrderingColumn(ay, false)}},
			Children: []*opt.Expr{opt.GroupRef(g1)},
		}
		requireContractViolation(t, func() {
			env.mem.InsertInto(sort, g1)
		})
	})

	t.Run("arity", func(t *testing.T) {
		requireContractViolation(t, func() {
			env.mem.Insert(&opt.Expr{Op: opt.LimitOp, Private: &opt.LimitPrivate{Count: 1}})
		})
	})
}

func TestMemoBudget(t *testing.T) {
	env := newTestEnv(t, Budget{MaxGroups: 2}, "a", "b")
	err := catchError(func() {
		env.mem.Insert(env.join(opt.InnerJoinOp, env.scan("a"), env.scan("b")))
	})
	require.True(t, opterrors.IsResourceExceeded(err), "unexpected error: %v", err)

	env = newTestEnv(t, Budget{MaxExprs: 1}, "a")
	err = catchError(func() {
		env.mem.Insert(limitExpr(env.scan("a"), 1))
	})
	require.True(t, opterrors.IsResourceExceeded(err), "unexpected error: %v", err)
}

func TestMemoInternRequired(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a")
	ax := env.col(t, "a.x")

	require.Equal(t, MinRequiredID, env.mem.InternRequired(&physical.Required{}))
	ordered := &physical.Required{Ordering: opt.Ordering{opt.MakeOrderingColumn(ax, false)}}
	id := env.mem.InternRequired(ordered)
	require.NotEqual(t, MinRequiredID, id)
	require.Equal(t, id, env.mem.InternRequired(&physical.Required{Ordering: ordered.Ordering}))
	require.True(t, env.mem.LookupRequired(id).Equals(ordered))

	root := env.mem.Insert(env.scan("a"))
	env.mem.SetRoot(root, ordered)
	require.Equal(t, root, env.mem.RootGroup())
	require.Equal(t, id, env.mem.RootRequired())
}

func TestGroupWinners(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a")
	root := env.mem.Insert(env.scan("a"))
	require.True(t, env.mem.InsertInto(&opt.Expr{
		Op:      opt.TableScanOp,
		Private: &opt.ScanPrivate{Table: env.tabs["a"], Cols: env.md.TableMeta(env.tabs["a"]).AllCols()},
	}, root))
	g := env.mem.Group(root)
	scan := g.Expr(1)

	// An infeasible candidate never wins.
	require.False(t, g.UpdateWinner(&Winner{Required: MinRequiredID, Cost: Cost{C: 1}}))

	require.True(t, g.UpdateWinner(&Winner{Required: MinRequiredID, Expr: scan, Cost: Cost{C: 10}}))
	require.False(t, g.UpdateWinner(&Winner{Required: MinRequiredID, Expr: scan, Cost: Cost{C: 11}}))

	// Ties go to members before enforcers.
	require.False(t, g.UpdateWinner(&Winner{
		Required: MinRequiredID, Enforcer: opt.SpoolOp, ChildRequired: []RequiredID{MinRequiredID},
		Cost: Cost{C: 10},
	}))
	require.True(t, g.UpdateWinner(&Winner{
		Required: MinRequiredID, Enforcer: opt.SpoolOp, ChildRequired: []RequiredID{MinRequiredID},
		Cost: Cost{C: 9},
	}))

	w := g.CompleteWinner(MinRequiredID)
	require.True(t, w.Complete)
	require.True(t, w.IsEnforcer())
	require.Equal(t, opt.SpoolOp, w.Op())
	requireContractViolation(t, func() {
		g.UpdateWinner(&Winner{Required: MinRequiredID, Expr: scan, Cost: Cost{C: 1}})
	})

	// Completing properties without a candidate records an infeasible winner.
	other := env.mem.InternRequired(&physical.Required{Rewind: physical.Rewindable})
	w = g.CompleteWinner(other)
	require.False(t, w.Feasible())
	require.True(t, w.Cost.IsMax())
	require.Equal(t, 2, g.WinnerCount())

	var ids []RequiredID
	g.ForEachWinner(func(w *Winner) { ids = append(ids, w.Required) })
	require.Equal(t, []RequiredID{MinRequiredID, other}, ids)
}

func TestMemoFormat(t *testing.T) {
	env := newTestEnv(t, Budget{}, "a", "b")
	ax, bx := env.col(t, "a.x"), env.col(t, "b.x")
	root := env.mem.Insert(env.join(opt.InnerJoinOp, env.scan("a"), env.scan("b"),
		opt.Eq(opt.Var(ax), opt.Var(bx))))
	env.mem.SetRoot(root, physical.MinRequired)

	expected := `memo (3 groups, 3 expressions)
 ├── G1: (inner-join G2 G3 on: a.x = b.x)
 ├── G2: (scan a (a.x,a.y,a.z))
 └── G3: (scan b (b.x,b.y))
`
	require.Equal(t, expected, env.mem.String())

	raw := env.mem.FormatString(FmtRaw)
	require.Contains(t, raw, "root: G3, []")
	require.Contains(t, raw, "G1: (scan a (a.x,a.y,a.z))")
}
