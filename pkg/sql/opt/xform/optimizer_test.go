// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opttrace"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/util/log"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestOptimizeScan(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	plan, o := env.mustOptimize(t, `(Scan a)`, "")

	// The index costs more to read and provides no useful ordering.
	require.Equal(t, []opt.Operator{opt.TableScanOp}, ops(plan))
	require.True(t, plan.Root.Provided.Distribution.Provides(physical.MakeHashed(env.col(t, "a.x"))))
	require.Equal(t, plan.Root.Cost, plan.Cost)
	require.InDelta(t, 1000, plan.Root.RowCount(), 0.001)
	require.Equal(t, o.Memo().RootGroup(), plan.Root.Group)
}

func TestOptimizeSort(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	plan, _ := env.mustOptimize(t, `(Scan a)`, "ordering=+a.x")
	require.Equal(t, []opt.Operator{opt.SortOp, opt.TableScanOp}, ops(plan))

	sort, scan := plan.Root, plan.Root.Children[0]
	require.Equal(t, sort.Group, scan.Group)
	require.True(t, scan.Required.Any())

	// The cost of the plan is the cost of the scan plus the cost of sorting
	// its output.
	local := MakeDefaultCoster(&env.cfg).ComputeCost(&CostInput{
		Op:            opt.SortOp,
		Private:       sort.Private,
		Relational:    sort.Relational,
		Inputs:        sort.inputs(),
		Provided:      &sort.Provided,
		InputProvided: []physical.Provided{scan.Provided},
	})
	expected := scan.Cost
	expected.Add(local)
	require.InDelta(t, expected.C, plan.Cost.C, 1e-9)
}

func TestOptimizeIndexOrdering(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	root := env.build(t, `(Scan a)`)
	required := env.required(t, "ordering=+a.y")

	o := env.newOptimizer()
	plan, err := o.Optimize(context.Background(), root, required)
	require.NoError(t, err)
	require.True(t, physical.Satisfies(&plan.Root.Provided, required))

	// The plan is no more expensive than sorting the cheapest unordered plan.
	o = env.newOptimizer()
	unordered, err := o.Optimize(context.Background(), root, nil /* required */)
	require.NoError(t, err)
	sorted := Enforce(MakeDefaultCoster(&env.cfg), unordered.Root, required)
	require.False(t, sorted.Cost.Less(plan.Cost), "%s < %s", sorted.Cost, plan.Cost)
}

func TestOptimizeJoin(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	plan, o := env.mustOptimize(t, `
(Select
  (InnerJoin (Scan a) (Scan b) [(Eq a.x b.x)])
  [(Gt a.y 10) (Lt b.y 5)]
)`, "distribution=singleton")

	require.Equal(t, physical.SingletonDistribution, plan.Root.Provided.Distribution.Kind)
	counts := env.rec.RuleCounts()
	require.Positive(t, counts[opt.CommuteJoin])
	require.Positive(t, counts[opt.PushSelectIntoJoinLeft])
	require.Positive(t, counts[opt.PushSelectIntoJoinRight])
	require.Positive(t, counts[opt.GenerateHashJoin])

	// Pushing both filters leaves a join of two filtered inputs in the root
	// group.
	mem := o.Memo()
	var pushed bool
	root := mem.Group(mem.RootGroup())
	for i := 0; i < root.ExprCount(); i++ {
		e := root.Expr(i)
		if e.Op() == opt.InnerJoinOp &&
			mem.Group(e.Child(0)).FirstExpr().Op() == opt.SelectOp &&
			mem.Group(e.Child(1)).FirstExpr().Op() == opt.SelectOp {
			pushed = true
		}
	}
	require.True(t, pushed, "%s", mem)
	require.Greater(t, o.Memo().GroupCount(), 4)
}

func TestOptimizeAssociativityMerge(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	root := env.build(t, `
(InnerJoin
  (InnerJoin (Scan a) (Scan b) [(Eq a.x b.x)])
  (Scan c)
  [(Eq b.x c.x)]
)`)
	a, b, c := root.Child(0).Child(0), root.Child(0).Child(1), root.Child(1)
	ax, bx, cx := opt.Var(env.col(t, "a.x")), opt.Var(env.col(t, "b.x")), opt.Var(env.col(t, "c.x"))
	join := func(left, right *opt.Expr, on *opt.ScalarExpr) *opt.Expr {
		return &opt.Expr{
			Op:       opt.InnerJoinOp,
			Private:  &opt.JoinPrivate{JoinType: opt.InnerJoinOp, On: opt.MakeFilters(on)},
			Children: []*opt.Expr{left, right},
		}
	}
	// a ⋈ (b ⋈ c) is added before the search, in a group of its own.
	associated := join(a, join(b, c, opt.Eq(bx, cx)), opt.Eq(ax, bx))

	o := env.newOptimizer()
	other := o.Memo().Insert(associated)
	plan, err := o.Optimize(context.Background(), root, nil /* required */)
	require.NoError(t, err)
	require.NotNil(t, plan)

	// Associating the root proves that the two groups are the same.
	require.Equal(t, o.Memo().RootGroup(), o.Memo().Group(other).ID())
	require.Less(t, o.Memo().GroupCount(), int(o.Memo().MaxGroupID()))
	require.Positive(t, env.rec.RuleCounts()[opt.AssociateJoin])
}

func TestOptimizeRepeatedFilters(t *testing.T) {
	defer log.Scope(t).Close(t)

	// Merging or pushing down a predicate that is already applied below
	// produces an expression from a descendant group; it must not be merged
	// into its ancestor.
	for _, input := range []string{
		`(Select (Select (Scan a) [(Gt a.x 1)]) [(Gt a.x 1)])`,
		`(Select (InnerJoin (Select (Scan a) [(Gt a.x 1)]) (Scan b) [(Eq a.x b.x)]) [(Gt a.x 1)])`,
	} {
		t.Run(input, func(t *testing.T) {
			env := newTestEnv(t)
			plan, _ := env.mustOptimize(t, input, "")
			require.NotEmpty(t, ops(plan))
		})
	}
}

func TestOptimizeErrors(t *testing.T) {
	defer log.Scope(t).Close(t)

	t.Run("no enforcer", func(t *testing.T) {
		env := newTestEnv(t)
		env.disable(t, opt.EnforceSort)
		_, o, err := env.optimize(t, `(Scan a)`, "ordering=+a.x")
		require.True(t, opterrors.IsNoFeasiblePlan(err), "%v", err)
		require.EqualValues(t, 1, o.metrics.Failures.Count())

		// The index provides the other ordering without a sort.
		env = newTestEnv(t)
		env.disable(t, opt.EnforceSort)
		plan, _ := env.mustOptimize(t, `(Scan a)`, "ordering=+a.y")
		require.Equal(t, []opt.Operator{opt.IndexScanOp}, ops(plan))
	})

	t.Run("no implementation", func(t *testing.T) {
		env := newTestEnv(t)
		env.disable(t, opt.GenerateTableScan, opt.GenerateIndexScans)
		_, _, err := env.optimize(t, `(Select (Scan a) [(Gt a.x 1)])`, "")
		require.True(t, opterrors.IsNoFeasiblePlan(err), "%v", err)
	})

	t.Run("required columns", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.optimize(t, `(Scan a [x])`, "ordering=+a.y")
		require.True(t, opterrors.IsMalformedInput(err), "%v", err)

		// Each input registers its table again, so use a fresh metadata.
		env = newTestEnv(t)
		_, _, err = env.optimize(t, `(Scan a [x])`, "distribution=hash(a.z)")
		require.True(t, opterrors.IsMalformedInput(err), "%v", err)
	})

	t.Run("malformed expression", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.newOptimizer()
		_, err := o.Optimize(context.Background(), nil /* root */, nil /* required */)
		require.True(t, opterrors.IsMalformedInput(err), "%v", err)

		o = env.newOptimizer()
		bad := &opt.Expr{Op: opt.SelectOp, Private: opt.TrueFilter}
		_, err = o.Optimize(context.Background(), bad, nil /* required */)
		require.True(t, opterrors.IsMalformedInput(err), "%v", err)
	})

	t.Run("reuse", func(t *testing.T) {
		env := newTestEnv(t)
		root := env.build(t, `(Scan a)`)
		o := env.newOptimizer()
		_, err := o.Optimize(context.Background(), root, nil /* required */)
		require.NoError(t, err)
		_, err = o.Optimize(context.Background(), root, nil /* required */)
		require.True(t, errors.IsAssertionFailure(err), "%v", err)
	})
}

func TestOptimizeBudget(t *testing.T) {
	defer log.Scope(t).Close(t)
	const query = `(InnerJoin (InnerJoin (Scan a) (Scan b) [(Eq a.x b.x)]) (Scan c) [(Eq b.x c.x)])`

	t.Run("jobs", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.Budget.MaxJobs = 10
		plan, _, err := env.optimize(t, query, "")
		require.Nil(t, plan)
		require.True(t, opterrors.IsResourceExceeded(err), "%v", err)
	})

	t.Run("groups", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.Budget.MaxGroups = 4
		_, _, err := env.optimize(t, query, "")
		require.True(t, opterrors.IsResourceExceeded(err), "%v", err)
	})

	t.Run("exprs", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.Budget.MaxExprs = 12
		_, _, err := env.optimize(t, query, "")
		require.True(t, opterrors.IsResourceExceeded(err), "%v", err)
	})

	t.Run("timeout", func(t *testing.T) {
		defer func(orig func() time.Time) { timeNow = orig }(timeNow)
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		calls := 0
		timeNow = func() time.Time {
			// Every call after the first is an hour later.
			calls++
			return start.Add(time.Duration(calls-1) * time.Hour)
		}
		env := newTestEnv(t)
		env.cfg.Budget.Timeout = time.Minute
		_, _, err := env.optimize(t, query, "")
		require.True(t, opterrors.IsResourceExceeded(err), "%v", err)
		require.Contains(t, err.Error(), "time")
	})

	t.Run("canceled", func(t *testing.T) {
		env := newTestEnv(t)
		root := env.build(t, query)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := env.newOptimizer().Optimize(ctx, root, nil /* required */)
		require.True(t, errors.Is(err, context.Canceled), "%v", err)
	})

	t.Run("enough", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.Budget.MaxJobs = 100000
		env.cfg.Budget.Timeout = time.Hour
		_, _, err := env.optimize(t, query, "")
		require.NoError(t, err)
	})
}

func TestOptimizeStates(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	_, o := env.mustOptimize(t, `(Limit (Scan c) 10)`, "")

	var transitions []string
	for _, e := range env.rec.Filter(opttrace.StateChangedEvent) {
		transitions = append(transitions, e.From+" -> "+e.To)
	}
	require.Equal(t, []string{
		"seeded -> exploring",
		"exploring -> implementing",
		"implementing -> optimizing",
		"optimizing -> extracted",
		"extracted -> done",
	}, transitions)

	require.Len(t, env.rec.Filter(opttrace.GroupCreatedEvent), 2)
	require.EqualValues(t, 1, o.metrics.Optimizations.Count())
	require.EqualValues(t, 0, o.metrics.Failures.Count())
	require.Positive(t, o.metrics.Jobs.Count())
	require.EqualValues(t, 1, o.metrics.Latency.TotalCount())
	require.EqualValues(t, o.Memo().GroupCount(), o.metrics.Groups.Value())

	// A failed search ends in the failed state.
	env.rec.Reset()
	env.disable(t, opt.EnforceDistribution)
	_, _, err := env.optimize(t, `(Scan c)`, "distribution=singleton")
	require.True(t, opterrors.IsNoFeasiblePlan(err), "%v", err)
	last := env.rec.Filter(opttrace.StateChangedEvent)
	require.Equal(t, "failed", last[len(last)-1].To)
}

func TestOptimizeWorkers(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	root := env.build(t, `
(GroupBy
  (Select
    (InnerJoin
      (InnerJoin (Scan a) (Scan b) [(Eq a.x b.x)])
      (Scan d)
      [(Eq b.x d.x)]
    )
    [(Gt a.y 3)]
  )
  [a.y]
  [(n (CountRows))]
)`)
	required := env.required(t, "ordering=+a.y distribution=singleton")

	var plans []string
	var costs []memo.Cost
	for _, workers := range []int{1, 2, 8} {
		env.cfg.Workers = workers
		o := env.newOptimizer()
		plan, err := o.Optimize(context.Background(), root, required)
		require.NoError(t, err)
		plans = append(plans, plan.String())
		costs = append(costs, plan.Cost)
	}
	for i := 1; i < len(plans); i++ {
		if diff := cmp.Diff(plans[0], plans[i]); diff != "" {
			t.Fatalf("plan %d differs from the single worker plan (-want +got):\n%s", i, diff)
		}
		require.Equal(t, costs[0], costs[i])
	}
}

func TestOptimizeWinnersImprove(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	env.mustOptimize(t, `(InnerJoin (Scan c) (Scan e) [(Eq c.x e.x)])`, "ordering=+c.x")

	type key struct {
		group    opt.GroupID
		required string
	}
	last := make(map[key]float64)
	for _, e := range env.rec.Filter(opttrace.WinnerUpdatedEvent) {
		k := key{e.Group, e.Required}
		if prev, ok := last[k]; ok {
			require.Less(t, e.Cost, prev, "winner of G%d %s got more expensive", e.Group, e.Required)
		}
		last[k] = e.Cost
	}
	require.NotEmpty(t, last)
}
