// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opttrace"
	"github.com/cockroachdb/cascades/pkg/util/log"
	"github.com/cockroachdb/cascades/pkg/util/syncutil"
	"github.com/stretchr/testify/require"
)

func TestApplyRulesSkipsDroppedMember(t *testing.T) {
	defer log.Scope(t).Close(t)

	env := newTestEnv(t)
	o := env.newOptimizer()
	o.ctx = context.Background()
	mem := o.Memo()

	limit := func(input memo.GroupID, count int64) *opt.Expr {
		return &opt.Expr{
			Op:       opt.LimitOp,
			Private:  &opt.LimitPrivate{Count: count},
			Children: []*opt.Expr{opt.GroupRef(input)},
		}
	}

	sel := mem.Insert(env.build(t, `(Select (Scan a) [(Gt a.x 1)])`))
	scan := mem.Group(sel).FirstExpr().Child(0)
	filters := mem.Group(sel).FirstExpr().Private().(opt.FiltersExpr)
	lim := mem.Insert(limit(scan, 10))
	above := mem.Insert(limit(lim, 5))
	dup := mem.Insert(limit(sel, 5))
	dropped := mem.Group(dup).FirstExpr()
	kept := mem.Group(above).FirstExpr()
	require.True(t, mem.IsLive(dropped))

	// Proving the limit and the select equivalent makes the two limits above
	// them duplicates, and one of them is dropped.
	require.False(t, mem.InsertInto(&opt.Expr{
		Op:       opt.SelectOp,
		Private:  filters,
		Children: []*opt.Expr{opt.GroupRef(scan)},
	}, lim))
	require.Equal(t, mem.Group(above), mem.Group(dup))
	require.True(t, mem.IsLive(kept))
	require.False(t, mem.IsLive(dropped))

	rules := matchingRules(implementIndex, o.cfg, opt.LimitOp)
	require.NotEmpty(t, rules)
	env.rec.Reset()
	(&applyRulesJob{expr: dropped, rules: rules}).run(o)
	require.Empty(t, env.rec.Filter(opttrace.RuleFiredEvent))
	for _, r := range rules {
		require.False(t, dropped.HasApplied(r.Name))
	}

	// The surviving member still gets the rules.
	(&applyRulesJob{expr: kept, rules: rules}).run(o)
	require.Len(t, env.rec.Filter(opttrace.RuleFiredEvent), len(rules))
}

func TestBindingLimitLogged(t *testing.T) {
	defer log.Scope(t).Close(t)

	var mu syncutil.Mutex
	var msgs []string
	remove := log.Intercept(func(e log.Entry) {
		if strings.Contains(e.Message, "stopped after") {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, e.Message)
		}
	})
	defer remove()

	// Once the inner join is commuted, associativity has two bindings at
	// the top join but may only enumerate one.
	env := newTestEnv(t)
	env.cfg.MaxBindingsPerRule = 1
	env.mustOptimize(t, `
(InnerJoin
  (InnerJoin (Scan a) (Scan b) [(Eq a.x b.x)])
  (Scan c)
  [(Eq b.x c.x)]
)`, "")

	// Every truncation of the optimization falls in one rate limit interval.
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "stopped after 1 bindings")
}
