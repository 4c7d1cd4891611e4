// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/stretchr/testify/require"
)

func TestRuleRegistry(t *testing.T) {
	for _, r := range exploreRules {
		require.True(t, r.Name.IsExplore(), "%s", r.Name)
		require.True(t, r.Pattern.Op.IsLogical(), "%s", r.Name)
	}
	for _, r := range implementRules {
		require.True(t, r.Name.IsImplement(), "%s", r.Name)
		require.True(t, r.Pattern.Op.IsLogical(), "%s", r.Name)
	}

	// Every logical operator can be implemented.
	for op := opt.ScanOp; op < opt.NumOperators; op++ {
		if op.IsLogical() {
			require.NotEmpty(t, implementIndex[op], "%s", op)
		}
	}

	// Rules are applied in decreasing order of promise.
	for _, idx := range []*ruleIndex{exploreIndex, implementIndex} {
		for op := range idx {
			rules := idx[op]
			for i := 1; i < len(rules); i++ {
				require.GreaterOrEqual(t, rules[i-1].Promise, rules[i].Promise)
			}
		}
	}
	require.Len(t, AllRules(), len(exploreRules)+len(implementRules))
}

func TestMatchingRules(t *testing.T) {
	env := newTestEnv(t)
	names := func(rules []*Rule) []opt.RuleName {
		var res []opt.RuleName
		for _, r := range rules {
			res = append(res, r.Name)
		}
		return res
	}

	require.Equal(t,
		[]opt.RuleName{opt.GenerateHashJoin, opt.GenerateMergeJoin, opt.GenerateNestedLoopJoin},
		names(matchingRules(implementIndex, &env.cfg, opt.InnerJoinOp)))
	require.Equal(t,
		[]opt.RuleName{opt.AssociateJoin, opt.CommuteJoin},
		names(matchingRules(exploreIndex, &env.cfg, opt.InnerJoinOp)))
	require.Equal(t,
		[]opt.RuleName{opt.MergeSelects, opt.PushSelectIntoJoinLeft, opt.PushSelectIntoJoinRight},
		names(matchingRules(exploreIndex, &env.cfg, opt.SelectOp)))

	env.disable(t, opt.GenerateMergeJoin, opt.CommuteJoin)
	require.Equal(t,
		[]opt.RuleName{opt.GenerateHashJoin, opt.GenerateNestedLoopJoin},
		names(matchingRules(implementIndex, &env.cfg, opt.LeftJoinOp)))
	require.Equal(t,
		[]opt.RuleName{opt.AssociateJoin},
		names(matchingRules(exploreIndex, &env.cfg, opt.InnerJoinOp)))
	require.Empty(t, matchingRules(exploreIndex, &env.cfg, opt.ScanOp))
}

func TestRulesDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.disable(t, opt.CommuteJoin, opt.AssociateJoin, opt.GenerateMergeJoin, opt.GenerateNestedLoopJoin)
	plan, _ := env.mustOptimize(t, `(InnerJoin (Scan a) (Scan b) [(Eq a.x b.x)])`, "")

	counts := env.rec.RuleCounts()
	require.Zero(t, counts[opt.CommuteJoin])
	require.Zero(t, counts[opt.GenerateMergeJoin])
	require.Equal(t, 1, counts[opt.GenerateHashJoin])

	var joins []opt.Operator
	plan.Root.Walk(func(n *PlanNode) bool {
		if n.Op.IsPhysicalJoin() {
			joins = append(joins, n.Op)
		}
		return true
	})
	require.Equal(t, []opt.Operator{opt.HashJoinOp}, joins)
}
