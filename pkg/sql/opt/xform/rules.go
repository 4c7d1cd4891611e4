// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"sort"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optconfig"
)

// Rule is a transformation rule. An exploration rule adds logically
// equivalent expressions to the group of the matched expression; an
// implementation rule adds physical expressions that implement it.
//
// A rule is applied to a memo expression at most once. Its outputs must
// produce the same rows as the matched expression; the root of each output
// is added to the matched expression's group.
type Rule struct {
	Name    opt.RuleName
	Pattern *Pattern

	// Promise orders the rules that match the same expression: rules with a
	// higher promise are applied first. It does not affect which plan is
	// found.
	Promise int

	// Check, if set, filters out bindings that the rule cannot rewrite.
	Check func(c *CustomFuncs, b *Binding) bool

	// Apply returns the rewrites of a binding.
	Apply func(c *CustomFuncs, b *Binding) []*opt.Expr
}

var (
	joinPattern = func(op opt.Operator) *Pattern {
		return MakePattern(op, Any, Any)
	}
	logicalJoins = []opt.Operator{opt.InnerJoinOp, opt.LeftJoinOp, opt.SemiJoinOp, opt.AntiJoinOp}
)

var exploreRules = []*Rule{
	{
		Name:    opt.CommuteJoin,
		Pattern: joinPattern(opt.InnerJoinOp),
		Promise: 1,
		Apply:   (*CustomFuncs).CommuteJoin,
	},
	{
		Name: opt.AssociateJoin,
		Pattern: MakePattern(opt.InnerJoinOp,
			MakePattern(opt.InnerJoinOp, Any, Any), Any),
		Promise: 2,
		Check:   (*CustomFuncs).CanAssociateJoin,
		Apply:   (*CustomFuncs).AssociateJoin,
	},
	{
		Name:    opt.PushSelectIntoJoinLeft,
		Pattern: MakePattern(opt.SelectOp, joinPattern(opt.InnerJoinOp)),
		Promise: 4,
		Check: func(c *CustomFuncs, b *Binding) bool {
			return c.CanPushSelectIntoJoin(b, 0 /* side */)
		},
		Apply: func(c *CustomFuncs, b *Binding) []*opt.Expr {
			return c.PushSelectIntoJoin(b, 0 /* side */)
		},
	},
	{
		Name:    opt.PushSelectIntoJoinRight,
		Pattern: MakePattern(opt.SelectOp, joinPattern(opt.InnerJoinOp)),
		Promise: 4,
		Check: func(c *CustomFuncs, b *Binding) bool {
			return c.CanPushSelectIntoJoin(b, 1 /* side */)
		},
		Apply: func(c *CustomFuncs, b *Binding) []*opt.Expr {
			return c.PushSelectIntoJoin(b, 1 /* side */)
		},
	},
	{
		Name:    opt.MergeSelects,
		Pattern: MakePattern(opt.SelectOp, MakePattern(opt.SelectOp)),
		Promise: 5,
		Apply:   (*CustomFuncs).MergeSelects,
	},
}

var implementRules = func() []*Rule {
	rules := []*Rule{
		{
			Name:    opt.GenerateTableScan,
			Pattern: MakePattern(opt.ScanOp),
			Promise: 1,
			Apply:   (*CustomFuncs).GenerateTableScan,
		},
		{
			Name:    opt.GenerateIndexScans,
			Pattern: MakePattern(opt.ScanOp),
			Promise: 2,
			Check:   (*CustomFuncs).HasUsableIndexes,
			Apply:   (*CustomFuncs).GenerateIndexScans,
		},
		{
			Name:    opt.ImplementSelect,
			Pattern: MakePattern(opt.SelectOp),
			Apply:   (*CustomFuncs).ImplementSelect,
		},
		{
			Name:    opt.ImplementProject,
			Pattern: MakePattern(opt.ProjectOp),
			Apply:   (*CustomFuncs).ImplementProject,
		},
		{
			Name:    opt.GenerateHashGroupBy,
			Pattern: MakePattern(opt.GroupByOp),
			Promise: 2,
			Check: func(c *CustomFuncs, b *Binding) bool {
				return !c.IsScalarGroupBy(b)
			},
			Apply: (*CustomFuncs).GenerateHashGroupBy,
		},
		{
			Name:    opt.GenerateStreamGroupBy,
			Pattern: MakePattern(opt.GroupByOp),
			Promise: 1,
			Apply:   (*CustomFuncs).GenerateStreamGroupBy,
		},
		{
			Name:    opt.ImplementLimit,
			Pattern: MakePattern(opt.LimitOp),
			Apply:   (*CustomFuncs).ImplementLimit,
		},
		{
			Name:    opt.ImplementUnionAll,
			Pattern: MakePattern(opt.UnionAllOp),
			Apply:   (*CustomFuncs).ImplementUnionAll,
		},
		{
			Name:    opt.ImplementValues,
			Pattern: MakePattern(opt.ValuesOp),
			Apply:   (*CustomFuncs).ImplementValues,
		},
	}
	for _, op := range logicalJoins {
		rules = append(rules,
			&Rule{
				Name:    opt.GenerateHashJoin,
				Pattern: joinPattern(op),
				Promise: 3,
				Check:   (*CustomFuncs).HasEquality,
				Apply:   (*CustomFuncs).GenerateHashJoin,
			},
			&Rule{
				Name:    opt.GenerateMergeJoin,
				Pattern: joinPattern(op),
				Promise: 2,
				Check:   (*CustomFuncs).HasEquality,
				Apply:   (*CustomFuncs).GenerateMergeJoin,
			},
			&Rule{
				Name:    opt.GenerateNestedLoopJoin,
				Pattern: joinPattern(op),
				Promise: 1,
				Apply:   (*CustomFuncs).GenerateNestedLoopJoin,
			},
		)
	}
	return rules
}()

// ruleIndex maps the root operator of a pattern to the rules that can match
// an expression with that operator, in the order they are applied.
type ruleIndex [opt.NumOperators][]*Rule

var exploreIndex, implementIndex = buildRuleIndex(exploreRules), buildRuleIndex(implementRules)

func buildRuleIndex(rules []*Rule) *ruleIndex {
	var idx ruleIndex
	for _, r := range rules {
		idx[r.Pattern.Op] = append(idx[r.Pattern.Op], r)
	}
	for op := range idx {
		sortRules(idx[op])
	}
	return &idx
}

// sortRules orders rules by decreasing promise, then by name.
func sortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Promise != rules[j].Promise {
			return rules[i].Promise > rules[j].Promise
		}
		return rules[i].Name < rules[j].Name
	})
}

// matchingRules returns the enabled rules whose pattern root matches the
// operator, in application order.
func matchingRules(idx *ruleIndex, cfg *optconfig.Config, op opt.Operator) []*Rule {
	var res []*Rule
	for _, r := range idx[op] {
		if cfg.RuleEnabled(r.Name) {
			res = append(res, r)
		}
	}
	return res
}

// AllRules returns every rule, for documentation and tests. Rules that are
// registered for several operators are listed once per operator.
func AllRules() []*Rule {
	res := make([]*Rule, 0, len(exploreRules)+len(implementRules))
	res = append(res, exploreRules...)
	return append(res, implementRules...)
}
