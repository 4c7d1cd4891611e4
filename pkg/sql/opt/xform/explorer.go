// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"time"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/util/log"
)

// The explorer adds logically equivalent expressions to the memo by
// applying exploration rules, and then physical expressions by applying
// implementation rules.
//
// Exploration runs in rounds. A round explores every group reachable from
// the root, children before parents, and applies each exploration rule to
// each logical member that it was not yet applied to. A rule output can
// create new members and groups, or prove that two groups are equivalent and
// merge them. The optimizer runs rounds until one adds nothing to the memo.
// Since a rule is applied to a member at most once, and the rules only
// recombine the columns and predicates of the input, the number of distinct
// expressions is finite and exploration terminates.

// truncationLogInterval is the minimum time between two log messages about
// rules that stopped at the binding limit.
const truncationLogInterval = 10 * time.Second

// exploreGroupJob explores every logical member of a group.
type exploreGroupJob struct {
	group memo.GroupID
	round int
}

func (j *exploreGroupJob) run(o *Optimizer) bool {
	g := o.mem.Group(j.group)
	if g.ExploredInRound(j.round) {
		return true
	}
	g.SetExploredInRound(j.round)
	for i, n := 0, g.ExprCount(); i < n; i++ {
		if e := g.Expr(i); e.IsLogical() {
			o.sched.spawn(&exploreExprJob{expr: e, round: j.round})
		}
	}
	return true
}

// exploreExprJob explores the children of a logical member, and then
// applies the exploration rules to the member.
type exploreExprJob struct {
	expr  *memo.GroupExpr
	round int
	step  int
}

func (j *exploreExprJob) run(o *Optimizer) bool {
	switch j.step {
	case 0:
		j.step++
		for i := 0; i < j.expr.ChildCount(); i++ {
			o.sched.spawn(&exploreGroupJob{group: j.expr.Child(i), round: j.round})
		}
		return false

	default:
		o.spawnRules(j.expr, exploreIndex)
		return true
	}
}

// implementGroupJob applies the implementation rules to every logical member
// of a group and of the groups below it.
type implementGroupJob struct {
	group memo.GroupID
}

func (j *implementGroupJob) run(o *Optimizer) bool {
	g := o.mem.Group(j.group)
	if g.Implemented() {
		return true
	}
	g.SetImplemented()
	for i, n := 0, g.ExprCount(); i < n; i++ {
		if e := g.Expr(i); e.IsLogical() {
			o.sched.spawn(&implementExprJob{expr: e})
		}
	}
	return true
}

// implementExprJob implements the children of a logical member, and then
// applies the implementation rules to the member.
type implementExprJob struct {
	expr *memo.GroupExpr
	step int
}

func (j *implementExprJob) run(o *Optimizer) bool {
	switch j.step {
	case 0:
		j.step++
		for i := 0; i < j.expr.ChildCount(); i++ {
			o.sched.spawn(&implementGroupJob{group: j.expr.Child(i)})
		}
		return false

	default:
		o.spawnRules(j.expr, implementIndex)
		return true
	}
}

// spawnRules schedules the enabled rules that match the member and were not
// applied to it yet.
func (o *Optimizer) spawnRules(e *memo.GroupExpr, idx *ruleIndex) {
	var rules []*Rule
	for _, r := range matchingRules(idx, o.cfg, e.Op()) {
		if !e.HasApplied(r.Name) {
			rules = append(rules, r)
		}
	}
	if len(rules) > 0 {
		o.sched.spawn(&applyRulesJob{expr: e, rules: rules})
	}
}

// applyRulesJob applies a batch of rules to a member. The rewrites of all
// rules are computed first, possibly in parallel, since computing them only
// reads the memo. They are then added to the memo one rule at a time, in
// rule order, so that the memo ends up the same for any number of workers.
type applyRulesJob struct {
	expr  *memo.GroupExpr
	rules []*Rule
}

func (j *applyRulesJob) run(o *Optimizer) bool {
	// A member that was merged into another group can be visited again
	// before this job runs, or dropped from it.
	if !o.mem.IsLive(j.expr) {
		return true
	}
	rules := j.rules[:0]
	for _, r := range j.rules {
		if !j.expr.HasApplied(r.Name) {
			rules = append(rules, r)
		}
	}
	j.rules = rules
	outputs := make([][]*opt.Expr, len(j.rules))
	err := runParallel(o.ctx, o.cfg.Workers, len(j.rules), func(i int) {
		outputs[i] = o.computeRule(j.rules[i], j.expr)
	})
	if err != nil {
		panic(err)
	}
	for i, r := range j.rules {
		// A merge by an earlier rule can drop the member as a duplicate.
		if !o.mem.IsLive(j.expr) {
			break
		}
		o.applyRule(r, j.expr, outputs[i])
	}
	return true
}

// computeRule enumerates the bindings of the rule's pattern at the member,
// and returns the rewrites of those that pass the rule's check.
func (o *Optimizer) computeRule(r *Rule, e *memo.GroupExpr) []*opt.Expr {
	var funcs CustomFuncs
	funcs.Init(o.mem)
	var res []*opt.Expr
	binder := NewBinder(o.mem, r.Pattern, e, o.cfg.MaxBindingsPerRule)
	for {
		b, ok := binder.Next()
		if !ok {
			break
		}
		if r.Check != nil && !r.Check(&funcs, b) {
			continue
		}
		res = append(res, r.Apply(&funcs, b)...)
	}
	if binder.Truncated() && o.truncations.ShouldLog() {
		log.Infof(o.ctx, "%s stopped after %d bindings of %s", r.Name, o.cfg.MaxBindingsPerRule, e)
	}
	return res
}

// applyRule adds the rewrites of a rule to the member's group, and records
// that the rule was applied.
func (o *Optimizer) applyRule(r *Rule, e *memo.GroupExpr, outputs []*opt.Expr) {
	e.MarkApplied(r.Name)
	group := e.Group()
	lastGroup := o.mem.MaxGroupID()
	groupCount := o.mem.GroupCount()
	added := 0
	for _, out := range outputs {
		if r.Name.IsExplore() && !out.Op.IsLogical() {
			panic(opterrors.RuleContractViolationf("%s produced non-logical %s", r.Name, out.Op))
		}
		if r.Name.IsImplement() && !out.Op.IsPhysical() {
			panic(opterrors.RuleContractViolationf("%s produced non-physical %s", r.Name, out.Op))
		}
		if o.mem.InsertInto(out, group) {
			added++
		}
		// A merge can renumber the group of the member.
		group = e.Group()
	}
	if added > 0 || o.mem.MaxGroupID() != lastGroup || o.mem.GroupCount() != groupCount {
		o.changed = true
	}
	o.metrics.RulesFired.Inc(1)
	o.tracer.RuleFired(o.ctx, r.Name, o.mem.Group(group).ID(), added)
	for id := lastGroup + 1; id <= o.mem.MaxGroupID(); id++ {
		o.tracer.GroupCreated(o.ctx, id, o.mem.Group(id).FirstExpr().Op())
	}
}
