// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/util/log"
)

// The optimization jobs find the lowest cost plan of a group for a set of
// required physical properties. Every physical member of the group that can
// provide the properties is a candidate, and so is every enforcer that can
// establish them on top of the group. Costing a candidate requires the
// winners of its children for the properties that the candidate requires of
// them, so the search recurses into the child groups first.
//
// Candidates are costed in member order, followed by the enforcers, and a
// candidate replaces the winner only if it is strictly cheaper. Since the
// scheduler completes each child search before the next starts, the
// candidates are visited in the same order for any number of workers, and
// the same winner is found.
//
// A candidate is abandoned as soon as the winners of its children cost more
// than the current winner: its own cost could only add to theirs.

// optimizeGroupJob finds the winner of a group for the required properties.
type optimizeGroupJob struct {
	group    memo.GroupID
	required memo.RequiredID
	step     int
	state    *groupState
}

func (j *optimizeGroupJob) run(o *Optimizer) bool {
	g := o.mem.Group(j.group)
	switch j.step {
	case 0:
		if w, ok := g.Winner(j.required); ok && w.Complete {
			return true
		}
		j.state = o.state.startOptimizing(g.ID(), j.required)
		j.step++
		if !g.Implemented() {
			o.sched.spawn(&implementGroupJob{group: g.ID()})
			return false
		}
		fallthrough

	case 1:
		j.step++
		required := o.mem.LookupRequired(j.required)
		for i, n := 0, g.ExprCount(); i < n; i++ {
			e := g.Expr(i)
			if e.IsPhysical() && canProvidePhysicalProps(o.mem, e, required) {
				o.sched.spawn(&optimizeExprJob{expr: e, required: j.required, state: j.state})
			}
		}
		for _, enf := range enforcers(o.cfg, required) {
			o.sched.spawn(&enforceAndCostJob{
				group: g.ID(), required: j.required, enforcer: enf, state: j.state,
			})
		}
		return false

	default:
		w := g.CompleteWinner(j.required)
		j.state.optimizing = false
		if log.V(3) {
			log.VEventf(o.ctx, 3, "G%d %s: %d candidates, %d pruned, winner %s cost=%s",
				g.ID(), o.mem.LookupRequired(j.required), j.state.candidates, j.state.pruned,
				w.Op(), w.Cost)
		}
		return true
	}
}

// optimizeGroup returns the complete winner of the group for the required
// properties, or spawns the job that finds it and returns false.
func (o *Optimizer) optimizeGroup(group memo.GroupID, required memo.RequiredID) (*memo.Winner, bool) {
	if w, ok := o.mem.Group(group).Winner(required); ok && w.Complete {
		return w, true
	}
	o.sched.spawn(&optimizeGroupJob{group: group, required: required})
	return nil, false
}

// candidate is a physical member with one alternative set of properties
// required of its children, whose winners were all found.
type candidate struct {
	childRequired []memo.RequiredID
	children      []*memo.Winner
	provided      physical.Provided
	childCost     memo.Cost
	local         memo.Cost
}

// optimizeExprJob costs a physical member of a group for the required
// properties. The member may offer several alternatives for the properties
// required of its children; each one is a separate candidate.
type optimizeExprJob struct {
	expr     *memo.GroupExpr
	required memo.RequiredID
	state    *groupState

	alts [][]memo.RequiredID
	// alt and child are the position of the search over the alternatives.
	alt, child int
	children   []*memo.Winner
	childCost  memo.Cost
	started    bool

	candidates []candidate
}

func (j *optimizeExprJob) run(o *Optimizer) bool {
	g := o.mem.Group(j.expr.Group())
	required := o.mem.LookupRequired(j.required)
	if !j.started {
		j.started = true
		j.alts = buildChildPhysicalProps(o.mem, j.expr, required)
	}

	for ; j.alt < len(j.alts); j.alt, j.child, j.children, j.childCost = j.alt+1, 0, nil, (memo.Cost{}) {
		childRequired := j.alts[j.alt]
		abandoned := false
		for ; j.child < len(childRequired); j.child++ {
			w, ok := o.optimizeGroup(j.expr.Child(j.child), childRequired[j.child])
			if !ok {
				// Resume with the same child once its winner is found.
				return false
			}
			if !w.Feasible() {
				abandoned = true
				break
			}
			j.children = append(j.children, w)
			j.childCost.Add(w.Cost)
			if cur, ok := g.Winner(j.required); ok && cur.Feasible() && cur.Cost.Less(j.childCost) {
				j.state.pruned++
				abandoned = true
				break
			}
		}
		if abandoned {
			continue
		}

		childProvided := make([]physical.Provided, len(j.children))
		for i, w := range j.children {
			childProvided[i] = w.Provided
		}
		provided := buildProvidedPhysicalProps(o.mem, j.expr, childProvided)
		if !physical.Satisfies(&provided, required) {
			continue
		}
		j.candidates = append(j.candidates, candidate{
			childRequired: childRequired,
			children:      j.children,
			provided:      provided,
			childCost:     j.childCost,
		})
	}

	o.costCandidates(j.expr, g, j.candidates)
	for i := range j.candidates {
		c := &j.candidates[i]
		j.state.candidates++
		cost := c.local
		cost.Add(c.childCost)
		o.offerWinner(g, &memo.Winner{
			Required:      j.required,
			Expr:          j.expr,
			ChildRequired: c.childRequired,
			Provided:      c.provided,
			Cost:          cost,
		})
	}
	return true
}

// costCandidates computes the local cost of each candidate. The coster only
// reads the memo, so the candidates are costed in parallel.
func (o *Optimizer) costCandidates(e *memo.GroupExpr, g *memo.Group, cands []candidate) {
	inputs := make([]*props.Relational, e.ChildCount())
	for i := range inputs {
		inputs[i] = o.mem.Group(e.Child(i)).Relational()
	}
	err := runParallel(o.ctx, o.cfg.Workers, len(cands), func(i int) {
		c := &cands[i]
		inputProvided := make([]physical.Provided, len(c.children))
		for k, w := range c.children {
			inputProvided[k] = w.Provided
		}
		c.local = o.coster.ComputeCost(&CostInput{
			Op:            e.Op(),
			Private:       e.Private(),
			Relational:    g.Relational(),
			Inputs:        inputs,
			Provided:      &c.provided,
			InputProvided: inputProvided,
		})
	})
	if err != nil {
		panic(err)
	}
}

// offerWinner offers the candidate to the group, and reports it if it won.
func (o *Optimizer) offerWinner(g *memo.Group, w *memo.Winner) {
	if g.UpdateWinner(w) {
		o.tracer.WinnerUpdated(o.ctx, g.ID(), o.mem.LookupRequired(w.Required).String(), w.Op(), w.Cost.C)
	}
}

// enforceAndCostJob costs an enforcer placed on top of a group. The group
// is first optimized for the weaker properties that the enforcer requires
// of its input.
type enforceAndCostJob struct {
	group    memo.GroupID
	required memo.RequiredID
	enforcer enforcer
	state    *groupState

	childRequired memo.RequiredID
}

func (j *enforceAndCostJob) run(o *Optimizer) bool {
	if j.childRequired == 0 {
		j.childRequired = o.mem.InternRequired(&j.enforcer.childRequired)
	}
	child, ok := o.optimizeGroup(j.group, j.childRequired)
	if !ok {
		return false
	}
	if !child.Feasible() {
		return true
	}
	g := o.mem.Group(j.group)
	if cur, ok := g.Winner(j.required); ok && cur.Feasible() && cur.Cost.Less(child.Cost) {
		j.state.pruned++
		return true
	}

	required := o.mem.LookupRequired(j.required)
	provided := enforcerProvided(j.enforcer.op, j.enforcer.private, &child.Provided)
	if !physical.Satisfies(&provided, required) {
		return true
	}
	j.state.candidates++
	cost := o.coster.ComputeCost(&CostInput{
		Op:            j.enforcer.op,
		Private:       j.enforcer.private,
		Relational:    g.Relational(),
		Inputs:        []*props.Relational{g.Relational()},
		Provided:      &provided,
		InputProvided: []physical.Provided{child.Provided},
	})
	cost.Add(child.Cost)
	o.offerWinner(g, &memo.Winner{
		Required:        j.required,
		Enforcer:        j.enforcer.op,
		EnforcerPrivate: j.enforcer.private,
		ChildRequired:   []memo.RequiredID{j.childRequired},
		Provided:        provided,
		Cost:            cost,
	})
	return true
}
