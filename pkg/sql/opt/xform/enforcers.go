// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optconfig"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/errors"
)

// enforcer is a way to establish part of a set of required properties on
// top of a group. The group is optimized for childRequired, which is always
// strictly weaker than the properties the enforcer is placed for, and the
// enforcer supplies the rest.
type enforcer struct {
	op            opt.Operator
	private       opt.Private
	childRequired physical.Required
}

// enforcerRule returns the rule that allows the optimizer to place the
// enforcer operator.
func enforcerRule(op opt.Operator) opt.RuleName {
	switch op {
	case opt.SortOp:
		return opt.EnforceSort
	case opt.RedistributeOp, opt.GatherOp, opt.BroadcastOp:
		return opt.EnforceDistribution
	case opt.SpoolOp:
		return opt.EnforceRewind
	}
	panic(errors.AssertionFailedf("%s is not an enforcer", op))
}

// enforcers returns the enforcers that can be placed on top of a group to
// provide the required properties, in a fixed order. Motions destroy the
// ordering of their input and cannot be rewound, so they are only
// candidates when no ordering or rewindability is required of them, except
// for Gather, which merges sorted inputs.
func enforcers(cfg *optconfig.Config, required *physical.Required) []enforcer {
	var res []enforcer
	add := func(op opt.Operator, private opt.Private, childRequired physical.Required) {
		if cfg.RuleEnabled(enforcerRule(op)) {
			res = append(res, enforcer{op: op, private: private, childRequired: childRequired})
		}
	}

	if !required.Ordering.Empty() {
		// A sort keeps its whole input in memory, so it is rewindable.
		add(opt.SortOp, &opt.SortPrivate{Ordering: required.Ordering},
			physical.Required{Distribution: required.Distribution})
	}

	if required.Rewind == physical.RewindNotRequired {
		switch required.Distribution.Kind {
		case physical.SingletonDistribution:
			add(opt.GatherOp, &opt.MotionPrivate{Ordering: required.Ordering},
				physical.Required{Ordering: required.Ordering})

		case physical.HashedDistribution, physical.RandomDistribution:
			if required.Ordering.Empty() {
				add(opt.RedistributeOp, &opt.MotionPrivate{Cols: required.Distribution.Cols},
					physical.Required{})
			}

		case physical.ReplicatedDistribution:
			if required.Ordering.Empty() {
				add(opt.BroadcastOp, &opt.MotionPrivate{}, physical.Required{})
			}
		}
	}

	if required.Rewind == physical.Rewindable {
		add(opt.SpoolOp, nil, required.WithoutRewind())
	}
	return res
}

// enforcerProvided returns the properties of the output of an enforcer,
// given the properties of its input.
func enforcerProvided(
	op opt.Operator, private opt.Private, childProvided *physical.Provided,
) physical.Provided {
	switch op {
	case opt.SortOp:
		return physical.Provided{
			Ordering:     private.(*opt.SortPrivate).Ordering,
			Distribution: childProvided.Distribution,
			Rewind:       physical.Rewindable,
		}

	case opt.GatherOp:
		var ordering opt.Ordering
		if p := private.(*opt.MotionPrivate); childProvided.Ordering.Provides(p.Ordering) {
			ordering = p.Ordering
		}
		if childProvided.Distribution.Kind == physical.SingletonDistribution {
			// A gather of rows that are already on the coordinator is a no-op.
			ordering = childProvided.Ordering
		}
		return physical.Provided{Ordering: ordering, Distribution: physical.Singleton}

	case opt.RedistributeOp:
		return physical.Provided{Distribution: physical.MakeHashed(private.(*opt.MotionPrivate).Cols...)}

	case opt.BroadcastOp:
		return physical.Provided{Distribution: physical.Replicated}

	case opt.SpoolOp:
		provided := *childProvided
		provided.Rewind = physical.Rewindable
		return provided
	}
	panic(errors.AssertionFailedf("%s is not an enforcer", op))
}

// Enforce wraps the plan node with the enforcers needed for its output to
// satisfy the required properties. A node that already satisfies them is
// returned unchanged. The enforcers are costed with the given coster, and
// the returned node's cost includes the cost of the input.
//
// Motions are placed first, since they lose the ordering of their input. A
// Sort is placed next, and a Spool last if the output must be rewindable and
// is not yet.
func Enforce(coster Coster, node *PlanNode, required *physical.Required) *PlanNode {
	if physical.Satisfies(&node.Provided, required) {
		return node
	}
	wrap := func(op opt.Operator, private opt.Private) {
		provided := enforcerProvided(op, private, &node.Provided)
		enforced := &PlanNode{
			Op:         op,
			Private:    private,
			Children:   []*PlanNode{node},
			Relational: node.Relational,
			Provided:   provided,
			Required:   *required,
		}
		local := coster.ComputeCost(&CostInput{
			Op:            op,
			Private:       private,
			Relational:    node.Relational,
			Inputs:        enforced.inputs(),
			Provided:      &enforced.Provided,
			InputProvided: []physical.Provided{node.Provided},
		})
		enforced.Cost = node.Cost
		enforced.Cost.Add(local)
		node = enforced
	}

	if !node.Provided.Distribution.Provides(required.Distribution) {
		switch required.Distribution.Kind {
		case physical.SingletonDistribution:
			var merge opt.Ordering
			if node.Provided.Ordering.Provides(required.Ordering) {
				merge = required.Ordering
			}
			wrap(opt.GatherOp, &opt.MotionPrivate{Ordering: merge})
		case physical.ReplicatedDistribution:
			wrap(opt.BroadcastOp, &opt.MotionPrivate{})
		default:
			wrap(opt.RedistributeOp, &opt.MotionPrivate{Cols: required.Distribution.Cols})
		}
	}
	if !node.Provided.Ordering.Provides(required.Ordering) {
		wrap(opt.SortOp, &opt.SortPrivate{Ordering: required.Ordering})
	}
	if !node.Provided.Rewind.Provides(required.Rewind) {
		wrap(opt.SpoolOp, nil)
	}
	return node
}
