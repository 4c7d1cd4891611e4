// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/distribution"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/ordering"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/util/buildutil"
	"github.com/cockroachdb/errors"
)

// canProvidePhysicalProps returns true if the given member can provide the
// required ordering, either natively or by passing the requirement through
// to its children. The optimizer only costs members that can; an ordering
// that no member provides is established by a Sort enforcer.
//
// The required distribution is not checked up front, since the distribution
// of a member's output depends on the placement that its children end up
// with. Every member can provide rewindability, natively or through its
// children.
func canProvidePhysicalProps(mem *memo.Memo, e *memo.GroupExpr, required *physical.Required) bool {
	return ordering.CanProvide(mem, e, required.Ordering)
}

// buildChildPhysicalProps returns the alternative sets of properties that
// the member can require of its children in order to provide the required
// properties. Each alternative holds the interned properties required of
// every child. canProvidePhysicalProps must be true for the member.
func buildChildPhysicalProps(
	mem *memo.Memo, e *memo.GroupExpr, required *physical.Required,
) [][]memo.RequiredID {
	dists := distribution.ChildAlternatives(mem, e, required.Distribution)
	alts := make([][]memo.RequiredID, 0, len(dists))
	for _, dist := range dists {
		childRequired := make([]memo.RequiredID, e.ChildCount())
		for nth := range childRequired {
			childProps := physical.Required{
				Ordering:     ordering.BuildChildRequired(mem, e, required.Ordering, nth),
				Distribution: dist[nth],
				Rewind:       buildChildRewind(e, required.Rewind, nth),
			}
			if buildutil.Invariants {
				checkChildProps(mem, e, nth, &childProps)
			}
			childRequired[nth] = mem.InternRequired(&childProps)
		}
		alts = append(alts, childRequired)
	}
	return alts
}

// checkChildProps verifies that properties required of a child only refer
// to columns that the child produces.
func checkChildProps(mem *memo.Memo, e *memo.GroupExpr, nth int, childProps *physical.Required) {
	childCols := mem.Group(e.Child(nth)).Relational().OutputCols
	if !childProps.Ordering.ColSet().SubsetOf(childCols) {
		panic(errors.AssertionFailedf(
			"%s requires ordering %s of child %d with columns %s",
			e.Op(), childProps.Ordering, nth, childCols))
	}
	if !childProps.Distribution.ColSet().SubsetOf(childCols) {
		panic(errors.AssertionFailedf(
			"%s requires distribution %s of child %d with columns %s",
			e.Op(), childProps.Distribution, nth, childCols))
	}
}

// buildProvidedPhysicalProps returns the properties that the member's output
// has, given the properties provided by the winners of its children.
func buildProvidedPhysicalProps(
	mem *memo.Memo, e *memo.GroupExpr, childProvided []physical.Provided,
) physical.Provided {
	var childOrderings []opt.Ordering
	var childDists []physical.Distribution
	if len(childProvided) > 0 {
		childOrderings = make([]opt.Ordering, len(childProvided))
		childDists = make([]physical.Distribution, len(childProvided))
		for i := range childProvided {
			childOrderings[i] = childProvided[i].Ordering
			childDists[i] = childProvided[i].Distribution
		}
	}
	return physical.Provided{
		Ordering:     ordering.BuildProvided(mem, e, childOrderings),
		Distribution: distribution.BuildProvided(mem, e, childDists),
		Rewind:       buildProvidedRewind(e.Op(), childProvided),
	}
}

// buildChildRewind returns the rewindability required of the nth child.
// Operators that keep their whole output in memory are rewindable on their
// own; streaming operators pass the requirement to the inputs they stream.
// The right side of a nested loop join is rewound for every left row, so it
// is always required to be rewindable.
func buildChildRewind(e *memo.GroupExpr, required physical.Rewindability, nth int) physical.Rewindability {
	switch e.Op() {
	case opt.NestedLoopJoinOp:
		if nth == 1 {
			return physical.Rewindable
		}
		return required

	case opt.FilterOp, opt.PhysProjectOp, opt.PhysLimitOp, opt.StreamGroupByOp,
		opt.MergeJoinOp, opt.AppendOp:
		return required

	case opt.HashJoinOp:
		// The right side is built into a hash table.
		if nth == 0 {
			return required
		}
	}
	return physical.RewindNotRequired
}

// buildProvidedRewind returns the rewindability of an operator's output,
// given the rewindability of its inputs.
func buildProvidedRewind(op opt.Operator, childProvided []physical.Provided) physical.Rewindability {
	switch op {
	case opt.TableScanOp, opt.IndexScanOp, opt.PhysValuesOp, opt.HashGroupByOp:
		return physical.Rewindable

	case opt.FilterOp, opt.PhysProjectOp, opt.PhysLimitOp, opt.StreamGroupByOp,
		opt.HashJoinOp, opt.NestedLoopJoinOp:
		return childProvided[0].Rewind

	case opt.MergeJoinOp, opt.AppendOp:
		if childProvided[0].Rewind == physical.Rewindable && childProvided[1].Rewind == physical.Rewindable {
			return physical.Rewindable
		}
	}
	return physical.RewindNotRequired
}
