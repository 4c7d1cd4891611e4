// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package distribution

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
)

// joinAlternatives returns the ways in which a join can co-locate matching
// rows of its inputs:
//
//  1. For each equality pair l=r in the join condition, both inputs are
//     hashed on their side of the pair.
//  2. The right input is broadcast to every segment, and the left input
//     stays on the segments.
//  3. Both inputs are gathered on the coordinator.
//
// Only single column hash keys are used, since a multi-column hash
// distribution does not record which left column pairs with which right
// column.
func joinAlternatives(
	mem *memo.Memo, expr *memo.GroupExpr, required physical.Distribution,
) [][]physical.Distribution {
	private := expr.Private().(*opt.JoinPrivate)
	leftCols := mem.Group(expr.Child(0)).Relational().OutputCols
	rightCols := mem.Group(expr.Child(1)).Relational().OutputCols
	leftEq, rightEq := memo.ExtractJoinEqualityColumns(leftCols, rightCols, private.On)

	alts := make([][]physical.Distribution, 0, len(leftEq)+2)
	for i := range leftEq {
		alts = append(alts, []physical.Distribution{
			physical.MakeHashed(leftEq[i]), physical.MakeHashed(rightEq[i]),
		})
	}

	// The left input of a broadcast join can satisfy a hash requirement on
	// its own columns directly.
	left := physical.Random
	if required.Kind == physical.HashedDistribution && required.ColSet().SubsetOf(leftCols) {
		left = required
	}
	alts = append(alts,
		[]physical.Distribution{left, physical.Replicated},
		[]physical.Distribution{physical.Singleton, physical.Singleton},
	)
	return alts
}

// joinBuildProvided returns the distribution of the left input. A left input
// that is replicated on every segment takes the distribution of the right
// input.
func joinBuildProvided(
	_ *memo.Memo, _ *memo.GroupExpr, childProvided []physical.Distribution,
) physical.Distribution {
	left, right := childProvided[0], childProvided[1]
	if left.Kind == physical.ReplicatedDistribution {
		return right
	}
	return left
}
