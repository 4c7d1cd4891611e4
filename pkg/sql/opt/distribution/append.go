// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package distribution

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/util"
)

// appendAlternatives runs the append on the segments when both inputs are
// spread over them, or on the coordinator.
func appendAlternatives(
	*memo.Memo, *memo.GroupExpr, physical.Distribution,
) [][]physical.Distribution {
	return [][]physical.Distribution{
		{physical.Random, physical.Random},
		{physical.Singleton, physical.Singleton},
	}
}

// appendBuildProvided returns the common distribution of the inputs. Two
// hashed inputs keep a hash distribution on the output columns if their hash
// columns are at the same positions of the input column lists.
func appendBuildProvided(
	_ *memo.Memo, expr *memo.GroupExpr, childProvided []physical.Distribution,
) physical.Distribution {
	left, right := childProvided[0], childProvided[1]
	switch {
	case left.Kind == physical.SingletonDistribution && right.Kind == physical.SingletonDistribution:
		return physical.Singleton
	case left.Kind == physical.ReplicatedDistribution && right.Kind == physical.ReplicatedDistribution:
		return physical.Replicated
	case left.Kind == physical.HashedDistribution && right.Kind == physical.HashedDistribution:
		private := expr.Private().(*opt.UnionAllPrivate)
		leftPos, ok1 := positions(private.LeftCols, left.Cols)
		rightPos, ok2 := positions(private.RightCols, right.Cols)
		if ok1 && ok2 && leftPos.Equals(rightPos) {
			var cols []opt.ColumnID
			leftPos.ForEach(func(i int) {
				cols = append(cols, private.OutCols[i])
			})
			return physical.MakeHashed(cols...)
		}
	}
	return physical.Random
}

// positions returns the set of positions in list of the given columns.
func positions(list opt.ColList, cols opt.ColList) (_ util.FastIntSet, ok bool) {
	var res util.FastIntSet
	for _, c := range cols {
		found := false
		for i := range list {
			if list[i] == c {
				res.Add(i)
				found = true
				break
			}
		}
		if !found {
			return util.FastIntSet{}, false
		}
	}
	return res, true
}
