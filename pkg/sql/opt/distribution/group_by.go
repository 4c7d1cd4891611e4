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

// groupByAlternatives places the rows of each group on a single segment, by
// hashing on the grouping columns, or gathers all input rows on the
// coordinator. A hash requirement on a subset of the grouping columns is
// passed through, since it also keeps the rows of a group together. A scalar
// group by always runs on the coordinator.
func groupByAlternatives(
	_ *memo.Memo, expr *memo.GroupExpr, required physical.Distribution,
) [][]physical.Distribution {
	private := expr.Private().(*opt.GroupByPrivate)
	if private.IsScalar() {
		return [][]physical.Distribution{{physical.Singleton}}
	}
	hashed := physical.MakeHashedFromSet(private.GroupingCols)
	if required.Kind == physical.HashedDistribution && required.ColSet().SubsetOf(private.GroupingCols) {
		hashed = required
	}
	return [][]physical.Distribution{{hashed}, {physical.Singleton}}
}
