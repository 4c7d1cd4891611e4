// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
)

// projectCanProvideOrdering returns true if the ordering only refers to
// columns that the projection passes through from its input. Orderings on
// computed columns must be enforced above the projection.
func projectCanProvideOrdering(_ *memo.Memo, expr *memo.GroupExpr, required opt.Ordering) bool {
	private := expr.Private().(*opt.ProjectPrivate)
	return required.ColSet().SubsetOf(private.Passthrough)
}
