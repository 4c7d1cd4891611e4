// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
)

// ScanIndexOrdering returns the ordering of the rows read by an index scan.
// The index ordering is cut at the first key column that the scan does not
// produce.
func ScanIndexOrdering(md *opt.Metadata, private *opt.ScanPrivate) opt.Ordering {
	return md.TableMeta(private.Table).IndexOrdering(private.Index).Project(private.Cols)
}

func indexScanCanProvideOrdering(mem *memo.Memo, expr *memo.GroupExpr, required opt.Ordering) bool {
	private := expr.Private().(*opt.ScanPrivate)
	return ScanIndexOrdering(mem.Metadata(), private).Provides(required)
}

func indexScanBuildProvided(mem *memo.Memo, expr *memo.GroupExpr, _ []opt.Ordering) opt.Ordering {
	return ScanIndexOrdering(mem.Metadata(), expr.Private().(*opt.ScanPrivate))
}
