// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import "github.com/cockroachdb/cascades/pkg/sql/opt"

// GenerateTableScan implements a Scan as a full read of the table.
func (c *CustomFuncs) GenerateTableScan(b *Binding) []*opt.Expr {
	scan := b.Private().(*opt.ScanPrivate)
	return []*opt.Expr{{Op: opt.TableScanOp, Private: &opt.ScanPrivate{Table: scan.Table, Cols: scan.Cols}}}
}

// HasUsableIndexes returns true if some index of the scanned table can
// produce the scan columns.
func (c *CustomFuncs) HasUsableIndexes(b *Binding) bool {
	return len(c.usableIndexes(b.Private().(*opt.ScanPrivate))) > 0
}

// GenerateIndexScans implements a Scan as a read of each index that can
// produce the scan columns, either because it stores every column of the
// table or because the scan columns are all index keys. An index scan
// returns rows in index order.
func (c *CustomFuncs) GenerateIndexScans(b *Binding) []*opt.Expr {
	scan := b.Private().(*opt.ScanPrivate)
	var res []*opt.Expr
	for _, ord := range c.usableIndexes(scan) {
		res = append(res, &opt.Expr{
			Op:      opt.IndexScanOp,
			Private: &opt.ScanPrivate{Table: scan.Table, Cols: scan.Cols, Index: ord},
		})
	}
	return res
}

func (c *CustomFuncs) usableIndexes(scan *opt.ScanPrivate) []int {
	md := c.Metadata()
	tab := md.Table(scan.Table)
	tm := md.TableMeta(scan.Table)
	var res []int
	for i, n := 0, tab.IndexCount(); i < n; i++ {
		if tab.Index(i).Covering || scan.Cols.SubsetOf(tm.IndexColumns(i)) {
			res = append(res, i)
		}
	}
	return res
}
