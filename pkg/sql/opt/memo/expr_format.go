// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"bytes"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
)

// ExprFmtFlags controls which properties of the expression are shown in
// formatted output.
type ExprFmtFlags int

const (
	// ExprFmtShowAll shows all properties of the expression.
	ExprFmtShowAll ExprFmtFlags = 0

	// ExprFmtHideStats does not show statistics in the output.
	ExprFmtHideStats ExprFmtFlags = 1 << (iota - 1)

	// ExprFmtHideCost does not show expression cost in the output.
	ExprFmtHideCost

	// ExprFmtHideProvided does not show the physical properties that each
	// operator provides.
	ExprFmtHideProvided

	// ExprFmtHidePrivates shows only the operators of the expression.
	ExprFmtHidePrivates

	// ExprFmtHideAll shows only the basic structure of the expression.
	// Note: this flag should be used judiciously, as its meaning changes whenever
	// we add more flags.
	ExprFmtHideAll ExprFmtFlags = (1 << iota) - 1
)

// HasFlags tests whether the given flags are all set.
func (f ExprFmtFlags) HasFlags(subset ExprFmtFlags) bool {
	return f&subset == subset
}

// FormatPrivate outputs a description of the private of an expression with
// the given operator to buf. Column ids are printed as labels from the
// metadata.
func FormatPrivate(buf *bytes.Buffer, op opt.Operator, private opt.Private, md *opt.Metadata) {
	if private == nil {
		return
	}
	switch t := private.(type) {
	case *opt.ScanPrivate:
		buf.WriteString(md.TableMeta(t.Table).Alias)
		if op == opt.IndexScanOp {
			t.FormatIndex(buf, md)
		}
		buf.WriteByte(' ')
		formatColList(buf, md, opt.ColSetToList(t.Cols))

	case *opt.JoinPrivate:
		// The join type is redundant for logical joins.
		if op.IsJoin() {
			buf.WriteString("on: ")
			t.On.Format(buf, md)
			return
		}
		t.Format(buf, md)

	default:
		private.Format(buf, md)
	}
}

func formatColList(buf *bytes.Buffer, md *opt.Metadata, cols opt.ColList) {
	buf.WriteByte('(')
	for i, c := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(md.ColumnLabel(c))
	}
	buf.WriteByte(')')
}
