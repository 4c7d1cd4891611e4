// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"bytes"
	"fmt"
)

// Private is the operator-specific payload of a relational expression. The
// key of a private is canonical: two privates with the same key are
// interchangeable, which is what lets the memo detect duplicate expressions.
type Private interface {
	// Key returns the canonical string form of the private.
	Key() string

	// Format writes a readable form of the private, using column labels from
	// the metadata.
	Format(buf *bytes.Buffer, md *Metadata)
}

// PrivateKey returns the key of p, or the empty string for a nil private.
func PrivateKey(p Private) string {
	if p == nil {
		return ""
	}
	return p.Key()
}

func formatCols(buf *bytes.Buffer, md *Metadata, cols ColList) {
	buf.WriteByte('(')
	for i, c := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		if md != nil {
			buf.WriteString(md.ColumnLabel(c))
		} else {
			fmt.Fprintf(buf, "%d", c)
		}
	}
	buf.WriteByte(')')
}

// ScanPrivate is the payload of the Scan, TableScan and IndexScan operators.
type ScanPrivate struct {
	// Table identifies the table instance in the metadata.
	Table TableID

	// Cols is the set of columns that the scan produces. It may be a subset
	// of the table columns.
	Cols ColSet

	// Index is the ordinal of the catalog index read by an IndexScan. It is
	// zero for the other scan operators.
	Index int
}

// Key is part of the Private interface.
func (p *ScanPrivate) Key() string {
	return fmt.Sprintf("t%d%s i%d", p.Table.index()+1, p.Cols, p.Index)
}

// Format is part of the Private interface.
func (p *ScanPrivate) Format(buf *bytes.Buffer, md *Metadata) {
	tm := md.TableMeta(p.Table)
	buf.WriteString(tm.Alias)
	buf.WriteByte(' ')
	formatCols(buf, md, ColSetToList(p.Cols))
}

// FormatIndex writes the index name of an IndexScan.
func (p *ScanPrivate) FormatIndex(buf *bytes.Buffer, md *Metadata) {
	fmt.Fprintf(buf, "@%s", md.Table(p.Table).Index(p.Index).Name)
}

// ValuesPrivate is the payload of the Values and PhysValues operators.
type ValuesPrivate struct {
	// Cols are the output columns, one per value in each row.
	Cols ColList

	// Rows holds constant expressions.
	Rows [][]*ScalarExpr
}

// Key is part of the Private interface.
func (p *ValuesPrivate) Key() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%v", p.Cols)
	for _, row := range p.Rows {
		buf.WriteString(" (")
		for i, v := range row {
			if i > 0 {
				buf.WriteByte(' ')
			}
			v.writeKey(&buf)
		}
		buf.WriteByte(')')
	}
	return buf.String()
}

// Format is part of the Private interface.
func (p *ValuesPrivate) Format(buf *bytes.Buffer, md *Metadata) {
	formatCols(buf, md, p.Cols)
	fmt.Fprintf(buf, " rows=%d", len(p.Rows))
}

// ProjectionItem is a synthesized column of a projection.
type ProjectionItem struct {
	Col  ColumnID
	Expr *ScalarExpr
}

// ProjectPrivate is the payload of the Project and PhysProject operators.
type ProjectPrivate struct {
	// Passthrough are input columns that are projected unchanged.
	Passthrough ColSet

	// Projections are columns computed from input columns.
	Projections []ProjectionItem
}

// OutputCols returns the passthrough and synthesized columns.
func (p *ProjectPrivate) OutputCols() ColSet {
	cols := p.Passthrough.Copy()
	for i := range p.Projections {
		cols.Add(int(p.Projections[i].Col))
	}
	return cols
}

// Key is part of the Private interface.
func (p *ProjectPrivate) Key() string {
	var buf bytes.Buffer
	buf.WriteString(p.Passthrough.String())
	for i := range p.Projections {
		fmt.Fprintf(&buf, " @%d:", p.Projections[i].Col)
		p.Projections[i].Expr.writeKey(&buf)
	}
	return buf.String()
}

// Format is part of the Private interface.
func (p *ProjectPrivate) Format(buf *bytes.Buffer, md *Metadata) {
	formatCols(buf, md, ColSetToList(p.Passthrough))
	for i := range p.Projections {
		fmt.Fprintf(buf, " %s:=%s", md.ColumnLabel(p.Projections[i].Col),
			p.Projections[i].Expr.Format(md))
	}
}

// JoinPrivate is the payload of the logical and physical join operators.
type JoinPrivate struct {
	// JoinType is the logical join operator. For logical joins it is the
	// expression's own operator; physical joins use it to tell the join
	// semantics apart from the join algorithm.
	JoinType Operator

	// On is the join condition.
	On FiltersExpr

	// LeftOrdering and RightOrdering are the equality columns of a merge join,
	// in the order that each input must be sorted on. They are empty for
	// other joins.
	LeftOrdering  Ordering
	RightOrdering Ordering
}

// Key is part of the Private interface.
func (p *JoinPrivate) Key() string {
	key := p.JoinType.String() + " " + p.On.Key()
	if len(p.LeftOrdering) > 0 {
		key += " " + p.LeftOrdering.String() + " " + p.RightOrdering.String()
	}
	return key
}

// Format is part of the Private interface.
func (p *JoinPrivate) Format(buf *bytes.Buffer, md *Metadata) {
	buf.WriteString(p.JoinType.String())
	buf.WriteString(" on: ")
	p.On.Format(buf, md)
	if len(p.LeftOrdering) > 0 {
		fmt.Fprintf(buf, " left-ordering=%s right-ordering=%s",
			p.LeftOrdering.Format(md), p.RightOrdering.Format(md))
	}
}

// AggregateItem is an aggregate column computed by a group by.
type AggregateItem struct {
	Col ColumnID
	Agg *ScalarExpr
}

// GroupByPrivate is the payload of the GroupBy, HashGroupBy and
// StreamGroupBy operators.
type GroupByPrivate struct {
	// GroupingCols are the grouping columns. If empty, the group by is a
	// scalar aggregation that returns exactly one row.
	GroupingCols ColSet

	Aggs []AggregateItem

	// Ordering is the input ordering that a StreamGroupBy relies on. It is
	// empty for the other operators.
	Ordering Ordering
}

// OutputCols returns the grouping and aggregate columns.
func (p *GroupByPrivate) OutputCols() ColSet {
	cols := p.GroupingCols.Copy()
	for i := range p.Aggs {
		cols.Add(int(p.Aggs[i].Col))
	}
	return cols
}

// IsScalar returns true for a group by without grouping columns.
func (p *GroupByPrivate) IsScalar() bool {
	return p.GroupingCols.Empty()
}

// Key is part of the Private interface.
func (p *GroupByPrivate) Key() string {
	var buf bytes.Buffer
	buf.WriteString(p.GroupingCols.String())
	for i := range p.Aggs {
		fmt.Fprintf(&buf, " @%d:", p.Aggs[i].Col)
		p.Aggs[i].Agg.writeKey(&buf)
	}
	if len(p.Ordering) > 0 {
		buf.WriteString(" ord=")
		buf.WriteString(p.Ordering.String())
	}
	return buf.String()
}

// Format is part of the Private interface.
func (p *GroupByPrivate) Format(buf *bytes.Buffer, md *Metadata) {
	buf.WriteString("grouping=")
	formatCols(buf, md, ColSetToList(p.GroupingCols))
	for i := range p.Aggs {
		fmt.Fprintf(buf, " %s:=%s", md.ColumnLabel(p.Aggs[i].Col), p.Aggs[i].Agg.Format(md))
	}
	if len(p.Ordering) > 0 {
		fmt.Fprintf(buf, " ordering=%s", p.Ordering.Format(md))
	}
}

// LimitPrivate is the payload of the Limit and PhysLimit operators.
type LimitPrivate struct {
	Count int64
}

// Key is part of the Private interface.
func (p *LimitPrivate) Key() string {
	return fmt.Sprintf("%d", p.Count)
}

// Format is part of the Private interface.
func (p *LimitPrivate) Format(buf *bytes.Buffer, _ *Metadata) {
	fmt.Fprintf(buf, "count=%d", p.Count)
}

// UnionAllPrivate is the payload of the UnionAll and Append operators. Row i
// of OutCols takes its value from LeftCols[i] or RightCols[i].
type UnionAllPrivate struct {
	LeftCols  ColList
	RightCols ColList
	OutCols   ColList
}

// Key is part of the Private interface.
func (p *UnionAllPrivate) Key() string {
	return fmt.Sprintf("%v %v %v", p.LeftCols, p.RightCols, p.OutCols)
}

// Format is part of the Private interface.
func (p *UnionAllPrivate) Format(buf *bytes.Buffer, md *Metadata) {
	formatCols(buf, md, p.OutCols)
}

// SortPrivate is the payload of the Sort enforcer.
type SortPrivate struct {
	Ordering Ordering
}

// Key is part of the Private interface.
func (p *SortPrivate) Key() string {
	return p.Ordering.String()
}

// Format is part of the Private interface.
func (p *SortPrivate) Format(buf *bytes.Buffer, md *Metadata) {
	buf.WriteString(p.Ordering.Format(md))
}

// MotionPrivate is the payload of the Redistribute, Gather and Broadcast
// enforcers.
type MotionPrivate struct {
	// Cols are the hash columns of a Redistribute.
	Cols ColList

	// Ordering is the ordering that a Gather preserves by merging its sorted
	// input streams.
	Ordering Ordering
}

// Key is part of the Private interface.
func (p *MotionPrivate) Key() string {
	return fmt.Sprintf("%v %s", p.Cols, p.Ordering)
}

// Format is part of the Private interface.
func (p *MotionPrivate) Format(buf *bytes.Buffer, md *Metadata) {
	if len(p.Cols) > 0 {
		buf.WriteString("hash=")
		formatCols(buf, md, p.Cols)
	}
	if len(p.Ordering) > 0 {
		if len(p.Cols) > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(buf, "merge=%s", p.Ordering.Format(md))
	}
}
