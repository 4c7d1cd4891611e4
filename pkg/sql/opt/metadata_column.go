// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cockroachdb/cascades/pkg/util"
)

// ColumnID uniquely identifies the usage of a column within the scope of a
// query. ColumnID 0 is reserved to mean "unknown column". See the comment for
// Metadata for more details.
type ColumnID int32

// index returns the index of the column in Metadata.cols. It's biased by 1, so
// that ColumnID 0 can be be reserved to mean "unknown column".
func (c ColumnID) index() int {
	return int(c - 1)
}

// ColSet efficiently stores an unordered set of column ids.
type ColSet = util.FastIntSet

// MakeColSet returns a set initialized with the given columns.
func MakeColSet(cols ...ColumnID) ColSet {
	var s ColSet
	for _, c := range cols {
		s.Add(int(c))
	}
	return s
}

// ColList is a list of column ids.
type ColList = []ColumnID

// ColListToSet converts a column id list to a column id set.
func ColListToSet(colList ColList) ColSet {
	var r ColSet
	for _, col := range colList {
		r.Add(int(col))
	}
	return r
}

// ColSetToList converts a column id set to a column id list, in increasing
// order.
func ColSetToList(colSet ColSet) ColList {
	colList := make(ColList, 0, colSet.Len())
	colSet.ForEach(func(i int) {
		colList = append(colList, ColumnID(i))
	})
	return colList
}

// SortedColList returns a sorted copy of the list. Hash distributions use it
// as their canonical form.
func SortedColList(cols ColList) ColList {
	res := append(ColList(nil), cols...)
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// ColListEquals returns true if both lists contain the same columns in the
// same order.
func ColListEquals(a, b ColList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// OrderingColumn is the ColumnID for a column that is part of an ordering,
// except that it can be negated to indicate a descending ordering on that
// column.
type OrderingColumn int32

// MakeOrderingColumn initializes an ordering column with a ColumnID and a flag
// indicating whether the direction is descending.
func MakeOrderingColumn(id ColumnID, descending bool) OrderingColumn {
	if descending {
		return OrderingColumn(-id)
	}
	return OrderingColumn(id)
}

// ID returns the ColumnID for this OrderingColumn.
func (c OrderingColumn) ID() ColumnID {
	if c < 0 {
		return ColumnID(-c)
	}
	return ColumnID(c)
}

// Ascending returns true if the ordering on this column is ascending.
func (c OrderingColumn) Ascending() bool {
	return c > 0
}

// Descending returns true if the ordering on this column is descending.
func (c OrderingColumn) Descending() bool {
	return c < 0
}

func (c OrderingColumn) String() string {
	if c.Descending() {
		return fmt.Sprintf("-%d", c.ID())
	}
	return fmt.Sprintf("+%d", c.ID())
}

// Ordering defines the order of rows provided or required by an operator. A
// negative value indicates descending order on the column id "-(value)".
type Ordering []OrderingColumn

// Empty returns true if the ordering is empty or unset.
func (o Ordering) Empty() bool {
	return len(o) == 0
}

// ColSet returns the set of column IDs used in the ordering.
func (o Ordering) ColSet() ColSet {
	var colSet ColSet
	for _, col := range o {
		colSet.Add(int(col.ID()))
	}
	return colSet
}

// Provides returns true if the required ordering is a prefix of this one (or
// equal).
func (o Ordering) Provides(required Ordering) bool {
	if len(o) < len(required) {
		return false
	}
	for i := range required {
		if o[i] != required[i] {
			return false
		}
	}
	return true
}

// CommonPrefix returns the longest ordering that is a prefix of both
// orderings.
func (o Ordering) CommonPrefix(other Ordering) Ordering {
	for i := range o {
		if i >= len(other) || o[i] != other[i] {
			return o[:i]
		}
	}
	return o
}

// Equals returns true if the two orderings are identical.
func (o Ordering) Equals(rhs Ordering) bool {
	if len(o) != len(rhs) {
		return false
	}
	for i := range o {
		if o[i] != rhs[i] {
			return false
		}
	}
	return true
}

// Project truncates the ordering at the first column that is not in cols.
func (o Ordering) Project(cols ColSet) Ordering {
	for i := range o {
		if !cols.Contains(int(o[i].ID())) {
			return o[:i]
		}
	}
	return o
}

func (o Ordering) String() string {
	var buf bytes.Buffer
	for i, col := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(col.String())
	}
	return buf.String()
}

// Format prints the ordering with column labels from the metadata, e.g.
// "+a.x,-b.y".
func (o Ordering) Format(md *Metadata) string {
	var buf bytes.Buffer
	for i, col := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		if col.Descending() {
			buf.WriteByte('-')
		} else {
			buf.WriteByte('+')
		}
		buf.WriteString(md.ColumnLabel(col.ID()))
	}
	return buf.String()
}
