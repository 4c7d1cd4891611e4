// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
)

// Relational properties describe the content and characteristics of the
// rows produced by a relational expression. They are shared by every
// expression in a memo group, since all of them produce the same rows, and
// are derived once, when the group is created.
type Relational struct {
	// OutputCols is the set of columns that can be projected by the
	// expression. Ordering, naming, and duplication of columns is not
	// represented by this property; those are physical properties.
	OutputCols opt.ColSet

	// NotNullCols is the subset of output columns which cannot be NULL.
	NotNullCols opt.ColSet

	// Stats is the set of statistics that apply to this relational
	// expression.
	Stats Statistics
}

// Width returns the estimated average width in bytes of an output row.
func (r *Relational) Width() float64 {
	w := r.Stats.AvgRowWidth(r.OutputCols)
	if w == 0 {
		// Empty rows still have a per-row overhead.
		return 1
	}
	return w
}

// RowCount returns the estimated number of output rows.
func (r *Relational) RowCount() float64 {
	return r.Stats.RowCount
}

func (r *Relational) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "cols=%s", r.OutputCols)
	if !r.NotNullCols.Empty() {
		fmt.Fprintf(&buf, " not-null=%s", r.NotNullCols)
	}
	fmt.Fprintf(&buf, " stats=%s", r.Stats.String())
	return buf.String()
}
