// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
)

// Statistics is a collection of measurements and statistics that is used by
// the coster to estimate the cost of expressions. Statistics are collected
// for tables and relational expressions that are part of a memo group.
//
// Every column statistic describes a single column. Statistics are derived
// once per group, when the group is created, and never change afterwards.
type Statistics struct {
	// Available indicates whether the underlying table statistics for this
	// expression were available. If true, RowCount contains a real estimate.
	// If false, RowCount contains a default non-zero value.
	Available bool

	// RowCount is the estimated number of rows returned by the expression.
	// Note that - especially when there are no stats available - the scaling of
	// the row counts can be unpredictable; thus, a row count of 0.001 should be
	// considered 1000 times better than a row count of 1, even though if this was
	// a true row count they would be pretty much the same thing.
	RowCount float64

	// ColStats contains the statistics of the output columns.
	ColStats ColStatsMap
}

// ColumnStatistic is a collection of statistics that applies to a particular
// column.
type ColumnStatistic struct {
	// Col is the column that the statistic applies to.
	Col opt.ColumnID

	// DistinctCount is the estimated number of distinct values of this
	// column. A NULL value counts as a distinct value.
	DistinctCount float64

	// NullCount is the estimated number of null values of this column.
	NullCount float64

	// AvgWidth is the average width of a value in bytes.
	AvgWidth float64

	// Histogram is only used when the column has histogram statistics; it is
	// nil otherwise.
	Histogram *Histogram
}

// ColStatsMap stores a set of column statistics, keyed by column id.
type ColStatsMap struct {
	stats map[opt.ColumnID]*ColumnStatistic
}

// Add returns the statistic for the given column, creating it if it does not
// exist yet. The second return value is true if the statistic was added.
func (m *ColStatsMap) Add(col opt.ColumnID) (_ *ColumnStatistic, added bool) {
	if stat, ok := m.stats[col]; ok {
		return stat, false
	}
	if m.stats == nil {
		m.stats = make(map[opt.ColumnID]*ColumnStatistic)
	}
	stat := &ColumnStatistic{Col: col}
	m.stats[col] = stat
	return stat, true
}

// Lookup returns the statistic for the given column, if there is one.
func (m *ColStatsMap) Lookup(col opt.ColumnID) (*ColumnStatistic, bool) {
	stat, ok := m.stats[col]
	return stat, ok
}

// Count returns the number of column statistics.
func (m *ColStatsMap) Count() int {
	return len(m.stats)
}

// Cols returns the set of columns that have a statistic.
func (m *ColStatsMap) Cols() opt.ColSet {
	var cols opt.ColSet
	for col := range m.stats {
		cols.Add(int(col))
	}
	return cols
}

// ForEach calls fn for every statistic, in increasing column order.
func (m *ColStatsMap) ForEach(fn func(stat *ColumnStatistic)) {
	m.Cols().ForEach(func(i int) {
		fn(m.stats[opt.ColumnID(i)])
	})
}

// AvgRowWidth returns the sum of the average widths of the given columns.
func (s *Statistics) AvgRowWidth(cols opt.ColSet) float64 {
	var width float64
	cols.ForEach(func(i int) {
		if stat, ok := s.ColStats.Lookup(opt.ColumnID(i)); ok {
			width += stat.AvgWidth
		}
	})
	return width
}

// DistinctCount returns the estimated distinct count of a set of columns,
// assuming independence and capping the product at the row count.
func (s *Statistics) DistinctCount(cols opt.ColSet) float64 {
	if cols.Empty() {
		return 1
	}
	distinct := 1.0
	cols.ForEach(func(i int) {
		if stat, ok := s.ColStats.Lookup(opt.ColumnID(i)); ok && stat.DistinctCount > 0 {
			distinct *= stat.DistinctCount
		} else {
			distinct *= s.RowCount
		}
	})
	if distinct > s.RowCount {
		distinct = s.RowCount
	}
	return distinct
}

func (s *Statistics) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[rows=%.9g", s.RowCount)
	var cols []opt.ColumnID
	for col := range s.ColStats.stats {
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	for _, col := range cols {
		stat := s.ColStats.stats[col]
		fmt.Fprintf(&buf, ", distinct(%d)=%.9g, null(%d)=%.9g", col, stat.DistinctCount, col, stat.NullCount)
	}
	buf.WriteByte(']')
	return buf.String()
}
