// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"math"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props"
)

const (
	// This is the value used for inequality filters such as x < 1 in
	// "Access Path Selection in a Relational Database Management System"
	// by Pat Selinger et al.
	unknownFilterSelectivity = 1.0 / 3.0

	// This is an arbitrary row count used in the absence of any real statistics.
	unknownRowCount = 1000

	// UnknownDistinctCountRatio is the ratio of distinct column values to number
	// of rows, which is used in the absence of any real statistics for non-key
	// columns.
	UnknownDistinctCountRatio = 0.1

	// UnknownNullCountRatio is the ratio of null column values to number of rows
	// for nullable columns, which is used in the absence of any real statistics.
	UnknownNullCountRatio = 0.01
)

// statisticsBuilder is responsible for building the statistics that are
// used by the coster to estimate the cost of expressions.
//
// Table statistics come from the catalog and seed the statistics of scans.
// Every other operator derives its statistics from those of its input groups
// when its group is created. Since all members of a group produce the same
// rows, the statistics are computed once from the first member and shared.
//
// For example, here is a query plan with corresponding estimated statistics at
// each level:
//
//	Query:    SELECT y FROM a WHERE x=1
//
//	Plan:            Project y        Row Count: 10, Distinct(x): 1
//	                     |
//	                 Select x=1       Row Count: 10, Distinct(x): 1
//	                     |
//	                  Scan a          Row Count: 100, Distinct(x): 10
//
// The row count of a select is estimated from the selectivity of its filter
// conjuncts. Comparisons between a column and a numeric constant use the
// column histogram when there is one; equalities use the distinct counts; all
// other predicates use unknownFilterSelectivity.
type statisticsBuilder struct {
	md *opt.Metadata
}

func (sb *statisticsBuilder) init(md *opt.Metadata) {
	sb.md = md
}

// build fills in rel.Stats. The output and not-null columns of rel must
// already be set.
func (sb *statisticsBuilder) build(
	op opt.Operator, private opt.Private, children []*props.Relational, rel *props.Relational,
) {
	rel.Stats = props.Statistics{Available: true}
	for _, c := range children {
		rel.Stats.Available = rel.Stats.Available && c.Stats.Available
	}

	switch logical := LogicalOp(op, private); logical {
	case opt.ScanOp:
		sb.buildScan(private.(*opt.ScanPrivate), rel)

	case opt.ValuesOp:
		sb.buildValues(private.(*opt.ValuesPrivate), rel)

	case opt.SelectOp:
		sb.buildSelect(private.(opt.FiltersExpr), children[0], rel)

	case opt.ProjectOp:
		sb.buildProject(private.(*opt.ProjectPrivate), children[0], rel)

	case opt.InnerJoinOp, opt.LeftJoinOp, opt.SemiJoinOp, opt.AntiJoinOp:
		sb.buildJoin(logical, private.(*opt.JoinPrivate), children[0], children[1], rel)

	case opt.GroupByOp:
		sb.buildGroupBy(private.(*opt.GroupByPrivate), children[0], rel)

	case opt.LimitOp:
		sb.buildLimit(private.(*opt.LimitPrivate), children[0], rel)

	case opt.UnionAllOp:
		sb.buildUnionAll(private.(*opt.UnionAllPrivate), children[0], children[1], rel)
	}

	sb.finalize(rel)
}

// +------+
// | Scan |
// +------+

func (sb *statisticsBuilder) buildScan(scan *opt.ScanPrivate, rel *props.Relational) {
	s := &rel.Stats
	tab := sb.md.Table(scan.Table)
	ts := tab.Statistics()
	s.Available = ts != nil
	s.RowCount = unknownRowCount
	if ts != nil {
		s.RowCount = ts.RowCount
	}

	scan.Cols.ForEach(func(i int) {
		col := opt.ColumnID(i)
		ord := scan.Table.ColumnOrdinal(col)
		typ := tab.Column(ord).Type
		colStat, _ := s.ColStats.Add(col)

		var catStat *cat.ColumnStatistic
		if ts != nil && ord < len(ts.ColumnStatistics) {
			catStat = &ts.ColumnStatistics[ord]
		}

		colStat.DistinctCount = UnknownDistinctCountRatio * s.RowCount
		if catStat != nil && catStat.DistinctCount > 0 {
			colStat.DistinctCount = catStat.DistinctCount
		}

		switch {
		case rel.NotNullCols.Contains(i):
			colStat.NullCount = 0
		case catStat != nil && catStat.DistinctCount > 0:
			colStat.NullCount = catStat.NullCount
		default:
			colStat.NullCount = UnknownNullCountRatio * s.RowCount
		}

		colStat.AvgWidth = typ.DefaultWidth()
		if catStat != nil && catStat.AvgWidth > 0 {
			colStat.AvgWidth = catStat.AvgWidth
		}

		if catStat != nil && len(catStat.Histogram) > 0 && isNumericType(typ) {
			colStat.Histogram = &props.Histogram{}
			colStat.Histogram.Init(col, typ == cat.IntType, catStat.Histogram)
		}
	})
}

func isNumericType(typ cat.ColumnType) bool {
	return typ == cat.IntType || typ == cat.FloatType
}

// +--------+
// | Values |
// +--------+

func (sb *statisticsBuilder) buildValues(values *opt.ValuesPrivate, rel *props.Relational) {
	s := &rel.Stats
	s.RowCount = float64(len(values.Rows))
	for i, col := range values.Cols {
		colStat, _ := s.ColStats.Add(col)
		distinct := make(map[string]struct{}, len(values.Rows))
		for _, row := range values.Rows {
			if row[i].IsNullConst() {
				colStat.NullCount++
			}
			distinct[row[i].Key()] = struct{}{}
		}
		colStat.DistinctCount = float64(len(distinct))
		colStat.AvgWidth = sb.md.ColumnMeta(col).Type.DefaultWidth()
	}
}

// +--------+
// | Select |
// +--------+

func (sb *statisticsBuilder) buildSelect(
	filters opt.FiltersExpr, input *props.Relational, rel *props.Relational,
) {
	s := &rel.Stats
	s.RowCount = input.Stats.RowCount
	sb.copyColStats(s, &input.Stats, rel.OutputCols)

	sel, constrained := sb.applyFilters(filters, s)
	sb.scaleUnconstrained(s, constrained, sel)
	s.RowCount *= sel.AsFloat()
}

// applyFilters estimates the selectivity of a conjunction over rows with
// the statistics in s. It narrows the statistics of the columns that the
// conjuncts constrain, and returns those columns. s.RowCount is not changed.
func (sb *statisticsBuilder) applyFilters(
	filters opt.FiltersExpr, s *props.Statistics,
) (sel props.Selectivity, constrained opt.ColSet) {
	sel = props.OneSelectivity
	for _, cond := range filters {
		sel.Multiply(sb.selectivityFromCondition(cond, s, &constrained))
	}
	return sel, constrained
}

// selectivityFromCondition estimates the selectivity of a single conjunct.
func (sb *statisticsBuilder) selectivityFromCondition(
	cond *opt.ScalarExpr, s *props.Statistics, constrained *opt.ColSet,
) props.Selectivity {
	if left, right, ok := cond.EqualityColumns(); ok {
		return sb.selectivityFromEquivalency(left, right, s, constrained)
	}

	if col, op, val, ok := cond.ConstComparison(); ok {
		colStat, ok := s.ColStats.Lookup(col)
		if !ok {
			return props.MakeSelectivity(unknownFilterSelectivity)
		}
		constrained.Add(int(col))
		if val.IsNullConst() {
			// A comparison with NULL is never true.
			return props.ZeroSelectivity
		}
		if v, numeric := numericValue(val); numeric && colStat.Histogram != nil &&
			colStat.Histogram.CanFilter(op) {
			return sb.selectivityFromHistogram(colStat, op, v)
		}
		colStat.NullCount = 0
		if op == opt.EqOp {
			sel := props.MakeSelectivityFromFraction(1, colStat.DistinctCount)
			colStat.DistinctCount = math.Min(colStat.DistinctCount, 1)
			return sel
		}
		return props.MakeSelectivity(unknownFilterSelectivity)
	}

	switch {
	case cond.Op == opt.IsNullOp && cond.Args[0].Op == opt.VariableOp:
		colStat, ok := s.ColStats.Lookup(cond.Args[0].Col)
		if !ok {
			break
		}
		constrained.Add(int(colStat.Col))
		sel := props.MakeSelectivityFromFraction(colStat.NullCount, s.RowCount)
		colStat.DistinctCount = math.Min(colStat.DistinctCount, 1)
		colStat.Histogram = nil
		return sel

	case cond.Op == opt.NotOp && cond.Args[0].Op == opt.IsNullOp &&
		cond.Args[0].Args[0].Op == opt.VariableOp:
		colStat, ok := s.ColStats.Lookup(cond.Args[0].Args[0].Col)
		if !ok {
			break
		}
		constrained.Add(int(colStat.Col))
		sel := props.MakeSelectivity(1 - props.MakeSelectivityFromFraction(colStat.NullCount, s.RowCount).AsFloat())
		colStat.NullCount = 0
		return sel
	}

	return props.MakeSelectivity(unknownFilterSelectivity)
}

// selectivityFromHistogram filters the histogram of a column with "col op
// val" and returns the fraction of the values that remain.
func (sb *statisticsBuilder) selectivityFromHistogram(
	colStat *props.ColumnStatistic, op opt.ScalarOperator, val float64,
) props.Selectivity {
	h := colStat.Histogram
	filtered := h.Filter(op, val)
	sel := props.MakeSelectivityFromFraction(filtered.ValuesCount(), h.ValuesCount())
	colStat.Histogram = filtered
	colStat.DistinctCount = filtered.DistinctValuesCount()
	colStat.NullCount = 0
	return sel
}

// selectivityFromEquivalency returns the selectivity of "left = right",
// which is 1/max(distinct(left), distinct(right)). Both columns keep only the
// smaller number of distinct values afterwards.
func (sb *statisticsBuilder) selectivityFromEquivalency(
	left, right opt.ColumnID, s *props.Statistics, constrained *opt.ColSet,
) props.Selectivity {
	leftStat, okLeft := s.ColStats.Lookup(left)
	rightStat, okRight := s.ColStats.Lookup(right)
	if !okLeft || !okRight {
		return props.MakeSelectivity(unknownFilterSelectivity)
	}
	constrained.Add(int(left))
	constrained.Add(int(right))
	maxDistinct := math.Max(leftStat.DistinctCount, rightStat.DistinctCount)
	minDistinct := math.Min(leftStat.DistinctCount, rightStat.DistinctCount)
	leftStat.DistinctCount, rightStat.DistinctCount = minDistinct, minDistinct
	leftStat.NullCount, rightStat.NullCount = 0, 0
	return props.MakeSelectivityFromFraction(1, maxDistinct)
}

// scaleUnconstrained reduces the null counts and histograms of the columns
// that a filter does not mention by the filter's selectivity. Distinct counts
// are capped later, by finalize.
func (sb *statisticsBuilder) scaleUnconstrained(
	s *props.Statistics, constrained opt.ColSet, sel props.Selectivity,
) {
	s.ColStats.ForEach(func(colStat *props.ColumnStatistic) {
		if constrained.Contains(int(colStat.Col)) {
			return
		}
		colStat.NullCount *= sel.AsFloat()
	})
}

func numericValue(val *opt.ScalarExpr) (float64, bool) {
	switch t := val.Value.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// +---------+
// | Project |
// +---------+

func (sb *statisticsBuilder) buildProject(
	prj *opt.ProjectPrivate, input *props.Relational, rel *props.Relational,
) {
	s := &rel.Stats
	s.RowCount = input.Stats.RowCount
	sb.copyColStats(s, &input.Stats, prj.Passthrough)

	for i := range prj.Projections {
		item := &prj.Projections[i]
		colStat, _ := s.ColStats.Add(item.Col)
		colStat.AvgWidth = item.Expr.Type(sb.md).DefaultWidth()
		switch item.Expr.Op {
		case opt.VariableOp:
			if inputStat, ok := input.Stats.ColStats.Lookup(item.Expr.Col); ok {
				colStat.DistinctCount = inputStat.DistinctCount
				colStat.NullCount = inputStat.NullCount
				colStat.AvgWidth = inputStat.AvgWidth
			}
		case opt.ConstOp:
			colStat.DistinctCount = 1
			if item.Expr.IsNullConst() {
				colStat.NullCount = s.RowCount
			}
		default:
			colStat.DistinctCount = input.Stats.DistinctCount(item.Expr.OuterCols())
		}
	}
}

// +------+
// | Join |
// +------+

func (sb *statisticsBuilder) buildJoin(
	joinType opt.Operator,
	join *opt.JoinPrivate,
	left, right *props.Relational,
	rel *props.Relational,
) {
	s := &rel.Stats
	leftRows, rightRows := left.Stats.RowCount, right.Stats.RowCount

	switch joinType {
	case opt.SemiJoinOp, opt.AntiJoinOp:
		sel := sb.semiJoinSelectivity(join, left, right)
		if joinType == opt.AntiJoinOp {
			sel = props.MakeSelectivity(1 - sel.AsFloat())
		}
		sb.copyColStats(s, &left.Stats, rel.OutputCols)
		s.RowCount = leftRows
		sb.scaleUnconstrained(s, opt.ColSet{}, sel)
		s.RowCount = leftRows * sel.AsFloat()
		return
	}

	// Estimate the inner join as a filter over the cross product.
	sb.copyColStats(s, &left.Stats, left.OutputCols)
	sb.copyColStats(s, &right.Stats, right.OutputCols)
	s.RowCount = leftRows * rightRows
	sel, constrained := sb.applyFilters(join.On, s)
	innerRows := s.RowCount * sel.AsFloat()
	s.ColStats.ForEach(func(colStat *props.ColumnStatistic) {
		if constrained.Contains(int(colStat.Col)) {
			return
		}
		// Each input row is repeated once per matching row of the other side.
		if left.OutputCols.Contains(int(colStat.Col)) {
			colStat.NullCount *= innerRows / math.Max(leftRows, 1)
		} else {
			colStat.NullCount *= innerRows / math.Max(rightRows, 1)
		}
	})
	s.RowCount = innerRows

	if joinType == opt.LeftJoinOp {
		// Left rows without a match are kept and extended with nulls.
		s.RowCount = math.Max(innerRows, leftRows)
		unmatched := s.RowCount - innerRows
		right.OutputCols.ForEach(func(i int) {
			if colStat, ok := s.ColStats.Lookup(opt.ColumnID(i)); ok {
				colStat.NullCount += unmatched
				if unmatched > 0 {
					colStat.DistinctCount++
				}
			}
		})
	}
}

// semiJoinSelectivity estimates the fraction of left rows with at least one
// match on the right. With equality conditions it is the fraction of left
// key values that also appear on the right.
func (sb *statisticsBuilder) semiJoinSelectivity(
	join *opt.JoinPrivate, left, right *props.Relational,
) props.Selectivity {
	leftEq, rightEq := join.On.EqualityPairs(left.OutputCols, right.OutputCols)
	switch {
	case len(leftEq) > 0:
		leftDistinct := left.Stats.DistinctCount(opt.ColListToSet(leftEq))
		rightDistinct := right.Stats.DistinctCount(opt.ColListToSet(rightEq))
		return props.MakeSelectivity(math.Min(1, rightDistinct/math.Max(leftDistinct, 1)))
	case join.On.Empty():
		if right.Stats.RowCount == 0 {
			return props.ZeroSelectivity
		}
		return props.OneSelectivity
	}
	return props.MakeSelectivity(unknownFilterSelectivity)
}

// +----------+
// | Group By |
// +----------+

func (sb *statisticsBuilder) buildGroupBy(
	groupBy *opt.GroupByPrivate, input *props.Relational, rel *props.Relational,
) {
	s := &rel.Stats
	if groupBy.IsScalar() {
		s.RowCount = 1
	} else {
		s.RowCount = math.Min(input.Stats.DistinctCount(groupBy.GroupingCols), input.Stats.RowCount)
	}
	sb.copyColStats(s, &input.Stats, groupBy.GroupingCols)

	for i := range groupBy.Aggs {
		item := &groupBy.Aggs[i]
		colStat, _ := s.ColStats.Add(item.Col)
		colStat.DistinctCount = s.RowCount
		colStat.AvgWidth = item.Agg.Type(sb.md).DefaultWidth()
	}
}

// +-------+
// | Limit |
// +-------+

func (sb *statisticsBuilder) buildLimit(
	limit *opt.LimitPrivate, input *props.Relational, rel *props.Relational,
) {
	s := &rel.Stats
	s.RowCount = math.Min(float64(limit.Count), input.Stats.RowCount)
	sb.copyColStats(s, &input.Stats, rel.OutputCols)
	if input.Stats.RowCount > 0 {
		sb.scaleUnconstrained(s, opt.ColSet{},
			props.MakeSelectivityFromFraction(s.RowCount, input.Stats.RowCount))
	}
}

// +-----------+
// | Union All |
// +-----------+

func (sb *statisticsBuilder) buildUnionAll(
	union *opt.UnionAllPrivate, left, right *props.Relational, rel *props.Relational,
) {
	s := &rel.Stats
	s.RowCount = left.Stats.RowCount + right.Stats.RowCount
	for i, col := range union.OutCols {
		colStat, _ := s.ColStats.Add(col)
		leftStat, okLeft := left.Stats.ColStats.Lookup(union.LeftCols[i])
		rightStat, okRight := right.Stats.ColStats.Lookup(union.RightCols[i])
		if !okLeft || !okRight {
			colStat.DistinctCount = s.RowCount
			colStat.AvgWidth = sb.md.ColumnMeta(col).Type.DefaultWidth()
			continue
		}
		colStat.DistinctCount = leftStat.DistinctCount + rightStat.DistinctCount
		colStat.NullCount = leftStat.NullCount + rightStat.NullCount
		colStat.AvgWidth = (leftStat.AvgWidth + rightStat.AvgWidth) / 2
	}
}

// copyColStats copies the statistics of the given columns from src to dst.
// Histograms are immutable, so they are shared.
func (sb *statisticsBuilder) copyColStats(dst, src *props.Statistics, cols opt.ColSet) {
	cols.ForEach(func(i int) {
		col := opt.ColumnID(i)
		srcStat, ok := src.ColStats.Lookup(col)
		if !ok {
			return
		}
		dstStat, _ := dst.ColStats.Add(col)
		*dstStat = *srcStat
	})
}

// finalize makes the column statistics consistent with the row count: no
// column has more distinct values or nulls than there are rows, and every
// column of a non-empty relation has at least one distinct value.
func (sb *statisticsBuilder) finalize(rel *props.Relational) {
	s := &rel.Stats
	if s.RowCount < 0 {
		s.RowCount = 0
	}
	s.ColStats.ForEach(func(colStat *props.ColumnStatistic) {
		if h := colStat.Histogram; h != nil {
			if valuesCount := h.ValuesCount(); valuesCount > s.RowCount {
				colStat.Histogram = h.ApplySelectivity(s.RowCount / valuesCount)
			}
		}
		colStat.DistinctCount = math.Min(colStat.DistinctCount, s.RowCount)
		colStat.NullCount = math.Min(colStat.NullCount, s.RowCount)
		if s.RowCount > 0 && colStat.DistinctCount < 1 {
			colStat.DistinctCount = 1
		}
		if rel.NotNullCols.Contains(int(colStat.Col)) {
			colStat.NullCount = 0
		}
	})
}
