// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
)

// Histogram captures the distribution of values for a particular column within
// a relational expression.
// Histograms are immutable.
type Histogram struct {
	col opt.ColumnID
	// discrete is true for integer columns, where the values between two
	// bounds can be counted.
	discrete bool
	buckets  []cat.HistogramBucket
}

func (h *Histogram) String() string {
	w := histogramWriter{}
	w.init(h.buckets)
	var buf bytes.Buffer
	w.write(&buf)
	return buf.String()
}

// Init initializes the histogram with data from the catalog.
func (h *Histogram) Init(col opt.ColumnID, discrete bool, buckets []cat.HistogramBucket) {
	h.col = col
	h.discrete = discrete
	h.buckets = buckets
}

// copy returns a deep copy of the histogram.
func (h *Histogram) copy() *Histogram {
	buckets := make([]cat.HistogramBucket, len(h.buckets))
	copy(buckets, h.buckets)
	return &Histogram{
		col:      h.col,
		discrete: h.discrete,
		buckets:  buckets,
	}
}

// Col returns the column described by the histogram.
func (h *Histogram) Col() opt.ColumnID {
	return h.col
}

// BucketCount returns the number of buckets in the histogram.
func (h *Histogram) BucketCount() int {
	return len(h.buckets)
}

// Bucket returns a pointer to the ith bucket in the histogram.
// i must be greater than or equal to 0 and less than BucketCount.
func (h *Histogram) Bucket(i int) *cat.HistogramBucket {
	return &h.buckets[i]
}

// ValuesCount returns the total number of values in the histogram. It can
// be used to estimate the selectivity of a predicate by comparing the values
// count before and after calling Filter on the histogram.
func (h *Histogram) ValuesCount() float64 {
	var count float64
	for i := range h.buckets {
		count += h.buckets[i].NumRange
		count += h.buckets[i].NumEq
	}
	return count
}

// DistinctValuesCount returns the estimated number of distinct values in the
// histogram.
func (h *Histogram) DistinctValuesCount() float64 {
	var count float64
	for i := range h.buckets {
		b := &h.buckets[i]
		count += b.DistinctRange
		if b.NumEq > 1 {
			count++
		} else {
			count += b.NumEq
		}
	}
	if maxCount := h.maxDistinctValuesCount(); maxCount < count {
		count = maxCount
	}
	return count
}

// maxDistinctValuesCount estimates the maximum number of distinct values in
// the histogram.
func (h *Histogram) maxDistinctValuesCount() float64 {
	if len(h.buckets) == 0 {
		return 0
	}

	// The first bucket always has a zero value for NumRange, so the lower bound
	// of the histogram is the upper bound of the first bucket.
	if h.Bucket(0).NumRange != 0 {
		panic(errors.AssertionFailedf("the first bucket should have NumRange=0"))
	}
	lowerBound := h.Bucket(0).UpperBound

	var count float64
	for i := range h.buckets {
		b := &h.buckets[i]
		if h.discrete && b.NumRange > b.UpperBound-lowerBound {
			// There are at most upper-lower integers in [lower, upper).
			count += b.UpperBound - lowerBound
		} else {
			count += b.NumRange
		}

		if b.NumEq > 1 {
			count++
		} else {
			count += b.NumEq
		}
		lowerBound = h.getNextLowerBound(b.UpperBound)
	}
	return count
}

// span is an inclusive range of values [lo, hi]. Exclusive boundaries are
// converted to inclusive ones when the span is built.
type span struct {
	lo, hi float64
}

func (s span) intersect(other span) (span, bool) {
	res := span{lo: math.Max(s.lo, other.lo), hi: math.Min(s.hi, other.hi)}
	return res, res.lo <= res.hi
}

// CanFilter returns true if the given comparison with a constant can filter
// the histogram.
func (h *Histogram) CanFilter(op opt.ScalarOperator) bool {
	switch op {
	case opt.EqOp, opt.NeOp, opt.LtOp, opt.LeOp, opt.GtOp, opt.GeOp:
		return true
	}
	return false
}

// Filter filters the histogram according to the predicate "col op val", and
// returns a new histogram with the results. CanFilter should be called first
// to validate that op can filter the histogram.
func (h *Histogram) Filter(op opt.ScalarOperator, val float64) *Histogram {
	return h.filterSpans(h.makeSpans(op, val))
}

// makeSpans returns the sorted, disjoint spans of values that satisfy
// "col op val".
func (h *Histogram) makeSpans(op opt.ScalarOperator, val float64) []span {
	inf := math.Inf(1)
	switch op {
	case opt.EqOp:
		return []span{{lo: val, hi: val}}
	case opt.NeOp:
		return []span{{lo: -inf, hi: h.prev(val)}, {lo: h.next(val), hi: inf}}
	case opt.LtOp:
		return []span{{lo: -inf, hi: h.prev(val)}}
	case opt.LeOp:
		return []span{{lo: -inf, hi: val}}
	case opt.GtOp:
		return []span{{lo: h.next(val), hi: inf}}
	case opt.GeOp:
		return []span{{lo: val, hi: inf}}
	}
	panic(errors.AssertionFailedf("histogram cannot be filtered by %s", op))
}

func (h *Histogram) filterSpans(spans []span) *Histogram {
	bucketCount := h.BucketCount()
	filtered := &Histogram{
		col:      h.col,
		discrete: h.discrete,
		buckets:  make([]cat.HistogramBucket, 0, bucketCount),
	}
	if bucketCount == 0 {
		return filtered
	}

	// The first bucket always has a zero value for NumRange, so the lower bound
	// of the histogram is the upper bound of the first bucket.
	if h.Bucket(0).NumRange != 0 {
		panic(errors.AssertionFailedf("the first bucket should have NumRange=0"))
	}
	lowerBound := h.Bucket(0).UpperBound

	// Find the first span that may overlap with the histogram.
	spanIndex := 0
	spanCount := len(spans)
	for spanIndex < spanCount && spans[spanIndex].hi < lowerBound {
		spanIndex++
	}
	if spanIndex == spanCount {
		return filtered
	}

	// Use binary search to find the first bucket that overlaps with the span.
	sp := spans[spanIndex]
	bucIndex := sort.Search(bucketCount, func(i int) bool {
		return h.Bucket(i).UpperBound >= sp.lo
	})
	if bucIndex == bucketCount {
		return filtered
	}
	if bucIndex > 0 {
		prevUpperBound := h.Bucket(bucIndex - 1).UpperBound
		filtered.addEmptyBucket(prevUpperBound)
		lowerBound = h.getNextLowerBound(prevUpperBound)
	}

	// For the remaining buckets and spans, use a variation on merge sort.
	for bucIndex < bucketCount && spanIndex < spanCount {
		bucket := h.Bucket(bucIndex)
		left := span{lo: lowerBound, hi: bucket.UpperBound}
		right := spans[spanIndex]

		if left.lo > right.hi {
			spanIndex++
			continue
		}

		filteredSpan, ok := left.intersect(right)
		if !ok {
			filtered.addEmptyBucket(bucket.UpperBound)
			lowerBound = h.getNextLowerBound(bucket.UpperBound)
			bucIndex++
			continue
		}

		filteredBucket := bucket
		if filteredSpan != left {
			// The bucket was cut off in the middle. Get the resulting filtered
			// bucket.
			filteredBucket = h.getFilteredBucket(bucket, filteredSpan, lowerBound)
			if filteredSpan.lo != left.lo {
				// We need to add an empty bucket before the new bucket.
				filtered.addEmptyBucket(h.prev(filteredSpan.lo))
			}
		}
		filtered.addBucket(filteredBucket)

		// Skip past whichever span ends first, or skip past both if they have
		// the same endpoint.
		if left.hi <= right.hi {
			lowerBound = h.getNextLowerBound(bucket.UpperBound)
			bucIndex++
		}
		if left.hi >= right.hi {
			spanIndex++
		}
	}

	return filtered
}

// next returns the smallest value greater than v.
func (h *Histogram) next(v float64) float64 {
	if h.discrete {
		return v + 1
	}
	return math.Nextafter(v, math.Inf(1))
}

// prev returns the largest value smaller than v.
func (h *Histogram) prev(v float64) float64 {
	if h.discrete {
		return v - 1
	}
	return math.Nextafter(v, math.Inf(-1))
}

func (h *Histogram) getNextLowerBound(currentUpperBound float64) float64 {
	return h.next(currentUpperBound)
}

func (h *Histogram) addEmptyBucket(upperBound float64) {
	h.addBucket(&cat.HistogramBucket{UpperBound: upperBound})
}

func (h *Histogram) addBucket(bucket *cat.HistogramBucket) {
	// Check whether we can combine this bucket with the previous bucket.
	if len(h.buckets) != 0 {
		lastBucket := &h.buckets[len(h.buckets)-1]
		if lastBucket.NumRange == 0 && lastBucket.NumEq == 0 && bucket.NumRange == 0 {
			lastBucket.NumEq = bucket.NumEq
			lastBucket.UpperBound = bucket.UpperBound
			return
		}
		if lastBucket.UpperBound == bucket.UpperBound {
			lastBucket.NumEq += bucket.NumRange + bucket.NumEq
			return
		}
	}
	h.buckets = append(h.buckets, *bucket)
}

// ApplySelectivity reduces the size of each histogram bucket according to
// the given selectivity, and returns a new histogram with the results.
func (h *Histogram) ApplySelectivity(selectivity float64) *Histogram {
	res := h.copy()
	for i := range res.buckets {
		b := &res.buckets[i]

		// Save n and d for the distinct count formula below.
		n := b.NumRange
		d := b.DistinctRange

		b.NumEq *= selectivity
		b.NumRange *= selectivity

		if d == 0 {
			continue
		}
		// If each distinct value appears n/d times, and the probability of a
		// row being filtered out is (1 - selectivity), the probability that all
		// n/d rows are filtered out is (1 - selectivity)^(n/d). So the expected
		// number of values that are filtered out is d*(1 - selectivity)^(n/d).
		//
		// This formula returns d * selectivity when d=n but is closer to d
		// when d << n.
		b.DistinctRange = d - d*math.Pow(1-selectivity, n/d)
	}
	return res
}

// getFilteredBucket filters the histogram bucket according to the given span,
// and returns a new bucket with the results. The span represents the maximum
// range of values that remain in the bucket after filtering. The span must
// be fully contained within the bucket, or else getFilteredBucket will throw
// an error.
//
// For example, suppose a bucket initially has lower bound 0 (inclusive) and
// contains the following data: {NumEq: 5, NumRange: 10, UpperBound: 10} (all
// values are integers).
//
// The following spans will filter the bucket as shown:
//
//	[0 - 5]   => {NumEq: 1, NumRange: 5, UpperBound: 5}
//	[2 - 10]  => {NumEq: 5, NumRange: 8, UpperBound: 10}
//	[20 - 30] => error
//
// For integers it is always possible to assign a non-zero value for NumEq as
// long as NumEq and NumRange were non-zero in the original bucket. For
// floats, NumEq will be zero unless the filtered bucket includes the original
// upper bound.
func (h *Histogram) getFilteredBucket(
	b *cat.HistogramBucket, filteredSpan span, bucketLowerBound float64,
) *cat.HistogramBucket {
	spanLowerBound, spanUpperBound := filteredSpan.lo, filteredSpan.hi

	// Check that the given span is contained in the bucket.
	if spanLowerBound < bucketLowerBound || spanUpperBound > b.UpperBound {
		panic(errors.AssertionFailedf("span must be fully contained in the bucket"))
	}

	rangeBefore := b.UpperBound - bucketLowerBound
	rangeAfter := spanUpperBound - spanLowerBound

	// Determine whether this span represents an equality condition.
	isEqualityCondition := spanLowerBound == spanUpperBound

	// Determine whether this span includes the original upper bound of the
	// bucket.
	includesOriginalUpperBound := spanUpperBound == b.UpperBound

	// Calculate the new value for numEq.
	var numEq float64
	if includesOriginalUpperBound {
		numEq = b.NumEq
	} else {
		if isEqualityCondition {
			// This span represents an equality condition with a value in the range
			// of this bucket. Use the distinct count of the bucket to estimate the
			// selectivity of the equality condition.
			selectivity := 1.0
			if b.DistinctRange > 1 {
				selectivity = 1 / b.DistinctRange
			}
			numEq = selectivity * b.NumRange
		} else if rangeBefore > 0 && h.discrete {
			// The data type is discrete, so we can assign some of the old NumRange
			// to the new NumEq.
			numEq = b.NumRange / rangeBefore
		}
	}

	// Calculate the new value for numRange.
	var numRange float64
	if isEqualityCondition {
		numRange = 0
	} else if rangeBefore > 0 {
		// Assign the fraction of values that falls inside the span to the new
		// bucket.
		numRange = b.NumRange * rangeAfter / rangeBefore
	} else {
		// In the absence of any information, assume we reduced the size of the
		// bucket by half.
		numRange = 0.5 * b.NumRange
	}

	// Calculate the new value for distinctCountRange.
	var distinctCountRange float64
	if b.NumRange > 0 {
		distinctCountRange = b.DistinctRange * numRange / b.NumRange
	}

	return &cat.HistogramBucket{
		NumEq:         numEq,
		NumRange:      numRange,
		DistinctRange: distinctCountRange,
		UpperBound:    spanUpperBound,
	}
}

// histogramWriter prints histograms with the following formatting:
//
//	  NumRange1    NumEq1     NumRange2    NumEq2    ....
//	<----------- UpperBound1 ----------- UpperBound2 ....
//
// For example:
//
//	  0  1  90  10   0  20
//	<--- 0 ---- 100 --- 200
//
// This describes a histogram with 3 buckets. The first bucket contains 1 value
// equal to 0. The second bucket contains 90 values between 0 and 100 and
// 10 values equal to 100. Finally, the third bucket contains 20 values equal
// to 200.
type histogramWriter struct {
	cells     [][]string
	colWidths []int
}

const (
	// These constants describe the two rows that are printed.
	counts = iota
	boundaries
)

func (w *histogramWriter) init(buckets []cat.HistogramBucket) {
	w.cells = [][]string{
		make([]string, len(buckets)*2),
		make([]string, len(buckets)*2),
	}
	w.colWidths = make([]int, len(buckets)*2)

	for i, b := range buckets {
		w.cells[counts][i*2] = fmt.Sprintf(" %.5g ", b.NumRange)
		w.cells[counts][i*2+1] = fmt.Sprintf("%.5g", b.NumEq)
		w.cells[boundaries][i*2+1] = fmt.Sprintf(" %g ", b.UpperBound)
		if width := tablewriter.DisplayWidth(w.cells[counts][i*2]); width > w.colWidths[i*2] {
			w.colWidths[i*2] = width
		}
		if width := tablewriter.DisplayWidth(w.cells[counts][i*2+1]); width > w.colWidths[i*2+1] {
			w.colWidths[i*2+1] = width
		}
		if width := tablewriter.DisplayWidth(w.cells[boundaries][i*2+1]); width > w.colWidths[i*2+1] {
			w.colWidths[i*2+1] = width
		}
	}
}

func (w *histogramWriter) write(out io.Writer) {
	if len(w.cells[counts]) == 0 {
		return
	}

	// Print a space to match up with the "<" character below.
	fmt.Fprint(out, " ")
	for i := range w.cells[counts] {
		fmt.Fprintf(out, "%s", tablewriter.Pad(w.cells[counts][i], " ", w.colWidths[i]))
	}
	fmt.Fprint(out, "\n")
	fmt.Fprint(out, "<")
	for i := range w.cells[boundaries] {
		fmt.Fprintf(out, "%s", tablewriter.Pad(w.cells[boundaries][i], "-", w.colWidths[i]))
	}
}
