// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"math"
	"reflect"
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
)

func TestHistogram(t *testing.T) {
	//   0  1  3  3   4  5   0  0   40  35
	// <--- 1 --- 10 --- 25 --- 30 ---- 42
	histData := []cat.HistogramBucket{
		{NumRange: 0, DistinctRange: 0, NumEq: 1, UpperBound: 1},
		{NumRange: 3, DistinctRange: 2, NumEq: 3, UpperBound: 10},
		{NumRange: 4, DistinctRange: 2, NumEq: 5, UpperBound: 25},
		{NumRange: 0, DistinctRange: 0, NumEq: 0, UpperBound: 30},
		{NumRange: 40, DistinctRange: 7, NumEq: 35, UpperBound: 42},
	}
	h := &Histogram{}
	h.Init(opt.ColumnID(1), true /* discrete */, histData)
	count, expected := h.ValuesCount(), float64(91)
	if count != expected {
		t.Fatalf("expected %f but found %f", expected, count)
	}
	maxDistinct, expected := h.maxDistinctValuesCount(), float64(22)
	if maxDistinct != expected {
		t.Fatalf("expected %f but found %f", expected, maxDistinct)
	}
	distinct, expected := h.DistinctValuesCount(), float64(15)
	if distinct != expected {
		t.Fatalf("expected %f but found %f", expected, distinct)
	}

	inf := math.Inf(1)
	testData := []struct {
		spans       []span
		buckets     []cat.HistogramBucket
		count       float64
		maxDistinct float64
		distinct    float64
	}{
		{
			spans:       []span{{0, 0}},
			buckets:     []cat.HistogramBucket{},
			count:       0,
			maxDistinct: 0,
			distinct:    0,
		},
		{
			spans:       []span{{50, 100}},
			buckets:     []cat.HistogramBucket{},
			count:       0,
			maxDistinct: 0,
			distinct:    0,
		},
		{
			spans: []span{{-inf, 1}, {11, 24}, {30, 45}},
			//   0  1  0  0   3.7143 0.28571 0  0   40  35
			// <--- 1 --- 10 --------- 24 ----- 30 ---- 42
			buckets: []cat.HistogramBucket{
				{NumRange: 0, NumEq: 1, DistinctRange: 0, UpperBound: 1},
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 10},
				{NumRange: 3.71, NumEq: 0.29, DistinctRange: 1.86, UpperBound: 24},
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 30},
				{NumRange: 40, NumEq: 35, DistinctRange: 7, UpperBound: 42},
			},
			count:       80,
			maxDistinct: 17,
			distinct:    11.14,
		},
		{
			spans: []span{{5, 10}, {15, 32}, {34, 36}, {38, inf}},
			//   0  0  1.875  3   0  0   2.8571  5   0  0   3.6364 3.6364 0  0   7.2727 3.6364 0  0   14.545  35
			// <--- 4 ------- 10 --- 14 -------- 25 --- 30 --------- 32 ---- 33 --------- 36 ---- 37 -------- 42
			buckets: []cat.HistogramBucket{
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 4},
				{NumRange: 1.88, NumEq: 3, DistinctRange: 1.25, UpperBound: 10},
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 14},
				{NumRange: 2.86, NumEq: 5, DistinctRange: 1.43, UpperBound: 25},
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 30},
				{NumRange: 3.64, NumEq: 3.64, DistinctRange: 0.64, UpperBound: 32},
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 33},
				{NumRange: 7.27, NumEq: 3.64, DistinctRange: 1.27, UpperBound: 36},
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 37},
				{NumRange: 14.55, NumEq: 35, DistinctRange: 2.55, UpperBound: 42},
			},
			count:       80.46,
			maxDistinct: 16.73,
			distinct:    12.13,
		},
		{
			spans: []span{{-inf, 41}},
			//   0  1  3  3   4  5   0  0   36.364 3.6364
			// <--- 1 --- 10 --- 25 --- 30 --------- 41 -
			buckets: []cat.HistogramBucket{
				{NumRange: 0, NumEq: 1, DistinctRange: 0, UpperBound: 1},
				{NumRange: 3, NumEq: 3, DistinctRange: 2, UpperBound: 10},
				{NumRange: 4, NumEq: 5, DistinctRange: 2, UpperBound: 25},
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 30},
				{NumRange: 36.36, NumEq: 3.64, DistinctRange: 6.36, UpperBound: 41},
			},
			count:       56,
			maxDistinct: 21,
			distinct:    14.36,
		},
		{
			spans: []span{{1, inf}},
			//   0  1  3  3   4  5   0  0   40  35
			// <--- 1 --- 10 --- 25 --- 30 ---- 42
			buckets: []cat.HistogramBucket{
				{NumRange: 0, NumEq: 1, DistinctRange: 0, UpperBound: 1},
				{NumRange: 3, NumEq: 3, DistinctRange: 2, UpperBound: 10},
				{NumRange: 4, NumEq: 5, DistinctRange: 2, UpperBound: 25},
				{NumRange: 0, NumEq: 0, DistinctRange: 0, UpperBound: 30},
				{NumRange: 40, NumEq: 35, DistinctRange: 7, UpperBound: 42},
			},
			count:       91,
			maxDistinct: 22,
			distinct:    15,
		},
		{
			spans: []span{{40, 40}},
			//   0 5.7143
			// <---- 40 -
			buckets: []cat.HistogramBucket{
				{NumRange: 0, NumEq: 5.71, DistinctRange: 0, UpperBound: 40},
			},
			count:       5.71,
			maxDistinct: 1,
			distinct:    1,
		},
	}

	for i := range testData {
		filtered := h.filterSpans(testData[i].spans)
		count := roundVal(filtered.ValuesCount())
		if testData[i].count != count {
			t.Fatalf("expected %f but found %f", testData[i].count, count)
		}
		maxDistinct := roundVal(filtered.maxDistinctValuesCount())
		if testData[i].maxDistinct != maxDistinct {
			t.Fatalf("expected %f but found %f", testData[i].maxDistinct, maxDistinct)
		}
		distinct := roundVal(filtered.DistinctValuesCount())
		if testData[i].distinct != distinct {
			t.Fatalf("expected %f but found %f", testData[i].distinct, distinct)
		}
		roundHistogram(filtered)
		if !reflect.DeepEqual(testData[i].buckets, filtered.buckets) {
			t.Fatalf("expected %v but found %v", testData[i].buckets, filtered.buckets)
		}
	}
}

func TestHistogramFilterComparison(t *testing.T) {
	histData := []cat.HistogramBucket{
		{NumRange: 0, DistinctRange: 0, NumEq: 1, UpperBound: 1},
		{NumRange: 3, DistinctRange: 2, NumEq: 3, UpperBound: 10},
		{NumRange: 4, DistinctRange: 2, NumEq: 5, UpperBound: 25},
		{NumRange: 0, DistinctRange: 0, NumEq: 0, UpperBound: 30},
		{NumRange: 40, DistinctRange: 7, NumEq: 35, UpperBound: 42},
	}
	h := &Histogram{}
	h.Init(opt.ColumnID(1), true /* discrete */, histData)

	testData := []struct {
		op    opt.ScalarOperator
		val   float64
		count float64
	}{
		{op: opt.EqOp, val: 40, count: 5.71},
		{op: opt.EqOp, val: 42, count: 35},
		{op: opt.LeOp, val: 41, count: 56},
		{op: opt.LtOp, val: 42, count: 56},
		{op: opt.GeOp, val: 1, count: 91},
		{op: opt.GtOp, val: 0, count: 91},
		{op: opt.GtOp, val: 42, count: 0},
		{op: opt.NeOp, val: 42, count: 56},
	}
	for _, tc := range testData {
		if !h.CanFilter(tc.op) {
			t.Fatalf("%s cannot filter histogram", tc.op)
		}
		if count := roundVal(h.Filter(tc.op, tc.val).ValuesCount()); count != tc.count {
			t.Errorf("%s %g: expected %f but found %f", tc.op, tc.val, tc.count, count)
		}
	}
}

func TestFilterBucket(t *testing.T) {
	type testCase struct {
		span     span
		expected *cat.HistogramBucket
		isError  bool
	}

	runTestCase := func(
		h *Histogram, bucket *cat.HistogramBucket, lowerBound float64, sp span,
	) (actual *cat.HistogramBucket, err error) {
		defer func() {
			// Any errors will be propagated as panics.
			if r := recover(); r != nil {
				if e, ok := r.(error); ok {
					err = e
					return
				}
				panic(r)
			}
		}()

		b := h.getFilteredBucket(bucket, sp, lowerBound)
		roundBucket(b)
		return b, nil
	}

	runTest := func(
		h *Histogram, bucket *cat.HistogramBucket, lowerBound float64, testData []testCase,
	) {
		for _, testCase := range testData {
			actual, err := runTestCase(h, bucket, lowerBound, testCase.span)
			if err != nil && !testCase.isError {
				t.Fatal(err)
			} else if err == nil {
				if testCase.isError {
					t.Fatal("expected an error")
				}
				if !reflect.DeepEqual(testCase.expected, actual) {
					t.Fatalf("exected %v but found %v", testCase.expected, actual)
				}
			}
		}
	}

	t.Run("int", func(t *testing.T) {
		h := &Histogram{discrete: true}
		bucket := &cat.HistogramBucket{NumEq: 5, NumRange: 10, DistinctRange: 10, UpperBound: 10}
		testData := []testCase{
			{
				span:     span{0, 0},
				expected: &cat.HistogramBucket{NumEq: 1, NumRange: 0, DistinctRange: 0, UpperBound: 0},
			},
			{
				span:     span{0, 5},
				expected: &cat.HistogramBucket{NumEq: 1, NumRange: 5, DistinctRange: 5, UpperBound: 5},
			},
			{
				span:     span{2, 9},
				expected: &cat.HistogramBucket{NumEq: 1, NumRange: 7, DistinctRange: 7, UpperBound: 9},
			},
			{
				span:     span{2, 10},
				expected: &cat.HistogramBucket{NumEq: 5, NumRange: 8, DistinctRange: 8, UpperBound: 10},
			},
			{
				span:     span{10, 10},
				expected: &cat.HistogramBucket{NumEq: 5, NumRange: 0, DistinctRange: 0, UpperBound: 10},
			},
			{
				span:    span{20, 30},
				isError: true,
			},
		}

		runTest(h, bucket, 0, testData)
	})

	t.Run("float", func(t *testing.T) {
		h := &Histogram{}
		bucket := &cat.HistogramBucket{NumEq: 5, NumRange: 10, DistinctRange: 10, UpperBound: 10}

		testData := []testCase{
			{
				span:     span{0, 0},
				expected: &cat.HistogramBucket{NumEq: 1, NumRange: 0, DistinctRange: 0, UpperBound: 0},
			},
			{
				span:     span{h.next(0), 5},
				expected: &cat.HistogramBucket{NumEq: 0, NumRange: 5, DistinctRange: 5, UpperBound: 5},
			},
			{
				span:     span{2.5, h.prev(9)},
				expected: &cat.HistogramBucket{NumEq: 0, NumRange: 6.5, DistinctRange: 6.5, UpperBound: 9},
			},
			{
				span:     span{2, 10},
				expected: &cat.HistogramBucket{NumEq: 5, NumRange: 8, DistinctRange: 8, UpperBound: 10},
			},
			{
				span:     span{10, 10},
				expected: &cat.HistogramBucket{NumEq: 5, NumRange: 0, DistinctRange: 0, UpperBound: 10},
			},
			{
				span:    span{10, 20},
				isError: true,
			},
		}

		runTest(h, bucket, 0, testData)
	})
}

func TestHistogramString(t *testing.T) {
	h := &Histogram{}
	h.Init(1, true, []cat.HistogramBucket{
		{NumEq: 1, UpperBound: 0},
		{NumRange: 90, NumEq: 10, UpperBound: 100},
		{NumEq: 20, UpperBound: 200},
	})
	expected := "  0  1  90  10   0  20  \n" +
		"<--- 0 ---- 100 --- 200 "
	if s := h.String(); s != expected {
		t.Fatalf("expected\n%s\nbut found\n%s", expected, s)
	}
}

// Round all values to two decimal places.
func roundVal(val float64) float64 {
	return math.Round(val*100.0) / 100.0
}

func roundBucket(b *cat.HistogramBucket) {
	b.NumRange = roundVal(b.NumRange)
	b.NumEq = roundVal(b.NumEq)
	b.DistinctRange = roundVal(b.DistinctRange)
	b.UpperBound = roundVal(b.UpperBound)
}

func roundHistogram(h *Histogram) {
	for i := range h.buckets {
		roundBucket(&h.buckets[i])
	}
}
