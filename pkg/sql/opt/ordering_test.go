// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt_test

import (
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
)

func TestOrdering(t *testing.T) {
	// Add Ordering props.
	ordering := opt.Ordering{1, 5}

	if ordering.Empty() {
		t.Error("ordering not empty")
	}

	if !ordering.ColSet().Equals(opt.MakeColSet(1, 5)) {
		t.Error("ordering colset should equal the ordering columns")
	}

	if !(opt.Ordering{}).ColSet().Equals(opt.ColSet{}) {
		t.Error("empty ordering should have empty column set")
	}

	if !ordering.Equals(ordering) {
		t.Error("ordering should be equal with itself")
	}

	if ordering.Equals(opt.Ordering{}) {
		t.Error("ordering should not equal the empty ordering")
	}

	if (opt.Ordering{}).Equals(ordering) {
		t.Error("empty ordering should not equal ordering")
	}
}

func TestOrderingProvides(t *testing.T) {
	asc1 := opt.MakeOrderingColumn(1, false)
	desc2 := opt.MakeOrderingColumn(2, true)
	asc3 := opt.MakeOrderingColumn(3, false)

	testCases := []struct {
		provided opt.Ordering
		required opt.Ordering
		expected bool
	}{
		{provided: nil, required: nil, expected: true},
		{provided: opt.Ordering{asc1}, required: nil, expected: true},
		{provided: nil, required: opt.Ordering{asc1}, expected: false},
		{provided: opt.Ordering{asc1, desc2}, required: opt.Ordering{asc1}, expected: true},
		{provided: opt.Ordering{asc1}, required: opt.Ordering{asc1, desc2}, expected: false},
		{provided: opt.Ordering{asc1, desc2}, required: opt.Ordering{asc1, asc3}, expected: false},
		{provided: opt.Ordering{opt.MakeOrderingColumn(1, true)}, required: opt.Ordering{asc1}, expected: false},
	}
	for _, tc := range testCases {
		if res := tc.provided.Provides(tc.required); res != tc.expected {
			t.Errorf("%s provides %s: expected %t, got %t", tc.provided, tc.required, tc.expected, res)
		}
	}
}

func TestOrderingColumn(t *testing.T) {
	col1 := opt.MakeOrderingColumn(1, false)
	col2 := opt.MakeOrderingColumn(4, true)

	if col1.String() != "+1" {
		t.Errorf("unexpected %s", col1)
	}
	if col2.String() != "-4" {
		t.Errorf("unexpected %s", col2)
	}
	if col2.ID() != 4 || !col2.Descending() || col2.Ascending() {
		t.Errorf("unexpected decoding of %s", col2)
	}
	ord := opt.Ordering{col1, col2}
	if s := ord.String(); s != "+1,-4" {
		t.Errorf("unexpected %s", s)
	}
	if p := ord.Project(opt.MakeColSet(1)); !p.Equals(opt.Ordering{col1}) {
		t.Errorf("unexpected projection %s", p)
	}
}
