// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical_test

import (
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/sql/opt/testutils/testcat"
	"github.com/stretchr/testify/require"
)

func TestSatisfies(t *testing.T) {
	asc1 := opt.MakeOrderingColumn(1, false)
	desc2 := opt.MakeOrderingColumn(2, true)

	testCases := []struct {
		provided physical.Provided
		required physical.Required
		expected bool
	}{
		{provided: physical.Provided{}, required: physical.Required{}, expected: true},
		{
			provided: physical.Provided{Ordering: opt.Ordering{asc1, desc2}},
			required: physical.Required{Ordering: opt.Ordering{asc1}},
			expected: true,
		},
		{
			provided: physical.Provided{Ordering: opt.Ordering{asc1}},
			required: physical.Required{Ordering: opt.Ordering{asc1, desc2}},
			expected: false,
		},
		{
			provided: physical.Provided{Ordering: opt.Ordering{desc2, asc1}},
			required: physical.Required{Ordering: opt.Ordering{asc1}},
			expected: false,
		},
		{
			provided: physical.Provided{Distribution: physical.MakeHashed(2, 1)},
			required: physical.Required{Distribution: physical.MakeHashed(1, 2)},
			expected: true,
		},
		{
			provided: physical.Provided{Distribution: physical.MakeHashed(1)},
			required: physical.Required{Distribution: physical.MakeHashed(1, 2)},
			expected: false,
		},
		{
			provided: physical.Provided{Distribution: physical.MakeHashed(1)},
			required: physical.Required{Distribution: physical.Random},
			expected: true,
		},
		{
			provided: physical.Provided{Distribution: physical.Random},
			required: physical.Required{Distribution: physical.MakeHashed(1)},
			expected: false,
		},
		{
			provided: physical.Provided{Distribution: physical.Replicated},
			required: physical.Required{Distribution: physical.Singleton},
			expected: false,
		},
		{
			provided: physical.Provided{Distribution: physical.Singleton},
			required: physical.Required{Distribution: physical.Singleton},
			expected: true,
		},
		{
			provided: physical.Provided{Distribution: physical.Singleton},
			required: physical.Required{},
			expected: true,
		},
		{
			provided: physical.Provided{},
			required: physical.Required{Rewind: physical.Rewindable},
			expected: false,
		},
		{
			provided: physical.Provided{Rewind: physical.Rewindable},
			required: physical.Required{Rewind: physical.Rewindable},
			expected: true,
		},
	}

	for _, tc := range testCases {
		if actual := physical.Satisfies(&tc.provided, &tc.required); actual != tc.expected {
			t.Errorf("%s satisfies %s: expected %v, got %v",
				tc.provided.String(), tc.required.String(), tc.expected, actual)
		}
	}
}

func TestRequiredString(t *testing.T) {
	require.Equal(t, "[]", physical.MinRequired.String())
	require.True(t, physical.MinRequired.Any())

	req := physical.Required{
		Ordering:     opt.Ordering{1, -2},
		Distribution: physical.MakeHashed(3, 1),
		Rewind:       physical.Rewindable,
	}
	require.False(t, req.Any())
	require.Equal(t, "[ordering: +1,-2] [distribution: hash(1,3)] [rewind]", req.String())
	require.Equal(t, "[distribution: hash(1,3)] [rewind]", (&physical.Required{
		Distribution: req.Distribution, Rewind: req.Rewind,
	}).String())

	noOrd := req.WithoutOrdering()
	require.True(t, noOrd.Ordering.Empty())
	noDist := req.WithoutDistribution()
	require.True(t, noDist.Distribution.Any())
	noRewind := req.WithoutRewind()
	require.Equal(t, physical.RewindNotRequired, noRewind.Rewind)
	require.True(t, req.Equals(&req))
	require.False(t, req.Equals(&noRewind))
}

func TestDistributionProject(t *testing.T) {
	d := physical.MakeHashed(1, 2)
	require.Equal(t, "hash(1,2)", d.Project(opt.MakeColSet(1, 2, 3)).String())
	require.Equal(t, "random", d.Project(opt.MakeColSet(1)).String())
	require.Equal(t, "random", physical.MakeHashed().String())
	require.Equal(t, "replicated", physical.Replicated.Project(opt.ColSet{}).String())
}

func TestParseRequired(t *testing.T) {
	cat := testcat.New()
	var md opt.Metadata
	md.Init()
	a := md.AddTable(cat.Table("a"), "")
	md.AddTable(cat.Table("b"), "")

	req, err := physical.ParseRequired(&md, "ordering=+a.y,-z distribution=hash(a.x) rewind")
	require.NoError(t, err)
	require.Equal(t, "[ordering: +2,-3] [distribution: hash(1)] [rewind]", req.String())
	require.Equal(t, "[ordering: +a.y,-a.z] [distribution: hash(a.x)] [rewind]", req.Format(&md))

	// Both the tables scanned so far have a column called x.
	_, err = physical.ParseRequired(&md, "distribution=hash(x)")
	require.True(t, opterrors.IsMalformedInput(err))

	req, err = physical.ParseRequired(&md, "distribution=singleton")
	require.NoError(t, err)
	require.Equal(t, physical.Singleton, req.Distribution)

	req, err = physical.ParseRequired(&md, "any")
	require.NoError(t, err)
	require.True(t, req.Any())

	for _, s := range []string{"ordering=a.x", "distribution=hashed", "sorted", "ordering=+nope"} {
		_, err := physical.ParseRequired(&md, s)
		require.Error(t, err, s)
		require.True(t, opterrors.IsMalformedInput(err), s)
	}

	tm := md.TableMeta(a)
	require.Equal(t, "hash(1)", physical.TableDistribution(tm, tm.AllCols()).String())
	require.Equal(t, "random", physical.TableDistribution(tm, opt.MakeColSet(2)).String())
}
