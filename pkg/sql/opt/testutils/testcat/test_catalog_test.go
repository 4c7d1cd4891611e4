// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/stretchr/testify/require"
)

func TestExecuteYAML(t *testing.T) {
	tc := New()
	require.NoError(t, tc.ExecuteYAML(`
tables:
- name: t
  rows: 500
  distribution: hash(k)
  columns:
  - {name: k, type: int, distinct: 500}
  - {name: v, type: string, nullable: true, nulls: 5}
  indexes:
  - {name: t_v_idx, columns: [v, -k]}
  histograms:
    k:
    - {upper: 1, eq: 1}
    - {upper: 500, eq: 1, range: 498, distinct: 498}
`))

	tab, err := tc.ResolveTable("t")
	require.NoError(t, err)
	require.Equal(t, "t", tab.Name())
	require.Equal(t, 2, tab.ColumnCount())
	require.Equal(t, cat.StringType, tab.Column(1).Type)
	require.True(t, tab.Column(1).Nullable)
	require.Equal(t, 500.0, tab.Statistics().RowCount)
	require.Len(t, tab.Statistics().ColumnStatistics[0].Histogram, 2)
	require.Equal(t, cat.Distribution{Type: cat.DistributeByHash, KeyColumns: []int{0}}, tab.Distribution())
	require.Equal(t, []cat.IndexColumn{{Ordinal: 1}, {Ordinal: 0, Descending: true}}, tab.Index(0).Columns)

	require.Equal(t, `TABLE t
 ├── k int not null
 ├── v string
 ├── INDEX t_v_idx (+v,-k)
 ├── DISTRIBUTED BY HASH (k)
 └── ROWS 500
`, tc.Table("t").String())
}

func TestExecuteYAMLErrors(t *testing.T) {
	testCases := []struct {
		def string
		err string
	}{
		{def: "tables: [{name: t, columns: [{name: k, type: blob}]}]", err: `unknown type "blob"`},
		{def: "tables: [{name: t, columns: [{name: k}, {name: k}]}]", err: "duplicate column k"},
		{def: "tables: [{name: t, distribution: hash(q), columns: [{name: k}]}]", err: "unknown column q"},
		{def: "tables: [{name: t, distribution: everywhere}]", err: "invalid distribution"},
		{def: "tables: [{name: t, indexes: [{name: i, columns: [q]}]}]", err: "unknown column q"},
		{def: "tables: [{rows: 1}]", err: "without a name"},
		{def: "tables: {", err: "parsing catalog definition"},
	}
	for _, tc := range testCases {
		t.Run(tc.err, func(t *testing.T) {
			require.ErrorContains(t, New().ExecuteYAML(tc.def), tc.err)
		})
	}
}

func TestResolveBuiltin(t *testing.T) {
	tc := New()
	for _, name := range []string{"a", "b", "c", "d", "e", "s"} {
		tab, err := tc.ResolveTable(name)
		require.NoError(t, err)
		require.Equal(t, name, tab.Name())
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e", "s"}, tc.TableNames())
	require.Equal(t, cat.DistributeReplicated, tc.Table("e").Distribution().Type)

	_, err := tc.ResolveTable("missing")
	require.ErrorContains(t, err, `table "missing" does not exist`)

	// A catalog definition may not redefine a table that was already resolved.
	require.Error(t, tc.ExecuteYAML("tables: [{name: a}]"))
}
