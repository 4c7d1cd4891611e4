// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt/exec/explain"
	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

func TestOutputBuilder(t *testing.T) {
	example := func(flags explain.Flags) *explain.OutputBuilder {
		ob := explain.NewOutputBuilder(flags)
		ob.AddTopLevelField("estimated cost", "12.50")
		ob.EnterNode("render", "(a, b)", "+a,-b")
		ob.AddField("render c", "a + b")
		{
			ob.EnterNode("hash join", "(a, x)", "")
			ob.AddField("type", "inner")
			{
				ob.EnterNode("table scan", "(a)", "")
				ob.AddField("table", "foo")
				ob.LeaveNode()
			}
			{
				ob.EnterNode("table scan", "", "") // No columns field.
				ob.AddField("table", "bar")
				ob.LeaveNode()
			}
			ob.LeaveNode()
		}
		ob.LeaveNode()
		return ob
	}

	datadriven.RunTest(t, "testdata/output", func(t *testing.T, d *datadriven.TestData) string {
		var options []string
		for _, arg := range d.CmdArgs {
			options = append(options, arg.Key)
		}
		flags, err := explain.MakeFlags(options...)
		if err != nil {
			d.Fatalf(t, "%v", err)
		}
		ob := example(flags)
		switch d.Cmd {
		case "string":
			return ob.BuildString()

		default:
			panic(fmt.Sprintf("unknown command %s", d.Cmd))
		}
	})
}

func TestOutputBuilderTable(t *testing.T) {
	ob := explain.NewOutputBuilder(explain.Flags{})
	ob.EnterNode("limit", "", "")
	ob.AddField("count", "10")
	ob.EnterNode("table scan", "", "")
	ob.AddField("table", "c")
	ob.LeaveNode()
	ob.LeaveNode()

	var buf bytes.Buffer
	ob.WriteTable(&buf)
	var rows []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		rows = append(rows, strings.Join(strings.Fields(strings.ReplaceAll(line, "|", " ")), " "))
	}
	require.Equal(t, []string{
		"tree field description",
		"limit",
		"count 10",
		"table scan",
		"table c",
	}, dropSeparators(rows))
}

// dropSeparators removes the rows of dashes that separate the table header
// from its body.
func dropSeparators(rows []string) []string {
	res := rows[:0]
	for _, r := range rows {
		if strings.Trim(r, "-+ ") == "" && r != "" {
			continue
		}
		res = append(res, r)
	}
	return res
}

func TestEmptyOutputBuilder(t *testing.T) {
	ob := explain.NewOutputBuilder(explain.Flags{Verbose: true})
	if str := ob.BuildString(); str != "" {
		t.Errorf("expected empty string, got '%s'", str)
	}
	if rows := ob.BuildStringRows(); len(rows) != 0 {
		t.Errorf("expected no rows, got %v", rows)
	}
}

func TestMakeFlags(t *testing.T) {
	flags, err := explain.MakeFlags("verbose", "deflake-cost")
	require.NoError(t, err)
	require.True(t, flags.Verbose)
	require.True(t, flags.Deflake.HasAny(explain.DeflakeCost))
	require.False(t, flags.Deflake.HasAny(explain.DeflakeRows))

	flags, err = explain.MakeFlags("shape")
	require.NoError(t, err)
	require.True(t, flags.OnlyShape)
	require.Equal(t, explain.DeflakeAll, flags.Deflake)

	_, err = explain.MakeFlags("analyze")
	require.EqualError(t, err, `unknown explain option "analyze"`)
}
