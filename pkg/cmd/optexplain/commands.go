// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/cascades/pkg/sql/opt/exec/explain"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/xform"
	"github.com/cockroachdb/cascades/pkg/util/humanizeutil"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func makePlanCommand(opts *options) *cobra.Command {
	var explainOpts []string
	var table bool
	cmd := &cobra.Command{
		Use:   "plan [expression]",
		Short: "Show the lowest cost plan of the expression.",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := explain.MakeFlags(explainOpts...)
			if err != nil {
				return err
			}
			s, err := opts.newSession(cmd, args)
			if err != nil {
				return err
			}
			_, plan, err := s.optimize(cmd.Context(), nil /* metrics */)
			if err != nil {
				return err
			}
			ob := explain.NewOutputBuilder(flags)
			if err := explain.Emit(plan, ob); err != nil {
				return err
			}
			if table {
				ob.WriteTable(cmd.OutOrStdout())
				return nil
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), ob.BuildString())
			return err
		},
	}
	cmd.Flags().StringSliceVar(&explainOpts, "explain", nil, "explain options: verbose, shape, deflake, deflake-cost, deflake-rows")
	cmd.Flags().BoolVar(&table, "table", false, "show the plan as a table")
	return cmd
}

func makeMemoCommand(opts *options) *cobra.Command {
	var raw, table bool
	cmd := &cobra.Command{
		Use:   "memo [expression]",
		Short: "Show the memo after optimizing the expression.",
		Long: `Show the memo after optimizing the expression. The memo is shown even when no plan
satisfies the required properties, followed by the error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd, args)
			if err != nil {
				return err
			}
			o, _, optErr := s.optimize(cmd.Context(), nil /* metrics */)
			if o == nil {
				return optErr
			}
			if table {
				writeMemoTable(cmd, o.Memo())
			} else {
				flags := memo.FmtPretty
				if raw {
					flags = memo.FmtRaw
				}
				fmt.Fprint(cmd.OutOrStdout(), o.Memo().FormatString(flags))
			}
			return optErr
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "show the groups in creation order")
	cmd.Flags().BoolVar(&table, "table", false, "show one row per group with its winners")
	return cmd
}

// writeMemoTable renders a summary of each memo group: its members, its
// estimated row count and the winner for each required property set.
func writeMemoTable(cmd *cobra.Command, mem *memo.Memo) {
	md := mem.Metadata()
	tw := tablewriter.NewWriter(cmd.OutOrStdout())
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeader([]string{"group", "rows", "members", "winners"})
	for g := range mem.Groups() {
		members := make([]string, g.ExprCount())
		for i := range members {
			members[i] = g.Expr(i).Op().String()
		}
		var winners []string
		g.ForEachWinner(func(w *memo.Winner) {
			op := "none"
			if w.Feasible() {
				op = w.Op().String()
			}
			winners = append(winners, fmt.Sprintf("%s %s %s", mem.LookupRequired(w.Required).Format(md), op, w.Cost))
		})
		sort.Strings(winners)
		tw.Append([]string{
			fmt.Sprintf("G%d", g.ID()),
			humanizeutil.Count(g.Relational().RowCount()),
			strings.Join(members, ", "),
			strings.Join(winners, "; "),
		})
	}
	tw.SetFooter([]string{
		"", "", humanize.Comma(int64(mem.ExprCount())) + " exprs", humanize.Comma(int64(mem.GroupCount())) + " groups",
	})
	tw.Render()
}

func makeBenchCommand(opts *options) *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "bench [expression]",
		Short: "Optimize the expression repeatedly and summarize the timings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations <= 0 {
				return errors.Newf("iterations must be positive, got %d", iterations)
			}
			s, err := opts.newSession(cmd, args)
			if err != nil {
				return err
			}
			metrics := xform.MakeMetrics()
			samples := make(stats.Float64Data, 0, iterations)
			var cost memo.Cost
			for i := 0; i < iterations; i++ {
				start := time.Now()
				_, plan, err := s.optimize(cmd.Context(), &metrics)
				if err != nil {
					return err
				}
				samples = append(samples, float64(time.Since(start)))
				cost = plan.Cost
			}
			res, err := summarize(samples)
			if err != nil {
				return err
			}

			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.SetAutoFormatHeaders(false)
			tw.SetAlignment(tablewriter.ALIGN_LEFT)
			tw.SetHeader([]string{"iterations", "mean", "median", "p95", "stddev", "rules/op", "cost"})
			tw.Append([]string{
				humanize.Comma(int64(iterations)),
				humanizeutil.Duration(res.mean),
				humanizeutil.Duration(res.median),
				humanizeutil.Duration(res.p95),
				humanizeutil.Duration(res.stddev),
				humanize.Comma(metrics.RulesFired.Count() / int64(iterations)),
				cost.String(),
			})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 10, "number of optimizations")
	return cmd
}

type benchSummary struct {
	mean, median, p95, stddev time.Duration
}

// summarize computes the statistics of the optimization latencies, given in
// nanoseconds.
func summarize(samples stats.Float64Data) (benchSummary, error) {
	var res benchSummary
	mean, err := samples.Mean()
	if err != nil {
		return res, err
	}
	median, err := samples.Median()
	if err != nil {
		return res, err
	}
	p95, err := samples.Percentile(95)
	if err != nil {
		return res, err
	}
	stddev, err := samples.StandardDeviation()
	if err != nil {
		return res, err
	}
	res.mean = time.Duration(mean)
	res.median = time.Duration(median)
	res.p95 = time.Duration(p95)
	res.stddev = time.Duration(stddev)
	return res, nil
}
