// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/xform"
	"github.com/cockroachdb/cascades/pkg/util/humanizeutil"
	"github.com/cockroachdb/errors"
)

// Emit produces the explain output of the plan against the given
// OutputBuilder. The OutputBuilder flags are taken into account.
func Emit(plan *xform.Plan, ob *OutputBuilder) error {
	if plan == nil || plan.Root == nil {
		return errors.AssertionFailedf("no plan to explain")
	}
	e := emitter{ob: ob, md: plan.Metadata()}
	if ob.flags.Verbose && !ob.flags.Deflake.HasAny(DeflakeCost) {
		ob.AddTopLevelField("estimated cost", plan.Cost.String())
	}
	return e.walk(plan.Root)
}

// Format is a shorthand for emitting the plan and building the string.
func Format(plan *xform.Plan, flags Flags) (string, error) {
	ob := NewOutputBuilder(flags)
	if err := Emit(plan, ob); err != nil {
		return "", err
	}
	return ob.BuildString(), nil
}

var nodeNames = [opt.NumOperators]string{
	opt.TableScanOp:      "table scan",
	opt.IndexScanOp:      "index scan",
	opt.PhysValuesOp:     "values",
	opt.FilterOp:         "filter",
	opt.PhysProjectOp:    "render",
	opt.HashJoinOp:       "hash join",
	opt.MergeJoinOp:      "merge join",
	opt.NestedLoopJoinOp: "nested loop join",
	opt.HashGroupByOp:    "group (hash)",
	opt.StreamGroupByOp:  "group (streaming)",
	opt.PhysLimitOp:      "limit",
	opt.AppendOp:         "union all",
	opt.SortOp:           "sort",
	opt.RedistributeOp:   "redistribute",
	opt.GatherOp:         "gather",
	opt.BroadcastOp:      "broadcast",
	opt.SpoolOp:          "spool",
}

var joinTypeNames = map[opt.Operator]string{
	opt.InnerJoinOp: "inner",
	opt.LeftJoinOp:  "left outer",
	opt.SemiJoinOp:  "semi",
	opt.AntiJoinOp:  "anti",
}

type emitter struct {
	ob *OutputBuilder
	md *opt.Metadata
}

func (e *emitter) nodeName(n *xform.PlanNode) (string, error) {
	if !n.Op.IsPhysical() || nodeNames[n.Op] == "" {
		return "", errors.AssertionFailedf("cannot explain operator %s", n.Op)
	}
	return nodeNames[n.Op], nil
}

func (e *emitter) walk(n *xform.PlanNode) error {
	name, err := e.nodeName(n)
	if err != nil {
		return err
	}
	var columns string
	if n.Relational != nil {
		columns = e.cols(opt.ColSetToList(n.Relational.OutputCols))
	}
	e.ob.EnterNode(name, columns, n.Provided.Ordering.Format(e.md))
	if err := e.emitNodeAttributes(n); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := e.walk(c); err != nil {
			return err
		}
	}
	e.ob.LeaveNode()
	return nil
}

func (e *emitter) emitNodeAttributes(n *xform.PlanNode) error {
	ob := e.ob
	if ob.flags.Verbose {
		if !n.Provided.Distribution.Any() {
			ob.AddField("distribution", n.Provided.Distribution.Format(e.md))
		}
		if !ob.flags.Deflake.HasAny(DeflakeCost) {
			ob.AddField("cost", n.Cost.String())
		}
	}
	if !ob.flags.OnlyShape && !ob.flags.Deflake.HasAny(DeflakeRows) && n.Relational != nil {
		ob.AddField("estimated row count", humanizeutil.Count(n.RowCount()))
		if ob.flags.Verbose {
			ob.AddField("estimated row width", humanizeutil.IBytes(int64(n.Relational.Width())))
		}
	}

	switch p := n.Private.(type) {
	case *opt.ScanPrivate:
		tm := e.md.TableMeta(p.Table)
		table := tm.Table.Name()
		if tm.Alias != table {
			table = fmt.Sprintf("%s (%s)", table, tm.Alias)
		}
		if n.Op == opt.IndexScanOp {
			table += "@" + tm.Table.Index(p.Index).Name
		}
		ob.AddField("table", table)

	case *opt.ValuesPrivate:
		ob.AddField("size", fmt.Sprintf("%d column%s, %d row%s",
			len(p.Cols), plural(len(p.Cols)), len(p.Rows), plural(len(p.Rows))))

	case opt.FiltersExpr:
		ob.AddField("filter", e.filters(p))

	case *opt.ProjectPrivate:
		for i := range p.Projections {
			item := &p.Projections[i]
			ob.AddField("render "+e.md.ColumnLabel(item.Col), item.Expr.Format(e.md))
		}

	case *opt.JoinPrivate:
		ob.AddField("type", joinTypeNames[p.JoinType])
		if len(n.Children) != 2 {
			return errors.AssertionFailedf("%s with %d inputs", n.Op, len(n.Children))
		}
		on := p.On
		if n.Op == opt.HashJoinOp || n.Op == opt.MergeJoinOp {
			leftEq, rightEq := memo.ExtractJoinEqualityColumns(
				n.Children[0].Relational.OutputCols, n.Children[1].Relational.OutputCols, on,
			)
			ob.AddField("equality", fmt.Sprintf("%s = %s", e.cols(leftEq), e.cols(rightEq)))
			on = memo.ExtractRemainingJoinFilters(on, leftEq, rightEq)
		}
		if n.Op == opt.MergeJoinOp {
			ob.AddField("left ordering", p.LeftOrdering.Format(e.md))
			ob.AddField("right ordering", p.RightOrdering.Format(e.md))
		}
		if !on.Empty() {
			ob.AddField("pred", e.filters(on))
		}

	case *opt.GroupByPrivate:
		if !p.GroupingCols.Empty() {
			ob.AddField("group by", e.cols(opt.ColSetToList(p.GroupingCols)))
		}
		if len(p.Ordering) > 0 {
			ob.AddField("ordered", p.Ordering.Format(e.md))
		}
		for i := range p.Aggs {
			item := &p.Aggs[i]
			ob.AddField("aggregate "+e.md.ColumnLabel(item.Col), item.Agg.Format(e.md))
		}

	case *opt.LimitPrivate:
		ob.AddField("count", fmt.Sprintf("%d", p.Count))

	case *opt.UnionAllPrivate:
		ob.AddField("left columns", e.cols(p.LeftCols))
		ob.AddField("right columns", e.cols(p.RightCols))

	case *opt.SortPrivate:
		ob.AddField("order", p.Ordering.Format(e.md))

	case *opt.MotionPrivate:
		if len(p.Cols) > 0 {
			ob.AddField("hash", e.cols(p.Cols))
		}
		if len(p.Ordering) > 0 {
			ob.AddField("merge", p.Ordering.Format(e.md))
		}

	case nil:

	default:
		return errors.AssertionFailedf("unhandled private %T", p)
	}
	return nil
}

func (e *emitter) cols(cols opt.ColList) string {
	labels := make([]string, len(cols))
	for i, c := range cols {
		labels[i] = e.md.ColumnLabel(c)
	}
	return "(" + strings.Join(labels, ", ") + ")"
}

func (e *emitter) filters(f opt.FiltersExpr) string {
	var buf bytes.Buffer
	f.Format(&buf, e.md)
	return buf.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
