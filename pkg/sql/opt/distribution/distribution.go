// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package distribution derives the placement of rows across segments for
// physical operators: which placements an operator can require of its
// children, and which placement its output has as a result.
package distribution

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/errors"
)

// ChildAlternatives returns the alternative ways in which the expression can
// place the rows of its children. Each alternative has one distribution per
// child. The optimizer costs every alternative, and keeps those whose output
// distribution satisfies the required one. Leaf operators return a single
// empty alternative.
//
// The alternatives are returned in a fixed order, so that the search is
// deterministic.
func ChildAlternatives(
	mem *memo.Memo, expr *memo.GroupExpr, required physical.Distribution,
) [][]physical.Distribution {
	alts := funcMap[expr.Op()].childAlternatives(mem, expr, required)
	for _, alt := range alts {
		if len(alt) != expr.ChildCount() {
			panic(errors.AssertionFailedf(
				"%s: distribution alternative has %d children, expected %d",
				expr.Op(), len(alt), expr.ChildCount()))
		}
	}
	return alts
}

// BuildProvided returns the distribution of the expression's output, given
// the distributions provided by its children.
func BuildProvided(
	mem *memo.Memo, expr *memo.GroupExpr, childProvided []physical.Distribution,
) physical.Distribution {
	provided := funcMap[expr.Op()].buildProvided(mem, expr, childProvided)
	return provided.Project(mem.Group(expr.Group()).Relational().OutputCols)
}

type funcs struct {
	childAlternatives func(
		mem *memo.Memo, expr *memo.GroupExpr, required physical.Distribution,
	) [][]physical.Distribution

	buildProvided func(
		mem *memo.Memo, expr *memo.GroupExpr, childProvided []physical.Distribution,
	) physical.Distribution
}

var funcMap [opt.NumOperators]funcs

func init() {
	for op := opt.Operator(0); op < opt.NumOperators; op++ {
		funcMap[op] = funcs{
			childAlternatives: unsupportedAlternatives,
			buildProvided:     unsupportedProvided,
		}
	}
	for _, op := range []opt.Operator{opt.TableScanOp, opt.IndexScanOp} {
		funcMap[op] = funcs{
			childAlternatives: leafAlternatives,
			buildProvided:     scanBuildProvided,
		}
	}
	funcMap[opt.PhysValuesOp] = funcs{
		childAlternatives: leafAlternatives,
		buildProvided:     singletonProvided,
	}
	funcMap[opt.FilterOp] = funcs{
		childAlternatives: passThroughAlternatives,
		buildProvided:     firstChildProvided,
	}
	funcMap[opt.PhysProjectOp] = funcs{
		childAlternatives: projectAlternatives,
		buildProvided:     firstChildProvided,
	}
	funcMap[opt.PhysLimitOp] = funcs{
		childAlternatives: singletonAlternatives,
		buildProvided:     singletonProvided,
	}
	for _, op := range []opt.Operator{opt.HashJoinOp, opt.MergeJoinOp, opt.NestedLoopJoinOp} {
		funcMap[op] = funcs{
			childAlternatives: joinAlternatives,
			buildProvided:     joinBuildProvided,
		}
	}
	for _, op := range []opt.Operator{opt.HashGroupByOp, opt.StreamGroupByOp} {
		funcMap[op] = funcs{
			childAlternatives: groupByAlternatives,
			buildProvided:     firstChildProvided,
		}
	}
	funcMap[opt.AppendOp] = funcs{
		childAlternatives: appendAlternatives,
		buildProvided:     appendBuildProvided,
	}
}

func unsupportedAlternatives(
	_ *memo.Memo, expr *memo.GroupExpr, _ physical.Distribution,
) [][]physical.Distribution {
	panic(errors.AssertionFailedf("no distribution alternatives for %s", expr.Op()))
}

func unsupportedProvided(
	_ *memo.Memo, expr *memo.GroupExpr, _ []physical.Distribution,
) physical.Distribution {
	panic(errors.AssertionFailedf("no provided distribution for %s", expr.Op()))
}

func leafAlternatives(*memo.Memo, *memo.GroupExpr, physical.Distribution) [][]physical.Distribution {
	return [][]physical.Distribution{{}}
}

func passThroughAlternatives(
	_ *memo.Memo, _ *memo.GroupExpr, required physical.Distribution,
) [][]physical.Distribution {
	return [][]physical.Distribution{{required}}
}

func singletonAlternatives(
	*memo.Memo, *memo.GroupExpr, physical.Distribution,
) [][]physical.Distribution {
	return [][]physical.Distribution{{physical.Singleton}}
}

func singletonProvided(*memo.Memo, *memo.GroupExpr, []physical.Distribution) physical.Distribution {
	return physical.Singleton
}

func firstChildProvided(
	_ *memo.Memo, _ *memo.GroupExpr, childProvided []physical.Distribution,
) physical.Distribution {
	return childProvided[0]
}

func scanBuildProvided(
	mem *memo.Memo, expr *memo.GroupExpr, _ []physical.Distribution,
) physical.Distribution {
	private := expr.Private().(*opt.ScanPrivate)
	return physical.TableDistribution(mem.Metadata().TableMeta(private.Table), private.Cols)
}

// projectAlternatives passes the requirement through, unless the projection
// computes one of the required hash columns. In that case the input is not
// constrained, and a motion above the projection places the rows.
func projectAlternatives(
	_ *memo.Memo, expr *memo.GroupExpr, required physical.Distribution,
) [][]physical.Distribution {
	private := expr.Private().(*opt.ProjectPrivate)
	if required.Kind == physical.HashedDistribution && !required.ColSet().SubsetOf(private.Passthrough) {
		return [][]physical.Distribution{{{}}}
	}
	return [][]physical.Distribution{{required}}
}
