// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"math"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optconfig"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/errors"
)

// CostInput describes a physical operator to be costed: a member of a memo
// group, or an enforcer placed on top of one.
type CostInput struct {
	Op      opt.Operator
	Private opt.Private

	// Relational are the logical properties of the operator's output.
	Relational *props.Relational

	// Inputs are the logical properties of the children.
	Inputs []*props.Relational

	// Provided are the physical properties of the operator's output, and
	// InputProvided those of each child.
	Provided      *physical.Provided
	InputProvided []physical.Provided
}

// Coster is used by the optimizer to assign a cost to a candidate
// expression. The optimizer adds the costs of the children's winners, so the
// coster only returns the cost of the operator itself. It must be positive,
// so that the cost of a plan always grows with every operator in it.
type Coster interface {
	// ComputeCost returns the estimated cost of the operator.
	ComputeCost(in *CostInput) memo.Cost
}

// coster encapsulates the default cost model for the optimizer. The cost of
// an operator is an estimate of the time it takes to run, in abstract units.
// Work done on every segment at once is divided by the number of segments.
type coster struct {
	weights     optconfig.CostWeights
	numSegments float64
}

var _ Coster = &coster{}

// MakeDefaultCoster creates an instance of the default coster.
func MakeDefaultCoster(cfg *optconfig.Config) Coster {
	return &coster{weights: cfg.CostWeights, numSegments: float64(cfg.NumSegments)}
}

// ComputeCost is part of the Coster interface.
func (c *coster) ComputeCost(in *CostInput) memo.Cost {
	var cost float64
	switch in.Op {
	case opt.TableScanOp:
		cost = c.computeScanCost(in, c.weights.SeqIOCost)

	case opt.IndexScanOp:
		cost = c.computeScanCost(in, c.weights.IndexIOCost)

	case opt.PhysValuesOp:
		cost = in.Relational.RowCount() * c.weights.CPUTupleCost

	case opt.FilterOp:
		cost = c.computeFilterCost(in)

	case opt.PhysProjectOp:
		cost = c.computeProjectCost(in)

	case opt.HashJoinOp:
		cost = c.computeHashJoinCost(in)

	case opt.MergeJoinOp:
		cost = c.computeMergeJoinCost(in)

	case opt.NestedLoopJoinOp:
		cost = c.computeNestedLoopJoinCost(in)

	case opt.HashGroupByOp, opt.StreamGroupByOp:
		cost = c.computeGroupByCost(in)

	case opt.PhysLimitOp:
		cost = c.computeLimitCost(in)

	case opt.AppendOp:
		cost = (in.Inputs[0].RowCount()/c.parallelism(in.InputProvided[0].Distribution) +
			in.Inputs[1].RowCount()/c.parallelism(in.InputProvided[1].Distribution)) *
			c.weights.CPUTupleCost

	case opt.SortOp:
		cost = c.computeSortCost(in)

	case opt.RedistributeOp, opt.GatherOp, opt.BroadcastOp:
		cost = c.computeMotionCost(in)

	case opt.SpoolOp:
		rows := in.Relational.RowCount()
		cost = rows*in.Relational.Width()*c.weights.SpoolCost/c.parallelism(in.Provided.Distribution) +
			rows*c.weights.CPUTupleCost

	default:
		panic(errors.AssertionFailedf("no cost model for %s", in.Op))
	}

	// Every operator has a fixed startup cost, so that the cost of a plan
	// strictly increases with each operator.
	cost += c.weights.CPUTupleCost
	return memo.Cost{C: cost}
}

// parallelism returns the number of segments that share the work on rows
// with the given distribution. Replicated rows are processed in full on
// every segment.
func (c *coster) parallelism(d physical.Distribution) float64 {
	switch d.Kind {
	case physical.HashedDistribution, physical.RandomDistribution:
		return c.numSegments
	}
	return 1
}

func (c *coster) computeScanCost(in *CostInput, ioCost float64) float64 {
	rows := in.Relational.RowCount()
	cost := rows*in.Relational.Width()*ioCost + rows*c.weights.CPUTupleCost
	return cost / c.parallelism(in.Provided.Distribution)
}

func (c *coster) computeFilterCost(in *CostInput) float64 {
	filters := in.Private.(opt.FiltersExpr)
	inputRows := in.Inputs[0].RowCount()
	cost := inputRows*float64(len(filters))*c.weights.CPUPredicateCost +
		in.Relational.RowCount()*c.weights.CPUTupleCost
	return cost / c.parallelism(in.InputProvided[0].Distribution)
}

func (c *coster) computeProjectCost(in *CostInput) float64 {
	private := in.Private.(*opt.ProjectPrivate)
	rows := in.Relational.RowCount()
	cost := rows*float64(len(private.Projections))*c.weights.CPUPredicateCost +
		rows*c.weights.CPUTupleCost
	return cost / c.parallelism(in.InputProvided[0].Distribution)
}

// computeJoinOutputCost returns the cost of evaluating the join conditions
// that are not handled by the join algorithm, and of emitting output rows.
func (c *coster) computeJoinOutputCost(in *CostInput, candidateRows float64) float64 {
	private := in.Private.(*opt.JoinPrivate)
	leftEq, rightEq := memo.ExtractJoinEqualityColumns(
		in.Inputs[0].OutputCols, in.Inputs[1].OutputCols, private.On)
	remaining := memo.ExtractRemainingJoinFilters(private.On, leftEq, rightEq)
	return candidateRows*float64(len(remaining))*c.weights.CPUPredicateCost +
		in.Relational.RowCount()*c.weights.CPUTupleCost
}

func (c *coster) computeHashJoinCost(in *CostInput) float64 {
	leftRows, rightRows := in.Inputs[0].RowCount(), in.Inputs[1].RowCount()
	leftPar := c.parallelism(in.InputProvided[0].Distribution)
	rightPar := c.parallelism(in.InputProvided[1].Distribution)

	// The right input is built into a hash table, and the left input probes
	// it. A replicated right input is built in full on every segment.
	cost := rightRows*c.weights.HashBuildCost/rightPar + leftRows*c.weights.CPUTupleCost/leftPar
	return cost + c.computeJoinOutputCost(in, in.Relational.RowCount())/leftPar
}

func (c *coster) computeMergeJoinCost(in *CostInput) float64 {
	leftRows, rightRows := in.Inputs[0].RowCount(), in.Inputs[1].RowCount()
	leftPar := c.parallelism(in.InputProvided[0].Distribution)
	rightPar := c.parallelism(in.InputProvided[1].Distribution)
	cost := leftRows*c.weights.CPUTupleCost/leftPar + rightRows*c.weights.CPUTupleCost/rightPar
	return cost + c.computeJoinOutputCost(in, in.Relational.RowCount())/leftPar
}

func (c *coster) computeNestedLoopJoinCost(in *CostInput) float64 {
	private := in.Private.(*opt.JoinPrivate)
	leftRows, rightRows := in.Inputs[0].RowCount(), in.Inputs[1].RowCount()
	leftPar := c.parallelism(in.InputProvided[0].Distribution)

	// The right input is rewound for every left row, and every pair of rows
	// is checked against the join condition.
	pairs := leftRows * rightRows
	if in.InputProvided[1].Distribution.Kind != physical.ReplicatedDistribution &&
		in.InputProvided[0].Distribution.Kind != physical.SingletonDistribution {
		// Rows of the right input are spread over the segments.
		pairs /= c.parallelism(in.InputProvided[1].Distribution)
	}
	cost := pairs*c.weights.CPUTupleCost +
		pairs*float64(len(private.On))*c.weights.CPUPredicateCost +
		in.Relational.RowCount()*c.weights.CPUTupleCost
	return cost / leftPar
}

func (c *coster) computeGroupByCost(in *CostInput) float64 {
	private := in.Private.(*opt.GroupByPrivate)
	inputRows := in.Inputs[0].RowCount()
	perRow := c.weights.CPUTupleCost
	if in.Op == opt.HashGroupByOp {
		perRow = c.weights.HashBuildCost
	}
	cost := inputRows*perRow +
		inputRows*float64(len(private.Aggs))*c.weights.CPUPredicateCost +
		in.Relational.RowCount()*c.weights.CPUTupleCost
	return cost / c.parallelism(in.InputProvided[0].Distribution)
}

func (c *coster) computeLimitCost(in *CostInput) float64 {
	private := in.Private.(*opt.LimitPrivate)
	rows := math.Min(float64(private.Count), in.Inputs[0].RowCount())
	return rows * c.weights.CPUTupleCost
}

func (c *coster) computeSortCost(in *CostInput) float64 {
	par := c.parallelism(in.Provided.Distribution)
	rows := in.Relational.RowCount() / par
	if rows < 2 {
		rows = 2
	}
	return rows*math.Log2(rows)*c.weights.SortCost + rows*c.weights.CPUTupleCost
}

func (c *coster) computeMotionCost(in *CostInput) float64 {
	rows := in.Relational.RowCount()
	bytes := rows * in.Relational.Width()
	inputPar := c.parallelism(in.InputProvided[0].Distribution)
	switch in.Op {
	case opt.RedistributeOp:
		// Every segment sends its rows to their target segments.
		return bytes * c.weights.NetworkCost / inputPar

	case opt.BroadcastOp:
		// Every row is sent to every segment.
		return bytes * c.numSegments * c.weights.NetworkCost / inputPar

	default:
		// The coordinator receives every row, and merges the sorted streams
		// when an ordering is preserved.
		cost := bytes * c.weights.NetworkCost
		if private := in.Private.(*opt.MotionPrivate); len(private.Ordering) > 0 {
			cost += rows * math.Log2(math.Max(c.numSegments, 2)) * c.weights.SortCost
		}
		return cost
	}
}
