// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "fmt"

// Operator describes the type of operation that a relational expression
// performs. Logical operators describe what is computed, physical operators
// describe an executable algorithm, and enforcers are physical operators that
// exist only to establish a physical property (ordering, distribution or
// rewindability) on their input.
type Operator uint16

const (
	// UnknownOp is not a valid operator.
	UnknownOp Operator = iota

	// ------------------------------------------------------------
	// Logical operators
	// ------------------------------------------------------------

	// ScanOp reads the columns of a base table.
	ScanOp
	// ValuesOp returns a constant set of rows.
	ValuesOp
	// SelectOp filters its input with a conjunction of predicates.
	SelectOp
	// ProjectOp passes through a subset of input columns and computes new ones.
	ProjectOp
	// InnerJoinOp, LeftJoinOp, SemiJoinOp and AntiJoinOp combine two inputs.
	InnerJoinOp
	LeftJoinOp
	SemiJoinOp
	AntiJoinOp
	// GroupByOp groups its input and computes aggregates. With no grouping
	// columns it is a scalar aggregation returning exactly one row.
	GroupByOp
	// LimitOp returns at most Count rows.
	LimitOp
	// UnionAllOp concatenates two inputs with positionally matching columns.
	UnionAllOp

	// ------------------------------------------------------------
	// Physical operators
	// ------------------------------------------------------------

	TableScanOp
	IndexScanOp
	PhysValuesOp
	FilterOp
	PhysProjectOp
	HashJoinOp
	MergeJoinOp
	NestedLoopJoinOp
	HashGroupByOp
	StreamGroupByOp
	PhysLimitOp
	AppendOp

	// ------------------------------------------------------------
	// Enforcers
	// ------------------------------------------------------------

	// SortOp orders its input.
	SortOp
	// RedistributeOp hash partitions its input across segments.
	RedistributeOp
	// GatherOp collects its input onto a single segment, merging sorted
	// streams so that an input ordering is preserved.
	GatherOp
	// BroadcastOp replicates its input to every segment.
	BroadcastOp
	// SpoolOp materializes its input so that it can be re-read.
	SpoolOp

	// NumOperators tracks the total count of operators.
	NumOperators
)

// OperatorClass partitions the operators.
type OperatorClass uint8

const (
	// LogicalClass operators appear in the input tree and are rewritten by
	// exploration rules.
	LogicalClass OperatorClass = iota + 1
	// PhysicalClass operators are produced by implementation rules.
	PhysicalClass
	// EnforcerClass operators are added during optimization to satisfy a
	// required physical property.
	EnforcerClass
)

// operatorInfo stores static information about an operator.
type operatorInfo struct {
	// name of the operator, used when printing expressions.
	name string
	// class of the operator.
	class OperatorClass
	// arity is the number of relational children.
	arity int
}

var operatorTab = [NumOperators]operatorInfo{
	UnknownOp: {name: "unknown"},

	ScanOp:      {name: "scan", class: LogicalClass, arity: 0},
	ValuesOp:    {name: "values", class: LogicalClass, arity: 0},
	SelectOp:    {name: "select", class: LogicalClass, arity: 1},
	ProjectOp:   {name: "project", class: LogicalClass, arity: 1},
	InnerJoinOp: {name: "inner-join", class: LogicalClass, arity: 2},
	LeftJoinOp:  {name: "left-join", class: LogicalClass, arity: 2},
	SemiJoinOp:  {name: "semi-join", class: LogicalClass, arity: 2},
	AntiJoinOp:  {name: "anti-join", class: LogicalClass, arity: 2},
	GroupByOp:   {name: "group-by", class: LogicalClass, arity: 1},
	LimitOp:     {name: "limit", class: LogicalClass, arity: 1},
	UnionAllOp:  {name: "union-all", class: LogicalClass, arity: 2},

	TableScanOp:      {name: "table-scan", class: PhysicalClass, arity: 0},
	IndexScanOp:      {name: "index-scan", class: PhysicalClass, arity: 0},
	PhysValuesOp:     {name: "values-scan", class: PhysicalClass, arity: 0},
	FilterOp:         {name: "filter", class: PhysicalClass, arity: 1},
	PhysProjectOp:    {name: "compute", class: PhysicalClass, arity: 1},
	HashJoinOp:       {name: "hash-join", class: PhysicalClass, arity: 2},
	MergeJoinOp:      {name: "merge-join", class: PhysicalClass, arity: 2},
	NestedLoopJoinOp: {name: "nested-loop-join", class: PhysicalClass, arity: 2},
	HashGroupByOp:    {name: "hash-group-by", class: PhysicalClass, arity: 1},
	StreamGroupByOp:  {name: "stream-group-by", class: PhysicalClass, arity: 1},
	PhysLimitOp:      {name: "limit-rows", class: PhysicalClass, arity: 1},
	AppendOp:         {name: "append", class: PhysicalClass, arity: 2},

	SortOp:         {name: "sort", class: EnforcerClass, arity: 1},
	RedistributeOp: {name: "redistribute", class: EnforcerClass, arity: 1},
	GatherOp:       {name: "gather", class: EnforcerClass, arity: 1},
	BroadcastOp:    {name: "broadcast", class: EnforcerClass, arity: 1},
	SpoolOp:        {name: "spool", class: EnforcerClass, arity: 1},
}

// operatorNames maps both the printed name and the Go-style name of every
// operator to its value, e.g. "inner-join" and "InnerJoin".
var operatorNames map[string]Operator

func init() {
	goNames := [NumOperators]string{
		ScanOp: "Scan", ValuesOp: "Values", SelectOp: "Select", ProjectOp: "Project",
		InnerJoinOp: "InnerJoin", LeftJoinOp: "LeftJoin", SemiJoinOp: "SemiJoin",
		AntiJoinOp: "AntiJoin", GroupByOp: "GroupBy", LimitOp: "Limit", UnionAllOp: "UnionAll",
		TableScanOp: "TableScan", IndexScanOp: "IndexScan", PhysValuesOp: "PhysValues",
		FilterOp: "Filter", PhysProjectOp: "PhysProject", HashJoinOp: "HashJoin",
		MergeJoinOp: "MergeJoin", NestedLoopJoinOp: "NestedLoopJoin",
		HashGroupByOp: "HashGroupBy", StreamGroupByOp: "StreamGroupBy",
		PhysLimitOp: "PhysLimit", AppendOp: "Append",
		SortOp: "Sort", RedistributeOp: "Redistribute", GatherOp: "Gather",
		BroadcastOp: "Broadcast", SpoolOp: "Spool",
	}
	operatorNames = make(map[string]Operator, 2*NumOperators)
	for op := ScanOp; op < NumOperators; op++ {
		operatorNames[operatorTab[op].name] = op
		operatorNames[goNames[op]] = op
	}
}

func (op Operator) String() string {
	if op >= NumOperators {
		return fmt.Sprintf("operator(%d)", op)
	}
	return operatorTab[op].name
}

// OperatorFromString returns the operator with the given name, accepting
// either the printed form ("inner-join") or the Go form ("InnerJoin").
func OperatorFromString(name string) (Operator, bool) {
	op, ok := operatorNames[name]
	return op, ok
}

// Class returns the class of the operator.
func (op Operator) Class() OperatorClass {
	return operatorTab[op].class
}

// Arity returns the number of relational children of the operator.
func (op Operator) Arity() int {
	return operatorTab[op].arity
}

// IsValid returns true if op is a known operator.
func (op Operator) IsValid() bool {
	return op > UnknownOp && op < NumOperators
}

// IsLogical returns true if the operator is a logical operator.
func (op Operator) IsLogical() bool {
	return op.IsValid() && operatorTab[op].class == LogicalClass
}

// IsPhysical returns true for physical operators, including enforcers.
func (op Operator) IsPhysical() bool {
	return op.IsValid() && operatorTab[op].class != LogicalClass
}

// IsEnforcer returns true if the operator is an enforcer.
func (op Operator) IsEnforcer() bool {
	return op.IsValid() && operatorTab[op].class == EnforcerClass
}

// IsJoin returns true for logical join operators.
func (op Operator) IsJoin() bool {
	switch op {
	case InnerJoinOp, LeftJoinOp, SemiJoinOp, AntiJoinOp:
		return true
	}
	return false
}

// IsPhysicalJoin returns true for physical join operators.
func (op Operator) IsPhysicalJoin() bool {
	switch op {
	case HashJoinOp, MergeJoinOp, NestedLoopJoinOp:
		return true
	}
	return false
}
