// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/util/humanizeutil"
	"github.com/cockroachdb/cascades/pkg/util/treeprinter"
)

// PlanNode is an operator of a physical plan. Its children are the nodes
// that produce its inputs.
type PlanNode struct {
	Op       opt.Operator
	Private  opt.Private
	Children []*PlanNode

	// Group is the memo group whose rows the node produces. It is zero for
	// nodes that were not extracted from a memo.
	Group memo.GroupID

	// Relational are the logical properties of the node's output.
	Relational *props.Relational

	// Required are the properties that the parent required of the node, and
	// Provided those that the node's output has. Provided always satisfies
	// Required.
	Required physical.Required
	Provided physical.Provided

	// Cost is the cost of the subtree rooted at the node.
	Cost memo.Cost
}

// RowCount returns the estimated number of rows produced by the node.
func (n *PlanNode) RowCount() float64 {
	return n.Relational.RowCount()
}

func (n *PlanNode) inputs() []*props.Relational {
	inputs := make([]*props.Relational, len(n.Children))
	for i, c := range n.Children {
		inputs[i] = c.Relational
	}
	return inputs
}

// Walk calls fn for the node and then for each of its descendants, depth
// first. Walk stops descending below a node for which fn returns false.
func (n *PlanNode) Walk(fn func(n *PlanNode) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Plan is the result of an optimization: the lowest cost physical plan found
// for the input expression and the properties required of its output.
type Plan struct {
	Root *PlanNode
	Cost memo.Cost

	md *opt.Metadata
}

// Metadata returns the metadata of the plan's columns and tables.
func (p *Plan) Metadata() *opt.Metadata {
	return p.md
}

// String returns the plan formatted with every property shown.
func (p *Plan) String() string {
	return p.FormatString(memo.ExprFmtShowAll)
}

// FormatString returns the plan formatted as a tree, with one node per line
// followed by the properties selected by the flags.
func (p *Plan) FormatString(flags memo.ExprFmtFlags) string {
	tp := treeprinter.New()
	p.format(tp, p.Root, flags)
	return tp.String()
}

func (p *Plan) format(tp treeprinter.Node, n *PlanNode, flags memo.ExprFmtFlags) {
	var buf bytes.Buffer
	buf.WriteString(n.Op.String())
	if !flags.HasFlags(memo.ExprFmtHidePrivates) && n.Private != nil {
		buf.WriteByte(' ')
		memo.FormatPrivate(&buf, n.Op, n.Private, p.md)
	}
	child := tp.Child(buf.String())
	if !flags.HasFlags(memo.ExprFmtHideStats) {
		child.Childf("rows: %s", humanizeutil.Count(n.RowCount()))
	}
	if !flags.HasFlags(memo.ExprFmtHideCost) {
		child.Childf("cost: %s", n.Cost)
	}
	if !flags.HasFlags(memo.ExprFmtHideProvided) {
		if !n.Required.Any() {
			child.Childf("required: %s", n.Required.Format(p.md))
		}
		child.Childf("provided: %s", n.Provided.Format(p.md))
	}
	for _, c := range n.Children {
		p.format(child, c, flags)
	}
}

// extractPlan builds the plan from the winners of the root group and of the
// groups below it. The winner of a group for some properties must exist and
// be feasible, or there is no plan for them.
func (o *Optimizer) extractPlan() *Plan {
	root := o.extractNode(o.mem.RootGroup(), o.mem.RootRequired())
	return &Plan{Root: root, Cost: root.Cost, md: o.mem.Metadata()}
}

func (o *Optimizer) extractNode(group memo.GroupID, required memo.RequiredID) *PlanNode {
	g := o.mem.Group(group)
	w, ok := g.Winner(required)
	if !ok || !w.Feasible() {
		panic(opterrors.NewNoFeasiblePlanError(
			int32(g.ID()), o.mem.LookupRequired(required).Format(o.mem.Metadata())))
	}

	n := &PlanNode{
		Op:         w.Op(),
		Private:    w.Private(),
		Group:      g.ID(),
		Relational: g.Relational(),
		Required:   *o.mem.LookupRequired(required),
		Provided:   w.Provided,
		Cost:       w.Cost,
	}
	if w.IsEnforcer() {
		n.Children = []*PlanNode{o.extractNode(g.ID(), w.ChildRequired[0])}
	} else {
		n.Children = make([]*PlanNode, w.Expr.ChildCount())
		for i := range n.Children {
			n.Children[i] = o.extractNode(w.Expr.Child(i), w.ChildRequired[i])
		}
	}
	checkPlanNode(n)
	return n
}

// checkPlanNode verifies that the node and its children provide the
// properties required of them, and that the cost of the node covers the
// costs of its children.
func checkPlanNode(n *PlanNode) {
	if !physical.Satisfies(&n.Provided, &n.Required) {
		panic(opterrors.RuleContractViolationf(
			"%s provides %s but %s is required", n.Op, &n.Provided, &n.Required))
	}
	var childCost memo.Cost
	for _, c := range n.Children {
		if !physical.Satisfies(&c.Provided, &c.Required) {
			panic(opterrors.RuleContractViolationf(
				"child %s of %s provides %s but %s is required", c.Op, n.Op, &c.Provided, &c.Required))
		}
		childCost.Add(c.Cost)
	}
	if !childCost.Less(n.Cost) {
		panic(opterrors.RuleContractViolationf(
			"%s costs %s, no more than its children (%s)", n.Op, n.Cost, childCost))
	}
}

// String is used in test failures.
func (n *PlanNode) String() string {
	return fmt.Sprintf("%s cost=%s", n.Op, n.Cost)
}
