// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"bytes"

	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/util/treeprinter"
)

// GroupID identifies a memo group. Group ids are assigned sequentially
// starting at 1; GroupID 0 means "no group".
type GroupID int32

// Expr is an immutable relational expression tree. It is the input to the
// optimizer and the output of transformation rules.
//
// A child is either a nested expression or a reference to an existing memo
// group (see GroupRef). Input trees never contain group references; rule
// outputs usually do, since they rebuild only the top of the matched
// expression.
type Expr struct {
	Op       Operator
	Private  Private
	Children []*Expr

	// Group is set for group references only.
	Group GroupID
}

// GroupRef returns a leaf that stands for every expression in a memo group.
func GroupRef(id GroupID) *Expr {
	return &Expr{Group: id}
}

// IsGroupRef returns true if the expression is a reference to a memo group.
func (e *Expr) IsGroupRef() bool {
	return e.Group != 0
}

// Child returns the nth child.
func (e *Expr) Child(nth int) *Expr {
	return e.Children[nth]
}

// String returns a readable representation of the tree, with column ids in
// place of labels.
func (e *Expr) String() string {
	return e.Format(nil)
}

// Format returns a readable representation of the tree. If md is non-nil
// column labels are used.
func (e *Expr) Format(md *Metadata) string {
	tp := treeprinter.New()
	e.format(tp, md)
	return tp.String()
}

func (e *Expr) format(tp treeprinter.Node, md *Metadata) {
	if e.IsGroupRef() {
		tp.Childf("G%d", e.Group)
		return
	}
	var buf bytes.Buffer
	buf.WriteString(e.Op.String())
	if e.Private != nil {
		buf.WriteByte(' ')
		if md != nil {
			e.Private.Format(&buf, md)
		} else {
			buf.WriteString(e.Private.Key())
		}
	}
	n := tp.Child(buf.String())
	for _, c := range e.Children {
		c.format(n, md)
	}
}

func errorf(format string, args ...interface{}) error {
	return opterrors.MalformedInputf(format, args...)
}

// Validate checks that a logical input tree only uses known logical
// operators with the right number of children and payload type, and that
// every table and column it references exists in the metadata. The returned
// error is a MalformedInput error.
func (e *Expr) Validate(md *Metadata) error {
	if e == nil {
		return errorf("nil expression")
	}
	if e.IsGroupRef() {
		return errorf("unexpected group reference G%d in input", e.Group)
	}
	if !e.Op.IsLogical() {
		return errorf("%s is not a logical operator", e.Op)
	}
	if len(e.Children) != e.Op.Arity() {
		return errorf("%s expects %d children, got %d", e.Op, e.Op.Arity(), len(e.Children))
	}
	for _, c := range e.Children {
		if err := c.Validate(md); err != nil {
			return err
		}
	}
	return e.validatePrivate(md)
}

func (e *Expr) validatePrivate(md *Metadata) error {
	checkCols := func(cols ColSet) error {
		return md.CheckColumns(cols)
	}
	switch e.Op {
	case ScanOp:
		p, ok := e.Private.(*ScanPrivate)
		if !ok {
			break
		}
		if !md.HasTable(p.Table) {
			return errorf("unknown table id %d", p.Table)
		}
		if !p.Cols.SubsetOf(md.TableMeta(p.Table).AllCols()) {
			return errorf("scan of %s references columns outside of the table",
				md.TableMeta(p.Table).Alias)
		}
		return nil

	case ValuesOp:
		p, ok := e.Private.(*ValuesPrivate)
		if !ok {
			break
		}
		for _, row := range p.Rows {
			if len(row) != len(p.Cols) {
				return errorf("values row has %d columns, expected %d", len(row), len(p.Cols))
			}
			for _, v := range row {
				if v == nil || v.Op != ConstOp {
					return errorf("values rows must contain constants")
				}
			}
		}
		return checkCols(ColListToSet(p.Cols))

	case SelectOp:
		p, ok := e.Private.(FiltersExpr)
		if !ok {
			break
		}
		return p.validate(md)

	case ProjectOp:
		p, ok := e.Private.(*ProjectPrivate)
		if !ok {
			break
		}
		for i := range p.Projections {
			item := &p.Projections[i]
			if item.Expr == nil || item.Expr.Op.IsAggregate() {
				return errorf("invalid projection for column @%d", item.Col)
			}
			if err := item.Expr.Validate(md); err != nil {
				return err
			}
		}
		return checkCols(p.OutputCols())

	case InnerJoinOp, LeftJoinOp, SemiJoinOp, AntiJoinOp:
		p, ok := e.Private.(*JoinPrivate)
		if !ok {
			break
		}
		if p.JoinType != e.Op {
			return errorf("%s has join type %s", e.Op, p.JoinType)
		}
		return p.On.validate(md)

	case GroupByOp:
		p, ok := e.Private.(*GroupByPrivate)
		if !ok {
			break
		}
		for i := range p.Aggs {
			item := &p.Aggs[i]
			if item.Agg == nil || !item.Agg.Op.IsAggregate() {
				return errorf("invalid aggregate for column @%d", item.Col)
			}
			for _, a := range item.Agg.Args {
				if err := a.Validate(md); err != nil {
					return err
				}
			}
		}
		return checkCols(p.OutputCols())

	case LimitOp:
		p, ok := e.Private.(*LimitPrivate)
		if !ok {
			break
		}
		if p.Count < 0 {
			return errorf("negative limit %d", p.Count)
		}
		return nil

	case UnionAllOp:
		p, ok := e.Private.(*UnionAllPrivate)
		if !ok {
			break
		}
		if len(p.LeftCols) != len(p.OutCols) || len(p.RightCols) != len(p.OutCols) {
			return errorf("union all column lists have different lengths")
		}
		return checkCols(ColListToSet(p.OutCols))
	}
	return errorf("%s has invalid payload %T", e.Op, e.Private)
}
