// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
)

// ScalarOperator is the operator of a scalar expression. Scalar expressions
// are never memoized on their own; they live inside the private payload of a
// relational expression.
type ScalarOperator uint8

const (
	// UnknownScalarOp is not a valid scalar operator.
	UnknownScalarOp ScalarOperator = iota

	// VariableOp is a reference to a column.
	VariableOp
	// ConstOp is a constant: int64, float64, string, bool or nil for NULL.
	ConstOp

	EqOp
	NeOp
	LtOp
	LeOp
	GtOp
	GeOp

	AndOp
	OrOp
	NotOp
	IsNullOp

	PlusOp
	MinusOp
	MultOp
	DivOp

	// Aggregate functions.
	CountOp
	CountRowsOp
	SumOp
	MinOp
	MaxOp
	AvgOp

	numScalarOperators
)

type scalarOpInfo struct {
	name string
	// sym is the infix symbol for binary operators, or empty.
	sym string
	// arity is the number of arguments, or -1 for variadic.
	arity int
	agg   bool
}

var scalarOpTab = [numScalarOperators]scalarOpInfo{
	UnknownScalarOp: {name: "unknown"},
	VariableOp:      {name: "var"},
	ConstOp:         {name: "const"},
	EqOp:            {name: "eq", sym: "=", arity: 2},
	NeOp:            {name: "ne", sym: "!=", arity: 2},
	LtOp:            {name: "lt", sym: "<", arity: 2},
	LeOp:            {name: "le", sym: "<=", arity: 2},
	GtOp:            {name: "gt", sym: ">", arity: 2},
	GeOp:            {name: "ge", sym: ">=", arity: 2},
	AndOp:           {name: "and", sym: "AND", arity: -1},
	OrOp:            {name: "or", sym: "OR", arity: -1},
	NotOp:           {name: "not", arity: 1},
	IsNullOp:        {name: "is-null", arity: 1},
	PlusOp:          {name: "plus", sym: "+", arity: 2},
	MinusOp:         {name: "minus", sym: "-", arity: 2},
	MultOp:          {name: "mult", sym: "*", arity: 2},
	DivOp:           {name: "div", sym: "/", arity: 2},
	CountOp:         {name: "count", arity: 1, agg: true},
	CountRowsOp:     {name: "count_rows", arity: 0, agg: true},
	SumOp:           {name: "sum", arity: 1, agg: true},
	MinOp:           {name: "min", arity: 1, agg: true},
	MaxOp:           {name: "max", arity: 1, agg: true},
	AvgOp:           {name: "avg", arity: 1, agg: true},
}

func (op ScalarOperator) String() string {
	if op >= numScalarOperators {
		return fmt.Sprintf("scalar(%d)", op)
	}
	return scalarOpTab[op].name
}

// IsAggregate returns true for aggregate functions.
func (op ScalarOperator) IsAggregate() bool {
	return op < numScalarOperators && scalarOpTab[op].agg
}

// IsComparison returns true for the six comparison operators.
func (op ScalarOperator) IsComparison() bool {
	return op >= EqOp && op <= GeOp
}

// ScalarOperatorFromString looks up a scalar operator by its name. Names are
// case-insensitive, so both "eq" and "Eq" are accepted.
func ScalarOperatorFromString(name string) (ScalarOperator, bool) {
	name = strings.ToLower(name)
	if name == "isnull" {
		return IsNullOp, true
	}
	if name == "countrows" {
		return CountRowsOp, true
	}
	for op := VariableOp; op < numScalarOperators; op++ {
		if scalarOpTab[op].name == name {
			return op, true
		}
	}
	return UnknownScalarOp, false
}

// ScalarExpr is an immutable scalar expression tree.
type ScalarExpr struct {
	Op ScalarOperator

	// Col is the referenced column of a VariableOp.
	Col ColumnID

	// Value is the value of a ConstOp.
	Value interface{}

	Args []*ScalarExpr
}

// Var returns a reference to the given column.
func Var(col ColumnID) *ScalarExpr {
	return &ScalarExpr{Op: VariableOp, Col: col}
}

// Const returns a constant. The value must be an int64, float64, string, bool
// or nil.
func Const(v interface{}) *ScalarExpr {
	switch t := v.(type) {
	case int:
		v = int64(t)
	case int64, float64, string, bool, nil:
	default:
		panic(fmt.Sprintf("unsupported constant type %T", v))
	}
	return &ScalarExpr{Op: ConstOp, Value: v}
}

// MakeScalar constructs an expression with the given operator and arguments.
func MakeScalar(op ScalarOperator, args ...*ScalarExpr) *ScalarExpr {
	return &ScalarExpr{Op: op, Args: args}
}

// Eq returns the equality comparison of two expressions.
func Eq(left, right *ScalarExpr) *ScalarExpr {
	return MakeScalar(EqOp, left, right)
}

// IsNullConst returns true if the expression is the NULL constant.
func (e *ScalarExpr) IsNullConst() bool {
	return e.Op == ConstOp && e.Value == nil
}

// Key returns a canonical representation of the expression. Two expressions
// have the same key if and only if they are structurally identical.
func (e *ScalarExpr) Key() string {
	var buf bytes.Buffer
	e.writeKey(&buf)
	return buf.String()
}

func (e *ScalarExpr) writeKey(buf *bytes.Buffer) {
	switch e.Op {
	case VariableOp:
		fmt.Fprintf(buf, "@%d", e.Col)
	case ConstOp:
		buf.WriteString(formatConst(e.Value))
	default:
		buf.WriteByte('(')
		buf.WriteString(e.Op.String())
		for _, a := range e.Args {
			buf.WriteByte(' ')
			a.writeKey(buf)
		}
		buf.WriteByte(')')
	}
}

func formatConst(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// Format returns a readable representation of the expression that uses
// column labels from the metadata.
func (e *ScalarExpr) Format(md *Metadata) string {
	var buf bytes.Buffer
	e.format(&buf, md, false)
	return buf.String()
}

func (e *ScalarExpr) format(buf *bytes.Buffer, md *Metadata, nested bool) {
	info := &scalarOpTab[e.Op]
	switch {
	case e.Op == VariableOp:
		if md != nil {
			buf.WriteString(md.ColumnLabel(e.Col))
		} else {
			fmt.Fprintf(buf, "@%d", e.Col)
		}
	case e.Op == ConstOp:
		buf.WriteString(formatConst(e.Value))
	case info.sym != "":
		if nested {
			buf.WriteByte('(')
		}
		for i, a := range e.Args {
			if i > 0 {
				fmt.Fprintf(buf, " %s ", info.sym)
			}
			a.format(buf, md, true)
		}
		if nested {
			buf.WriteByte(')')
		}
	case e.Op == NotOp:
		buf.WriteString("NOT ")
		e.Args[0].format(buf, md, true)
	case e.Op == IsNullOp:
		e.Args[0].format(buf, md, true)
		buf.WriteString(" IS NULL")
	default:
		buf.WriteString(info.name)
		buf.WriteByte('(')
		for i, a := range e.Args {
			if i > 0 {
				buf.WriteString(", ")
			}
			a.format(buf, md, false)
		}
		buf.WriteByte(')')
	}
}

// OuterCols returns the set of columns referenced by the expression.
func (e *ScalarExpr) OuterCols() ColSet {
	var cols ColSet
	e.addOuterCols(&cols)
	return cols
}

func (e *ScalarExpr) addOuterCols(cols *ColSet) {
	if e.Op == VariableOp {
		cols.Add(int(e.Col))
		return
	}
	for _, a := range e.Args {
		a.addOuterCols(cols)
	}
}

// Type returns the type of the value computed by the expression.
func (e *ScalarExpr) Type(md *Metadata) cat.ColumnType {
	switch e.Op {
	case VariableOp:
		return md.ColumnMeta(e.Col).Type
	case ConstOp:
		switch e.Value.(type) {
		case int64:
			return cat.IntType
		case float64:
			return cat.FloatType
		case string:
			return cat.StringType
		case bool:
			return cat.BoolType
		}
		return cat.IntType
	case PlusOp, MinusOp, MultOp, DivOp:
		for _, a := range e.Args {
			if a.Type(md) == cat.FloatType {
				return cat.FloatType
			}
		}
		if e.Op == DivOp {
			return cat.FloatType
		}
		return cat.IntType
	case CountOp, CountRowsOp:
		return cat.IntType
	case AvgOp:
		return cat.FloatType
	case SumOp, MinOp, MaxOp:
		return e.Args[0].Type(md)
	}
	return cat.BoolType
}

// EqualityColumns returns the two columns of a column = column comparison.
func (e *ScalarExpr) EqualityColumns() (left, right ColumnID, ok bool) {
	if e.Op != EqOp || e.Args[0].Op != VariableOp || e.Args[1].Op != VariableOp {
		return 0, 0, false
	}
	return e.Args[0].Col, e.Args[1].Col, true
}

// ConstComparison returns the column and constant of a comparison between a
// column and a constant, in either order. The returned operator is flipped
// when the constant is on the left, so that it always reads "col op const".
func (e *ScalarExpr) ConstComparison() (col ColumnID, op ScalarOperator, val *ScalarExpr, ok bool) {
	if !e.Op.IsComparison() {
		return 0, 0, nil, false
	}
	l, r := e.Args[0], e.Args[1]
	if l.Op == VariableOp && r.Op == ConstOp {
		return l.Col, e.Op, r, true
	}
	if l.Op == ConstOp && r.Op == VariableOp {
		return r.Col, commuteComparison(e.Op), l, true
	}
	return 0, 0, nil, false
}

func commuteComparison(op ScalarOperator) ScalarOperator {
	switch op {
	case LtOp:
		return GtOp
	case LeOp:
		return GeOp
	case GtOp:
		return LtOp
	case GeOp:
		return LeOp
	}
	return op
}

// Validate returns an error if the expression is structurally invalid or
// references columns outside of the metadata.
func (e *ScalarExpr) Validate(md *Metadata) error {
	if e.Op == UnknownScalarOp || e.Op >= numScalarOperators {
		return errorf("unknown scalar operator %d", e.Op)
	}
	switch e.Op {
	case VariableOp:
		if !md.HasColumn(e.Col) {
			return errorf("unknown column @%d", e.Col)
		}
		return nil
	case ConstOp:
		return nil
	}
	info := &scalarOpTab[e.Op]
	if (info.arity >= 0 && len(e.Args) != info.arity) || (info.arity < 0 && len(e.Args) < 2) {
		return errorf("%s has %d arguments", e.Op, len(e.Args))
	}
	for _, a := range e.Args {
		if a == nil {
			return errorf("%s has a nil argument", e.Op)
		}
		if a.Op.IsAggregate() {
			return errorf("aggregate %s is not allowed inside %s", a.Op, e.Op)
		}
		if err := a.Validate(md); err != nil {
			return err
		}
	}
	return nil
}

// FiltersExpr is a conjunction of predicates. It is kept in canonical form:
// nested ANDs are flattened, and the conjuncts are sorted by key with
// duplicates removed, so that equivalent filter sets intern identically.
type FiltersExpr []*ScalarExpr

// TrueFilter is the empty conjunction.
var TrueFilter = FiltersExpr{}

// MakeFilters returns the canonical conjunction of the given predicates.
func MakeFilters(conds ...*ScalarExpr) FiltersExpr {
	var flat []*ScalarExpr
	var flatten func(c *ScalarExpr)
	flatten = func(c *ScalarExpr) {
		if c.Op == AndOp {
			for _, a := range c.Args {
				flatten(a)
			}
			return
		}
		if c.Op == ConstOp && c.Value == true {
			return
		}
		flat = append(flat, c)
	}
	for _, c := range conds {
		flatten(c)
	}
	keys := make([]string, len(flat))
	for i := range flat {
		keys[i] = flat[i].Key()
	}
	idx := make([]int, len(flat))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return keys[idx[i]] < keys[idx[j]] })
	res := make(FiltersExpr, 0, len(flat))
	for n, i := range idx {
		if n > 0 && keys[i] == keys[idx[n-1]] {
			continue
		}
		res = append(res, flat[i])
	}
	return res
}

// Empty returns true if the conjunction has no predicates.
func (f FiltersExpr) Empty() bool {
	return len(f) == 0
}

// And returns the canonical conjunction of f and other.
func (f FiltersExpr) And(other FiltersExpr) FiltersExpr {
	all := make([]*ScalarExpr, 0, len(f)+len(other))
	all = append(all, f...)
	all = append(all, other...)
	return MakeFilters(all...)
}

// OuterCols returns the set of columns referenced by any predicate.
func (f FiltersExpr) OuterCols() ColSet {
	var cols ColSet
	for _, c := range f {
		c.addOuterCols(&cols)
	}
	return cols
}

// Split partitions the predicates into those that only reference columns in
// cols and the rest.
func (f FiltersExpr) Split(cols ColSet) (bound, rest FiltersExpr) {
	for _, c := range f {
		if c.OuterCols().SubsetOf(cols) {
			bound = append(bound, c)
		} else {
			rest = append(rest, c)
		}
	}
	return bound, rest
}

// EqualityPairs returns the column pairs of all column = column predicates
// that connect a column in left with a column in right.
func (f FiltersExpr) EqualityPairs(left, right ColSet) (leftCols, rightCols ColList) {
	for _, c := range f {
		l, r, ok := c.EqualityColumns()
		if !ok {
			continue
		}
		switch {
		case left.Contains(int(l)) && right.Contains(int(r)):
			leftCols, rightCols = append(leftCols, l), append(rightCols, r)
		case left.Contains(int(r)) && right.Contains(int(l)):
			leftCols, rightCols = append(leftCols, r), append(rightCols, l)
		}
	}
	return leftCols, rightCols
}

// Key is part of the Private interface.
func (f FiltersExpr) Key() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, c := range f {
		if i > 0 {
			buf.WriteByte(' ')
		}
		c.writeKey(&buf)
	}
	buf.WriteByte(']')
	return buf.String()
}

// Format is part of the Private interface.
func (f FiltersExpr) Format(buf *bytes.Buffer, md *Metadata) {
	if len(f) == 0 {
		buf.WriteString("true")
		return
	}
	for i, c := range f {
		if i > 0 {
			buf.WriteString(" AND ")
		}
		c.format(buf, md, len(f) > 1)
	}
}

func (f FiltersExpr) validate(md *Metadata) error {
	for _, c := range f {
		if c == nil {
			return errorf("nil filter")
		}
		if c.Op.IsAggregate() {
			return errorf("aggregate %s is not allowed in a filter", c.Op)
		}
		if err := c.Validate(md); err != nil {
			return err
		}
	}
	return nil
}
