// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package exprgen builds logical expression trees from a compact
// S-expression syntax, for tests and command line tools. For example:
//
//	(InnerJoin
//	  (Scan a)
//	  (Select (Scan b) [(Gt b.y 10)])
//	  [(Eq a.x b.x)]
//	)
//
// Relational operators take their inputs first, followed by their
// arguments:
//
//	(Scan <table> [<alias>] [[<col> ...]])
//	(Values [(<col> <type>) ...] [(<const> ...) ...])
//	(Select <input> [<filter> ...])
//	(Project <input> [<col> ...] [[(<name> <scalar>) ...]])
//	(InnerJoin|LeftJoin|SemiJoin|AntiJoin <left> <right> [[<filter> ...]])
//	(GroupBy <input> [<grouping col> ...] [[(<name> <aggregate>) ...]])
//	(Limit <input> <count>)
//	(UnionAll <left> <right>)
//
// Scalars are column references such as a.x, constants (integers, floats,
// quoted strings, true, false and null) and operator calls such as
// (Eq a.x 1), (And ...), (Plus a.x b.x) or (Sum a.y). Commas are treated as
// whitespace, and "#" starts a comment.
package exprgen

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/errors"
)

// Build parses the input and builds the expression tree that it describes.
// Tables are resolved with the catalog and added to the metadata, along with
// the columns that Values, Project, GroupBy and UnionAll synthesize. Errors
// are MalformedInput errors.
func Build(catalog cat.Catalog, md *opt.Metadata, input string) (_ *opt.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			// Builder and parser errors are raised as panics.
			if e, ok := r.(error); ok && opterrors.IsMalformedInput(e) {
				err = e
				return
			}
			panic(r)
		}
	}()

	var p parser
	root := p.parse(input)
	b := builder{catalog: catalog, md: md}
	e, _ := b.buildRel(root)
	return e, nil
}

// BuildScalar parses a scalar expression whose columns are resolved with
// the metadata.
func BuildScalar(md *opt.Metadata, input string) (_ *opt.ScalarExpr, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && opterrors.IsMalformedInput(e) {
				err = e
				return
			}
			panic(r)
		}
	}()

	var p parser
	root := p.parse(input)
	b := builder{md: md}
	return b.buildScalar(root), nil
}

type builder struct {
	catalog cat.Catalog
	md      *opt.Metadata
}

func (b *builder) errorf(n *node, format string, args ...interface{}) {
	panic(errors.WithDetailf(
		opterrors.MalformedInputf("%s: "+format, append([]interface{}{n.loc}, args...)...),
		"in %s", n))
}

// buildRel builds a relational expression and returns it along with its
// output columns.
func (b *builder) buildRel(n *node) (*opt.Expr, opt.ColSet) {
	if n.kind != listNode || n.name() == "" {
		b.errorf(n, "expected a relational expression, found %s", n)
	}
	op, ok := opt.OperatorFromString(n.name())
	if !ok || !op.IsLogical() {
		b.errorf(n, "unknown relational operator %s", n.name())
	}
	args := n.args()

	switch op {
	case opt.ScanOp:
		return b.buildScan(n, args)

	case opt.ValuesOp:
		return b.buildValues(n, args)

	case opt.SelectOp:
		b.checkArgs(n, args, 2, 2)
		input, cols := b.buildRel(args[0])
		return &opt.Expr{
			Op:       op,
			Private:  b.buildFilters(b.array(args[1])),
			Children: []*opt.Expr{input},
		}, cols

	case opt.ProjectOp:
		return b.buildProject(n, args)

	case opt.InnerJoinOp, opt.LeftJoinOp, opt.SemiJoinOp, opt.AntiJoinOp:
		b.checkArgs(n, args, 2, 3)
		left, leftCols := b.buildRel(args[0])
		right, rightCols := b.buildRel(args[1])
		on := opt.TrueFilter
		if len(args) == 3 {
			on = b.buildFilters(b.array(args[2]))
		}
		cols := leftCols
		if op == opt.InnerJoinOp || op == opt.LeftJoinOp {
			cols = leftCols.Union(rightCols)
		}
		return &opt.Expr{
			Op:       op,
			Private:  &opt.JoinPrivate{JoinType: op, On: on},
			Children: []*opt.Expr{left, right},
		}, cols

	case opt.GroupByOp:
		return b.buildGroupBy(n, args)

	case opt.LimitOp:
		b.checkArgs(n, args, 2, 2)
		input, cols := b.buildRel(args[0])
		if args[1].kind != numberNode {
			b.errorf(args[1], "expected a row count")
		}
		count, err := strconv.ParseInt(args[1].text, 10, 64)
		if err != nil || count < 0 {
			b.errorf(args[1], "invalid row count %s", args[1].text)
		}
		return &opt.Expr{
			Op:       op,
			Private:  &opt.LimitPrivate{Count: count},
			Children: []*opt.Expr{input},
		}, cols

	case opt.UnionAllOp:
		b.checkArgs(n, args, 2, 2)
		left, leftCols := b.buildRel(args[0])
		right, rightCols := b.buildRel(args[1])
		if leftCols.Len() != rightCols.Len() {
			b.errorf(n, "union inputs have %d and %d columns", leftCols.Len(), rightCols.Len())
		}
		private := &opt.UnionAllPrivate{
			LeftCols:  opt.ColSetToList(leftCols),
			RightCols: opt.ColSetToList(rightCols),
		}
		for _, c := range private.LeftCols {
			meta := b.md.ColumnMeta(c)
			private.OutCols = append(private.OutCols, b.md.AddColumn(meta.Alias, meta.Type))
		}
		return &opt.Expr{
			Op:       op,
			Private:  private,
			Children: []*opt.Expr{left, right},
		}, opt.ColListToSet(private.OutCols)
	}
	b.errorf(n, "unsupported operator %s", op)
	return nil, opt.ColSet{}
}

func (b *builder) buildScan(n *node, args []*node) (*opt.Expr, opt.ColSet) {
	b.checkArgs(n, args, 1, 3)
	name := b.ident(args[0])
	tab, err := b.catalog.ResolveTable(name)
	if err != nil {
		b.errorf(args[0], "%v", err)
	}
	alias := name
	args = args[1:]
	if len(args) > 0 && args[0].kind == identNode {
		alias = args[0].text
		args = args[1:]
	}
	tabID := b.md.AddTable(tab, alias)

	var cols opt.ColSet
	if len(args) == 0 {
		cols = b.md.TableMeta(tabID).AllCols()
	} else {
		for _, item := range b.array(args[0]) {
			colName := b.ident(item)
			ord := -1
			for i := 0; i < tab.ColumnCount(); i++ {
				if tab.Column(i).Name == colName {
					ord = i
					break
				}
			}
			if ord < 0 {
				b.errorf(item, "table %s has no column %s", name, colName)
			}
			cols.Add(int(tabID.ColumnID(ord)))
		}
	}
	return &opt.Expr{Op: opt.ScanOp, Private: &opt.ScanPrivate{Table: tabID, Cols: cols}}, cols
}

func (b *builder) buildValues(n *node, args []*node) (*opt.Expr, opt.ColSet) {
	b.checkArgs(n, args, 2, 2)
	private := &opt.ValuesPrivate{}
	for _, def := range b.array(args[0]) {
		if def.kind != listNode || len(def.items) != 2 {
			b.errorf(def, "expected (<column> <type>)")
		}
		typ, ok := cat.ColumnTypeByName(b.ident(def.items[1]))
		if !ok {
			b.errorf(def.items[1], "unknown column type %s", def.items[1].text)
		}
		private.Cols = append(private.Cols, b.md.AddColumn(b.ident(def.items[0]), typ))
	}
	for _, row := range b.array(args[1]) {
		if row.kind != listNode {
			b.errorf(row, "expected a row of constants")
		}
		if len(row.items) != len(private.Cols) {
			b.errorf(row, "row has %d values, expected %d", len(row.items), len(private.Cols))
		}
		vals := make([]*opt.ScalarExpr, len(row.items))
		for i, item := range row.items {
			vals[i] = b.buildScalar(item)
			if vals[i].Op != opt.ConstOp {
				b.errorf(item, "values must be constants")
			}
		}
		private.Rows = append(private.Rows, vals)
	}
	return &opt.Expr{Op: opt.ValuesOp, Private: private}, opt.ColListToSet(private.Cols)
}

func (b *builder) buildProject(n *node, args []*node) (*opt.Expr, opt.ColSet) {
	b.checkArgs(n, args, 2, 3)
	input, _ := b.buildRel(args[0])
	private := &opt.ProjectPrivate{}
	for _, item := range b.array(args[1]) {
		private.Passthrough.Add(int(b.column(item)))
	}
	if len(args) == 3 {
		for _, item := range b.array(args[2]) {
			name, expr := b.namedScalar(item)
			if expr.Op.IsAggregate() {
				b.errorf(item, "aggregate %s is not allowed in a projection", expr.Op)
			}
			private.Projections = append(private.Projections, opt.ProjectionItem{
				Col:  b.md.AddColumn(name, expr.Type(b.md)),
				Expr: expr,
			})
		}
	}
	return &opt.Expr{Op: opt.ProjectOp, Private: private, Children: []*opt.Expr{input}},
		private.OutputCols()
}

func (b *builder) buildGroupBy(n *node, args []*node) (*opt.Expr, opt.ColSet) {
	b.checkArgs(n, args, 2, 3)
	input, _ := b.buildRel(args[0])
	private := &opt.GroupByPrivate{}
	for _, item := range b.array(args[1]) {
		private.GroupingCols.Add(int(b.column(item)))
	}
	if len(args) == 3 {
		for _, item := range b.array(args[2]) {
			name, agg := b.namedScalar(item)
			if !agg.Op.IsAggregate() {
				b.errorf(item, "%s is not an aggregate", agg.Op)
			}
			private.Aggs = append(private.Aggs, opt.AggregateItem{
				Col: b.md.AddColumn(name, agg.Type(b.md)),
				Agg: agg,
			})
		}
	}
	return &opt.Expr{Op: opt.GroupByOp, Private: private, Children: []*opt.Expr{input}},
		private.OutputCols()
}

// namedScalar builds a (<name> <scalar>) pair.
func (b *builder) namedScalar(n *node) (string, *opt.ScalarExpr) {
	if n.kind != listNode || len(n.items) != 2 {
		b.errorf(n, "expected (<name> <expression>)")
	}
	return b.ident(n.items[0]), b.buildScalar(n.items[1])
}

func (b *builder) buildFilters(items []*node) opt.FiltersExpr {
	conds := make([]*opt.ScalarExpr, len(items))
	for i, item := range items {
		conds[i] = b.buildScalar(item)
	}
	return opt.MakeFilters(conds...)
}

func (b *builder) buildScalar(n *node) *opt.ScalarExpr {
	switch n.kind {
	case numberNode:
		if i, err := strconv.ParseInt(n.text, 10, 64); err == nil {
			return opt.Const(i)
		}
		f, err := strconv.ParseFloat(n.text, 64)
		if err != nil {
			b.errorf(n, "invalid number %s", n.text)
		}
		return opt.Const(f)

	case stringNode:
		return opt.Const(n.text)

	case identNode:
		switch strings.ToLower(n.text) {
		case "true":
			return opt.Const(true)
		case "false":
			return opt.Const(false)
		case "null":
			return opt.Const(nil)
		}
		return opt.Var(b.column(n))

	case listNode:
		op, ok := opt.ScalarOperatorFromString(n.name())
		if !ok || op == opt.VariableOp || op == opt.ConstOp {
			b.errorf(n, "unknown scalar operator %s", n.name())
		}
		args := make([]*opt.ScalarExpr, len(n.args()))
		for i, a := range n.args() {
			args[i] = b.buildScalar(a)
		}
		e := opt.MakeScalar(op, args...)
		if err := e.Validate(b.md); err != nil {
			b.errorf(n, "%v", err)
		}
		return e
	}
	b.errorf(n, "expected a scalar expression, found %s", n)
	return nil
}

// column resolves a column reference.
func (b *builder) column(n *node) opt.ColumnID {
	col, err := b.md.ColumnByLabel(b.ident(n))
	if err != nil {
		b.errorf(n, "%v", err)
	}
	return col
}

func (b *builder) ident(n *node) string {
	if n.kind != identNode {
		b.errorf(n, "expected an identifier, found %s", n)
	}
	return n.text
}

func (b *builder) array(n *node) []*node {
	if n.kind != arrayNode {
		b.errorf(n, "expected a bracketed list, found %s", n)
	}
	return n.items
}

func (b *builder) checkArgs(n *node, args []*node, min, max int) {
	if len(args) < min || len(args) > max {
		if min == max {
			b.errorf(n, "%s expects %d arguments, got %d", n.name(), min, len(args))
		}
		b.errorf(n, "%s expects %d to %d arguments, got %d", n.name(), min, max, len(args))
	}
}
