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
)

// Pattern is a tree of operators that a rule matches against the memo. A
// node with UnknownOp is a wildcard that binds a whole group without looking
// at its members. Children that are not listed are wildcards.
type Pattern struct {
	Op       opt.Operator
	Children []*Pattern
}

// Any is the wildcard pattern.
var Any = &Pattern{}

// MakePattern returns a pattern rooted at the given operator.
func MakePattern(op opt.Operator, children ...*Pattern) *Pattern {
	return &Pattern{Op: op, Children: children}
}

// IsAny returns true for a wildcard.
func (p *Pattern) IsAny() bool {
	return p.Op == opt.UnknownOp
}

// Matches returns true if the pattern can bind the expression. Only the
// operator is checked; the children are checked as bindings are enumerated.
func (p *Pattern) Matches(e *memo.GroupExpr) bool {
	return p.IsAny() || p.Op == e.Op()
}

func (p *Pattern) child(nth int) *Pattern {
	if nth < len(p.Children) {
		return p.Children[nth]
	}
	return Any
}

func (p *Pattern) String() string {
	if p.IsAny() {
		return "*"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "(%s", p.Op)
	for _, c := range p.Children {
		buf.WriteByte(' ')
		buf.WriteString(c.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// Binding is a concrete match of a pattern: each non-wildcard pattern node is
// bound to a memo expression, and each wildcard to a group.
type Binding struct {
	// Expr is nil for a wildcard.
	Expr     *memo.GroupExpr
	Group    memo.GroupID
	Children []*Binding
}

// Child returns the binding of the nth child.
func (b *Binding) Child(nth int) *Binding {
	return b.Children[nth]
}

// Private returns the payload of the bound expression.
func (b *Binding) Private() opt.Private {
	return b.Expr.Private()
}

// Ref returns a reference to the bound group, for use in a rule output.
func (b *Binding) Ref() *opt.Expr {
	return opt.GroupRef(b.Group)
}

func (b *Binding) String() string {
	if b.Expr == nil {
		return fmt.Sprintf("G%d", b.Group)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "(%s", b.Expr.Op())
	for _, c := range b.Children {
		buf.WriteByte(' ')
		buf.WriteString(c.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// Binder enumerates the bindings of a pattern rooted at a memo expression.
// The members of each child group are snapshotted when the group is first
// visited, so that expressions added while the bindings are in use are not
// bound. At most a fixed number of bindings are returned.
type Binder struct {
	root  binder
	max   int
	count int

	done      bool
	truncated bool
}

// NewBinder returns a binder of the pattern rooted at e. A max of zero means
// no limit.
func NewBinder(mem *memo.Memo, pattern *Pattern, e *memo.GroupExpr, max int) *Binder {
	b := &Binder{max: max}
	b.root.init(mem, pattern, e.Group())
	if pattern.Matches(e) {
		b.root.exprs = []*memo.GroupExpr{e}
	}
	return b
}

// Next returns the next binding, or false when the bindings are exhausted.
func (b *Binder) Next() (*Binding, bool) {
	if b.done {
		return nil, false
	}
	if b.max > 0 && b.count >= b.max {
		// Look one binding ahead to tell a cut off enumeration from one that
		// ended exactly at the limit.
		b.done = true
		b.truncated = b.root.next()
		return nil, false
	}
	if !b.root.next() {
		b.done = true
		return nil, false
	}
	b.count++
	return b.root.binding(), true
}

// Truncated returns true if the binder stopped at the binding limit while
// more bindings existed. It is only meaningful once Next has returned false.
func (b *Binder) Truncated() bool {
	return b.truncated
}

// binder enumerates the bindings of a pattern node over the members of a
// group. It works like an odometer: the last child advances first, and when
// it runs out it restarts and the child before it advances.
type binder struct {
	mem     *memo.Memo
	pattern *Pattern
	group   memo.GroupID

	// exprs are the members that the pattern node can bind, and ord is the
	// one currently bound.
	exprs    []*memo.GroupExpr
	ord      int
	children []binder

	started bool
}

func (b *binder) init(mem *memo.Memo, pattern *Pattern, group memo.GroupID) {
	*b = binder{mem: mem, pattern: pattern, group: group}
}

// initGroup snapshots the members of the group that match the pattern.
func (b *binder) initGroup(mem *memo.Memo, pattern *Pattern, group memo.GroupID) {
	b.init(mem, pattern, group)
	if pattern.IsAny() {
		return
	}
	g := mem.Group(group)
	for i, n := 0, g.ExprCount(); i < n; i++ {
		if e := g.Expr(i); pattern.Matches(e) {
			b.exprs = append(b.exprs, e)
		}
	}
}

func (b *binder) next() bool {
	if b.pattern.IsAny() {
		if b.started {
			return false
		}
		b.started = true
		return true
	}
	if !b.started {
		b.started = true
		return b.seek()
	}
	for i := len(b.children) - 1; i >= 0; i-- {
		if !b.children[i].next() {
			continue
		}
		// The later children are bound to the same groups as before, so they
		// have a first binding again.
		for j := i + 1; j < len(b.children); j++ {
			b.children[j].reset()
			b.children[j].next()
		}
		return true
	}
	b.ord++
	return b.seek()
}

// reset rewinds the binder to its first binding, keeping its snapshot.
func (b *binder) reset() {
	b.started = false
	b.ord = 0
	b.children = nil
}

// seek moves to the first member at or after ord whose children all have a
// binding.
func (b *binder) seek() bool {
	for ; b.ord < len(b.exprs); b.ord++ {
		e := b.exprs[b.ord]
		b.children = make([]binder, e.ChildCount())
		ok := true
		for i := range b.children {
			b.children[i].initGroup(b.mem, b.pattern.child(i), e.Child(i))
			if !b.children[i].next() {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	b.children = nil
	return false
}

func (b *binder) binding() *Binding {
	if b.pattern.IsAny() {
		return &Binding{Group: b.mem.Group(b.group).ID()}
	}
	e := b.exprs[b.ord]
	res := &Binding{Expr: e, Group: e.Group()}
	if len(b.children) > 0 {
		res.Children = make([]*Binding, len(b.children))
		for i := range b.children {
			res.Children[i] = b.children[i].binding()
		}
	}
	return res
}
