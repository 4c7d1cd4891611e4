// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package exprgen

import (
	"bytes"

	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
)

type nodeKind int

const (
	// listNode is a parenthesized list: an operator name followed by its
	// arguments, e.g. (Scan a).
	listNode nodeKind = iota
	// arrayNode is a bracketed list of items, e.g. [a.x a.y].
	arrayNode
	identNode
	numberNode
	stringNode
)

// node is an element of the parse tree.
type node struct {
	kind  nodeKind
	text  string
	items []*node
	loc   string
}

// name returns the leading identifier of a list, or the empty string.
func (n *node) name() string {
	if n.kind == listNode && len(n.items) > 0 && n.items[0].kind == identNode {
		return n.items[0].text
	}
	return ""
}

// args returns the items of a list that follow its name.
func (n *node) args() []*node {
	if len(n.items) == 0 {
		return nil
	}
	return n.items[1:]
}

func (n *node) String() string {
	var buf bytes.Buffer
	n.format(&buf)
	return buf.String()
}

func (n *node) format(buf *bytes.Buffer) {
	switch n.kind {
	case listNode, arrayNode:
		open, close := byte('('), byte(')')
		if n.kind == arrayNode {
			open, close = '[', ']'
		}
		buf.WriteByte(open)
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			item.format(buf)
		}
		buf.WriteByte(close)
	case stringNode:
		buf.WriteByte('"')
		buf.WriteString(n.text)
		buf.WriteByte('"')
	default:
		buf.WriteString(n.text)
	}
}

// parser builds the parse tree of an expression. Errors are raised as
// panics and recovered by Build.
type parser struct {
	s scanner
}

// parse parses the input, which must contain exactly one expression.
func (p *parser) parse(src string) *node {
	p.s.init(src)
	p.s.next()
	n := p.parseNode()
	if p.s.tok != tokEOF {
		p.errorf("expected end of input, found %s", p.s.tok)
	}
	return n
}

func (p *parser) parseNode() *node {
	n := &node{text: p.s.lit, loc: p.s.location()}
	switch p.s.tok {
	case tokLParen:
		n.kind = listNode
		p.parseItems(n, tokRParen)
	case tokLBracket:
		n.kind = arrayNode
		p.parseItems(n, tokRBracket)
	case tokIdent:
		n.kind = identNode
		p.s.next()
	case tokNumber:
		n.kind = numberNode
		p.s.next()
	case tokString:
		n.kind = stringNode
		p.s.next()
	default:
		p.errorf("unexpected %s %q", p.s.tok, p.s.lit)
	}
	return n
}

func (p *parser) parseItems(n *node, close token) {
	p.s.next()
	for p.s.tok != close {
		if p.s.tok == tokEOF {
			p.errorf("expected %s, found %s", close, p.s.tok)
		}
		n.items = append(n.items, p.parseNode())
	}
	p.s.next()
}

func (p *parser) errorf(format string, args ...interface{}) {
	panic(opterrors.MalformedInputf("%s: "+format, append([]interface{}{p.s.location()}, args...)...))
}
