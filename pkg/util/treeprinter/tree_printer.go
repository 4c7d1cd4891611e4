// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package treeprinter renders trees of text nodes, e.g.:
//
//	root
//	 ├── child1
//	 │    └── grandchild
//	 └── child2
package treeprinter

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	edgeLinkChr = "│"
	edgeMidChr  = "├──"
	edgeLastChr = "└──"
	indent      = "    "
)

type node struct {
	text     string
	children []*node
}

// Node is a handle associated with a specific depth in a tree. The zero value
// is not usable; use New to create the root handle.
type Node struct {
	n *node
}

// New creates a tree printer and returns a sentinel node reference which
// should be used to add the root. Only one root may be added.
func New() Node {
	return Node{n: &node{}}
}

// Child adds a node as a child of the given node and returns a handle for it.
func (n Node) Child(text string) Node {
	c := &node{text: text}
	n.n.children = append(n.n.children, c)
	return Node{n: c}
}

// Childf adds a node as a child of the given node, formatting the text with
// Sprintf.
func (n Node) Childf(format string, args ...interface{}) Node {
	return n.Child(fmt.Sprintf(format, args...))
}

// AddLine appends a line of text to the node's existing text; multi-line
// nodes are rendered with the continuation lines aligned under the first.
func (n Node) AddLine(text string) {
	n.n.text += "\n" + text
}

// String returns the tree as a string.
func (n Node) String() string {
	var buf bytes.Buffer
	for _, c := range n.n.children {
		format(&buf, c, "", "", "")
	}
	return buf.String()
}

func format(buf *bytes.Buffer, n *node, firstPrefix, contPrefix, childPrefix string) {
	lines := strings.Split(n.text, "\n")
	for i, line := range lines {
		if i == 0 {
			buf.WriteString(firstPrefix)
		} else {
			buf.WriteString(contPrefix)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	for i, c := range n.children {
		last := i == len(n.children)-1
		if last {
			format(buf, c,
				childPrefix+" "+edgeLastChr+" ",
				childPrefix+"     ",
				childPrefix+"     ")
		} else {
			format(buf, c,
				childPrefix+" "+edgeMidChr+" ",
				childPrefix+" "+edgeLinkChr+"    ",
				childPrefix+" "+edgeLinkChr+"   ")
		}
	}
}
