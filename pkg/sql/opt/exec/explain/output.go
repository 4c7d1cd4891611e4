// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
)

// OutputBuilder is used to build the output of an explain tree. Nodes are
// entered and left in depth first order; fields are attached to the node
// that was entered last.
type OutputBuilder struct {
	flags Flags

	topLevel []field
	roots    []*outputNode
	stack    []*outputNode
}

type field struct {
	key, val string
}

type outputNode struct {
	name     string
	fields   []field
	children []*outputNode
}

// NewOutputBuilder creates a new OutputBuilder.
func NewOutputBuilder(flags Flags) *OutputBuilder {
	return &OutputBuilder{flags: flags}
}

// Flags returns the flags the builder was created with.
func (ob *OutputBuilder) Flags() Flags {
	return ob.flags
}

// EnterNode creates a new node as a child of the current node. In verbose
// mode, the columns and ordering are shown as fields when they are not
// empty.
func (ob *OutputBuilder) EnterNode(name string, columns, ordering string) {
	n := &outputNode{name: name}
	if len(ob.stack) == 0 {
		ob.roots = append(ob.roots, n)
	} else {
		parent := ob.stack[len(ob.stack)-1]
		parent.children = append(parent.children, n)
	}
	ob.stack = append(ob.stack, n)
	if ob.flags.Verbose {
		if columns != "" {
			ob.AddField("columns", columns)
		}
		if ordering != "" {
			ob.AddField("ordering", ordering)
		}
	}
}

// LeaveNode moves the current node back up the tree by one level.
func (ob *OutputBuilder) LeaveNode() {
	if len(ob.stack) == 0 {
		panic(errors.AssertionFailedf("LeaveNode without a node"))
	}
	ob.stack = ob.stack[:len(ob.stack)-1]
}

// AddField adds an information field under the current node.
func (ob *OutputBuilder) AddField(key, value string) {
	if len(ob.stack) == 0 {
		panic(errors.AssertionFailedf("field %s added outside of a node", key))
	}
	n := ob.stack[len(ob.stack)-1]
	n.fields = append(n.fields, field{key: key, val: value})
}

// AddTopLevelField adds a field that is shown above the tree.
func (ob *OutputBuilder) AddTopLevelField(key, value string) {
	ob.topLevel = append(ob.topLevel, field{key: key, val: value})
}

// BuildStringRows creates a string representation of the plan information
// and returns it as a list of strings (one for each row). The strings do not
// include a newline at the end.
//
// The output looks like this:
//
//	estimated cost: 18.52
//
//	• hash join
//	│ type: inner
//	│ equality: (a.x) = (b.x)
//	│
//	├── • table scan
//	│     table: a
//	│
//	└── • table scan
//	      table: b
func (ob *OutputBuilder) BuildStringRows() []string {
	var rows []string
	for _, f := range ob.topLevel {
		rows = append(rows, f.key+": "+f.val)
	}
	if len(rows) > 0 && len(ob.roots) > 0 {
		rows = append(rows, "")
	}
	for _, n := range ob.roots {
		rows = n.appendRows(rows, "" /* prefix */, true /* root */, false /* last */)
	}
	return rows
}

func (n *outputNode) appendRows(rows []string, prefix string, root, last bool) []string {
	var content string
	switch {
	case root:
		rows = append(rows, "• "+n.name)
	case last:
		rows = append(rows, prefix+"└── • "+n.name)
		content = prefix + "    "
	default:
		rows = append(rows, prefix+"├── • "+n.name)
		content = prefix + "│   "
	}
	fieldPrefix := content + "  "
	if len(n.children) > 0 {
		fieldPrefix = content + "│ "
	}
	for _, f := range n.fields {
		rows = append(rows, fieldPrefix+f.key+": "+f.val)
	}
	if len(n.children) == 0 {
		return rows
	}
	rows = append(rows, content+"│")
	for i, c := range n.children {
		last := i == len(n.children)-1
		rows = c.appendRows(rows, content, false /* root */, last)
		if !last {
			rows = append(rows, content+"│")
		}
	}
	return rows
}

// BuildString creates a string representation of the plan information. The
// output string always ends in a newline, unless it is empty.
func (ob *OutputBuilder) BuildString() string {
	rows := ob.BuildStringRows()
	if len(rows) == 0 {
		return ""
	}
	var buf strings.Builder
	for _, row := range rows {
		buf.WriteString(row)
		buf.WriteString("\n")
	}
	return buf.String()
}

// WriteTable renders the plan as a table with one row per node and one row
// per field, in the tree / field / description layout.
func (ob *OutputBuilder) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeader([]string{"tree", "field", "description"})
	for _, f := range ob.topLevel {
		table.Append([]string{"", f.key, f.val})
	}
	var walk func(n *outputNode, depth int)
	walk = func(n *outputNode, depth int) {
		table.Append([]string{strings.Repeat("  ", depth) + n.name, "", ""})
		for _, f := range n.fields {
			table.Append([]string{"", f.key, f.val})
		}
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	for _, n := range ob.roots {
		walk(n, 0)
	}
	table.Render()
}
