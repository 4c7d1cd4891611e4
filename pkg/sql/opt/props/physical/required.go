// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package physical contains the physical properties that a parent operator
// can require of its children, and that an operator provides to its parent.
package physical

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
)

// Required properties are interesting characteristics of an expression that
// impact its layout, presentation, or location, but not its logical content.
// Examples include row order, row placement across segments, and whether
// the rows can be replayed. A parent expression requires them of its
// children; the optimizer finds, for each group and set of required
// properties, the lowest cost expression that provides them.
//
// Required properties are interned by the memo; treat them as immutable
// once interned.
type Required struct {
	// Ordering is the sort order that the rows must follow. An empty ordering
	// places no requirement.
	Ordering opt.Ordering

	// Distribution is the required placement of rows across segments.
	Distribution Distribution

	// Rewind requires that the output can be replayed cheaply.
	Rewind Rewindability
}

// MinRequired is the set of required properties that places no
// requirement at all.
var MinRequired = &Required{}

// Any is true if no properties are required.
func (p *Required) Any() bool {
	return p.Ordering.Empty() && p.Distribution.Any() && p.Rewind == RewindNotRequired
}

// Equals returns true if the two sets of required properties are identical.
func (p *Required) Equals(rhs *Required) bool {
	return p.Ordering.Equals(rhs.Ordering) &&
		p.Distribution.Equals(rhs.Distribution) &&
		p.Rewind == rhs.Rewind
}

// WithoutOrdering returns a copy without the ordering requirement.
func (p *Required) WithoutOrdering() Required {
	return Required{Distribution: p.Distribution, Rewind: p.Rewind}
}

// WithoutDistribution returns a copy without the distribution requirement.
func (p *Required) WithoutDistribution() Required {
	return Required{Ordering: p.Ordering, Rewind: p.Rewind}
}

// WithoutRewind returns a copy without the rewindability requirement.
func (p *Required) WithoutRewind() Required {
	return Required{Ordering: p.Ordering, Distribution: p.Distribution}
}

// Key returns a canonical string for interning. Two sets of required
// properties are equal exactly when their keys are equal.
func (p *Required) Key() string {
	return p.String()
}

func (p *Required) String() string {
	return p.format(func(o opt.Ordering) string { return o.String() },
		func(d Distribution) string { return d.String() })
}

// Format is like String, but uses column labels from the metadata.
func (p *Required) Format(md *opt.Metadata) string {
	return p.format(func(o opt.Ordering) string { return o.Format(md) },
		func(d Distribution) string { return d.Format(md) })
}

func (p *Required) format(
	ordering func(opt.Ordering) string, distribution func(Distribution) string,
) string {
	var buf bytes.Buffer
	if !p.Ordering.Empty() {
		buf.WriteString("[ordering: ")
		buf.WriteString(ordering(p.Ordering))
		buf.WriteByte(']')
	}
	if !p.Distribution.Any() {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString("[distribution: ")
		buf.WriteString(distribution(p.Distribution))
		buf.WriteByte(']')
	}
	if p.Rewind == Rewindable {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString("[rewind]")
	}
	if buf.Len() == 0 {
		return "[]"
	}
	return buf.String()
}

// Provided properties are the characteristics that the output of a
// particular physical expression actually has. They are derived from the
// expression and the properties provided by its children, and must satisfy
// the properties that were required of it.
type Provided struct {
	Ordering     opt.Ordering
	Distribution Distribution
	Rewind       Rewindability
}

func (p *Provided) String() string {
	r := Required(*p)
	return r.String()
}

// Format is like String, but uses column labels from the metadata.
func (p *Provided) Format(md *opt.Metadata) string {
	r := Required(*p)
	return r.Format(md)
}

// Satisfies returns true if the provided properties meet every required
// property: the required ordering is a prefix of the provided one, the
// provided distribution places rows as required, and the output can be
// replayed when rewindability is required.
func Satisfies(provided *Provided, required *Required) bool {
	return provided.Ordering.Provides(required.Ordering) &&
		provided.Distribution.Provides(required.Distribution) &&
		provided.Rewind.Provides(required.Rewind)
}

// ParseRequired parses required properties from text of the form:
//
//	ordering=+a.x,-b.y distribution=hash(a.x) rewind
//
// Each part is optional; "any" and the empty string mean no requirement.
// Columns are resolved with the metadata.
func ParseRequired(md *opt.Metadata, s string) (*Required, error) {
	var req Required
	for _, field := range strings.Fields(s) {
		key, val, _ := strings.Cut(field, "=")
		switch key {
		case "any":
		case "rewind":
			req.Rewind = Rewindable
		case "ordering":
			for _, col := range strings.Split(val, ",") {
				if len(col) < 2 || (col[0] != '+' && col[0] != '-') {
					return nil, opterrors.MalformedInputf("invalid ordering column %q", col)
				}
				id, err := md.ColumnByLabel(col[1:])
				if err != nil {
					return nil, err
				}
				req.Ordering = append(req.Ordering, opt.MakeOrderingColumn(id, col[0] == '-'))
			}
		case "distribution":
			d, err := parseDistribution(md, val)
			if err != nil {
				return nil, err
			}
			req.Distribution = d
		default:
			return nil, opterrors.MalformedInputf("unknown required property %q", field)
		}
	}
	return &req, nil
}

func parseDistribution(md *opt.Metadata, s string) (Distribution, error) {
	switch s {
	case "any":
		return Distribution{}, nil
	case "singleton":
		return Singleton, nil
	case "replicated":
		return Replicated, nil
	case "random":
		return Random, nil
	}
	if !strings.HasPrefix(s, "hash(") || !strings.HasSuffix(s, ")") {
		return Distribution{}, opterrors.MalformedInputf("invalid distribution %q", s)
	}
	var cols opt.ColList
	for _, label := range strings.Split(s[len("hash("):len(s)-1], ",") {
		id, err := md.ColumnByLabel(label)
		if err != nil {
			return Distribution{}, err
		}
		cols = append(cols, id)
	}
	return MakeHashed(cols...), nil
}
