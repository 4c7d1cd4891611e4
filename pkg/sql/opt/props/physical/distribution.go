// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
)

// DistributionKind describes how the rows of a relation are placed across
// the segments that execute a plan.
type DistributionKind uint8

const (
	// AnyDistribution is only used in required properties. It is satisfied by
	// every placement.
	AnyDistribution DistributionKind = iota

	// SingletonDistribution means that all rows are on the coordinator.
	SingletonDistribution

	// HashedDistribution means that rows are placed on segments by hashing the
	// values of a set of columns. Rows with equal values in those columns are
	// on the same segment.
	HashedDistribution

	// ReplicatedDistribution means that every segment has a full copy of the
	// rows.
	ReplicatedDistribution

	// RandomDistribution means that rows are spread over the segments with no
	// known placement key.
	RandomDistribution
)

var distributionKindNames = [...]string{
	AnyDistribution:        "any",
	SingletonDistribution:  "singleton",
	HashedDistribution:     "hash",
	ReplicatedDistribution: "replicated",
	RandomDistribution:     "random",
}

func (k DistributionKind) String() string {
	return distributionKindNames[k]
}

// Distribution is the placement of rows across segments. Cols is only set
// for HashedDistribution, and is kept sorted so that equal distributions
// have equal representations.
type Distribution struct {
	Kind DistributionKind
	Cols opt.ColList
}

// Any returns true if the distribution places no requirement.
func (d Distribution) Any() bool {
	return d.Kind == AnyDistribution
}

// Singleton is the distribution of rows on the coordinator.
var Singleton = Distribution{Kind: SingletonDistribution}

// Replicated is the distribution of rows copied to every segment.
var Replicated = Distribution{Kind: ReplicatedDistribution}

// Random is the distribution of rows spread with no placement key.
var Random = Distribution{Kind: RandomDistribution}

// MakeHashed returns a hash distribution on the given columns. An empty
// column list yields a random distribution.
func MakeHashed(cols ...opt.ColumnID) Distribution {
	if len(cols) == 0 {
		return Random
	}
	return Distribution{Kind: HashedDistribution, Cols: opt.SortedColList(cols)}
}

// MakeHashedFromSet is like MakeHashed, for a column set.
func MakeHashedFromSet(cols opt.ColSet) Distribution {
	return MakeHashed(opt.ColSetToList(cols)...)
}

// TableDistribution returns the distribution of the rows of a scan that
// produces the given columns. A hash distribution degrades to random when
// some of its key columns are not produced.
func TableDistribution(tm *opt.TableMeta, cols opt.ColSet) Distribution {
	switch tm.Table.Distribution().Type {
	case cat.DistributeByHash:
		key := tm.DistributionCols()
		if !opt.ColListToSet(key).SubsetOf(cols) {
			return Random
		}
		return MakeHashed(key...)
	case cat.DistributeReplicated:
		return Replicated
	case cat.DistributeSingleton:
		return Singleton
	default:
		return Random
	}
}

// ColSet returns the hash columns as a set.
func (d Distribution) ColSet() opt.ColSet {
	return opt.ColListToSet(d.Cols)
}

// Equals returns true if the two distributions are identical.
func (d Distribution) Equals(rhs Distribution) bool {
	return d.Kind == rhs.Kind && opt.ColListEquals(d.Cols, rhs.Cols)
}

// Provides returns true if rows placed according to d satisfy the required
// distribution.
func (d Distribution) Provides(required Distribution) bool {
	switch required.Kind {
	case AnyDistribution:
		return true
	case SingletonDistribution, ReplicatedDistribution:
		return d.Kind == required.Kind
	case HashedDistribution:
		return d.Kind == HashedDistribution && d.ColSet().Equals(required.ColSet())
	case RandomDistribution:
		// A hash placement is a particular random placement.
		return d.Kind == RandomDistribution || d.Kind == HashedDistribution
	}
	return false
}

// Project returns the distribution of rows after only the given columns
// are kept. Hash placement is lost when a key column is projected away.
func (d Distribution) Project(cols opt.ColSet) Distribution {
	if d.Kind == HashedDistribution && !d.ColSet().SubsetOf(cols) {
		return Random
	}
	return d
}

func (d Distribution) String() string {
	if d.Kind != HashedDistribution {
		return d.Kind.String()
	}
	var buf bytes.Buffer
	buf.WriteString("hash(")
	for i, c := range d.Cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%d", c)
	}
	buf.WriteByte(')')
	return buf.String()
}

// Format is like String, but uses column labels from the metadata.
func (d Distribution) Format(md *opt.Metadata) string {
	if d.Kind != HashedDistribution {
		return d.Kind.String()
	}
	var buf bytes.Buffer
	buf.WriteString("hash(")
	for i, c := range d.Cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(md.ColumnLabel(c))
	}
	buf.WriteByte(')')
	return buf.String()
}

// Rewindability is the ability of an operator to produce its output again
// from the start, without recomputing its input. The inner side of a nested
// loop join is rewound once for every outer row.
type Rewindability uint8

const (
	// RewindNotRequired places no requirement.
	RewindNotRequired Rewindability = iota
	// Rewindable means that the output can be replayed.
	Rewindable
)

func (r Rewindability) String() string {
	if r == Rewindable {
		return "rewindable"
	}
	return "not-required"
}

// Provides returns true if r satisfies the required rewindability.
func (r Rewindability) Provides(required Rewindability) bool {
	return required == RewindNotRequired || r == Rewindable
}
