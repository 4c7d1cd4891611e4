// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain

import "github.com/cockroachdb/errors"

// Flags are modifiers for the explain output.
type Flags struct {
	// Verbose indicates that more metadata is shown: the output columns,
	// ordering and distribution of each node, its cost and row width.
	Verbose bool
	// If OnlyShape is true, we hide fields that could be different between 2
	// plans that otherwise have exactly the same shape, like estimated row count.
	OnlyShape bool

	// Flags to hide various fields for testing purposes.
	Deflake DeflakeFlags
}

// DeflakeFlags control hiding of various field values. They are used to
// guarantee deterministic results for testing purposes.
type DeflakeFlags uint8

const (
	// DeflakeCost hides the value of the "cost" fields.
	DeflakeCost DeflakeFlags = (1 << iota)

	// DeflakeRows hides estimated row counts and widths.
	DeflakeRows
)

const (
	// DeflakeAll has all redact flags set.
	DeflakeAll DeflakeFlags = DeflakeCost | DeflakeRows
)

// HasAny returns true if the receiver has any of the given deflake flags set.
func (f DeflakeFlags) HasAny(flags DeflakeFlags) bool {
	return (f & flags) != 0
}

// MakeFlags creates Flags from option names: verbose, shape, deflake-cost,
// deflake-rows and deflake.
func MakeFlags(options ...string) (Flags, error) {
	var f Flags
	for _, o := range options {
		switch o {
		case "verbose":
			f.Verbose = true
		case "shape":
			f.OnlyShape = true
			f.Deflake = DeflakeAll
		case "deflake-cost":
			f.Deflake |= DeflakeCost
		case "deflake-rows":
			f.Deflake |= DeflakeRows
		case "deflake":
			f.Deflake = DeflakeAll
		default:
			return Flags{}, errors.Newf("unknown explain option %q", o)
		}
	}
	return f, nil
}
