// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains interfaces that are used by the query optimizer to
// avoid including specifics of the data sources it plans over.
//
// The catalog supplies the schema of every table together with the
// statistics (row counts, distinct counts, histograms), the available
// indexes, and the way the table is distributed across segments.
package cat

// Catalog is an interface to a database catalog, exposing only the
// information needed by the query optimizer.
type Catalog interface {
	// ResolveTable locates a table by name. It returns an error if the table
	// does not exist.
	ResolveTable(name string) (Table, error)
}

// Table is an interface to a database table, exposing only the information
// needed by the query optimizer.
type Table interface {
	// Name is the unqualified name of the table.
	Name() string

	// ColumnCount returns the number of columns in the table.
	ColumnCount() int

	// Column returns the column at the given ordinal position.
	Column(i int) *Column

	// IndexCount returns the number of indexes defined on the table.
	IndexCount() int

	// Index returns the index at the given ordinal position.
	Index(i int) *Index

	// Statistics returns the latest table statistics.
	Statistics() *TableStatistics

	// Distribution describes how the rows of the table are spread over
	// segments.
	Distribution() Distribution
}

// ColumnType is the coarse type of a column. It determines the default width
// used when no statistics are present.
type ColumnType uint8

const (
	// IntType is a 64-bit integer column.
	IntType ColumnType = iota
	// FloatType is a 64-bit floating point column.
	FloatType
	// StringType is a variable length string column.
	StringType
	// BoolType is a boolean column.
	BoolType
)

var columnTypeNames = [...]string{
	IntType:    "int",
	FloatType:  "float",
	StringType: "string",
	BoolType:   "bool",
}

func (t ColumnType) String() string {
	return columnTypeNames[t]
}

// ColumnTypeByName returns the column type with the given name.
func ColumnTypeByName(name string) (ColumnType, bool) {
	for i, n := range columnTypeNames {
		if n == name {
			return ColumnType(i), true
		}
	}
	return 0, false
}

// DefaultWidth is the average width in bytes assumed for a value of the type.
func (t ColumnType) DefaultWidth() float64 {
	switch t {
	case StringType:
		return 24
	case BoolType:
		return 1
	default:
		return 8
	}
}

// Column describes a table column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// IndexColumn is one key column of an index.
type IndexColumn struct {
	// Ordinal is the position of the column in its table.
	Ordinal    int
	Descending bool
}

// Index describes an ordered index on a table. Scanning an index produces
// rows in the order of its key columns.
type Index struct {
	Name    string
	Columns []IndexColumn
	// Covering is true if the index stores every column of the table, so it
	// can be scanned without a lookup into the table.
	Covering bool
}

// KeyColumnCount returns the number of key columns in the index.
func (idx *Index) KeyColumnCount() int {
	return len(idx.Columns)
}

// DistributionType identifies the placement policy of a table.
type DistributionType uint8

const (
	// DistributeRandomly spreads rows across segments with no placement key.
	DistributeRandomly DistributionType = iota
	// DistributeByHash places rows by hashing the distribution key columns.
	DistributeByHash
	// DistributeReplicated stores a full copy of the table on every segment.
	DistributeReplicated
	// DistributeSingleton stores the table only on the coordinator.
	DistributeSingleton
)

// Distribution is the placement policy of a table.
type Distribution struct {
	Type DistributionType
	// KeyColumns are the ordinals of the hash key columns when Type is
	// DistributeByHash.
	KeyColumns []int
}

// TableStatistics are the statistics collected for a table.
type TableStatistics struct {
	RowCount float64
	// ColumnStatistics is indexed by column ordinal. Missing entries mean that
	// no statistic was collected for that column.
	ColumnStatistics []ColumnStatistic
}

// ColumnStatistic holds the statistics for one column.
type ColumnStatistic struct {
	// DistinctCount is the estimated number of distinct values; zero means
	// unknown.
	DistinctCount float64
	NullCount     float64
	// AvgWidth is the average width of a value in bytes; zero means unknown.
	AvgWidth  float64
	Histogram []HistogramBucket
}

// HistogramBucket contains the data for a single histogram bucket. Values are
// numeric; string columns carry no histograms.
type HistogramBucket struct {
	// NumEq is the estimated number of values equal to UpperBound.
	NumEq float64

	// NumRange is the estimated number of values between the upper bound of
	// the previous bucket and UpperBound (both boundaries are exclusive).
	// The first bucket should always have NumRange=0.
	NumRange float64

	// DistinctRange is the estimated number of distinct values between the
	// upper bound of the previous bucket and UpperBound (both boundaries are
	// exclusive).
	DistinctRange float64

	// UpperBound is the upper bound of the bucket.
	UpperBound float64
}
