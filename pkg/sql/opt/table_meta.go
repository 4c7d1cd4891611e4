// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "github.com/cockroachdb/cascades/pkg/sql/opt/cat"

// TableID uniquely identifies the usage of a table within the scope of a
// query. TableID 0 is reserved to mean "unknown table".
//
// Internally, the TableID consists of an index into the Metadata.tables slice,
// as well as the ColumnID of the first column in the table. Subsequent columns
// have sequential ids, relative to their ordinal position in the table.
//
// See the comment for Metadata for more details on identifiers.
type TableID uint64

const (
	tableIDMask = 0xffffffff
)

// ColumnID returns the metadata id of the column at the given ordinal position
// in the table. This is equivalent to calling:
//
//	md.TableMeta(t).Table.Column(ord)
//
// NOTE: This method cannot do bounds checking, so it's up to the caller to
// ensure that a column really does exist at this ordinal position.
func (t TableID) ColumnID(ord int) ColumnID {
	return t.firstColID() + ColumnID(ord)
}

// ColumnOrdinal returns the ordinal position of the given column in its base
// table.
//
// NOTE: This method cannot do complete bounds checking, so it's up to the
// caller to ensure that this column is really in the given base table.
func (t TableID) ColumnOrdinal(id ColumnID) int {
	if id < t.firstColID() {
		panic("ordinal cannot be negative")
	}
	return int(id - t.firstColID())
}

// index returns the index of the table in Metadata.tables. It's biased by 1, so
// that TableID 0 can be be reserved to mean "unknown table".
func (t TableID) index() int {
	return int((t>>32)&tableIDMask) - 1
}

// firstColID returns the ColumnID of the first column in the table.
func (t TableID) firstColID() ColumnID {
	return ColumnID(t & tableIDMask)
}

// makeTableID constructs a new TableID from its component parts.
func makeTableID(index int, firstColID ColumnID) TableID {
	// Bias the table index by 1.
	return TableID((uint64(index+1) << 32) | uint64(firstColID))
}

// TableMeta stores information about one of the tables stored in the metadata.
type TableMeta struct {
	// MetaID is the identifier for this table that is unique within the query
	// metadata.
	MetaID TableID

	// Table is a reference to the table in the catalog.
	Table cat.Table

	// Alias stores the identifier used in the query to identify the table. It
	// defaults to the table name.
	Alias string
}

// AllCols returns the set of all columns in the table.
func (tm *TableMeta) AllCols() ColSet {
	var cols ColSet
	for i, n := 0, tm.Table.ColumnCount(); i < n; i++ {
		cols.Add(int(tm.MetaID.ColumnID(i)))
	}
	return cols
}

// IndexColumns returns the key columns of the given index.
func (tm *TableMeta) IndexColumns(indexOrd int) ColSet {
	var cols ColSet
	for _, c := range tm.Table.Index(indexOrd).Columns {
		cols.Add(int(tm.MetaID.ColumnID(c.Ordinal)))
	}
	return cols
}

// IndexOrdering returns the ordering provided by scanning the given index.
func (tm *TableMeta) IndexOrdering(indexOrd int) Ordering {
	idx := tm.Table.Index(indexOrd)
	ord := make(Ordering, len(idx.Columns))
	for i, c := range idx.Columns {
		ord[i] = MakeOrderingColumn(tm.MetaID.ColumnID(c.Ordinal), c.Descending)
	}
	return ord
}

// DistributionCols returns the hash distribution key columns of the table, or
// nil if the table is not hash distributed.
func (tm *TableMeta) DistributionCols() ColList {
	d := tm.Table.Distribution()
	if d.Type != cat.DistributeByHash {
		return nil
	}
	cols := make(ColList, len(d.KeyColumns))
	for i, ord := range d.KeyColumns {
		cols[i] = tm.MetaID.ColumnID(ord)
	}
	return cols
}
