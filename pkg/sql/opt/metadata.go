// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"strings"

	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/errors"
)

// Metadata assigns unique ids to the columns and tables that are referenced
// by an expression tree. A table that is referenced twice (e.g. a self join)
// is added twice and gets two distinct sets of column ids.
//
// ColumnIDs are assigned sequentially starting at 1. A table's columns occupy
// a contiguous range, so TableID.ColumnID can compute a column id from its
// ordinal without a lookup.
//
// Metadata is populated before optimization starts and is treated as
// read-only by the search, which makes it safe to share between workers.
type Metadata struct {
	cols   []ColumnMeta
	tables []TableMeta
}

// ColumnMeta stores information about one of the columns stored in the
// metadata.
type ColumnMeta struct {
	// MetaID is the identifier for this column that is unique within the query
	// metadata.
	MetaID ColumnID

	// Alias is the name of the column. For base table columns it is the
	// catalog column name.
	Alias string

	// Type is the coarse type of the column.
	Type cat.ColumnType

	// Table is the base table that contains the column, or zero for columns
	// synthesized by projections and aggregations.
	Table TableID
}

// Init prepares the metadata for use (or reuse).
func (md *Metadata) Init() {
	*md = Metadata{}
}

// AddTable indexes a new reference to a table within the query. Separate
// references to the same table are assigned different table ids (e.g. in a
// self-join query). All columns are added to the metadata.
func (md *Metadata) AddTable(tab cat.Table, alias string) TableID {
	if alias == "" {
		alias = tab.Name()
	}
	tabID := makeTableID(len(md.tables), ColumnID(len(md.cols)+1))
	md.tables = append(md.tables, TableMeta{MetaID: tabID, Table: tab, Alias: alias})
	for i, n := 0, tab.ColumnCount(); i < n; i++ {
		col := tab.Column(i)
		md.cols = append(md.cols, ColumnMeta{
			MetaID: ColumnID(len(md.cols) + 1),
			Alias:  col.Name,
			Type:   col.Type,
			Table:  tabID,
		})
	}
	return tabID
}

// AddColumn assigns a new unique id to a column synthesized by a projection
// or aggregation.
func (md *Metadata) AddColumn(alias string, typ cat.ColumnType) ColumnID {
	colID := ColumnID(len(md.cols) + 1)
	md.cols = append(md.cols, ColumnMeta{MetaID: colID, Alias: alias, Type: typ})
	return colID
}

// NumColumns returns the count of columns tracked by this Metadata instance.
func (md *Metadata) NumColumns() int {
	return len(md.cols)
}

// ColumnMeta looks up the metadata for the column associated with the given
// column id. The metadata object is returned by reference for efficiency.
func (md *Metadata) ColumnMeta(colID ColumnID) *ColumnMeta {
	return &md.cols[colID.index()]
}

// HasColumn returns true if the column id was assigned by this metadata.
func (md *Metadata) HasColumn(colID ColumnID) bool {
	return colID > 0 && colID.index() < len(md.cols)
}

// TableMeta looks up the metadata for the table associated with the given
// table id. The metadata object is returned by reference for efficiency.
func (md *Metadata) TableMeta(tabID TableID) *TableMeta {
	return &md.tables[tabID.index()]
}

// HasTable returns true if the table id was assigned by this metadata.
func (md *Metadata) HasTable(tabID TableID) bool {
	idx := tabID.index()
	return idx >= 0 && idx < len(md.tables) && md.tables[idx].MetaID == tabID
}

// Table looks up the catalog table associated with the given metadata id. The
// same table can be associated with multiple metadata ids.
func (md *Metadata) Table(tabID TableID) cat.Table {
	return md.TableMeta(tabID).Table
}

// AllTables returns the metadata for all tables. The result must not be
// modified.
func (md *Metadata) AllTables() []TableMeta {
	return md.tables
}

// ColumnLabel returns the label of the given column, qualified with the table
// alias for base table columns, e.g. "a.x".
func (md *Metadata) ColumnLabel(colID ColumnID) string {
	if !md.HasColumn(colID) {
		return "@" + itoa(int(colID))
	}
	col := md.ColumnMeta(colID)
	if col.Table == 0 {
		return col.Alias
	}
	return md.TableMeta(col.Table).Alias + "." + col.Alias
}

// ColumnByLabel resolves a column reference. Qualified references ("a.x") are
// matched against table aliases; unqualified references must be unambiguous.
func (md *Metadata) ColumnByLabel(label string) (ColumnID, error) {
	var qual, name string
	if i := strings.IndexByte(label, '.'); i >= 0 {
		qual, name = label[:i], label[i+1:]
	} else {
		name = label
	}
	var found ColumnID
	for i := range md.cols {
		col := &md.cols[i]
		if col.Alias != name {
			continue
		}
		if qual != "" && (col.Table == 0 || md.TableMeta(col.Table).Alias != qual) {
			continue
		}
		if found != 0 {
			return 0, opterrors.MalformedInputf("column reference %q is ambiguous", label)
		}
		found = col.MetaID
	}
	if found == 0 {
		return 0, opterrors.MalformedInputf("column %q does not exist", label)
	}
	return found, nil
}

// CheckColumns returns a MalformedInput error if any column in cols was not
// assigned by this metadata.
func (md *Metadata) CheckColumns(cols ColSet) error {
	var err error
	cols.ForEach(func(i int) {
		if err == nil && !md.HasColumn(ColumnID(i)) {
			err = errors.WithDetailf(
				opterrors.MalformedInputf("unknown column @%d", i), "metadata has %d columns", len(md.cols),
			)
		}
	})
	return err
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	pos := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}
