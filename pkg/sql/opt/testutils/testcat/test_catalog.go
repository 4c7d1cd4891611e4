// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/cascades/pkg/sql/opt/cat"
	"github.com/cockroachdb/cascades/pkg/util/treeprinter"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Catalog implements the cat.Catalog interface for testing purposes. Tables
// are defined with YAML documents, for example:
//
//	tables:
//	- name: a
//	  rows: 1000
//	  distribution: hash(x)
//	  columns:
//	  - {name: x, type: int, distinct: 1000}
//	  - {name: y, type: string, distinct: 10, nullable: true, nulls: 100}
//	  indexes:
//	  - {name: a_y_idx, columns: [y, -x]}
type Catalog struct {
	tables map[string]*Table
}

var _ cat.Catalog = &Catalog{}

// New creates a new empty instance of the test catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

// ResolveTable is part of the cat.Catalog interface.
func (tc *Catalog) ResolveTable(name string) (cat.Table, error) {
	if tab, ok := tc.tables[name]; ok {
		return tab, nil
	}
	// If we didn't find the table in the catalog, try to lazily resolve it as
	// a builtin table.
	if def, ok := resolveBuiltin(name); ok {
		tab, err := def.build()
		if err != nil {
			return nil, err
		}
		tc.AddTable(tab)
		return tab, nil
	}
	return nil, errors.Newf("table %q does not exist", name)
}

// Table returns the test table that was previously added with the given
// name.
func (tc *Catalog) Table(name string) *Table {
	tab, err := tc.ResolveTable(name)
	if err != nil {
		panic(err)
	}
	return tab.(*Table)
}

// AddTable adds the given test table to the catalog.
func (tc *Catalog) AddTable(tab *Table) {
	if _, ok := tc.tables[tab.TabName]; ok {
		panic(errors.AssertionFailedf("table %q already exists", tab.TabName))
	}
	tc.tables[tab.TabName] = tab
}

// TableNames returns the names of all tables in the catalog, sorted.
func (tc *Catalog) TableNames() []string {
	names := make([]string, 0, len(tc.tables))
	for name := range tc.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// schemaDef is the YAML form of a set of table definitions.
type schemaDef struct {
	Tables []tableDef `yaml:"tables"`
}

type tableDef struct {
	Name         string              `yaml:"name"`
	Rows         float64             `yaml:"rows"`
	Distribution string              `yaml:"distribution"`
	Columns      []columnDef         `yaml:"columns"`
	Indexes      []indexDef          `yaml:"indexes"`
	Histograms   map[string][]bucket `yaml:"histograms"`
}

type columnDef struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Nullable bool    `yaml:"nullable"`
	Distinct float64 `yaml:"distinct"`
	Nulls    float64 `yaml:"nulls"`
	Width    float64 `yaml:"width"`
}

type indexDef struct {
	Name     string   `yaml:"name"`
	Columns  []string `yaml:"columns"`
	Covering bool     `yaml:"covering"`
}

type bucket struct {
	Upper    float64 `yaml:"upper"`
	Eq       float64 `yaml:"eq"`
	Range    float64 `yaml:"range"`
	Distinct float64 `yaml:"distinct"`
}

// ExecuteYAML parses the given YAML schema document and adds every table it
// defines to the catalog.
func (tc *Catalog) ExecuteYAML(def string) error {
	var schema schemaDef
	if err := yaml.Unmarshal([]byte(def), &schema); err != nil {
		return errors.Wrap(err, "parsing catalog definition")
	}
	for i := range schema.Tables {
		tab, err := schema.Tables[i].build()
		if err != nil {
			return err
		}
		if _, ok := tc.tables[tab.TabName]; ok {
			return errors.Newf("table %q already exists", tab.TabName)
		}
		tc.AddTable(tab)
	}
	return nil
}

func (td *tableDef) build() (*Table, error) {
	if td.Name == "" {
		return nil, errors.New("table definition without a name")
	}
	tab := &Table{TabName: td.Name}
	tab.Stats.RowCount = td.Rows
	for _, cd := range td.Columns {
		typ := cat.IntType
		if cd.Type != "" {
			var ok bool
			if typ, ok = cat.ColumnTypeByName(cd.Type); !ok {
				return nil, errors.Newf("table %s: unknown type %q for column %s", td.Name, cd.Type, cd.Name)
			}
		}
		if tab.FindOrdinal(cd.Name) >= 0 {
			return nil, errors.Newf("table %s: duplicate column %s", td.Name, cd.Name)
		}
		tab.Columns = append(tab.Columns, &cat.Column{Name: cd.Name, Type: typ, Nullable: cd.Nullable})
		tab.Stats.ColumnStatistics = append(tab.Stats.ColumnStatistics, cat.ColumnStatistic{
			DistinctCount: cd.Distinct,
			NullCount:     cd.Nulls,
			AvgWidth:      cd.Width,
		})
	}
	for colName, buckets := range td.Histograms {
		ord := tab.FindOrdinal(colName)
		if ord < 0 {
			return nil, errors.Newf("table %s: histogram on unknown column %s", td.Name, colName)
		}
		hist := make([]cat.HistogramBucket, len(buckets))
		for i, b := range buckets {
			hist[i] = cat.HistogramBucket{
				NumEq: b.Eq, NumRange: b.Range, DistinctRange: b.Distinct, UpperBound: b.Upper,
			}
		}
		tab.Stats.ColumnStatistics[ord].Histogram = hist
	}
	for _, id := range td.Indexes {
		idx := &cat.Index{Name: id.Name, Covering: id.Covering}
		for _, c := range id.Columns {
			desc := strings.HasPrefix(c, "-")
			ord := tab.FindOrdinal(strings.TrimLeft(c, "+-"))
			if ord < 0 {
				return nil, errors.Newf("table %s: index %s on unknown column %s", td.Name, id.Name, c)
			}
			idx.Columns = append(idx.Columns, cat.IndexColumn{Ordinal: ord, Descending: desc})
		}
		tab.Indexes = append(tab.Indexes, idx)
	}
	dist, err := tab.parseDistribution(td.Distribution)
	if err != nil {
		return nil, err
	}
	tab.Dist = dist
	return tab, nil
}

func (tt *Table) parseDistribution(s string) (cat.Distribution, error) {
	switch s {
	case "", "random":
		return cat.Distribution{Type: cat.DistributeRandomly}, nil
	case "replicated":
		return cat.Distribution{Type: cat.DistributeReplicated}, nil
	case "singleton":
		return cat.Distribution{Type: cat.DistributeSingleton}, nil
	}
	if strings.HasPrefix(s, "hash(") && strings.HasSuffix(s, ")") {
		d := cat.Distribution{Type: cat.DistributeByHash}
		for _, name := range strings.Split(s[len("hash("):len(s)-1], ",") {
			ord := tt.FindOrdinal(strings.TrimSpace(name))
			if ord < 0 {
				return cat.Distribution{}, errors.Newf(
					"table %s: distribution key on unknown column %s", tt.TabName, name)
			}
			d.KeyColumns = append(d.KeyColumns, ord)
		}
		return d, nil
	}
	return cat.Distribution{}, errors.Newf("table %s: invalid distribution %q", tt.TabName, s)
}

// Table implements the cat.Table interface for testing purposes.
type Table struct {
	TabName string
	Columns []*cat.Column
	Indexes []*cat.Index
	Stats   cat.TableStatistics
	Dist    cat.Distribution
}

var _ cat.Table = &Table{}

func (tt *Table) String() string {
	tp := treeprinter.New()
	n := tp.Childf("TABLE %s", tt.TabName)
	for _, c := range tt.Columns {
		nullable := " not null"
		if c.Nullable {
			nullable = ""
		}
		n.Childf("%s %s%s", c.Name, c.Type, nullable)
	}
	for _, idx := range tt.Indexes {
		var cols []string
		for _, c := range idx.Columns {
			dir := "+"
			if c.Descending {
				dir = "-"
			}
			cols = append(cols, dir+tt.Columns[c.Ordinal].Name)
		}
		n.Childf("INDEX %s (%s)", idx.Name, strings.Join(cols, ","))
	}
	switch tt.Dist.Type {
	case cat.DistributeByHash:
		var cols []string
		for _, ord := range tt.Dist.KeyColumns {
			cols = append(cols, tt.Columns[ord].Name)
		}
		n.Childf("DISTRIBUTED BY HASH (%s)", strings.Join(cols, ","))
	case cat.DistributeReplicated:
		n.Child("DISTRIBUTED REPLICATED")
	case cat.DistributeSingleton:
		n.Child("DISTRIBUTED SINGLETON")
	default:
		n.Child("DISTRIBUTED RANDOMLY")
	}
	n.Child(fmt.Sprintf("ROWS %g", tt.Stats.RowCount))
	return tp.String()
}

// Name is part of the cat.Table interface.
func (tt *Table) Name() string {
	return tt.TabName
}

// ColumnCount is part of the cat.Table interface.
func (tt *Table) ColumnCount() int {
	return len(tt.Columns)
}

// Column is part of the cat.Table interface.
func (tt *Table) Column(i int) *cat.Column {
	return tt.Columns[i]
}

// IndexCount is part of the cat.Table interface.
func (tt *Table) IndexCount() int {
	return len(tt.Indexes)
}

// Index is part of the cat.Table interface.
func (tt *Table) Index(i int) *cat.Index {
	return tt.Indexes[i]
}

// Statistics is part of the cat.Table interface.
func (tt *Table) Statistics() *cat.TableStatistics {
	return &tt.Stats
}

// Distribution is part of the cat.Table interface.
func (tt *Table) Distribution() cat.Distribution {
	return tt.Dist
}

// FindOrdinal returns the ordinal of the column with the given name, or -1.
func (tt *Table) FindOrdinal(name string) int {
	for i, col := range tt.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}
