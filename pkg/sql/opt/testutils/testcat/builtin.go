// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// builtinSchema defines tables that every test catalog resolves lazily, so
// that tests can refer to them without a catalog definition. a, b, c and d
// share the join column x; e is small and replicated; s is a singleton.
const builtinSchema = `
tables:
- name: a
  rows: 1000
  distribution: hash(x)
  columns:
  - {name: x, type: int, distinct: 1000}
  - {name: y, type: int, distinct: 100}
  - {name: z, type: string, distinct: 10, nullable: true, nulls: 10}
  indexes:
  - {name: a_y_idx, columns: [y], covering: true}
  histograms:
    y:
    - {upper: 0, eq: 10}
    - {upper: 50, eq: 10, range: 490, distinct: 49}
    - {upper: 99, eq: 10, range: 480, distinct: 48}
- name: b
  rows: 10000
  distribution: hash(x)
  columns:
  - {name: x, type: int, distinct: 1000}
  - {name: y, type: int, distinct: 5000}
  indexes:
  - {name: b_x_idx, columns: [x, -y], covering: true}
- name: c
  rows: 100
  distribution: random
  columns:
  - {name: x, type: int, distinct: 100}
  - {name: w, type: float, distinct: 50}
- name: d
  rows: 50000
  distribution: hash(k)
  columns:
  - {name: k, type: int, distinct: 50000}
  - {name: x, type: int, distinct: 1000}
  - {name: v, type: string, distinct: 20000, width: 40}
- name: e
  rows: 20
  distribution: replicated
  columns:
  - {name: x, type: int, distinct: 20}
  - {name: name, type: string, distinct: 20}
- name: s
  rows: 5
  distribution: singleton
  columns:
  - {name: x, type: int, distinct: 5}
`

var builtinTables = map[string]*tableDef{}

func init() {
	// Build a map from builtin table names to their definitions.
	var schema schemaDef
	if err := yaml.Unmarshal([]byte(builtinSchema), &schema); err != nil {
		panic(fmt.Sprintf("error initializing builtin table map: %s", err))
	}
	for i := range schema.Tables {
		builtinTables[schema.Tables[i].Name] = &schema.Tables[i]
	}
}

// resolveBuiltin returns true and the definition of the builtin table with
// the given name.
func resolveBuiltin(name string) (*tableDef, bool) {
	def, ok := builtinTables[name]
	return def, ok
}
