// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package fsm

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

func typeName(i interface{}) string {
	s := fmt.Sprintf("%#v", i)
	if strings.HasSuffix(s, "{}") {
		s = s[:len(s)-2]
	}
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		s = s[idx+1:]
	}
	return s
}

func stateName(s State) string { return typeName(s) }
func eventName(e Event) string { return typeName(e) }

// printedName returns the type name of a state or event without its fields.
func printedName(i interface{}) string {
	return reflect.TypeOf(i).Name()
}

// WriteReport writes the reachable transitions, sorted by state and event
// name, one per line in the form "state --event--> next".
func (t Transitions) WriteReport(w *strings.Builder) {
	var lines []string
	for s, sm := range t.expanded {
		for e, tr := range sm {
			lines = append(lines, fmt.Sprintf("%s --%s--> %s",
				printedName(s), printedName(e), printedName(tr.Next)))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
}
