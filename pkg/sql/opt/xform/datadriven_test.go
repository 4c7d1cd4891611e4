// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/testutils/opttester"
	"github.com/cockroachdb/cascades/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/cascades/pkg/util/log"
	"github.com/cockroachdb/datadriven"
)

// TestOptimizerDataDriven runs data-driven testcases of the form
//
//	<command> [flags]
//	<expression>
//	----
//	<expected results>
//
// See OptTester.RunCommand for supported commands.
func TestOptimizerDataDriven(t *testing.T) {
	defer log.Scope(t).Close(t)
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		catalog := testcat.New()
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			tester := opttester.New(catalog, d.Input)
			tester.Flags.ExprFormat = memo.ExprFmtHideAll
			return tester.RunCommand(t, d)
		})
	})
}
