// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"testing"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optconfig"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optgen/exprgen"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opttrace"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/sql/opt/testutils/testcat"
	"github.com/stretchr/testify/require"
)

// testEnv builds expressions over the builtin test tables and optimizes
// them.
type testEnv struct {
	catalog *testcat.Catalog
	md      *opt.Metadata
	cfg     optconfig.Config
	rec     *opttrace.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{catalog: testcat.New(), md: &opt.Metadata{}, cfg: optconfig.Default(), rec: &opttrace.Recorder{}}
	env.md.Init()
	require.NoError(t, env.cfg.Validate())
	return env
}

// disable turns off the given rules.
func (env *testEnv) disable(t *testing.T, rules ...opt.RuleName) {
	t.Helper()
	for _, r := range rules {
		env.cfg.DisabledRules = append(env.cfg.DisabledRules, r.String())
	}
	require.NoError(t, env.cfg.Validate())
}

func (env *testEnv) build(t *testing.T, input string) *opt.Expr {
	t.Helper()
	e, err := exprgen.Build(env.catalog, env.md, input)
	require.NoError(t, err)
	return e
}

func (env *testEnv) required(t *testing.T, s string) *physical.Required {
	t.Helper()
	req, err := physical.ParseRequired(env.md, s)
	require.NoError(t, err)
	return req
}

func (env *testEnv) col(t *testing.T, label string) opt.ColumnID {
	t.Helper()
	col, err := env.md.ColumnByLabel(label)
	require.NoError(t, err)
	return col
}

// newOptimizer returns an optimizer that records its events in env.rec.
func (env *testEnv) newOptimizer() *Optimizer {
	var o Optimizer
	o.Init(env.md, &env.cfg)
	o.SetTracer(env.rec)
	return &o
}

// optimize builds the input and optimizes it for the required properties.
func (env *testEnv) optimize(t *testing.T, input, required string) (*Plan, *Optimizer, error) {
	t.Helper()
	root := env.build(t, input)
	o := env.newOptimizer()
	plan, err := o.Optimize(context.Background(), root, env.required(t, required))
	return plan, o, err
}

// mustOptimize is like optimize, but fails the test on error.
func (env *testEnv) mustOptimize(t *testing.T, input, required string) (*Plan, *Optimizer) {
	t.Helper()
	plan, o, err := env.optimize(t, input, required)
	require.NoError(t, err)
	require.NotNil(t, plan)
	return plan, o
}

// ops returns the operators of the plan in depth-first order.
func ops(p *Plan) []opt.Operator {
	var res []opt.Operator
	p.Root.Walk(func(n *PlanNode) bool {
		res = append(res, n.Op)
		return true
	})
	return res
}
