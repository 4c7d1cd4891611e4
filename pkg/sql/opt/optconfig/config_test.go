// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optconfig

import (
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
budget:
  max_jobs: 5000
  timeout: 250ms
disabled_rules: [CommuteJoin, EnforceRewind]
workers: 4
cost_weights:
  sort_cost: 0.5
`))
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Budget.MaxJobs)
	require.Equal(t, 250*time.Millisecond, cfg.Budget.Timeout)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 0.5, cfg.CostWeights.SortCost)

	// Settings that are not mentioned keep their defaults.
	require.Equal(t, opt.DefaultNumSegments, cfg.NumSegments)
	require.Equal(t, opt.DefaultMaxBindingsPerRule, cfg.MaxBindingsPerRule)
	require.Equal(t, DefaultCostWeights.CPUTupleCost, cfg.CostWeights.CPUTupleCost)

	require.False(t, cfg.RuleEnabled(opt.CommuteJoin))
	require.False(t, cfg.RuleEnabled(opt.EnforceRewind))
	require.True(t, cfg.RuleEnabled(opt.AssociateJoin))
}

func TestLoad(t *testing.T) {
	cfg, err := Load(strings.NewReader("num_segments: 8\n"))
	require.NoError(t, err)
	require.Equal(t, 8, cfg.NumSegments)
	if diff := pretty.Diff(DefaultCostWeights, cfg.CostWeights); len(diff) > 0 {
		t.Fatalf("unexpected cost weights:\n%s", strings.Join(diff, "\n"))
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		yaml string
		err  string
	}{
		{yaml: "disabled_rules: [NoSuchRule]", err: `unknown rule "NoSuchRule"`},
		{yaml: "workers: 0", err: "workers must be positive"},
		{yaml: "num_segments: -1", err: "num_segments must be positive"},
		{yaml: "max_bindings_per_rule: 0", err: "max_bindings_per_rule must be positive"},
		{yaml: "budget: {max_jobs: -1}", err: "cannot be negative"},
		{yaml: "cost_weights: {spool_cost: 0}", err: "cost weights must be positive"},
		{yaml: "workers: [1", err: "parsing optimizer config"},
	}
	for _, tc := range testCases {
		t.Run(tc.yaml, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestWithOverrides(t *testing.T) {
	base := Default()
	cfg, err := base.WithOverrides(map[string]interface{}{
		"budget.max_jobs":        "100",
		"budget.timeout":         "2s",
		"disabled_rules":         "GenerateMergeJoin,GenerateIndexScans",
		"cost_weights":           map[string]interface{}{"network_cost": 1.5},
		"max_bindings_per_rule":  8,
		"num_segments":           "16",
		"cost_weights.sort_cost": 0.25,
	})
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Budget.MaxJobs)
	require.Equal(t, 2*time.Second, cfg.Budget.Timeout)
	require.Equal(t, 8, cfg.MaxBindingsPerRule)
	require.Equal(t, 16, cfg.NumSegments)
	require.Equal(t, 1.5, cfg.CostWeights.NetworkCost)
	require.Equal(t, 0.25, cfg.CostWeights.SortCost)
	require.Equal(t, DefaultCostWeights.CPUTupleCost, cfg.CostWeights.CPUTupleCost)
	require.False(t, cfg.RuleEnabled(opt.GenerateMergeJoin))
	require.False(t, cfg.RuleEnabled(opt.GenerateIndexScans))

	// The original configuration is unchanged.
	require.Equal(t, 0, base.Budget.MaxJobs)
	require.True(t, base.RuleEnabled(opt.GenerateMergeJoin))

	_, err = base.WithOverrides(map[string]interface{}{"no_such_setting": 1})
	require.Error(t, err)
	_, err = base.WithOverrides(map[string]interface{}{"workers": 0})
	require.ErrorContains(t, err, "workers must be positive")
}
