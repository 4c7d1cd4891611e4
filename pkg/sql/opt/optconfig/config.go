// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package optconfig holds the settings of an optimization: search budgets,
// rule toggles, cost weights and parallelism. A Config is validated once and
// then treated as immutable; the optimizer copies it and threads the copy
// through every job.
package optconfig

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// SearchBudget limits the work done by a single optimization. Zero means no
// limit.
type SearchBudget struct {
	// MaxJobs is the number of scheduler jobs that may be created.
	MaxJobs int `yaml:"max_jobs" mapstructure:"max_jobs"`
	// Timeout bounds the wall clock time of the search.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// MaxGroups and MaxExprs bound the size of the memo.
	MaxGroups int `yaml:"max_groups" mapstructure:"max_groups"`
	MaxExprs  int `yaml:"max_exprs" mapstructure:"max_exprs"`
}

// CostWeights are the unit costs used by the cost model.
type CostWeights struct {
	// CPUTupleCost is the cost of passing one row through an operator.
	CPUTupleCost float64 `yaml:"cpu_tuple_cost" mapstructure:"cpu_tuple_cost"`
	// CPUPredicateCost is the cost of evaluating one predicate or expression
	// on one row.
	CPUPredicateCost float64 `yaml:"cpu_predicate_cost" mapstructure:"cpu_predicate_cost"`
	// SeqIOCost is the cost of reading one byte from a table.
	SeqIOCost float64 `yaml:"seq_io_cost" mapstructure:"seq_io_cost"`
	// IndexIOCost is the cost of reading one byte from an index. It is
	// usually higher than SeqIOCost, so that index scans are only chosen when
	// their ordering is useful.
	IndexIOCost float64 `yaml:"index_io_cost" mapstructure:"index_io_cost"`
	// HashBuildCost is the cost of inserting one row into a hash table.
	HashBuildCost float64 `yaml:"hash_build_cost" mapstructure:"hash_build_cost"`
	// SortCost is the cost of one row comparison during a sort.
	SortCost float64 `yaml:"sort_cost" mapstructure:"sort_cost"`
	// NetworkCost is the cost of sending one byte between segments.
	NetworkCost float64 `yaml:"network_cost" mapstructure:"network_cost"`
	// SpoolCost is the cost of writing one byte to a spool.
	SpoolCost float64 `yaml:"spool_cost" mapstructure:"spool_cost"`
}

// Config is the configuration of an optimization.
type Config struct {
	Budget SearchBudget `yaml:"budget" mapstructure:"budget"`

	// DisabledRules are the names of rules that are never applied. Disabling
	// an enforcer rule (EnforceSort, EnforceDistribution, EnforceRewind)
	// prevents the optimizer from placing the matching enforcers.
	DisabledRules []string `yaml:"disabled_rules" mapstructure:"disabled_rules"`

	// MaxBindingsPerRule caps the number of bindings that a rule enumerates
	// for one expression.
	MaxBindingsPerRule int `yaml:"max_bindings_per_rule" mapstructure:"max_bindings_per_rule"`

	// Workers is the number of goroutines that run the compute phase of rule
	// applications. The plan found does not depend on it.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// NumSegments is the number of segments that execute a distributed plan.
	NumSegments int `yaml:"num_segments" mapstructure:"num_segments"`

	CostWeights CostWeights `yaml:"cost_weights" mapstructure:"cost_weights"`

	// disabled is the set of disabled rules, resolved by Validate.
	disabled opt.RuleSet
}

// DefaultCostWeights are the weights used when none are configured.
var DefaultCostWeights = CostWeights{
	CPUTupleCost:     0.01,
	CPUPredicateCost: 0.0025,
	SeqIOCost:        0.001,
	IndexIOCost:      0.0015,
	HashBuildCost:    0.02,
	SortCost:         0.005,
	NetworkCost:      0.004,
	SpoolCost:        0.002,
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MaxBindingsPerRule: opt.DefaultMaxBindingsPerRule,
		Workers:            1,
		NumSegments:        opt.DefaultNumSegments,
		CostWeights:        DefaultCostWeights,
	}
}

// Parse reads a YAML configuration. Settings that are missing keep their
// default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing optimizer config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is like Parse, but reads the configuration from r.
func Load(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading optimizer config")
	}
	return Parse(data)
}

// WithOverrides returns a copy of the configuration with the given settings
// replaced. Keys are the YAML names; nested settings can be given as nested
// maps or with dotted keys, e.g. "budget.max_jobs". Values may be strings
// and are converted to the type of the setting.
func (c Config) WithOverrides(overrides map[string]interface{}) (Config, error) {
	res := c
	res.DisabledRules = append([]string(nil), c.DisabledRules...)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &res,
	})
	if err != nil {
		return Config{}, errors.NewAssertionErrorWithWrappedErrf(err, "creating config decoder")
	}
	if err := dec.Decode(expandDotted(overrides)); err != nil {
		return Config{}, errors.Wrap(err, "applying optimizer config overrides")
	}
	if err := res.Validate(); err != nil {
		return Config{}, err
	}
	return res, nil
}

// expandDotted turns {"a.b": 1} into {"a": {"b": 1}}.
func expandDotted(m map[string]interface{}) map[string]interface{} {
	res := make(map[string]interface{}, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts := strings.Split(k, ".")
		cur := res
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = m[k]
	}
	return res
}

// Validate checks the configuration and resolves the disabled rule names.
// It must be called before the configuration is used; Default, Parse and
// WithOverrides do so.
func (c *Config) Validate() error {
	if c.Budget.MaxJobs < 0 || c.Budget.MaxGroups < 0 || c.Budget.MaxExprs < 0 || c.Budget.Timeout < 0 {
		return errors.Newf("search budget limits cannot be negative")
	}
	if c.MaxBindingsPerRule <= 0 {
		return errors.Newf("max_bindings_per_rule must be positive, got %d", c.MaxBindingsPerRule)
	}
	if c.Workers <= 0 {
		return errors.Newf("workers must be positive, got %d", c.Workers)
	}
	if c.NumSegments <= 0 {
		return errors.Newf("num_segments must be positive, got %d", c.NumSegments)
	}
	w := &c.CostWeights
	for _, v := range []float64{
		w.CPUTupleCost, w.CPUPredicateCost, w.SeqIOCost, w.IndexIOCost,
		w.HashBuildCost, w.SortCost, w.NetworkCost, w.SpoolCost,
	} {
		// Zero weights would allow an operator to add no cost to its
		// children, and costs must grow with every operator.
		if !(v > 0) {
			return errors.Newf("cost weights must be positive: %+v", *w)
		}
	}
	var disabled opt.RuleSet
	for _, name := range c.DisabledRules {
		r, ok := opt.RuleNameFromString(strings.TrimSpace(name))
		if !ok {
			return errors.Newf("unknown rule %q", name)
		}
		disabled.Add(int(r))
	}
	c.disabled = disabled
	return nil
}

// RuleEnabled returns true if the rule was not disabled.
func (c *Config) RuleEnabled(r opt.RuleName) bool {
	return !c.disabled.Contains(int(r))
}
