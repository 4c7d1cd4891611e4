// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opttester

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/exec/explain"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optconfig"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optgen/exprgen"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opttrace"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/cascades/pkg/sql/opt/xform"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
)

// OptTester is a helper for testing the various optimizer components. It
// contains the boiler-plate code for the following useful tasks:
//   - Build an expression tree from its text form
//   - Optimize it and format the lowest cost plan
//   - Format the optimizer memo structure
//   - Explain the plan
//   - Report which rules fired and which search events happened
//
// The OptTester is used by tests in various sub-packages of the opt package.
type OptTester struct {
	Flags Flags

	catalog   *testcat.Catalog
	input     string
	ctx       context.Context
	md        opt.Metadata
	rec       opttrace.Recorder
	seenRules opt.RuleSet
}

// Flags are control knobs for tests. Note that specific testcases can
// override these defaults.
type Flags struct {
	// ExprFormat controls the output detail of build and opt command
	// directives.
	ExprFormat memo.ExprFmtFlags

	// MemoFormat controls the output detail of memo command directives.
	MemoFormat memo.FmtFlags

	// Explain controls the output of explain command directives.
	Explain explain.Flags

	// Required are the physical properties required of the plan, in the form
	// accepted by physical.ParseRequired.
	Required []string

	// Overrides are configuration settings that replace the defaults.
	Overrides map[string]interface{}

	// DisableRules is a set of rules that are not allowed to run.
	DisableRules []string

	// ExpectedRules is a set of rules which must be exercised for the test to
	// pass.
	ExpectedRules opt.RuleSet

	// UnexpectedRules is a set of rules which must not be exercised for the
	// test to pass.
	UnexpectedRules opt.RuleSet

	// Events restricts the trace output to events of the given kinds.
	Events []opttrace.EventKind

	// Verbose indicates whether verbose test debugging information will be
	// output to stdout when commands run. Only certain commands support this.
	Verbose bool
}

// New constructs a new instance of the OptTester for the given input
// expression. Tables referenced by the input are resolved with the catalog.
func New(catalog *testcat.Catalog, input string) *OptTester {
	ot := &OptTester{
		catalog: catalog,
		input:   input,
		ctx:     context.Background(),
	}
	ot.md.Init()
	return ot
}

// RunCommand implements commands that are used by most tests:
//
//   - exec-yaml
//
//     Adds the tables defined by a YAML schema document to the test catalog.
//
//   - build [flags]
//
//     Builds an expression tree from its text form and outputs it without
//     any optimization applied to it.
//
//   - opt [flags]
//
//     Builds an expression tree, fully optimizes it using the memo, and then
//     outputs the lowest cost plan.
//
//   - explain [flags]
//
//     Like opt, but outputs the plan in explain form.
//
//   - memo [flags]
//
//     Builds an expression tree, fully optimizes it using the memo, and then
//     outputs the memo containing the forest of trees and the winners of each
//     group.
//
//   - rulestats [flags]
//
//     Performs the optimization and outputs statistics about applied rules.
//
//   - trace [flags]
//
//     Performs the optimization and outputs the search events.
//
// Supported flags:
//
//   - format: controls the formatting of expressions for build and opt
//     commands. Possible values: show-all, hide-all, or any combination of
//     hide-stats, hide-cost, hide-provided, hide-privates. For example:
//     opt format=(hide-cost,hide-stats)
//
//   - raw: show the memo groups in creation order, including orphans.
//
//   - explain: explain options, e.g. explain=(verbose,deflake).
//
//   - ordering, distribution, rewind: the properties required of the plan,
//     e.g. ordering=(+a.x,-a.y) distribution=hash(a.x) rewind.
//
//   - set: configuration overrides, e.g. set=(budget.max_jobs=10,workers=4).
//
//   - disable: disables optimizer rules by name. Examples:
//     opt disable=CommuteJoin
//     opt disable=(GenerateMergeJoin,EnforceSort)
//
//   - expect: fail the test if the rules specified by name do not match.
//
//   - expect-not: fail the test if the rules specified by name match.
//
//   - events: the event kinds shown by trace: group, rule, winner, state.
func (ot *OptTester) RunCommand(tb testing.TB, d *datadriven.TestData) string {
	// Allow testcases to override the flags.
	for _, a := range d.CmdArgs {
		if err := ot.Flags.Set(a); err != nil {
			d.Fatalf(tb, "%s", err)
		}
	}

	ot.Flags.Verbose = testing.Verbose()

	switch d.Cmd {
	case "exec-yaml":
		if err := ot.catalog.ExecuteYAML(d.Input); err != nil {
			d.Fatalf(tb, "%v", err)
		}
		return ""

	case "build":
		e, err := ot.Build()
		if err != nil {
			return formatError(err)
		}
		return e.Format(&ot.md)

	case "opt":
		plan, err := ot.Optimize()
		if err != nil {
			return formatError(err)
		}
		if err := ot.checkExpectedRules(); err != nil {
			tb.Fatal(err)
		}
		return plan.FormatString(ot.Flags.ExprFormat)

	case "explain":
		plan, err := ot.Optimize()
		if err != nil {
			return formatError(err)
		}
		if err := ot.checkExpectedRules(); err != nil {
			tb.Fatal(err)
		}
		res, err := explain.Format(plan, ot.Flags.Explain)
		if err != nil {
			d.Fatalf(tb, "%+v", err)
		}
		return res

	case "memo":
		result, err := ot.Memo()
		if err != nil {
			return formatError(err)
		}
		return result

	case "rulestats":
		result, err := ot.RuleStats()
		if err != nil {
			return formatError(err)
		}
		return result

	case "trace":
		result, err := ot.Trace()
		if err != nil {
			return formatError(err)
		}
		return result

	default:
		d.Fatalf(tb, "unsupported command: %s", d.Cmd)
		return ""
	}
}

// formatError outputs the kind of an optimizer error along with its message.
func formatError(err error) string {
	kind := "error"
	switch {
	case opterrors.IsMalformedInput(err):
		kind = "error (malformed input)"
	case opterrors.IsNoFeasiblePlan(err):
		kind = "error (no feasible plan)"
	case opterrors.IsResourceExceeded(err):
		kind = "error (resource exceeded)"
	case opterrors.IsRuleContractViolation(err):
		kind = "error (rule contract violation)"
	}
	return fmt.Sprintf("%s: %s\n", kind, strings.TrimSpace(err.Error()))
}

func formatRuleSet(r opt.RuleSet) string {
	var buf bytes.Buffer
	comma := false
	for i, ok := r.Next(0); ok; i, ok = r.Next(i + 1) {
		if comma {
			buf.WriteString(", ")
		}
		comma = true
		fmt.Fprintf(&buf, "%v", opt.RuleName(i))
	}
	return buf.String()
}

func (ot *OptTester) checkExpectedRules() error {
	if !ot.Flags.ExpectedRules.SubsetOf(ot.seenRules) {
		unseen := ot.Flags.ExpectedRules.Difference(ot.seenRules)
		return errors.Newf("expected to see %s, but was not triggered. Did see %s",
			formatRuleSet(unseen), formatRuleSet(ot.seenRules))
	}

	if ot.Flags.UnexpectedRules.Intersects(ot.seenRules) {
		seen := ot.Flags.UnexpectedRules.Intersection(ot.seenRules)
		return errors.Newf("expected not to see %s, but it was triggered", formatRuleSet(seen))
	}

	return nil
}

func ruleNamesToRuleSet(args []string) (opt.RuleSet, error) {
	var result opt.RuleSet
	for _, r := range args {
		rn, err := ruleFromString(r)
		if err != nil {
			return result, err
		}
		result.Add(int(rn))
	}
	return result, nil
}

var eventKinds = map[string]opttrace.EventKind{
	"group":  opttrace.GroupCreatedEvent,
	"rule":   opttrace.RuleFiredEvent,
	"winner": opttrace.WinnerUpdatedEvent,
	"state":  opttrace.StateChangedEvent,
}

// Set parses an argument that refers to a flag.
// See OptTester.RunCommand for supported flags.
func (f *Flags) Set(arg datadriven.CmdArg) error {
	switch arg.Key {
	case "format":
		f.ExprFormat = 0
		if len(arg.Vals) == 0 {
			return errors.Newf("format flag requires value(s)")
		}
		for _, v := range arg.Vals {
			m := map[string]memo.ExprFmtFlags{
				"show-all":      memo.ExprFmtShowAll,
				"hide-all":      memo.ExprFmtHideAll,
				"hide-stats":    memo.ExprFmtHideStats,
				"hide-cost":     memo.ExprFmtHideCost,
				"hide-provided": memo.ExprFmtHideProvided,
				"hide-privates": memo.ExprFmtHidePrivates,
			}
			if val, ok := m[v]; ok {
				f.ExprFormat |= val
			} else {
				return errors.Newf("unknown format value %s", v)
			}
		}

	case "raw":
		f.MemoFormat = memo.FmtRaw

	case "explain":
		var err error
		if f.Explain, err = explain.MakeFlags(arg.Vals...); err != nil {
			return err
		}

	case "ordering":
		if len(arg.Vals) == 0 {
			return errors.Newf("ordering requires columns")
		}
		f.Required = append(f.Required, "ordering="+strings.Join(arg.Vals, ","))

	case "distribution":
		if len(arg.Vals) == 0 {
			return errors.Newf("distribution requires a value")
		}
		f.Required = append(f.Required, "distribution="+strings.Join(arg.Vals, ","))

	case "rewind":
		f.Required = append(f.Required, "rewind")

	case "set":
		if f.Overrides == nil {
			f.Overrides = make(map[string]interface{})
		}
		for _, v := range arg.Vals {
			key, val, ok := strings.Cut(v, "=")
			if !ok {
				return errors.Newf("expected <setting>=<value>, found %s", v)
			}
			f.Overrides[key] = val
		}

	case "disable":
		if len(arg.Vals) == 0 {
			return errors.Newf("disable requires arguments")
		}
		for _, s := range arg.Vals {
			if _, err := ruleFromString(s); err != nil {
				return err
			}
			f.DisableRules = append(f.DisableRules, s)
		}

	case "expect":
		var err error
		if f.ExpectedRules, err = ruleNamesToRuleSet(arg.Vals); err != nil {
			return err
		}

	case "expect-not":
		var err error
		if f.UnexpectedRules, err = ruleNamesToRuleSet(arg.Vals); err != nil {
			return err
		}

	case "events":
		for _, v := range arg.Vals {
			kind, ok := eventKinds[v]
			if !ok {
				return errors.Newf("unknown event kind %s", v)
			}
			f.Events = append(f.Events, kind)
		}

	default:
		return errors.Newf("unknown argument: %s", arg.Key)
	}
	return nil
}

// Build constructs an expression tree from the input, with no
// transformations applied to it.
func (ot *OptTester) Build() (*opt.Expr, error) {
	return exprgen.Build(ot.catalog, &ot.md, ot.input)
}

// Config returns the optimizer configuration with the overrides and the
// disabled rules of the flags applied.
func (ot *OptTester) Config() (optconfig.Config, error) {
	cfg := optconfig.Default()
	cfg.DisabledRules = append(cfg.DisabledRules, ot.Flags.DisableRules...)
	if err := cfg.Validate(); err != nil {
		return optconfig.Config{}, err
	}
	if len(ot.Flags.Overrides) == 0 {
		return cfg, nil
	}
	return cfg.WithOverrides(ot.Flags.Overrides)
}

// Optimize builds the input and returns the lowest cost plan that provides
// the required properties.
func (ot *OptTester) Optimize() (*xform.Plan, error) {
	plan, _, err := ot.optimize()
	return plan, err
}

// Memo returns a string that shows the memo data structure that is
// constructed by the optimizer. The memo is shown even if no plan was found.
func (ot *OptTester) Memo() (string, error) {
	_, o, err := ot.optimize()
	if o == nil {
		return "", err
	}
	var buf strings.Builder
	if err != nil {
		buf.WriteString(formatError(err))
	}
	buf.WriteString(o.Memo().FormatString(ot.Flags.MemoFormat))
	return buf.String(), nil
}

func (ot *OptTester) optimize() (*xform.Plan, *xform.Optimizer, error) {
	root, err := ot.Build()
	if err != nil {
		return nil, nil, err
	}
	required, err := physical.ParseRequired(&ot.md, strings.Join(ot.Flags.Required, " "))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := ot.Config()
	if err != nil {
		return nil, nil, err
	}

	ot.rec.Reset()
	var o xform.Optimizer
	o.Init(&ot.md, &cfg)
	o.SetTracer(&ot.rec)
	plan, err := o.Optimize(ot.ctx, root, required)
	for _, e := range ot.rec.Filter(opttrace.RuleFiredEvent) {
		if e.Outputs > 0 {
			ot.seenRules.Add(int(e.Rule))
		}
	}
	if plan != nil {
		plan.Root.Walk(func(n *xform.PlanNode) bool {
			switch n.Op {
			case opt.SortOp:
				ot.seenRules.Add(int(opt.EnforceSort))
			case opt.RedistributeOp, opt.GatherOp, opt.BroadcastOp:
				ot.seenRules.Add(int(opt.EnforceDistribution))
			case opt.SpoolOp:
				ot.seenRules.Add(int(opt.EnforceRewind))
			}
			return true
		})
	}
	if err != nil && ot.Flags.Verbose {
		fmt.Printf("optimization failed: %+v\n", err)
	}
	return plan, &o, err
}

// RuleStats performs the optimization and returns statistics about how many
// rules were applied.
func (ot *OptTester) RuleStats() (string, error) {
	if _, _, err := ot.optimize(); err != nil {
		return "", err
	}

	type ruleStats struct {
		rule       opt.RuleName
		numApplied int
		numAdded   int
	}
	stats := make([]ruleStats, opt.NumRuleNames)
	for i := range stats {
		stats[i].rule = opt.RuleName(i)
	}
	for _, e := range ot.rec.Filter(opttrace.RuleFiredEvent) {
		stats[e.Rule].numApplied++
		stats[e.Rule].numAdded += e.Outputs
	}

	// Split the rules.
	var explore, implement []ruleStats
	var allExplore, allImplement ruleStats
	for i := range stats {
		if stats[i].numApplied == 0 {
			continue
		}
		if stats[i].rule.IsExplore() {
			allExplore.numApplied += stats[i].numApplied
			allExplore.numAdded += stats[i].numAdded
			explore = append(explore, stats[i])
		} else {
			allImplement.numApplied += stats[i].numApplied
			allImplement.numAdded += stats[i].numAdded
			implement = append(implement, stats[i])
		}
	}
	// Sort with most applied rules first.
	sort.SliceStable(explore, func(i, j int) bool {
		return explore[i].numApplied > explore[j].numApplied
	})
	sort.SliceStable(implement, func(i, j int) bool {
		return implement[i].numApplied > implement[j].numApplied
	})

	// Only show the top 5 rules.
	const topK = 5
	if len(explore) > topK {
		explore = explore[:topK]
	}
	if len(implement) > topK {
		implement = implement[:topK]
	}

	// Ready to report.
	var res strings.Builder
	report := func(kind string, all ruleStats, top []ruleStats) {
		fmt.Fprintf(
			&res, "%s rules applied %d times, added %d expressions.\n",
			strings.ToUpper(kind[:1])+kind[1:], all.numApplied, all.numAdded,
		)
		if len(top) == 0 {
			return
		}
		fmt.Fprintf(&res, "Top %s rules:\n", kind)
		tw := tabwriter.NewWriter(&res, 1 /* minwidth */, 1 /* tabwidth */, 1 /* padding */, ' ', 0)
		for _, s := range top {
			fmt.Fprintf(
				tw, "  %s\tapplied\t%d\ttimes, added\t%d\texpressions.\n", s.rule, s.numApplied, s.numAdded,
			)
		}
		_ = tw.Flush()
	}
	report("exploration", allExplore, explore)
	report("implementation", allImplement, implement)
	return res.String(), nil
}

// Trace performs the optimization and returns the recorded search events,
// one per line, restricted to the kinds selected by the flags.
func (ot *OptTester) Trace() (string, error) {
	_, _, err := ot.optimize()
	var res strings.Builder
	for _, e := range ot.rec.Events() {
		if len(ot.Flags.Events) > 0 && !containsKind(ot.Flags.Events, e.Kind) {
			continue
		}
		res.WriteString(e.String())
		res.WriteByte('\n')
	}
	if err != nil {
		res.WriteString(formatError(err))
	}
	return res.String(), nil
}

func containsKind(kinds []opttrace.EventKind, kind opttrace.EventKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ruleFromString returns the rule that matches the given string,
// or InvalidRuleName if there is no such rule.
func ruleFromString(str string) (opt.RuleName, error) {
	if r, ok := opt.RuleNameFromString(str); ok {
		return r, nil
	}
	return opt.InvalidRuleName, errors.Newf("rule '%s' does not exist", str)
}
