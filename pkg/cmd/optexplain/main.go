// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// optexplain optimizes a logical expression over a test catalog and shows
// the resulting plan, the memo or optimization timings.
//
// Typical usage:
//
//	optexplain plan '(InnerJoin (Scan a) (Scan b) [(Eq a.x b.x)])' --ordering=+a.x
//	optexplain memo --schema=tables.yaml - < query.expr
//	optexplain bench --iterations=100 '(Scan a)'
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optconfig"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optgen/exprgen"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/cascades/pkg/sql/opt/xform"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// options are the flags shared by every subcommand.
type options struct {
	schemaPath   string
	configPath   string
	ordering     string
	distribution string
	rewind       bool
	disable      []string
	workers      int
}

func (o *options) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.schemaPath, "schema", "", "YAML file with table definitions added to the builtin tables")
	flags.StringVar(&o.configPath, "config", "", "YAML file with the optimizer configuration")
	flags.StringVar(&o.ordering, "ordering", "", "ordering required of the plan, e.g. +a.x,-a.y")
	flags.StringVar(&o.distribution, "distribution", "", "distribution required of the plan, e.g. hash(a.x)")
	flags.BoolVar(&o.rewind, "rewind", false, "require a rewindable plan")
	flags.StringSliceVar(&o.disable, "disable", nil, "rules that are not applied")
	flags.IntVar(&o.workers, "workers", 0, "number of goroutines used to compute rule rewrites")
}

// session holds what is needed to optimize one input expression.
type session struct {
	catalog  *testcat.Catalog
	cfg      optconfig.Config
	input    string
	required string
}

func (o *options) newSession(cmd *cobra.Command, args []string) (*session, error) {
	s := &session{catalog: testcat.New(), cfg: optconfig.Default()}
	if o.schemaPath != "" {
		def, err := os.ReadFile(o.schemaPath)
		if err != nil {
			return nil, errors.Wrap(err, "reading schema")
		}
		if err := s.catalog.ExecuteYAML(string(def)); err != nil {
			return nil, err
		}
	}
	if o.configPath != "" {
		f, err := os.Open(o.configPath)
		if err != nil {
			return nil, errors.Wrap(err, "opening config")
		}
		defer f.Close()
		if s.cfg, err = optconfig.Load(f); err != nil {
			return nil, err
		}
	}
	s.cfg.DisabledRules = append(s.cfg.DisabledRules, o.disable...)
	if o.workers > 0 {
		s.cfg.Workers = o.workers
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	var required []string
	if o.ordering != "" {
		required = append(required, "ordering="+o.ordering)
	}
	if o.distribution != "" {
		required = append(required, "distribution="+o.distribution)
	}
	if o.rewind {
		required = append(required, "rewind")
	}
	s.required = strings.Join(required, " ")

	if len(args) == 0 || args[0] == "-" {
		input, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errors.Wrap(err, "reading expression")
		}
		s.input = string(input)
	} else {
		s.input = strings.Join(args, " ")
	}
	if strings.TrimSpace(s.input) == "" {
		return nil, errors.New("no expression to optimize")
	}
	return s, nil
}

// optimize builds the input over fresh metadata and optimizes it.
func (s *session) optimize(ctx context.Context, metrics *xform.Metrics) (*xform.Optimizer, *xform.Plan, error) {
	var md opt.Metadata
	md.Init()
	root, err := exprgen.Build(s.catalog, &md, s.input)
	if err != nil {
		return nil, nil, err
	}
	required, err := physical.ParseRequired(&md, s.required)
	if err != nil {
		return nil, nil, err
	}
	o := &xform.Optimizer{}
	o.Init(&md, &s.cfg)
	if metrics != nil {
		o.SetMetrics(metrics)
	}
	plan, err := o.Optimize(ctx, root, required)
	return o, plan, err
}

func makeOptExplainCommand() *cobra.Command {
	opts := &options{}
	command := &cobra.Command{
		Use:   "optexplain [command] (flags)",
		Short: "optexplain optimizes logical expressions and shows the chosen plans.",
		Long: `optexplain optimizes a logical expression over the builtin test tables a, b, c, d, e and s,
plus the tables of an optional YAML schema, and shows the lowest cost plan, the memo or timings.

The expression is given as arguments, or read from stdin when it is omitted or "-".
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.register(command.PersistentFlags())

	command.AddCommand(makePlanCommand(opts))
	command.AddCommand(makeMemoCommand(opts))
	command.AddCommand(makeBenchCommand(opts))
	return command
}

func main() {
	if err := makeOptExplainCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
