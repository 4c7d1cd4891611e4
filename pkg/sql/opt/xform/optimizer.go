// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/sql/opt/optconfig"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opttrace"
	"github.com/cockroachdb/cascades/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/cascades/pkg/util/fsm"
	"github.com/cockroachdb/cascades/pkg/util/humanizeutil"
	"github.com/cockroachdb/cascades/pkg/util/log"
	"github.com/cockroachdb/cascades/pkg/util/tracing"
	"github.com/cockroachdb/cascades/pkg/util/uuid"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
)

// Optimizer transforms a logical expression tree into the lowest cost
// physical plan that it can find. The expression is added to a memo, which
// is then explored with the exploration rules until it stops growing. The
// implementation rules add physical members to every group, and the search
// finds the lowest cost plan of each group for the properties its parents
// require, placing enforcers where no member provides them.
//
// An Optimizer is used for a single optimization: it must be initialized
// again before the next one. It is not safe for concurrent use, although it
// may use several goroutines internally.
type Optimizer struct {
	mem     *memo.Memo
	cfg     *optconfig.Config
	coster  Coster
	tracer  opttrace.Tracer
	metrics *Metrics

	sched scheduler
	state optState
	ctx   context.Context

	// changed is set when a rule application changes the memo during the
	// current exploration round.
	changed bool

	// truncations rate limits the log messages about rules that stopped at
	// the binding limit.
	truncations log.EveryN

	machine fsm.Machine
}

// Init initializes the Optimizer with a new, empty memo, and readies it for
// an optimization. The configuration must have been validated. It is copied,
// so later changes to it have no effect on the optimization.
func (o *Optimizer) Init(md *opt.Metadata, cfg *optconfig.Config) {
	cpy := *cfg
	metrics := MakeMetrics()
	*o = Optimizer{
		mem:     &memo.Memo{},
		cfg:     &cpy,
		tracer:  opttrace.LogTracer{},
		metrics: &metrics,

		truncations: log.Every(truncationLogInterval),
	}
	o.mem.Init(md, memo.Budget{MaxGroups: cfg.Budget.MaxGroups, MaxExprs: cfg.Budget.MaxExprs})
	o.coster = MakeDefaultCoster(o.cfg)
	o.state.init()
	o.machine = fsm.MakeMachine(optimizerTransitions, stateSeeded{}, o)
}

// Memo returns the memo of the optimizer. Expressions added to the memo
// before Optimize is called take part in the search.
func (o *Optimizer) Memo() *memo.Memo {
	return o.mem
}

// Config returns the configuration of the optimizer.
func (o *Optimizer) Config() *optconfig.Config {
	return o.cfg
}

// SetCoster replaces the default cost model.
func (o *Optimizer) SetCoster(coster Coster) {
	o.coster = coster
}

// SetTracer replaces the default tracer, which logs search events. A nil
// tracer drops every event.
func (o *Optimizer) SetTracer(tracer opttrace.Tracer) {
	if tracer == nil {
		tracer = opttrace.Tee()
	}
	o.tracer = tracer
}

// SetMetrics makes the optimizer update the given metrics rather than its
// own.
func (o *Optimizer) SetMetrics(metrics *Metrics) {
	o.metrics = metrics
}

// Optimize returns the lowest cost plan of the expression whose output has
// the required properties. A nil required means no properties are required.
//
// The error is a MalformedInput error if the expression is not valid, a
// NoFeasiblePlan error if no plan provides the properties, and a
// ResourceExceeded error if the search exhausted a budget. No plan is
// returned with an error.
func (o *Optimizer) Optimize(
	ctx context.Context, root *opt.Expr, required *physical.Required,
) (plan *Plan, err error) {
	if _, ok := o.machine.CurState().(stateSeeded); !ok {
		return nil, errors.AssertionFailedf("optimizer must be initialized before each optimization")
	}
	if required == nil {
		required = physical.MinRequired
	}

	id := uuid.MakeV4()
	ctx = logtags.AddTag(ctx, "opt", uuid.ShortString(id))
	ctx, sp := tracing.ChildSpan(ctx, "optimize")
	defer sp.Finish()
	o.ctx = ctx

	start := timeNow()
	o.metrics.Optimizations.Inc(1)
	defer func() {
		if r := recover(); r != nil {
			// This code allows us to propagate internal errors without having
			// to add error checks everywhere throughout the code. This is only
			// possible because the code does not update shared state and does
			// not manipulate locks.
			err = opt.CatchOptimizerError(r)
		}
		elapsed := timeNow().Sub(start)
		o.metrics.Latency.RecordValue(elapsed.Nanoseconds())
		o.metrics.Groups.Update(int64(o.mem.GroupCount()))
		if err != nil {
			plan = nil
			o.metrics.Failures.Inc(1)
			sp.RecordError(err)
			if applyErr := o.machine.Apply(ctx, eventFail{}); applyErr != nil {
				err = errors.CombineErrors(err, applyErr)
			}
			log.VEventf(ctx, 1, "optimization failed after %s: %v", humanizeutil.Duration(elapsed), err)
			return
		}
		log.VEventf(ctx, 1, "optimized in %s: %d groups, %d expressions, %d jobs, cost %s",
			humanizeutil.Duration(elapsed), o.mem.GroupCount(), o.mem.ExprCount(), o.sched.jobs, plan.Cost)
	}()

	o.seed(root, required)
	o.sched.init(o.cfg.Budget.MaxJobs, o.cfg.Budget.Timeout, start)

	o.transition(eventExplore{})
	for round := 1; ; round++ {
		o.changed = false
		o.sched.runJob(ctx, o, &exploreGroupJob{group: o.mem.RootGroup(), round: round})
		if !o.changed {
			log.VEventf(ctx, 2, "exploration finished after %d rounds", round)
			break
		}
	}

	o.transition(eventImplement{})
	o.sched.runJob(ctx, o, &implementGroupJob{group: o.mem.RootGroup()})

	o.transition(eventOptimize{})
	o.sched.runJob(ctx, o, &optimizeGroupJob{group: o.mem.RootGroup(), required: o.mem.RootRequired()})

	plan = o.extractPlan()
	o.transition(eventExtracted{})
	o.transition(eventDone{})
	return plan, nil
}

// seed validates the input expression, adds it to the memo and makes its
// group the root.
func (o *Optimizer) seed(root *opt.Expr, required *physical.Required) {
	md := o.mem.Metadata()
	if root == nil {
		panic(opterrors.MalformedInputf("no expression to optimize"))
	}
	if err := root.Validate(md); err != nil {
		panic(err)
	}
	lastGroup := o.mem.MaxGroupID()
	group := o.mem.Insert(root)
	for id := lastGroup + 1; id <= o.mem.MaxGroupID(); id++ {
		o.tracer.GroupCreated(o.ctx, id, o.mem.Group(id).FirstExpr().Op())
	}

	outputCols := o.mem.Group(group).Relational().OutputCols
	if !required.Ordering.ColSet().SubsetOf(outputCols) || !required.Distribution.ColSet().SubsetOf(outputCols) {
		panic(opterrors.MalformedInputf(
			"required properties %s refer to columns not produced by the expression %s",
			required, outputCols))
	}
	o.mem.SetRoot(group, required)
}

// transition applies the event to the driver's state machine.
func (o *Optimizer) transition(ev fsm.Event) {
	if err := o.machine.Apply(o.ctx, ev); err != nil {
		panic(err)
	}
}

// The states of an optimization.
type stateSeeded struct{}
type stateExploring struct{}
type stateImplementing struct{}
type stateOptimizing struct{}
type stateExtracted struct{}
type stateDone struct{}
type stateFailed struct{}

func (stateSeeded) State()       {}
func (stateExploring) State()    {}
func (stateImplementing) State() {}
func (stateOptimizing) State()   {}
func (stateExtracted) State()    {}
func (stateDone) State()         {}
func (stateFailed) State()       {}

func (stateSeeded) String() string       { return "seeded" }
func (stateExploring) String() string    { return "exploring" }
func (stateImplementing) String() string { return "implementing" }
func (stateOptimizing) String() string   { return "optimizing" }
func (stateExtracted) String() string    { return "extracted" }
func (stateDone) String() string         { return "done" }
func (stateFailed) String() string       { return "failed" }

// The events that move an optimization forward.
type eventExplore struct{}
type eventImplement struct{}
type eventOptimize struct{}
type eventExtracted struct{}
type eventDone struct{}
type eventFail struct{}

func (eventExplore) Event()   {}
func (eventImplement) Event() {}
func (eventOptimize) Event()  {}
func (eventExtracted) Event() {}
func (eventDone) Event()      {}
func (eventFail) Event()      {}

// traceTransition reports the transition to the optimizer's tracer.
func traceTransition(to fsm.State) func(fsm.Args) error {
	return func(args fsm.Args) error {
		o := args.Extended.(*Optimizer)
		o.tracer.StateChanged(args.Ctx, args.Prev.(fmtState).String(), to.(fmtState).String())
		return nil
	}
}

type fmtState interface {
	fsm.State
	String() string
}

func transitionTo(next fsm.State, description string) fsm.Transition {
	return fsm.Transition{Next: next, Action: traceTransition(next), Description: description}
}

// optimizerTransitions is the transition graph of an optimization. Every
// state that is not final can fail.
var optimizerTransitions = fsm.Compile(fsm.Pattern{
	stateSeeded{}: {
		eventExplore{}: transitionTo(stateExploring{}, "input added to the memo"),
		eventFail{}:    transitionTo(stateFailed{}, "malformed input"),
	},
	stateExploring{}: {
		eventImplement{}: transitionTo(stateImplementing{}, "no rule changed the memo"),
		eventFail{}:      transitionTo(stateFailed{}, "canceled or out of budget"),
	},
	stateImplementing{}: {
		eventOptimize{}: transitionTo(stateOptimizing{}, "physical members added"),
		eventFail{}:     transitionTo(stateFailed{}, "canceled or out of budget"),
	},
	stateOptimizing{}: {
		eventExtracted{}: transitionTo(stateExtracted{}, "plan extracted"),
		eventFail{}:      transitionTo(stateFailed{}, "no feasible plan"),
	},
	stateExtracted{}: {
		eventDone{}: transitionTo(stateDone{}, ""),
	},
})
