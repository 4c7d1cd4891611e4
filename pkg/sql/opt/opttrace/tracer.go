// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package opttrace defines hooks through which the optimizer reports the
// progress of a search. Tracers only observe; a search finds the same plan
// with or without one.
package opttrace

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/util/log"
	"github.com/cockroachdb/cascades/pkg/util/syncutil"
	"github.com/cockroachdb/cascades/pkg/util/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Tracer receives search events. Implementations must be safe for
// concurrent use, although the optimizer currently reports events from a
// single goroutine.
type Tracer interface {
	// GroupCreated is called when a memo group is created by the expression
	// with the given operator.
	GroupCreated(ctx context.Context, group opt.GroupID, op opt.Operator)

	// RuleFired is called when a rule was applied to a member of the group,
	// and produced the given number of expressions.
	RuleFired(ctx context.Context, rule opt.RuleName, group opt.GroupID, outputs int)

	// WinnerUpdated is called when a cheaper plan is found for the group and
	// the required properties.
	WinnerUpdated(ctx context.Context, group opt.GroupID, required string, op opt.Operator, cost float64)

	// StateChanged is called on every transition of the optimizer driver.
	StateChanged(ctx context.Context, from, to string)
}

// LogTracer writes search events to the log at verbosity 2.
type LogTracer struct{}

var _ Tracer = LogTracer{}

// GroupCreated is part of the Tracer interface.
func (LogTracer) GroupCreated(ctx context.Context, group opt.GroupID, op opt.Operator) {
	log.VEventf(ctx, 2, "new group G%d (%s)", group, op)
}

// RuleFired is part of the Tracer interface.
func (LogTracer) RuleFired(ctx context.Context, rule opt.RuleName, group opt.GroupID, outputs int) {
	log.VEventf(ctx, 2, "%s fired on G%d: %d outputs", rule, group, outputs)
}

// WinnerUpdated is part of the Tracer interface.
func (LogTracer) WinnerUpdated(
	ctx context.Context, group opt.GroupID, required string, op opt.Operator, cost float64,
) {
	log.VEventf(ctx, 2, "G%d %s: new winner %s cost=%.2f", group, required, op, cost)
}

// StateChanged is part of the Tracer interface.
func (LogTracer) StateChanged(ctx context.Context, from, to string) {
	log.VEventf(ctx, 1, "optimizer: %s -> %s", from, to)
}

// SpanTracer adds search events to the OpenTelemetry span in the context.
// Events are dropped when the context is not traced.
type SpanTracer struct{}

var _ Tracer = SpanTracer{}

// GroupCreated is part of the Tracer interface.
func (SpanTracer) GroupCreated(ctx context.Context, group opt.GroupID, op opt.Operator) {
	tracing.SpanFromContext(ctx).Record("group-created",
		attribute.Int("group", int(group)), attribute.String("op", op.String()))
}

// RuleFired is part of the Tracer interface.
func (SpanTracer) RuleFired(ctx context.Context, rule opt.RuleName, group opt.GroupID, outputs int) {
	tracing.SpanFromContext(ctx).Record("rule-fired",
		attribute.String("rule", rule.String()), attribute.Int("group", int(group)),
		attribute.Int("outputs", outputs))
}

// WinnerUpdated is part of the Tracer interface.
func (SpanTracer) WinnerUpdated(
	ctx context.Context, group opt.GroupID, required string, op opt.Operator, cost float64,
) {
	tracing.SpanFromContext(ctx).Record("winner-updated",
		attribute.Int("group", int(group)), attribute.String("required", required),
		attribute.String("op", op.String()), attribute.Float64("cost", cost))
}

// StateChanged is part of the Tracer interface.
func (SpanTracer) StateChanged(ctx context.Context, from, to string) {
	tracing.SpanFromContext(ctx).Record("state-changed",
		attribute.String("from", from), attribute.String("to", to))
}

// EventKind identifies the hook that recorded an Event.
type EventKind uint8

const (
	GroupCreatedEvent EventKind = iota
	RuleFiredEvent
	WinnerUpdatedEvent
	StateChangedEvent
)

// Event is a search event kept by a Recorder. Only the fields of the event's
// kind are set.
type Event struct {
	Kind     EventKind
	Group    opt.GroupID
	Op       opt.Operator
	Rule     opt.RuleName
	Outputs  int
	Required string
	Cost     float64
	From, To string
}

func (e Event) String() string {
	switch e.Kind {
	case GroupCreatedEvent:
		return fmt.Sprintf("group G%d (%s)", e.Group, e.Op)
	case RuleFiredEvent:
		return fmt.Sprintf("rule %s G%d outputs=%d", e.Rule, e.Group, e.Outputs)
	case WinnerUpdatedEvent:
		return fmt.Sprintf("winner G%d %s %s cost=%.2f", e.Group, e.Required, e.Op, e.Cost)
	default:
		return fmt.Sprintf("state %s -> %s", e.From, e.To)
	}
}

// Recorder keeps every event in memory, for tests and for rule statistics.
type Recorder struct {
	mu struct {
		syncutil.Mutex
		events []Event
	}
}

var _ Tracer = &Recorder{}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mu.events = append(r.mu.events, e)
}

// GroupCreated is part of the Tracer interface.
func (r *Recorder) GroupCreated(_ context.Context, group opt.GroupID, op opt.Operator) {
	r.add(Event{Kind: GroupCreatedEvent, Group: group, Op: op})
}

// RuleFired is part of the Tracer interface.
func (r *Recorder) RuleFired(_ context.Context, rule opt.RuleName, group opt.GroupID, outputs int) {
	r.add(Event{Kind: RuleFiredEvent, Rule: rule, Group: group, Outputs: outputs})
}

// WinnerUpdated is part of the Tracer interface.
func (r *Recorder) WinnerUpdated(
	_ context.Context, group opt.GroupID, required string, op opt.Operator, cost float64,
) {
	r.add(Event{Kind: WinnerUpdatedEvent, Group: group, Required: required, Op: op, Cost: cost})
}

// StateChanged is part of the Tracer interface.
func (r *Recorder) StateChanged(_ context.Context, from, to string) {
	r.add(Event{Kind: StateChangedEvent, From: from, To: to})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.mu.events...)
}

// Filter returns the recorded events of the given kind.
func (r *Recorder) Filter(kind EventKind) []Event {
	var res []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			res = append(res, e)
		}
	}
	return res
}

// RuleCounts returns the number of times each rule fired.
func (r *Recorder) RuleCounts() map[opt.RuleName]int {
	counts := make(map[opt.RuleName]int)
	for _, e := range r.Filter(RuleFiredEvent) {
		counts[e.Rule]++
	}
	return counts
}

// RuleStats formats the rule counts, one rule per line in rule order.
func (r *Recorder) RuleStats() string {
	counts := r.RuleCounts()
	rules := make([]opt.RuleName, 0, len(counts))
	for rule := range counts {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i] < rules[j] })
	var buf bytes.Buffer
	for _, rule := range rules {
		fmt.Fprintf(&buf, "%s: %d\n", rule, counts[rule])
	}
	return buf.String()
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mu.events = nil
}

// Tee returns a tracer that forwards every event to each of the given
// tracers. Nil tracers are skipped.
func Tee(tracers ...Tracer) Tracer {
	var res tee
	for _, t := range tracers {
		if t != nil {
			res = append(res, t)
		}
	}
	if len(res) == 1 {
		return res[0]
	}
	return res
}

type tee []Tracer

func (t tee) GroupCreated(ctx context.Context, group opt.GroupID, op opt.Operator) {
	for _, tr := range t {
		tr.GroupCreated(ctx, group, op)
	}
}

func (t tee) RuleFired(ctx context.Context, rule opt.RuleName, group opt.GroupID, outputs int) {
	for _, tr := range t {
		tr.RuleFired(ctx, rule, group, outputs)
	}
}

func (t tee) WinnerUpdated(
	ctx context.Context, group opt.GroupID, required string, op opt.Operator, cost float64,
) {
	for _, tr := range t {
		tr.WinnerUpdated(ctx, group, required, op, cost)
	}
}

func (t tee) StateChanged(ctx context.Context, from, to string) {
	for _, tr := range t {
		tr.StateChanged(ctx, from, to)
	}
}
