// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import "github.com/cockroachdb/cascades/pkg/util/metric"

var (
	metaOptimizations = metric.Metadata{
		Name:        "opt.optimizations",
		Help:        "Number of optimizations started",
		Measurement: "Optimizations",
		Unit:        metric.Unit_COUNT,
	}
	metaFailures = metric.Metadata{
		Name:        "opt.failures",
		Help:        "Number of optimizations that returned an error",
		Measurement: "Optimizations",
		Unit:        metric.Unit_COUNT,
	}
	metaJobs = metric.Metadata{
		Name:        "opt.jobs",
		Help:        "Number of search jobs run",
		Measurement: "Jobs",
		Unit:        metric.Unit_COUNT,
	}
	metaRulesFired = metric.Metadata{
		Name:        "opt.rules.fired",
		Help:        "Number of rule applications",
		Measurement: "Rules",
		Unit:        metric.Unit_COUNT,
	}
	metaGroups = metric.Metadata{
		Name:        "opt.memo.groups",
		Help:        "Number of memo groups in the last optimization",
		Measurement: "Groups",
		Unit:        metric.Unit_COUNT,
	}
	metaLatency = metric.Metadata{
		Name:        "opt.latency",
		Help:        "Latency of optimizations",
		Measurement: "Latency",
		Unit:        metric.Unit_NANOSECONDS,
	}
)

// Metrics holds the counters of the optimizer. A Metrics can be shared by
// optimizers running concurrently.
type Metrics struct {
	Optimizations *metric.Counter
	Failures      *metric.Counter
	Jobs          *metric.Counter
	RulesFired    *metric.Counter
	Groups        *metric.Gauge
	Latency       *metric.Histogram
}

// MetricStruct implements the metric.Struct interface.
func (Metrics) MetricStruct() {}

var _ metric.Struct = Metrics{}

// MakeMetrics instantiates the metrics of the optimizer.
func MakeMetrics() Metrics {
	return Metrics{
		Optimizations: metric.NewCounter(metaOptimizations),
		Failures:      metric.NewCounter(metaFailures),
		Jobs:          metric.NewCounter(metaJobs),
		RulesFired:    metric.NewCounter(metaRulesFired),
		Groups:        metric.NewGauge(metaGroups),
		Latency:       metric.NewHistogram(metaLatency, metric.LatencyBuckets),
	}
}
