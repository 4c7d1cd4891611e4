// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

/*
Package metric provides thin wrappers over Prometheus collectors that carry
their own Metadata and can be grouped into metric structs.

# Adding a new metric

Declare the metric in a struct and register the struct with a Registry:

	type Metrics struct {
		Optimizations *metric.Counter
	}

	m := Metrics{Optimizations: metric.NewCounter(metaOptimizations)}
	registry.AddMetricStruct(m)

The metric can then be updated as follows:

	m.Optimizations.Inc(1)

# Testing

Counters and gauges expose Count and Value so that tests can observe them
without scraping the registry.
*/
package metric
