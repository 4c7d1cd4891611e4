// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metric

import (
	"reflect"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Unit describes how a metric's value is measured.
type Unit int

const (
	// Unit_COUNT is a plain count of events.
	Unit_COUNT Unit = iota
	// Unit_NANOSECONDS is a duration in nanoseconds.
	Unit_NANOSECONDS
)

// Metadata holds metadata about a metric.
type Metadata struct {
	Name        string
	Help        string
	Measurement string
	Unit        Unit
}

// Iterable is implemented by every metric type in this package.
type Iterable interface {
	// GetName returns the fully-qualified name of the metric.
	GetName() string
	// Collector returns the underlying Prometheus collector.
	Collector() prometheus.Collector
}

// GetName implements Iterable.
func (m *Metadata) GetName() string { return m.Name }

// Struct can be implemented by the types of members of a metric
// container so that the members get automatically registered.
type Struct interface {
	MetricStruct()
}

// Counter is a monotonically increasing count.
type Counter struct {
	Metadata
	count atomic.Int64
	c     prometheus.Counter
}

// NewCounter creates a counter.
func NewCounter(metadata Metadata) *Counter {
	return &Counter{
		Metadata: metadata,
		c:        prometheus.NewCounter(prometheus.CounterOpts{Name: metadata.Name, Help: metadata.Help}),
	}
}

// Inc increments the counter by the given amount.
func (c *Counter) Inc(v int64) {
	c.count.Add(v)
	c.c.Add(float64(v))
}

// Count returns the current value of the counter.
func (c *Counter) Count() int64 { return c.count.Load() }

// Collector implements Iterable.
func (c *Counter) Collector() prometheus.Collector { return c.c }

// Gauge is a value that can go up and down.
type Gauge struct {
	Metadata
	value atomic.Int64
	g     prometheus.Gauge
}

// NewGauge creates a gauge.
func NewGauge(metadata Metadata) *Gauge {
	return &Gauge{
		Metadata: metadata,
		g:        prometheus.NewGauge(prometheus.GaugeOpts{Name: metadata.Name, Help: metadata.Help}),
	}
}

// Update sets the gauge's value.
func (g *Gauge) Update(v int64) {
	g.value.Store(v)
	g.g.Set(float64(v))
}

// Inc adds the given amount to the gauge.
func (g *Gauge) Inc(v int64) {
	g.g.Set(float64(g.value.Add(v)))
}

// Value returns the gauge's current value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Collector implements Iterable.
func (g *Gauge) Collector() prometheus.Collector { return g.g }

// Histogram records a distribution of values.
type Histogram struct {
	Metadata
	count atomic.Int64
	h     prometheus.Histogram
}

// NewHistogram creates a histogram with the given bucket boundaries. Latency
// histograms record nanoseconds but export seconds.
func NewHistogram(metadata Metadata, buckets []float64) *Histogram {
	return &Histogram{
		Metadata: metadata,
		h: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metadata.Name,
			Help:    metadata.Help,
			Buckets: buckets,
		}),
	}
}

// RecordValue adds the given value to the histogram.
func (h *Histogram) RecordValue(v int64) {
	h.count.Add(1)
	if h.Unit == Unit_NANOSECONDS {
		h.h.Observe(time.Duration(v).Seconds())
		return
	}
	h.h.Observe(float64(v))
}

// TotalCount returns the number of recorded values.
func (h *Histogram) TotalCount() int64 { return h.count.Load() }

// Collector implements Iterable.
func (h *Histogram) Collector() prometheus.Collector { return h.h }

// LatencyBuckets are histogram boundaries, in seconds, suited to planning
// latencies.
var LatencyBuckets = prometheus.ExponentialBuckets(10e-6, 4, 10)

// CountBuckets are histogram boundaries suited to small counts.
var CountBuckets = prometheus.ExponentialBuckets(1, 2, 16)

// Registry is a set of metrics backed by a Prometheus registry.
type Registry struct {
	reg     *prometheus.Registry
	tracked map[string]Iterable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		reg:     prometheus.NewRegistry(),
		tracked: make(map[string]Iterable),
	}
}

// AddMetric registers a single metric.
func (r *Registry) AddMetric(m Iterable) error {
	if _, ok := r.tracked[m.GetName()]; ok {
		return errors.Newf("metric %q already registered", m.GetName())
	}
	if err := r.reg.Register(m.Collector()); err != nil {
		return errors.Wrapf(err, "registering metric %q", m.GetName())
	}
	r.tracked[m.GetName()] = m
	return nil
}

// AddMetricStruct examines all fields of metricStruct and registers those
// that implement Iterable. Nested fields implementing Struct are walked too.
func (r *Registry) AddMetricStruct(metricStruct interface{}) error {
	v := reflect.ValueOf(metricStruct)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.AssertionFailedf("expected a struct, got %s", v.Kind())
	}
	for i := 0; i < v.NumField(); i++ {
		if !v.Type().Field(i).IsExported() {
			continue
		}
		vfield := v.Field(i)
		if vfield.Kind() == reflect.Ptr && vfield.IsNil() {
			continue
		}
		switch f := vfield.Interface().(type) {
		case Iterable:
			if err := r.AddMetric(f); err != nil {
				return err
			}
		case Struct:
			if err := r.AddMetricStruct(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Each calls fn for every registered metric, in no particular order.
func (r *Registry) Each(fn func(name string, m Iterable)) {
	for name, m := range r.tracked {
		fn(name, m)
	}
}

// Gatherer exposes the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
