// Prometheus text exposition for control loop metrics
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package metrics exposes handler statistics in the Prometheus text format.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MetricType is the Prometheus metric type
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels is a label set attached to one series of a metric
type Labels map[string]string

func (l Labels) sortedKeys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key identifies the series of a label set
func (l Labels) Key() string {
	var sb strings.Builder
	for i, k := range l.sortedKeys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(l[k])
	}
	return sb.String()
}

// String formats the label set as {k="v",...}
func (l Labels) String() string {
	return l.format("", "")
}

// format renders the labels plus an optional extra pair
func (l Labels) format(extraKey, extraVal string) string {
	if len(l) == 0 && extraKey == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	n := 0
	pair := func(k, v string) {
		if n > 0 {
			sb.WriteByte(',')
		}
		n++
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(escapeLabel(v))
		sb.WriteByte('"')
	}
	for _, k := range l.sortedKeys() {
		pair(k, l[k])
	}
	if extraKey != "" {
		pair(extraKey, extraVal)
	}
	sb.WriteByte('}')
	return sb.String()
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Metric is implemented by Counter, Gauge and Histogram
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

// family holds the series of one metric, in first use order
type family[V any] struct {
	name, help string
	typ        MetricType

	mu     sync.Mutex
	series map[string]*V
	labels map[string]Labels
	order  []string
}

func newFamily[V any](name, help string, typ MetricType) family[V] {
	return family[V]{
		name:   name,
		help:   help,
		typ:    typ,
		series: make(map[string]*V),
		labels: make(map[string]Labels),
	}
}

func (f *family[V]) Name() string     { return f.name }
func (f *family[V]) Help() string     { return f.help }
func (f *family[V]) Type() MetricType { return f.typ }

// with runs fn on the series of labels under the family lock, creating it
// with mk on first use
func (f *family[V]) with(labels Labels, mk func() *V, fn func(*V)) {
	key := labels.Key()
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.series[key]
	if !ok {
		v = mk()
		f.series[key] = v
		cp := make(Labels, len(labels))
		for k, val := range labels {
			cp[k] = val
		}
		f.labels[key] = cp
		f.order = append(f.order, key)
	}
	fn(v)
}

// get runs fn on an existing series and reports whether it existed
func (f *family[V]) get(labels Labels, fn func(*V)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.series[labels.Key()]
	if ok {
		fn(v)
	}
	return ok
}

func (f *family[V]) write(sb *strings.Builder, fn func(Labels, *V)) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.typ)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range f.order {
		fn(f.labels[key], f.series[key])
	}
}

// Counter is a monotonically increasing value
type Counter struct {
	family[uint64]
}

// NewCounter creates a counter
func NewCounter(name, help string) *Counter {
	return &Counter{newFamily[uint64](name, help, TypeCounter)}
}

func newUint64() *uint64 { return new(uint64) }

// Inc adds one
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add adds delta
func (c *Counter) Add(labels Labels, delta uint64) {
	c.with(labels, newUint64, func(v *uint64) { *v += delta })
}

// Get returns the value of a series, zero if it was never touched
func (c *Counter) Get(labels Labels) uint64 {
	var out uint64
	c.get(labels, func(v *uint64) { out = *v })
	return out
}

func (c *Counter) Write(sb *strings.Builder) {
	c.write(sb, func(l Labels, v *uint64) {
		fmt.Fprintf(sb, "%s%s %d\n", c.name, l.String(), *v)
	})
}

// Gauge is a value that goes up and down
type Gauge struct {
	family[float64]
}

// NewGauge creates a gauge
func NewGauge(name, help string) *Gauge {
	return &Gauge{newFamily[float64](name, help, TypeGauge)}
}

func newFloat64() *float64 { return new(float64) }

// Set replaces the value
func (g *Gauge) Set(labels Labels, value float64) {
	g.with(labels, newFloat64, func(v *float64) { *v = value })
}

// Add adds delta, which may be negative
func (g *Gauge) Add(labels Labels, delta float64) {
	g.with(labels, newFloat64, func(v *float64) { *v += delta })
}

// Get returns the value of a series
func (g *Gauge) Get(labels Labels) float64 {
	var out float64
	g.get(labels, func(v *float64) { out = *v })
	return out
}

func (g *Gauge) Write(sb *strings.Builder) {
	g.write(sb, func(l Labels, v *float64) {
		fmt.Fprintf(sb, "%s%s %s\n", g.name, l.String(), formatFloat(*v))
	})
}

type histogramValue struct {
	count  uint64
	sum    float64
	counts []uint64 // per bucket, not cumulative
}

// Histogram counts observations in cumulative buckets
type Histogram struct {
	family[histogramValue]
	bounds []float64
}

// NewHistogram creates a histogram with the given upper bounds
func NewHistogram(name, help string, bounds []float64) *Histogram {
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	return &Histogram{
		family: newFamily[histogramValue](name, help, TypeHistogram),
		bounds: sorted,
	}
}

// ExponentialBuckets returns count bounds starting at start, each factor
// times the previous one
func ExponentialBuckets(start, factor float64, count int) []float64 {
	b := make([]float64, count)
	for i := range b {
		b[i] = start
		start *= factor
	}
	return b
}

func (h *Histogram) newValue() *histogramValue {
	return &histogramValue{counts: make([]uint64, len(h.bounds))}
}

// Observe records one value
func (h *Histogram) Observe(labels Labels, value float64) {
	h.with(labels, h.newValue, func(v *histogramValue) {
		v.count++
		v.sum += value
		if i := sort.SearchFloat64s(h.bounds, value); i < len(h.bounds) {
			v.counts[i]++
		}
	})
}

// HistogramSnapshot is a copy of one histogram series
type HistogramSnapshot struct {
	Count uint64
	Sum   float64

	// Buckets maps each upper bound to its cumulative count
	Buckets map[float64]uint64
}

// Snapshot copies the series of labels
func (h *Histogram) Snapshot(labels Labels) HistogramSnapshot {
	snap := HistogramSnapshot{Buckets: make(map[float64]uint64, len(h.bounds))}
	h.get(labels, func(v *histogramValue) {
		snap.Count = v.count
		snap.Sum = v.sum
		var cum uint64
		for i, b := range h.bounds {
			cum += v.counts[i]
			snap.Buckets[b] = cum
		}
	})
	return snap
}

func (h *Histogram) Write(sb *strings.Builder) {
	h.write(sb, func(l Labels, v *histogramValue) {
		var cum uint64
		for i, b := range h.bounds {
			cum += v.counts[i]
			fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, l.format("le", formatFloat(b)), cum)
		}
		fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, l.format("le", "+Inf"), v.count)
		fmt.Fprintf(sb, "%s_sum%s %s\n", h.name, l.String(), formatFloat(v.sum))
		fmt.Fprintf(sb, "%s_count%s %d\n", h.name, l.String(), v.count)
	})
}

// Registry gathers metrics in registration order
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric; names must be unique
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[m.Name()]; ok {
		return fmt.Errorf("metric %q already registered", m.Name())
	}
	r.metrics[m.Name()] = m
	r.order = append(r.order, m.Name())
	return nil
}

// MustRegister is Register that panics on error
func (r *Registry) MustRegister(ms ...Metric) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Get returns a metric by name, nil if absent
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// Gather renders all metrics
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sb strings.Builder
	for _, name := range r.order {
		r.metrics[name].Write(&sb)
	}
	return sb.String()
}
