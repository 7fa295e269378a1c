// Unit tests for Prometheus exposition
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"strings"
	"sync"
	"testing"
)

// TestCounter tests counter series
func TestCounter(t *testing.T) {
	c := NewCounter("runs_total", "Runs")
	if v := c.Get(nil); v != 0 {
		t.Errorf("expected initial value 0, got %d", v)
	}
	c.Inc(nil)
	c.Add(nil, 10)
	if v := c.Get(nil); v != 11 {
		t.Errorf("expected 11, got %d", v)
	}

	a := Labels{"code": "FOC_MODE"}
	c.Inc(a)
	c.Inc(Labels{"code": "FOC_MODE"})
	if v := c.Get(a); v != 2 {
		t.Errorf("expected labelled count 2, got %d", v)
	}
	if c.Type() != TypeCounter || c.Name() != "runs_total" || c.Help() != "Runs" {
		t.Error("unexpected metadata")
	}
}

// TestCounterConcurrency tests concurrent increments
func TestCounterConcurrency(t *testing.T) {
	c := NewCounter("concurrent_total", "Concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc(nil)
			}
		}()
	}
	wg.Wait()
	if v := c.Get(nil); v != 8000 {
		t.Errorf("expected 8000, got %d", v)
	}
}

// TestGauge tests gauge set and add
func TestGauge(t *testing.T) {
	g := NewGauge("duty", "Duty")
	g.Set(Labels{"phase": "a"}, 0.5)
	g.Add(Labels{"phase": "a"}, -0.25)
	g.Set(Labels{"phase": "b"}, 0.75)

	if v := g.Get(Labels{"phase": "a"}); v != 0.25 {
		t.Errorf("expected 0.25, got %v", v)
	}
	if v := g.Get(Labels{"phase": "b"}); v != 0.75 {
		t.Errorf("expected 0.75, got %v", v)
	}
	if v := g.Get(Labels{"phase": "c"}); v != 0 {
		t.Errorf("untouched series = %v", v)
	}
}

// TestHistogram tests bucket counting
func TestHistogram(t *testing.T) {
	h := NewHistogram("latency", "Latency", []float64{1, 0.1, 0.5})
	for _, v := range []float64{0.05, 0.1, 0.3, 0.7, 2} {
		h.Observe(nil, v)
	}

	snap := h.Snapshot(nil)
	if snap.Count != 5 {
		t.Errorf("expected count 5, got %d", snap.Count)
	}
	if snap.Sum < 3.149 || snap.Sum > 3.151 {
		t.Errorf("expected sum 3.15, got %v", snap.Sum)
	}
	want := map[float64]uint64{0.1: 2, 0.5: 3, 1: 4}
	for b, n := range want {
		if snap.Buckets[b] != n {
			t.Errorf("bucket le=%v: got %d, want %d", b, snap.Buckets[b], n)
		}
	}

	if empty := h.Snapshot(Labels{"x": "y"}); empty.Count != 0 {
		t.Error("unknown series should be empty")
	}
}

// TestExponentialBuckets tests bucket generation
func TestExponentialBuckets(t *testing.T) {
	b := ExponentialBuckets(1, 2, 4)
	want := []float64{1, 2, 4, 8}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("buckets = %v, want %v", b, want)
		}
	}
}

// TestRegistry tests registration and text output
func TestRegistry(t *testing.T) {
	r := NewRegistry()
	c := NewCounter("a_total", "A")
	g := NewGauge("b", "B")
	h := NewHistogram("c_seconds", "C", []float64{0.5})
	r.MustRegister(c, g, h)

	if err := r.Register(NewGauge("a_total", "dup")); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if r.Get("b") != g || r.Get("missing") != nil {
		t.Error("Get returned the wrong metric")
	}

	c.Inc(Labels{"code": "X"})
	g.Set(nil, 1.5)
	h.Observe(Labels{"k": "v"}, 0.25)

	out := r.Gather()
	for _, line := range []string{
		"# HELP a_total A",
		"# TYPE a_total counter",
		`a_total{code="X"} 1`,
		"# TYPE b gauge",
		"b 1.5",
		"# TYPE c_seconds histogram",
		`c_seconds_bucket{k="v",le="0.5"} 1`,
		`c_seconds_bucket{k="v",le="+Inf"} 1`,
		`c_seconds_sum{k="v"} 0.25`,
		`c_seconds_count{k="v"} 1`,
	} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("missing %q in:\n%s", line, out)
		}
	}
	if strings.Index(out, "a_total") > strings.Index(out, "c_seconds") {
		t.Error("registration order not kept")
	}
}

// TestLabels tests key and escaping
func TestLabels(t *testing.T) {
	l := Labels{"b": "2", "a": "1"}
	if k := l.Key(); k != "a=1,b=2" {
		t.Errorf("key = %q", k)
	}
	if s := (Labels{"m": "say \"hi\"\n"}).String(); s != `{m="say \"hi\"\n"}` {
		t.Errorf("escaped = %s", s)
	}
	if s := Labels(nil).String(); s != "" {
		t.Errorf("nil labels = %q", s)
	}
}

func BenchmarkCounterInc(b *testing.B) {
	c := NewCounter("bench_total", "Bench")
	l := Labels{"code": "X"}
	for i := 0; i < b.N; i++ {
		c.Inc(l)
	}
}

func BenchmarkHistogramObserve(b *testing.B) {
	h := NewHistogram("bench_seconds", "Bench", ExponentialBuckets(250e-9, 2, 12))
	for i := 0; i < b.N; i++ {
		h.Observe(nil, float64(i%1000)*1e-8)
	}
}
