package dsp

import (
	"math"
	"testing"
)

func TestClarkeParkRoundTrip(t *testing.T) {
	tr := NewTransform[float32, F32]()
	for deg := 0.0; deg < 360; deg += 15 {
		rad := deg * math.Pi / 180
		abc := ABC[float32]{
			float32(math.Cos(rad)),
			float32(math.Cos(rad - 2*math.Pi/3)),
			float32(math.Cos(rad + 2*math.Pi/3)),
		}
		var ab ABFrame[float32]
		tr.Clarke(&abc, &ab)
		if math.Abs(float64(ab.A)-math.Cos(rad)) > 1e-5 || math.Abs(float64(ab.B)-math.Sin(rad)) > 1e-5 {
			t.Errorf("Clarke at %v deg = %+v", deg, ab)
		}

		// A balanced set aligned with the angle is pure d-axis
		var angle PhaseAngle[float32]
		tr.AngleUpdate(&angle, float32(rad))
		var dq DQFrame[float32]
		tr.Park(&ab, &angle, &dq)
		if math.Abs(float64(dq.D)-1) > 1e-5 || math.Abs(float64(dq.Q)) > 1e-5 {
			t.Errorf("Park at %v deg = %+v, want {1 0}", deg, dq)
		}

		var back ABFrame[float32]
		tr.InvPark(&dq, &angle, &back)
		var abc2 ABC[float32]
		tr.InvClarke(&back, &abc2)
		for i := range abc {
			if math.Abs(float64(abc[i]-abc2[i])) > 1e-5 {
				t.Errorf("round trip at %v deg: %v != %v", deg, abc, abc2)
			}
		}
	}
}

func TestTransformB16(t *testing.T) {
	tr := NewTransform[TB16, B16]()
	var a B16
	ab := ABFrame[TB16]{A: a.FromFloat(0.3), B: a.FromFloat(-0.4)}
	var angle PhaseAngle[TB16]
	tr.AngleUpdate(&angle, a.FromFloat(1.1))
	var dq DQFrame[TB16]
	tr.Park(&ab, &angle, &dq)
	var back ABFrame[TB16]
	tr.InvPark(&dq, &angle, &back)
	if math.Abs(a.Float(back.A)-0.3) > 1e-3 || math.Abs(a.Float(back.B)+0.4) > 1e-3 {
		t.Errorf("b16 park round trip = %v, %v", a.Float(back.A), a.Float(back.B))
	}
}

func TestAngleNorm(t *testing.T) {
	tr := NewTransform[float32, F32]()
	tests := []struct{ in, want float64 }{
		{0, 0},
		{1, 1},
		{-1, 2*math.Pi - 1},
		{2*math.Pi + 0.5, 0.5},
	}
	for _, tt := range tests {
		got := tr.AngleNorm(float32(tt.in))
		if math.Abs(float64(got)-tt.want) > 1e-5 {
			t.Errorf("AngleNorm(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDQSaturate(t *testing.T) {
	tr := NewTransform[float32, F32]()
	dq := DQFrame[float32]{D: 3, Q: 4}
	tr.DQSaturate(&dq, 10)
	if dq.D != 3 || dq.Q != 4 {
		t.Errorf("vector inside the limit changed: %+v", dq)
	}
	tr.DQSaturate(&dq, 1)
	if math.Abs(float64(dq.D)-0.6) > 1e-6 || math.Abs(float64(dq.Q)-0.8) > 1e-6 {
		t.Errorf("DQSaturate = %+v, want {0.6 0.8}", dq)
	}
}

func TestPI(t *testing.T) {
	var pi PI[float32, F32]
	pi.Init(2, 0.5)
	if out := pi.Run(1); out != 2.5 {
		t.Errorf("first step = %v, want 2.5", out)
	}
	if out := pi.Run(1); out != 3 {
		t.Errorf("second step = %v, want 3", out)
	}

	pi.Reset()
	pi.SetLimits(1)
	for i := 0; i < 100; i++ {
		pi.Run(1)
	}
	if pi.Output() != 1 {
		t.Errorf("saturated output = %v, want 1", pi.Output())
	}
	if pi.Integral() > 1 {
		t.Errorf("integrator wound up to %v", pi.Integral())
	}
	// Error reversal leaves saturation immediately
	if out := pi.Run(-1); out >= 1 {
		t.Errorf("output after reversal = %v", out)
	}
}

func TestSaturate(t *testing.T) {
	if got := Saturate[float32, F32](2, 0, 1); got != 1 {
		t.Errorf("Saturate high = %v", got)
	}
	if got := Saturate[float32, F32](-2, 0, 1); got != 0 {
		t.Errorf("Saturate low = %v", got)
	}
	if got := Saturate[float32, F32](0.5, 0, 1); got != 0.5 {
		t.Errorf("Saturate inside = %v", got)
	}

	tests := []struct {
		v    float64
		want float32
	}{
		{math.NaN(), 0},
		{math.Inf(1), 1},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		if got := Saturate[float32, F32](float32(tt.v), 0, 1); got != tt.want {
			t.Errorf("Saturate(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestQ31(t *testing.T) {
	var f F32
	var b B16
	for _, v := range []float64{-1, -0.5, 0, 0.25, 0.999} {
		qf := f.Q31(f.FromFloat(v))
		qb := b.Q31(b.FromFloat(v))
		if d := math.Abs(float64(qf)-float64(qb)) / (1 << 31); d > 1e-4 {
			t.Errorf("Q31(%v): f32 %d b16 %d", v, qf, qb)
		}
		if got := b.Float(b.FromQ31(qb)); math.Abs(got-v) > 1e-4 {
			t.Errorf("FromQ31 b16 %v = %v", v, got)
		}
		if got := f.Float(f.FromQ31(qf)); math.Abs(got-v) > 1e-6 {
			t.Errorf("FromQ31 f32 %v = %v", v, got)
		}
	}
	if f.Q31(2) != math.MaxInt32 || b.Q31(b.FromFloat(2)) != math.MaxInt32 {
		t.Error("Q31 should saturate at 1")
	}
}
