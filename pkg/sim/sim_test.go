package sim

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/foc"
)

func loadedConfig() Config {
	cfg := DefaultConfig()
	cfg.Load = 0.01
	return cfg
}

func TestSimSpeedControl(t *testing.T) {
	s, err := NewF32(loadedConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rep, err := s.Run(context.Background(), 5000)
	if err != nil {
		t.Fatal(err)
	}

	// The period is single precision
	if rep.Ticks != 5000 || math.Abs(rep.Duration-0.5) > 1e-6 {
		t.Errorf("ticks/duration = %d/%v", rep.Ticks, rep.Duration)
	}
	if math.Abs(rep.SpeedMean-100) > 3 {
		t.Errorf("speed mean = %v, want ~100", rep.SpeedMean)
	}
	if rep.DutyMax > 0.95 {
		t.Errorf("duty max = %v exceeds limit", rep.DutyMax)
	}
	if rep.Overmod != 0 {
		t.Errorf("overmodulated %d times", rep.Overmod)
	}
	if math.IsNaN(rep.IqErrRMS) || rep.IqErrRMS <= 0 {
		t.Errorf("iq error rms = %v", rep.IqErrRMS)
	}

	// Phase currents rotate at the electrical frequency
	fe := 100 * 7 / (2 * math.Pi)
	if math.Abs(rep.CurrentPeakHz-fe) > 15 {
		t.Errorf("current peak = %v Hz, want ~%v", rep.CurrentPeakHz, fe)
	}
}

func TestSimNumericVariantsAgree(t *testing.T) {
	ctx := context.Background()

	sf, err := NewF32(loadedConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer sf.Close()
	rf, err := sf.Run(ctx, 4000)
	if err != nil {
		t.Fatal(err)
	}

	sb, err := NewB16(loadedConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer sb.Close()
	rb, err := sb.Run(ctx, 4000)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(rf.SpeedMean-rb.SpeedMean) > 0.02*rf.SpeedMean {
		t.Errorf("speed f32 %v vs b16 %v", rf.SpeedMean, rb.SpeedMean)
	}
}

func TestSimVoltageMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = foc.ModeVoltage
	cfg.VoltageQ = 0.35
	s, err := NewF32(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rep, err := s.Run(context.Background(), 3000)
	if err != nil {
		t.Fatal(err)
	}

	// No-load speed is vq / (pole pairs * flux linkage)
	want := 0.35 / (7 * 0.001)
	if math.Abs(rep.SpeedMean-want) > 0.05*want {
		t.Errorf("speed = %v, want ~%v", rep.SpeedMean, want)
	}
	if rep.IqErrRMS != 0 {
		t.Errorf("iq error reported in voltage mode: %v", rep.IqErrRMS)
	}
}

func TestSimOpenLoopAngle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = foc.ModeVoltage
	cfg.OpenLoop = true
	cfg.SpeedRef = 20
	cfg.RampAcc = 1e6
	s, err := NewF32(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	step := 20 * 7 * float64(cfg.Motor.Per)
	prev := math.NaN()
	s.AddObserver(ObserverFunc(func(smp *Sample) error {
		if !math.IsNaN(prev) {
			d := math.Mod(smp.Angle-prev+2*math.Pi, 2*math.Pi)
			if math.Abs(d-step) > 1e-5 {
				t.Errorf("tick %d: angle step %v, want %v", smp.Tick, d, step)
			}
		}
		prev = smp.Angle
		return nil
	}))

	if _, err := s.Run(context.Background(), 200); err != nil {
		t.Fatal(err)
	}
}

func TestSimCordicEngine(t *testing.T) {
	cfg := loadedConfig()
	cfg.Cordic = foc.SoftwareEngine(0)
	s, err := NewF32(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rep, err := s.Run(context.Background(), 2000)
	if err != nil {
		t.Fatal(err)
	}
	if rep.SpeedMean <= 50 {
		t.Errorf("speed mean = %v, drive did not accelerate", rep.SpeedMean)
	}
}

func TestSimCancel(t *testing.T) {
	s, err := NewF32(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s.AddObserver(ObserverFunc(func(smp *Sample) error {
		if smp.Tick == 9 {
			cancel()
		}
		return nil
	}))

	rep, err := s.Run(ctx, 1000)
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v", err)
	}
	if rep.Ticks != 10 {
		t.Errorf("ticks = %d, want 10", rep.Ticks)
	}

	rep, err = s.Run(ctx, 1000)
	if err == nil || rep.Ticks != 0 {
		t.Errorf("Run on cancelled context = %v, %d ticks", err, rep.Ticks)
	}
}

type countingErrors struct {
	errs int
}

func (c *countingErrors) Observe(*Sample) error { return nil }
func (c *countingErrors) ObserveError(error)    { c.errs++ }

func TestSimObserverError(t *testing.T) {
	s, err := NewF32(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	boom := stderrors.New("sink gone")
	s.AddObserver(ObserverFunc(func(smp *Sample) error {
		if smp.Tick == 3 {
			return boom
		}
		return nil
	}))

	rep, err := s.Run(context.Background(), 100)
	if !stderrors.Is(err, boom) {
		t.Fatalf("Run error = %v", err)
	}
	if rep.Ticks != 4 {
		t.Errorf("ticks = %d, want 4", rep.Ticks)
	}
}

func TestSimHandlerError(t *testing.T) {
	s, err := NewF32(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	counter := &countingErrors{}
	s.AddObserver(counter)

	s.Close()
	if _, err := s.Run(context.Background(), 10); !stderrors.Is(err, errors.ErrNotInitialized) {
		t.Fatalf("Run after Close = %v", err)
	}
	if counter.errs != 1 {
		t.Errorf("error observer called %d times", counter.errs)
	}
}

type recordingSink struct {
	writes int
	last   [3]float64
}

func (r *recordingSink) Write(d [3]float64) error {
	r.writes++
	r.last = d
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestSinkObserver(t *testing.T) {
	s, err := NewF32(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	sink := &recordingSink{}
	s.AddObserver(SinkObserver{Sink: sink})
	if _, err := s.Run(context.Background(), 25); err != nil {
		t.Fatal(err)
	}
	if sink.writes != 25 {
		t.Errorf("sink writes = %d, want 25", sink.writes)
	}
	for i, d := range sink.last {
		if d < 0 || d > 0.95 {
			t.Errorf("duty[%d] = %v", i, d)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero bus voltage", func(c *Config) { c.VBus = 0 }},
		{"duty max above one", func(c *Config) { c.DutyMax = 1.5 }},
		{"idle mode", func(c *Config) { c.Mode = foc.ModeIdle }},
		{"no current limit", func(c *Config) { c.CurrentMax = 0 }},
		{"bad motor", func(c *Config) { c.Motor.Res = 0 }},
		{"bad ramp", func(c *Config) { c.RampAcc = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if _, err := NewF32(cfg); !errors.Is(err, errors.ErrConfigValidation) {
				t.Errorf("NewF32 = %v, want validation error", err)
			}
		})
	}
}

func TestSpectrumPeak(t *testing.T) {
	const fs = 1000.0
	x := make([]float64, 2048)
	for i := range x {
		x[i] = 0.3 + math.Sin(2*math.Pi*50*float64(i)/fs)
	}

	spec := NewSpectrum(fftLen(len(x)))
	freqs, psd := spec.PSD(x, fs)
	if freqs == nil {
		t.Fatal("no spectrum")
	}
	if got := peakFreq(freqs, psd); math.Abs(got-50) > fs/1024 {
		t.Errorf("peak = %v Hz, want 50", got)
	}

	if f, _ := spec.PSD(x[:100], fs); f != nil {
		t.Error("short input should give no spectrum")
	}
}

func TestReportFinalQuarter(t *testing.T) {
	tests := []struct {
		speeds []float64
		mean   float64
	}{
		{[]float64{0, 1, 2, 3, 4, 5, 6, 7}, 6.5},
		{[]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 10},
		{[]float64{3, 9}, 9},
		{[]float64{4}, 4},
	}
	for _, tt := range tests {
		rec := newRecorder(len(tt.speeds), 1e-4, foc.ModeVoltage)
		for _, v := range tt.speeds {
			rec.add(&Sample{Speed: v})
		}
		rep := rec.report()
		if rep.SpeedMean != tt.mean {
			t.Errorf("%d samples: speed mean = %v, want %v", len(tt.speeds), rep.SpeedMean, tt.mean)
		}
	}
}
