package safety

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/sim"
)

type mockOutput struct {
	disabled atomic.Int32
}

func (o *mockOutput) Disable() error {
	o.disabled.Add(1)
	return nil
}

type recordingSink struct {
	last   [3]float64
	writes int
}

func (r *recordingSink) Write(d [3]float64) error {
	r.writes++
	r.last = d
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestNew(t *testing.T) {
	m := New(Config{})
	if m.State() != StateRunning {
		t.Errorf("state = %v, want running", m.State())
	}
	if m.IsTripped() {
		t.Error("new manager is tripped")
	}
	if err := m.CheckOperational(); err != nil {
		t.Errorf("CheckOperational = %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateRunning, "running"},
		{StateTripping, "tripping"},
		{StateTripped, "tripped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestThresholds(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		sample sim.Sample
		reason Reason
	}{
		{
			name:   "overcurrent",
			cfg:    Config{CurrentMax: 5},
			sample: sim.Sample{Tick: 7, Current: [3]float64{1, -5.5, 4.5}},
			reason: ReasonOvercurrent,
		},
		{
			name:   "overspeed",
			cfg:    Config{SpeedMax: 200},
			sample: sim.Sample{Tick: 7, Speed: -250},
			reason: ReasonOverspeed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.cfg)
			out := &mockOutput{}
			m.Register(out)

			err := m.Observe(&tt.sample)
			if !errors.Is(err, errors.ErrFault) || !stderrors.Is(err, errors.ErrTripped) {
				t.Fatalf("Observe = %v, want fault", err)
			}
			if m.State() != StateTripped {
				t.Errorf("state = %v", m.State())
			}
			if out.disabled.Load() != 1 {
				t.Errorf("output disabled %d times", out.disabled.Load())
			}
			st := m.Status()
			if st.Reason != string(tt.reason) || st.TripTick != 7 {
				t.Errorf("status = %+v", st)
			}
		})
	}
}

func TestWithinLimits(t *testing.T) {
	m := New(Config{CurrentMax: 5, SpeedMax: 200, OvermodLimit: 3})
	smp := sim.Sample{Current: [3]float64{4.9, -4.9, 0}, Speed: 199}
	for i := 0; i < 100; i++ {
		if err := m.Observe(&smp); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
}

func TestOvermodulationRun(t *testing.T) {
	m := New(Config{OvermodLimit: 2})
	over := sim.Sample{Overmod: true}
	ok := sim.Sample{}

	// Interrupted runs never trip
	for _, s := range []*sim.Sample{&over, &over, &ok, &over, &over, &ok} {
		if err := m.Observe(s); err != nil {
			t.Fatal(err)
		}
	}
	m.Observe(&over)
	m.Observe(&over)
	if err := m.Observe(&over); !errors.Is(err, errors.ErrFault) {
		t.Fatalf("third overmodulated tick = %v", err)
	}
	if m.Status().Reason != string(ReasonOvermod) {
		t.Errorf("reason = %q", m.Status().Reason)
	}
}

func TestTrippedStaysTripped(t *testing.T) {
	m := New(Config{CurrentMax: 1})
	out := &mockOutput{}
	m.Register(out)

	m.Observe(&sim.Sample{Current: [3]float64{2, 0, 0}})
	if err := m.Trip(ReasonUserRequest, "stop"); err == nil {
		t.Fatal("second trip returned nil")
	}
	if err := m.Observe(&sim.Sample{}); err == nil {
		t.Error("tripped manager accepted a sample")
	}
	if out.disabled.Load() != 1 {
		t.Errorf("output disabled %d times, want 1", out.disabled.Load())
	}
	if m.Status().Reason != string(ReasonOvercurrent) {
		t.Errorf("first reason lost: %q", m.Status().Reason)
	}
}

func TestObserveError(t *testing.T) {
	m := New(Config{})
	var got Reason
	m.OnTrip(func(r Reason, msg string) { got = r })

	m.ObserveError(errors.StateError("run"))
	if got != ReasonHandler {
		t.Errorf("callback reason = %q", got)
	}
	if !m.IsTripped() {
		t.Error("manager not tripped")
	}
}

func TestSinkDisabler(t *testing.T) {
	sink := &recordingSink{last: [3]float64{0.4, 0.5, 0.6}}
	m := New(Config{})
	m.Register(SinkDisabler{Sink: sink})

	m.Trip(ReasonUserRequest, "park")
	if sink.writes != 1 || sink.last != [3]float64{} {
		t.Errorf("sink writes=%d last=%v", sink.writes, sink.last)
	}
}

func TestReset(t *testing.T) {
	m := New(Config{OvermodLimit: 1})
	if err := m.Reset(); err != nil {
		t.Errorf("Reset while running = %v", err)
	}

	over := sim.Sample{Overmod: true}
	m.Observe(&over)
	m.Observe(&over)
	if !m.IsTripped() {
		t.Fatal("not tripped")
	}
	if err := m.Reset(); err != nil {
		t.Fatal(err)
	}
	if st := m.Status(); st.State != "running" || st.Reason != "" {
		t.Errorf("status after reset = %+v", st)
	}
	if err := m.Observe(&over); err != nil {
		t.Errorf("overmod run not cleared: %v", err)
	}
}

func TestWatchdog(t *testing.T) {
	m := New(Config{WatchdogTimeout: 50 * time.Millisecond})
	tripped := make(chan Reason, 1)
	m.OnTrip(func(r Reason, msg string) { tripped <- r })

	m.StartWatchdog(context.Background())
	defer m.StopWatchdog()

	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		m.Observe(&sim.Sample{})
	}
	if m.IsTripped() {
		t.Fatal("tripped while ticks arrive")
	}

	select {
	case r := <-tripped:
		if r != ReasonWatchdog {
			t.Errorf("reason = %q", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not trip")
	}
}

func TestResetRestartsWatchdog(t *testing.T) {
	m := New(Config{WatchdogTimeout: 30 * time.Millisecond})
	tripped := make(chan Reason, 2)
	m.OnTrip(func(r Reason, msg string) { tripped <- r })

	m.StartWatchdog(context.Background())
	defer m.StopWatchdog()

	for i := 0; i < 2; i++ {
		select {
		case r := <-tripped:
			if r != ReasonWatchdog {
				t.Fatalf("trip %d reason = %q", i, r)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("watchdog did not trip after reset %d", i)
		}
		if err := m.Reset(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestResetAfterStopWatchdog(t *testing.T) {
	m := New(Config{WatchdogTimeout: 20 * time.Millisecond})
	m.StartWatchdog(context.Background())
	m.StopWatchdog()

	m.Trip(ReasonUserRequest, "stop")
	if err := m.Reset(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if m.IsTripped() {
		t.Error("stopped watchdog was restarted by Reset")
	}
}

func TestWatchdogCancelled(t *testing.T) {
	m := New(Config{WatchdogTimeout: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	m.StartWatchdog(ctx)
	cancel()

	time.Sleep(100 * time.Millisecond)
	if m.IsTripped() {
		t.Error("cancelled watchdog tripped")
	}
	m.StopWatchdog()
}

func TestSimulatorTrip(t *testing.T) {
	cfg := sim.DefaultConfig()
	s, err := sim.NewF32(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	m := New(Config{SpeedMax: 20})
	sink := &recordingSink{}
	m.Register(SinkDisabler{Sink: sink})
	s.AddObserver(m)
	s.AddObserver(sim.SinkObserver{Sink: m.Guard(sink)})

	rep, err := s.Run(context.Background(), 5000)
	if !errors.Is(err, errors.ErrFault) {
		t.Fatalf("Run = %v, want fault", err)
	}
	if rep.Ticks >= 5000 {
		t.Errorf("run was not stopped: %d ticks", rep.Ticks)
	}
	if sink.last != [3]float64{} {
		t.Errorf("outputs not parked: %v", sink.last)
	}
}

func TestGuard(t *testing.T) {
	sink := &recordingSink{}
	m := New(Config{})
	m.Register(SinkDisabler{Sink: sink})
	out := m.Guard(sink)

	if err := out.Write([3]float64{0.3, 0.4, 0.5}); err != nil {
		t.Fatal(err)
	}
	m.Trip(ReasonUserRequest, "park")
	if err := out.Write([3]float64{0.7, 0.7, 0.7}); !errors.Is(err, errors.ErrFault) {
		t.Errorf("write after trip = %v, want fault", err)
	}
	if sink.last != [3]float64{} || sink.writes != 2 {
		t.Errorf("sink writes=%d last=%v", sink.writes, sink.last)
	}

	m.Reset()
	if err := out.Write([3]float64{0.1, 0.2, 0.3}); err != nil {
		t.Errorf("write after reset = %v", err)
	}
}

func TestGuardConcurrentTrip(t *testing.T) {
	for n := 0; n < 50; n++ {
		sink := &recordingSink{}
		m := New(Config{})
		m.Register(SinkDisabler{Sink: sink})
		out := m.Guard(sink)

		var wg sync.WaitGroup
		done := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					out.Write([3]float64{0.9, 0.9, 0.9})
				}
			}
		}()

		time.Sleep(time.Millisecond)
		m.Trip(ReasonWatchdog, "no tick")
		close(done)
		wg.Wait()

		if sink.last != [3]float64{} {
			t.Fatalf("run %d: output un-parked after trip: %v", n, sink.last)
		}
	}
}
