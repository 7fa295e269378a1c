//go:build linux

package pwmout

import (
	stderrors "errors"
	"testing"

	"github.com/knieriem/sysfspwm"

	"nuttx-foc-go/pkg/errors"
)

type pwmCall struct {
	duty int32
	freq int64
}

type fakeChannel struct {
	n      int
	calls  []pwmCall
	closed bool
	err    error
}

func (f *fakeChannel) PWM(duty int32, freq int64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, pwmCall{duty, freq})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func (f *fakeChannel) last() pwmCall {
	if len(f.calls) == 0 {
		return pwmCall{-1, -1}
	}
	return f.calls[len(f.calls)-1]
}

// fakeChip replaces the sysfs channel opener for the test. Channels with
// an index of npwm or above fail to open.
func fakeChip(t *testing.T, npwm int) map[int]*fakeChannel {
	t.Helper()
	opened := make(map[int]*fakeChannel)
	prev := openChannel
	openChannel = func(chip, n int) (channel, error) {
		if n >= npwm {
			return nil, stderrors.New("could not export channel")
		}
		ch := &fakeChannel{n: n}
		opened[n] = ch
		return ch, nil
	}
	t.Cleanup(func() { openChannel = prev })
	return opened
}

func TestSysfsWrite(t *testing.T) {
	chans := fakeChip(t, 8)
	s, err := OpenSysfs(SysfsConfig{Channels: [3]int{3, 4, 5}, Freq: 20000})
	if err != nil {
		t.Fatal(err)
	}
	if s.Period() != 50000 {
		t.Errorf("period = %d, want 50000", s.Period())
	}
	for _, n := range []int{3, 4, 5} {
		if got := chans[n].last(); got != (pwmCall{0, 20000000}) {
			t.Errorf("pwm%d enabled with %+v", n, got)
		}
	}

	if err := s.Write([3]float64{0.5, 0.25, 1.5}); err != nil {
		t.Fatal(err)
	}
	want := []int32{sysfspwm.DutyMax / 2, sysfspwm.DutyMax / 4, sysfspwm.DutyMax}
	for i, n := range []int{3, 4, 5} {
		if got := chans[n].last(); got.duty != want[i] || got.freq != 20000000 {
			t.Errorf("pwm%d = %+v, want duty %d", n, got, want[i])
		}
	}

	// Unchanged duty cycles are not rewritten
	before := len(chans[3].calls)
	if err := s.Write([3]float64{0.5, 0.3, 1}); err != nil {
		t.Fatal(err)
	}
	if len(chans[3].calls) != before {
		t.Error("unchanged duty cycle was written again")
	}
	if len(chans[4].calls) != before+1 {
		t.Error("changed duty cycle was not written")
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{3, 4, 5} {
		ch := chans[n]
		k := len(ch.calls)
		if ch.calls[k-2] != (pwmCall{0, 20000000}) || ch.calls[k-1] != (pwmCall{0, 0}) || !ch.closed {
			t.Errorf("pwm%d not parked and released: %+v closed=%v", n, ch.calls[k-2:], ch.closed)
		}
	}
}

func TestSysfsOpenErrors(t *testing.T) {
	t.Run("missing channel", func(t *testing.T) {
		chans := fakeChip(t, 2)
		_, err := OpenSysfs(SysfsConfig{Channels: [3]int{0, 1, 2}, Freq: 1000})
		if !errors.Is(err, errors.ErrPWMOutput) {
			t.Fatalf("expected PWM error, got %v", err)
		}
		// Channels opened before the failure are released disabled
		for _, n := range []int{0, 1} {
			if !chans[n].closed || chans[n].last() != (pwmCall{0, 0}) {
				t.Errorf("pwm%d left open: %+v", n, chans[n].calls)
			}
		}
	})

	t.Run("bad frequency", func(t *testing.T) {
		fakeChip(t, 3)
		for _, freq := range []float64{0, -5, 1e-6} {
			if _, err := OpenSysfs(SysfsConfig{Freq: freq}); !errors.Is(err, errors.ErrConfigValidation) {
				t.Errorf("freq %v: expected validation error, got %v", freq, err)
			}
		}
	})
}

func TestSysfsWriteError(t *testing.T) {
	chans := fakeChip(t, 3)
	s, err := OpenSysfs(SysfsConfig{Channels: [3]int{0, 1, 2}, Freq: 10000})
	if err != nil {
		t.Fatal(err)
	}
	chans[1].err = stderrors.New("write error")
	if err := s.Write([3]float64{0.1, 0.2, 0.3}); !errors.Is(err, errors.ErrPWMOutput) {
		t.Errorf("expected PWM error, got %v", err)
	}
	chans[1].err = nil
	if err := s.Write([3]float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	duty := 0.2
	if got := chans[1].last().duty; got != int32(duty*float64(sysfspwm.DutyMax)) {
		t.Errorf("failed write not retried, duty = %d", got)
	}
	s.Close()
}

func TestOpenSysfsKind(t *testing.T) {
	fakeChip(t, 3)
	sink, err := Open(Config{Kind: KindSysfs, Sysfs: SysfsConfig{Channels: [3]int{0, 1, 2}, Freq: 16000}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*Sysfs); !ok {
		t.Errorf("sink = %T, want *Sysfs", sink)
	}
	sink.Close()
}
