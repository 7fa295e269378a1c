package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"nuttx-foc-go/pkg/foc"
)

// Report summarizes a simulation run.
type Report struct {
	Ticks    int     `json:"ticks"`
	Duration float64 `json:"duration"`

	// Speed statistics over the final quarter of the run [rad/s]
	SpeedMean   float64 `json:"speed_mean"`
	SpeedStdDev float64 `json:"speed_stddev"`

	// IqErrRMS is the RMS q current tracking error (current mode) [A]
	IqErrRMS float64 `json:"iq_err_rms"`

	DutyMax float64 `json:"duty_max"`
	Overmod int     `json:"overmod"`

	// CurrentPeakHz is the dominant frequency of the phase a current over
	// the second half of the run
	CurrentPeakHz float64 `json:"current_peak_hz"`

	// RunTimeMean is the mean handler execution time [s]
	RunTimeMean float64 `json:"run_time_mean"`
}

func (r *Report) String() string {
	return fmt.Sprintf("ticks=%d t=%.3fs speed=%.2f±%.3f rad/s iq_err_rms=%.4f A "+
		"duty_max=%.3f overmod=%d f_current=%.1f Hz run=%.2fus",
		r.Ticks, r.Duration, r.SpeedMean, r.SpeedStdDev, r.IqErrRMS,
		r.DutyMax, r.Overmod, r.CurrentPeakHz, r.RunTimeMean*1e6)
}

type recorder struct {
	per  float64
	mode foc.Mode

	speed   []float64
	iqErr   []float64
	ia      []float64
	runTime []float64
	dutyMax float64
	overmod int
}

func newRecorder(ticks int, per float64, mode foc.Mode) *recorder {
	return &recorder{
		per:     per,
		mode:    mode,
		speed:   make([]float64, 0, ticks),
		iqErr:   make([]float64, 0, ticks),
		ia:      make([]float64, 0, ticks),
		runTime: make([]float64, 0, ticks),
	}
}

func (r *recorder) add(s *Sample) {
	r.speed = append(r.speed, s.Speed)
	r.ia = append(r.ia, s.Current[0])
	r.runTime = append(r.runTime, s.RunTime)
	if r.mode == foc.ModeCurrent {
		r.iqErr = append(r.iqErr, s.IDQRef[1]-s.IDQ[1])
	}
	if m := floats.Max(s.Duty[:]); m > r.dutyMax {
		r.dutyMax = m
	}
	if s.Overmod {
		r.overmod++
	}
}

func (r *recorder) report() *Report {
	n := len(r.speed)
	rep := &Report{
		Ticks:    n,
		Duration: float64(n) * r.per,
		DutyMax:  r.dutyMax,
		Overmod:  r.overmod,
	}
	if n == 0 {
		return rep
	}

	tail := r.speed[n-max(n/4, 1):]
	rep.SpeedMean, rep.SpeedStdDev = stat.MeanStdDev(tail, nil)
	if len(tail) < 2 {
		rep.SpeedStdDev = 0
	}
	if len(r.iqErr) > 0 {
		rep.IqErrRMS = floats.Norm(r.iqErr, 2) / math.Sqrt(float64(len(r.iqErr)))
	}
	rep.RunTimeMean = stat.Mean(r.runTime, nil)

	half := r.ia[n/2:]
	if len(half) >= 64 {
		spec := NewSpectrum(fftLen(len(half)))
		if freqs, psd := spec.PSD(half, 1/r.per); freqs != nil {
			rep.CurrentPeakHz = peakFreq(freqs, psd)
		}
	}
	return rep
}
