package sim

import (
	"nuttx-foc-go/pkg/pwmout"
)

// Sample is the state of the closed loop after one control tick.
type Sample struct {
	Tick     uint64     `json:"tick"`
	Time     float64    `json:"time"`
	Mode     string     `json:"mode"`
	Angle    float64    `json:"angle"`
	Speed    float64    `json:"speed"`
	SpeedRef float64    `json:"speed_ref"`
	Current  [3]float64 `json:"current"`
	IDQ      [2]float64 `json:"idq"`
	IDQRef   [2]float64 `json:"idq_ref"`
	VDQ      [2]float64 `json:"vdq"`
	Duty     [3]float64 `json:"duty"`
	VBus     float64    `json:"vbus"`
	Overmod  bool       `json:"overmod"`

	// RunTime is the wall time spent in the handler [s]
	RunTime float64 `json:"run_time"`
}

// Observer is called after every tick. The sample is only valid during
// the call. An error stops the run.
type Observer interface {
	Observe(s *Sample) error
}

// ErrorObserver is implemented by observers that want to see failed ticks.
type ErrorObserver interface {
	ObserveError(err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s *Sample) error

func (f ObserverFunc) Observe(s *Sample) error {
	return f(s)
}

// SinkObserver forwards the duty cycles to a PWM output.
type SinkObserver struct {
	Sink pwmout.Sink
}

func (o SinkObserver) Observe(s *Sample) error {
	return o.Sink.Write(s.Duty)
}
