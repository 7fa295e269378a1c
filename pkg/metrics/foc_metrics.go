package metrics

import (
	stderrors "errors"

	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/sim"
)

var (
	phaseLabels = [3]Labels{{"phase": "a"}, {"phase": "b"}, {"phase": "c"}}
	axisLabels  = [2]Labels{{"axis": "d"}, {"axis": "q"}}
)

// FOCMetrics collects handler statistics. It implements sim.Observer and
// sim.ErrorObserver.
type FOCMetrics struct {
	RunTotal    *Counter
	RunErrors   *Counter
	RunDuration *Histogram
	Overmod     *Counter

	Duty      *Gauge
	CurrentDQ *Gauge
	VoltageDQ *Gauge
	SpeedMech *Gauge
	SpeedRef  *Gauge
	VBus      *Gauge

	registry *Registry
}

// NewFOCMetrics creates the metric set with its own registry.
func NewFOCMetrics() *FOCMetrics {
	m := &FOCMetrics{
		RunTotal: NewCounter("foc_run_total",
			"Handler runs completed"),
		RunErrors: NewCounter("foc_run_errors_total",
			"Handler runs failed, by error code"),
		RunDuration: NewHistogram("foc_run_duration_seconds",
			"Handler execution time", ExponentialBuckets(250e-9, 2, 12)),
		Overmod: NewCounter("foc_overmod_total",
			"Runs with the voltage vector outside the linear region"),
		Duty: NewGauge("foc_duty",
			"Last duty cycle per phase"),
		CurrentDQ: NewGauge("foc_current_dq",
			"Last rotating frame current"),
		VoltageDQ: NewGauge("foc_voltage_dq",
			"Last rotating frame voltage"),
		SpeedMech: NewGauge("foc_speed_mech",
			"Mechanical rotor speed"),
		SpeedRef: NewGauge("foc_speed_ref",
			"Ramped speed set point"),
		VBus: NewGauge("foc_vbus",
			"DC bus voltage"),
		registry: NewRegistry(),
	}
	m.registry.MustRegister(
		m.RunTotal, m.RunErrors, m.RunDuration, m.Overmod,
		m.Duty, m.CurrentDQ, m.VoltageDQ,
		m.SpeedMech, m.SpeedRef, m.VBus,
	)
	return m
}

// Observe records one control tick.
func (m *FOCMetrics) Observe(s *sim.Sample) error {
	m.RunTotal.Inc(nil)
	m.RunDuration.Observe(nil, s.RunTime)
	if s.Overmod {
		m.Overmod.Inc(nil)
	}
	for i, l := range phaseLabels {
		m.Duty.Set(l, s.Duty[i])
	}
	for i, l := range axisLabels {
		m.CurrentDQ.Set(l, s.IDQ[i])
		m.VoltageDQ.Set(l, s.VDQ[i])
	}
	m.SpeedMech.Set(nil, s.Speed)
	m.SpeedRef.Set(nil, s.SpeedRef)
	m.VBus.Set(nil, s.VBus)
	return nil
}

// ObserveError counts a failed run under its error code.
func (m *FOCMetrics) ObserveError(err error) {
	code := "unknown"
	var fe *errors.FOCError
	if stderrors.As(err, &fe) {
		code = string(fe.Code)
	}
	m.RunErrors.Inc(Labels{"code": code})
}

// Gather renders all metrics in the Prometheus text format.
func (m *FOCMetrics) Gather() string {
	return m.registry.Gather()
}

// Registry returns the registry backing the metric set.
func (m *FOCMetrics) Registry() *Registry {
	return m.registry
}
