// Closed-loop motor simulation
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package sim runs the FOC handler against a PMSM model.
//
// Each tick the simulator ramps the speed set point, samples the model's
// phase currents, runs the handler, converts the duty cycles back into
// phase voltages and integrates the model by one period. Observers see
// every tick.
package sim

import (
	"context"
	"time"

	"nuttx-foc-go/pkg/dsp"
	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/fixedmath"
	"nuttx-foc-go/pkg/foc"
	"nuttx-foc-go/pkg/log"
	"nuttx-foc-go/pkg/motor"
)

// Config describes the simulated drive.
type Config struct {
	Motor motor.PMSMParams

	// VBus is the DC bus voltage [V]
	VBus float64

	// Mode is ModeCurrent (speed loop driving iq) or ModeVoltage
	// (constant q voltage)
	Mode foc.Mode

	DutyMax           float64
	CurrentCorrection bool

	// Current regulator gains
	IdKp, IdKi float64
	IqKp, IqKi float64

	// SpeedRef is the mechanical speed target [rad/s]
	SpeedRef float64

	// Speed regulator, current mode only
	SpeedKp, SpeedKi float64
	CurrentMax       float64

	// Speed ramp [rad/s, rad/s^2]
	RampThr, RampAcc, RampDec float64

	// OpenLoop takes the angle from the ramped speed instead of the rotor
	OpenLoop bool

	// VoltageQ is the q voltage in voltage mode [V]
	VoltageQ float64

	// Load is the load torque [N*m]
	Load float64

	// Cordic optionally moves the trigonometry to a CORDIC engine
	Cordic foc.EngineOpener
}

// DefaultConfig returns a speed-controlled drive of the default motor.
func DefaultConfig() Config {
	return Config{
		Motor:      motor.DefaultPMSMParams(),
		VBus:       24,
		Mode:       foc.ModeCurrent,
		DutyMax:    0.95,
		IdKp:       0.2,
		IdKi:       0.011,
		IqKp:       0.2,
		IqKi:       0.011,
		SpeedRef:   100,
		SpeedKp:    0.095,
		SpeedKi:    0.0002,
		CurrentMax: 10,
		RampThr:    0.5,
		RampAcc:    1000,
		RampDec:    1000,
		VoltageQ:   1,
	}
}

// Validate checks the parts of the configuration not covered by the
// components themselves.
func (c *Config) Validate() error {
	if err := c.Motor.Validate(); err != nil {
		return err
	}
	switch {
	case c.VBus <= 0:
		return errors.ConfigValidationError("sim", "vbus", "must be positive")
	case c.DutyMax <= 0 || c.DutyMax > 1:
		return errors.ConfigValidationError("foc", "duty_max", "must be in (0, 1]")
	case c.Mode != foc.ModeCurrent && c.Mode != foc.ModeVoltage:
		return errors.ConfigValidationError("foc", "mode", "must be current or voltage")
	case c.Mode == foc.ModeCurrent && c.CurrentMax <= 0:
		return errors.ConfigValidationError("foc", "current_max", "must be positive")
	}
	return nil
}

// Simulator closes the loop between a handler and a PMSM model.
type Simulator[T any, A dsp.Arith[T]] struct {
	a   A
	cfg Config

	handler *foc.Handler[T]
	mod     *foc.SVM3Mod[T, A]
	model   *motor.PMSM

	ramp    motor.Ramp[T, A]
	ol      motor.OpenLoop[T, A]
	speedPI dsp.PI[T, A]
	trans   dsp.Transform[float32, dsp.F32]

	pp       T
	vbus     T
	vq       T
	speedDes T
	speedSet T

	in    foc.Input[T]
	out   foc.Output[T]
	st    foc.State[T]
	dqRef dsp.DQFrame[T]

	tick      uint64
	observers []Observer
	logger    *log.Logger
}

// New builds the simulator. Close releases the handler.
func New[T any, A dsp.Arith[T]](cfg Config) (*Simulator[T, A], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var a A
	f := a.FromFloat
	per := f(float64(cfg.Motor.Per))

	model, err := motor.NewPMSM(cfg.Motor)
	if err != nil {
		return nil, err
	}
	model.SetLoad(float32(cfg.Load))

	s := &Simulator[T, A]{
		cfg:      cfg,
		model:    model,
		mod:      foc.NewSVM3Mod[T, A](),
		trans:    dsp.NewTransform[float32, dsp.F32](),
		pp:       f(float64(cfg.Motor.PolePairs)),
		vbus:     f(cfg.VBus),
		vq:       f(cfg.VoltageQ),
		speedDes: f(cfg.SpeedRef),
		speedSet: a.Zero(),
		logger:   log.GetLogger("sim"),
	}

	if err := s.ramp.Init(per, f(cfg.RampThr), f(cfg.RampAcc), f(cfg.RampDec)); err != nil {
		return nil, err
	}
	if err := s.ol.Init(per); err != nil {
		return nil, err
	}
	s.speedPI.Init(f(cfg.SpeedKp), f(cfg.SpeedKi))
	s.speedPI.SetLimits(f(cfg.CurrentMax))

	s.handler, err = foc.NewHandler[T](foc.NewPIControl[T, A](cfg.Cordic), s.mod)
	if err != nil {
		return nil, err
	}
	s.handler.Configure(
		&foc.ControlConfig[T]{
			IdKp: f(cfg.IdKp), IdKi: f(cfg.IdKi),
			IqKp: f(cfg.IqKp), IqKi: f(cfg.IqKi),
		},
		&foc.ModConfig[T]{
			DutyMax:           f(cfg.DutyMax),
			CurrentCorrection: cfg.CurrentCorrection,
		},
	)

	s.logger.WithFields(log.Fields{
		"mode":      cfg.Mode.String(),
		"vbus":      cfg.VBus,
		"speed_ref": cfg.SpeedRef,
		"open_loop": cfg.OpenLoop,
	}).Info("simulator ready")
	return s, nil
}

// NewF32 builds a single precision simulator.
func NewF32(cfg Config) (*Simulator[float32, dsp.F32], error) {
	return New[float32, dsp.F32](cfg)
}

// NewB16 builds a Q16.16 fixed point simulator.
func NewB16(cfg Config) (*Simulator[fixedmath.B16, dsp.B16], error) {
	return New[fixedmath.B16, dsp.B16](cfg)
}

// AddObserver registers an observer for every following tick.
func (s *Simulator[T, A]) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// SetSpeed changes the speed target; the ramp limits the transition.
func (s *Simulator[T, A]) SetSpeed(ref float64) {
	s.speedDes = s.a.FromFloat(ref)
}

// Motor returns the simulated motor.
func (s *Simulator[T, A]) Motor() *motor.PMSM {
	return s.model
}

// Run simulates ticks control periods. Cancellation is checked between
// ticks. The report covers the ticks completed, also on error.
func (s *Simulator[T, A]) Run(ctx context.Context, ticks int) (*Report, error) {
	rec := newRecorder(ticks, float64(s.cfg.Motor.Per), s.cfg.Mode)
	var sample Sample

	for n := 0; n < ticks; n++ {
		if err := ctx.Err(); err != nil {
			s.logger.WithField("tick", s.tick).Info("simulation cancelled")
			return rec.report(), err
		}

		if err := s.Step(&sample); err != nil {
			for _, o := range s.observers {
				if eo, ok := o.(ErrorObserver); ok {
					eo.ObserveError(err)
				}
			}
			return rec.report(), err
		}
		rec.add(&sample)

		for _, o := range s.observers {
			if err := o.Observe(&sample); err != nil {
				return rec.report(), err
			}
		}
	}
	return rec.report(), nil
}

// Step runs one control tick and fills sample.
func (s *Simulator[T, A]) Step(sample *Sample) error {
	a := s.a
	zero := a.Zero()

	set, _, _ := s.ramp.Run(s.speedDes, s.speedSet)
	s.speedSet = set
	speed := s.model.SpeedMech()

	var angle T
	if s.cfg.OpenLoop {
		s.ol.Update(a.Mul(set, s.pp))
		angle = s.ol.Angle()
	} else {
		angle = a.FromFloat(float64(s.model.AngleElec()))
	}

	curr := s.model.Currents()
	for i := range curr {
		s.in.Current[i] = a.FromFloat(float64(curr[i]))
	}

	switch s.cfg.Mode {
	case foc.ModeCurrent:
		iq := s.speedPI.Run(a.Sub(set, a.FromFloat(float64(speed))))
		s.dqRef = dsp.DQFrame[T]{D: zero, Q: iq}
	default:
		s.dqRef = dsp.DQFrame[T]{D: zero, Q: s.vq}
	}

	s.in.DQRef = &s.dqRef
	s.in.Angle = angle
	s.in.VBus = s.vbus
	s.in.Mode = s.cfg.Mode

	start := time.Now()
	err := s.handler.Run(&s.in, &s.out)
	runTime := time.Since(start)
	if err != nil {
		return err
	}
	s.handler.StateGet(&s.st)

	// Phase voltages relative to the star point
	var duty [3]float64
	mean := 0.0
	for i := range duty {
		duty[i] = a.Float(s.out.Duty[i])
		mean += duty[i] / 3
	}
	var vabc dsp.ABC[float32]
	for i := range vabc {
		vabc[i] = float32((duty[i] - mean) * s.cfg.VBus)
	}
	var vab dsp.ABFrame[float32]
	s.trans.Clarke(&vabc, &vab)
	s.model.Run(&vab)

	*sample = Sample{
		Tick:     s.tick,
		Time:     float64(s.tick) * float64(s.cfg.Motor.Per),
		Mode:     s.cfg.Mode.String(),
		Angle:    a.Float(angle),
		Speed:    float64(speed),
		SpeedRef: a.Float(set),
		Current: [3]float64{
			a.Float(s.in.Current[0]), a.Float(s.in.Current[1]), a.Float(s.in.Current[2]),
		},
		IDQ:     [2]float64{a.Float(s.st.IDQ.D), a.Float(s.st.IDQ.Q)},
		IDQRef:  [2]float64{a.Float(s.dqRef.D), a.Float(s.dqRef.Q)},
		VDQ:     [2]float64{a.Float(s.st.VDQ.D), a.Float(s.st.VDQ.Q)},
		Duty:    duty,
		VBus:    s.cfg.VBus,
		Overmod: s.mod.Overmodulated(),
		RunTime: runTime.Seconds(),
	}
	s.tick++
	return nil
}

// Close releases the handler.
func (s *Simulator[T, A]) Close() {
	s.handler.Deinit()
}
