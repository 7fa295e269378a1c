// PI current controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

import (
	"nuttx-foc-go/pkg/cordic"
	"nuttx-foc-go/pkg/dsp"
	"nuttx-foc-go/pkg/log"
)

// EngineOpener opens the CORDIC engine used by a controller.
type EngineOpener func() (cordic.Engine, error)

// DeviceEngine opens the CORDIC device at path.
func DeviceEngine(path string) EngineOpener {
	return func() (cordic.Engine, error) {
		return cordic.OpenDevice(cordic.DeviceConfig{Path: path})
	}
}

// SoftwareEngine uses the software CORDIC with the given iteration count.
func SoftwareEngine(iterations int) EngineOpener {
	return func() (cordic.Engine, error) {
		return cordic.NewSoftware(iterations), nil
	}
}

// PIControl is a dq-frame current controller with one PI regulator per
// axis. Voltages it produces are normalized by the base voltage, so the
// modulation sees 1.0 as the largest undistorted vector.
type PIControl[T any, A dsp.Arith[T]] struct {
	a     A
	trans dsp.Transform[T, A]

	open  EngineOpener
	accel *cordic.Accel[T, A]

	idPI dsp.PI[T, A]
	iqPI dsp.PI[T, A]

	angle     dsp.PhaseAngle[T]
	vdqMagMax T
	st        State[T]

	logger *log.Logger
}

// NewPIControl returns a controller. If open is nil the phase angle and
// vector saturation are computed in software with the scalar type.
func NewPIControl[T any, A dsp.Arith[T]](open EngineOpener) *PIControl[T, A] {
	return &PIControl[T, A]{
		trans:  dsp.NewTransform[T, A](),
		open:   open,
		logger: log.GetLogger("foc.picontrol"),
	}
}

// Init implements Controller.
func (c *PIControl[T, A]) Init() error {
	c.st = State[T]{}
	c.angle = dsp.PhaseAngle[T]{}
	c.vdqMagMax = c.a.Zero()
	c.idPI.Reset()
	c.iqPI.Reset()

	if c.open != nil {
		eng, err := c.open()
		if err != nil {
			return err
		}
		c.accel = cordic.NewAccel[T, A](eng)
		c.logger.Debug("using CORDIC engine %T", eng)
	}
	return nil
}

// Deinit implements Controller.
func (c *PIControl[T, A]) Deinit() {
	if c.accel == nil {
		return
	}
	if err := c.accel.Engine().Close(); err != nil {
		c.logger.WithError(err).Warn("CORDIC close failed")
	}
	c.accel = nil
}

// Configure implements Controller. Both integrators are cleared.
func (c *PIControl[T, A]) Configure(cfg *ControlConfig[T]) {
	c.idPI.Init(cfg.IdKp, cfg.IdKi)
	c.iqPI.Init(cfg.IqKp, cfg.IqKi)
}

// InputSet implements Controller.
func (c *PIControl[T, A]) InputSet(curr *dsp.ABC[T], vbase, angle T) error {
	a := c.a
	zero := a.Zero()

	c.st.Curr = *curr

	c.st.ModScale = zero
	if a.Less(zero, vbase) {
		if k := a.Div(a.FromFloat(1), vbase); a.Finite(k) {
			c.st.ModScale = k
		}
	}
	c.vdqMagMax = vbase

	if c.accel != nil {
		s, co, err := c.accel.SinCos(angle)
		if err != nil {
			return err
		}
		c.angle = dsp.PhaseAngle[T]{Angle: angle, Sin: s, Cos: co}
	} else {
		c.trans.AngleUpdate(&c.angle, angle)
	}

	c.trans.Clarke(&c.st.Curr, &c.st.IAB)
	c.trans.Park(&c.st.IAB, &c.angle, &c.st.IDQ)
	return nil
}

// VoltageRun implements Controller. A nil reference is a zero vector.
func (c *PIControl[T, A]) VoltageRun(vdqRef *dsp.DQFrame[T], vab *dsp.ABFrame[T]) error {
	if vdqRef != nil {
		c.st.VDQ = *vdqRef
	} else {
		c.st.VDQ = dsp.DQFrame[T]{}
	}
	return c.output(vab)
}

// CurrentRun implements Controller. The compensation, if any, is
// subtracted from the regulator outputs.
func (c *PIControl[T, A]) CurrentRun(idqRef, vdqComp *dsp.DQFrame[T], vab *dsp.ABFrame[T]) error {
	a := c.a

	var ref dsp.DQFrame[T]
	if idqRef != nil {
		ref = *idqRef
	}

	c.idPI.SetLimits(c.vdqMagMax)
	c.iqPI.SetLimits(c.vdqMagMax)

	vd := c.idPI.Run(a.Sub(ref.D, c.st.IDQ.D))
	vq := c.iqPI.Run(a.Sub(ref.Q, c.st.IDQ.Q))
	if vdqComp != nil {
		vd = a.Sub(vd, vdqComp.D)
		vq = a.Sub(vq, vdqComp.Q)
	}

	c.st.VDQ = dsp.DQFrame[T]{D: vd, Q: vq}
	return c.output(vab)
}

// output saturates the dq voltage, transforms it back to the stationary
// frame and normalizes it.
func (c *PIControl[T, A]) output(vab *dsp.ABFrame[T]) error {
	a := c.a

	if c.accel != nil {
		if err := c.accel.DQSat(&c.st.VDQ, c.vdqMagMax); err != nil {
			return err
		}
	} else {
		c.trans.DQSaturate(&c.st.VDQ, c.vdqMagMax)
	}

	c.trans.InvPark(&c.st.VDQ, &c.angle, &c.st.VAB)
	c.trans.InvClarke(&c.st.VAB, &c.st.Volt)

	vab.A = a.Mul(c.st.VAB.A, c.st.ModScale)
	vab.B = a.Mul(c.st.VAB.B, c.st.ModScale)
	return nil
}

// State implements Controller.
func (c *PIControl[T, A]) State(st *State[T]) {
	*st = c.st
}
