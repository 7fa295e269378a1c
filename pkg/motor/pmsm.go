// PMSM plant model
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motor

import (
	"math"

	"nuttx-foc-go/pkg/dsp"
	"nuttx-foc-go/pkg/errors"
)

// PMSMParams describes a permanent magnet synchronous motor.
type PMSMParams struct {
	PolePairs int
	Res       float32 // Phase resistance [ohm]
	IndD      float32 // d-axis inductance [H]
	IndQ      float32 // q-axis inductance [H]
	FluxLink  float32 // Magnet flux linkage [Wb]
	Inertia   float32 // Rotor inertia [kg*m^2]
	Friction  float32 // Viscous friction [N*m*s/rad]
	Per       float32 // Integration step [s]
}

// DefaultPMSMParams returns a small 24V hobby motor.
func DefaultPMSMParams() PMSMParams {
	return PMSMParams{
		PolePairs: 7,
		Res:       0.11,
		IndD:      0.0002,
		IndQ:      0.0002,
		FluxLink:  0.001,
		Inertia:   0.00001,
		Friction:  0.000001,
		Per:       0.0001,
	}
}

// Validate checks that the model can be integrated.
func (p PMSMParams) Validate() error {
	switch {
	case p.PolePairs <= 0:
		return errors.ConfigValidationError("motor", "pole_pairs", "must be positive")
	case p.Res <= 0:
		return errors.ConfigValidationError("motor", "res", "must be positive")
	case p.IndD <= 0 || p.IndQ <= 0:
		return errors.ConfigValidationError("motor", "ind", "must be positive")
	case p.FluxLink < 0:
		return errors.ConfigValidationError("motor", "flux_link", "must not be negative")
	case p.Inertia <= 0:
		return errors.ConfigValidationError("motor", "inertia", "must be positive")
	case p.Friction < 0:
		return errors.ConfigValidationError("motor", "friction", "must not be negative")
	case p.Per <= 0:
		return errors.ConfigValidationError("motor", "per", "must be positive")
	}
	return nil
}

// PMSM integrates the dq-frame electrical and the mechanical equations of
// a PMSM with forward Euler steps.
type PMSM struct {
	p     PMSMParams
	trans dsp.Transform[float32, dsp.F32]

	angle dsp.PhaseAngle[float32]
	idq   dsp.DQFrame[float32]
	iab   dsp.ABFrame[float32]
	iabc  dsp.ABC[float32]

	omegaM float32
	thetaM float32
	torque float32
	tload  float32
}

// NewPMSM returns a motor at standstill with zero electrical angle.
func NewPMSM(p PMSMParams) (*PMSM, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := &PMSM{
		p:     p,
		trans: dsp.NewTransform[float32, dsp.F32](),
	}
	m.trans.AngleUpdate(&m.angle, 0)
	return m, nil
}

// SetLoad sets the load torque [N*m].
func (m *PMSM) SetLoad(tload float32) {
	m.tload = tload
}

// Run advances the model by one step with the stationary-frame phase
// voltage vab [V].
func (m *PMSM) Run(vab *dsp.ABFrame[float32]) {
	p := &m.p
	pp := float32(p.PolePairs)
	omegaE := pp * m.omegaM

	var vdq dsp.DQFrame[float32]
	m.trans.Park(vab, &m.angle, &vdq)

	id, iq := m.idq.D, m.idq.Q
	did := (vdq.D - p.Res*id + omegaE*p.IndQ*iq) / p.IndD
	diq := (vdq.Q - p.Res*iq - omegaE*(p.IndD*id+p.FluxLink)) / p.IndQ
	m.idq.D = id + did*p.Per
	m.idq.Q = iq + diq*p.Per

	m.torque = 1.5 * pp * (p.FluxLink*m.idq.Q + (p.IndD-p.IndQ)*m.idq.D*m.idq.Q)
	dw := (m.torque - m.tload - p.Friction*m.omegaM) / p.Inertia
	m.omegaM += dw * p.Per

	m.thetaM = wrapTwoPi(m.thetaM + m.omegaM*p.Per)
	m.trans.AngleUpdate(&m.angle, wrapTwoPi(pp*m.thetaM))

	m.trans.InvPark(&m.idq, &m.angle, &m.iab)
	m.trans.InvClarke(&m.iab, &m.iabc)
}

// Currents returns the phase currents [A].
func (m *PMSM) Currents() dsp.ABC[float32] {
	return m.iabc
}

// CurrentDQ returns the rotor-frame currents [A].
func (m *PMSM) CurrentDQ() dsp.DQFrame[float32] {
	return m.idq
}

// AngleElec returns the electrical angle in [0, 2*pi).
func (m *PMSM) AngleElec() float32 {
	return m.angle.Angle
}

// AngleMech returns the mechanical angle in [0, 2*pi).
func (m *PMSM) AngleMech() float32 {
	return m.thetaM
}

// SpeedMech returns the mechanical speed [rad/s].
func (m *PMSM) SpeedMech() float32 {
	return m.omegaM
}

// SpeedElec returns the electrical speed [rad/s].
func (m *PMSM) SpeedElec() float32 {
	return m.omegaM * float32(m.p.PolePairs)
}

// Torque returns the electromagnetic torque of the last step [N*m].
func (m *PMSM) Torque() float32 {
	return m.torque
}

func wrapTwoPi(v float32) float32 {
	v = float32(math.Mod(float64(v), 2*math.Pi))
	if v < 0 {
		v += 2 * math.Pi
	}
	if v >= 2*math.Pi {
		v = 0
	}
	return v
}
