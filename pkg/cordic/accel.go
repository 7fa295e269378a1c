// CORDIC helpers for the FOC scalar types
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cordic

import (
	"math"

	"nuttx-foc-go/pkg/dsp"
)

// Accel runs the trigonometric steps of the control pipeline on an Engine.
// It is not safe for concurrent use.
type Accel[T any, A dsp.Arith[T]] struct {
	a   A
	eng Engine

	oneByPi T
	pi      T
	twoPi   T
	half    T

	calc Calc
}

// NewAccel wraps an engine for the scalar type.
func NewAccel[T any, A dsp.Arith[T]](eng Engine) *Accel[T, A] {
	var a A
	return &Accel[T, A]{
		eng:     eng,
		oneByPi: a.FromFloat(1 / math.Pi),
		pi:      a.FromFloat(math.Pi),
		twoPi:   a.FromFloat(2 * math.Pi),
		half:    a.FromFloat(0.5),
	}
}

// Engine returns the wrapped engine.
func (c *Accel[T, A]) Engine() Engine {
	return c.eng
}

// SinCos returns the sine and cosine of an angle in radians in [0, 2*pi).
func (c *Accel[T, A]) SinCos(angle T) (sin, cos T, err error) {
	a := c.a
	if !a.Less(angle, c.pi) {
		angle = a.Sub(angle, c.twoPi)
	}

	c.calc = Calc{
		Func:     Cos,
		Res2Incl: true,
		Arg1:     a.Q31(a.Mul(angle, c.oneByPi)),
	}
	if err := c.eng.Calculate(&c.calc); err != nil {
		return a.Zero(), a.Zero(), err
	}
	return a.FromQ31(c.calc.Res2), a.FromQ31(c.calc.Res1), nil
}

// DQSat limits the magnitude of dq to max, keeping its direction. The
// magnitude is computed by the engine.
func (c *Accel[T, A]) DQSat(dq *dsp.DQFrame[T], max T) error {
	a := c.a
	zero := a.Zero()
	if !a.Less(zero, max) {
		dq.D, dq.Q = zero, zero
		return nil
	}

	// Scale both components into [-0.5, 0.5] so the modulus fits Q1.31
	m := max
	if ad := a.Abs(dq.D); a.Less(m, ad) {
		m = ad
	}
	if aq := a.Abs(dq.Q); a.Less(m, aq) {
		m = aq
	}
	k := a.Div(c.half, m)

	c.calc = Calc{
		Func: Modulus,
		Arg1: a.Q31(a.Mul(dq.D, k)),
		Arg2: a.Q31(a.Mul(dq.Q, k)),
	}
	if err := c.eng.Calculate(&c.calc); err != nil {
		return err
	}

	mag := a.Div(a.FromQ31(c.calc.Res1), k)
	if a.Less(max, mag) {
		s := a.Div(max, mag)
		dq.D = a.Mul(dq.D, s)
		dq.Q = a.Mul(dq.Q, s)
	}
	return nil
}
