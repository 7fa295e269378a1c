// Reference frames and transforms
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package dsp

import "math"

// ABC holds one value per phase.
type ABC[T any] [3]T

// ABFrame is a stationary two-axis (alpha-beta) quantity.
type ABFrame[T any] struct {
	A T
	B T
}

// DQFrame is a rotating two-axis (direct-quadrature) quantity.
type DQFrame[T any] struct {
	D T
	Q T
}

// PhaseAngle caches the trigonometric functions of an electrical angle.
type PhaseAngle[T any] struct {
	Angle T
	Sin   T
	Cos   T
}

// Transform holds the constants of the Clarke and Park transforms
// converted to the scalar type.
type Transform[T any, A Arith[T]] struct {
	a          A
	oneBySqrt3 T
	twoBySqrt3 T
	sqrt3By2   T
	half       T
	twoPi      T
}

// NewTransform returns the transform constants for the scalar type.
func NewTransform[T any, A Arith[T]]() Transform[T, A] {
	var a A
	return Transform[T, A]{
		oneBySqrt3: a.FromFloat(1 / math.Sqrt(3)),
		twoBySqrt3: a.FromFloat(2 / math.Sqrt(3)),
		sqrt3By2:   a.FromFloat(math.Sqrt(3) / 2),
		half:       a.FromFloat(0.5),
		twoPi:      a.FromFloat(2 * math.Pi),
	}
}

// Clarke converts phase quantities to alpha-beta (amplitude invariant).
// Only phases a and b are used; the three phases are assumed to sum to zero.
func (t *Transform[T, A]) Clarke(abc *ABC[T], ab *ABFrame[T]) {
	a := t.a
	ab.A = abc[0]
	ab.B = a.Add(a.Mul(t.oneBySqrt3, abc[0]), a.Mul(t.twoBySqrt3, abc[1]))
}

// InvClarke converts alpha-beta to phase quantities.
func (t *Transform[T, A]) InvClarke(ab *ABFrame[T], abc *ABC[T]) {
	a := t.a
	x := a.Mul(t.half, ab.A)
	y := a.Mul(t.sqrt3By2, ab.B)
	abc[0] = ab.A
	abc[1] = a.Add(a.Neg(x), y)
	abc[2] = a.Sub(a.Neg(x), y)
}

// Park rotates alpha-beta into the dq frame at the given angle.
func (t *Transform[T, A]) Park(ab *ABFrame[T], angle *PhaseAngle[T], dq *DQFrame[T]) {
	a := t.a
	dq.D = a.Add(a.Mul(ab.A, angle.Cos), a.Mul(ab.B, angle.Sin))
	dq.Q = a.Sub(a.Mul(ab.B, angle.Cos), a.Mul(ab.A, angle.Sin))
}

// InvPark rotates a dq quantity back into alpha-beta.
func (t *Transform[T, A]) InvPark(dq *DQFrame[T], angle *PhaseAngle[T], ab *ABFrame[T]) {
	a := t.a
	ab.A = a.Sub(a.Mul(dq.D, angle.Cos), a.Mul(dq.Q, angle.Sin))
	ab.B = a.Add(a.Mul(dq.D, angle.Sin), a.Mul(dq.Q, angle.Cos))
}

// AngleUpdate sets the angle and recomputes its sine and cosine.
func (t *Transform[T, A]) AngleUpdate(angle *PhaseAngle[T], v T) {
	angle.Angle = v
	angle.Sin, angle.Cos = t.a.SinCos(v)
}

// AngleNorm wraps an angle to [0, 2*pi). The angle is expected to be
// within one turn of that range.
func (t *Transform[T, A]) AngleNorm(v T) T {
	a := t.a
	if a.Less(v, a.Zero()) {
		return a.Add(v, t.twoPi)
	}
	if !a.Less(v, t.twoPi) {
		return a.Sub(v, t.twoPi)
	}
	return v
}

// DQSaturate limits the magnitude of dq to max, keeping its direction.
func (t *Transform[T, A]) DQSaturate(dq *DQFrame[T], max T) {
	a := t.a
	mag := a.Sqrt(a.Add(a.Mul(dq.D, dq.D), a.Mul(dq.Q, dq.Q)))
	if !a.Less(max, mag) {
		return
	}
	if a.Less(a.Zero(), mag) {
		k := a.Div(max, mag)
		dq.D = a.Mul(dq.D, k)
		dq.Q = a.Mul(dq.Q, k)
	}
}
