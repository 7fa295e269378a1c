// PI regulator
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package dsp

// PI is a proportional-integral regulator with a symmetric output limit.
// The integrator is frozen while the output is saturated in the direction
// of the error (clamping anti-windup).
type PI[T any, A Arith[T]] struct {
	a A

	KP T
	KI T

	max   T
	limit bool
	integ T
	out   T
}

// Init sets the gains and clears the regulator state.
func (pi *PI[T, A]) Init(kp, ki T) {
	pi.KP = kp
	pi.KI = ki
	pi.Reset()
}

// SetLimits bounds the output to [-max, max].
func (pi *PI[T, A]) SetLimits(max T) {
	pi.max = max
	pi.limit = true
}

// Reset clears the integrator and last output.
func (pi *PI[T, A]) Reset() {
	pi.integ = pi.a.Zero()
	pi.out = pi.a.Zero()
}

// Integral returns the integrator state.
func (pi *PI[T, A]) Integral() T {
	return pi.integ
}

// Output returns the last regulator output.
func (pi *PI[T, A]) Output() T {
	return pi.out
}

// Run advances the regulator by one step and returns its output.
func (pi *PI[T, A]) Run(err T) T {
	a := pi.a
	integ := a.Add(pi.integ, a.Mul(pi.KI, err))
	raw := a.Add(a.Mul(pi.KP, err), integ)
	out := raw

	if pi.limit {
		min := a.Neg(pi.max)
		out = Saturate[T, A](raw, min, pi.max)

		// Saturated and the error pushes further out: freeze the integrator
		zero := a.Zero()
		if a.Less(pi.max, raw) && a.Less(zero, err) {
			integ = pi.integ
		} else if a.Less(raw, min) && a.Less(err, zero) {
			integ = pi.integ
		}
	}

	pi.integ = integ
	pi.out = out
	return out
}
