// Package motor holds the motor-side helpers of the control loop: the
// velocity ramp, an open-loop angle generator and a PMSM plant model.
package motor

import (
	"nuttx-foc-go/pkg/dsp"
	"nuttx-foc-go/pkg/errors"
)

// Ramp direction reported by Ramp.Run
const (
	RampNone = 0
	RampUp   = 1
	RampDown = -1
)

// Ramp limits the rate of change of a velocity set point. Acc is used
// while the magnitude grows, Dec while it shrinks or changes sign.
type Ramp[T any, A dsp.Arith[T]] struct {
	a A

	thr    T
	accPer T
	decPer T
}

// Init configures the ramp. per is the control period in seconds, thr the
// distance below which the set point jumps to the target, acc and dec are
// in units per second.
func (r *Ramp[T, A]) Init(per, thr, acc, dec T) error {
	a := r.a
	zero := a.Zero()
	switch {
	case !a.Less(zero, per):
		return errors.ConfigValidationError("ramp", "per", "must be positive")
	case a.Less(thr, zero):
		return errors.ConfigValidationError("ramp", "thr", "must not be negative")
	case !a.Less(zero, acc):
		return errors.ConfigValidationError("ramp", "acc", "must be positive")
	case !a.Less(zero, dec):
		return errors.ConfigValidationError("ramp", "dec", "must be positive")
	}

	r.thr = thr
	r.accPer = a.Mul(acc, per)
	r.decPer = a.Mul(dec, per)
	return nil
}

// Run moves now one period towards des and returns the new set point,
// the ramp direction and whether the target has been reached.
func (r *Ramp[T, A]) Run(des, now T) (set T, dir int, done bool) {
	a := r.a
	zero := a.Zero()

	diff := a.Sub(des, now)
	if !a.Less(r.thr, a.Abs(diff)) {
		return des, RampNone, true
	}

	up := a.Less(zero, diff)

	// Accelerate while moving away from zero in the current direction
	step := r.decPer
	if (up && !a.Less(now, zero)) || (!up && !a.Less(zero, now)) {
		step = r.accPer
	}

	if up {
		set = a.Add(now, step)
		if a.Less(des, set) {
			set = des
		}
		return set, RampUp, false
	}

	set = a.Sub(now, step)
	if a.Less(set, des) {
		set = des
	}
	return set, RampDown, false
}
