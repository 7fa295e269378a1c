package motor

import (
	"nuttx-foc-go/pkg/dsp"
	"nuttx-foc-go/pkg/errors"
)

// OpenLoop generates an electrical angle from a commanded speed.
type OpenLoop[T any, A dsp.Arith[T]] struct {
	a     A
	trans dsp.Transform[T, A]

	per   T
	angle T
}

// Init resets the angle. per is the control period in seconds.
func (o *OpenLoop[T, A]) Init(per T) error {
	if !o.a.Less(o.a.Zero(), per) {
		return errors.ConfigValidationError("openloop", "per", "must be positive")
	}
	o.trans = dsp.NewTransform[T, A]()
	o.per = per
	o.angle = o.a.Zero()
	return nil
}

// Update advances the angle by speed (electrical rad/s) for one period.
// The step must stay below one turn.
func (o *OpenLoop[T, A]) Update(speed T) {
	a := o.a
	o.angle = o.trans.AngleNorm(a.Add(o.angle, a.Mul(speed, o.per)))
}

// Angle returns the electrical angle in [0, 2*pi).
func (o *OpenLoop[T, A]) Angle() T {
	return o.angle
}
