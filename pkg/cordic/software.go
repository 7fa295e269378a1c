// Shift-add CORDIC engine
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cordic

import "math"

const (
	q31      = int64(1) << 31
	q31Max   = q31 - 1
	halfTurn = q31 >> 1 // pi/2 in angle/pi units

	// DefaultIterations gives about 24 bits of angle resolution
	DefaultIterations = 24
	maxIterations     = 30
)

var (
	// atanTable[i] = atan(2^-i)/pi in Q1.31
	atanTable [maxIterations]int64
	// gainInv is 1/prod(sqrt(1+2^-2i)) in Q1.31
	gainInv int64
)

func init() {
	k := 1.0
	for i := 0; i < maxIterations; i++ {
		atanTable[i] = int64(math.Round(math.Atan(math.Ldexp(1, -i)) / math.Pi * float64(q31)))
		k *= 1 / math.Sqrt(1+math.Ldexp(1, -2*i))
	}
	gainInv = int64(math.Round(k * float64(q31)))
}

// Software is a pure Go CORDIC engine. It supports Cos, Sin, Phase,
// Modulus and Arctan with Scale 0.
type Software struct {
	iterations int
}

// NewSoftware returns a software engine running n iterations per
// calculation. n <= 0 selects DefaultIterations.
func NewSoftware(n int) *Software {
	if n <= 0 {
		n = DefaultIterations
	}
	if n > maxIterations {
		n = maxIterations
	}
	return &Software{iterations: n}
}

// Close implements Engine.
func (s *Software) Close() error {
	return nil
}

// Calculate implements Engine.
func (s *Software) Calculate(c *Calc) error {
	if c.Scale != 0 {
		return unsupported(c.Func)
	}

	switch c.Func {
	case Cos, Sin:
		mod := int64(c.Arg2)
		if mod == 0 {
			mod = q31
		}
		cos, sin := s.rotate(int64(c.Arg1))
		cos = sat31((cos * mod) >> 31)
		sin = sat31((sin * mod) >> 31)
		if c.Func == Cos {
			c.Res1, c.Res2 = int32(cos), int32(sin)
		} else {
			c.Res1, c.Res2 = int32(sin), int32(cos)
		}

	case Phase, Modulus:
		mod, phase := s.vector(int64(c.Arg1), int64(c.Arg2))
		if c.Func == Phase {
			c.Res1, c.Res2 = int32(phase), int32(mod)
		} else {
			c.Res1, c.Res2 = int32(mod), int32(phase)
		}

	case Arctan:
		_, phase := s.vector(q31, int64(c.Arg1))
		c.Res1, c.Res2 = int32(phase), 0

	default:
		return unsupported(c.Func)
	}

	if !c.Res2Incl {
		c.Res2 = 0
	}
	return nil
}

// rotate returns cos and sin of z (angle/pi, Q1.31) in Q1.31.
func (s *Software) rotate(z int64) (int64, int64) {
	// Bring z into [-pi/2, pi/2], where the iterations converge
	negate := false
	if z > halfTurn {
		z -= q31
		negate = true
	} else if z < -halfTurn {
		z += q31
		negate = true
	}

	x, y := gainInv, int64(0)
	for i := 0; i < s.iterations; i++ {
		dx, dy := y>>uint(i), x>>uint(i)
		if z >= 0 {
			x, y = x-dx, y+dy
			z -= atanTable[i]
		} else {
			x, y = x+dx, y-dy
			z += atanTable[i]
		}
	}

	if negate {
		x, y = -x, -y
	}
	return sat31(x), sat31(y)
}

// vector returns the modulus and phase (angle/pi) of (x, y).
func (s *Software) vector(x, y int64) (int64, int64) {
	if x == 0 && y == 0 {
		return 0, 0
	}

	var z int64
	if x < 0 {
		// Rotate by pi into the right half plane
		x, y = -x, -y
		if y > 0 {
			z = -q31
		} else {
			z = q31
		}
	}

	for i := 0; i < s.iterations; i++ {
		dx, dy := y>>uint(i), x>>uint(i)
		if y > 0 {
			x, y = x+dx, y-dy
			z += atanTable[i]
		} else {
			x, y = x-dx, y+dy
			z -= atanTable[i]
		}
	}

	// Wrap to [-1, 1)
	if z >= q31 {
		z -= 2 * q31
	} else if z < -q31 {
		z += 2 * q31
	}
	return sat31((x * gainInv) >> 31), z
}

func sat31(v int64) int64 {
	if v > q31Max {
		return q31Max
	}
	if v < -q31 {
		return -q31
	}
	return v
}
