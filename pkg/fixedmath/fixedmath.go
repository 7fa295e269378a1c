// Q16.16 fixed-point arithmetic
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package fixedmath implements signed Q16.16 ("b16") fixed-point numbers
// for targets without a floating point unit.
package fixedmath

import "math"

// B16 is a signed fixed-point number with 16 integer and 16 fraction bits.
type B16 int32

const (
	fracBits = 16

	// One is 1.0
	One B16 = 1 << fracBits
	// Half is 0.5
	Half B16 = One >> 1
	// Max is the largest representable value
	Max B16 = math.MaxInt32
	// Min is the smallest representable value
	Min B16 = math.MinInt32

	// Pi is 3.14159 rounded to the nearest b16
	Pi B16 = 205887
	// HalfPi is Pi/2
	HalfPi B16 = 102944
	// TwoPi is 2*Pi
	TwoPi B16 = 411775
)

// FromFloat converts a float to b16, rounding to nearest and saturating.
func FromFloat(f float64) B16 {
	v := math.Round(f * float64(One))
	if v >= float64(Max) {
		return Max
	}
	if v <= float64(Min) {
		return Min
	}
	return B16(v)
}

// FromInt converts an integer to b16, saturating.
func FromInt(i int) B16 {
	return sat(int64(i) << fracBits)
}

// Float64 returns the value as float64.
func (b B16) Float64() float64 {
	return float64(b) / float64(One)
}

// Float32 returns the value as float32.
func (b B16) Float32() float32 {
	return float32(b) / float32(One)
}

// Int returns the integer part, truncated toward negative infinity.
func (b B16) Int() int {
	return int(b >> fracBits)
}

func sat(v int64) B16 {
	if v > int64(Max) {
		return Max
	}
	if v < int64(Min) {
		return Min
	}
	return B16(v)
}

// Add returns a+b, saturating.
func Add(a, b B16) B16 {
	return sat(int64(a) + int64(b))
}

// Sub returns a-b, saturating.
func Sub(a, b B16) B16 {
	return sat(int64(a) - int64(b))
}

// Mul returns a*b, rounded and saturating.
func Mul(a, b B16) B16 {
	p := int64(a) * int64(b)
	return sat((p + (1 << (fracBits - 1))) >> fracBits)
}

// Sqr returns a*a.
func Sqr(a B16) B16 {
	return Mul(a, a)
}

// Div returns a/b. Division by zero saturates toward the sign of a.
func Div(a, b B16) B16 {
	if b == 0 {
		if a < 0 {
			return Min
		}
		return Max
	}
	return sat((int64(a) << fracBits) / int64(b))
}

// Abs returns |a|, saturating Min to Max.
func Abs(a B16) B16 {
	if a < 0 {
		if a == Min {
			return Max
		}
		return -a
	}
	return a
}

// Sqrt returns the square root of a. Negative input returns 0.
func Sqrt(a B16) B16 {
	if a <= 0 {
		return 0
	}
	// sqrt(a * 2^16) in Q16.16 is isqrt(a << 16)
	n := uint64(a) << fracBits
	x := uint64(1) << ((bitLen(n) + 1) / 2)
	for {
		y := (x + n/x) >> 1
		if y >= x {
			break
		}
		x = y
	}
	return B16(x)
}

func bitLen(v uint64) int {
	n := 0
	for v != 0 {
		v >>= 1
		n++
	}
	return n
}

// wrapPi reduces an angle to [-Pi, Pi).
func wrapPi(a B16) B16 {
	v := int64(a)
	tp := int64(TwoPi)
	v = (v + int64(Pi)) % tp
	if v < 0 {
		v += tp
	}
	return B16(v - int64(Pi))
}

// Sin returns the sine of the angle in radians.
func Sin(a B16) B16 {
	x := wrapPi(a)

	// fold into [-Pi/2, Pi/2]
	if x > HalfPi {
		x = Pi - x
	} else if x < -HalfPi {
		x = -Pi - x
	}

	// Taylor series to x^9, evaluated in Q30 to keep precision
	xq := int64(x) << 14
	x2 := (xq * xq) >> 30
	term := xq
	sum := xq
	for n := int64(2); n <= 8; n += 2 {
		term = -((term * x2) >> 30) / (n * (n + 1))
		sum += term
	}
	return sat((sum + (1 << 13)) >> 14)
}

// Cos returns the cosine of the angle in radians.
func Cos(a B16) B16 {
	return Sin(Add(a, HalfPi))
}

// Atan2 returns the angle of the vector (x, y) in (-Pi, Pi].
func Atan2(y, x B16) B16 {
	if x == 0 && y == 0 {
		return 0
	}
	ax, ay := Abs(x), Abs(y)

	// atan(z) for z in [0, 1], Abramowitz and Stegun 4.4.49
	var z B16
	swap := ay > ax
	if swap {
		z = Div(ax, ay)
	} else {
		z = Div(ay, ax)
	}
	const (
		a1 B16 = 65527
		a3 B16 = -21647
		a5 B16 = 11806
		a7 B16 = -5579
		a9 B16 = 1365
	)
	z2 := Mul(z, z)
	p := Add(a7, Mul(z2, a9))
	p = Add(a5, Mul(z2, p))
	p = Add(a3, Mul(z2, p))
	p = Add(a1, Mul(z2, p))
	r := Mul(z, p)

	if swap {
		r = HalfPi - r
	}
	if x < 0 {
		r = Pi - r
	}
	if y < 0 {
		r = -r
	}
	return r
}
