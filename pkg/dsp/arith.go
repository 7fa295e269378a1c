// Scalar arithmetic shared by the fixed-point and floating-point pipelines
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package dsp holds the numeric kernels of the FOC pipeline: frame
// transforms, saturation, the PI regulator and the SVM3 modulator.
//
// Every kernel is written once and instantiated for float32 (F32) and for
// Q16.16 fixed point (B16). Constants used on the control path are converted
// to the target scalar when the kernel is constructed.
package dsp

import (
	"math"

	"nuttx-foc-go/pkg/fixedmath"
)

// Arith is the operation table of a scalar type. Implementations are
// stateless, so the zero value is ready to use.
type Arith[T any] interface {
	Zero() T
	FromFloat(f float64) T
	Float(v T) float64

	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Div(a, b T) T
	Neg(a T) T
	Abs(a T) T
	Less(a, b T) bool
	Sqrt(a T) T

	// Finite reports whether v is neither infinite nor NaN.
	Finite(v T) bool

	// SinCos returns the sine and cosine of an angle in radians.
	SinCos(a T) (sin, cos T)

	// Q31 converts a value in [-1, 1) to Q1.31, saturating.
	Q31(v T) int32
	// FromQ31 converts a Q1.31 value.
	FromQ31(q int32) T
}

// F32 implements Arith for float32.
type F32 struct{}

func (F32) Zero() T32               { return 0 }
func (F32) FromFloat(f float64) T32 { return float32(f) }
func (F32) Float(v T32) float64     { return float64(v) }
func (F32) Add(a, b T32) T32        { return a + b }
func (F32) Sub(a, b T32) T32        { return a - b }
func (F32) Mul(a, b T32) T32        { return a * b }
func (F32) Neg(a T32) T32           { return -a }
func (F32) Less(a, b T32) bool      { return a < b }
func (F32) Sqrt(a T32) T32          { return float32(math.Sqrt(float64(a))) }
func (F32) FromQ31(q int32) T32     { return float32(q) / q31One }

func (F32) Finite(v T32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// T32 is the float scalar.
type T32 = float32

const q31One = 1 << 31

// Div returns a/b. Division by zero returns 0.
func (F32) Div(a, b T32) T32 {
	if b == 0 {
		return 0
	}
	return a / b
}

func (F32) Abs(a T32) T32 {
	if a < 0 {
		return -a
	}
	return a
}

func (F32) SinCos(a T32) (T32, T32) {
	s, c := math.Sincos(float64(a))
	return float32(s), float32(c)
}

func (F32) Q31(v T32) int32 {
	f := float64(v) * q31One
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	if f <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(f)
}

// B16 implements Arith for fixedmath.B16.
type B16 struct{}

// TB16 is the fixed-point scalar.
type TB16 = fixedmath.B16

func (B16) Zero() TB16               { return 0 }
func (B16) FromFloat(f float64) TB16 { return fixedmath.FromFloat(f) }
func (B16) Float(v TB16) float64     { return v.Float64() }
func (B16) Add(a, b TB16) TB16       { return fixedmath.Add(a, b) }
func (B16) Sub(a, b TB16) TB16       { return fixedmath.Sub(a, b) }
func (B16) Mul(a, b TB16) TB16       { return fixedmath.Mul(a, b) }
func (B16) Div(a, b TB16) TB16       { return fixedmath.Div(a, b) }
func (B16) Abs(a TB16) TB16          { return fixedmath.Abs(a) }
func (B16) Less(a, b TB16) bool      { return a < b }
func (B16) Sqrt(a TB16) TB16         { return fixedmath.Sqrt(a) }
func (B16) Finite(TB16) bool         { return true }

func (B16) Neg(a TB16) TB16 {
	if a == fixedmath.Min {
		return fixedmath.Max
	}
	return -a
}

func (B16) SinCos(a TB16) (TB16, TB16) {
	return fixedmath.Sin(a), fixedmath.Cos(a)
}

// Q31 shifts the 16 fraction bits up to 31, saturating outside [-1, 1).
func (B16) Q31(v TB16) int32 {
	if v >= fixedmath.One {
		return math.MaxInt32
	}
	if v < -fixedmath.One {
		return math.MinInt32
	}
	return int32(v) << 15
}

// FromQ31 drops the low 15 bits with rounding.
func (B16) FromQ31(q int32) TB16 {
	return TB16((int64(q) + (1 << 14)) >> 15)
}

// Saturate clamps v to [min, max]. NaN maps to min.
func Saturate[T any, A Arith[T]](v, min, max T) T {
	var a A
	if a.Less(v, min) || !a.Finite(v) && !a.Less(max, v) {
		return min
	}
	if a.Less(max, v) {
		return max
	}
	return v
}
