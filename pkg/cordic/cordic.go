// CORDIC calculation front end
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package cordic issues trigonometric calculations to a CORDIC engine.
//
// Arguments and results are Q1.31 values. Angles are given as angle/pi, so
// the full Q1.31 range [-1, 1) covers [-pi, pi). Two engines are provided:
// Device talks to a CORDIC character device with a calculation ioctl and
// Software computes the same functions with shift-add iterations.
package cordic

import (
	"nuttx-foc-go/pkg/errors"
)

// Func selects the CORDIC function.
type Func uint8

const (
	Cos Func = iota
	Sin
	Phase
	Modulus
	Arctan
	HCos
	HSin
	HArctan
	Ln
	Sqrt
)

var funcNames = [...]string{"cos", "sin", "phase", "modulus", "arctan", "hcos", "hsin", "harctan", "ln", "sqrt"}

func (f Func) String() string {
	if int(f) < len(funcNames) {
		return funcNames[f]
	}
	return "unknown"
}

// Calc is one calculation request. The engine fills Res1 and, when
// Res2Incl is set, Res2.
//
//	Cos:     Arg1 angle, Arg2 modulus -> Res1 cos, Res2 sin
//	Sin:     Arg1 angle, Arg2 modulus -> Res1 sin, Res2 cos
//	Phase:   Arg1 x, Arg2 y           -> Res1 phase, Res2 modulus
//	Modulus: Arg1 x, Arg2 y           -> Res1 modulus, Res2 phase
//	Arctan:  Arg1 x                   -> Res1 atan(x)/pi
//
// For Cos and Sin a zero Arg2 is taken as modulus 1.
type Calc struct {
	Func     Func
	Scale    uint8
	Res2Incl bool
	Arg1     int32
	Arg2     int32
	Res1     int32
	Res2     int32
}

// Engine executes CORDIC calculations.
type Engine interface {
	Calculate(c *Calc) error
	Close() error
}

// Q31 helpers for callers working in float.

// ToQ31 converts a float in [-1, 1) to Q1.31, saturating.
func ToQ31(f float64) int32 {
	v := f * (1 << 31)
	if v >= 1<<31-1 {
		return 1<<31 - 1
	}
	if v <= -(1 << 31) {
		return -1 << 31
	}
	return int32(v)
}

// FromQ31 converts a Q1.31 value to float.
func FromQ31(q int32) float64 {
	return float64(q) / (1 << 31)
}

func unsupported(f Func) error {
	return errors.CordicError("function "+f.String(), errors.ErrUnsupported)
}
