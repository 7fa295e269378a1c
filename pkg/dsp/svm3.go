// Three-phase space vector modulation
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package dsp

import "math"

// sectorByCode maps the projection sign code i + 2j + 4k to the SVM sector.
// Codes 0 and 7 only occur for the zero vector.
var sectorByCode = [8]uint8{1, 2, 6, 1, 4, 3, 5, 1}

// SVM3 converts a normalized alpha-beta voltage vector into three duty
// cycles with centered (symmetric) zero vectors.
//
// The input is normalized so that a magnitude of 1 is the largest vector
// that can be produced without overmodulation (Vbus/sqrt(3) phase peak).
// Longer vectors are shortened to the hexagon boundary keeping their angle.
type SVM3[T any, A Arith[T]] struct {
	a A

	one      T
	half     T
	sqrt3By2 T

	// Sector is the active sector (1..6) or 0 before the first Run
	Sector uint8
	// D holds the duty cycles of phases a, b and c
	D ABC[T]
	// Overmod reports whether the last vector had to be shortened
	Overmod bool
}

// NewSVM3 returns an inactive modulator for the scalar type.
func NewSVM3[T any, A Arith[T]]() SVM3[T, A] {
	var a A
	return SVM3[T, A]{
		one:      a.FromFloat(1),
		half:     a.FromFloat(0.5),
		sqrt3By2: a.FromFloat(math.Sqrt(3) / 2),
	}
}

// Reset returns the modulator to the inactive state.
func (s *SVM3[T, A]) Reset() {
	z := s.a.Zero()
	s.Sector = 0
	s.D = ABC[T]{z, z, z}
	s.Overmod = false
}

// SectorOf returns the sector of an alpha-beta vector.
func (s *SVM3[T, A]) SectorOf(v *ABFrame[T]) uint8 {
	i, j, k := s.projections(v)
	return sectorByCode[s.code(i, j, k)]
}

func (s *SVM3[T, A]) projections(v *ABFrame[T]) (i, j, k T) {
	a := s.a
	x := a.Mul(s.sqrt3By2, v.A)
	y := a.Mul(s.half, v.B)
	i = v.B
	j = a.Sub(x, y)
	k = a.Sub(a.Neg(x), y)
	return i, j, k
}

func (s *SVM3[T, A]) code(i, j, k T) int {
	a := s.a
	z := a.Zero()
	n := 0
	if a.Less(z, i) {
		n |= 1
	}
	if a.Less(z, j) {
		n |= 2
	}
	if a.Less(z, k) {
		n |= 4
	}
	return n
}

// Run computes the duty cycles for the vector v.
func (s *SVM3[T, A]) Run(v *ABFrame[T]) {
	a := s.a
	i, j, k := s.projections(v)
	sector := sectorByCode[s.code(i, j, k)]

	// Active vector times of the two adjacent vectors, first and second in
	// counter-clockwise order
	var t1, t2 T
	switch sector {
	case 1:
		t1, t2 = j, i
	case 2:
		t1, t2 = a.Neg(k), a.Neg(j)
	case 3:
		t1, t2 = i, k
	case 4:
		t1, t2 = a.Neg(j), a.Neg(i)
	case 5:
		t1, t2 = k, j
	case 6:
		t1, t2 = a.Neg(i), a.Neg(k)
	}

	sum := a.Add(t1, t2)
	s.Overmod = a.Less(s.one, sum)
	if s.Overmod {
		t1 = a.Div(t1, sum)
		t2 = a.Div(t2, sum)
		sum = s.one
	}

	// Zero vector time split evenly between 000 and 111
	t0 := a.Mul(s.half, a.Sub(s.one, sum))
	hi := a.Add(sum, t0)
	mid1 := a.Add(t1, t0)
	mid2 := a.Add(t2, t0)

	switch sector {
	case 1:
		s.D = ABC[T]{hi, mid2, t0}
	case 2:
		s.D = ABC[T]{mid1, hi, t0}
	case 3:
		s.D = ABC[T]{t0, hi, mid2}
	case 4:
		s.D = ABC[T]{t0, mid1, hi}
	case 5:
		s.D = ABC[T]{mid2, t0, hi}
	case 6:
		s.D = ABC[T]{hi, t0, mid1}
	}
	s.Sector = sector
}

// CurrentCorrect rebuilds the phase current that could not be sampled in
// the last PWM period from the other two (ia + ib + ic = 0).
//
// With low-side shunts a phase is measured while its low switch conducts,
// so the phase with the highest duty has the shortest sampling window.
func (s *SVM3[T, A]) CurrentCorrect(c *ABC[T]) {
	a := s.a
	switch s.Sector {
	case 1, 6:
		c[0] = a.Neg(a.Add(c[1], c[2]))
	case 2, 3:
		c[1] = a.Neg(a.Add(c[0], c[2]))
	case 4, 5:
		c[2] = a.Neg(a.Add(c[0], c[1]))
	}
}
