package foc

import (
	"math"

	"nuttx-foc-go/pkg/dsp"
)

// SVM3Mod is the three-phase space vector modulation.
type SVM3Mod[T any, A dsp.Arith[T]] struct {
	a   A
	svm dsp.SVM3[T, A]
	cfg ModConfig[T]

	oneBySqrt3 T
}

// NewSVM3Mod returns an unconfigured modulation. Until Configure is
// called every duty cycle is clamped to 0.
func NewSVM3Mod[T any, A dsp.Arith[T]]() *SVM3Mod[T, A] {
	var a A
	return &SVM3Mod[T, A]{
		svm:        dsp.NewSVM3[T, A](),
		oneBySqrt3: a.FromFloat(1 / math.Sqrt(3)),
	}
}

// Init implements Modulation.
func (m *SVM3Mod[T, A]) Init() error {
	m.svm.Reset()
	return nil
}

// Deinit implements Modulation.
func (m *SVM3Mod[T, A]) Deinit() {
	m.svm.Reset()
}

// Configure implements Modulation.
func (m *SVM3Mod[T, A]) Configure(cfg *ModConfig[T]) {
	m.cfg = *cfg
	m.svm.Reset()
}

// VBase implements Modulation: the largest phase voltage amplitude of a
// sinusoidal SVM output is vbus/sqrt(3).
func (m *SVM3Mod[T, A]) VBase(vbus T) T {
	return m.a.Mul(vbus, m.oneBySqrt3)
}

// Current implements Modulation.
func (m *SVM3Mod[T, A]) Current(curr *dsp.ABC[T]) {
	if !m.cfg.CurrentCorrection || m.svm.Sector == 0 {
		return
	}
	m.svm.CurrentCorrect(curr)
}

// Run implements Modulation.
func (m *SVM3Mod[T, A]) Run(vab *dsp.ABFrame[T], duty *dsp.ABC[T]) {
	m.svm.Run(vab)

	zero := m.a.Zero()
	for i := range duty {
		duty[i] = dsp.Saturate[T, A](m.svm.D[i], zero, m.cfg.DutyMax)
	}
}

// Sector returns the active sector (1..6), 0 before the first Run.
func (m *SVM3Mod[T, A]) Sector() uint8 {
	return m.svm.Sector
}

// Overmodulated reports whether the last vector was beyond the hexagon.
func (m *SVM3Mod[T, A]) Overmodulated() bool {
	return m.svm.Overmod
}
