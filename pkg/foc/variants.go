package foc

import (
	"nuttx-foc-go/pkg/dsp"
	"nuttx-foc-go/pkg/fixedmath"
)

// Single precision float variant
type (
	HandlerF32    = Handler[float32]
	InputF32      = Input[float32]
	OutputF32     = Output[float32]
	StateF32      = State[float32]
	PIControlF32  = PIControl[float32, dsp.F32]
	SVM3ModF32    = SVM3Mod[float32, dsp.F32]
	ControlCfgF32 = ControlConfig[float32]
	ModCfgF32     = ModConfig[float32]
)

// Q16.16 fixed point variant
type (
	HandlerB16    = Handler[fixedmath.B16]
	InputB16      = Input[fixedmath.B16]
	OutputB16     = Output[fixedmath.B16]
	StateB16      = State[fixedmath.B16]
	PIControlB16  = PIControl[fixedmath.B16, dsp.B16]
	SVM3ModB16    = SVM3Mod[fixedmath.B16, dsp.B16]
	ControlCfgB16 = ControlConfig[fixedmath.B16]
	ModCfgB16     = ModConfig[fixedmath.B16]
)

func NewPIControlF32(open EngineOpener) *PIControlF32 {
	return NewPIControl[float32, dsp.F32](open)
}

func NewPIControlB16(open EngineOpener) *PIControlB16 {
	return NewPIControl[fixedmath.B16, dsp.B16](open)
}

func NewSVM3F32() *SVM3ModF32 {
	return NewSVM3Mod[float32, dsp.F32]()
}

func NewSVM3B16() *SVM3ModB16 {
	return NewSVM3Mod[fixedmath.B16, dsp.B16]()
}
