// Field oriented control handler types
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

import (
	"nuttx-foc-go/pkg/dsp"
)

// Phases is the number of motor phases. The SVM3 modulator and the
// three-shunt current correction only exist for three phases.
const Phases = 3

// Mode selects what the controller does in a control tick.
type Mode uint8

const (
	// ModeInit is the state before the embedding loop selects a mode
	ModeInit Mode = iota
	// ModeIdle disables the outputs (all duty cycles 0)
	ModeIdle
	// ModeVoltage applies the DQ reference as a voltage
	ModeVoltage
	// ModeCurrent regulates the phase currents to the DQ reference
	ModeCurrent
)

func (m Mode) String() string {
	switch m {
	case ModeInit:
		return "init"
	case ModeIdle:
		return "idle"
	case ModeVoltage:
		return "voltage"
	case ModeCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as printed by Mode.String.
func ParseMode(s string) (Mode, bool) {
	for m := ModeInit; m <= ModeCurrent; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return ModeInit, false
}

// Input is produced by the embedding loop every tick and owned by the
// caller for the duration of Run.
type Input[T any] struct {
	// Current holds the phase current samples. Run corrects them in
	// place according to the modulation state.
	Current dsp.ABC[T]

	// DQRef is the voltage reference in ModeVoltage and the current
	// reference in ModeCurrent.
	DQRef *dsp.DQFrame[T]

	// VDQComp is an optional DQ voltage compensation for ModeCurrent,
	// subtracted from the regulator output.
	VDQComp *dsp.DQFrame[T]

	// Angle is the electrical phase angle in [0, 2*pi)
	Angle T

	// VBus is the measured bus voltage
	VBus T

	Mode Mode
}

// Output receives the per-phase duty cycles of a tick.
type Output[T any] struct {
	Duty dsp.ABC[T]
}

// State is a snapshot of the controller's last computed values.
type State[T any] struct {
	Curr     dsp.ABC[T]
	Volt     dsp.ABC[T]
	IAB      dsp.ABFrame[T]
	VAB      dsp.ABFrame[T]
	IDQ      dsp.DQFrame[T]
	VDQ      dsp.DQFrame[T]
	ModScale T
}

// ControlConfig configures the current controller.
type ControlConfig[T any] struct {
	IdKp T
	IdKi T
	IqKp T
	IqKi T
}

// ModConfig configures the modulation.
type ModConfig[T any] struct {
	// DutyMax is the largest duty cycle the PWM may produce
	DutyMax T

	// CurrentCorrection enables three-shunt current reconstruction
	CurrentCorrection bool
}

// Controller is the operation table of a current/voltage controller.
type Controller[T any] interface {
	Init() error
	Deinit()
	Configure(cfg *ControlConfig[T])

	// InputSet feeds phase currents, the base voltage and the phase angle
	InputSet(curr *dsp.ABC[T], vbase, angle T) error

	// VoltageRun produces the normalized alpha-beta voltage for a DQ
	// voltage reference
	VoltageRun(vdqRef *dsp.DQFrame[T], vab *dsp.ABFrame[T]) error

	// CurrentRun produces the normalized alpha-beta voltage that drives
	// the currents to the DQ current reference
	CurrentRun(idqRef, vdqComp *dsp.DQFrame[T], vab *dsp.ABFrame[T]) error

	State(st *State[T])
}

// Modulation is the operation table of a PWM modulation scheme.
type Modulation[T any] interface {
	Init() error
	Deinit()
	Configure(cfg *ModConfig[T])

	// VBase returns the largest phase voltage the modulation can produce
	// from the bus voltage
	VBase(vbus T) T

	// Current corrects the phase current samples in place
	Current(curr *dsp.ABC[T])

	// Run converts the normalized alpha-beta voltage to duty cycles
	Run(vab *dsp.ABFrame[T], duty *dsp.ABC[T])
}
