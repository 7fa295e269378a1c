// Field oriented control handler
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package foc ties a current controller and a PWM modulation together into
// one control tick.
//
// The handler is driven from a single periodic control loop. Run performs
// no allocation and takes no locks; callers must serialize all calls.
package foc

import (
	"nuttx-foc-go/pkg/dsp"
	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/log"
)

// Handler owns one controller and one modulation.
type Handler[T any] struct {
	ctrl   Controller[T]
	mod    Modulation[T]
	active bool
	logger *log.Logger
}

// NewHandler initializes the controller and the modulation. If either
// fails, everything already initialized is released again.
func NewHandler[T any](ctrl Controller[T], mod Modulation[T]) (*Handler[T], error) {
	logger := log.GetLogger("foc.handler")

	if err := ctrl.Init(); err != nil {
		logger.WithError(err).Error("controller init failed")
		return nil, errors.InitError("controller", err)
	}
	if err := mod.Init(); err != nil {
		ctrl.Deinit()
		logger.WithError(err).Error("modulation init failed")
		return nil, errors.InitError("modulation", err)
	}

	logger.Debug("handler initialized")
	return &Handler[T]{
		ctrl:   ctrl,
		mod:    mod,
		active: true,
		logger: logger,
	}, nil
}

// Configure forwards the configuration to the controller and modulation.
func (h *Handler[T]) Configure(ctrlCfg *ControlConfig[T], modCfg *ModConfig[T]) {
	h.ctrl.Configure(ctrlCfg)
	h.mod.Configure(modCfg)
}

// Run executes one control tick and writes the duty cycles to out.
func (h *Handler[T]) Run(in *Input[T], out *Output[T]) error {
	if !h.active {
		return errors.StateError("run")
	}

	// Correct current samples according to the modulation state
	h.mod.Current(&in.Current)

	vbase := h.mod.VBase(in.VBus)
	if err := h.ctrl.InputSet(&in.Current, vbase, in.Angle); err != nil {
		return err
	}

	var vab dsp.ABFrame[T]
	switch in.Mode {
	case ModeIdle:
		var zero T
		out.Duty = dsp.ABC[T]{zero, zero, zero}
		return nil

	case ModeVoltage:
		if err := h.ctrl.VoltageRun(in.DQRef, &vab); err != nil {
			return err
		}

	case ModeCurrent:
		if err := h.ctrl.CurrentRun(in.DQRef, in.VDQComp, &vab); err != nil {
			return err
		}

	default:
		return errors.ModeError(in.Mode)
	}

	h.mod.Run(&vab, &out.Duty)
	return nil
}

// StateGet copies the controller's last state.
func (h *Handler[T]) StateGet(st *State[T]) {
	h.ctrl.State(st)
}

// Deinit releases the controller and modulation. Further calls to Run
// fail; a second Deinit does nothing.
func (h *Handler[T]) Deinit() {
	if !h.active {
		return
	}
	h.active = false
	h.ctrl.Deinit()
	h.mod.Deinit()
	h.logger.Debug("handler released")
}
