// Unified error handling for the FOC pipeline
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Control pipeline errors
	ErrFOCInit  ErrorCode = "FOC_INIT"
	ErrFOCMode  ErrorCode = "FOC_MODE"
	ErrFOCState ErrorCode = "FOC_STATE"
	ErrFault    ErrorCode = "FOC_FAULT"

	// Collaborators
	ErrCordic    ErrorCode = "CORDIC"
	ErrPWMOutput ErrorCode = "PWM_OUTPUT"
	ErrTelemetry ErrorCode = "TELEMETRY"

	// Runtime errors
	ErrRuntime ErrorCode = "RUNTIME"
)

// Sentinel errors, matched with errors.Is
var (
	ErrInvalidMode    = stderrors.New("foc: invalid controller mode")
	ErrNotInitialized = stderrors.New("foc: handler not initialized")
	ErrUnsupported    = stderrors.New("unsupported operation")
	ErrTripped        = stderrors.New("foc: drive tripped")
)

// FOCError is the unified error type of the pipeline
type FOCError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Component names the part that failed (e.g. "svm3", "cordic")
	Component string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *FOCError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Component != "" {
		msg = fmt.Sprintf("[%s:%s] %s", e.Code, e.Component, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *FOCError) Unwrap() error {
	return e.Err
}

// SetComponent sets the failing component
func (e *FOCError) SetComponent(component string) *FOCError {
	e.Component = component
	return e
}

// SetContext adds additional context
func (e *FOCError) SetContext(key string, value interface{}) *FOCError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *FOCError {
	return &FOCError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new FOCError
func New(code ErrorCode, message string) *FOCError {
	return &FOCError{
		Code:    code,
		Message: message,
	}
}

// Config errors

// ConfigSectionError creates an error for missing config section
func ConfigSectionError(section string) *FOCError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetContext("section", section)
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(section, option string, reason string) *FOCError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetContext("section", section).
		SetContext("option", option)
}

// Pipeline errors

// InitError wraps a failure of a sub-object's Init
func InitError(component string, err error) *FOCError {
	return Wrap(err, ErrFOCInit, "initialization failed").SetComponent(component)
}

// ModeError reports an unsupported controller mode
func ModeError(mode fmt.Stringer) *FOCError {
	return Wrap(ErrInvalidMode, ErrFOCMode, fmt.Sprintf("mode %s", mode))
}

// StateError reports use of a handler that is not initialized
func StateError(operation string) *FOCError {
	return Wrap(ErrNotInitialized, ErrFOCState, operation)
}

// CordicError wraps a CORDIC engine failure
func CordicError(operation string, err error) *FOCError {
	return Wrap(err, ErrCordic, operation).SetComponent("cordic")
}

// PWMError wraps a PWM output failure
func PWMError(sink string, err error) *FOCError {
	return Wrap(err, ErrPWMOutput, "write failed").SetComponent(sink)
}

// FaultError reports a protection trip
func FaultError(reason, message string) *FOCError {
	return Wrap(ErrTripped, ErrFault, message).
		SetComponent("safety").
		SetContext("reason", reason)
}

// RuntimeError creates a general runtime error
func RuntimeError(message string) *FOCError {
	return New(ErrRuntime, message)
}

// RecoverPanic converts a recovered panic value into an error.
// Call it from a deferred function: err = errors.RecoverPanic(recover())
func RecoverPanic(r interface{}) *FOCError {
	if r == nil {
		return nil
	}
	switch x := r.(type) {
	case runtime.Error:
		return RuntimeError(x.Error())
	case error:
		return RuntimeError(x.Error())
	case string:
		return RuntimeError(fmt.Sprintf("panic: %s", x))
	default:
		return RuntimeError(fmt.Sprintf("panic: %v", x))
	}
}

// Is checks if any error in the chain carries the given code
func Is(err error, code ErrorCode) bool {
	var focErr *FOCError
	for err != nil {
		if !stderrors.As(err, &focErr) {
			return false
		}
		if focErr.Code == code {
			return true
		}
		err = focErr.Err
	}
	return false
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}

// IsPipeline checks if error comes from the control pipeline
func IsPipeline(err error) bool {
	return Is(err, ErrFOCInit) ||
		Is(err, ErrFOCMode) ||
		Is(err, ErrFOCState) ||
		Is(err, ErrCordic)
}
