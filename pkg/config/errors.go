// Package config parses drive configuration files with access tracking
// and typed, bounds-checked getters.
package config

import (
	"fmt"

	"nuttx-foc-go/pkg/errors"
)

// ErrMissingOption reports a required option that is absent.
func ErrMissingOption(section, option string) *errors.FOCError {
	return errors.New(errors.ErrConfigOption,
		fmt.Sprintf("option '%s' in section '%s' must be specified", option, section)).
		SetContext("section", section).
		SetContext("option", option)
}

// ErrMissingSection reports a required section that is absent.
func ErrMissingSection(section string) *errors.FOCError {
	return errors.ConfigSectionError(section)
}

// ErrInvalidValue reports a value that does not parse as the expected type.
func ErrInvalidValue(section, option, value, expected string) *errors.FOCError {
	return errors.New(errors.ErrConfigType,
		fmt.Sprintf("option '%s' in section '%s': invalid value '%s', expected %s",
			option, section, value, expected)).
		SetContext("section", section).
		SetContext("option", option)
}

// ErrOutOfRange reports a value outside its bounds.
func ErrOutOfRange(section, option string, value float64, constraint string) *errors.FOCError {
	return errors.ConfigValidationError(section, option, fmt.Sprintf("value %v %s", value, constraint))
}

// ErrInvalidChoice reports a value not among the allowed choices.
func ErrInvalidChoice(section, option, value string, choices []string) *errors.FOCError {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices))
}

// ErrUnused reports options or sections that were never read.
func ErrUnused(detail string) *errors.FOCError {
	return errors.New(errors.ErrConfigOption, detail)
}
