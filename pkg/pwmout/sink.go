// Package pwmout forwards the duty cycles computed by the control loop to
// an inverter.
package pwmout

import (
	"fmt"

	"nuttx-foc-go/pkg/errors"
)

// Sink receives one set of phase duty cycles per control tick. Duty
// cycles are in [0, 1].
type Sink interface {
	Write(duty [3]float64) error
	Close() error
}

// Output kinds
const (
	KindNone   = "none"
	KindSysfs  = "sysfs"
	KindModbus = "modbus"
)

// SysfsConfig selects three channels of one sysfs PWM chip,
// /sys/class/pwm/pwmchip<Chip>/pwm<Channel>.
type SysfsConfig struct {
	Chip     int
	Channels [3]int

	// Freq is the PWM frequency in Hz
	Freq float64
}

// Config selects and configures an output.
type Config struct {
	Kind   string
	Sysfs  SysfsConfig
	Modbus ModbusConfig
}

// Open opens the output selected by cfg.Kind.
func Open(cfg Config) (Sink, error) {
	switch cfg.Kind {
	case "", KindNone:
		return Nop{}, nil
	case KindSysfs:
		s, err := OpenSysfs(cfg.Sysfs)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindModbus:
		m, err := OpenModbus(cfg.Modbus)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.ConfigValidationError("pwm_output", "kind",
			fmt.Sprintf("unknown output %q", cfg.Kind))
	}
}

// Nop discards all duty cycles.
type Nop struct{}

func (Nop) Write([3]float64) error { return nil }
func (Nop) Close() error           { return nil }

func clampUnit(d float64) float64 {
	// NaN fails every comparison
	if !(d >= 0) {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}
