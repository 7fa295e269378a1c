//go:build linux

package pwmout

import (
	"time"

	"github.com/knieriem/sysfspwm"

	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/log"
)

// channel is the part of sysfspwm.Channel used by Sysfs.
type channel interface {
	PWM(duty int32, freq int64) error
	Close() error
}

var openChannel = func(chip, n int) (channel, error) {
	ch, err := sysfspwm.OpenChannel(chip, n)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Sysfs drives three Linux sysfs PWM channels of one chip.
type Sysfs struct {
	// freq is the PWM frequency in millihertz
	freq     int64
	channels [3]channel
	last     [3]int32
	logger   *log.Logger
}

// OpenSysfs exports (if needed) and enables the configured channels with
// all duty cycles at 0.
func OpenSysfs(cfg SysfsConfig) (*Sysfs, error) {
	if cfg.Freq <= 0 {
		return nil, errors.ConfigValidationError("pwm_output", "freq", "must be positive")
	}

	s := &Sysfs{
		freq:   int64(cfg.Freq * 1000),
		logger: log.GetLogger("pwmout.sysfs"),
	}
	if s.freq <= 0 {
		return nil, errors.ConfigValidationError("pwm_output", "freq", "below 1 mHz")
	}

	for i, n := range cfg.Channels {
		ch, err := openChannel(cfg.Chip, n)
		if err == nil {
			s.channels[i] = ch
			err = ch.PWM(0, s.freq)
		}
		if err != nil {
			s.Close()
			return nil, errors.PWMError("sysfs", err).
				SetContext("chip", cfg.Chip).SetContext("channel", n)
		}
	}

	s.logger.WithFields(log.Fields{
		"chip":     cfg.Chip,
		"channels": cfg.Channels,
		"period":   s.Period(),
	}).Info("sysfs PWM enabled")
	return s, nil
}

// Period returns the PWM period in nanoseconds.
func (s *Sysfs) Period() int64 {
	return (1000 * time.Second / time.Duration(s.freq)).Nanoseconds()
}

// Write implements Sink. Unchanged channels are not written again.
func (s *Sysfs) Write(duty [3]float64) error {
	for i, ch := range s.channels {
		d := int32(clampUnit(duty[i]) * float64(sysfspwm.DutyMax))
		if d == s.last[i] {
			continue
		}
		if err := ch.PWM(d, s.freq); err != nil {
			return errors.PWMError("sysfs", err).SetContext("phase", i)
		}
		s.last[i] = d
	}
	return nil
}

// Close sets the duty cycles to 0, disables the channels and releases
// them.
func (s *Sysfs) Close() error {
	var first error
	for i, ch := range s.channels {
		if ch == nil {
			continue
		}
		if err := ch.PWM(0, s.freq); err != nil && first == nil {
			first = err
		}
		if err := ch.PWM(0, 0); err != nil && first == nil {
			first = err
		}
		if err := ch.Close(); err != nil && first == nil {
			first = err
		}
		s.channels[i] = nil
		s.last[i] = 0
	}
	if first != nil {
		return errors.PWMError("sysfs", first)
	}
	return nil
}
