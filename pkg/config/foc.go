// Drive configuration sections
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"time"

	"nuttx-foc-go/pkg/foc"
	"nuttx-foc-go/pkg/metrics"
	"nuttx-foc-go/pkg/pwmout"
	"nuttx-foc-go/pkg/safety"
	"nuttx-foc-go/pkg/sim"
	"nuttx-foc-go/pkg/telemetry"
)

// Numeric variants
const (
	NumericFloat = "float"
	NumericFixed = "fixed"
)

// Cordic engines
const (
	CordicNone     = "none"
	CordicSoftware = "software"
	CordicDevice   = "device"
)

// FOCConfig is the complete drive configuration.
type FOCConfig struct {
	// Numeric selects float32 or Q16.16 arithmetic
	Numeric string

	// Ticks is the default run length
	Ticks int

	Sim sim.Config
	PWM pwmout.Config

	// Metrics, Telemetry and Safety are nil when their section is absent
	Metrics   *metrics.MetricsServerConfig
	Telemetry *telemetry.Config
	Safety    *safety.Config
}

// DefaultFOCConfig returns the configuration used when no file is given.
func DefaultFOCConfig() *FOCConfig {
	return &FOCConfig{
		Numeric: NumericFloat,
		Ticks:   10000,
		Sim:     sim.DefaultConfig(),
		PWM:     pwmout.Config{Kind: pwmout.KindNone},
	}
}

// LoadFOC loads path and maps it to a FOCConfig. Unknown sections or
// options are errors.
func LoadFOC(path string) (*FOCConfig, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return ParseFOC(c)
}

// ParseFOC maps the drive sections. Absent sections and options keep
// their defaults.
func ParseFOC(c *Config) (*FOCConfig, error) {
	fc := DefaultFOCConfig()
	steps := []func(*Config, *FOCConfig) error{
		parseFOCSection, parseMotor, parseRamp, parseCordic, parseSim,
		parseMetrics, parseTelemetry, parseSafety, parsePWMOutput,
	}
	for _, step := range steps {
		if err := step(c, fc); err != nil {
			return nil, err
		}
	}
	if err := c.CheckUnused(); err != nil {
		return nil, err
	}
	if err := fc.Sim.Validate(); err != nil {
		return nil, err
	}
	return fc, nil
}

var (
	zero = Float(0)
	one  = Float(1)
)

// optional returns a section that yields defaults when absent.
func optional(c *Config, name string) *Section {
	if s := c.SectionOptional(name); s != nil {
		return s
	}
	return newSection(name, nil)
}

// floats reads options into the given targets, keeping the current value
// as the default.
func floats(s *Section, bounds FloatBounds, targets map[string]*float64) error {
	for opt, dst := range targets {
		v, err := s.GetFloatWithBounds(opt, bounds, *dst)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func parseFOCSection(c *Config, fc *FOCConfig) error {
	s := optional(c, "foc")
	sc := &fc.Sim

	var err error
	if fc.Numeric, err = s.GetChoice("numeric", []string{NumericFloat, NumericFixed}, fc.Numeric); err != nil {
		return err
	}
	mode, err := s.GetChoice("mode", []string{"current", "voltage"}, sc.Mode.String())
	if err != nil {
		return err
	}
	sc.Mode, _ = foc.ParseMode(mode)

	if sc.DutyMax, err = s.GetFloatWithBounds("duty_max", FloatBounds{Above: zero, MaxVal: one}, sc.DutyMax); err != nil {
		return err
	}
	if sc.CurrentCorrection, err = s.GetBool("current_correction", sc.CurrentCorrection); err != nil {
		return err
	}
	if err := floats(s, FloatBounds{MinVal: zero}, map[string]*float64{
		"id_kp": &sc.IdKp, "id_ki": &sc.IdKi,
		"iq_kp": &sc.IqKp, "iq_ki": &sc.IqKi,
	}); err != nil {
		return err
	}

	freq, err := s.GetFloatWithBounds("pwm_freq", FloatBounds{Above: zero}, 1/float64(sc.Motor.Per))
	if err != nil {
		return err
	}
	sc.Motor.Per = float32(1 / freq)
	fc.PWM.Sysfs.Freq = freq
	return nil
}

func parseMotor(c *Config, fc *FOCConfig) error {
	s := optional(c, "motor")
	m := &fc.Sim.Motor

	pp, err := s.GetIntWithBounds("pole_pairs", 1, 64, m.PolePairs)
	if err != nil {
		return err
	}
	m.PolePairs = pp

	vals := map[string]*float32{
		"resistance":   &m.Res,
		"inductance_d": &m.IndD,
		"inductance_q": &m.IndQ,
		"flux_link":    &m.FluxLink,
		"inertia":      &m.Inertia,
	}
	for opt, dst := range vals {
		v, err := s.GetFloatWithBounds(opt, FloatBounds{Above: zero}, float64(*dst))
		if err != nil {
			return err
		}
		*dst = float32(v)
	}
	fr, err := s.GetFloatWithBounds("friction", FloatBounds{MinVal: zero}, float64(m.Friction))
	if err != nil {
		return err
	}
	m.Friction = float32(fr)
	return nil
}

func parseRamp(c *Config, fc *FOCConfig) error {
	sc := &fc.Sim
	return floats(optional(c, "ramp"), FloatBounds{Above: zero}, map[string]*float64{
		"threshold":    &sc.RampThr,
		"acceleration": &sc.RampAcc,
		"deceleration": &sc.RampDec,
	})
}

func parseCordic(c *Config, fc *FOCConfig) error {
	s := optional(c, "cordic")
	engine, err := s.GetChoice("engine", []string{CordicNone, CordicSoftware, CordicDevice}, CordicNone)
	if err != nil {
		return err
	}
	switch engine {
	case CordicSoftware:
		n, err := s.GetIntWithBounds("iterations", 1, 31, 24)
		if err != nil {
			return err
		}
		fc.Sim.Cordic = foc.SoftwareEngine(n)
	case CordicDevice:
		path, err := s.Get("device", "/dev/cordic0")
		if err != nil {
			return err
		}
		fc.Sim.Cordic = foc.DeviceEngine(path)
	}
	return nil
}

func parseSim(c *Config, fc *FOCConfig) error {
	s := optional(c, "sim")
	sc := &fc.Sim

	var err error
	if fc.Ticks, err = s.GetIntWithBounds("ticks", 1, 1<<30, fc.Ticks); err != nil {
		return err
	}
	if sc.VBus, err = s.GetFloatWithBounds("vbus", FloatBounds{Above: zero}, sc.VBus); err != nil {
		return err
	}
	if sc.OpenLoop, err = s.GetBool("open_loop", sc.OpenLoop); err != nil {
		return err
	}
	if sc.CurrentMax, err = s.GetFloatWithBounds("current_max", FloatBounds{Above: zero}, sc.CurrentMax); err != nil {
		return err
	}
	if err := floats(s, FloatBounds{MinVal: zero}, map[string]*float64{
		"speed_kp": &sc.SpeedKp, "speed_ki": &sc.SpeedKi,
		"load": &sc.Load,
	}); err != nil {
		return err
	}
	return floats(s, FloatBounds{}, map[string]*float64{
		"speed":     &sc.SpeedRef,
		"voltage_q": &sc.VoltageQ,
	})
}

func parseMetrics(c *Config, fc *FOCConfig) error {
	s := c.SectionOptional("metrics")
	if s == nil {
		return nil
	}
	mc := metrics.DefaultMetricsServerConfig()
	var err error
	if mc.Address, err = s.Get("address", mc.Address); err != nil {
		return err
	}
	if mc.Username, err = s.Get("username", ""); err != nil {
		return err
	}
	if mc.Password, err = s.Get("password", ""); err != nil {
		return err
	}
	fc.Metrics = &mc
	return nil
}

func parseTelemetry(c *Config, fc *FOCConfig) error {
	s := c.SectionOptional("telemetry")
	if s == nil {
		return nil
	}
	tc := telemetry.Config{}
	var err error
	if tc.Addr, err = s.Get("address", ":9101"); err != nil {
		return err
	}
	if tc.Decimate, err = s.GetIntWithBounds("decimate", 1, 1<<20, 10); err != nil {
		return err
	}
	if tc.QueueLen, err = s.GetIntWithBounds("queue_len", 1, 1<<16, telemetry.DefaultQueueLen); err != nil {
		return err
	}
	fc.Telemetry = &tc
	return nil
}

func parseSafety(c *Config, fc *FOCConfig) error {
	s := c.SectionOptional("safety")
	if s == nil {
		return nil
	}
	sc := safety.Config{}
	if err := floats(s, FloatBounds{MinVal: zero}, map[string]*float64{
		"current_max": &sc.CurrentMax,
		"speed_max":   &sc.SpeedMax,
	}); err != nil {
		return err
	}
	var err error
	if sc.OvermodLimit, err = s.GetIntWithBounds("overmod_limit", 0, 1<<30, 0); err != nil {
		return err
	}
	wd, err := s.GetFloatWithBounds("watchdog_timeout", FloatBounds{MinVal: zero}, 0)
	if err != nil {
		return err
	}
	sc.WatchdogTimeout = seconds(wd)
	fc.Safety = &sc
	return nil
}

func parsePWMOutput(c *Config, fc *FOCConfig) error {
	s := optional(c, "pwm_output")
	p := &fc.PWM

	var err error
	if p.Kind, err = s.GetChoice("kind", []string{pwmout.KindNone, pwmout.KindSysfs, pwmout.KindModbus}, pwmout.KindNone); err != nil {
		return err
	}

	switch p.Kind {
	case pwmout.KindSysfs:
		if p.Sysfs.Chip, err = s.GetIntWithBounds("chip", 0, 1<<16, 0); err != nil {
			return err
		}
		ch, err := s.GetIntList("channels", []int{0, 1, 2})
		if err != nil {
			return err
		}
		if len(ch) != 3 {
			return ErrInvalidValue("pwm_output", "channels", s.options["channels"], "three channel numbers")
		}
		copy(p.Sysfs.Channels[:], ch)

	case pwmout.KindModbus:
		if p.Modbus.Endpoint, err = s.Get("endpoint"); err != nil {
			return err
		}
		unit, err := s.GetIntWithBounds("unit_id", 0, 247, 1)
		if err != nil {
			return err
		}
		p.Modbus.UnitID = uint8(unit)
		addr, err := s.GetIntWithBounds("address", 0, 65533, 0)
		if err != nil {
			return err
		}
		p.Modbus.Address = uint16(addr)
		timeout, err := s.GetFloatWithBounds("timeout", FloatBounds{Above: zero}, 1)
		if err != nil {
			return err
		}
		p.Modbus.Timeout = seconds(timeout)
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
