// Package safety trips the drive when the control loop leaves its safe
// operating area. A tripped manager parks the registered outputs and
// stops the run until it is reset.
package safety

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/log"
	"nuttx-foc-go/pkg/pwmout"
	"nuttx-foc-go/pkg/sim"
)

// State is the protection state of the drive.
type State int

const (
	// StateRunning indicates normal operation.
	StateRunning State = iota

	// StateTripping indicates the outputs are being parked.
	StateTripping

	// StateTripped indicates the drive is stopped by a fault.
	StateTripped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTripping:
		return "tripping"
	case StateTripped:
		return "tripped"
	default:
		return "unknown"
	}
}

// Reason describes why the drive tripped.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonOvercurrent Reason = "overcurrent"
	ReasonOverspeed   Reason = "overspeed"
	ReasonOvermod     Reason = "overmodulation"
	ReasonHandler     Reason = "handler_error"
	ReasonWatchdog    Reason = "watchdog_timeout"
	ReasonUserRequest Reason = "user_request"
)

// Disabler parks an output stage.
type Disabler interface {
	Disable() error
}

// SinkDisabler parks a PWM output by writing zero duty cycles.
type SinkDisabler struct {
	Sink pwmout.Sink
}

func (d SinkDisabler) Disable() error {
	return d.Sink.Write([3]float64{})
}

// Config holds the trip thresholds. Zero disables a check.
type Config struct {
	// CurrentMax is the phase current limit [A]
	CurrentMax float64

	// SpeedMax is the mechanical speed limit [rad/s]
	SpeedMax float64

	// OvermodLimit is the number of consecutive overmodulated ticks allowed
	OvermodLimit int

	// WatchdogTimeout trips when no tick is observed for this long
	WatchdogTimeout time.Duration
}

// Manager supervises the control loop. It implements sim.Observer and
// sim.ErrorObserver; add it before any output observer so a faulty tick
// never reaches the hardware. Outputs written by the loop should go
// through Guard.
type Manager struct {
	mu sync.RWMutex

	// outMu serializes guarded writes with parking on a trip
	outMu sync.Mutex

	cfg Config

	state    State
	reason   Reason
	msg      string
	tripTime time.Time
	tripTick uint64

	overmodRun int

	disablers []Disabler
	onTrip    []func(reason Reason, msg string)

	watchdogMu     sync.Mutex
	watchdogParent context.Context
	watchdogCancel context.CancelFunc
	lastHeartbeat  time.Time

	logger *log.Logger
}

// New creates a manager in the running state.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:    cfg,
		state:  StateRunning,
		logger: log.GetLogger("safety"),
	}
}

// Register adds an output to park on a trip.
func (m *Manager) Register(d Disabler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disablers = append(m.disablers, d)
}

// OnTrip registers a callback run after the outputs are parked.
func (m *Manager) OnTrip(fn func(reason Reason, msg string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrip = append(m.onTrip, fn)
}

// State returns the current protection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsTripped returns true once a trip has started.
func (m *Manager) IsTripped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state != StateRunning
}

// CheckOperational returns the fault error of a tripped drive.
func (m *Manager) CheckOperational() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateRunning {
		return errors.FaultError(string(m.reason), m.msg)
	}
	return nil
}

// Observe checks one tick against the thresholds.
func (m *Manager) Observe(s *sim.Sample) error {
	m.Heartbeat()
	if err := m.CheckOperational(); err != nil {
		return err
	}

	if lim := m.cfg.CurrentMax; lim > 0 {
		for i, c := range s.Current {
			if math.Abs(c) > lim {
				return m.tripAt(s.Tick, ReasonOvercurrent,
					fmt.Sprintf("phase %c current %.3f A exceeds %.3f A", 'a'+i, c, lim))
			}
		}
	}
	if lim := m.cfg.SpeedMax; lim > 0 && math.Abs(s.Speed) > lim {
		return m.tripAt(s.Tick, ReasonOverspeed,
			fmt.Sprintf("speed %.2f rad/s exceeds %.2f rad/s", s.Speed, lim))
	}
	if lim := m.cfg.OvermodLimit; lim > 0 {
		if s.Overmod {
			m.overmodRun++
		} else {
			m.overmodRun = 0
		}
		if m.overmodRun > lim {
			return m.tripAt(s.Tick, ReasonOvermod,
				fmt.Sprintf("overmodulated for %d ticks", m.overmodRun))
		}
	}
	return nil
}

// ObserveError trips on a failed handler tick.
func (m *Manager) ObserveError(err error) {
	m.Trip(ReasonHandler, err.Error())
}

// Trip parks the outputs and returns the fault error. A second trip keeps
// the first reason.
func (m *Manager) Trip(reason Reason, msg string) error {
	return m.tripAt(0, reason, msg)
}

func (m *Manager) tripAt(tick uint64, reason Reason, msg string) error {
	m.mu.Lock()
	if m.state != StateRunning {
		err := errors.FaultError(string(m.reason), m.msg)
		m.mu.Unlock()
		return err
	}
	m.state = StateTripping
	m.reason = reason
	m.msg = msg
	m.tripTime = time.Now()
	m.tripTick = tick

	disablers := make([]Disabler, len(m.disablers))
	copy(disablers, m.disablers)
	m.mu.Unlock()

	m.cancelWatchdog()
	m.logger.WithFields(log.Fields{
		"reason": string(reason),
		"tick":   tick,
	}).Error("drive tripped: " + msg)

	m.outMu.Lock()
	for _, d := range disablers {
		if err := d.Disable(); err != nil {
			m.logger.WithError(err).Warn("failed to park output")
		}
	}
	m.outMu.Unlock()

	m.mu.Lock()
	m.state = StateTripped
	onTrip := make([]func(Reason, string), len(m.onTrip))
	copy(onTrip, m.onTrip)
	m.mu.Unlock()

	for _, fn := range onTrip {
		fn(reason, msg)
	}
	return errors.FaultError(string(reason), msg)
}

// StartWatchdog trips the drive when ticks stop arriving for longer than
// the configured timeout. It is a no-op without a timeout. A trip pauses
// the watchdog and Reset starts it again under the same ctx.
func (m *Manager) StartWatchdog(ctx context.Context) {
	if m.cfg.WatchdogTimeout <= 0 {
		return
	}
	m.watchdogMu.Lock()
	defer m.watchdogMu.Unlock()
	if m.watchdogCancel != nil {
		return
	}

	m.watchdogParent = ctx
	ctx, m.watchdogCancel = context.WithCancel(ctx)
	m.lastHeartbeat = time.Now()
	go m.watchdogLoop(ctx)
}

// StopWatchdog stops the watchdog. Reset does not restart it.
func (m *Manager) StopWatchdog() {
	m.watchdogMu.Lock()
	m.watchdogParent = nil
	m.watchdogMu.Unlock()
	m.cancelWatchdog()
}

func (m *Manager) cancelWatchdog() {
	m.watchdogMu.Lock()
	defer m.watchdogMu.Unlock()
	if m.watchdogCancel != nil {
		m.watchdogCancel()
		m.watchdogCancel = nil
	}
}

func (m *Manager) restartWatchdog() {
	m.watchdogMu.Lock()
	parent := m.watchdogParent
	m.watchdogMu.Unlock()
	if parent != nil && parent.Err() == nil {
		m.StartWatchdog(parent)
	}
}

// Heartbeat resets the watchdog. Observe calls it every tick.
func (m *Manager) Heartbeat() {
	m.watchdogMu.Lock()
	m.lastHeartbeat = time.Now()
	m.watchdogMu.Unlock()
}

func (m *Manager) watchdogLoop(ctx context.Context) {
	poll := m.cfg.WatchdogTimeout / 10
	if poll < time.Millisecond {
		poll = time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.watchdogMu.Lock()
			elapsed := time.Since(m.lastHeartbeat)
			m.watchdogMu.Unlock()

			if elapsed > m.cfg.WatchdogTimeout {
				m.Trip(ReasonWatchdog, fmt.Sprintf("no tick for %v", elapsed.Round(time.Millisecond)))
				return
			}
		}
	}
}

// Reset re-arms a tripped drive and restarts a watchdog paused by the
// trip.
func (m *Manager) Reset() error {
	m.mu.Lock()
	switch m.state {
	case StateRunning:
		m.mu.Unlock()
		return nil
	case StateTripping:
		m.mu.Unlock()
		return errors.New(errors.ErrFault, "cannot reset while tripping").SetComponent("safety")
	}

	m.state = StateRunning
	m.reason = ReasonNone
	m.msg = ""
	m.tripTime = time.Time{}
	m.tripTick = 0
	m.overmodRun = 0
	m.mu.Unlock()

	m.restartWatchdog()
	m.logger.Info("drive re-armed")
	return nil
}

// Guard wraps the sink driven by the control loop. Writes are refused
// with the fault error once a trip starts, and a write already in
// progress completes before the outputs are parked. Disablers must use
// the unwrapped sink.
func (m *Manager) Guard(sink pwmout.Sink) pwmout.Sink {
	return &guardedSink{m: m, sink: sink}
}

type guardedSink struct {
	m    *Manager
	sink pwmout.Sink
}

func (g *guardedSink) Write(duty [3]float64) error {
	g.m.outMu.Lock()
	defer g.m.outMu.Unlock()
	if err := g.m.CheckOperational(); err != nil {
		return err
	}
	return g.sink.Write(duty)
}

func (g *guardedSink) Close() error {
	return g.sink.Close()
}

// Status is the protection state for reporting.
type Status struct {
	State    string    `json:"state"`
	Reason   string    `json:"reason,omitempty"`
	Message  string    `json:"message,omitempty"`
	TripTime time.Time `json:"trip_time,omitempty"`
	TripTick uint64    `json:"trip_tick,omitempty"`
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		State:    m.state.String(),
		Reason:   string(m.reason),
		Message:  m.msg,
		TripTime: m.tripTime,
		TripTick: m.tripTick,
	}
}
