package pwmout

import (
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/log"
)

// ModbusConfig addresses three consecutive holding registers of a remote
// inverter.
type ModbusConfig struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
	Timeout  time.Duration
}

// registerWriter is the part of modbus.Client used by the sink.
type registerWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) (results []byte, err error)
}

// Modbus writes duty cycles in permille (0..1000) over Modbus TCP.
type Modbus struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  registerWriter
	address uint16

	last  [3]uint16
	valid bool
	buf   [6]byte
}

// OpenModbus connects to the endpoint.
func OpenModbus(cfg ModbusConfig) (*Modbus, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ConfigValidationError("pwm_output", "endpoint", "required for modbus output")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID
	if err := h.Connect(); err != nil {
		return nil, errors.PWMError("modbus", err).SetContext("endpoint", cfg.Endpoint)
	}

	log.GetLogger("pwmout.modbus").WithFields(log.Fields{
		"endpoint": cfg.Endpoint,
		"unit":     cfg.UnitID,
		"address":  cfg.Address,
	}).Info("modbus PWM output connected")

	return &Modbus{
		handler: h,
		client:  modbus.NewClient(h),
		address: cfg.Address,
	}, nil
}

// Write implements Sink. Unchanged values are not sent again.
func (m *Modbus) Write(duty [3]float64) error {
	var regs [3]uint16
	for i, d := range duty {
		regs[i] = uint16(clampUnit(d)*1000 + 0.5)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && regs == m.last {
		return nil
	}
	for i, r := range regs {
		m.buf[2*i] = byte(r >> 8)
		m.buf[2*i+1] = byte(r)
	}
	if _, err := m.client.WriteMultipleRegisters(m.address, uint16(len(regs)), m.buf[:]); err != nil {
		m.valid = false
		return errors.PWMError("modbus", err)
	}
	m.last = regs
	m.valid = true
	return nil
}

// Close closes the connection.
func (m *Modbus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler == nil {
		return nil
	}
	err := m.handler.Close()
	m.handler = nil
	if err != nil {
		return errors.PWMError("modbus", err)
	}
	return nil
}
