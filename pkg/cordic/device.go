package cordic

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"nuttx-foc-go/pkg/errors"
)

const (
	// DefaultDevice is the conventional CORDIC device node
	DefaultDevice = "/dev/cordic0"

	// CalculateRequest is the calculation ioctl request: _CORDICIOC(1)
	// with the NuttX CORDIC ioctl base.
	CalculateRequest = 0x3401
)

// rawCalc mirrors the C layout of the calculation record:
// three bytes of function, scale and flag, one pad byte, four int32.
type rawCalc struct {
	fn       uint8
	scale    uint8
	res2Incl uint8
	_        uint8
	arg1     int32
	arg2     int32
	res1     int32
	res2     int32
}

// DeviceConfig configures a CORDIC device engine.
type DeviceConfig struct {
	// Path of the device node (default: /dev/cordic0)
	Path string

	// Request is the ioctl request number (default: CalculateRequest)
	Request uint
}

// Device is a CORDIC engine backed by a character device.
type Device struct {
	mu      sync.Mutex
	fd      int
	path    string
	request uint
	closed  bool
}

// OpenDevice opens the CORDIC device.
func OpenDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultDevice
	}
	if cfg.Request == 0 {
		cfg.Request = CalculateRequest
	}

	fd, err := unix.Open(cfg.Path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.CordicError(fmt.Sprintf("open %s", cfg.Path), err)
	}

	return &Device{
		fd:      fd,
		path:    cfg.Path,
		request: cfg.Request,
	}, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Calculate implements Engine.
func (d *Device) Calculate(c *Calc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.CordicError("calculate", unix.EBADF)
	}

	raw := rawCalc{
		fn:    uint8(c.Func),
		scale: c.Scale,
		arg1:  c.Arg1,
		arg2:  c.Arg2,
	}
	if c.Res2Incl {
		raw.res2Incl = 1
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), uintptr(d.request), uintptr(unsafe.Pointer(&raw)))
	if errno != 0 {
		return errors.CordicError(fmt.Sprintf("ioctl %s", c.Func), errno)
	}

	c.Res1 = raw.res1
	c.Res2 = raw.res2
	if !c.Res2Incl {
		c.Res2 = 0
	}
	return nil
}

// Close implements Engine.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if err := unix.Close(d.fd); err != nil {
		return errors.CordicError("close", err)
	}
	return nil
}
