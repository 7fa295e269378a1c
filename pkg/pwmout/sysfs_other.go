//go:build !linux

package pwmout

import "nuttx-foc-go/pkg/errors"

// Sysfs is only available on Linux.
type Sysfs struct{}

// OpenSysfs always fails outside Linux.
func OpenSysfs(cfg SysfsConfig) (*Sysfs, error) {
	return nil, errors.PWMError("sysfs", errors.ErrUnsupported)
}

func (*Sysfs) Period() int64          { return 0 }
func (*Sysfs) Write([3]float64) error { return errors.PWMError("sysfs", errors.ErrUnsupported) }
func (*Sysfs) Close() error           { return nil }
