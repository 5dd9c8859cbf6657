//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPort is not available on non-Linux platforms.
type RealPort struct{}

// NewRealPort returns an error on non-Linux platforms.
func NewRealPort(chipName string, pins Pins) (*RealPort, error) {
	return nil, errUnsupported
}

// ReadInputs is not implemented on non-Linux platforms.
func (p *RealPort) ReadInputs() (uint8, error) { return 0, errUnsupported }

// SetOutput is not implemented on non-Linux platforms.
func (p *RealPort) SetOutput(line Line, on bool) error { return errUnsupported }

// Watch is not implemented on non-Linux platforms.
func (p *RealPort) Watch(onChange func()) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (p *RealPort) Close() error { return nil }

// PeriphPort is not available on non-Linux platforms.
type PeriphPort struct{}

// NewPeriphPort returns an error on non-Linux platforms.
func NewPeriphPort(pins Pins) (*PeriphPort, error) {
	return nil, errUnsupported
}

// ReadInputs is not implemented on non-Linux platforms.
func (p *PeriphPort) ReadInputs() (uint8, error) { return 0, errUnsupported }

// SetOutput is not implemented on non-Linux platforms.
func (p *PeriphPort) SetOutput(line Line, on bool) error { return errUnsupported }

// Watch is not implemented on non-Linux platforms.
func (p *PeriphPort) Watch(onChange func()) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (p *PeriphPort) Close() error { return nil }
