//go:build !linux

package agent

import (
	"context"
	"errors"
)

// RealLines is a stub for non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string, indicatorPin, shutdownPin int) (*RealLines, error) {
	return nil, errors.New("gpio not supported on this platform")
}

// SetIndicator is a stub.
func (r *RealLines) SetIndicator(on bool) error {
	return errors.New("gpio not supported on this platform")
}

// WaitShutdown is a stub.
func (r *RealLines) WaitShutdown(ctx context.Context) error {
	return errors.New("gpio not supported on this platform")
}

// Close is a stub.
func (r *RealLines) Close() error {
	return nil
}
