// Package gpio provides the pin port of the power controller with hardware
// abstraction. The real implementations use the Linux GPIO character device
// (go-gpiocdev) or periph.io. The fake implementation allows testing without
// hardware.
package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// Line names an output line.
type Line int

const (
	LinePowerEnable Line = iota
	LineShutdownRequest
	LineIndicator
)

func (l Line) String() string {
	switch l {
	case LinePowerEnable:
		return "power-enable"
	case LineShutdownRequest:
		return "shutdown-request"
	case LineIndicator:
		return "indicator"
	}
	return fmt.Sprintf("Line(%d)", int(l))
}

// Port reads the watched inputs and drives the outputs.
type Port interface {
	// ReadInputs returns the raw input levels as a snapshot bitset, using the
	// logic.BitButton and logic.BitSBC positions.
	ReadInputs() (uint8, error)

	// SetOutput drives an output line high (true) or low.
	SetOutput(line Line, on bool) error

	// Watch arms the pin-change source. onChange is called from the
	// backend's own goroutine after any watched input changed level; it
	// must not block.
	Watch(onChange func()) error

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinPowerEnable = 17
	DefaultPinButton      = 27
	DefaultPinIndicator   = 22
	DefaultPinShutdown    = 23
	DefaultPinSBC         = 24
)

// Pins maps the controller's lines to GPIO offsets.
type Pins struct {
	PowerEnable int
	Button      int
	Indicator   int
	Shutdown    int
	SBC         int
}

// DefaultPins returns the stock wiring.
func DefaultPins() Pins {
	return Pins{
		PowerEnable: DefaultPinPowerEnable,
		Button:      DefaultPinButton,
		Indicator:   DefaultPinIndicator,
		Shutdown:    DefaultPinShutdown,
		SBC:         DefaultPinSBC,
	}
}

// Validate rejects negative or shared offsets.
func (p Pins) Validate() error {
	seen := make(map[int]string)
	for _, pin := range []struct {
		name   string
		offset int
	}{
		{"power-enable", p.PowerEnable},
		{"button", p.Button},
		{"indicator", p.Indicator},
		{"shutdown", p.Shutdown},
		{"sbc", p.SBC},
	} {
		if pin.offset < 0 {
			return fmt.Errorf("pin %s: negative offset %d", pin.name, pin.offset)
		}
		if other, ok := seen[pin.offset]; ok {
			return fmt.Errorf("pin %s: offset %d already used by %s", pin.name, pin.offset, other)
		}
		seen[pin.offset] = pin.name
	}
	return nil
}

// Apply drives every output line to the levels in out.
func Apply(p Port, out logic.Outputs) error {
	var errs []error
	for _, o := range []struct {
		line Line
		on   bool
	}{
		{LinePowerEnable, out.PowerEnable},
		{LineShutdownRequest, out.ShutdownRequest},
		{LineIndicator, out.Indicator},
	} {
		if err := p.SetOutput(o.line, o.on); err != nil {
			errs = append(errs, fmt.Errorf("set %s: %w", o.line, err))
		}
	}
	return errors.Join(errs...)
}

// ButtonHeld reports whether the raw snapshot shows the button pressed
// (active low).
func ButtonHeld(snapshot uint8) bool {
	return snapshot&(1<<logic.BitButton) == 0
}

// snapshot builds a snapshot from raw button and SBC levels.
func snapshot(button, sbc int) uint8 {
	var s uint8
	if button != 0 {
		s |= 1 << logic.BitButton
	}
	if sbc != 0 {
		s |= 1 << logic.BitSBC
	}
	return s
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
