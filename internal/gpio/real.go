//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "atx-powerctl"

// RealPort drives the controller's lines through the Linux GPIO character
// device.
type RealPort struct {
	pins Pins
	chip *gpiocdev.Chip

	mu      sync.Mutex
	outputs map[Line]*gpiocdev.Line
	button  *gpiocdev.Line
	sbc     *gpiocdev.Line
}

// NewRealPort opens chipName and requests the output lines, driven low.
// Inputs are requested by Watch.
func NewRealPort(chipName string, pins Pins) (*RealPort, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	p := &RealPort{
		pins:    pins,
		chip:    chip,
		outputs: make(map[Line]*gpiocdev.Line),
	}
	for line, offset := range map[Line]int{
		LinePowerEnable:     pins.PowerEnable,
		LineShutdownRequest: pins.Shutdown,
		LineIndicator:       pins.Indicator,
	} {
		l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", line, offset, err)
		}
		p.outputs[line] = l
	}
	return p, nil
}

// Watch requests the button (pull-up) and SBC (pull-down) lines with edge
// detection on both edges. onChange runs on gpiocdev's watcher goroutines.
func (p *RealPort) Watch(onChange func()) error {
	if onChange == nil {
		return errors.New("gpio: nil change handler")
	}
	handler := func(gpiocdev.LineEvent) { onChange() }

	button, err := p.chip.RequestLine(p.pins.Button,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return fmt.Errorf("request button pin %d: %w", p.pins.Button, err)
	}

	// The SBC drives this line; the pull-down keeps it reading off while
	// the SBC is unpowered.
	sbc, err := p.chip.RequestLine(p.pins.SBC,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		button.Close()
		return fmt.Errorf("request sbc pin %d: %w", p.pins.SBC, err)
	}

	p.mu.Lock()
	p.button = button
	p.sbc = sbc
	p.mu.Unlock()
	return nil
}

// ReadInputs samples both input lines.
func (p *RealPort) ReadInputs() (uint8, error) {
	p.mu.Lock()
	button, sbc := p.button, p.sbc
	p.mu.Unlock()
	if button == nil || sbc == nil {
		return 0, errors.New("gpio: inputs not watched")
	}

	b, err := button.Value()
	if err != nil {
		return 0, fmt.Errorf("read button pin: %w", err)
	}
	s, err := sbc.Value()
	if err != nil {
		return 0, fmt.Errorf("read sbc pin: %w", err)
	}
	return snapshot(b, s), nil
}

// SetOutput drives an output line.
func (p *RealPort) SetOutput(line Line, on bool) error {
	l, ok := p.outputs[line]
	if !ok {
		return fmt.Errorf("gpio: unknown line %s", line)
	}
	return l.SetValue(level(on))
}

// Close drives every output low and releases all lines.
func (p *RealPort) Close() error {
	var errs []error

	for line, l := range p.outputs {
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", line, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", line, err))
		}
	}
	p.mu.Lock()
	for name, l := range map[string]*gpiocdev.Line{"button": p.button, "sbc": p.sbc} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	p.button, p.sbc = nil, nil
	p.mu.Unlock()

	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
