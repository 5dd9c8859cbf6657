//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPort drives the controller's lines through periph.io, for boards
// where the character device is unavailable.
type PeriphPort struct {
	pins    Pins
	outputs map[Line]pgpio.PinIO
	button  pgpio.PinIO
	sbc     pgpio.PinIO

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewPeriphPort initialises the periph host drivers and configures the
// output pins low.
func NewPeriphPort(pins Pins) (*PeriphPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	p := &PeriphPort{
		pins:    pins,
		outputs: make(map[Line]pgpio.PinIO),
	}
	for line, offset := range map[Line]int{
		LinePowerEnable:     pins.PowerEnable,
		LineShutdownRequest: pins.Shutdown,
		LineIndicator:       pins.Indicator,
	} {
		pin, err := byOffset(offset)
		if err != nil {
			return nil, err
		}
		if err := pin.Out(pgpio.Low); err != nil {
			return nil, fmt.Errorf("configure %s pin %d: %w", line, offset, err)
		}
		p.outputs[line] = pin
	}

	var err error
	if p.button, err = byOffset(pins.Button); err != nil {
		return nil, err
	}
	if p.sbc, err = byOffset(pins.SBC); err != nil {
		return nil, err
	}
	return p, nil
}

func byOffset(offset int) (pgpio.PinIO, error) {
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", offset))
	if pin == nil {
		return nil, fmt.Errorf("gpio: no pin GPIO%d", offset)
	}
	return pin, nil
}

// Watch configures the inputs for both edges and starts one edge loop per
// input pin.
func (p *PeriphPort) Watch(onChange func()) error {
	if onChange == nil {
		return errors.New("gpio: nil change handler")
	}
	if err := p.button.In(pgpio.PullUp, pgpio.BothEdges); err != nil {
		return fmt.Errorf("configure button pin %d: %w", p.pins.Button, err)
	}
	if err := p.sbc.In(pgpio.PullDown, pgpio.BothEdges); err != nil {
		return fmt.Errorf("configure sbc pin %d: %w", p.pins.SBC, err)
	}

	for _, pin := range []pgpio.PinIO{p.button, p.sbc} {
		p.wg.Add(1)
		go p.edgeLoop(pin, onChange)
	}
	return nil
}

func (p *PeriphPort) edgeLoop(pin pgpio.PinIO, onChange func()) {
	defer p.wg.Done()
	for {
		if !pin.WaitForEdge(time.Second) {
			if p.isClosing() {
				return
			}
			continue
		}
		if p.isClosing() {
			return
		}
		onChange()
	}
}

func (p *PeriphPort) isClosing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closing
}

// ReadInputs samples both input pins.
func (p *PeriphPort) ReadInputs() (uint8, error) {
	return snapshot(levelInt(p.button.Read()), levelInt(p.sbc.Read())), nil
}

func levelInt(l pgpio.Level) int {
	if l == pgpio.High {
		return 1
	}
	return 0
}

// SetOutput drives an output pin.
func (p *PeriphPort) SetOutput(line Line, on bool) error {
	pin, ok := p.outputs[line]
	if !ok {
		return fmt.Errorf("gpio: unknown line %s", line)
	}
	l := pgpio.Low
	if on {
		l = pgpio.High
	}
	return pin.Out(l)
}

// Close stops the edge loops and drives every output low.
func (p *PeriphPort) Close() error {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()

	var errs []error
	for _, pin := range []pgpio.PinIO{p.button, p.sbc} {
		if pin == nil {
			continue
		}
		if err := pin.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", pin, err))
		}
	}
	p.wg.Wait()

	for line, pin := range p.outputs {
		if err := pin.Out(pgpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", line, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
