//go:build linux

package agent

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "sbc-agent"

// RealLines drives the agent's lines through the GPIO character device.
type RealLines struct {
	chip      *gpiocdev.Chip
	indicator *gpiocdev.Line
	shutdown  *gpiocdev.Line
	edges     chan struct{}
}

// NewRealLines requests the indicator as an output, initially high, and the
// shutdown line as a pulled-down input watching rising edges.
func NewRealLines(chipName string, indicatorPin, shutdownPin int) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealLines{chip: chip, edges: make(chan struct{}, 1)}

	r.indicator, err = chip.RequestLine(indicatorPin, gpiocdev.AsOutput(1), gpiocdev.WithConsumer(consumer))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request indicator pin %d: %w", indicatorPin, err)
	}

	r.shutdown, err = chip.RequestLine(shutdownPin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			select {
			case r.edges <- struct{}{}:
			default:
			}
		}),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request shutdown pin %d: %w", shutdownPin, err)
	}
	return r, nil
}

// SetIndicator drives the indicator line.
func (r *RealLines) SetIndicator(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return r.indicator.SetValue(v)
}

// WaitShutdown blocks until the shutdown line rises.
func (r *RealLines) WaitShutdown(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.edges:
		return nil
	}
}

// Close releases both lines and the chip.
func (r *RealLines) Close() error {
	if r.shutdown != nil {
		r.shutdown.Close()
	}
	if r.indicator != nil {
		r.indicator.Close()
	}
	return r.chip.Close()
}
