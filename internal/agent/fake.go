package agent

import (
	"context"
	"sync"
)

// FakeLines is a test double. Trigger simulates the controller raising the
// shutdown request.
type FakeLines struct {
	mu        sync.Mutex
	indicator bool
	edges     chan struct{}

	// IndicatorError, if set, will be returned by SetIndicator.
	IndicatorError error

	// WaitError, if set, will be returned by WaitShutdown.
	WaitError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLines creates a FakeLines with the indicator low.
func NewFakeLines() *FakeLines {
	return &FakeLines{edges: make(chan struct{}, 1)}
}

// SetIndicator records the level.
func (f *FakeLines) SetIndicator(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IndicatorError != nil {
		return f.IndicatorError
	}
	f.indicator = on
	return nil
}

// WaitShutdown blocks until Trigger is called.
func (f *FakeLines) WaitShutdown(ctx context.Context) error {
	f.mu.Lock()
	err := f.WaitError
	f.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.edges:
		return nil
	}
}

// Close marks the lines as closed.
func (f *FakeLines) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Indicator returns the last level written.
func (f *FakeLines) Indicator() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indicator
}

// Trigger delivers a rising edge on the shutdown line.
func (f *FakeLines) Trigger() {
	select {
	case f.edges <- struct{}{}:
	default:
	}
}
