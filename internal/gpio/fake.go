package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// FakePort is a test double with settable inputs and recorded outputs.
// Changing an input calls the watch callback synchronously, like an
// interrupt that runs before the setter returns.
type FakePort struct {
	mu       sync.Mutex
	inputs   uint8
	outputs  map[Line]bool
	onChange func()

	// Writes counts SetOutput calls.
	Writes int

	// ReadError, if set, will be returned by ReadInputs().
	ReadError error

	// WriteError, if set, will be returned by SetOutput().
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePort creates a FakePort with idle inputs (button released, SBC off).
func NewFakePort() *FakePort {
	return &FakePort{
		inputs:  logic.IdleSnapshot,
		outputs: make(map[Line]bool),
	}
}

// ReadInputs returns the scripted input snapshot.
func (f *FakePort) ReadInputs() (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.inputs, nil
}

// SetOutput records the output level.
func (f *FakePort) SetOutput(line Line, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes++
	f.outputs[line] = on
	return nil
}

// Watch stores the change callback.
func (f *FakePort) Watch(onChange func()) error {
	if onChange == nil {
		return errors.New("gpio: nil change handler")
	}
	f.mu.Lock()
	f.onChange = onChange
	f.mu.Unlock()
	return nil
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Output returns the last level written to line.
func (f *FakePort) Output(line Line) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[line]
}

// Outputs returns the last levels written as logic outputs.
func (f *FakePort) Outputs() logic.Outputs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return logic.Outputs{
		PowerEnable:     f.outputs[LinePowerEnable],
		ShutdownRequest: f.outputs[LineShutdownRequest],
		Indicator:       f.outputs[LineIndicator],
	}
}

// SetInputs replaces the raw input snapshot and fires the watch callback
// when anything changed.
func (f *FakePort) SetInputs(s uint8) {
	f.mu.Lock()
	changed := s != f.inputs
	f.inputs = s
	cb := f.onChange
	f.mu.Unlock()

	if changed && cb != nil {
		cb()
	}
}

// Press drives the button low (pressed).
func (f *FakePort) Press() {
	f.SetInputs(f.current() &^ (1 << logic.BitButton))
}

// Release lets the button float back high.
func (f *FakePort) Release() {
	f.SetInputs(f.current() | 1<<logic.BitButton)
}

// SetSBC drives the SBC signal line.
func (f *FakePort) SetSBC(on bool) {
	if on {
		f.SetInputs(f.current() | 1<<logic.BitSBC)
	} else {
		f.SetInputs(f.current() &^ (1 << logic.BitSBC))
	}
}

func (f *FakePort) current() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs
}
