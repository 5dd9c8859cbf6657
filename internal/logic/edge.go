package logic

import "sync"

// Bit positions inside a pin snapshot.
const (
	BitButton uint8 = 1
	BitSBC    uint8 = 4
)

// IdleSnapshot is the snapshot before any edge was seen: the button is pulled
// up (released) and the SBC reports off.
const IdleSnapshot uint8 = 1 << BitButton

// EdgeDetector classifies pin changes into events.
// Every method may be called from several watcher goroutines. Handlers that
// read the pins themselves must use SampleFrom so the read and the compare
// happen under one lock.
type EdgeDetector struct {
	mu       sync.Mutex
	snapshot uint8
}

// NewEdgeDetector creates a detector whose previous sample is initial.
func NewEdgeDetector(initial uint8) *EdgeDetector {
	return &EdgeDetector{snapshot: initial}
}

// Sample compares current with the previous snapshot, stores current and
// returns the events for every watched bit that changed, button first.
// The button is active low, the SBC signal active high.
func (d *EdgeDetector) Sample(current uint8) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleLocked(current)
}

// SampleFrom reads the pins with read and samples the result while holding
// the detector lock. A handler that stalls between its read and its sample
// cannot then overwrite a newer snapshot with a stale one. On a read error
// the snapshot is left untouched.
func (d *EdgeDetector) SampleFrom(read func() (uint8, error)) ([]Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, err := read()
	if err != nil {
		return nil, err
	}
	return d.sampleLocked(current), nil
}

func (d *EdgeDetector) sampleLocked(current uint8) []Event {
	changed := current ^ d.snapshot
	d.snapshot = current

	var events []Event
	if isSet(changed, BitButton) {
		if isSet(current, BitButton) {
			events = append(events, EventButtonReleased)
		} else {
			events = append(events, EventButtonPressed)
		}
	}
	if isSet(changed, BitSBC) {
		if isSet(current, BitSBC) {
			events = append(events, EventSBCOn)
		} else {
			events = append(events, EventSBCOff)
		}
	}
	return events
}

// Snapshot returns the last sampled pin values.
func (d *EdgeDetector) Snapshot() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

func isSet(v, bit uint8) bool {
	return v&(1<<bit) != 0
}
