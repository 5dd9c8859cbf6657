// Package wake holds the single-slot event register and the scheduler that
// parks the foreground loop until an edge or a timer expiry arrives.
package wake

import (
	"fmt"
	"sync/atomic"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// Policy decides what happens to an edge when an event is already pending.
type Policy int

const (
	// Overwrite replaces the pending event: the newest edge wins.
	Overwrite Policy = iota
	// Drop keeps the pending event and discards new edges until it is taken.
	Drop
)

func (p Policy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case Drop:
		return "drop"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses "overwrite" or "drop".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "overwrite":
		return Overwrite, nil
	case "drop":
		return Drop, nil
	}
	return Overwrite, fmt.Errorf("unknown event policy %q (want overwrite or drop)", s)
}

// Register is a mailbox holding at most one pending event. EventNone means
// empty. It is safe for one producer and one consumer running concurrently.
type Register struct {
	policy Policy
	slot   atomic.Uint32
}

// NewRegister creates an empty register.
func NewRegister(policy Policy) *Register {
	return &Register{policy: policy}
}

// Put stores ev and reports whether it was kept.
func (r *Register) Put(ev logic.Event) bool {
	if ev == logic.EventNone {
		return false
	}
	if r.policy == Drop {
		return r.slot.CompareAndSwap(uint32(logic.EventNone), uint32(ev))
	}
	r.slot.Store(uint32(ev))
	return true
}

// Take returns the pending event and empties the register.
func (r *Register) Take() logic.Event {
	return logic.Event(r.slot.Swap(uint32(logic.EventNone)))
}

// Pending returns the pending event without consuming it.
func (r *Register) Pending() logic.Event {
	return logic.Event(r.slot.Load())
}

// Policy returns the overwrite policy of the register.
func (r *Register) Policy() Policy {
	return r.policy
}
