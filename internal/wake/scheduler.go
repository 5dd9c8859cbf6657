package wake

import (
	"context"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// Scheduler parks the foreground loop. Producers are the edge detector
// (Raise) and the deferred action timer (Wake).
type Scheduler struct {
	reg  *Register
	wake chan struct{}
}

// NewScheduler creates a scheduler over reg.
func NewScheduler(reg *Register) *Scheduler {
	return &Scheduler{
		reg:  reg,
		wake: make(chan struct{}, 1),
	}
}

// Raise records ev in the register and wakes the loop. It never blocks.
func (s *Scheduler) Raise(ev logic.Event) bool {
	kept := s.reg.Put(ev)
	s.Wake()
	return kept
}

// Wake wakes the loop without an event. It never blocks; wakes that arrive
// while one is already outstanding coalesce.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// WaitForEvent returns a pending event immediately. Otherwise it blocks until
// a producer wakes it, then returns whatever the register holds, which is
// EventNone when the wake came from the timer. Callers must tolerate
// EventNone. A cancelled ctx returns its error.
func (s *Scheduler) WaitForEvent(ctx context.Context) (logic.Event, error) {
	if ev := s.reg.Take(); ev != logic.EventNone {
		return ev, nil
	}

	select {
	case <-ctx.Done():
		return logic.EventNone, ctx.Err()
	case <-s.wake:
	}
	return s.reg.Take(), nil
}

// Register returns the underlying event register.
func (s *Scheduler) Register() *Register {
	return s.reg
}
