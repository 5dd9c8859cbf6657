// Package controller runs the foreground power loop: it parks on the wake
// scheduler, feeds events and expired timer actions to the state machine,
// and fans every resulting step out to the outputs, the diagnostic sink,
// MQTT and the status tracker.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/atx-powerctl/internal/gpio"
	"github.com/sweeney/atx-powerctl/internal/logic"
	"github.com/sweeney/atx-powerctl/internal/mqtt"
	"github.com/sweeney/atx-powerctl/internal/status"
	"github.com/sweeney/atx-powerctl/internal/timer"
	"github.com/sweeney/atx-powerctl/internal/wake"
)

// Printer is the diagnostic sink.
type Printer interface {
	Println(token string)
}

// Config holds the controller settings.
type Config struct {
	Machine        logic.Config
	Policy         wake.Policy
	TicksPerSecond int
	// RecheckButton re-reads the button when the debounce window elapses.
	RecheckButton bool
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Machine:        logic.DefaultConfig(),
		Policy:         wake.Overwrite,
		TicksPerSecond: timer.TicksPerSecond,
		RecheckButton:  true,
	}
}

// Controller owns every component of the power loop.
type Controller struct {
	port      gpio.Port
	edge      *logic.EdgeDetector
	sched     *wake.Scheduler
	timer     *timer.Timer
	machine   *logic.Machine
	sink      Printer
	publisher mqtt.Publisher
	tracker   *status.Tracker
	now       func() time.Time
}

// New wires a controller. publisher and tracker may be nil. publisher is
// called from the power loop and must not block; wrap a broker client in
// mqtt.Queue.
func New(cfg Config, port gpio.Port, sink Printer, publisher mqtt.Publisher, tracker *status.Tracker) (*Controller, error) {
	if err := cfg.Machine.Validate(); err != nil {
		return nil, fmt.Errorf("machine config: %w", err)
	}

	sched := wake.NewScheduler(wake.NewRegister(cfg.Policy))
	tm, err := timer.New(cfg.TicksPerSecond, sched.Wake)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		port:      port,
		edge:      logic.NewEdgeDetector(logic.IdleSnapshot),
		sched:     sched,
		timer:     tm,
		machine:   logic.NewMachine(cfg.Machine, tm),
		sink:      sink,
		publisher: publisher,
		tracker:   tracker,
		now:       time.Now,
	}
	if cfg.RecheckButton {
		c.machine.SetButtonProbe(c.buttonHeld)
	}
	return c, nil
}

// Start drives every output low, arms the pin-change source and reports
// Initialized.
func (c *Controller) Start() error {
	if err := gpio.Apply(c.port, logic.Outputs{}); err != nil {
		return fmt.Errorf("clear outputs: %w", err)
	}
	if err := c.port.Watch(c.onPinChange); err != nil {
		return fmt.Errorf("watch inputs: %w", err)
	}
	c.sink.Println(logic.StatusInitialized)
	log.Printf("initialized: state=%s", c.machine.State())
	return nil
}

// Run runs the tick source and the power loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	timerDone := make(chan struct{})
	go func() {
		defer close(timerDone)
		c.timer.Run(ctx)
	}()
	defer func() { <-timerDone }()

	for {
		if err := c.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// Step waits for one wake and processes it. The event is handled before any
// expired action, so a release that cancels the timer also discards a
// long-press that expired in the meantime.
func (c *Controller) Step(ctx context.Context) error {
	ev, err := c.sched.WaitForEvent(ctx)
	if err != nil {
		return err
	}

	now := c.now()
	var steps []logic.Step
	if ev != logic.EventNone {
		log.WithFields(log.Fields{"event": ev, "state": c.machine.State()}).Debug("event")
		steps = append(steps, c.machine.Handle(ev, now)...)
	}
	if a, ok := c.timer.TakeFired(); ok {
		log.WithFields(log.Fields{"action": a, "state": c.machine.State()}).Debug("timer fired")
		steps = append(steps, c.machine.Fire(a, now)...)
	}

	for _, s := range steps {
		c.report(s)
	}
	if c.tracker != nil {
		c.tracker.Update(c.machine.State(), c.machine.Outputs(), c.machine.Counts())
	}
	return nil
}

func (c *Controller) report(s logic.Step) {
	c.sink.Println(s.Status)

	log.WithFields(log.Fields{
		"cause": s.Cause,
		"from":  s.From,
		"to":    s.To,
		"power": s.Outputs.PowerEnable,
		"sdreq": s.Outputs.ShutdownRequest,
	}).Info(s.Status)

	if err := gpio.Apply(c.port, s.Outputs); err != nil {
		log.Printf("output error: %v", err)
	}
	if c.publisher != nil {
		if err := c.publisher.Publish(s); err != nil {
			log.Printf("publish error: %v", err)
			// Don't stop the loop on publish failure
		}
	}
	if c.tracker != nil {
		c.tracker.RecordStep(s)
	}
}

// onPinChange is the pin-change interrupt: it samples the inputs and raises
// one event per changed watched pin. Watchers run one goroutine per line, so
// the read and the compare share the detector lock.
func (c *Controller) onPinChange() {
	events, err := c.edge.SampleFrom(c.port.ReadInputs)
	if err != nil {
		log.Printf("gpio read error: %v", err)
		return
	}
	for _, ev := range events {
		if !c.sched.Raise(ev) {
			log.WithField("event", ev).Debug("event dropped, register busy")
		}
	}
}

func (c *Controller) buttonHeld() bool {
	bits, err := c.port.ReadInputs()
	if err != nil {
		log.Printf("gpio read error: %v", err)
		return false
	}
	return gpio.ButtonHeld(bits)
}

// Machine returns the state machine. Only the loop's goroutine may call its
// methods while Run is active.
func (c *Controller) Machine() *logic.Machine {
	return c.machine
}

// Timer returns the deferred action timer.
func (c *Controller) Timer() *timer.Timer {
	return c.timer
}

// Scheduler returns the wake scheduler.
func (c *Controller) Scheduler() *wake.Scheduler {
	return c.sched
}
