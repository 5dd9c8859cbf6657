// Package agent is the SBC-side half of the shutdown handshake. It holds the
// power-good line high while the SBC runs and powers the SBC off when the
// controller raises the shutdown request.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// Default BCM pins on the SBC header.
const (
	DefaultPinIndicator = 23
	DefaultPinShutdown  = 24
)

// Lines is the agent's view of its two GPIO lines.
type Lines interface {
	// SetIndicator drives the power-good line the controller watches.
	SetIndicator(on bool) error
	// WaitShutdown blocks until a rising edge on the shutdown-request line.
	// A cancelled ctx returns its error.
	WaitShutdown(ctx context.Context) error
	Close() error
}

// Runner runs an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, out)
	}
	return nil
}

// Agent waits for one shutdown request.
type Agent struct {
	lines   Lines
	command []string
	run     Runner
}

// New creates an agent that runs command when shutdown is requested.
func New(lines Lines, command []string, run Runner) (*Agent, error) {
	if len(command) == 0 {
		return nil, errors.New("agent: empty shutdown command")
	}
	if run == nil {
		run = ExecRunner
	}
	return &Agent{lines: lines, command: command, run: run}, nil
}

// Run raises the power-good line, waits for the shutdown request and runs the
// shutdown command. It returns nil when ctx is cancelled first.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.lines.SetIndicator(true); err != nil {
		return fmt.Errorf("raise indicator: %w", err)
	}
	log.Printf("waiting for shutdown signal")

	if err := a.lines.WaitShutdown(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("wait for shutdown: %w", err)
	}

	log.WithField("command", a.command).Info("shutdown requested")
	if err := a.run(context.WithoutCancel(ctx), a.command[0], a.command[1:]...); err != nil {
		return fmt.Errorf("run shutdown command: %w", err)
	}
	return nil
}
