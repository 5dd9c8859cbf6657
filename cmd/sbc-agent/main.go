// Command sbc-agent runs on the single-board computer. It holds the
// power-good line high and powers the board off when the controller raises
// the shutdown request.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/atx-powerctl/internal/agent"
)

func main() {
	chip := flag.String("chip", "gpiochip0", "GPIO chip")
	pinIndicator := flag.Int("pin-indicator", agent.DefaultPinIndicator, "BCM pin driving the power-good line")
	pinShutdown := flag.Int("pin-shutdown", agent.DefaultPinShutdown, "BCM pin of the shutdown request")
	command := flag.String("command", "poweroff", "Command run when shutdown is requested")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.SetLevel(level)

	if err := run(*chip, *pinIndicator, *pinShutdown, parseCommand(*command)); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(chip string, pinIndicator, pinShutdown int, command []string) error {
	if pinIndicator == pinShutdown {
		return errors.New("indicator and shutdown pins must differ")
	}

	lines, err := agent.NewRealLines(chip, pinIndicator, pinShutdown)
	if err != nil {
		return err
	}
	defer lines.Close()

	a, err := agent.New(lines, command, agent.ExecRunner)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("started: chip=%s indicator=%d shutdown=%d command=%q", chip, pinIndicator, pinShutdown, command)
	return a.Run(ctx)
}

// parseCommand splits a command line on whitespace.
func parseCommand(s string) []string {
	return strings.Fields(s)
}
