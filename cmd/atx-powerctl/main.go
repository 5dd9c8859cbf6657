// Command atx-powerctl sequences ATX power for a single-board computer: it
// watches the front-panel button and the SBC's power-good line, drives the
// supply, the shutdown request and the indicator, and publishes every
// transition to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/atx-powerctl/internal/controller"
	"github.com/sweeney/atx-powerctl/internal/diag"
	"github.com/sweeney/atx-powerctl/internal/gpio"
	"github.com/sweeney/atx-powerctl/internal/logic"
	"github.com/sweeney/atx-powerctl/internal/mqtt"
	"github.com/sweeney/atx-powerctl/internal/status"
	"github.com/sweeney/atx-powerctl/internal/timer"
	"github.com/sweeney/atx-powerctl/internal/wake"
	"github.com/sweeney/atx-powerctl/internal/web"
)

type options struct {
	backend      string
	chip         string
	pins         gpio.Pins
	serialDevice string
	baud         int
	policy       string
	debounce     time.Duration
	longPress    time.Duration
	ticks        int
	recheck      bool
	broker       string
	heartbeat    time.Duration
	httpAddr     string
	printState   bool
}

func main() {
	var opts options
	pins := gpio.DefaultPins()

	flag.StringVar(&opts.backend, "backend", "gpiocdev", "GPIO backend: gpiocdev or periph")
	flag.StringVar(&opts.chip, "chip", "gpiochip0", "GPIO chip for the gpiocdev backend")
	flag.IntVar(&pins.PowerEnable, "pin-power", pins.PowerEnable, "BCM pin driving the ATX power enable")
	flag.IntVar(&pins.Button, "pin-button", pins.Button, "BCM pin of the power button (active low)")
	flag.IntVar(&pins.Indicator, "pin-indicator", pins.Indicator, "BCM pin driving the indicator")
	flag.IntVar(&pins.Shutdown, "pin-shutdown", pins.Shutdown, "BCM pin driving the shutdown request")
	flag.IntVar(&pins.SBC, "pin-sbc", pins.SBC, "BCM pin of the SBC power-good signal (active high)")
	flag.StringVar(&opts.serialDevice, "serial", "", "Serial device for status tokens (empty for stdout)")
	flag.IntVar(&opts.baud, "baud", diag.DefaultBaud, "Serial baud rate")
	flag.StringVar(&opts.policy, "policy", wake.Overwrite.String(), "Event register policy: overwrite or drop")
	flag.DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Debounce window")
	flag.DurationVar(&opts.longPress, "long-press", 4500*time.Millisecond, "Long-press window")
	flag.IntVar(&opts.ticks, "ticks", timer.TicksPerSecond, "Timer ticks per second")
	flag.BoolVar(&opts.recheck, "recheck", true, "Re-read the button when the debounce window elapses")
	flag.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	flag.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&opts.printState, "print-state", false, "Print current input state and exit")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()
	opts.pins = pins

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts options) error {
	policy, err := wake.ParsePolicy(opts.policy)
	if err != nil {
		return err
	}
	if err := opts.pins.Validate(); err != nil {
		return fmt.Errorf("pins: %w", err)
	}

	port, err := openPort(opts.backend, opts.chip, opts.pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()

	// Print state mode
	if opts.printState {
		// Inputs are only requested once watched.
		if err := port.Watch(func() {}); err != nil {
			return fmt.Errorf("watch gpio: %w", err)
		}
		bits, err := port.ReadInputs()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(describeInputs(bits))
		return nil
	}

	sink, err := diag.OpenSerial(opts.serialDevice, opts.baud)
	if err != nil {
		return err
	}
	defer sink.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Backend:        opts.backend,
		Chip:           opts.chip,
		EventPolicy:    policy.String(),
		DebounceMs:     opts.debounce.Milliseconds(),
		LongPressMs:    opts.longPress.Milliseconds(),
		TicksPerSecond: opts.ticks,
		HeartbeatMs:    opts.heartbeat.Milliseconds(),
		Broker:         opts.broker,
		HTTPAddr:       opts.httpAddr,
		SerialDevice:   opts.serialDevice,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if opts.broker != "" {
		p := mqtt.NewRealPublisher(opts.broker)
		p.SetStatusHandler(tracker.SetMQTTConnected)
		tracker.SetMQTTConnected(p.IsConnected())
		// The power loop only enqueues; a stalled broker must not hold it up.
		q := mqtt.NewQueue(p, mqtt.DefaultQueueCapacity)
		defer q.Close()
		publisher, mqttStatus = q, p
	}

	ctrl, err := controller.New(controller.Config{
		Machine: logic.Config{
			DebounceSeconds:  opts.debounce.Seconds(),
			LongPressSeconds: opts.longPress.Seconds(),
		},
		Policy:         policy,
		TicksPerSecond: opts.ticks,
		RecheckButton:  opts.recheck,
	}, port, sink, publisher, tracker)
	if err != nil {
		return err
	}
	if err := ctrl.Start(); err != nil {
		return err
	}

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	// Start HTTP status server
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: backend=%s policy=%s debounce=%v long-press=%v broker=%s heartbeat=%v",
		opts.backend, policy, opts.debounce, opts.longPress, opts.broker, opts.heartbeat)

	var heartbeatTick <-chan time.Time
	if opts.heartbeat > 0 {
		ticker := time.NewTicker(opts.heartbeat)
		defer ticker.Stop()
		heartbeatTick = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, publisher, mqttStatus, tracker, time.Now, heartbeatTick, sigCh)
}

// powerLoop is the foreground power loop.
type powerLoop interface {
	Run(ctx context.Context) error
}

// runLoop runs the power loop until a signal arrives, publishing heartbeats
// in between. The loop is stopped before SHUTDOWN is published so the
// snapshot carries the final state.
func runLoop(loop powerLoop, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			cancel()
			if err := <-loopDone; err != nil {
				log.Printf("power loop: %v", err)
			}

			reason := signalName(s)
			if publisher == nil {
				return nil
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    reason,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case err := <-loopDone:
			if err == nil {
				err = errors.New("power loop stopped")
			}
			return err

		case t := <-heartbeat:
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
			}
			if publisher == nil {
				continue
			}

			hbEvent := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				snap := tracker.Snapshot()
				log.WithFields(log.Fields{
					"state":  snap.State,
					"uptime": snap.Uptime().Round(time.Second),
					"boots":  snap.Counts.Boots,
				}).Info("heartbeat")
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

func openPort(backend, chip string, pins gpio.Pins) (gpio.Port, error) {
	switch backend {
	case "gpiocdev":
		p, err := gpio.NewRealPort(chip, pins)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "periph":
		p, err := gpio.NewPeriphPort(pins)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func describeInputs(bits uint8) string {
	button := "RELEASED"
	if gpio.ButtonHeld(bits) {
		button = "PRESSED"
	}
	sbc := "OFF"
	if bits&(1<<logic.BitSBC) != 0 {
		sbc = "ON"
	}
	return fmt.Sprintf("Button: %s, SBC: %s", button, sbc)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
