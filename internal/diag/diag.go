// Package diag writes the human-readable status lines of the controller to a
// one-directional text stream, usually a UART.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// DefaultBaud is the line rate of the status UART.
const DefaultBaud = 9600

// Sink writes one status token per line. Writes are fire and forget: the
// first failure is logged, later ones are only counted.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	failed int
}

// New creates a sink over w.
func New(w io.Writer) *Sink {
	return &Sink{w: w}
}

// OpenSerial opens device at baud and returns a sink over it. An empty
// device writes to stdout instead.
func OpenSerial(device string, baud int) (*Sink, error) {
	if device == "" {
		return New(os.Stdout), nil
	}
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return &Sink{w: port, closer: port}, nil
}

// Println writes token followed by a newline.
func (s *Sink) Println(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, token+"\n"); err != nil {
		if s.failed == 0 {
			log.Printf("diag: write failed: %v", err)
		}
		s.failed++
	}
}

// Failures returns the number of failed writes.
func (s *Sink) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Close closes the underlying port, if the sink owns one.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
