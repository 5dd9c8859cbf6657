package diag

import (
	"bytes"
	"errors"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("uart unplugged")
}

func TestPrintln(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	s.Println("Initialized")
	s.Println("Booting")

	if got, want := buf.String(), "Initialized\nBooting\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if s.Failures() != 0 {
		t.Errorf("expected no failures, got %d", s.Failures())
	}
}

func TestPrintlnIgnoresWriteErrors(t *testing.T) {
	s := New(failingWriter{})
	s.Println("On")
	s.Println("Off")

	if s.Failures() != 2 {
		t.Errorf("expected 2 failures, got %d", s.Failures())
	}
}

func TestOpenSerialEmptyDeviceUsesStdout(t *testing.T) {
	s, err := OpenSerial("", DefaultBaud)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("closing a stdout sink must be a no-op, got %v", err)
	}
}

func TestOpenSerialMissingDevice(t *testing.T) {
	if _, err := OpenSerial("/dev/does-not-exist-ttyX", DefaultBaud); err == nil {
		t.Error("expected error for missing device")
	}
}
