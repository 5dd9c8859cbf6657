package mqtt

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// gatedPublisher blocks every Publish until the gate is closed.
type gatedPublisher struct {
	*FakePublisher
	started chan string
	gate    chan struct{}
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{
		FakePublisher: NewFakePublisher(),
		started:       make(chan string, 16),
		gate:          make(chan struct{}),
	}
}

func (g *gatedPublisher) Publish(step logic.Step) error {
	g.started <- step.Cause
	<-g.gate
	return g.FakePublisher.Publish(step)
}

func stepFor(cause string) logic.Step {
	return logic.Step{Cause: cause, From: logic.StateOff, To: logic.StateOff, Status: logic.StatusOff}
}

func causes(steps []logic.Step) []string {
	var out []string
	for _, s := range steps {
		out = append(out, s.Cause)
	}
	return out
}

func TestQueuePublishDoesNotWaitForBroker(t *testing.T) {
	inner := newGatedPublisher()
	q := NewQueue(inner, 4)

	start := time.Now()
	if err := q.Publish(stepFor("BUTTON_PRESSED")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Errorf("Publish blocked for %v", d)
	}

	<-inner.started
	close(inner.gate)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := causes(inner.PublishedSteps()); !reflect.DeepEqual(got, []string{"BUTTON_PRESSED"}) {
		t.Errorf("published: got %v", got)
	}
}

func TestQueueKeepsOrder(t *testing.T) {
	inner := NewFakePublisher()
	q := NewQueue(inner, 8)

	want := []string{"BUTTON_PRESSED", "BUTTON_RELEASED", "SBC_ON", "SBC_OFF"}
	for _, ev := range want {
		q.Publish(stepFor(ev))
	}
	q.Close()

	if got := causes(inner.PublishedSteps()); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if !inner.Closed {
		t.Error("Close must close the inner publisher")
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	inner := newGatedPublisher()
	q := NewQueue(inner, 2)

	// The worker takes the first step and stalls on it.
	q.Publish(stepFor("BUTTON_PRESSED"))
	<-inner.started

	q.Publish(stepFor("BUTTON_RELEASED"))
	q.Publish(stepFor("SBC_ON"))
	q.Publish(stepFor("SBC_OFF"))
	if q.Dropped() != 1 {
		t.Errorf("dropped: got %d, want 1", q.Dropped())
	}

	close(inner.gate)
	q.Close()

	want := []string{"BUTTON_PRESSED", "SBC_ON", "SBC_OFF"}
	if got := causes(inner.PublishedSteps()); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestQueuePublishAfterClose(t *testing.T) {
	q := NewQueue(NewFakePublisher(), 1)
	q.Close()

	if err := q.Publish(stepFor("SBC_ON")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("got %v, want ErrQueueClosed", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestQueueInnerErrorKeepsDraining(t *testing.T) {
	inner := NewFakePublisher()
	inner.PublishError = errors.New("broker down")
	q := NewQueue(inner, 4)

	q.Publish(stepFor("SBC_ON"))
	q.Publish(stepFor("SBC_OFF"))
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(inner.PublishedSteps()) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestQueueForwardsSystemEvents(t *testing.T) {
	inner := NewFakePublisher()
	q := NewQueue(inner, 1)
	defer q.Close()

	if err := q.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}
	if got := inner.PublishedSystemEvents(); len(got) != 1 || got[0].Event != "STARTUP" {
		t.Errorf("system events: got %+v", got)
	}
}
