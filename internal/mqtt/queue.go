package mqtt

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// DefaultQueueCapacity bounds the steps waiting for a slow broker.
const DefaultQueueCapacity = 64

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("mqtt: queue closed")

// Queue hands steps to a worker goroutine so Publish never blocks the power
// loop. When the worker falls behind and the queue is full, the oldest
// waiting step is dropped. System events go straight to the inner publisher.
type Queue struct {
	inner Publisher
	steps chan logic.Step
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewQueue starts the worker that drains steps into inner.
func NewQueue(inner Publisher, capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{
		inner: inner,
		steps: make(chan logic.Step, capacity),
		done:  make(chan struct{}),
	}
	go q.drain()
	return q
}

// Publish enqueues step without waiting for the broker.
func (q *Queue) Publish(step logic.Step) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	for {
		select {
		case q.steps <- step:
			return nil
		default:
		}
		select {
		case <-q.steps:
			if q.dropped == 0 {
				log.Printf("mqtt: step queue full (%d steps), dropping oldest", cap(q.steps))
			}
			q.dropped++
		default:
		}
	}
}

// PublishSystem forwards event to the inner publisher.
func (q *Queue) PublishSystem(event SystemEvent) error {
	return q.inner.PublishSystem(event)
}

// Dropped returns how many steps were discarded because the queue was full.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting steps, waits for the queued ones to be handed to the
// inner publisher and closes it.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.steps)
	}
	q.mu.Unlock()

	<-q.done
	return q.inner.Close()
}

func (q *Queue) drain() {
	defer close(q.done)
	for step := range q.steps {
		if err := q.inner.Publish(step); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}
