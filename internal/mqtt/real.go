package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// bufferCapacity bounds the messages held while the broker is unreachable.
const bufferCapacity = 100

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed after reconnection.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu       sync.Mutex
	buf      *ringBuffer
	onStatus func(connected bool)
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is retried in the background, so a missing broker does not stop the
// controller from starting.
func NewRealPublisher(broker string) *RealPublisher {
	p := &RealPublisher{
		topic: Topic,
		buf:   newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("atx-powerctl").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			p.notifyStatus(true)
			p.replay()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
			p.notifyStatus(false)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// SetStatusHandler registers fn to be called, from paho's goroutines, when
// the connection comes up or is lost.
func (p *RealPublisher) SetStatusHandler(fn func(connected bool)) {
	p.mu.Lock()
	p.onStatus = fn
	p.mu.Unlock()
}

func (p *RealPublisher) notifyStatus(connected bool) {
	p.mu.Lock()
	fn := p.onStatus
	p.mu.Unlock()
	if fn != nil {
		fn(connected)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a power state step to the MQTT broker.
func (p *RealPublisher) Publish(step logic.Step) error {
	payload, err := FormatPayload(step)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), retained so new subscribers see the last state
	return p.send(bufferedMsg{topic: p.topic, payload: payload, qos: 0, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.IsConnected() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	p.mu.Unlock()

	if len(msgs) > 0 {
		log.Printf("mqtt: connected, replaying %d buffered messages", len(msgs))
	}
	for _, msg := range msgs {
		// paho delivers asynchronously; the handler must not wait on tokens
		p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
	p.client.Publish(TopicSystem, 1, false, reconnectedPayload(time.Now()))
}

func reconnectedPayload(now time.Time) []byte {
	data, _ := FormatSystemPayload(SystemEvent{Timestamp: now, Event: "RECONNECTED"})
	return data
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
