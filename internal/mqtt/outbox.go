package mqtt

import (
	"context"
	"errors"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
)

// DefaultOutboxSize holds a few seconds of sync traffic.
const DefaultOutboxSize = 256

// ErrOutboxFull is returned by Outbox.Publish when the sender cannot keep up.
var ErrOutboxFull = errors.New("mqtt outbox full")

type outbound struct {
	topic   string
	payload []byte
}

// Outbox queues publishes for a Broker and sends them in order from Run.
// Publish never waits for the broker, so it is safe on the tick goroutine.
type Outbox struct {
	broker Broker
	queue  chan outbound

	// lastErr is the last reported send failure; touched only by Run.
	lastErr string
}

// NewOutbox wraps b with a queue of size messages.
func NewOutbox(b Broker, size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{broker: b, queue: make(chan outbound, size)}
}

// Subscribe passes through to the broker.
func (o *Outbox) Subscribe(topic string, handler paho.MessageHandler) error {
	return o.broker.Subscribe(topic, handler)
}

// Publish queues payload for topic. It fails with ErrOutboxFull instead of
// blocking.
func (o *Outbox) Publish(topic string, payload []byte) error {
	select {
	case o.queue <- outbound{topic: topic, payload: payload}:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Pending returns the number of queued messages.
func (o *Outbox) Pending() int {
	return len(o.queue)
}

// Run sends queued messages until ctx is done. Failed messages are dropped;
// a failure is reported once until a send succeeds or the error changes.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-o.queue:
			o.send(m)
		}
	}
}

func (o *Outbox) send(m outbound) {
	err := o.broker.Publish(m.topic, m.payload)
	if err == nil {
		o.lastErr = ""
		return
	}
	if err.Error() == o.lastErr {
		return
	}
	o.lastErr = err.Error()
	events.Emit("warn", "sync.dropped", "publish failed", map[string]interface{}{
		"topic": m.topic,
		"error": err.Error(),
	})
}
