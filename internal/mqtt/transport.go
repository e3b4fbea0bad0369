package mqtt

import (
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
	"github.com/AaronLay10/AssemblyEngine/internal/ownership"
)

// Broker is the part of Client the transport needs.
type Broker interface {
	Subscribe(topic string, handler paho.MessageHandler) error
	Publish(topic string, payload []byte) error
}

// AuthorityTopic carries messages addressed to the session authority.
func AuthorityTopic(session string) string {
	return "assembly/" + session + "/authority"
}

// BroadcastTopic carries messages for every participant.
func BroadcastTopic(session string) string {
	return "assembly/" + session + "/broadcast"
}

// OwnershipTransport implements ownership.Transport over MQTT. The
// authority listens on both session topics; peers only on the broadcast
// topic. A participant never receives its own messages back.
type OwnershipTransport struct {
	broker    Broker
	session   string
	self      int
	authority bool

	mu         sync.RWMutex
	handlers   []func(ownership.Message)
	subscribed map[string]bool
}

// NewOwnershipTransport creates the transport of participant self.
func NewOwnershipTransport(b Broker, session string, self int, authority bool) *OwnershipTransport {
	return &OwnershipTransport{
		broker:     b,
		session:    session,
		self:       self,
		authority:  authority,
		subscribed: make(map[string]bool),
	}
}

// SendToAuthority implements ownership.Transport.
func (t *OwnershipTransport) SendToAuthority(m ownership.Message) error {
	return t.publish(AuthorityTopic(t.session), m)
}

// Broadcast implements ownership.Transport.
func (t *OwnershipTransport) Broadcast(m ownership.Message) error {
	return t.publish(BroadcastTopic(t.session), m)
}

func (t *OwnershipTransport) publish(topic string, m ownership.Message) error {
	payload, err := ownership.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", m.Kind, err)
	}
	return t.broker.Publish(topic, payload)
}

// Subscribe implements ownership.Transport. The session topics are
// subscribed on the first call.
func (t *OwnershipTransport) Subscribe(handler func(ownership.Message)) error {
	t.mu.Lock()
	t.handlers = append(t.handlers, handler)
	t.mu.Unlock()
	return t.subscribeTopics()
}

// Resubscribe subscribes the session topics again. Call it after a
// reconnect, when the broker has forgotten the subscriptions.
func (t *OwnershipTransport) Resubscribe() error {
	t.mu.Lock()
	t.subscribed = make(map[string]bool)
	t.mu.Unlock()
	return t.subscribeTopics()
}

func (t *OwnershipTransport) topics() []string {
	if t.authority {
		return []string{AuthorityTopic(t.session), BroadcastTopic(t.session)}
	}
	return []string{BroadcastTopic(t.session)}
}

func (t *OwnershipTransport) subscribeTopics() error {
	for _, topic := range t.topics() {
		t.mu.RLock()
		done := t.subscribed[topic]
		t.mu.RUnlock()
		if done {
			continue
		}
		if err := t.broker.Subscribe(topic, t.handle); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		t.mu.Lock()
		t.subscribed[topic] = true
		t.mu.Unlock()
	}
	return nil
}

// IsSubscribed reports whether topic is currently subscribed.
func (t *OwnershipTransport) IsSubscribed(topic string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.subscribed[topic]
}

func (t *OwnershipTransport) handle(_ paho.Client, msg paho.Message) {
	m, err := ownership.Decode(msg.Payload())
	if err != nil {
		events.Emit("warn", "sync.dropped", "undecodable message", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}
	if m.Sender == t.self {
		return
	}

	t.mu.RLock()
	handlers := append([]func(ownership.Message){}, t.handlers...)
	t.mu.RUnlock()
	for _, fn := range handlers {
		fn(m)
	}
}
