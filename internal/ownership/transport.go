package ownership

import (
	"errors"
	"sync"
)

// ErrNoAuthority is returned when a message is addressed to the authority
// but none is reachable.
var ErrNoAuthority = errors.New("no authority")

// Transport moves messages between participants. Delivery is best effort
// and unordered across kinds; handlers may be called from any goroutine.
type Transport interface {
	SendToAuthority(m Message) error
	// Broadcast delivers m to every other participant.
	Broadcast(m Message) error
	Subscribe(handler func(Message)) error
}

// Hub connects in-process participants. Delivery is synchronous.
type Hub struct {
	mu        sync.Mutex
	members   []*HubTransport
	authority *HubTransport

	// Drop, when set, discards every message it returns true for.
	Drop func(to *HubTransport, m Message) bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Join adds a participant endpoint. At most one endpoint should be the authority.
func (h *Hub) Join(authority bool) *HubTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := &HubTransport{hub: h}
	h.members = append(h.members, t)
	if authority {
		h.authority = t
	}
	return t
}

// HubTransport is one endpoint of a Hub.
type HubTransport struct {
	hub      *Hub
	mu       sync.Mutex
	handlers []func(Message)
}

// SendToAuthority implements Transport.
func (t *HubTransport) SendToAuthority(m Message) error {
	t.hub.mu.Lock()
	a := t.hub.authority
	t.hub.mu.Unlock()
	if a == nil {
		return ErrNoAuthority
	}
	t.hub.deliver(a, m)
	return nil
}

// Broadcast implements Transport.
func (t *HubTransport) Broadcast(m Message) error {
	t.hub.mu.Lock()
	members := append([]*HubTransport(nil), t.hub.members...)
	t.hub.mu.Unlock()
	for _, other := range members {
		if other != t {
			t.hub.deliver(other, m)
		}
	}
	return nil
}

// Subscribe implements Transport.
func (t *HubTransport) Subscribe(handler func(Message)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
	return nil
}

func (h *Hub) deliver(to *HubTransport, m Message) {
	if h.Drop != nil && h.Drop(to, m) {
		return
	}
	to.mu.Lock()
	handlers := append([]func(Message){}, to.handlers...)
	to.mu.Unlock()
	for _, fn := range handlers {
		fn(m)
	}
}
