package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
)

// stallBroker blocks every publish until release is closed.
type stallBroker struct {
	release chan struct{}
	err     error

	mu     sync.Mutex
	topics []string
}

func (b *stallBroker) Subscribe(string, paho.MessageHandler) error { return nil }

func (b *stallBroker) Publish(topic string, _ []byte) error {
	<-b.release
	b.mu.Lock()
	b.topics = append(b.topics, topic)
	b.mu.Unlock()
	return b.err
}

func (b *stallBroker) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.topics...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOutboxPublishDoesNotWait(t *testing.T) {
	b := &stallBroker{release: make(chan struct{})}
	o := NewOutbox(b, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Publish("a", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := o.Publish("b", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := o.Publish("c", nil); !errors.Is(err, ErrOutboxFull) {
		t.Fatalf("expected ErrOutboxFull, got %v", err)
	}

	go o.Run(ctx)
	close(b.release)
	waitFor(t, func() bool { return len(b.sent()) == 2 })
	if got := b.sent(); got[0] != "a" || got[1] != "b" {
		t.Errorf("messages out of order: %v", got)
	}
	if o.Pending() != 0 {
		t.Errorf("queue should be drained, %d left", o.Pending())
	}
}

func TestOutboxReportsFailureOnce(t *testing.T) {
	release := make(chan struct{})
	close(release)
	b := &stallBroker{release: release, err: ErrNotConnected}
	o := NewOutbox(b, 0)
	events.Clear()

	for i := 0; i < 3; i++ {
		o.send(outbound{topic: "t"})
	}
	b.err = nil
	o.send(outbound{topic: "t"})
	b.err = ErrNotConnected
	o.send(outbound{topic: "t"})

	dropped := 0
	for _, e := range events.Snapshot() {
		if e.Name == "sync.dropped" {
			dropped++
		}
	}
	if dropped != 2 {
		t.Errorf("expected one report per outage, got %d", dropped)
	}
}

func TestOutboxSubscribePassesThrough(t *testing.T) {
	b := newMockBroker()
	o := NewOutbox(b, 0)
	if err := o.Subscribe("x", func(paho.Client, paho.Message) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if b.subscribes != 1 {
		t.Errorf("expected broker subscribe, got %d", b.subscribes)
	}
}
