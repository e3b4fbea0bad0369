// Package mqtt carries ownership sync messages over an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
)

const (
	qos            = 1
	requestTimeout = 10 * time.Second
)

// Client wraps the Paho MQTT client.
type Client struct {
	client    paho.Client
	brokerURL string
	mu        sync.Mutex

	hookMu    sync.Mutex
	onConnect []func()
}

// NewClient creates a client for brokerURL but does not connect. The
// client reconnects on its own; OnConnect hooks run after every
// (re)connect.
func NewClient(brokerURL, clientID string) *Client {
	c := &Client{brokerURL: brokerURL}
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(func(paho.Client) { c.connected() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			events.Emit("warn", "sync.disconnected", "broker connection lost", map[string]interface{}{
				"broker": brokerURL,
				"error":  err.Error(),
			})
		})
	c.client = paho.NewClient(opts)
	return c
}

// OnConnect registers fn to run after every successful connect.
func (c *Client) OnConnect(fn func()) {
	c.hookMu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.hookMu.Unlock()
}

func (c *Client) connected() {
	events.Emit("info", "sync.connected", "", map[string]interface{}{"broker": c.brokerURL})
	c.hookMu.Lock()
	hooks := append([]func(){}, c.onConnect...)
	c.hookMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Connect attempts to connect to the broker without blocking indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(requestTimeout) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, handler)
	if !token.WaitTimeout(requestTimeout) {
		return &TimeoutError{Op: "subscribe", Topic: topic}
	}
	return token.Error()
}

// Publish sends payload on topic and waits up to requestTimeout for the
// broker to accept it. It fails fast while the connection is down. Callers
// that must not wait go through an Outbox.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(requestTimeout) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Disconnect(1000)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// TimeoutError indicates a subscribe or publish timed out.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	return "mqtt " + e.Op + " timeout: " + e.Topic
}

// ConnectWithRetry connects, logging instead of failing. The paho client
// keeps retrying in the background, so false only means "not yet".
func (c *Client) ConnectWithRetry() bool {
	if err := c.Connect(); err != nil {
		log.Printf("mqtt: failed to connect to %s: %v", c.brokerURL, err)
		return false
	}
	log.Printf("mqtt: connected to %s", c.brokerURL)
	return true
}

// WaitConnected blocks until the client is connected or ctx is done. Call
// it after Connect; the paho client keeps retrying in the background.
func (c *Client) WaitConnected(ctx context.Context) error {
	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for !c.client.IsConnectionOpen() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
