package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

const (
	AlertMQTTDisconnected    = "mqtt_disconnected"
	AlertPostgresUnavailable = "postgres_unavailable"
)

// AlertPayload is the JSON body posted to the webhook.
type AlertPayload struct {
	Session   string                 `json:"session"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AlertConfig configures an Alerter.
type AlertConfig struct {
	Session                 string
	WebhookURL              string
	MQTTDisconnectDelay     time.Duration
	PostgresDisconnectDelay time.Duration
}

// AlertConfigFromEnv reads ASSEMBLY_ALERT_WEBHOOK_URL,
// ASSEMBLY_MQTT_ALERT_DELAY and ASSEMBLY_POSTGRES_ALERT_DELAY.
func AlertConfigFromEnv(session string) AlertConfig {
	cfg := AlertConfig{
		Session:                 session,
		WebhookURL:              os.Getenv("ASSEMBLY_ALERT_WEBHOOK_URL"),
		MQTTDisconnectDelay:     30 * time.Second,
		PostgresDisconnectDelay: 5 * time.Second,
	}
	if d, err := time.ParseDuration(os.Getenv("ASSEMBLY_MQTT_ALERT_DELAY")); err == nil {
		cfg.MQTTDisconnectDelay = d
	}
	if d, err := time.ParseDuration(os.Getenv("ASSEMBLY_POSTGRES_ALERT_DELAY")); err == nil {
		cfg.PostgresDisconnectDelay = d
	}
	return cfg
}

// outage tracks how long one dependency has been down.
type outage struct {
	event    string
	severity string
	what     string
	delay    time.Duration

	connected bool
	since     time.Time
	alerted   bool
}

// observe records the connection state at now and returns the alert to
// send, if any.
func (o *outage) observe(connected bool, now time.Time) *AlertPayload {
	if connected {
		recovered := !o.connected && o.alerted
		o.connected, o.since, o.alerted = true, time.Time{}, false
		if recovered {
			return &AlertPayload{Event: o.event, Severity: SeverityInfo, Message: o.what + " restored",
				Details: map[string]interface{}{"recovered_at": now.UTC().Format(time.RFC3339)}}
		}
		return nil
	}

	if o.connected {
		o.since = now
	}
	o.connected = false
	if o.alerted || now.Sub(o.since) < o.delay {
		return nil
	}
	o.alerted = true
	return &AlertPayload{Event: o.event, Severity: o.severity, Message: o.what + " unavailable",
		Details: map[string]interface{}{
			"disconnected_since":   o.since.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(now.Sub(o.since).Seconds()),
		}}
}

// Alerter posts a webhook when a dependency stays disconnected longer than
// its delay, and again when it recovers. Without a webhook URL alerts are
// logged.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client

	mu       sync.Mutex
	mqtt     outage
	postgres outage
}

func NewAlerter(cfg AlertConfig) *Alerter {
	return &Alerter{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		mqtt:     outage{event: AlertMQTTDisconnected, severity: SeverityWarning, what: "MQTT broker", delay: cfg.MQTTDisconnectDelay, connected: true},
		postgres: outage{event: AlertPostgresUnavailable, severity: SeverityCritical, what: "PostgreSQL", delay: cfg.PostgresDisconnectDelay, connected: true},
	}
}

// Check observes both dependencies and sends any resulting alerts.
func (a *Alerter) Check(mqttConnected, postgresConnected bool) {
	now := time.Now()
	a.mu.Lock()
	alerts := []*AlertPayload{a.mqtt.observe(mqttConnected, now), a.postgres.observe(postgresConnected, now)}
	a.mu.Unlock()

	for _, p := range alerts {
		if p != nil {
			a.send(*p)
		}
	}
}

// Run checks r every interval until ctx is done. Only dependencies that
// are not optional are watched.
func (a *Alerter) Run(ctx context.Context, r *Readiness, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.mu.RLock()
			mqttOK := r.mqttConnected || r.mqttOptional
			pgOK := r.postgresConnected || r.postgresOptional
			r.mu.RUnlock()
			a.Check(mqttOK, pgOK)
		}
	}
}

func (a *Alerter) send(p AlertPayload) {
	p.Session = a.cfg.Session
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if a.cfg.WebhookURL == "" {
		log.Printf("[ALERT] %s severity=%s msg=%q details=%v", p.Event, p.Severity, p.Message, p.Details)
		return
	}
	go a.post(p)
}

func (a *Alerter) post(p AlertPayload) {
	body, err := json.Marshal(p)
	if err != nil {
		log.Printf("alert: failed to marshal payload: %v", err)
		return
	}
	resp, err := a.client.Post(a.cfg.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("alert: webhook POST failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("alert: webhook returned status %d", resp.StatusCode)
	}
}
