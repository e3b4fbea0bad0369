package api

import (
	"net/http"
	"sync"
)

// Readiness tracks the dependencies a participant needs before it can
// serve. Optional dependencies report but never block readiness.
type Readiness struct {
	mu                sync.RWMutex
	sessionReady      bool
	mqttConnected     bool
	postgresConnected bool
	mqttOptional      bool
	postgresOptional  bool
}

// NewReadiness creates a tracker with nothing ready yet.
func NewReadiness(mqttOptional, postgresOptional bool) *Readiness {
	return &Readiness{mqttOptional: mqttOptional, postgresOptional: postgresOptional}
}

func (r *Readiness) SetSessionReady(v bool) {
	r.mu.Lock()
	r.sessionReady = v
	r.mu.Unlock()
}

func (r *Readiness) SetMQTTConnected(v bool) {
	r.mu.Lock()
	r.mqttConnected = v
	r.mu.Unlock()
}

func (r *Readiness) SetPostgresConnected(v bool) {
	r.mu.Lock()
	r.postgresConnected = v
	r.mu.Unlock()
}

func (r *Readiness) MQTTConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mqttConnected
}

func (r *Readiness) PostgresConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.postgresConnected
}

// Check is the state of one dependency.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Ready  bool             `json:"ready"`
	Checks map[string]Check `json:"checks"`
}

// Evaluate returns the current readiness.
func (r *Readiness) Evaluate() ReadinessResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]Check, 3)}
	add := func(name string, ok, optional bool, msg string) {
		switch {
		case ok:
			resp.Checks[name] = Check{Status: "ok"}
		case optional:
			resp.Checks[name] = Check{Status: "degraded", Message: msg}
		default:
			resp.Checks[name] = Check{Status: "fail", Message: msg}
			resp.Ready = false
		}
	}
	add("session", r.sessionReady, false, "session not started")
	add("mqtt", r.mqttConnected, r.mqttOptional, "broker not connected")
	add("postgres", r.postgresConnected, r.postgresOptional, "database not connected")
	return resp
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	resp := s.cfg.Readiness.Evaluate()
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
