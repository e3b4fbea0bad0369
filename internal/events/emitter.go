// Package events records named, structured session events. Every emitted
// event lands in an in-memory ring buffer, is fanned out to live
// subscribers, and is appended to the configured sink when one is set.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Sink persists emitted events. postgres.Client implements it.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, runID string) error
}

var buffer = NewRingBuffer(256)

var (
	sinkMu          sync.RWMutex
	sink            Sink
	runID           string
	sinkErrorLogged bool
)

// SetSink sets where events are persisted. A nil sink disables persistence.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrorLogged = false
	sinkMu.Unlock()
}

// SetRunID tags every persisted event with the id of the running process.
func SetRunID(id string) {
	sinkMu.Lock()
	runID = id
	sinkMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an event and returns its JSON encoding.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	broadcast(e)
	persist(ts, e)

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return b, nil
}

func persist(ts time.Time, e Event) {
	sinkMu.RLock()
	s, run := sink, runID
	sinkMu.RUnlock()
	if s == nil {
		return
	}
	err := s.Append(ts, e.Level, e.Name, e.Message, e.Fields, run)
	if err == nil {
		return
	}

	// Report the first failure only. The report bypasses the sink so a
	// broken database cannot recurse back into persist.
	sinkMu.Lock()
	first := !sinkErrorLogged
	sinkErrorLogged = true
	sinkMu.Unlock()
	if !first {
		return
	}
	report := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "event append failed",
		Fields:    map[string]interface{}{"error": err.Error()},
	}
	buffer.Add(report)
	broadcast(report)
}

// Snapshot returns the buffered events, oldest first.
func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() uint64 {
	return buffer.Total()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
