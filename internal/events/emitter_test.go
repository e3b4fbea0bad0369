package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type recordingSink struct {
	err   error
	calls int
	names []string
	runs  []string
}

func (s *recordingSink) Append(_ time.Time, _, event, _ string, _ map[string]interface{}, runID string) error {
	s.calls++
	s.names = append(s.names, event)
	s.runs = append(s.runs, runID)
	return s.err
}

func TestEmitRejectsUnknownEvent(t *testing.T) {
	if _, err := Emit("info", "puzzle.solved", "", nil); err == nil {
		t.Fatal("expected error for unregistered event")
	}
}

func TestEmitEncodesLogLine(t *testing.T) {
	b, err := Emit("info", "task.finished", "done", map[string]interface{}{"task": "attach cover"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(b, &line); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if line["event"] != "task.finished" || line["msg"] != "done" || line["level"] != "info" {
		t.Errorf("unexpected line %v", line)
	}
	if _, err := time.Parse(time.RFC3339Nano, line["ts"].(string)); err != nil {
		t.Errorf("bad timestamp: %v", err)
	}
}

func TestEmitPersistsWithRunID(t *testing.T) {
	s := &recordingSink{}
	SetSink(s)
	SetRunID("run-1")
	defer SetSink(nil)
	defer SetRunID("")

	before := TotalCount()
	Emit("info", "task.advanced", "", map[string]interface{}{"index": 1})

	if s.calls != 1 || s.names[0] != "task.advanced" || s.runs[0] != "run-1" {
		t.Errorf("unexpected sink calls %+v", s)
	}
	if TotalCount() != before+1 {
		t.Errorf("total count not incremented")
	}
}

func TestSinkFailureReportedOnce(t *testing.T) {
	Clear()
	s := &recordingSink{err: errors.New("connection refused")}
	SetSink(s)
	defer SetSink(nil)

	Emit("info", "node.selected", "", nil)
	Emit("info", "node.released", "", nil)

	errs := 0
	for _, e := range Snapshot() {
		if e.Name == "system.error" {
			errs++
		}
	}
	if errs != 1 {
		t.Errorf("expected one system.error, got %d", errs)
	}
	if s.calls != 2 {
		t.Errorf("error report must not be appended to the failing sink, calls %d", s.calls)
	}
}
