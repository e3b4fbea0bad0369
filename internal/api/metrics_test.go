package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/AaronLay10/AssemblyEngine/internal/session"
)

func TestMetricsEndpoint(t *testing.T) {
	op := &fakeOperator{status: session.Status{TaskIndex: 1, TaskCount: 4, Owned: 2, Selected: 1}}
	s := newTestServer(op)
	s.cfg.Readiness.SetMQTTConnected(true)

	w := do(t, s, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"assembly_build_info{",
		"assembly_uptime_seconds{",
		"assembly_events_total{",
		`assembly_task_index{instance=`,
		"assembly_task_count{",
		"assembly_owned_nodes{",
		"assembly_selected_nodes{",
		"assembly_ws_clients{",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if !strings.Contains(body, `assembly_mqtt_connected{instance=`) {
		t.Error("missing mqtt gauge")
	}
	if !strings.Contains(body, `session="bench"} 4`) {
		t.Error("task count gauge should read the live status")
	}
}

func TestMetricsWithoutSession(t *testing.T) {
	w := do(t, newTestServer(nil), "GET", "/metrics", "")
	if strings.Contains(w.Body.String(), "assembly_task_index") {
		t.Error("session gauges registered without a session")
	}
}
