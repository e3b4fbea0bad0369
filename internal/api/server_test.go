package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
	"github.com/AaronLay10/AssemblyEngine/internal/session"
	"github.com/AaronLay10/AssemblyEngine/internal/storage/postgres"
)

type lockCall struct {
	node              int
	locked, recursive bool
}

type fakeOperator struct {
	mu         sync.Mutex
	status     session.Status
	resets     int
	advances   int
	unlocked   []int
	locks      []lockCall
	poseResets []int
	fits       []float64
	silhouette []bool
	err        error
}

func (f *fakeOperator) Status() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeOperator) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.err
}

func (f *fakeOperator) Advance(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advances++
	return f.err
}

func (f *fakeOperator) Unlock(_ context.Context, node int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.unlocked = append(f.unlocked, node)
	return nil
}

func (f *fakeOperator) Lock(_ context.Context, node int, locked, recursive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.locks = append(f.locks, lockCall{node, locked, recursive})
	return nil
}

func (f *fakeOperator) ResetPose(_ context.Context, node int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.poseResets = append(f.poseResets, node)
	return nil
}

func (f *fakeOperator) FitToScale(_ context.Context, target float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.fits = append(f.fits, target)
	return nil
}

func (f *fakeOperator) ShowSilhouette(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silhouette = append(f.silhouette, on)
	return f.err
}

type fakeHistory struct {
	rows  []postgres.EventRow
	limit int
	err   error
}

func (h *fakeHistory) Query(limit int) ([]postgres.EventRow, error) {
	h.limit = limit
	return h.rows, h.err
}

func newTestServer(op Operator) *Server {
	r := NewReadiness(false, false)
	return New(Config{Name: "bench", Operator: op, Readiness: r})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := do(t, newTestServer(nil), "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestReadyEndpoint(t *testing.T) {
	s := newTestServer(nil)
	r := s.cfg.Readiness

	w := do(t, s, "GET", "/ready", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 before startup, got %d", w.Code)
	}

	r.SetSessionReady(true)
	r.SetMQTTConnected(true)
	r.SetPostgresConnected(true)
	w = do(t, s, "GET", "/ready", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp ReadinessResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, name := range []string{"session", "mqtt", "postgres"} {
		if resp.Checks[name].Status != "ok" {
			t.Errorf("check %s = %q, want ok", name, resp.Checks[name].Status)
		}
	}
}

func TestReadinessOptionalDependency(t *testing.T) {
	r := NewReadiness(false, true)
	r.SetSessionReady(true)
	r.SetMQTTConnected(true)

	resp := r.Evaluate()
	if !resp.Ready {
		t.Error("an optional postgres outage should not block readiness")
	}
	if resp.Checks["postgres"].Status != "degraded" {
		t.Errorf("postgres = %q, want degraded", resp.Checks["postgres"].Status)
	}

	r.SetMQTTConnected(false)
	resp = r.Evaluate()
	if resp.Ready || resp.Checks["mqtt"].Status != "fail" {
		t.Errorf("required mqtt outage: ready=%v mqtt=%q", resp.Ready, resp.Checks["mqtt"].Status)
	}
}

func TestEventsEndpoint(t *testing.T) {
	events.Clear()
	events.Emit("info", "task.started", "", map[string]interface{}{"index": 0})

	w := do(t, newTestServer(nil), "GET", "/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var got []events.Event
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "task.started" {
		t.Errorf("unexpected events %+v", got)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h := &fakeHistory{rows: []postgres.EventRow{{Event: "task.advanced"}}}
	s := New(Config{History: h})

	w := do(t, s, "GET", "/events/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if h.limit != 5 {
		t.Errorf("limit = %d, want 5", h.limit)
	}

	if w := do(t, s, "GET", "/events/history?limit=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: got %d", w.Code)
	}

	h.err = errors.New("down")
	if w := do(t, s, "GET", "/events/history", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("query failure: got %d", w.Code)
	}

	if w := do(t, newTestServer(nil), "GET", "/events/history", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no history: got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	op := &fakeOperator{status: session.Status{SessionID: "bench", TaskIndex: 2, TaskCount: 5}}
	w := do(t, newTestServer(op), "GET", "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var st session.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if st.TaskIndex != 2 || st.TaskCount != 5 {
		t.Errorf("unexpected status %+v", st)
	}

	if w := do(t, newTestServer(nil), "GET", "/status", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no session: got %d", w.Code)
	}
}

func TestOperatorActions(t *testing.T) {
	op := &fakeOperator{}
	s := newTestServer(op)

	if w := do(t, s, "POST", "/operator/reset", ""); w.Code != http.StatusOK {
		t.Errorf("reset: got %d", w.Code)
	}
	if w := do(t, s, "POST", "/operator/advance", ""); w.Code != http.StatusOK {
		t.Errorf("advance: got %d", w.Code)
	}
	if w := do(t, s, "POST", "/operator/unlock", `{"node":3}`); w.Code != http.StatusOK {
		t.Errorf("unlock: got %d", w.Code)
	}
	if w := do(t, s, "POST", "/operator/silhouette", `{"visible":true}`); w.Code != http.StatusOK {
		t.Errorf("silhouette: got %d", w.Code)
	}

	if op.resets != 1 || op.advances != 1 {
		t.Errorf("resets=%d advances=%d, want 1 and 1", op.resets, op.advances)
	}
	if len(op.unlocked) != 1 || op.unlocked[0] != 3 {
		t.Errorf("unlocked = %v, want [3]", op.unlocked)
	}
	if len(op.silhouette) != 1 || !op.silhouette[0] {
		t.Errorf("silhouette = %v, want [true]", op.silhouette)
	}
}

func TestOperatorCageActions(t *testing.T) {
	op := &fakeOperator{}
	s := newTestServer(op)

	if w := do(t, s, "POST", "/operator/lock", `{"node":1,"locked":true,"recursive":true}`); w.Code != http.StatusOK {
		t.Errorf("lock: got %d", w.Code)
	}
	if w := do(t, s, "POST", "/operator/reset-pose", `{"node":2,"recursive":true}`); w.Code != http.StatusOK {
		t.Errorf("reset-pose: got %d", w.Code)
	}
	if w := do(t, s, "POST", "/operator/fit", `{"target":0.5}`); w.Code != http.StatusOK {
		t.Errorf("fit: got %d", w.Code)
	}
	if w := do(t, s, "POST", "/operator/lock", `{"locked":true}`); w.Code != http.StatusBadRequest {
		t.Errorf("lock without node: got %d", w.Code)
	}

	if len(op.locks) != 1 || op.locks[0] != (lockCall{1, true, true}) {
		t.Errorf("locks = %v", op.locks)
	}
	if len(op.poseResets) != 1 || op.poseResets[0] != 2 {
		t.Errorf("pose resets = %v", op.poseResets)
	}
	if len(op.fits) != 1 || op.fits[0] != 0.5 {
		t.Errorf("fits = %v", op.fits)
	}

	op.err = session.ErrInvalidScale
	if w := do(t, s, "POST", "/operator/fit", `{"target":0}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid target: got %d", w.Code)
	}
}

func TestOperatorRejectsBadRequests(t *testing.T) {
	op := &fakeOperator{}
	s := newTestServer(op)

	if w := do(t, s, "GET", "/operator/reset", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET reset: got %d", w.Code)
	}
	if w := do(t, s, "POST", "/operator/unlock", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: got %d", w.Code)
	}
	if w := do(t, s, "POST", "/operator/unlock", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing node: got %d", w.Code)
	}
	if op.resets != 0 || len(op.unlocked) != 0 {
		t.Error("rejected requests must not reach the session")
	}

	op.err = session.ErrUnknownNode
	if w := do(t, s, "POST", "/operator/unlock", `{"node":99}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown node: got %d", w.Code)
	}

	if w := do(t, newTestServer(nil), "POST", "/operator/reset", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no session: got %d", w.Code)
	}
}

func TestUIRoutes(t *testing.T) {
	s := newTestServer(nil)
	for _, path := range []string{"/", "/ui"} {
		w := do(t, s, "GET", path, "")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Assembly Engine") {
			t.Errorf("%s: got %d", path, w.Code)
		}
	}
	if w := do(t, s, "GET", "/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown path: got %d", w.Code)
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	s := New(Config{Operator: &fakeOperator{}, Auth: testAuth()})

	if w := do(t, s, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health should stay open, got %d", w.Code)
	}
	if w := do(t, s, "GET", "/status", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status without credentials: got %d", w.Code)
	}
}
