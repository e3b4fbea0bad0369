// Package api serves the operator HTTP surface of a participant: health
// and readiness, the event log, a live event stream, metrics and operator
// actions on the running session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
	"github.com/AaronLay10/AssemblyEngine/internal/session"
)

const (
	operatorTimeout = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Operator is the running session as seen by operator endpoints.
// session.Runner implements it.
type Operator interface {
	Status() session.Status
	Reset(ctx context.Context) error
	Advance(ctx context.Context) error
	Unlock(ctx context.Context, node int) error
	Lock(ctx context.Context, node int, locked, recursive bool) error
	ResetPose(ctx context.Context, node int, recursive bool) error
	FitToScale(ctx context.Context, target float64) error
	ShowSilhouette(ctx context.Context, on bool) error
}

// Config holds the server dependencies. Operator and History may be nil:
// the standalone API process has no session, and a participant without
// Postgres has no history.
type Config struct {
	Port      int
	Name      string
	Operator  Operator
	History   session.EventStore
	Auth      *Auth
	TLS       *TLSConfig
	Readiness *Readiness
}

type Server struct {
	cfg      Config
	mux      *http.ServeMux
	registry *prometheus.Registry
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	if cfg.Auth == nil {
		cfg.Auth = &Auth{}
	}
	if cfg.Readiness == nil {
		cfg.Readiness = NewReadiness(true, true)
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.registry = newMetrics(cfg.Name, cfg.Operator, cfg.Readiness)

	anyRole := cfg.Auth.RequireAnyRole
	s.mux.HandleFunc("/health", healthHandler)
	s.mux.HandleFunc("/ready", s.readyHandler)
	s.mux.Handle("/metrics", metricsHandler(s.registry))
	s.mux.HandleFunc("/events", anyRole(eventsHandler))
	s.mux.HandleFunc("/events/history", anyRole(s.historyHandler))
	s.mux.HandleFunc("/status", anyRole(s.statusHandler))
	s.mux.HandleFunc("/operator/reset", anyRole(s.operatorResetHandler))
	s.mux.HandleFunc("/operator/advance", anyRole(s.operatorAdvanceHandler))
	s.mux.HandleFunc("/operator/silhouette", anyRole(s.operatorSilhouetteHandler))
	s.mux.HandleFunc("/operator/reset-pose", anyRole(s.operatorResetPoseHandler))
	s.mux.HandleFunc("/operator/fit", anyRole(s.operatorFitHandler))
	s.mux.HandleFunc("/operator/unlock", cfg.Auth.RequireAdmin(s.operatorUnlockHandler))
	s.mux.HandleFunc("/operator/lock", cfg.Auth.RequireAdmin(s.operatorLockHandler))
	s.mux.HandleFunc("/ws/events", anyRole(s.wsEventsHandler))
	s.mux.HandleFunc("/", anyRole(uiHandler))
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg, err := s.cfg.TLS.Load()
	if err != nil {
		return err
	}
	srv.TLSConfig = tlsCfg

	errc := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s (tls=%v)", srv.Addr, tlsCfg != nil)
		if tlsCfg != nil {
			errc <- srv.ListenAndServeTLS("", "")
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "assembly",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.Snapshot())
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeError(w, http.StatusServiceUnavailable, "event history unavailable")
		return
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	rows, err := s.cfg.History.Query(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Operator == nil {
		writeError(w, http.StatusServiceUnavailable, "no session")
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Operator.Status())
}

type OperatorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type UnlockRequest struct {
	Node *int `json:"node"`
}

// LockRequest locks or unlocks a node, optionally with its subtree.
type LockRequest struct {
	Node      *int `json:"node"`
	Locked    bool `json:"locked"`
	Recursive bool `json:"recursive"`
}

type ResetPoseRequest struct {
	Node      *int `json:"node"`
	Recursive bool `json:"recursive"`
}

// FitRequest scales the cage so the assembled object spans Target.
type FitRequest struct {
	Target float64 `json:"target"`
}

type SilhouetteRequest struct {
	Visible bool `json:"visible"`
}

// operator runs one operator action: it checks the method and the session,
// then calls act with a bounded context.
func (s *Server) operator(w http.ResponseWriter, r *http.Request, act func(ctx context.Context) error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.Operator == nil {
		writeError(w, http.StatusServiceUnavailable, "no session")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), operatorTimeout)
	defer cancel()

	if err := act(ctx); err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownNode):
			writeError(w, http.StatusNotFound, "node not found")
		case errors.Is(err, session.ErrInvalidScale):
			writeError(w, http.StatusBadRequest, "target must be positive")
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "session busy")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

func (s *Server) operatorResetHandler(w http.ResponseWriter, r *http.Request) {
	s.operator(w, r, func(ctx context.Context) error { return s.cfg.Operator.Reset(ctx) })
}

func (s *Server) operatorAdvanceHandler(w http.ResponseWriter, r *http.Request) {
	s.operator(w, r, func(ctx context.Context) error { return s.cfg.Operator.Advance(ctx) })
}

func (s *Server) operatorUnlockHandler(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Node == nil {
			writeError(w, http.StatusBadRequest, "node required")
			return
		}
	}
	s.operator(w, r, func(ctx context.Context) error { return s.cfg.Operator.Unlock(ctx, *req.Node) })
}

func (s *Server) operatorLockHandler(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Node == nil {
			writeError(w, http.StatusBadRequest, "node required")
			return
		}
	}
	s.operator(w, r, func(ctx context.Context) error {
		return s.cfg.Operator.Lock(ctx, *req.Node, req.Locked, req.Recursive)
	})
}

func (s *Server) operatorResetPoseHandler(w http.ResponseWriter, r *http.Request) {
	var req ResetPoseRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Node == nil {
			writeError(w, http.StatusBadRequest, "node required")
			return
		}
	}
	s.operator(w, r, func(ctx context.Context) error {
		return s.cfg.Operator.ResetPose(ctx, *req.Node, req.Recursive)
	})
}

func (s *Server) operatorFitHandler(w http.ResponseWriter, r *http.Request) {
	var req FitRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	s.operator(w, r, func(ctx context.Context) error { return s.cfg.Operator.FitToScale(ctx, req.Target) })
}

func (s *Server) operatorSilhouetteHandler(w http.ResponseWriter, r *http.Request) {
	var req SilhouetteRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	s.operator(w, r, func(ctx context.Context) error { return s.cfg.Operator.ShowSilhouette(ctx, req.Visible) })
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, OperatorResponse{OK: false, Error: msg})
}
