package session

import (
	"github.com/AaronLay10/AssemblyEngine/internal/events"
	"github.com/AaronLay10/AssemblyEngine/internal/storage/postgres"
)

// DefaultRestoreLimit is the default number of events to load for restore.
const DefaultRestoreLimit = 1000

// EventStore reads the persisted event log, newest first.
type EventStore interface {
	Query(limit int) ([]postgres.EventRow, error)
}

// RestoredState is the shared progress reconstructed from the event log.
type RestoredState struct {
	Active    bool
	TaskIndex int
	Completed bool
}

// RestoreFromEvents reconstructs the task progress of a previous authority
// run. It returns nil when the log holds no session.
func RestoreFromEvents(store EventStore, limit int) (*RestoredState, int, error) {
	if store == nil {
		return nil, 0, nil
	}
	if limit <= 0 {
		limit = DefaultRestoreLimit
	}

	rows, err := store.Query(limit)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	var state RestoredState
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		switch row.Event {
		case "session.started":
			state.Active = true
		case "session.reset":
			state.TaskIndex = 0
			state.Completed = false
		case "task.advanced":
			// JSONB numbers decode as float64
			if idx, ok := row.Fields["index"].(float64); ok {
				state.TaskIndex = int(idx)
			}
		case "session.completed":
			state.Completed = true
		}
	}
	if !state.Active {
		return nil, len(rows), nil
	}
	return &state, len(rows), nil
}

// ApplyRestoredState moves the sequencer to the restored task. Only the
// authority restores; peers follow its snapshots. It does not emit events.
func (s *Session) ApplyRestoredState(state *RestoredState) {
	if state == nil || !state.Active || !s.part.IsAuthority() {
		return
	}
	s.seq.SetIndex(state.TaskIndex)
	s.lastIndex = s.seq.Index()
}

// EmitStartupRestore records that state was restored from n events.
func EmitStartupRestore(n int, sessionID string) {
	events.Emit("info", "system.startup_restore", "", map[string]interface{}{
		"restored":   n,
		"session_id": sessionID,
	})
}
