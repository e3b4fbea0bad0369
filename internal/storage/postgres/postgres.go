// Package postgres persists the session event log and saved layouts.
package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Layout kinds stored in the layouts table.
const (
	LayoutTree  = "tree"
	LayoutTasks = "tasks"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	SessionID string                 `json:"session_id"`
	RunID     *string                `json:"run_id,omitempty"`
}

// Options holds connection settings. Empty Password connects without one.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the options as a lib/pq connection string.
func (o Options) DSN() string {
	sslmode := o.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s", o.Host, o.Port, o.User, o.Database, sslmode)
	if o.Password != "" {
		dsn += " password=" + o.Password
	}
	return dsn
}

// Client stores events and layouts for one session.
type Client struct {
	db        *sql.DB
	sessionID string
}

// New connects, verifies the connection and creates missing tables.
func New(opts Options, sessionID string) (*Client, error) {
	db, err := sql.Open("postgres", opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	c := &Client{db: db, sessionID: sessionID}
	if err := c.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return c, nil
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			session_id TEXT NOT NULL,
			run_id     TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id);

		CREATE TABLE IF NOT EXISTS layouts (
			session_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, kind)
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, runID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, session_id, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, nullable(msg), fieldsJSON, c.sessionID, nullable(runID))
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Query returns the last N events of the session, newest first.
func (c *Client) Query(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, session_id, run_id
		FROM events
		WHERE session_id = $1
		ORDER BY ts DESC, event_id DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, runID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.SessionID, &runID); err != nil {
			return nil, err
		}
		if msg.Valid {
			e.Message = &msg.String
		}
		if runID.Valid {
			e.RunID = &runID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveLayout stores the encoded layout of the given kind, replacing the
// previous one.
func (c *Client) SaveLayout(kind string, data []byte) error {
	query := `
		INSERT INTO layouts (session_id, kind, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, kind) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	_, err := c.db.Exec(query, c.sessionID, kind, data, time.Now().UTC())
	return err
}

// LoadLayout returns the stored layout of the given kind. ok is false when
// none was saved.
func (c *Client) LoadLayout(kind string) (data []byte, ok bool, err error) {
	row := c.db.QueryRow(`SELECT data FROM layouts WHERE session_id = $1 AND kind = $2`, c.sessionID, kind)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Ping reports whether the database is reachable.
func (c *Client) Ping() error {
	return c.db.Ping()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
