package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write one frame to the client
	writeWait = 10 * time.Second

	// Time allowed between pongs before the client is considered gone
	pongWait = 60 * time.Second

	// Ping interval, shorter than pongWait
	pingPeriod = 54 * time.Second

	// Interval between session status frames
	statusPeriod = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The operator UI may be served from another host; routes carry their own auth
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is one message on the live stream. Type is "event" or "status".
type Frame struct {
	Type   string        `json:"type"`
	Event  *events.Event `json:"event,omitempty"`
	Status interface{}   `json:"status,omitempty"`
}

// wsEventsHandler streams recent and live events, interleaved with a
// session status frame every statusPeriod when a session is attached.
func (s *Server) wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := events.Subscribe()
	defer events.Unsubscribe(sub)

	write := func(f Frame) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f)
	}

	for _, e := range events.RecentEvents(recentEventsCount) {
		e := e
		if err := write(Frame{Type: "event", Event: &e}); err != nil {
			log.Printf("ws write recent event failed: %v", err)
			return
		}
	}
	if s.cfg.Operator != nil {
		if err := write(Frame{Type: "status", Status: s.cfg.Operator.Status()}); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	var statusC <-chan time.Time
	if s.cfg.Operator != nil {
		t := time.NewTicker(statusPeriod)
		defer t.Stop()
		statusC = t.C
	}

	for {
		select {
		case <-done:
			return

		case e, ok := <-sub:
			if !ok {
				return
			}
			if err := write(Frame{Type: "event", Event: &e}); err != nil {
				log.Printf("ws write event failed: %v", err)
				return
			}

		case <-statusC:
			if err := write(Frame{Type: "status", Status: s.cfg.Operator.Status()}); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
