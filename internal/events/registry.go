package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// node
	"node.selected": {},
	"node.released": {},
	"node.unlocked":   {},
	"node.locked":     {},
	"node.pose_reset": {},

	// task
	"task.started":  {},
	"task.finished": {},
	"task.advanced": {},

	// session
	"session.started":    {},
	"session.completed":  {},
	"session.reset":      {},
	"session.silhouette": {},
	"session.layout":     {},
	"session.scaled":     {},

	// ownership
	"ownership.claimed": {},
	"ownership.granted": {},

	// sync
	"sync.snapshot_applied": {},
	"sync.dropped":          {},
	"sync.connected":        {},
	"sync.disconnected":     {},

	// operator
	"operator.reset":   {},
	"operator.unlock":  {},
	"operator.advance": {},
	"operator.lock":    {},

	// system
	"system.startup":         {},
	"system.startup_restore": {},
	"system.shutdown":        {},
	"system.error":           {},
}

// Validate rejects event names that are not registered.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
