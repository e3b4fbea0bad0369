// Package session runs one participant of a shared assembly session: the
// part tree, the interaction controller, the task sequencer and ownership
// sync, driven from a single tick goroutine.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/interaction"
	"github.com/AaronLay10/AssemblyEngine/internal/ownership"
	"github.com/AaronLay10/AssemblyEngine/internal/parttree"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
	"github.com/AaronLay10/AssemblyEngine/internal/storage/postgres"
	"github.com/AaronLay10/AssemblyEngine/internal/tasks"
)

var (
	// ErrUnknownNode is returned for a node index outside the tree.
	ErrUnknownNode = errors.New("unknown node")
	// ErrInvalidScale is returned for a non-positive fit target.
	ErrInvalidScale = errors.New("invalid scale")
)

// Options configures a Session.
type Options struct {
	ID          string
	Participant ownership.Config
	Interaction interaction.Options
	Hints       tasks.HintRenderer
	Animator    tasks.Animator
}

// Status is a point-in-time summary of the session.
type Status struct {
	SessionID   string  `json:"session_id"`
	Participant int     `json:"participant"`
	Authority   bool    `json:"authority"`
	TaskIndex   int     `json:"task_index"`
	TaskCount   int     `json:"task_count"`
	Task        string  `json:"task,omitempty"`
	Phase       string  `json:"phase"`
	Completed   bool    `json:"completed"`
	Nodes       int     `json:"nodes"`
	Owned       int     `json:"owned"`
	Selected    int     `json:"selected"`
	Silhouette  bool    `json:"silhouette"`
	CageScale   float64 `json:"cage_scale"`
	CageGrabbed bool    `json:"cage_grabbed"`
}

// Session is not safe for concurrent use; Runner serializes access.
type Session struct {
	id    string
	tree  *parttree.Tree
	hand  *scene.Object
	ctrl  *interaction.Controller
	seq   *tasks.Sequencer
	part  *ownership.Participant
	hints tasks.HintRenderer

	silhouette []tasks.HintHandle
	completed  bool
	lastDrop   string
	lastIndex  int
}

// New wires a session over tree. The movable frame (the user's hand) is a
// free object outside the cage.
func New(tree *parttree.Tree, list []tasks.Task, tr ownership.Transport, opts Options) (*Session, error) {
	hints := opts.Hints
	if hints == nil {
		hints = tasks.NopHints{}
	}
	s := &Session{
		id:    opts.ID,
		tree:  tree,
		hand:  scene.New("movable"),
		hints: hints,
	}
	s.ctrl = interaction.New(tree, s.hand, opts.Interaction)
	s.seq = tasks.NewSequencer(s.ctrl, list, hints, opts.Animator)

	// registered before the participant so that task.finished is recorded
	// ahead of the advance it causes
	s.ctrl.OnSelect(func(n *parttree.Node) { emit("node.selected", nodeFields(n)) })
	s.ctrl.OnRelease(func(n *parttree.Node) { emit("node.released", nodeFields(n)) })
	s.seq.OnTaskStarted(s.taskStarted)
	s.seq.OnTaskFinished(func(t tasks.Task) {
		emit("task.finished", s.taskFields(t))
	})

	part, err := ownership.New(opts.Participant, s.ctrl, s.seq, tr, ownership.Hooks{
		Claimed: func(node int) {
			emit("ownership.claimed", map[string]interface{}{"node": node})
		},
		Granted: func(node, owner int) {
			emit("ownership.granted", map[string]interface{}{"node": node, "owner": owner})
		},
		SnapshotApplied: func(index int) {
			if index != s.lastIndex {
				s.lastIndex = index
				emit("sync.snapshot_applied", map[string]interface{}{"task_index": index})
			}
		},
		Advanced: func(from int) {
			emit("task.advanced", map[string]interface{}{"from": from, "index": s.seq.Index()})
		},
		Reset: func() {
			s.completed = false
			s.lastIndex = 0
			emit("session.reset", map[string]interface{}{"session_id": s.id})
		},
		Dropped: func(m ownership.Message, reason string) {
			// A dead broker fails every periodic send; report each reason once per kind.
			key := string(m.Kind) + ":" + reason
			if s.lastDrop == key {
				return
			}
			s.lastDrop = key
			events.Emit("warn", "sync.dropped", reason, map[string]interface{}{"kind": string(m.Kind), "sender": m.Sender})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}
	s.part = part
	return s, nil
}

func emit(name string, fields map[string]interface{}) {
	events.Emit("info", name, "", fields)
}

func nodeFields(n *parttree.Node) map[string]interface{} {
	return map[string]interface{}{"node": n.Index, "name": n.Name}
}

func (s *Session) taskFields(t tasks.Task) map[string]interface{} {
	return map[string]interface{}{
		"index": s.seq.Index(),
		"task":  t.TaskInfo().Name,
		"kind":  tasks.Kind(t),
	}
}

func (s *Session) taskStarted(t tasks.Task) {
	if t != nil {
		emit("task.started", s.taskFields(t))
		return
	}
	if !s.completed {
		s.completed = true
		emit("session.completed", map[string]interface{}{"session_id": s.id, "tasks": s.seq.Len()})
	}
}

// Start locks the task parts and begins the first task.
func (s *Session) Start() {
	s.seq.Start()
	emit("session.started", map[string]interface{}{
		"session_id":  s.id,
		"participant": s.part.ID(),
		"authority":   s.part.IsAuthority(),
		"tasks":       s.seq.Len(),
		"nodes":       s.tree.Len(),
	})
}

// Tick handles sync traffic, then steps the sequencer.
func (s *Session) Tick(dt time.Duration) {
	s.part.Tick(dt)
	s.seq.Tick(dt)
}

// Tree returns the part tree. Like every accessor below, the result may
// only be touched on the tick goroutine.
func (s *Session) Tree() *parttree.Tree { return s.tree }

// Controller returns the interaction controller.
func (s *Session) Controller() *interaction.Controller { return s.ctrl }

// Sequencer returns the task sequencer.
func (s *Session) Sequencer() *tasks.Sequencer { return s.seq }

// Participant returns the ownership sync participant.
func (s *Session) Participant() *ownership.Participant { return s.part }

// SelectObject selects the node of a hit-test result.
func (s *Session) SelectObject(hit *scene.Object) {
	s.ctrl.SelectObject(hit)
}

// GrabAt grabs the selection when hit belongs to it and claims the grabbed
// nodes.
func (s *Session) GrabAt(hit *scene.Object, point geom.Vec3) bool {
	if !s.ctrl.GrabIfPointingAt(hit, point) {
		return false
	}
	s.part.ClaimSelected()
	return true
}

// MoveHand places the movable frame.
func (s *Session) MoveHand(p geom.Pose) {
	s.hand.SetPose(p)
}

// Release lets go of the selection.
func (s *Session) Release() {
	s.ctrl.Release()
}

// Reset restarts the session on every participant.
func (s *Session) Reset() {
	emit("operator.reset", map[string]interface{}{"session_id": s.id})
	s.part.RequestReset()
}

// Advance skips the current task.
func (s *Session) Advance() {
	emit("operator.advance", map[string]interface{}{"from": s.seq.Index()})
	s.part.RequestAdvance()
}

// Unlock makes node i interactable regardless of the task order.
func (s *Session) Unlock(i int) error {
	emit("operator.unlock", map[string]interface{}{"node": i})
	n := s.tree.Node(i)
	if n == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, i)
	}
	s.ctrl.Unlock(n)
	emit("node.unlocked", nodeFields(n))
	return nil
}

// SetLock locks or unlocks node i, and its subtree when recursive. Locked
// nodes are deselected first.
func (s *Session) SetLock(i int, locked, recursive bool) error {
	emit("operator.lock", map[string]interface{}{"node": i, "locked": locked, "recursive": recursive})
	n := s.tree.Node(i)
	if n == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, i)
	}
	switch {
	case recursive:
		s.ctrl.SetLockRecursive(n, locked)
	case locked:
		s.ctrl.Lock(n)
	default:
		s.ctrl.Unlock(n)
	}
	fields := nodeFields(n)
	fields["recursive"] = recursive
	if locked {
		emit("node.locked", fields)
	} else {
		emit("node.unlocked", fields)
	}
	return nil
}

// ResetPose returns node i, and its subtree when recursive, to the
// baseline placement.
func (s *Session) ResetPose(i int, recursive bool) error {
	n := s.tree.Node(i)
	if n == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, i)
	}
	s.tree.ResetPose(n, recursive)
	fields := nodeFields(n)
	fields["recursive"] = recursive
	emit("node.pose_reset", fields)
	return nil
}

// FitToScale scales the cage so the assembled object spans target.
func (s *Session) FitToScale(target float64) (float64, error) {
	if target <= 0 {
		return 0, fmt.Errorf("%w: %g", ErrInvalidScale, target)
	}
	factor := s.tree.FitToScale(s.tree.Root, target)
	emit("session.scaled", map[string]interface{}{"target": target, "factor": factor})
	return factor, nil
}

// GrabCage attaches the whole cage to the hand.
func (s *Session) GrabCage() {
	s.ctrl.GrabCage()
}

// ReleaseCage puts the cage back where GrabCage took it from.
func (s *Session) ReleaseCage() {
	s.ctrl.ReleaseCage()
}

// ShowSilhouette shows or hides a preview of the fully assembled object.
func (s *Session) ShowSilhouette(on bool) {
	if on == (s.silhouette != nil) {
		return
	}
	if on {
		s.silhouette = []tasks.HintHandle{}
		for _, p := range s.tree.Silhouette() {
			if p.Node.Object == nil {
				continue
			}
			if h := s.hints.CreateHint(p.Node.Object, p.Pose, p.Scale); h != nil {
				s.silhouette = append(s.silhouette, h)
			}
		}
	} else {
		for _, h := range s.silhouette {
			h.Destroy()
		}
		s.silhouette = nil
	}
	emit("session.silhouette", map[string]interface{}{"visible": on})
}

// SaveLayout stores the current tree and task list.
func (s *Session) SaveLayout(store LayoutStore) error {
	s.tree.CaptureObjectNames()
	tree, err := s.tree.EncodeLayout()
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	list := s.seq.Tasks()
	tasks.CaptureObjectNames(list)
	taskData, err := tasks.EncodeTasks(list)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := store.SaveLayout(postgres.LayoutTree, tree); err != nil {
		return fmt.Errorf("failed to save tree layout: %w", err)
	}
	if err := store.SaveLayout(postgres.LayoutTasks, taskData); err != nil {
		return fmt.Errorf("failed to save task list: %w", err)
	}
	emit("session.layout", map[string]interface{}{"nodes": s.tree.Len(), "tasks": len(list)})
	return nil
}

// Status summarizes the session.
func (s *Session) Status() Status {
	st := Status{
		SessionID:   s.id,
		Participant: s.part.ID(),
		Authority:   s.part.IsAuthority(),
		TaskIndex:   s.seq.Index(),
		TaskCount:   s.seq.Len(),
		Phase:       s.seq.Phase().String(),
		Completed:   s.seq.Done(),
		Nodes:       s.tree.Len(),
		Owned:       s.part.Owned(),
		Selected:    len(s.ctrl.Selected()),
		Silhouette:  s.silhouette != nil,
		CageScale:   s.tree.CurrentScale,
		CageGrabbed: s.ctrl.CageGrabbed(),
	}
	if t := s.seq.Current(); t != nil {
		st.Task = t.TaskInfo().Name
	}
	return st
}
