// Package tasks defines the task and task-event variants of an assembly
// session and the tick-driven sequencer that walks through them.
package tasks

import (
	"fmt"
	"time"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// DefaultSnapThreshold is the goal distance used by moving tasks that do not set one.
const DefaultSnapThreshold = 0.1

// Trigger is the controller notification a task is checked on.
type Trigger int

const (
	// OnRelease tasks are checked when their node is released.
	OnRelease Trigger = iota
	// OnSelect tasks are checked when their node is selected.
	OnSelect
)

// Info holds the fields shared by every task variant.
type Info struct {
	Name        string
	Description string
	// Object is the part the participant has to interact with; nil while unresolved.
	Object     *scene.Object
	ObjectName string
	// Delay postpones the start of the task once it becomes current.
	Delay time.Duration
	// Finished is set when the completion check passes.
	Finished bool
	// Enabled gates release-triggered completion; replication clears it for
	// parts owned by another participant.
	Enabled bool
	Events  []Event
}

// TaskInfo returns the shared fields.
func (i *Info) TaskInfo() *Info {
	return i
}

// Task is a step of the session. The set of implementations is closed:
// *MovingTask and *ClickingTask.
type Task interface {
	TaskInfo() *Info
	Trigger() Trigger
	// CheckCompletion reports whether the task is complete given the current
	// cage placement, applying any completion side effect.
	CheckCompletion(cage *scene.Object) bool
	// DrawHint creates the task hint; nil when nothing can be drawn.
	DrawHint(cage *scene.Object, r HintRenderer) HintHandle
	// UpdateHint follows cage or object movement.
	UpdateHint(cage *scene.Object, h HintHandle)

	kind() string
}

// MoveType selects the direction of a moving task.
type MoveType int

const (
	// MoveTo completes when the part is within the threshold of the goal.
	MoveTo MoveType = iota
	// AwayFrom completes when the part is farther than the threshold from the goal.
	AwayFrom
)

func (m MoveType) String() string {
	switch m {
	case MoveTo:
		return "move_to"
	case AwayFrom:
		return "away_from"
	default:
		return fmt.Sprintf("MoveType(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m MoveType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MoveType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "move_to", "":
		*m = MoveTo
	case "away_from":
		*m = AwayFrom
	default:
		return fmt.Errorf("unknown move type: %q", b)
	}
	return nil
}

// MovingTask requires bringing a part to, or away from, a goal pose given
// relative to the cage.
type MovingTask struct {
	Info
	Goal          geom.Pose
	SnapThreshold float64
	MoveType      MoveType
}

// NewMovingTask creates an enabled moving task for obj.
func NewMovingTask(name string, obj *scene.Object, goal geom.Pose, threshold float64, mt MoveType) *MovingTask {
	if threshold <= 0 {
		threshold = DefaultSnapThreshold
	}
	return &MovingTask{
		Info:          newInfo(name, obj),
		Goal:          goal,
		SnapThreshold: threshold,
		MoveType:      mt,
	}
}

func (t *MovingTask) kind() string { return kindMoving }

// Trigger implements Task.
func (t *MovingTask) Trigger() Trigger { return OnRelease }

// GoalWorld returns the goal pose resolved through the cage transform.
func (t *MovingTask) GoalWorld(cage *scene.Object) geom.Pose {
	if cage == nil {
		return t.Goal
	}
	return cage.Frame().TransformPose(t.Goal)
}

// CheckCompletion implements Task. A completed MoveTo task places the part
// exactly on the goal pose.
func (t *MovingTask) CheckCompletion(cage *scene.Object) bool {
	if t.Object == nil {
		return false
	}
	goal := t.GoalWorld(cage)
	d := geom.Distance(t.Object.Position(), goal.Position)
	if t.MoveType == AwayFrom {
		return d > t.SnapThreshold
	}
	if d > t.SnapThreshold {
		return false
	}
	t.Object.SetPose(goal)
	return true
}

// DrawHint shows the part at its goal pose.
func (t *MovingTask) DrawHint(cage *scene.Object, r HintRenderer) HintHandle {
	if t.Object == nil || r == nil {
		return nil
	}
	return r.CreateHint(t.Object, t.GoalWorld(cage), t.Object.LossyScale())
}

// UpdateHint implements Task.
func (t *MovingTask) UpdateHint(cage *scene.Object, h HintHandle) {
	if h != nil {
		h.Move(t.GoalWorld(cage))
	}
}

// ClickingTask completes as soon as its part is selected.
type ClickingTask struct {
	Info
}

// NewClickingTask creates a clicking task for obj.
func NewClickingTask(name string, obj *scene.Object) *ClickingTask {
	return &ClickingTask{Info: newInfo(name, obj)}
}

func (t *ClickingTask) kind() string { return kindClicking }

// Trigger implements Task.
func (t *ClickingTask) Trigger() Trigger { return OnSelect }

// CheckCompletion implements Task.
func (t *ClickingTask) CheckCompletion(*scene.Object) bool {
	return true
}

// DrawHint outlines the part where it currently is.
func (t *ClickingTask) DrawHint(_ *scene.Object, r HintRenderer) HintHandle {
	if t.Object == nil || r == nil {
		return nil
	}
	return r.CreateHint(t.Object, t.Object.Pose(), t.Object.LossyScale())
}

// UpdateHint implements Task.
func (t *ClickingTask) UpdateHint(_ *scene.Object, h HintHandle) {
	if h != nil && t.Object != nil {
		h.Move(t.Object.Pose())
	}
}

func newInfo(name string, obj *scene.Object) Info {
	info := Info{Name: name, Object: obj, Enabled: true}
	if obj != nil {
		info.ObjectName = obj.Name
	}
	return info
}

// FindMissingObjects binds every unresolved task and event object by its
// recoverable name.
func FindMissingObjects(list []Task, r scene.Resolver) {
	if r == nil {
		return
	}
	for _, t := range list {
		info := t.TaskInfo()
		if info.Object == nil {
			info.Object = r.Find(info.ObjectName)
		}
		for _, ev := range info.Events {
			if a, ok := ev.(*AnimationParamEvent); ok && a.Object == nil && a.ObjectName != "" {
				a.Object = r.Find(a.ObjectName)
			}
		}
	}
}

// CaptureObjectNames refreshes recoverable names from bound objects.
func CaptureObjectNames(list []Task) {
	for _, t := range list {
		info := t.TaskInfo()
		if info.Object != nil {
			info.ObjectName = info.Object.Name
		}
		for _, ev := range info.Events {
			if a, ok := ev.(*AnimationParamEvent); ok && a.Object != nil {
				a.ObjectName = a.Object.Name
			}
		}
	}
}
