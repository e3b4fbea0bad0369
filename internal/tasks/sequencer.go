package tasks

import (
	"time"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/interaction"
	"github.com/AaronLay10/AssemblyEngine/internal/parttree"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// Paused is the index value meaning no task is active.
const Paused = -1

// Phase is the state of the sequencer drive loop.
type Phase int

const (
	// PhaseIdle starts the current task on the next tick.
	PhaseIdle Phase = iota
	// PhaseDelay waits for the start delay of the current task.
	PhaseDelay
	// PhaseActive keeps the hint updated until the index moves.
	PhaseActive
	// PhaseEvents runs the events of the task that just ended.
	PhaseEvents
	// PhaseDone has announced that every task is done.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDelay:
		return "delay"
	case PhaseActive:
		return "active"
	case PhaseEvents:
		return "events"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// TaskFunc observes a task notification. A nil task passed to a
// task-started observer means every task is done.
type TaskFunc func(t Task)

type placement struct {
	obj  *scene.Object
	pose geom.Pose
	// hold keeps the world placement of direct children when restoring.
	hold bool
}

// Sequencer walks an ordered task list, one step per tick. The index is
// only moved through Advance, SetIndex and Reset; completion itself just
// notifies task-finished observers.
type Sequencer struct {
	ctrl     *interaction.Controller
	tasks    []Task
	hints    HintRenderer
	animator Animator

	index  int
	active int
	phase  Phase
	waited time.Duration
	hint   HintHandle

	events     []Event
	activity   Activity
	eventOwner *Info

	started    bool
	subscribed bool
	initial    []placement

	onStarted  []TaskFunc
	onFinished []TaskFunc
}

// NewSequencer creates a sequencer over list driven by ctrl notifications.
// A nil hints renderer draws nothing.
func NewSequencer(ctrl *interaction.Controller, list []Task, hints HintRenderer, animator Animator) *Sequencer {
	if hints == nil {
		hints = NopHints{}
	}
	return &Sequencer{
		ctrl:     ctrl,
		tasks:    list,
		hints:    hints,
		animator: animator,
		active:   Paused,
	}
}

// OnTaskStarted registers fn to run when a task becomes active, before its
// hint is drawn, and once with nil when all tasks are done.
func (s *Sequencer) OnTaskStarted(fn TaskFunc) {
	s.onStarted = append(s.onStarted, fn)
}

// OnTaskFinished registers fn to run once per completion, after the task
// node has been deselected and re-locked.
func (s *Sequencer) OnTaskFinished(fn TaskFunc) {
	s.onFinished = append(s.onFinished, fn)
}

// Tasks returns the task list.
func (s *Sequencer) Tasks() []Task {
	return s.tasks
}

// Len returns the number of tasks.
func (s *Sequencer) Len() int {
	return len(s.tasks)
}

// Index returns the current task index: Paused, a task index, or Len() when done.
func (s *Sequencer) Index() int {
	return s.index
}

// Phase returns the drive loop state.
func (s *Sequencer) Phase() Phase {
	return s.phase
}

// Current returns the task at the current index, or nil.
func (s *Sequencer) Current() Task {
	if s.index < 0 || s.index >= len(s.tasks) {
		return nil
	}
	return s.tasks[s.index]
}

// Done reports whether every task has been completed.
func (s *Sequencer) Done() bool {
	return s.index == len(s.tasks)
}

// Start records the initial placement of the cage and task parts, locks
// every task node and begins at the first task.
func (s *Sequencer) Start() {
	if !s.subscribed {
		s.ctrl.OnRelease(func(n *parttree.Node) { s.check(n, OnRelease) })
		s.ctrl.OnSelect(func(n *parttree.Node) { s.check(n, OnSelect) })
		s.subscribed = true
	}

	s.initial = s.initial[:0]
	if cage := s.cage(); cage != nil {
		s.initial = append(s.initial, placement{obj: cage, pose: cage.Pose()})
	}
	for _, t := range s.tasks {
		if obj := t.TaskInfo().Object; obj != nil {
			s.initial = append(s.initial, placement{obj: obj, pose: obj.Pose(), hold: true})
		}
	}

	s.lockAll()
	s.index = 0
	s.phase = PhaseIdle
	s.started = true
}

// Advance moves to the next task. It does nothing when paused or done.
func (s *Sequencer) Advance() {
	if s.index >= 0 && s.index < len(s.tasks) {
		s.index++
	}
}

// SetIndex moves to index i, clamped to [Paused, Len()].
func (s *Sequencer) SetIndex(i int) {
	s.index = max(Paused, min(i, len(s.tasks)))
}

// Reset cancels running events, restores the initial placement of the cage
// and task parts, re-locks task nodes, clears finished flags and restarts
// at the first task.
func (s *Sequencer) Reset() {
	s.events, s.activity, s.eventOwner = nil, nil, nil
	s.phase = PhaseIdle
	s.active = Paused
	s.destroyHint()

	s.ctrl.Release()
	s.ctrl.DeselectAll()
	for _, p := range s.initial {
		var held scene.Held
		if p.hold {
			held = scene.HoldChildren(p.obj)
		}
		p.obj.SetPose(p.pose)
		held.Restore()
	}
	s.lockAll()
	for _, t := range s.tasks {
		t.TaskInfo().Finished = false
	}
	s.index = 0
	s.started = true
}

// Tick advances the drive loop by one step.
func (s *Sequencer) Tick(dt time.Duration) {
	if !s.started {
		return
	}
	switch s.phase {
	case PhaseIdle, PhaseDone:
		s.begin()
	case PhaseDelay:
		if s.index != s.active {
			s.phase = PhaseIdle
			s.active = Paused
			return
		}
		s.waited += dt
		if s.waited >= s.tasks[s.active].TaskInfo().Delay {
			s.activate()
		}
	case PhaseActive:
		t := s.tasks[s.active]
		if s.index == s.active {
			t.UpdateHint(s.cage(), s.hint)
			return
		}
		s.windDown(t)
	case PhaseEvents:
		s.stepEvents(dt)
	}
}

func (s *Sequencer) begin() {
	if s.index == Paused {
		return
	}
	if s.index >= len(s.tasks) {
		if s.phase != PhaseDone {
			s.destroyHint()
			s.phase = PhaseDone
			s.notifyStarted(nil)
		}
		return
	}
	s.active = s.index
	if s.tasks[s.active].TaskInfo().Delay > 0 {
		s.waited = 0
		s.phase = PhaseDelay
		return
	}
	s.activate()
}

func (s *Sequencer) activate() {
	t := s.tasks[s.active]
	s.destroyHint()
	s.ctrl.Unlock(s.node(t))
	s.phase = PhaseActive
	s.notifyStarted(t)
	s.hint = t.DrawHint(s.cage(), s.hints)
}

func (s *Sequencer) windDown(t Task) {
	info := t.TaskInfo()
	s.ctrl.Release()
	s.ctrl.Lock(s.node(t))
	s.destroyHint()
	s.active = Paused

	if len(info.Events) == 0 {
		s.phase = PhaseIdle
		return
	}
	s.events = info.Events
	s.phase = PhaseEvents
	s.nextEvent(info)
}

func (s *Sequencer) nextEvent(info *Info) {
	ev := s.events[0]
	s.events = s.events[1:]
	s.activity = ev.Run(EventEnv{Cage: s.cage(), Object: info.Object, Animator: s.animator})
	s.eventOwner = info
}

func (s *Sequencer) stepEvents(dt time.Duration) {
	if s.activity != nil && !s.activity.Step(dt) {
		return
	}
	if len(s.events) > 0 {
		s.nextEvent(s.eventOwner)
		return
	}
	s.activity, s.eventOwner = nil, nil
	s.phase = PhaseIdle
}

// check evaluates the active task on a controller notification.
func (s *Sequencer) check(n *parttree.Node, trig Trigger) {
	if s.phase != PhaseActive || s.active != s.index || n == nil || n.Object == nil {
		return
	}
	t := s.tasks[s.active]
	info := t.TaskInfo()
	if info.Finished || t.Trigger() != trig || info.Object != n.Object {
		return
	}
	if trig == OnRelease && !info.Enabled {
		return
	}
	if !t.CheckCompletion(s.cage()) {
		return
	}
	info.Finished = true
	s.ctrl.Lock(n)
	for _, fn := range s.onFinished {
		fn(t)
	}
}

func (s *Sequencer) notifyStarted(t Task) {
	for _, fn := range s.onStarted {
		fn(t)
	}
}

func (s *Sequencer) destroyHint() {
	if s.hint != nil {
		s.hint.Destroy()
		s.hint = nil
	}
}

func (s *Sequencer) lockAll() {
	for _, t := range s.tasks {
		s.ctrl.Lock(s.node(t))
	}
}

func (s *Sequencer) node(t Task) *parttree.Node {
	return s.ctrl.Tree().Lookup(t.TaskInfo().Object)
}

func (s *Sequencer) cage() *scene.Object {
	return s.ctrl.Tree().Cage
}
