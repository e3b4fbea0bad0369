package tasks

import (
	"time"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// DefaultEventDuration is used by transform events without a duration.
const DefaultEventDuration = 3 * time.Second

// Animator applies animation parameters to scene objects.
type Animator interface {
	SetParam(obj *scene.Object, name string, value float64)
	SetLayerWeight(obj *scene.Object, layer string, weight float64)
}

// EventEnv is what an event needs to run.
type EventEnv struct {
	Cage *scene.Object
	// Object is the part of the task the event belongs to.
	Object   *scene.Object
	Animator Animator
}

// Activity is a running event. Step advances it by one tick and reports
// whether it has finished.
type Activity interface {
	Step(dt time.Duration) bool
}

// Event runs after its task completes. The set of implementations is
// closed: *TransformEvent and *AnimationParamEvent.
type Event interface {
	Run(env EventEnv) Activity

	kind() string
}

// TransformEvent displaces the task part by the offset from Start to End
// and turns it from the Start to the End rotation over Duration. Poses are
// relative to the cage. Direct children keep their world placement.
type TransformEvent struct {
	Start    geom.Pose
	End      geom.Pose
	Duration time.Duration
}

func (e *TransformEvent) kind() string { return kindTransform }

// Run implements Event.
func (e *TransformEvent) Run(env EventEnv) Activity {
	if env.Object == nil {
		return done{}
	}
	a := &transformActivity{
		ev:   e,
		obj:  env.Object,
		cage: env.Cage,
		held: scene.HoldChildren(env.Object),
	}
	if e.Duration <= 0 {
		a.jump()
		return done{}
	}
	return a
}

type transformActivity struct {
	ev      *TransformEvent
	obj     *scene.Object
	cage    *scene.Object
	held    scene.Held
	elapsed time.Duration
}

func (a *transformActivity) Step(dt time.Duration) bool {
	if a.elapsed >= a.ev.Duration {
		return true
	}
	if dt > a.ev.Duration-a.elapsed {
		dt = a.ev.Duration - a.elapsed
	}
	a.elapsed += dt

	frac := float64(dt) / float64(a.ev.Duration)
	a.apply(frac, float64(a.elapsed)/float64(a.ev.Duration))
	return a.elapsed >= a.ev.Duration
}

// jump applies the whole displacement and the end rotation at once.
func (a *transformActivity) jump() {
	a.apply(1, 1)
}

// apply displaces the part by frac of the offset and sets the rotation
// reached at progress t.
func (a *transformActivity) apply(frac, t float64) {
	f := geom.IdentityFrame
	if a.cage != nil {
		f = a.cage.Frame()
	}
	delta := geom.Sub(f.TransformPoint(a.ev.End.Position), f.TransformPoint(a.ev.Start.Position))
	pos := geom.Add(a.obj.Position(), geom.Scale(frac, delta))
	rot := geom.Nlerp(
		f.TransformRotation(a.ev.Start.Rotation),
		f.TransformRotation(a.ev.End.Rotation),
		t,
	)
	a.obj.SetPositionAndRotation(pos, rot)
	a.held.Restore()
}

// AnimationParamEvent sets an animation parameter and/or a layer weight on
// Object, or on the task part when Object is nil.
type AnimationParamEvent struct {
	Object     *scene.Object
	ObjectName string

	SetParam   bool
	Param      string
	ParamValue float64

	SetLayer    bool
	Layer       string
	LayerWeight float64
}

func (e *AnimationParamEvent) kind() string { return kindAnimation }

// Run implements Event. The change is applied at once; the activity ends
// on its first step.
func (e *AnimationParamEvent) Run(env EventEnv) Activity {
	obj := e.Object
	if obj == nil {
		obj = env.Object
	}
	if obj == nil || env.Animator == nil {
		return done{}
	}
	if e.SetParam {
		env.Animator.SetParam(obj, e.Param, e.ParamValue)
	}
	if e.SetLayer {
		env.Animator.SetLayerWeight(obj, e.Layer, e.LayerWeight)
	}
	return done{}
}

type done struct{}

func (done) Step(time.Duration) bool { return true }
