package tasks

import (
	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// HintRenderer draws task hints. Rendering itself lives outside the engine;
// the sequencer only owns the create, move and destroy lifecycle.
type HintRenderer interface {
	CreateHint(obj *scene.Object, pose geom.Pose, scale geom.Vec3) HintHandle
}

// HintHandle is a drawn hint.
type HintHandle interface {
	Move(pose geom.Pose)
	Destroy()
}

// NopHints is a HintRenderer that draws nothing.
type NopHints struct{}

// CreateHint implements HintRenderer.
func (NopHints) CreateHint(*scene.Object, geom.Pose, geom.Vec3) HintHandle {
	return nopHint{}
}

type nopHint struct{}

func (nopHint) Move(geom.Pose) {}
func (nopHint) Destroy()       {}
