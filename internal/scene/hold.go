package scene

import "github.com/AaronLay10/AssemblyEngine/internal/geom"

type placement struct {
	obj   *Object
	pose  geom.Pose
	scale geom.Vec3
}

// Held records world poses and lossy scales of a set of objects so they can
// be put back after their parent moves.
type Held []placement

// Hold captures the world placement of objs. Nil entries are skipped.
func Hold(objs ...*Object) Held {
	h := make(Held, 0, len(objs))
	for _, o := range objs {
		if o == nil {
			continue
		}
		h = append(h, placement{obj: o, pose: o.Pose(), scale: o.LossyScale()})
	}
	return h
}

// HoldChildren captures the world placement of o's direct children.
func HoldChildren(o *Object) Held {
	if o == nil {
		return nil
	}
	return Hold(o.children...)
}

// Restore puts every held object back to its captured world placement.
func (h Held) Restore() {
	for _, p := range h {
		p.obj.setWorld(p.pose.Position, p.pose.Rotation)
		p.obj.localScale = geom.Div(p.scale, p.obj.parentScale())
	}
}
