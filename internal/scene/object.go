// Package scene models the external object graph the engine operates on:
// named objects with local transforms, parenting that can keep world pose,
// an optional geometry marker and a material token.
package scene

import (
	"github.com/AaronLay10/AssemblyEngine/internal/geom"
)

// Resolver finds an object by name.
type Resolver interface {
	Find(name string) *Object
}

// Object is one element of the scene hierarchy.
type Object struct {
	Name        string
	HasGeometry bool
	// Size is the geometry extent in local units; ignored without geometry.
	Size     geom.Vec3
	Material string

	parent   *Object
	children []*Object

	localPos   geom.Vec3
	localRot   geom.Quat
	localScale geom.Vec3
}

// New creates a detached object with an identity transform.
func New(name string) *Object {
	return &Object{
		Name:       name,
		localRot:   geom.Identity,
		localScale: geom.One,
	}
}

// Parent returns the parent object or nil.
func (o *Object) Parent() *Object {
	return o.parent
}

// Children returns the direct children in order. The slice must not be modified.
func (o *Object) Children() []*Object {
	return o.children
}

// ChildCount returns the number of direct children.
func (o *Object) ChildCount() int {
	return len(o.children)
}

// Child returns the i-th direct child.
func (o *Object) Child(i int) *Object {
	return o.children[i]
}

// AddChild attaches child under o keeping its local transform.
func (o *Object) AddChild(child *Object) {
	child.detach()
	child.parent = o
	o.children = append(o.children, child)
}

// SetParent reparents o under p (nil = world) keeping its world pose and
// lossy scale. o is appended as the last child of p.
func (o *Object) SetParent(p *Object) {
	if o.parent == p {
		return
	}
	pos, rot, scale := o.Position(), o.Rotation(), o.LossyScale()
	o.detach()
	if p != nil {
		o.parent = p
		p.children = append(p.children, o)
	}
	o.setWorld(pos, rot)
	o.localScale = geom.Div(scale, o.parentScale())
}

func (o *Object) detach() {
	if o.parent == nil {
		return
	}
	siblings := o.parent.children
	for i, c := range siblings {
		if c == o {
			o.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	o.parent = nil
}

// IsChildOf reports whether p is the direct parent of o.
func (o *Object) IsChildOf(p *Object) bool {
	return o.parent == p
}

// Frame returns the world frame of o.
func (o *Object) Frame() geom.Frame {
	return geom.Frame{Position: o.Position(), Rotation: o.Rotation(), Scale: o.LossyScale()}
}

func (o *Object) parentFrame() geom.Frame {
	if o.parent == nil {
		return geom.IdentityFrame
	}
	return o.parent.Frame()
}

func (o *Object) parentScale() geom.Vec3 {
	if o.parent == nil {
		return geom.One
	}
	return o.parent.LossyScale()
}

// Position returns the world position.
func (o *Object) Position() geom.Vec3 {
	return o.parentFrame().TransformPoint(o.localPos)
}

// Rotation returns the world rotation.
func (o *Object) Rotation() geom.Quat {
	if o.parent == nil {
		return geom.Normalize(o.localRot)
	}
	return geom.Compose(o.parent.Rotation(), o.localRot)
}

// LossyScale returns the accumulated world scale.
func (o *Object) LossyScale() geom.Vec3 {
	return geom.Mul(o.parentScale(), o.localScale)
}

// Pose returns the world position and rotation.
func (o *Object) Pose() geom.Pose {
	return geom.Pose{Position: o.Position(), Rotation: o.Rotation()}
}

// LocalPosition returns the position relative to the parent.
func (o *Object) LocalPosition() geom.Vec3 { return o.localPos }

// LocalRotation returns the rotation relative to the parent.
func (o *Object) LocalRotation() geom.Quat { return o.localRot }

// LocalScale returns the scale relative to the parent.
func (o *Object) LocalScale() geom.Vec3 { return o.localScale }

// SetLocal sets the transform relative to the parent.
func (o *Object) SetLocal(pos geom.Vec3, rot geom.Quat, scale geom.Vec3) {
	o.localPos = pos
	o.localRot = geom.Normalize(rot)
	o.localScale = scale
}

// SetLocalScale sets the scale relative to the parent.
func (o *Object) SetLocalScale(s geom.Vec3) {
	o.localScale = s
}

// SetPositionAndRotation moves o to a world pose. Children follow.
func (o *Object) SetPositionAndRotation(pos geom.Vec3, rot geom.Quat) {
	o.setWorld(pos, rot)
}

// SetPose is SetPositionAndRotation taking a Pose.
func (o *Object) SetPose(p geom.Pose) {
	o.setWorld(p.Position, p.Rotation)
}

// SetPosition moves o to a world position keeping its rotation.
func (o *Object) SetPosition(pos geom.Vec3) {
	o.setWorld(pos, o.Rotation())
}

func (o *Object) setWorld(pos geom.Vec3, rot geom.Quat) {
	pf := o.parentFrame()
	o.localPos = pf.InverseTransformPoint(pos)
	o.localRot = pf.InverseTransformRotation(rot)
}

// WorldBounds returns the axis-aligned box of the geometry centred on the
// world position, or a zero-size box at the position without geometry.
// Rotation is not applied to the extent.
func (o *Object) WorldBounds() geom.Bounds {
	if !o.HasGeometry {
		return geom.BoundsAt(o.Position(), geom.Vec3{})
	}
	return geom.BoundsAt(o.Position(), geom.Mul(o.LossyScale(), o.Size))
}

// Find searches o and its descendants depth-first for an object named name.
func (o *Object) Find(name string) *Object {
	if o == nil {
		return nil
	}
	if o.Name == name {
		return o
	}
	for _, c := range o.children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}
