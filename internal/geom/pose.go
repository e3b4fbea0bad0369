package geom

// Pose is a position and rotation.
type Pose struct {
	Position Vec3 `json:"position" yaml:"position"`
	Rotation Quat `json:"rotation" yaml:"rotation"`
}

// Frame is a rigid transform with a non-uniform scale, used to express
// points relative to a parent coordinate frame.
type Frame struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// IdentityFrame is the world frame.
var IdentityFrame = Frame{Rotation: Identity, Scale: One}

// TransformPoint maps p from frame-local coordinates to world coordinates.
func (f Frame) TransformPoint(p Vec3) Vec3 {
	return Add(f.Position, Rotate(f.Rotation, Mul(f.Scale, p)))
}

// InverseTransformPoint maps a world point into frame-local coordinates.
func (f Frame) InverseTransformPoint(p Vec3) Vec3 {
	return Div(Rotate(Inverse(f.Rotation), Sub(p, f.Position)), f.Scale)
}

// TransformRotation maps a frame-local rotation to world.
func (f Frame) TransformRotation(q Quat) Quat {
	return Compose(f.Rotation, q)
}

// InverseTransformRotation maps a world rotation into the frame.
func (f Frame) InverseTransformRotation(q Quat) Quat {
	return Compose(Inverse(f.Rotation), q)
}

// TransformPose maps a frame-local pose to world.
func (f Frame) TransformPose(p Pose) Pose {
	return Pose{Position: f.TransformPoint(p.Position), Rotation: f.TransformRotation(p.Rotation)}
}

// Bounds is an axis-aligned box. A zero-size box at a point is valid and
// still contributes that point when encapsulated.
type Bounds struct {
	Min Vec3 `json:"min" yaml:"min"`
	Max Vec3 `json:"max" yaml:"max"`
}

// BoundsAt returns the box centred on center with the given full size.
func BoundsAt(center, size Vec3) Bounds {
	half := Scale(0.5, size)
	return Bounds{Min: Sub(center, half), Max: Add(center, half)}
}

// Center returns the centre of the box.
func (b Bounds) Center() Vec3 {
	return Scale(0.5, Add(b.Min, b.Max))
}

// Size returns the full extent of the box along each axis.
func (b Bounds) Size() Vec3 {
	return Sub(b.Max, b.Min)
}

// Encapsulate returns the smallest box containing both b and o.
func (b Bounds) Encapsulate(o Bounds) Bounds {
	return Bounds{
		Min: Vec3{X: min(b.Min.X, o.Min.X), Y: min(b.Min.Y, o.Min.Y), Z: min(b.Min.Z, o.Min.Z)},
		Max: Vec3{X: max(b.Max.X, o.Max.X), Y: max(b.Max.Y, o.Max.Y), Z: max(b.Max.Z, o.Max.Z)},
	}
}
