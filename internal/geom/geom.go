// Package geom provides the small amount of 3-D math the engine needs:
// vectors, rotations, rigid frames and axis-aligned bounds.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a point or direction in 3-D space.
type Vec3 = r3.Vec

// Quat is a rotation quaternion. The zero value is treated as the identity.
type Quat = quat.Number

// Identity is the no-rotation quaternion.
var Identity = Quat{Real: 1}

// One is the unit scale.
var One = Vec3{X: 1, Y: 1, Z: 1}

// V is shorthand for building a Vec3.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add returns a+b.
func Add(a, b Vec3) Vec3 { return r3.Add(a, b) }

// Sub returns a-b.
func Sub(a, b Vec3) Vec3 { return r3.Sub(a, b) }

// Scale returns f*v.
func Scale(f float64, v Vec3) Vec3 { return r3.Scale(f, v) }

// Length returns the Euclidean norm of v.
func Length(v Vec3) float64 { return r3.Norm(v) }

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec3) float64 { return r3.Norm(r3.Sub(a, b)) }

// Mul multiplies a and b component-wise.
func Mul(a, b Vec3) Vec3 {
	return Vec3{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// Div divides a by b component-wise. Zero components of b leave the
// corresponding component of a untouched.
func Div(a, b Vec3) Vec3 {
	return Vec3{X: safeDiv(a.X, b.X), Y: safeDiv(a.Y, b.Y), Z: safeDiv(a.Z, b.Z)}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return a
	}
	return a / b
}

// Normalize returns q scaled to unit length. The zero quaternion maps to Identity.
func Normalize(q Quat) Quat {
	n := quat.Abs(q)
	if n == 0 {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Inverse returns the inverse rotation of q.
func Inverse(q Quat) Quat {
	return quat.Conj(Normalize(q))
}

// Compose returns the product a*b: b is applied first, then a.
func Compose(a, b Quat) Quat {
	return Normalize(quat.Mul(Normalize(a), Normalize(b)))
}

// Rotate applies rotation q to v.
func Rotate(q Quat, v Vec3) Vec3 {
	return r3.Rotation(Normalize(q)).Rotate(v)
}

// AxisAngle returns the rotation of angle radians about axis.
func AxisAngle(axis Vec3, angle float64) Quat {
	return Quat(r3.NewRotation(angle, axis))
}

// Nlerp interpolates between a and b along the shorter arc and normalizes
// the result. t is clamped to [0, 1].
func Nlerp(a, b Quat, t float64) Quat {
	t = math.Max(0, math.Min(1, t))
	a, b = Normalize(a), Normalize(b)
	if a.Real*b.Real+a.Imag*b.Imag+a.Jmag*b.Jmag+a.Kmag*b.Kmag < 0 {
		b = quat.Scale(-1, b)
	}
	return Normalize(quat.Add(quat.Scale(1-t, a), quat.Scale(t, b)))
}

// SameRotation reports whether a and b describe the same rotation within eps.
func SameRotation(a, b Quat, eps float64) bool {
	a, b = Normalize(a), Normalize(b)
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return 1-math.Abs(dot) <= eps
}

// Near reports whether a and b are within eps of each other.
func Near(a, b Vec3, eps float64) bool {
	return Distance(a, b) <= eps
}
