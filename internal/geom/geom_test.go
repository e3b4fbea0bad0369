package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestRotateQuarterTurn(t *testing.T) {
	q := AxisAngle(V(0, 1, 0), math.Pi/2)
	got := Rotate(q, V(1, 0, 0))
	if !Near(got, V(0, 0, -1), eps) {
		t.Errorf("Rotate = %v, want (0,0,-1)", got)
	}
	if back := Rotate(Inverse(q), got); !Near(back, V(1, 0, 0), eps) {
		t.Errorf("inverse rotation = %v", back)
	}
}

func TestZeroQuaternionIsIdentity(t *testing.T) {
	if !SameRotation(Normalize(Quat{}), Identity, eps) {
		t.Error("zero quaternion should normalize to identity")
	}
	if got := Rotate(Quat{}, V(1, 2, 3)); !Near(got, V(1, 2, 3), eps) {
		t.Errorf("zero quaternion rotated the vector to %v", got)
	}
}

func TestComposeOrder(t *testing.T) {
	yaw := AxisAngle(V(0, 1, 0), math.Pi/2)
	roll := AxisAngle(V(0, 0, 1), math.Pi/2)

	// roll first: x -> y, then yaw leaves y alone
	got := Rotate(Compose(yaw, roll), V(1, 0, 0))
	if !Near(got, V(0, 1, 0), eps) {
		t.Errorf("Compose(yaw, roll) = %v, want (0,1,0)", got)
	}
}

func TestNlerp(t *testing.T) {
	a := Identity
	b := AxisAngle(V(0, 0, 1), math.Pi/2)

	if !SameRotation(Nlerp(a, b, 0), a, eps) || !SameRotation(Nlerp(a, b, 1), b, eps) {
		t.Error("Nlerp endpoints should match the inputs")
	}
	if !SameRotation(Nlerp(a, b, 2), b, eps) || !SameRotation(Nlerp(a, b, -1), a, eps) {
		t.Error("Nlerp should clamp t")
	}
	mid := Rotate(Nlerp(a, b, 0.5), V(1, 0, 0))
	want := V(math.Sqrt2/2, math.Sqrt2/2, 0)
	if !Near(mid, want, 1e-6) {
		t.Errorf("Nlerp midpoint = %v, want %v", mid, want)
	}

	// the negated quaternion is the same rotation; interpolation takes the short arc
	neg := Quat{Real: -b.Real, Imag: -b.Imag, Jmag: -b.Jmag, Kmag: -b.Kmag}
	if !SameRotation(Nlerp(a, neg, 0.5), Nlerp(a, b, 0.5), 1e-9) {
		t.Error("Nlerp should not take the long way round")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{
		Position: V(1, 2, 3),
		Rotation: AxisAngle(V(1, 0, 0), 0.7),
		Scale:    V(2, 0.5, 1),
	}
	p := V(0.3, -4, 2)
	if got := f.InverseTransformPoint(f.TransformPoint(p)); !Near(got, p, 1e-9) {
		t.Errorf("point round trip = %v, want %v", got, p)
	}
	q := AxisAngle(V(0, 1, 0), 1.1)
	if got := f.InverseTransformRotation(f.TransformRotation(q)); !SameRotation(got, q, 1e-12) {
		t.Error("rotation round trip changed the rotation")
	}
}

func TestDivIgnoresZeroComponents(t *testing.T) {
	if got := Div(V(4, 6, 8), V(2, 0, 4)); got != V(2, 6, 2) {
		t.Errorf("Div = %v, want (2,6,2)", got)
	}
}

func TestBounds(t *testing.T) {
	b := BoundsAt(V(1, 1, 1), V(2, 4, 6))
	if b.Center() != V(1, 1, 1) || b.Size() != V(2, 4, 6) {
		t.Errorf("BoundsAt: center %v size %v", b.Center(), b.Size())
	}

	point := BoundsAt(V(5, 0, 0), Vec3{})
	got := b.Encapsulate(point)
	if got.Max.X != 5 || got.Min.X != 0 {
		t.Errorf("a zero-size box should still extend the bounds, got %+v", got)
	}
}
