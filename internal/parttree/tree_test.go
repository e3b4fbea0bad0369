package parttree

import (
	"errors"
	"math"
	"testing"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

const eps = 1e-9

// newTestScene builds:
//
//	cage
//	└── engine (geometry)
//	    ├── block (geometry) at (1,0,0)
//	    │   └── piston (geometry) at (1,1,0)
//	    └── mount (no geometry) at (-1,0,0)
func newTestScene() *scene.Object {
	cage := scene.New("cage")
	engine := scene.New("engine")
	engine.HasGeometry = true
	engine.Size = geom.V(2, 2, 2)
	engine.Material = "steel"

	block := scene.New("block")
	block.HasGeometry = true
	block.Size = geom.V(1, 1, 1)
	block.Material = "iron"
	block.SetLocal(geom.V(1, 0, 0), geom.Identity, geom.One)

	piston := scene.New("piston")
	piston.HasGeometry = true
	piston.Size = geom.V(0.5, 0.5, 0.5)
	piston.Material = "chrome"
	piston.SetLocal(geom.V(0, 1, 0), geom.Identity, geom.One)

	mount := scene.New("mount")
	mount.SetLocal(geom.V(-1, 0, 0), geom.Identity, geom.One)

	cage.AddChild(engine)
	engine.AddChild(block)
	engine.AddChild(mount)
	block.AddChild(piston)
	return cage
}

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestBuildEnumeratesBreadthFirst(t *testing.T) {
	tree := Build(newTestScene())
	if tree.Root == nil {
		t.Fatal("expected root")
	}

	got := names(tree.Nodes())
	want := []string{"engine", "block", "mount", "piston"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("node %d: got %s, want %s", i, got[i], want[i])
		}
		if tree.Nodes()[i].Index != i {
			t.Errorf("node %s: index %d, want %d", got[i], tree.Nodes()[i].Index, i)
		}
	}

	for _, n := range tree.Nodes() {
		if !n.Locked {
			t.Errorf("node %s should start locked", n.Name)
		}
		if n.Parent != nil {
			count := 0
			for _, c := range n.Parent.Children {
				if c == n {
					count++
				}
			}
			if count != 1 {
				t.Errorf("node %s listed %d times under its parent", n.Name, count)
			}
		}
	}

	piston := tree.Node(3)
	if !geom.Near(piston.Baseline.Position, geom.V(1, 1, 0), eps) {
		t.Errorf("piston baseline: got %v", piston.Baseline.Position)
	}
	if tree.Node(2).HasGeometry || tree.Node(2).Material != "" {
		t.Error("mount should have no geometry and no material")
	}
	if size := tree.Node(2).Bounds.Size(); geom.Length(size) != 0 {
		t.Errorf("mount bounds should be zero volume, got %v", size)
	}
}

func TestBuildWithoutChildrenHasNoRoot(t *testing.T) {
	tree := Build(scene.New("empty"))
	if tree.Root != nil {
		t.Error("expected no root")
	}
	if tree.Len() != 0 {
		t.Errorf("expected 0 nodes, got %d", tree.Len())
	}
	if len(tree.Flatten()) != 0 {
		t.Error("expected empty layout")
	}
	// no-ops on an empty tree
	tree.ResetAll()
	tree.SetLockRecursive(tree.Root, false)
	if tree.FitToScale(tree.Root, 1) != 0 {
		t.Error("expected FitToScale to be a no-op")
	}
}

func TestLookupByObject(t *testing.T) {
	cage := newTestScene()
	tree := Build(cage)

	block := cage.Find("block")
	if n := tree.Lookup(block); n == nil || n.Name != "block" {
		t.Errorf("lookup block: got %v", n)
	}
	if tree.Lookup(scene.New("stranger")) != nil {
		t.Error("expected nil for unknown object")
	}
	if tree.Lookup(nil) != nil {
		t.Error("expected nil for nil object")
	}
}

func sameNode(t *testing.T, a, b *Node) {
	t.Helper()
	if a.Index != b.Index || a.Name != b.Name || a.ObjectName != b.ObjectName {
		t.Errorf("identity mismatch: %d/%s/%s vs %d/%s/%s", a.Index, a.Name, a.ObjectName, b.Index, b.Name, b.ObjectName)
	}
	if a.Baseline != b.Baseline || a.BaselineScale != b.BaselineScale {
		t.Errorf("node %s: baseline mismatch", a.Name)
	}
	if a.Bounds != b.Bounds || a.HasGeometry != b.HasGeometry || a.Material != b.Material || a.Locked != b.Locked {
		t.Errorf("node %s: field mismatch", a.Name)
	}
	if len(a.Children) != len(b.Children) {
		t.Fatalf("node %s: %d children vs %d", a.Name, len(a.Children), len(b.Children))
	}
	if (a.Parent == nil) != (b.Parent == nil) || (a.Parent != nil && a.Parent.Index != b.Parent.Index) {
		t.Errorf("node %s: parent mismatch", a.Name)
	}
	for i := range a.Children {
		sameNode(t, a.Children[i], b.Children[i])
	}
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	cage := newTestScene()
	tree := Build(cage)
	tree.Node(1).Locked = false
	tree.Node(2).Name = "Mounting Bracket"

	flat := tree.Flatten()
	if flat[0].Parent != -1 {
		t.Errorf("root parent: got %d, want -1", flat[0].Parent)
	}
	if flat[0].ChildCount != 2 || flat[0].FirstChild != 1 {
		t.Errorf("root children: got %d from %d", flat[0].ChildCount, flat[0].FirstChild)
	}
	if flat[1].FirstChild != 3 || flat[3].Parent != 1 {
		t.Errorf("block children: first %d, piston parent %d", flat[1].FirstChild, flat[3].Parent)
	}

	restored, err := Unflatten(cage, flat, cage)
	if err != nil {
		t.Fatalf("unflatten: %v", err)
	}
	sameNode(t, tree.Root, restored.Root)

	for i, n := range restored.Nodes() {
		if n.Object != tree.Node(i).Object {
			t.Errorf("node %s: object not re-bound", n.Name)
		}
		if restored.Lookup(n.Object) != n {
			t.Errorf("node %s: lookup not rebuilt", n.Name)
		}
	}

	again := restored.Flatten()
	for i := range flat {
		if flat[i] != again[i] {
			t.Errorf("entry %d differs after second flatten", i)
		}
	}
}

func TestEncodeDecodeLayoutRoundTrip(t *testing.T) {
	cage := newTestScene()
	cage.Child(0).SetLocal(geom.V(0.1, 0.2, 0.3), geom.AxisAngle(geom.V(0, 1, 0), math.Pi/7), geom.V(1.5, 1.5, 1.5))
	tree := Build(cage)

	data, err := tree.EncodeLayout()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	restored, err := DecodeLayout(cage, data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	sameNode(t, tree.Root, restored.Root)
	if restored.Root.Object != nil {
		t.Error("nil resolver should leave objects unresolved")
	}

	// unresolved nodes are no-ops
	restored.ResetPose(restored.Root, false)
	restored.FindMissingObjects(cage)
	if restored.Root.Object != cage.Child(0) {
		t.Error("expected FindMissingObjects to re-bind root")
	}
}

func TestUnflattenRejectsMalformedLayouts(t *testing.T) {
	cage := newTestScene()
	good := Build(cage).Flatten()

	cases := map[string]func([]FlatNode){
		"root with parent":  func(f []FlatNode) { f[0].Parent = 2 },
		"child overflow":    func(f []FlatNode) { f[1].ChildCount = 5 },
		"dangling parent":   func(f []FlatNode) { f[3].Parent = 7 },
		"negative children": func(f []FlatNode) { f[2].ChildCount = -1 },
		"unreachable entry": func(f []FlatNode) { f[1].ChildCount = 0 },
	}
	for name, mutate := range cases {
		flat := append([]FlatNode(nil), good...)
		mutate(flat)
		if _, err := Unflatten(cage, flat, cage); !errors.Is(err, ErrMalformedLayout) {
			t.Errorf("%s: expected ErrMalformedLayout, got %v", name, err)
		}
	}
}

func TestCumulativeBoundsAndFitToScale(t *testing.T) {
	cage := newTestScene()
	tree := Build(cage)

	b := tree.CumulativeBounds(tree.Root)
	// engine spans [-1,1]^3, block [0.5,1.5]x[-0.5,0.5]^2, piston [0.75,1.25]x[0.75,1.25]x[-0.25,0.25]
	if !geom.Near(b.Min, geom.V(-1, -1, -1), eps) || !geom.Near(b.Max, geom.V(1.5, 1.25, 1), eps) {
		t.Fatalf("unexpected bounds %v", b)
	}

	diag := geom.Length(b.Size())
	factor := tree.FitToScale(tree.Root, 2)
	if math.Abs(factor-2/diag) > eps {
		t.Errorf("factor: got %v, want %v", factor, 2/diag)
	}
	if tree.CurrentScale != factor {
		t.Errorf("current scale: got %v", tree.CurrentScale)
	}
	if !geom.Near(cage.LocalScale(), geom.Scale(factor, geom.One), eps) {
		t.Errorf("cage scale: got %v", cage.LocalScale())
	}

	tree.ResetAll()
	if tree.CurrentScale != 1 || !geom.Near(cage.LocalScale(), geom.One, eps) {
		t.Error("ResetAll should restore unit scale")
	}
}

func TestSetLockRecursive(t *testing.T) {
	tree := Build(newTestScene())
	tree.SetLockRecursive(tree.Node(1), false)

	if tree.Node(0).Locked != true || tree.Node(2).Locked != true {
		t.Error("siblings and ancestors must keep their lock")
	}
	if tree.Node(1).Locked || tree.Node(3).Locked {
		t.Error("block subtree should be unlocked")
	}
}

func TestResetPosePreservesChildren(t *testing.T) {
	cage := newTestScene()
	tree := Build(cage)
	block := tree.Node(1)
	piston := tree.Node(3)

	block.Object.SetPosition(geom.V(5, 5, 5))
	pistonMoved := piston.Object.Position()

	tree.ResetPose(block, false)
	if !geom.Near(block.Object.Position(), geom.V(1, 0, 0), eps) {
		t.Errorf("block: got %v, want baseline", block.Object.Position())
	}
	if !geom.Near(piston.Object.Position(), pistonMoved, eps) {
		t.Errorf("piston moved: got %v, want %v", piston.Object.Position(), pistonMoved)
	}

	tree.ResetPose(block, true)
	if !geom.Near(piston.Object.Position(), geom.V(1, 1, 0), eps) {
		t.Errorf("recursive reset: piston at %v", piston.Object.Position())
	}
}

func TestBaselineFollowsCage(t *testing.T) {
	cage := newTestScene()
	tree := Build(cage)

	cage.SetPositionAndRotation(geom.V(10, 0, 0), geom.AxisAngle(geom.V(0, 0, 1), math.Pi/2))
	got := tree.BaselineWorld(tree.Node(1)).Position
	// (1,0,0) rotated 90 degrees about Z is (0,1,0)
	if !geom.Near(got, geom.V(10, 1, 0), 1e-9) {
		t.Errorf("baseline world: got %v", got)
	}

	parts := tree.Silhouette()
	if len(parts) != 3 {
		t.Fatalf("expected 3 geometry parts, got %d", len(parts))
	}
	if parts[0].Node.Name != "engine" {
		t.Errorf("first silhouette part: %s", parts[0].Node.Name)
	}
}

func TestCaptureObjectNames(t *testing.T) {
	cage := newTestScene()
	tree := Build(cage)
	cage.Find("piston").Name = "piston-v2"

	tree.CaptureObjectNames()
	if tree.Node(3).ObjectName != "piston-v2" {
		t.Errorf("got %s", tree.Node(3).ObjectName)
	}
	if tree.Node(3).Name != "piston" {
		t.Error("display name must not change")
	}
}
