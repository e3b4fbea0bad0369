package parttree

import (
	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// Tree owns the node hierarchy built from the first child of a cage object.
// A tree without a root is valid; every operation on it is a no-op.
type Tree struct {
	// Cage is the coordinate frame all baselines are relative to.
	Cage *scene.Object
	Root *Node
	// CurrentScale is the last factor applied by FitToScale.
	CurrentScale float64

	nodes  []*Node
	lookup map[*scene.Object]*Node
}

// Build constructs the tree from the cage's first child object. If the cage
// has no children the tree has no root.
func Build(cage *scene.Object) *Tree {
	t := &Tree{Cage: cage, CurrentScale: 1}
	if cage != nil && cage.ChildCount() > 0 {
		t.Root = newNode(cage.Child(0), nil, cage)
	}
	t.reindex()
	return t
}

// reindex recomputes the breadth-first enumeration and the object lookup.
func (t *Tree) reindex() {
	t.nodes = t.nodes[:0]
	t.lookup = make(map[*scene.Object]*Node)
	if t.Root == nil {
		return
	}
	queue := []*Node{t.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		n.Index = len(t.nodes)
		t.nodes = append(t.nodes, n)
		if n.Object != nil {
			t.lookup[n.Object] = n
		}
		queue = append(queue, n.Children...)
	}
}

// Nodes returns every node in breadth-first order. The slice must not be modified.
func (t *Tree) Nodes() []*Node {
	return t.nodes
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node at flat index i, or nil if out of range.
func (t *Tree) Node(i int) *Node {
	if i < 0 || i >= len(t.nodes) {
		return nil
	}
	return t.nodes[i]
}

// Lookup returns the node bound to obj, or nil.
func (t *Tree) Lookup(obj *scene.Object) *Node {
	if obj == nil {
		return nil
	}
	return t.lookup[obj]
}

// Rebind rebuilds the object lookup after objects were re-resolved.
func (t *Tree) Rebind() {
	t.reindex()
}

// FindMissingObjects binds every unresolved node by its recoverable name.
// Nodes whose name is not found stay unresolved.
func (t *Tree) FindMissingObjects(r scene.Resolver) {
	if r == nil {
		return
	}
	for _, n := range t.nodes {
		if n.Object == nil {
			n.Object = r.Find(n.ObjectName)
		}
	}
	t.reindex()
}

// CaptureObjectNames refreshes recoverable names from the bound objects.
func (t *Tree) CaptureObjectNames() {
	for _, n := range t.nodes {
		if n.Object != nil {
			n.ObjectName = n.Object.Name
		}
	}
}

// CumulativeBounds returns the union of n's bounds and those of all descendants.
func (t *Tree) CumulativeBounds(n *Node) geom.Bounds {
	b := n.Bounds
	for _, c := range n.Children {
		b = b.Encapsulate(t.CumulativeBounds(c))
	}
	return b
}

// FitToScale scales the cage uniformly so that n's cumulative bounds have a
// diagonal of target. It returns the applied factor, or 0 if nothing changed.
func (t *Tree) FitToScale(n *Node, target float64) float64 {
	if n == nil || t.Cage == nil {
		return 0
	}
	diag := geom.Length(t.CumulativeBounds(n).Size())
	if diag == 0 {
		return 0
	}
	factor := target / diag
	t.CurrentScale = factor
	t.Cage.SetLocalScale(geom.Scale(factor, geom.One))
	return factor
}

// SetLockRecursive sets Locked on n and all descendants without touching
// the selection. Use interaction.Controller.SetLockRecursive on a live tree.
func (t *Tree) SetLockRecursive(n *Node, locked bool) {
	if n == nil {
		return
	}
	n.Locked = locked
	for _, c := range n.Children {
		t.SetLockRecursive(c, locked)
	}
}

// BaselineWorld returns n's baseline pose resolved through the current cage transform.
func (t *Tree) BaselineWorld(n *Node) geom.Pose {
	if t.Cage == nil {
		return n.Baseline
	}
	return t.Cage.Frame().TransformPose(n.Baseline)
}

// ResetPose restores n to its baseline. When recursive is false, the world
// placement of n's children is preserved; otherwise the whole subtree is reset.
func (t *Tree) ResetPose(n *Node, recursive bool) {
	if !n.Resolved() {
		return
	}
	if recursive {
		t.resetSubtree(n)
		return
	}
	held := scene.Hold(n.ChildObjects()...)
	t.applyBaseline(n)
	held.Restore()
}

func (t *Tree) resetSubtree(n *Node) {
	if n.Object != nil {
		t.applyBaseline(n)
	}
	for _, c := range n.Children {
		t.resetSubtree(c)
	}
}

func (t *Tree) applyBaseline(n *Node) {
	n.Object.SetPose(t.BaselineWorld(n))
	n.Object.SetLocalScale(n.BaselineScale)
}

// ResetAll restores the cage scale and every node to its baseline.
func (t *Tree) ResetAll() {
	t.CurrentScale = 1
	if t.Cage != nil {
		t.Cage.SetLocalScale(geom.One)
	}
	if t.Root != nil {
		t.resetSubtree(t.Root)
	}
}

// SilhouettePart is the assembled placement of one geometry node.
type SilhouettePart struct {
	Node  *Node
	Pose  geom.Pose
	Scale geom.Vec3
}

// Silhouette returns the baseline world placement of every geometry node,
// the "fully assembled" preview.
func (t *Tree) Silhouette() []SilhouettePart {
	var parts []SilhouettePart
	for _, n := range t.nodes {
		if !n.HasGeometry {
			continue
		}
		scale := n.BaselineScale
		if n.Object != nil {
			scale = n.Object.LossyScale()
		}
		parts = append(parts, SilhouettePart{Node: n, Pose: t.BaselineWorld(n), Scale: scale})
	}
	return parts
}
