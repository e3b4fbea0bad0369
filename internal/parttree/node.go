// Package parttree holds the hierarchical part model of a multi-part object:
// one Node per scene object under the cage, with baseline poses captured at
// construction, lock/selection state, and a flat breadth-first enumeration
// used for persistence and replication.
package parttree

import (
	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// Node is one part of the tree.
type Node struct {
	// Index is the position in the breadth-first enumeration.
	Index int
	// Name is the display name, defaulting to the object name.
	Name string
	// ObjectName is used to re-bind Object when the scene is replaced.
	ObjectName string
	// Object is the bound scene object; nil while unresolved.
	Object *scene.Object

	Parent   *Node
	Children []*Node

	// Baseline pose and scale relative to the cage, captured once.
	Baseline      geom.Pose
	BaselineScale geom.Vec3

	Bounds      geom.Bounds
	HasGeometry bool
	Material    string

	Locked    bool
	Selected  bool
	Highlight string
}

func newNode(obj *scene.Object, parent *Node, cage *scene.Object) *Node {
	cf := cage.Frame()
	n := &Node{
		Name:       obj.Name,
		ObjectName: obj.Name,
		Object:     obj,
		Parent:     parent,
		Baseline: geom.Pose{
			Position: cf.InverseTransformPoint(obj.Position()),
			Rotation: cf.InverseTransformRotation(obj.Rotation()),
		},
		BaselineScale: obj.LocalScale(),
		HasGeometry:   obj.HasGeometry,
		Bounds:        obj.WorldBounds(),
		Locked:        true,
	}
	if n.HasGeometry {
		n.Material = obj.Material
	}
	for _, child := range obj.Children() {
		n.Children = append(n.Children, newNode(child, n, cage))
	}
	return n
}

// IsRoot reports whether n has no parent.
func (n *Node) IsRoot() bool {
	return n.Parent == nil
}

// Resolved reports whether n is bound to a scene object.
func (n *Node) Resolved() bool {
	return n != nil && n.Object != nil
}

// ChildObjects returns the bound objects of n's children, skipping unresolved ones.
func (n *Node) ChildObjects() []*scene.Object {
	objs := make([]*scene.Object, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Object != nil {
			objs = append(objs, c.Object)
		}
	}
	return objs
}
