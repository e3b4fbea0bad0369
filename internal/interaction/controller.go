// Package interaction implements selection, grabbing, release and
// snap-back of part-tree nodes.
package interaction

import (
	"slices"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/parttree"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// DefaultSnapThreshold is the snap distance used when Options leaves it unset.
const DefaultSnapThreshold = 0.1

// Options configures a Controller.
type Options struct {
	Snap           bool    `yaml:"snap"`
	SnapThreshold  float64 `yaml:"snap_threshold"`
	DeselectOnSnap bool    `yaml:"deselect_on_snap"`
	// HighlightMaterial replaces the material of selected geometry nodes.
	HighlightMaterial string `yaml:"highlight_material"`
}

// DefaultOptions returns snapping enabled with auto-deselect.
func DefaultOptions() Options {
	return Options{
		Snap:              true,
		SnapThreshold:     DefaultSnapThreshold,
		DeselectOnSnap:    true,
		HighlightMaterial: "highlight",
	}
}

// NodeFunc observes a node notification.
type NodeFunc func(n *parttree.Node)

// Controller manipulates the nodes of one tree. It is not safe for
// concurrent use; all calls are expected on the tick goroutine.
type Controller struct {
	tree    *parttree.Tree
	opts    Options
	movable *scene.Object

	selected []*parttree.Node

	onSelect  []NodeFunc
	onRelease []NodeFunc

	cageParent  *scene.Object
	cageGrabbed bool
}

// New creates a controller for tree. movable may be nil, in which case
// grabbing is a no-op until SetMovableFrame is called.
func New(tree *parttree.Tree, movable *scene.Object, opts Options) *Controller {
	if opts.SnapThreshold <= 0 {
		opts.SnapThreshold = DefaultSnapThreshold
	}
	return &Controller{tree: tree, opts: opts, movable: movable}
}

// Tree returns the controlled tree.
func (c *Controller) Tree() *parttree.Tree {
	return c.tree
}

// Options returns the active options.
func (c *Controller) Options() Options {
	return c.opts
}

// SetMovableFrame sets the transient parent used while grabbing.
func (c *Controller) SetMovableFrame(f *scene.Object) {
	c.movable = f
}

// MovableFrame returns the transient parent used while grabbing.
func (c *Controller) MovableFrame() *scene.Object {
	return c.movable
}

// OnSelect registers fn to run after a node becomes selected.
// Observers run in registration order.
func (c *Controller) OnSelect(fn NodeFunc) {
	c.onSelect = append(c.onSelect, fn)
}

// OnRelease registers fn to run when a selected node is released, before it
// is reparented back into the tree.
func (c *Controller) OnRelease(fn NodeFunc) {
	c.onRelease = append(c.onRelease, fn)
}

// Selected returns a copy of the selection in selection order.
func (c *Controller) Selected() []*parttree.Node {
	return slices.Clone(c.selected)
}

// IsSelected reports whether n is in the selection.
func (c *Controller) IsSelected(n *parttree.Node) bool {
	return slices.Contains(c.selected, n)
}

// Select marks n as selected and highlights it. Locked nodes are ignored and
// selecting an already selected node changes nothing.
func (c *Controller) Select(n *parttree.Node) {
	if n == nil || n.Locked || n.Selected {
		return
	}
	n.Selected = true
	if n.HasGeometry {
		n.Highlight = c.opts.HighlightMaterial
		if n.Object != nil {
			n.Object.Material = n.Highlight
		}
	}
	c.selected = append(c.selected, n)
	for _, fn := range c.onSelect {
		fn(n)
	}
}

// Deselect clears the selection of n and restores its baseline material.
// It is not gated by the lock flag.
func (c *Controller) Deselect(n *parttree.Node) {
	if n == nil {
		return
	}
	n.Selected = false
	n.Highlight = ""
	if n.HasGeometry && n.Object != nil {
		n.Object.Material = n.Material
	}
	if i := slices.Index(c.selected, n); i >= 0 {
		c.selected = slices.Delete(c.selected, i, i+1)
	}
}

// DeselectAll deselects every selected node.
func (c *Controller) DeselectAll() {
	for _, n := range slices.Clone(c.selected) {
		c.Deselect(n)
	}
}

// ToggleSelect deselects n if selected, otherwise selects it.
func (c *Controller) ToggleSelect(n *parttree.Node) {
	if n == nil {
		return
	}
	if n.Selected {
		c.Deselect(n)
		return
	}
	c.Select(n)
}

// SelectObject selects the node bound to the hit object. A nil hit is a no-op.
func (c *Controller) SelectObject(hit *scene.Object) {
	c.Select(c.tree.Lookup(hit))
}

// DeselectObject deselects the node bound to the hit object.
func (c *Controller) DeselectObject(hit *scene.Object) {
	c.Deselect(c.tree.Lookup(hit))
}

// ToggleSelectObject toggles the node bound to the hit object.
func (c *Controller) ToggleSelectObject(hit *scene.Object) {
	c.ToggleSelect(c.tree.Lookup(hit))
}

// Lock deselects n and sets its lock flag, keeping selected nodes unlocked.
func (c *Controller) Lock(n *parttree.Node) {
	if n == nil {
		return
	}
	c.Deselect(n)
	n.Locked = true
}

// SetLockRecursive locks or unlocks n and its descendants. Locking
// deselects each node first.
func (c *Controller) SetLockRecursive(n *parttree.Node, locked bool) {
	if n == nil {
		return
	}
	if locked {
		c.Lock(n)
	} else {
		c.Unlock(n)
	}
	for _, child := range n.Children {
		c.SetLockRecursive(child, locked)
	}
}

// Unlock clears the lock flag of n.
func (c *Controller) Unlock(n *parttree.Node) {
	if n == nil {
		return
	}
	n.Locked = false
}

// Grab moves every selected node under the movable frame. Children still
// attached to a selected node are first moved under the cage so they stay
// in place.
func (c *Controller) Grab() {
	if c.movable == nil {
		return
	}
	for _, n := range c.selected {
		if !n.Resolved() {
			continue
		}
		for _, child := range n.Children {
			if child.Object != nil && child.Object.IsChildOf(n.Object) {
				child.Object.SetParent(c.tree.Cage)
			}
		}
		n.Object.SetParent(c.movable)
	}
}

// GrabIfPointingAt grabs the selection when hit belongs to a selected node,
// first moving the movable frame to the hit point.
func (c *Controller) GrabIfPointingAt(hit *scene.Object, point geom.Vec3) bool {
	n := c.tree.Lookup(hit)
	if n == nil || c.movable == nil || !c.IsSelected(n) {
		return false
	}
	c.movable.SetPosition(point)
	c.Grab()
	return true
}

// Release puts every selected node back into the tree structure, notifying
// release observers first and snapping afterwards when enabled. The selection
// is copied up front since observers and snapping may modify it.
func (c *Controller) Release() {
	for _, n := range slices.Clone(c.selected) {
		for _, fn := range c.onRelease {
			fn(n)
		}
		if !n.Resolved() {
			continue
		}
		for _, child := range n.Children {
			if child.Object != nil {
				child.Object.SetParent(n.Object)
			}
		}
		if n.Parent == nil || n.Parent.Object == nil {
			n.Object.SetParent(c.tree.Cage)
		} else {
			n.Object.SetParent(n.Parent.Object)
		}
		if c.opts.Snap {
			c.Snap(n)
		}
	}
}

// Snap moves n exactly onto its baseline pose when it is within the snap
// threshold of it. Direct children keep their world placement. It reports
// whether the node snapped.
func (c *Controller) Snap(n *parttree.Node) bool {
	if !n.Resolved() {
		return false
	}
	home := c.tree.BaselineWorld(n)
	if geom.Distance(n.Object.Position(), home.Position) >= c.opts.SnapThreshold {
		return false
	}
	held := scene.HoldChildren(n.Object)
	n.Object.SetPose(home)
	held.Restore()
	if c.opts.DeselectOnSnap {
		c.Deselect(n)
	}
	return true
}

// GrabCage parents the whole cage under the movable frame.
func (c *Controller) GrabCage() {
	cage := c.tree.Cage
	if c.movable == nil || cage == nil || c.cageGrabbed {
		return
	}
	c.cageParent = cage.Parent()
	c.cageGrabbed = true
	cage.SetParent(c.movable)
}

// CageGrabbed reports whether the cage hangs under the movable frame.
func (c *Controller) CageGrabbed() bool {
	return c.cageGrabbed
}

// ReleaseCage returns the cage to the parent it had before GrabCage.
func (c *Controller) ReleaseCage() {
	if !c.cageGrabbed {
		return
	}
	c.cageGrabbed = false
	c.tree.Cage.SetParent(c.cageParent)
	c.cageParent = nil
}
