package parttree

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// ErrMalformedLayout is returned when a flattened layout does not describe a
// single well-formed tree.
var ErrMalformedLayout = errors.New("malformed layout")

// LayoutVersion is the current persisted layout version.
const LayoutVersion = 1

// FlatNode is one entry of the flattened, breadth-first tree encoding.
type FlatNode struct {
	ChildCount  int         `json:"child_count"`
	FirstChild  int         `json:"first_child"`
	Parent      int         `json:"parent"`
	Position    geom.Vec3   `json:"position"`
	Rotation    geom.Quat   `json:"rotation"`
	Scale       geom.Vec3   `json:"scale"`
	Bounds      geom.Bounds `json:"bounds"`
	HasGeometry bool        `json:"has_geometry"`
	Material    string      `json:"material,omitempty"`
	Locked      bool        `json:"locked"`
	Name        string      `json:"name"`
	ObjectName  string      `json:"object_name"`
}

// Layout is the persisted form of a tree.
type Layout struct {
	Version int        `json:"version"`
	Nodes   []FlatNode `json:"nodes"`
}

// Flatten encodes the tree breadth-first starting at the root (index 0,
// parent -1). The entry order equals Nodes().
func (t *Tree) Flatten() []FlatNode {
	out := make([]FlatNode, 0, len(t.nodes))
	next := 1
	for _, n := range t.nodes {
		parent := -1
		if n.Parent != nil {
			parent = n.Parent.Index
		}
		out = append(out, FlatNode{
			ChildCount:  len(n.Children),
			FirstChild:  next,
			Parent:      parent,
			Position:    n.Baseline.Position,
			Rotation:    n.Baseline.Rotation,
			Scale:       n.BaselineScale,
			Bounds:      n.Bounds,
			HasGeometry: n.HasGeometry,
			Material:    n.Material,
			Locked:      n.Locked,
			Name:        n.Name,
			ObjectName:  n.ObjectName,
		})
		next += len(n.Children)
	}
	return out
}

// Unflatten rebuilds a tree from a flattened layout. Objects are bound by
// recoverable name through r; with a nil resolver every node stays unresolved.
// An empty layout yields a tree without a root.
func Unflatten(cage *scene.Object, entries []FlatNode, r scene.Resolver) (*Tree, error) {
	t := &Tree{Cage: cage, CurrentScale: 1}
	if len(entries) == 0 {
		t.reindex()
		return t, nil
	}
	if entries[0].Parent != -1 {
		return nil, fmt.Errorf("%w: root entry has parent %d", ErrMalformedLayout, entries[0].Parent)
	}

	seen := make([]bool, len(entries))
	var read func(i int, parent *Node) (*Node, error)
	read = func(i int, parent *Node) (*Node, error) {
		if seen[i] {
			return nil, fmt.Errorf("%w: entry %d referenced twice", ErrMalformedLayout, i)
		}
		seen[i] = true
		e := entries[i]
		n := &Node{
			Name:          e.Name,
			ObjectName:    e.ObjectName,
			Parent:        parent,
			Baseline:      geom.Pose{Position: e.Position, Rotation: e.Rotation},
			BaselineScale: e.Scale,
			Bounds:        e.Bounds,
			HasGeometry:   e.HasGeometry,
			Material:      e.Material,
			Locked:        e.Locked,
		}
		if r != nil {
			n.Object = r.Find(e.ObjectName)
		}
		if e.ChildCount < 0 || (e.ChildCount > 0 && (e.FirstChild <= i || e.FirstChild+e.ChildCount > len(entries))) {
			return nil, fmt.Errorf("%w: entry %d children [%d,+%d) out of range", ErrMalformedLayout, i, e.FirstChild, e.ChildCount)
		}
		for c := 0; c < e.ChildCount; c++ {
			ci := e.FirstChild + c
			if entries[ci].Parent != i {
				return nil, fmt.Errorf("%w: entry %d claims parent %d, listed under %d", ErrMalformedLayout, ci, entries[ci].Parent, i)
			}
			child, err := read(ci, n)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		return n, nil
	}

	root, err := read(0, nil)
	if err != nil {
		return nil, err
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: entry %d unreachable from root", ErrMalformedLayout, i)
		}
	}
	t.Root = root
	t.reindex()
	return t, nil
}

// EncodeLayout serializes the tree to the persisted JSON layout.
func (t *Tree) EncodeLayout() ([]byte, error) {
	return json.Marshal(Layout{Version: LayoutVersion, Nodes: t.Flatten()})
}

// DecodeLayout parses a persisted JSON layout and rebuilds the tree.
func DecodeLayout(cage *scene.Object, data []byte, r scene.Resolver) (*Tree, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if l.Version != LayoutVersion {
		return nil, fmt.Errorf("unsupported layout version: %d", l.Version)
	}
	return Unflatten(cage, l.Nodes, r)
}
