package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
)

// Description is the on-disk form of a scene.
type Description struct {
	Version int               `json:"version" yaml:"version"`
	Cage    ObjectDescription `json:"cage" yaml:"cage"`
}

// ObjectDescription describes one object and its children.
// Rotation is [w, x, y, z]; vectors are [x, y, z].
type ObjectDescription struct {
	Name     string              `json:"name" yaml:"name"`
	Position []float64           `json:"position,omitempty" yaml:"position,omitempty"`
	Rotation []float64           `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Scale    []float64           `json:"scale,omitempty" yaml:"scale,omitempty"`
	Geometry []float64           `json:"geometry,omitempty" yaml:"geometry,omitempty"`
	Material string              `json:"material,omitempty" yaml:"material,omitempty"`
	Children []ObjectDescription `json:"children,omitempty" yaml:"children,omitempty"`
}

// LoadDescription reads a scene description from a .json, .yaml or .yml file.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	var d Description
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &d)
	default:
		err = json.Unmarshal(data, &d)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse scene file: %w", err)
	}

	if d.Version != 1 {
		return nil, fmt.Errorf("unsupported scene version: %d", d.Version)
	}
	return &d, nil
}

// Build instantiates the described cage object and its hierarchy.
func (d *Description) Build() (*Object, error) {
	return d.Cage.build()
}

func (od ObjectDescription) build() (*Object, error) {
	if od.Name == "" {
		return nil, fmt.Errorf("object without name")
	}
	o := New(od.Name)

	pos, err := vec(od.Position, geom.Vec3{})
	if err != nil {
		return nil, fmt.Errorf("object %s position: %w", od.Name, err)
	}
	scale, err := vec(od.Scale, geom.One)
	if err != nil {
		return nil, fmt.Errorf("object %s scale: %w", od.Name, err)
	}
	rot := geom.Identity
	switch len(od.Rotation) {
	case 0:
	case 4:
		rot = geom.Quat{Real: od.Rotation[0], Imag: od.Rotation[1], Jmag: od.Rotation[2], Kmag: od.Rotation[3]}
	default:
		return nil, fmt.Errorf("object %s rotation: want 4 components, got %d", od.Name, len(od.Rotation))
	}
	o.SetLocal(pos, rot, scale)

	if od.Geometry != nil {
		size, err := vec(od.Geometry, geom.Vec3{})
		if err != nil {
			return nil, fmt.Errorf("object %s geometry: %w", od.Name, err)
		}
		o.HasGeometry = true
		o.Size = size
		o.Material = od.Material
	}

	for _, cd := range od.Children {
		child, err := cd.build()
		if err != nil {
			return nil, err
		}
		o.AddChild(child)
	}
	return o, nil
}

func vec(v []float64, def geom.Vec3) (geom.Vec3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return geom.V(v[0], v[1], v[2]), nil
	default:
		return geom.Vec3{}, fmt.Errorf("want 3 components, got %d", len(v))
	}
}
