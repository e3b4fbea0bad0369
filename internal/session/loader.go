package session

import (
	"fmt"
	"os"

	"github.com/AaronLay10/AssemblyEngine/internal/parttree"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
	"github.com/AaronLay10/AssemblyEngine/internal/storage/postgres"
	"github.com/AaronLay10/AssemblyEngine/internal/tasks"
)

// LayoutStore saves and loads encoded layouts by kind.
type LayoutStore interface {
	SaveLayout(kind string, data []byte) error
	LoadLayout(kind string) ([]byte, bool, error)
}

// Sources names the files a session is loaded from. Only Scene is required.
type Sources struct {
	Scene  string
	Tasks  string
	Layout string
}

// Loaded is the content a Session is created from.
type Loaded struct {
	Cage  *scene.Object
	Tree  *parttree.Tree
	Tasks []tasks.Task
}

// Load builds the scene and then takes the tree and task list from store
// when it has them, from the layout and task files otherwise. Without a
// layout the tree is built from the scene hierarchy.
func Load(src Sources, store LayoutStore) (*Loaded, error) {
	desc, err := scene.LoadDescription(src.Scene)
	if err != nil {
		return nil, err
	}
	cage, err := desc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scene: %w", err)
	}

	out := &Loaded{Cage: cage}

	treeData, err := layoutData(store, postgres.LayoutTree, src.Layout)
	if err != nil {
		return nil, err
	}
	if treeData != nil {
		if out.Tree, err = parttree.DecodeLayout(cage, treeData, cage); err != nil {
			return nil, err
		}
	} else {
		out.Tree = parttree.Build(cage)
	}

	taskData, err := layoutData(store, postgres.LayoutTasks, src.Tasks)
	if err != nil {
		return nil, err
	}
	if taskData != nil {
		if out.Tasks, err = tasks.DecodeTasks(taskData, cage); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func layoutData(store LayoutStore, kind, path string) ([]byte, error) {
	if store != nil {
		data, ok, err := store.LoadLayout(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s layout: %w", kind, err)
		}
		if ok {
			return data, nil
		}
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", kind, err)
	}
	return data, nil
}
