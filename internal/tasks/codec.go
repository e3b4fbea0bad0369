package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
)

// ErrUnknownType is returned when a persisted task or event carries an
// unrecognised type tag.
var ErrUnknownType = errors.New("unknown type")

// ListVersion is the current persisted task list version.
const ListVersion = 1

const (
	kindMoving    = "moving"
	kindClicking  = "clicking"
	kindTransform = "transform"
	kindAnimation = "animation"
)

// Kind returns the persisted type tag of t.
func Kind(t Task) string {
	return t.kind()
}

type listRecord struct {
	Version int          `json:"version"`
	Tasks   []taskRecord `json:"tasks"`
}

type taskRecord struct {
	Type        string        `json:"type"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	ObjectName  string        `json:"object_name"`
	Delay       float64       `json:"delay,omitempty"`
	Events      []eventRecord `json:"events,omitempty"`

	// moving
	Goal          *geom.Pose `json:"goal,omitempty"`
	SnapThreshold float64    `json:"snap_threshold,omitempty"`
	MoveType      MoveType   `json:"move_type,omitempty"`
}

type eventRecord struct {
	Type string `json:"type"`

	// transform
	Start    *geom.Pose `json:"start,omitempty"`
	End      *geom.Pose `json:"end,omitempty"`
	Duration float64    `json:"duration,omitempty"`

	// animation
	ObjectName  string  `json:"object_name,omitempty"`
	SetParam    bool    `json:"set_param,omitempty"`
	Param       string  `json:"param,omitempty"`
	ParamValue  float64 `json:"param_value,omitempty"`
	SetLayer    bool    `json:"set_layer,omitempty"`
	Layer       string  `json:"layer,omitempty"`
	LayerWeight float64 `json:"layer_weight,omitempty"`
}

// EncodeTasks serializes an ordered task list. Objects are stored by their
// recoverable names; call CaptureObjectNames first if objects were renamed.
func EncodeTasks(list []Task) ([]byte, error) {
	out := listRecord{Version: ListVersion, Tasks: make([]taskRecord, 0, len(list))}
	for _, t := range list {
		info := t.TaskInfo()
		rec := taskRecord{
			Type:        t.kind(),
			Name:        info.Name,
			Description: info.Description,
			ObjectName:  info.ObjectName,
			Delay:       info.Delay.Seconds(),
		}
		if mt, ok := t.(*MovingTask); ok {
			goal := mt.Goal
			rec.Goal = &goal
			rec.SnapThreshold = mt.SnapThreshold
			rec.MoveType = mt.MoveType
		}
		for _, ev := range info.Events {
			rec.Events = append(rec.Events, encodeEvent(ev))
		}
		out.Tasks = append(out.Tasks, rec)
	}
	return json.Marshal(out)
}

func encodeEvent(ev Event) eventRecord {
	rec := eventRecord{Type: ev.kind()}
	switch e := ev.(type) {
	case *TransformEvent:
		start, end := e.Start, e.End
		rec.Start, rec.End = &start, &end
		rec.Duration = e.Duration.Seconds()
	case *AnimationParamEvent:
		rec.ObjectName = e.ObjectName
		rec.SetParam, rec.Param, rec.ParamValue = e.SetParam, e.Param, e.ParamValue
		rec.SetLayer, rec.Layer, rec.LayerWeight = e.SetLayer, e.Layer, e.LayerWeight
	}
	return rec
}

// DecodeTasks parses a persisted task list and binds objects through r.
// Objects that cannot be found stay unresolved.
func DecodeTasks(data []byte, r scene.Resolver) ([]Task, error) {
	var in listRecord
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse task list: %w", err)
	}
	if in.Version != ListVersion {
		return nil, fmt.Errorf("unsupported task list version: %d", in.Version)
	}

	list := make([]Task, 0, len(in.Tasks))
	for i, rec := range in.Tasks {
		info := Info{
			Name:        rec.Name,
			Description: rec.Description,
			ObjectName:  rec.ObjectName,
			Delay:       seconds(rec.Delay),
			Enabled:     true,
		}
		for j, er := range rec.Events {
			ev, err := decodeEvent(er)
			if err != nil {
				return nil, fmt.Errorf("task %d event %d: %w", i, j, err)
			}
			info.Events = append(info.Events, ev)
		}

		var t Task
		switch rec.Type {
		case kindMoving:
			mt := &MovingTask{Info: info, SnapThreshold: rec.SnapThreshold, MoveType: rec.MoveType}
			if rec.Goal != nil {
				mt.Goal = *rec.Goal
			}
			if mt.SnapThreshold <= 0 {
				mt.SnapThreshold = DefaultSnapThreshold
			}
			t = mt
		case kindClicking:
			t = &ClickingTask{Info: info}
		default:
			return nil, fmt.Errorf("task %d: %w: %q", i, ErrUnknownType, rec.Type)
		}
		list = append(list, t)
	}
	FindMissingObjects(list, r)
	return list, nil
}

func decodeEvent(rec eventRecord) (Event, error) {
	switch rec.Type {
	case kindTransform:
		e := &TransformEvent{Duration: seconds(rec.Duration)}
		if rec.Start != nil {
			e.Start = *rec.Start
		}
		if rec.End != nil {
			e.End = *rec.End
		}
		if e.Duration <= 0 {
			e.Duration = DefaultEventDuration
		}
		return e, nil
	case kindAnimation:
		return &AnimationParamEvent{
			ObjectName:  rec.ObjectName,
			SetParam:    rec.SetParam,
			Param:       rec.Param,
			ParamValue:  rec.ParamValue,
			SetLayer:    rec.SetLayer,
			Layer:       rec.Layer,
			LayerWeight: rec.LayerWeight,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, rec.Type)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
