package ownership

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
)

// Kind identifies a message on the wire.
type Kind string

const (
	KindSnapshot       Kind = "snapshot"
	KindDelta          Kind = "delta"
	KindClaim          Kind = "claim"
	KindGrant          Kind = "grant"
	KindAdvanceRequest Kind = "advance_request"
	KindResetRequest   Kind = "reset_request"
	KindReset          Kind = "reset"
)

// Message is the envelope exchanged between participants. Exactly one of
// the payload fields matching Kind is set.
type Message struct {
	Kind   Kind `json:"kind"`
	Sender int  `json:"sender"`

	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Delta    *Delta    `json:"delta,omitempty"`
	Claim    *Claim    `json:"claim,omitempty"`
	Grant    *Grant    `json:"grant,omitempty"`
	Advance  *Advance  `json:"advance,omitempty"`
}

// Snapshot is the authority's periodic view of the shared state. Poses are
// relative to the cage and indexed by flat node index.
type Snapshot struct {
	// Run identifies the authority process; Seq and Epoch restart with it.
	Run       string      `json:"run"`
	Seq       uint64      `json:"seq"`
	Epoch     uint64      `json:"epoch"`
	TaskIndex int         `json:"task_index"`
	Owners    []int       `json:"owners"`
	Poses     []geom.Pose `json:"poses"`
}

// Delta carries the cage-relative poses of the nodes the sender owns.
type Delta struct {
	Nodes []int       `json:"nodes"`
	Poses []geom.Pose `json:"poses"`
}

// Claim asks the authority for ownership of a node.
type Claim struct {
	Node int `json:"node"`
}

// Grant announces a recorded ownership change.
type Grant struct {
	Run   string `json:"run"`
	Epoch uint64 `json:"epoch"`
	Node  int    `json:"node"`
	Owner int    `json:"owner"`
}

// Advance asks the authority to move past the task at From.
type Advance struct {
	From int `json:"from"`
}

// Encode serializes m for a byte-oriented transport.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := m.validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (m Message) validate() error {
	var ok bool
	switch m.Kind {
	case KindSnapshot:
		ok = m.Snapshot != nil && len(m.Snapshot.Owners) == len(m.Snapshot.Poses)
	case KindDelta:
		ok = m.Delta != nil && len(m.Delta.Nodes) == len(m.Delta.Poses)
	case KindClaim:
		ok = m.Claim != nil
	case KindGrant:
		ok = m.Grant != nil
	case KindAdvanceRequest:
		ok = m.Advance != nil
	case KindResetRequest, KindReset:
		ok = true
	default:
		return fmt.Errorf("unknown message kind: %q", m.Kind)
	}
	if !ok {
		return fmt.Errorf("malformed %s message", m.Kind)
	}
	return nil
}
