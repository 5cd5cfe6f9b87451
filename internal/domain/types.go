// Package domain defines the core entities of the scene relay: the commands
// forwarded to a viewer, the scene state it reports back, and the contract
// of a viewer connection.
package domain

import (
	"encoding/json"
)

// Command actions understood by the viewer.
const (
	ActionAddObject     = "addObject"
	ActionMoveObject    = "moveObject"
	ActionRemoveObject  = "removeObject"
	ActionStartRotation = "startRotation"
	ActionStopRotation  = "stopRotation"
	ActionLoadGLB       = "loadGLB"
)

// Vector3 is a position in scene space, encoded as a 3-element JSON array.
type Vector3 [3]float64

// Command is a tagged instruction sent to the viewer.
type Command interface {
	// Action returns the wire name of the command variant.
	Action() string
}

// AddObject asks the viewer to create a primitive object.
type AddObject struct {
	Kind     string  `json:"kind"`
	Position Vector3 `json:"position"`
	Color    string  `json:"color"`
}

// MoveObject asks the viewer to move an existing object.
type MoveObject struct {
	ID       string  `json:"id"`
	Position Vector3 `json:"position"`
}

// RemoveObject asks the viewer to remove an object.
type RemoveObject struct {
	ID string `json:"id"`
}

// StartRotation starts a y-axis rotation. Speed is in radians per frame.
type StartRotation struct {
	ID    string  `json:"id"`
	Speed float64 `json:"speed"`
}

// StopRotation stops a running rotation.
type StopRotation struct {
	ID string `json:"id"`
}

// LoadModel asks the viewer to load a GLB file.
type LoadModel struct {
	FilePath string  `json:"filePath"`
	Position Vector3 `json:"position"`
	Scale    float64 `json:"scale"`
}

// Action returns the wire name of the command.
func (AddObject) Action() string { return ActionAddObject }

// Action returns the wire name of the command.
func (MoveObject) Action() string { return ActionMoveObject }

// Action returns the wire name of the command.
func (RemoveObject) Action() string { return ActionRemoveObject }

// Action returns the wire name of the command.
func (StartRotation) Action() string { return ActionStartRotation }

// Action returns the wire name of the command.
func (StopRotation) Action() string { return ActionStopRotation }

// Action returns the wire name of the command.
func (LoadModel) Action() string { return ActionLoadGLB }

// The MarshalJSON methods put the action tag first and spread the variant
// fields alongside it.

// MarshalJSON encodes the command with its action tag.
func (c AddObject) MarshalJSON() ([]byte, error) {
	type fields AddObject
	return json.Marshal(struct {
		Action string `json:"action"`
		fields
	}{c.Action(), fields(c)})
}

// MarshalJSON encodes the command with its action tag.
func (c MoveObject) MarshalJSON() ([]byte, error) {
	type fields MoveObject
	return json.Marshal(struct {
		Action string `json:"action"`
		fields
	}{c.Action(), fields(c)})
}

// MarshalJSON encodes the command with its action tag.
func (c RemoveObject) MarshalJSON() ([]byte, error) {
	type fields RemoveObject
	return json.Marshal(struct {
		Action string `json:"action"`
		fields
	}{c.Action(), fields(c)})
}

// MarshalJSON encodes the command with its action tag.
func (c StartRotation) MarshalJSON() ([]byte, error) {
	type fields StartRotation
	return json.Marshal(struct {
		Action string `json:"action"`
		fields
	}{c.Action(), fields(c)})
}

// MarshalJSON encodes the command with its action tag.
func (c StopRotation) MarshalJSON() ([]byte, error) {
	type fields StopRotation
	return json.Marshal(struct {
		Action string `json:"action"`
		fields
	}{c.Action(), fields(c)})
}

// MarshalJSON encodes the command with its action tag.
func (c LoadModel) MarshalJSON() ([]byte, error) {
	type fields LoadModel
	return json.Marshal(struct {
		Action string `json:"action"`
		fields
	}{c.Action(), fields(c)})
}

// EncodeCommand returns the wire form of a command.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, NewValidationError("command", "must not be nil")
	}
	return json.Marshal(cmd)
}

// SceneState is the last report received from the viewer, kept as the raw
// bytes that arrived on the wire.
type SceneState struct {
	raw json.RawMessage
}

// NewSceneState wraps a raw report. The bytes are copied.
func NewSceneState(raw []byte) SceneState {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return SceneState{raw: buf}
}

// Raw returns the report exactly as it was received.
func (s SceneState) Raw() json.RawMessage {
	return s.raw
}

// String returns the report as text.
func (s SceneState) String() string {
	return string(s.raw)
}

// IsZero reports whether the state holds no report.
func (s SceneState) IsZero() bool {
	return len(s.raw) == 0
}

// ViewerConn is the transport handle of an attached viewer.
type ViewerConn interface {
	// ID returns the connection identifier.
	ID() string

	// Enqueue hands a frame to the connection's writer without blocking.
	Enqueue(frame []byte) error

	// Close closes the underlying transport.
	Close() error
}
