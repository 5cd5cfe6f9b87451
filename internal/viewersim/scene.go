package viewersim

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/FreePeak/threejs-mcp-server/internal/domain"
)

// Object is one entry of the simulated scene.
type Object struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Position      domain.Vector3 `json:"position"`
	Color         string         `json:"color,omitempty"`
	Rotating      bool           `json:"rotating"`
	RotationSpeed float64        `json:"rotationSpeed,omitempty"`
	FilePath      string         `json:"filePath,omitempty"`
	Scale         float64        `json:"scale,omitempty"`
}

// Report is the frame the simulator sends back after every change.
type Report struct {
	Data []Object `json:"data"`
}

// command is the union of every command variant's fields.
type command struct {
	Action   string          `json:"action"`
	Kind     string          `json:"kind"`
	ID       string          `json:"id"`
	Color    string          `json:"color"`
	FilePath string          `json:"filePath"`
	Position *domain.Vector3 `json:"position"`
	Speed    float64         `json:"speed"`
	Scale    float64         `json:"scale"`
}

// ErrUnknownAction is returned by Apply for actions the simulator ignores.
var ErrUnknownAction = errors.New("unknown action")

// Scene is an in-memory scene that applies viewer commands.
type Scene struct {
	mu       sync.Mutex
	objects  []Object
	counters map[string]int
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{counters: make(map[string]int)}
}

// Apply decodes frame and applies it.
func (s *Scene) Apply(frame []byte) error {
	var cmd command
	if err := json.Unmarshal(frame, &cmd); err != nil {
		return errors.Wrap(err, "invalid command frame")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Action {
	case domain.ActionAddObject:
		obj := Object{ID: s.nextID(cmd.Kind), Type: cmd.Kind, Color: cmd.Color}
		if cmd.Position != nil {
			obj.Position = *cmd.Position
		}
		s.objects = append(s.objects, obj)
	case domain.ActionLoadGLB:
		obj := Object{ID: s.nextID("glb"), Type: "glb", FilePath: cmd.FilePath, Scale: cmd.Scale}
		if cmd.Position != nil {
			obj.Position = *cmd.Position
		}
		s.objects = append(s.objects, obj)
	case domain.ActionMoveObject:
		obj, err := s.find(cmd.ID)
		if err != nil {
			return err
		}
		if cmd.Position != nil {
			obj.Position = *cmd.Position
		}
	case domain.ActionRemoveObject:
		for i := range s.objects {
			if s.objects[i].ID == cmd.ID {
				s.objects = append(s.objects[:i], s.objects[i+1:]...)
				return nil
			}
		}
		return errors.Errorf("object %q not found", cmd.ID)
	case domain.ActionStartRotation:
		obj, err := s.find(cmd.ID)
		if err != nil {
			return err
		}
		obj.Rotating = true
		obj.RotationSpeed = cmd.Speed
	case domain.ActionStopRotation:
		obj, err := s.find(cmd.ID)
		if err != nil {
			return err
		}
		obj.Rotating = false
		obj.RotationSpeed = 0
	default:
		return errors.Wrap(ErrUnknownAction, cmd.Action)
	}
	return nil
}

// Objects returns a copy of the scene contents.
func (s *Scene) Objects() []Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Object, len(s.objects))
	copy(out, s.objects)
	return out
}

// Report encodes the full scene.
func (s *Scene) Report() ([]byte, error) {
	return json.Marshal(Report{Data: s.Objects()})
}

func (s *Scene) nextID(kind string) string {
	s.counters[kind]++
	return fmt.Sprintf("%s%d", kind, s.counters[kind])
}

func (s *Scene) find(id string) (*Object, error) {
	for i := range s.objects {
		if s.objects[i].ID == id {
			return &s.objects[i], nil
		}
	}
	return nil, errors.Errorf("object %q not found", id)
}
