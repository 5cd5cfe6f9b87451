package scene

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/FreePeak/threejs-mcp-server/internal/domain"
	mcperrors "github.com/FreePeak/threejs-mcp-server/internal/domain/shared/errors"
)

// Argument bags are decoded into pointer fields so a missing field can be
// told apart from a zero value.

type addObjectArgs struct {
	Kind     *string   `json:"kind"`
	Position []float64 `json:"position"`
	Color    *string   `json:"color"`
}

type moveObjectArgs struct {
	ID       *string   `json:"id"`
	Position []float64 `json:"position"`
}

type idArgs struct {
	ID *string `json:"id"`
}

type startRotationArgs struct {
	ID    *string  `json:"id"`
	Speed *float64 `json:"speed"`
}

type loadGLBArgs struct {
	FilePath *string   `json:"filePath"`
	Position []float64 `json:"position"`
	Scale    *float64  `json:"scale"`
}

type createViewerArgs struct {
	GLBPath    *string `json:"glbPath"`
	OutputPath *string `json:"outputPath"`
	Title      *string `json:"title"`
}

type bridgeArgs struct {
	BlenderAssetPath *string `json:"blenderAssetPath"`
	TargetGLB        *string `json:"targetGLB"`
}

// decodeArgs re-marshals the argument bag into target.
func decodeArgs(arguments map[string]interface{}, target interface{}) error {
	data, err := json.Marshal(arguments)
	if err != nil {
		return mcperrors.NewInvalidInputError("arguments are not JSON", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "arguments"
			}
			return invalid(field, fmt.Sprintf("must be %s", typeName(typeErr.Type.String())))
		}
		return mcperrors.NewInvalidInputError("arguments could not be decoded", err)
	}
	return nil
}

func typeName(goType string) string {
	switch goType {
	case "string":
		return "a string"
	case "float64":
		return "a number"
	case "[]float64":
		return "an array of numbers"
	default:
		return "of type " + goType
	}
}

func invalid(field, message string) error {
	v := domain.NewValidationError(field, message)
	return mcperrors.NewInvalidInputError(v.Error(), v)
}

func requireString(field string, value *string) (string, error) {
	if value == nil {
		return "", invalid(field, "is required")
	}
	if *value == "" {
		return "", invalid(field, "must not be empty")
	}
	return *value, nil
}

// requirePresent accepts any string, including "", as long as the field was
// supplied.
func requirePresent(field string, value *string) (string, error) {
	if value == nil {
		return "", invalid(field, "is required")
	}
	return *value, nil
}

func requireNumber(field string, value *float64) (float64, error) {
	if value == nil {
		return 0, invalid(field, "is required")
	}
	return *value, nil
}

func vector(field string, values []float64, required bool) (domain.Vector3, error) {
	var v domain.Vector3
	if values == nil {
		if required {
			return v, invalid(field, "is required")
		}
		return v, nil
	}
	if len(values) != 3 {
		return v, invalid(field, "must have exactly 3 numbers")
	}
	copy(v[:], values)
	return v, nil
}

func (a addObjectArgs) command() (domain.Command, error) {
	kind, err := requireString("kind", a.Kind)
	if err != nil {
		return nil, err
	}
	position, err := vector("position", a.Position, true)
	if err != nil {
		return nil, err
	}
	if a.Color == nil {
		return nil, invalid("color", "is required")
	}
	return domain.AddObject{Kind: kind, Position: position, Color: *a.Color}, nil
}

func (a moveObjectArgs) command() (domain.Command, error) {
	id, err := requireString("id", a.ID)
	if err != nil {
		return nil, err
	}
	position, err := vector("position", a.Position, true)
	if err != nil {
		return nil, err
	}
	return domain.MoveObject{ID: id, Position: position}, nil
}

func (a startRotationArgs) command() (domain.Command, error) {
	id, err := requireString("id", a.ID)
	if err != nil {
		return nil, err
	}
	speed, err := requireNumber("speed", a.Speed)
	if err != nil {
		return nil, err
	}
	return domain.StartRotation{ID: id, Speed: speed}, nil
}

func (a loadGLBArgs) command() (domain.LoadModel, error) {
	path, err := requireString("filePath", a.FilePath)
	if err != nil {
		return domain.LoadModel{}, err
	}
	position, err := vector("position", a.Position, false)
	if err != nil {
		return domain.LoadModel{}, err
	}
	scale := 1.0
	if a.Scale != nil && *a.Scale != 0 {
		scale = *a.Scale
	}
	return domain.LoadModel{FilePath: path, Position: position, Scale: scale}, nil
}
