package scene

import (
	"github.com/FreePeak/threejs-mcp-server/internal/domain/shared"
)

// Tool names.
const (
	ToolAddObject         = "addObject"
	ToolMoveObject        = "moveObject"
	ToolRemoveObject      = "removeObject"
	ToolStartRotation     = "startRotation"
	ToolStopRotation      = "stopRotation"
	ToolGetSceneState     = "getSceneState"
	ToolLoadGLB           = "loadGLB"
	ToolCreateViewer      = "createViewer"
	ToolBridgeFromBlender = "bridgeFromBlender"
)

// toolOption configures the input schema of a tool.
type toolOption func(*toolSchema)

// paramOption configures one schema property.
type paramOption func(name string, prop map[string]interface{}, schema *toolSchema)

type toolSchema struct {
	properties map[string]interface{}
	required   []string
}

// newTool builds a tool whose input schema is an object with the given
// properties.
func newTool(name, desc string, options ...toolOption) shared.Tool {
	schema := &toolSchema{properties: map[string]interface{}{}}
	for _, option := range options {
		option(schema)
	}

	inputSchema := map[string]interface{}{
		"type":       "object",
		"properties": schema.properties,
	}
	if len(schema.required) > 0 {
		inputSchema["required"] = schema.required
	}

	return shared.Tool{
		Name:        name,
		Description: desc,
		InputSchema: inputSchema,
	}
}

func withParam(name string, prop map[string]interface{}, options []paramOption) toolOption {
	return func(s *toolSchema) {
		for _, option := range options {
			option(name, prop, s)
		}
		s.properties[name] = prop
	}
}

// withString adds a string property.
func withString(name string, options ...paramOption) toolOption {
	return withParam(name, map[string]interface{}{"type": "string"}, options)
}

// withNumber adds a number property.
func withNumber(name string, options ...paramOption) toolOption {
	return withParam(name, map[string]interface{}{"type": "number"}, options)
}

// withVector adds an [x, y, z] property.
func withVector(name string, options ...paramOption) toolOption {
	return withParam(name, map[string]interface{}{
		"type":     "array",
		"items":    map[string]interface{}{"type": "number"},
		"minItems": 3,
		"maxItems": 3,
	}, options)
}

// required marks a property as required.
func required() paramOption {
	return func(name string, _ map[string]interface{}, s *toolSchema) {
		s.required = append(s.required, name)
	}
}

// description documents a property.
func description(text string) paramOption {
	return func(_ string, prop map[string]interface{}, _ *toolSchema) {
		prop["description"] = text
	}
}

// defaultValue records the value used when a property is omitted.
func defaultValue(v interface{}) paramOption {
	return func(_ string, prop map[string]interface{}, _ *toolSchema) {
		prop["default"] = v
	}
}

// catalog lists every tool in the order clients see them.
func catalog() []shared.Tool {
	return []shared.Tool{
		newTool(ToolAddObject, "Add an object to the scene",
			withString("kind", required(), description("Primitive kind, e.g. cube or sphere")),
			withVector("position", required()),
			withString("color", required()),
		),
		newTool(ToolMoveObject, "Move an object to a new position",
			withString("id", required()),
			withVector("position", required()),
		),
		newTool(ToolRemoveObject, "Remove an object",
			withString("id", required()),
		),
		newTool(ToolStartRotation, "Start rotating an object around the y-axis",
			withString("id", required(), description(`The ID of the object (e.g., "cube1")`)),
			withNumber("speed", required(), description("Rotation speed in radians per frame")),
		),
		newTool(ToolStopRotation, "Stop rotating an object",
			withString("id", required(), description("The ID of the object")),
		),
		newTool(ToolGetSceneState, "Get the current scene state"),
		newTool(ToolLoadGLB, "Load a GLB file into the scene",
			withString("filePath", required(), description("Path to the GLB file")),
			withVector("position", description("Position [x, y, z]")),
			withNumber("scale", description("Scale factor"), defaultValue(1)),
		),
		newTool(ToolCreateViewer, "Create an HTML viewer for a GLB file",
			withString("glbPath", required(), description("Path to the GLB file")),
			withString("outputPath", required(), description("Output HTML file path")),
			withString("title", description("Page title"), defaultValue("3D Model Viewer")),
		),
		newTool(ToolBridgeFromBlender, "Bridge function to receive models from Blender MCP",
			withString("blenderAssetPath", required(), description("Path to Blender asset folder")),
			withString("targetGLB", required(), description("Target GLB filename")),
		),
	}
}
