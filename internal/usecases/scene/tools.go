// Package scene implements the tool gateway: the MCP tools and prompts that
// drive the attached viewer.
package scene

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/FreePeak/threejs-mcp-server/internal/domain"
	"github.com/FreePeak/threejs-mcp-server/internal/domain/shared"
	mcperrors "github.com/FreePeak/threejs-mcp-server/internal/domain/shared/errors"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/assets"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/logging"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/viewerpage"
)

// Response texts returned to the caller.
const (
	TextSent          = "sent"
	TextNoViewer      = "No client connection available"
	TextNoSceneState  = "No scene state available"
	TextToolNotFound  = "Tool not found"
	TextQueueFull     = "Viewer send queue is full"
	textLoadSent      = "GLB file %s loading sent to client"
	textViewerCreated = "HTML viewer created at: %s"
	textViewerFailed  = "Error creating viewer: %v"
	textBridged       = "Blender asset bridged successfully: %s from %s"
	textBridgeFailed  = "Bridge error: %v"
	textInvalidArgs   = "Invalid arguments for %s: %s"
	textSendFailed    = "Error sending command: %v"
)

// SceneChannel is the part of the scene channel the gateway uses.
type SceneChannel interface {
	Send(ctx context.Context, cmd domain.Command) error
	Snapshot() (domain.SceneState, error)
	Attached() bool
}

// ToolHandler exposes the scene tools over MCP. Domain failures are
// reported as text content; CallTool itself only fails on programming errors.
type ToolHandler struct {
	channel SceneChannel
	logger  *logging.Logger
}

// NewToolHandler creates a tool handler bound to channel.
func NewToolHandler(channel SceneChannel, logger *logging.Logger) *ToolHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ToolHandler{
		channel: channel,
		logger:  logger.Named("tools"),
	}
}

// ListTools returns the tool catalog.
func (h *ToolHandler) ListTools(ctx context.Context) ([]shared.Tool, error) {
	return catalog(), nil
}

// CallTool runs the named tool.
func (h *ToolHandler) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*shared.CallToolResult, error) {
	switch name {
	case ToolAddObject:
		var args addObjectArgs
		return h.forward(ctx, name, arguments, &args, func() (domain.Command, error) { return args.command() })
	case ToolMoveObject:
		var args moveObjectArgs
		return h.forward(ctx, name, arguments, &args, func() (domain.Command, error) { return args.command() })
	case ToolRemoveObject:
		var args idArgs
		return h.forward(ctx, name, arguments, &args, func() (domain.Command, error) {
			id, err := requireString("id", args.ID)
			return domain.RemoveObject{ID: id}, err
		})
	case ToolStartRotation:
		var args startRotationArgs
		return h.forward(ctx, name, arguments, &args, func() (domain.Command, error) { return args.command() })
	case ToolStopRotation:
		var args idArgs
		return h.forward(ctx, name, arguments, &args, func() (domain.Command, error) {
			id, err := requireString("id", args.ID)
			return domain.StopRotation{ID: id}, err
		})
	case ToolGetSceneState:
		return h.getSceneState(), nil
	case ToolLoadGLB:
		return h.loadGLB(ctx, arguments), nil
	case ToolCreateViewer:
		return h.createViewer(arguments), nil
	case ToolBridgeFromBlender:
		return h.bridgeFromBlender(ctx, arguments), nil
	default:
		h.logger.Warn("Unknown tool", logging.Fields{"tool": name})
		return text(TextToolNotFound), nil
	}
}

// forward decodes arguments into target, builds the command and sends it.
// The viewer check comes first so a missing viewer is reported even when the
// arguments are also wrong.
func (h *ToolHandler) forward(ctx context.Context, tool string, arguments map[string]interface{}, target interface{}, build func() (domain.Command, error)) (*shared.CallToolResult, error) {
	if !h.channel.Attached() {
		return text(TextNoViewer), nil
	}
	if err := decodeArgs(arguments, target); err != nil {
		return h.invalidArgs(tool, err), nil
	}
	cmd, err := build()
	if err != nil {
		return h.invalidArgs(tool, err), nil
	}
	if res := h.send(ctx, cmd); res != nil {
		return res, nil
	}
	return text(TextSent), nil
}

// send forwards cmd and returns a result only when the send failed.
func (h *ToolHandler) send(ctx context.Context, cmd domain.Command) *shared.CallToolResult {
	err := h.channel.Send(ctx, cmd)
	if err == nil {
		return nil
	}

	mcpErr := classifySendError(err)
	switch {
	case errors.Is(err, domain.ErrNoViewer):
		return text(mcpErr.Message)
	case mcperrors.IsUnavailable(mcpErr):
		return errorText(mcpErr.Message)
	default:
		h.logger.Error("Failed to send command", logging.Fields{"action": cmd.Action(), "error": err.Error()})
		return errorText(fmt.Sprintf(textSendFailed, mcpErr.Cause))
	}
}

// classifySendError maps a channel error onto the structured error enum.
func classifySendError(err error) *mcperrors.MCPError {
	switch {
	case errors.Is(err, domain.ErrNoViewer):
		return mcperrors.NewUnavailableError(TextNoViewer, err)
	case errors.Is(err, domain.ErrSendQueueFull):
		return mcperrors.NewUnavailableError(TextQueueFull, err)
	default:
		return mcperrors.Wrap(err, "failed to send command").(*mcperrors.MCPError)
	}
}

func (h *ToolHandler) getSceneState() *shared.CallToolResult {
	state, err := h.channel.Snapshot()
	if errors.Is(err, domain.ErrNoSceneState) {
		return text(TextNoSceneState)
	}
	return text(state.String())
}

func (h *ToolHandler) loadGLB(ctx context.Context, arguments map[string]interface{}) *shared.CallToolResult {
	if !h.channel.Attached() {
		return text(TextNoViewer)
	}

	var args loadGLBArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return h.invalidArgs(ToolLoadGLB, err)
	}
	cmd, err := args.command()
	if err != nil {
		return h.invalidArgs(ToolLoadGLB, err)
	}

	// The path is resolved by the viewer; only local files can be checked.
	if _, statErr := os.Stat(cmd.FilePath); statErr == nil {
		h.checkGLB(cmd.FilePath)
	}

	if res := h.send(ctx, cmd); res != nil {
		return res
	}
	return text(fmt.Sprintf(textLoadSent, cmd.FilePath))
}

func (h *ToolHandler) createViewer(arguments map[string]interface{}) *shared.CallToolResult {
	var args createViewerArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return h.invalidArgs(ToolCreateViewer, err)
	}
	glbPath, err := requireString("glbPath", args.GLBPath)
	if err != nil {
		return h.invalidArgs(ToolCreateViewer, err)
	}
	outputPath, err := requireString("outputPath", args.OutputPath)
	if err != nil {
		return h.invalidArgs(ToolCreateViewer, err)
	}
	title := ""
	if args.Title != nil {
		title = *args.Title
	}

	if err := viewerpage.NewPage(glbPath, title).WriteFile(outputPath); err != nil {
		h.logger.Error("Failed to create viewer", logging.Fields{"output": outputPath, "error": err.Error()})
		return errorText(fmt.Sprintf(textViewerFailed, err))
	}

	h.logger.Info("Viewer created", logging.Fields{"output": outputPath, "glb": glbPath})
	return text(fmt.Sprintf(textViewerCreated, outputPath))
}

func (h *ToolHandler) bridgeFromBlender(ctx context.Context, arguments map[string]interface{}) *shared.CallToolResult {
	var args bridgeArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return h.invalidArgs(ToolBridgeFromBlender, err)
	}
	dir, err := requirePresent("blenderAssetPath", args.BlenderAssetPath)
	if err != nil {
		return h.invalidArgs(ToolBridgeFromBlender, err)
	}
	target, err := requireString("targetGLB", args.TargetGLB)
	if err != nil {
		return h.invalidArgs(ToolBridgeFromBlender, err)
	}

	fullPath, err := assets.Resolve(dir, target)
	if err != nil {
		var notFound *domain.AssetNotFoundError
		if errors.As(err, &notFound) {
			h.logger.Warn("Bridged asset not found", logging.Fields{"path": fullPath})
			return text(notFound.Error())
		}
		return errorText(fmt.Sprintf(textBridgeFailed, err))
	}

	h.checkGLB(fullPath)

	// With no viewer attached the bridge still succeeds; nothing is sent.
	if h.channel.Attached() {
		if res := h.send(ctx, domain.LoadModel{FilePath: fullPath, Scale: 1}); res != nil && res.IsError {
			return res
		}
	} else {
		h.logger.Debug("No viewer attached, bridged asset not forwarded", logging.Fields{"path": fullPath})
	}

	return text(fmt.Sprintf(textBridged, target, dir))
}

// checkGLB logs a warning when path does not look like a glTF binary.
func (h *ToolHandler) checkGLB(path string) {
	ok, err := assets.IsGLB(path)
	if err != nil {
		h.logger.Debug("Could not inspect asset", logging.Fields{"path": path, "error": err.Error()})
		return
	}
	if !ok {
		fields := logging.Fields{"path": path}
		if kind, _ := assets.Kind(path); kind != "" {
			fields["detected_type"] = kind
		}
		h.logger.Warn("Asset is not a glTF binary", fields)
	}
}

func (h *ToolHandler) invalidArgs(tool string, err error) *shared.CallToolResult {
	message := err.Error()
	var v *domain.ValidationError
	var mcpErr *mcperrors.MCPError
	switch {
	case errors.As(err, &v):
		message = v.Error()
	case errors.As(err, &mcpErr):
		message = mcpErr.Message
	}
	h.logger.Debug("Invalid tool arguments", logging.Fields{"tool": tool, "error": message})
	return errorText(fmt.Sprintf(textInvalidArgs, tool, message))
}

func text(s string) *shared.CallToolResult {
	return &shared.CallToolResult{Content: []shared.Content{shared.NewTextContent(s)}}
}

func errorText(s string) *shared.CallToolResult {
	return &shared.CallToolResult{Content: []shared.Content{shared.NewTextContent(s)}, IsError: true}
}
