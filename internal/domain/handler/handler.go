// Package handler defines the contracts the MCP server dispatches to.
package handler

import (
	"context"

	"github.com/FreePeak/threejs-mcp-server/internal/domain/shared"
)

// RequestHandler defines a function that handles a specific request method
type RequestHandler func(ctx context.Context, params []byte) (interface{}, error)

// ToolHandler defines a handler for tools
type ToolHandler interface {
	// ListTools returns a list of available tools
	ListTools(ctx context.Context) ([]shared.Tool, error)

	// CallTool executes a tool with the given arguments
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*shared.CallToolResult, error)
}

// PromptHandler defines a handler for prompts
type PromptHandler interface {
	// ListPrompts returns a list of available prompts
	ListPrompts(ctx context.Context) ([]shared.Prompt, error)

	// GetPrompt renders a prompt with the given arguments
	GetPrompt(ctx context.Context, name string, arguments map[string]string) (*shared.GetPromptResult, error)
}
