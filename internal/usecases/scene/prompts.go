package scene

import (
	"context"
	"fmt"

	"github.com/FreePeak/threejs-mcp-server/internal/domain/shared"
	mcperrors "github.com/FreePeak/threejs-mcp-server/internal/domain/shared/errors"
)

// PromptAssetStrategy tells the model how to inspect and address scene objects.
const PromptAssetStrategy = "asset-creation-strategy"

const assetStrategyDescription = "Defines the preferred strategy for creating assets in ThreeJS"

const assetStrategyText = `When creating 3D content in ThreeJS, always start by checking if integrations are available:
0. Before anything, always check the scene from getSceneState() tool
1. Response of getSceneState() tool always give you with the format delimited by ### format ###
   ###
    {
      [
        {
          id: "cube1",
          type: "cube",
          position: [0, 0, 0],
          color: "red",
          ...
        }
      ]
    }
   ###
2. Always find the id of the object in response of getSceneState() tool
3. Always use the id of the object to manipulate it with other tools`

// PromptHandler serves the scene prompts.
type PromptHandler struct{}

// NewPromptHandler creates a prompt handler.
func NewPromptHandler() *PromptHandler {
	return &PromptHandler{}
}

// ListPrompts returns the available prompts.
func (h *PromptHandler) ListPrompts(ctx context.Context) ([]shared.Prompt, error) {
	return []shared.Prompt{
		{
			Name:        PromptAssetStrategy,
			Description: assetStrategyDescription,
			Arguments:   []shared.PromptArgument{},
		},
	}, nil
}

// GetPrompt renders the named prompt.
func (h *PromptHandler) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*shared.GetPromptResult, error) {
	if name != PromptAssetStrategy {
		return nil, mcperrors.NewNotFoundError(fmt.Sprintf("prompt '%s'", name), nil)
	}
	return &shared.GetPromptResult{
		Description: assetStrategyDescription,
		Messages: []shared.PromptMessage{
			{Role: "assistant", Content: shared.NewTextContent(assetStrategyText)},
		},
	}, nil
}
