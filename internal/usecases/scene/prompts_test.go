package scene

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/FreePeak/threejs-mcp-server/internal/domain/shared/errors"
)

func TestPromptHandler(t *testing.T) {
	h := NewPromptHandler()
	ctx := context.Background()

	prompts, err := h.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, PromptAssetStrategy, prompts[0].Name)
	assert.NotNil(t, prompts[0].Arguments)

	result, err := h.GetPrompt(ctx, PromptAssetStrategy, nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "assistant", result.Messages[0].Role)
	assert.Contains(t, result.Messages[0].Content.Text, "getSceneState()")

	_, err = h.GetPrompt(ctx, "unknown", nil)
	assert.True(t, mcperrors.IsNotFound(err))
}
