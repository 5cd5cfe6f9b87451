package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/threejs-mcp-server/internal/domain/shared"
	mcperrors "github.com/FreePeak/threejs-mcp-server/internal/domain/shared/errors"
	"github.com/FreePeak/threejs-mcp-server/internal/testutil"
)

type stubTools struct {
	calls []string
	err   error
}

func (s *stubTools) ListTools(ctx context.Context) ([]shared.Tool, error) {
	return []shared.Tool{{Name: "echo", InputSchema: map[string]interface{}{"type": "object"}}}, nil
}

func (s *stubTools) CallTool(ctx context.Context, name string, args map[string]interface{}) (*shared.CallToolResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, name)
	return &shared.CallToolResult{Content: []shared.Content{shared.NewTextContent("sent")}}, nil
}

type stubPrompts struct{}

func (stubPrompts) ListPrompts(ctx context.Context) ([]shared.Prompt, error) {
	return []shared.Prompt{{Name: "strategy", Arguments: []shared.PromptArgument{}}}, nil
}

func (stubPrompts) GetPrompt(ctx context.Context, name string, args map[string]string) (*shared.GetPromptResult, error) {
	if name != "strategy" {
		return nil, mcperrors.NewNotFoundError("unknown prompt "+name, nil)
	}
	return &shared.GetPromptResult{Messages: []shared.PromptMessage{{Role: "assistant", Content: shared.NewTextContent("hi")}}}, nil
}

func request(id interface{}, method string, params interface{}) shared.JSONRPCRequest {
	var raw json.RawMessage
	if params != nil {
		raw, _ = json.Marshal(params)
	}
	return shared.JSONRPCRequest{JSONRPC: shared.JSONRPCVersion, ID: id, Method: method, Params: raw}
}

func startServer(t *testing.T) (*Server, *testutil.MockTransport, *stubTools) {
	t.Helper()
	tools := &stubTools{}
	srv := NewServer("threejs_mcp_server", "1.0.0").
		WithToolHandler(tools).
		WithPromptHandler(stubPrompts{})
	mt := testutil.NewMockTransport()
	require.NoError(t, srv.Connect(mt))
	require.NoError(t, srv.Start(context.Background()))
	return srv, mt, tools
}

func initialize(t *testing.T, mt *testutil.MockTransport) {
	t.Helper()
	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(0, shared.MethodInitialize, map[string]interface{}{
		"protocolVersion": shared.ProtocolVersion,
		"clientInfo":      map[string]string{"name": "test", "version": "0"},
	})))
}

func TestServerCreation(t *testing.T) {
	srv := NewServer("test-server", "1.0.0")

	assert.Equal(t, "test-server", srv.info.Name)
	assert.Equal(t, "1.0.0", srv.info.Version)
	assert.Nil(t, srv.toolHandler)
	assert.Nil(t, srv.promptHandler)
	assert.Nil(t, srv.capabilities.Tools)
}

func TestStartWithoutTransport(t *testing.T) {
	srv := NewServer("test-server", "1.0.0")
	assert.Error(t, srv.Start(context.Background()))
	assert.NoError(t, srv.Stop())
}

func TestInitialize(t *testing.T) {
	srv, mt, _ := startServer(t)
	srv.WithInstructions("check the scene first")
	assert.True(t, mt.IsStartCalled())

	initialize(t, mt)

	resp, ok := mt.LastResponse()
	require.True(t, ok)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 0, resp.ID)

	result, ok := resp.Result.(shared.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, shared.ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "threejs_mcp_server", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
	assert.NotNil(t, result.Capabilities.Prompts)
	assert.Equal(t, "check the scene first", result.Instructions)
}

func TestRequestBeforeInitialize(t *testing.T) {
	_, mt, tools := startServer(t)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request("a", shared.MethodCallTool, map[string]interface{}{"name": "echo"})))

	resp, ok := mt.LastResponse()
	require.True(t, ok)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.InvalidRequest), resp.Error.Code)
	assert.Equal(t, "a", resp.ID)
	assert.Empty(t, tools.calls)
}

func TestNotificationsGetNoResponse(t *testing.T) {
	_, mt, _ := startServer(t)
	initialize(t, mt)
	before := len(mt.GetMessages())

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), shared.JSONRPCNotification{
		JSONRPC: shared.JSONRPCVersion,
		Method:  "notifications/initialized",
	}))
	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(5, "notifications/cancelled", nil)))
	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), shared.JSONRPCResponse{JSONRPC: shared.JSONRPCVersion, ID: 9}))

	assert.Len(t, mt.GetMessages(), before)
}

func TestPingAndShutdown(t *testing.T) {
	_, mt, _ := startServer(t)
	initialize(t, mt)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(1, shared.MethodPing, nil)))
	resp, _ := mt.LastResponse()
	assert.Nil(t, resp.Error)
	assert.Equal(t, struct{}{}, resp.Result)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(2, shared.MethodShutdown, nil)))
	resp, _ = mt.LastResponse()
	assert.Nil(t, resp.Error)

	// After shutdown the session must be initialized again.
	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(3, shared.MethodPing, nil)))
	resp, _ = mt.LastResponse()
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.InvalidRequest), resp.Error.Code)
}

func TestToolsListAndCall(t *testing.T) {
	_, mt, tools := startServer(t)
	initialize(t, mt)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(1, shared.MethodListTools, nil)))
	resp, _ := mt.LastResponse()
	list, ok := resp.Result.(shared.ListToolsResult)
	require.True(t, ok)
	require.Len(t, list.Tools, 1)
	assert.Equal(t, "echo", list.Tools[0].Name)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(2, shared.MethodCallTool, map[string]interface{}{
		"name":      "echo",
		"arguments": map[string]interface{}{"x": 1},
	})))
	resp, _ = mt.LastResponse()
	result, ok := resp.Result.(*shared.CallToolResult)
	require.True(t, ok)
	assert.Equal(t, shared.NewTextContent("sent"), result.Content[0])
	assert.Equal(t, []string{"echo"}, tools.calls)
}

func TestCallToolInvalidParams(t *testing.T) {
	_, mt, _ := startServer(t)
	initialize(t, mt)

	req := shared.JSONRPCRequest{
		JSONRPC: shared.JSONRPCVersion,
		ID:      7,
		Method:  shared.MethodCallTool,
		Params:  json.RawMessage(`{"name": 12}`),
	}
	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), req))

	resp, _ := mt.LastResponse()
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.InvalidParams), resp.Error.Code)
}

func TestHandlerErrorsMapToJSONRPC(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    shared.ErrorCode
		message string
	}{
		{"not found", mcperrors.NewNotFoundError("thing", nil), shared.InvalidParams, "Not found: thing"},
		{"invalid input", mcperrors.NewInvalidInputError("bad", nil), shared.InvalidParams, "Invalid input: bad"},
		{"unavailable", mcperrors.NewUnavailableError("no viewer", nil), shared.ServerError, "Unavailable: no viewer"},
		{"internal", mcperrors.NewInternalError("boom", nil), shared.InternalError, "Internal error: boom"},
		{"foreign", assert.AnError, shared.InternalError, "Internal error: " + assert.AnError.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mt, tools := startServer(t)
			tools.err = tt.err
			initialize(t, mt)

			require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(1, shared.MethodCallTool, map[string]interface{}{"name": "echo"})))
			resp, _ := mt.LastResponse()
			require.NotNil(t, resp.Error)
			assert.Equal(t, int(tt.code), resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestPrompts(t *testing.T) {
	_, mt, _ := startServer(t)
	initialize(t, mt)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(1, shared.MethodListPrompts, nil)))
	resp, _ := mt.LastResponse()
	list, ok := resp.Result.(shared.ListPromptsResult)
	require.True(t, ok)
	assert.Equal(t, "strategy", list.Prompts[0].Name)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(2, shared.MethodGetPrompt, map[string]interface{}{"name": "strategy"})))
	resp, _ = mt.LastResponse()
	assert.Nil(t, resp.Error)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(3, shared.MethodGetPrompt, map[string]interface{}{"name": "nope"})))
	resp, _ = mt.LastResponse()
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.InvalidParams), resp.Error.Code)
}

func TestUnknownAndCustomMethods(t *testing.T) {
	srv, mt, _ := startServer(t)
	srv.SetRequestHandler("scene/status", func(ctx context.Context, params []byte) (interface{}, error) {
		return map[string]bool{"ok": true}, nil
	})
	initialize(t, mt)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(1, "resources/list", nil)))
	resp, _ := mt.LastResponse()
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.MethodNotFound), resp.Error.Code)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(2, "scene/status", nil)))
	resp, _ = mt.LastResponse()
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]bool{"ok": true}, resp.Result)
}

func TestToolsNotSupported(t *testing.T) {
	srv := NewServer("bare", "0")
	mt := testutil.NewMockTransport()
	require.NoError(t, srv.Connect(mt))
	require.NoError(t, srv.Start(context.Background()))
	initialize(t, mt)

	require.NoError(t, mt.SimulateIncomingMessage(context.Background(), request(1, shared.MethodListTools, nil)))
	resp, _ := mt.LastResponse()
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.MethodNotFound), resp.Error.Code)
}

func TestStopClosesTransport(t *testing.T) {
	srv, mt, _ := startServer(t)

	require.NoError(t, srv.Stop())
	assert.True(t, mt.IsCloseCalled())
	select {
	case <-srv.Done():
	default:
		t.Fatal("expected Done to be closed after Stop")
	}
}
