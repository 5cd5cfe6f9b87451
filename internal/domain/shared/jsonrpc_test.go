package shared

import (
	"encoding/json"
	"testing"
)

func TestJSONRPCRequestUnmarshal(t *testing.T) {
	jsonData := `{
		"jsonrpc": "2.0",
		"id": 1,
		"method": "tools/call",
		"params": {"name": "addObject"}
	}`

	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(jsonData), &req); err != nil {
		t.Fatalf("Failed to unmarshal request: %v", err)
	}

	if req.JSONRPC != "2.0" {
		t.Errorf("Expected JSONRPC to be '2.0', got '%s'", req.JSONRPC)
	}

	if req.ID != float64(1) {
		t.Errorf("Expected ID to be 1, got '%v'", req.ID)
	}

	if req.Method != MethodCallTool {
		t.Errorf("Expected Method to be 'tools/call', got '%s'", req.Method)
	}

	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		t.Fatalf("Failed to unmarshal params: %v", err)
	}
	if params.Name != "addObject" {
		t.Errorf("Expected name to be 'addObject', got '%s'", params.Name)
	}
}

func TestJSONRPCResponseMarshal(t *testing.T) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      "abc",
		Result: CallToolResult{
			Content: []Content{NewTextContent("sent")},
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	want := `{"jsonrpc":"2.0","id":"abc","result":{"content":[{"type":"text","text":"sent"}]}}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantReq   bool
		wantNotif bool
		wantResp  bool
		wantErr   bool
	}{
		{name: "request", input: `{"jsonrpc":"2.0","id":7,"method":"ping"}`, wantReq: true},
		{name: "string id request", input: `{"jsonrpc":"2.0","id":"a","method":"ping"}`, wantReq: true},
		{name: "notification", input: `{"jsonrpc":"2.0","method":"notifications/initialized"}`, wantNotif: true},
		{name: "null id is a notification", input: `{"jsonrpc":"2.0","id":null,"method":"notifications/cancelled"}`, wantNotif: true},
		{name: "response", input: `{"jsonrpc":"2.0","id":1,"result":{}}`, wantResp: true},
		{name: "bad version", input: `{"jsonrpc":"1.0","id":1,"method":"ping"}`, wantErr: true},
		{name: "not json", input: `{nope`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.IsRequest() != tt.wantReq {
				t.Errorf("IsRequest = %v, want %v", msg.IsRequest(), tt.wantReq)
			}
			if msg.IsNotification() != tt.wantNotif {
				t.Errorf("IsNotification = %v, want %v", msg.IsNotification(), tt.wantNotif)
			}
			if msg.IsResponse() != tt.wantResp {
				t.Errorf("IsResponse = %v, want %v", msg.IsResponse(), tt.wantResp)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	if ErrorMessage(MethodNotFound) != "Method not found" {
		t.Errorf("unexpected message for MethodNotFound: %s", ErrorMessage(MethodNotFound))
	}
	if ErrorMessage(ErrorCode(1)) != "Unknown error" {
		t.Errorf("unexpected message for unknown code: %s", ErrorMessage(ErrorCode(1)))
	}
}
