package shared

import (
	"encoding/json"
	"testing"
)

func TestTextContent(t *testing.T) {
	content := NewTextContent("test content")

	if content.GetType() != "text" {
		t.Errorf("Expected type 'text', got '%s'", content.GetType())
	}
	if content.Text != "test content" {
		t.Errorf("Expected text 'test content', got '%s'", content.Text)
	}
}

func TestCapabilities(t *testing.T) {
	capabilities := Capabilities{
		Tools: &ToolsCapability{},
	}

	data, err := json.Marshal(capabilities)
	if err != nil {
		t.Fatalf("Failed to marshal capabilities: %v", err)
	}

	if string(data) != `{"tools":{}}` {
		t.Errorf("Unexpected capabilities encoding: %s", data)
	}
}

func TestPromptArgumentsAlwaysEncoded(t *testing.T) {
	prompt := Prompt{Name: "asset-creation-strategy", Arguments: []PromptArgument{}}

	data, err := json.Marshal(prompt)
	if err != nil {
		t.Fatalf("Failed to marshal prompt: %v", err)
	}

	if string(data) != `{"name":"asset-creation-strategy","arguments":[]}` {
		t.Errorf("Unexpected prompt encoding: %s", data)
	}
}
