package chatmodel

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestConvertMessagesIncludesSystemAndToolCalls(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{{ID: "1", Name: "search", Arguments: json.RawMessage(`{"q":"go"}`)}}},
		{Role: RoleTool, Content: "result", ToolCallID: "1"},
	}
	out := convertMessages(msgs, "be helpful")
	if len(out) != 4 {
		t.Fatalf("expected 4 messages (system + 3), got %d", len(out))
	}
	if out[0].Role != "system" || out[0].Content != "be helpful" {
		t.Fatalf("expected leading system message, got %+v", out[0])
	}
	if len(out[2].ToolCalls) != 1 || out[2].ToolCalls[0].Function.Name != "search" {
		t.Fatalf("expected tool call preserved, got %+v", out[2])
	}
	if out[3].ToolCallID != "1" {
		t.Fatalf("expected tool_call_id preserved, got %+v", out[3])
	}
}

func TestConvertToolsFallsBackOnInvalidSchema(t *testing.T) {
	tools := []ToolSpec{{Name: "broken", Description: "d", Parameters: json.RawMessage(`not json`)}}
	out := convertTools(tools)
	if len(out) != 1 || out[0].Function.Name != "broken" {
		t.Fatalf("expected tool preserved with fallback schema, got %+v", out)
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{errors.New("429 rate limit exceeded"), true},
		{errors.New("503 service unavailable"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("invalid api key"), false},
	}
	for _, c := range cases {
		if got := isRetryableError(c.err); got != c.retryable {
			t.Errorf("isRetryableError(%q) = %v, want %v", c.err, got, c.retryable)
		}
	}
}

func TestAnthropicConvertMessagesSkipsSystemRole(t *testing.T) {
	p := &AnthropicProvider{}
	msgs := []Message{
		{Role: RoleSystem, Content: "ignored"},
		{Role: RoleUser, Content: "hi"},
	}
	out, err := p.convertMessages(msgs)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected system message skipped, got %d messages", len(out))
	}
}

func TestAnthropicConvertToolsRejectsInvalidSchema(t *testing.T) {
	p := &AnthropicProvider{}
	_, err := p.convertTools([]ToolSpec{{Name: "t", Parameters: json.RawMessage(`not json`)}})
	if err == nil {
		t.Fatal("expected error for invalid tool schema")
	}
}

func TestNewOpenAIProviderWithoutKeyErrorsOnChat(t *testing.T) {
	p := NewOpenAIProvider("")
	if p.Name() != "openai" {
		t.Fatalf("unexpected name: %s", p.Name())
	}
	_, err := p.Chat(nil, Request{}) //nolint:staticcheck // nil ctx acceptable: client is nil, returns before use
	if err == nil {
		t.Fatal("expected error when api key is not configured")
	}
}

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected error when api key is empty")
	}
}
