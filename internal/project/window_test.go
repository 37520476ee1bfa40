package project

import (
	"encoding/json"
	"testing"

	"github.com/opencode-ai/lace/pkg/types"
)

func textEvent(typ types.EventType, text string) types.Event {
	return types.Event{Type: typ, Data: types.NewTextData(text)}
}

func TestConversationWindow_SystemPromptsAlwaysKept(t *testing.T) {
	w := NewConversationWindow(types.LayerConfig{ConversationHistory: 2})
	events := []types.Event{
		textEvent(types.EventSystemPrompt, "be concise"),
		textEvent(types.EventUserMessage, "1"),
		textEvent(types.EventAgentMessage, "2"),
		textEvent(types.EventUserMessage, "3"),
	}

	msgs := w.Build(events)
	if len(msgs) == 0 || msgs[0].Role != "system" || msgs[0].Content != "be concise" {
		t.Fatalf("expected system prompt first, got %+v", msgs)
	}
}

func TestConversationWindow_WindowsByCount(t *testing.T) {
	w := NewConversationWindow(types.LayerConfig{ConversationHistory: 2})
	events := []types.Event{
		textEvent(types.EventUserMessage, "one"),
		textEvent(types.EventAgentMessage, "two"),
		textEvent(types.EventUserMessage, "three"),
		textEvent(types.EventAgentMessage, "four"),
	}

	msgs := w.Build(events)

	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Content)
	}
	if len(texts) != 3 {
		t.Fatalf("expected a summary message plus the last 2 events, got %+v", texts)
	}
	if texts[len(texts)-2] != "three" || texts[len(texts)-1] != "four" {
		t.Fatalf("expected the most recent 2 events kept verbatim, got %+v", texts)
	}
}

func TestConversationWindow_NeverSplitsToolCallFromResult(t *testing.T) {
	w := NewConversationWindow(types.LayerConfig{ConversationHistory: 1})
	events := []types.Event{
		textEvent(types.EventUserMessage, "do it"),
		{Type: types.EventToolCall, Data: types.EventData{ToolCall: &types.ToolCallData{CallID: "c1", Name: "bash", Args: json.RawMessage(`{}`)}}},
		{Type: types.EventToolResult, Data: types.EventData{ToolResult: &types.ToolResultData{CallID: "c1", Content: []types.ContentBlock{{Type: "text", Text: "done"}}}}},
	}

	msgs := w.Build(events)

	var sawCall, sawResult bool
	for _, m := range msgs {
		if len(m.ToolCalls) > 0 && m.ToolCalls[0].ID == "c1" {
			sawCall = true
		}
		if m.ToolCallID == "c1" {
			sawResult = true
		}
	}
	if !sawCall || !sawResult {
		t.Fatalf("expected the TOOL_CALL/TOOL_RESULT pair for c1 kept together, got %+v", msgs)
	}
}

func TestConversationWindow_LocalSystemMessageExcluded(t *testing.T) {
	w := NewConversationWindow(types.LayerConfig{})
	events := []types.Event{
		textEvent(types.EventLocalSystemMsg, "internal note"),
		textEvent(types.EventUserMessage, "hello"),
	}

	msgs := w.Build(events)
	for _, m := range msgs {
		if m.Content == "internal note" {
			t.Fatal("LOCAL_SYSTEM_MESSAGE must never reach the model")
		}
	}
}

func TestConversationWindow_ErrorResultFallsBackToPlaceholder(t *testing.T) {
	w := NewConversationWindow(types.LayerConfig{})
	events := []types.Event{
		{Type: types.EventToolResult, Data: types.EventData{ToolResult: &types.ToolResultData{CallID: "c1", IsError: true}}},
	}

	msgs := w.Build(events)
	if len(msgs) != 1 || msgs[0].Content != "(tool call failed)" {
		t.Fatalf("expected the error placeholder for an empty failed result, got %+v", msgs)
	}
}

func TestConversationWindow_DefaultsHistorySizeWhenUnset(t *testing.T) {
	w := NewConversationWindow(types.LayerConfig{})
	if w.historySize != DefaultConversationHistory {
		t.Errorf("historySize = %d, want default %d", w.historySize, DefaultConversationHistory)
	}
}

func TestConversationWindow_TokenBudgetTrimsOldestFirst(t *testing.T) {
	w := NewConversationWindow(types.LayerConfig{ConversationHistory: 100})
	w.maxTokens = 5 // force trimming with a tiny budget

	events := []types.Event{
		textEvent(types.EventUserMessage, "this is a fairly long first message"),
		textEvent(types.EventAgentMessage, "short"),
	}

	msgs := w.Build(events)
	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Content)
	}
	foundSummary := false
	for _, txt := range texts {
		if txt != "" && txt[0] == '[' {
			foundSummary = true
		}
	}
	if !foundSummary {
		t.Fatalf("expected a summary message once the token budget forces a trim, got %+v", texts)
	}
	if texts[len(texts)-1] != "short" {
		t.Fatalf("expected the most recent event retained, got %+v", texts)
	}
}
