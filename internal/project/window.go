package project

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/lace/internal/provider"
	"github.com/opencode-ai/lace/pkg/types"
)

// DefaultConversationHistory bounds the number of non-system events kept
// verbatim when a LayerConfig does not set ConversationHistory.
const DefaultConversationHistory = 40

// DefaultMaxContextTokens is the rough token budget a window falls back
// to trimming against, grounded on the teacher's compaction threshold.
const DefaultMaxContextTokens = 150000

// ConversationWindow turns a thread's event log into the Message slice a
// provider.CompletionRequest needs, applying the session's retention
// policy: system prompts are always kept, the most recent N events are
// kept verbatim without splitting a TOOL_CALL from its TOOL_RESULT, and
// anything older is replaced by a single system message that states how
// many events were left out (their content is not summarized).
type ConversationWindow struct {
	historySize int
	maxTokens   int
}

// NewConversationWindow builds a ConversationWindow from a session's
// effective LayerConfig.
func NewConversationWindow(cfg types.LayerConfig) *ConversationWindow {
	history := cfg.ConversationHistory
	if history <= 0 {
		history = DefaultConversationHistory
	}
	return &ConversationWindow{
		historySize: history,
		maxTokens:   DefaultMaxContextTokens,
	}
}

// Build converts events into provider Messages, applying the window's
// retention policy. Events must be in ascending timestamp/seq order, as
// returned by thread.Manager.GetEvents / GetMainAndDelegateEvents.
func (w *ConversationWindow) Build(events []types.Event) []provider.Message {
	var system []types.Event
	var rest []types.Event
	for _, e := range events {
		switch e.Type {
		case types.EventSystemPrompt, types.EventUserSystemPrompt:
			system = append(system, e)
		case types.EventLocalSystemMsg:
			// local-only annotation, never sent to the model
		default:
			rest = append(rest, e)
		}
	}

	kept, dropped := windowByCount(rest, w.historySize)
	kept, dropped = windowByTokenBudget(kept, dropped, w.maxTokens)

	messages := make([]provider.Message, 0, len(system)+len(kept)+1)
	for _, e := range system {
		messages = append(messages, eventToMessage(e))
	}
	if len(dropped) > 0 {
		messages = append(messages, provider.Message{
			Role:    "system",
			Content: fmt.Sprintf("[%d earlier events summarized to fit the context window]", len(dropped)),
		})
	}
	for _, e := range kept {
		messages = append(messages, eventToMessage(e))
	}
	return messages
}

// windowByCount keeps the last n events of rest without splitting a
// TOOL_CALL from its matching TOOL_RESULT: if the count-based cut would
// land between the two, the cut is pushed earlier to keep both, or the
// orphaned TOOL_CALL is dropped along with its pair if the result itself
// already fell outside the window.
func windowByCount(rest []types.Event, n int) (kept, dropped []types.Event) {
	if n <= 0 || len(rest) <= n {
		return rest, nil
	}

	cut := len(rest) - n

	// A TOOL_RESULT at or after cut whose TOOL_CALL sits before cut needs
	// its call pulled into the kept window too.
	keptCallIDs := make(map[string]bool)
	for _, e := range rest[cut:] {
		if e.Type == types.EventToolResult && e.Data.ToolResult != nil {
			keptCallIDs[e.Data.ToolResult.CallID] = true
		}
	}

	var pulled []types.Event
	for i := 0; i < cut; i++ {
		e := rest[i]
		if e.Type == types.EventToolCall && e.Data.ToolCall != nil && keptCallIDs[e.Data.ToolCall.CallID] {
			pulled = append(pulled, e)
			continue
		}
		dropped = append(dropped, e)
	}
	kept = append(pulled, rest[cut:]...)
	return kept, dropped
}

// windowByTokenBudget further trims the oldest kept events if their
// estimated token count still exceeds maxTokens, moving them into
// dropped. Estimation is a rough len(text)/4 heuristic, the same order
// of magnitude the teacher's compaction check used.
func windowByTokenBudget(kept, dropped []types.Event, maxTokens int) ([]types.Event, []types.Event) {
	total := 0
	for _, e := range kept {
		total += estimateTokens(e)
	}
	if total <= maxTokens {
		return kept, dropped
	}

	i := 0
	for total > maxTokens && i < len(kept) {
		total -= estimateTokens(kept[i])
		dropped = append(dropped, kept[i])
		i++
	}
	return kept[i:], dropped
}

func estimateTokens(e types.Event) int {
	n := len(e.Data.Text)
	if e.Data.ToolCall != nil {
		n += len(e.Data.ToolCall.Args) + len(e.Data.ToolCall.Name)
	}
	if e.Data.ToolResult != nil {
		for _, c := range e.Data.ToolResult.Content {
			n += len(c.Text)
		}
	}
	return n/4 + 1
}

func eventToMessage(e types.Event) provider.Message {
	switch e.Type {
	case types.EventSystemPrompt, types.EventUserSystemPrompt:
		return provider.Message{Role: "system", Content: e.Data.Text}
	case types.EventUserMessage:
		return provider.Message{Role: "user", Content: e.Data.Text}
	case types.EventAgentMessage:
		return provider.Message{Role: "assistant", Content: e.Data.Text}
	case types.EventToolCall:
		tc := e.Data.ToolCall
		if tc == nil {
			return provider.Message{Role: "assistant"}
		}
		return provider.Message{
			Role: "assistant",
			ToolCalls: []provider.ToolCallInfo{{
				ID:        tc.CallID,
				Name:      tc.Name,
				Arguments: string(tc.Args),
			}},
		}
	case types.EventToolResult:
		tr := e.Data.ToolResult
		if tr == nil {
			return provider.Message{Role: "tool"}
		}
		var b strings.Builder
		for i, c := range tr.Content {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(c.Text)
		}
		content := b.String()
		if tr.IsError && content == "" {
			content = "(tool call failed)"
		}
		return provider.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: tr.CallID,
		}
	default:
		return provider.Message{Role: "system", Content: e.Data.Text}
	}
}
