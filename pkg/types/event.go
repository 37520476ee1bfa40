// Package types defines the core data model shared across the Lace agent
// runtime: events, threads, tasks, and configuration records.
package types

import "encoding/json"

// EventType discriminates the payload carried by an Event.
type EventType string

const (
	EventUserMessage      EventType = "USER_MESSAGE"
	EventAgentMessage     EventType = "AGENT_MESSAGE"
	EventToolCall         EventType = "TOOL_CALL"
	EventToolResult       EventType = "TOOL_RESULT"
	EventLocalSystemMsg   EventType = "LOCAL_SYSTEM_MESSAGE"
	EventSystemPrompt     EventType = "SYSTEM_PROMPT"
	EventUserSystemPrompt EventType = "USER_SYSTEM_PROMPT"
)

// Event is the immutable unit of thread history. Data holds a tagged
// payload whose meaningful fields depend on Type; it always marshals as a
// JSON object, with message bodies under "text".
type Event struct {
	ID        int64     `json:"id"`
	ThreadID  string    `json:"threadId"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // unix millis
	Data      EventData `json:"data"`
}

// EventData is the tagged payload of an Event. Only the fields below that
// belong to the given Event.Type are set.
type EventData struct {
	// Text carries the message body for USER_MESSAGE, AGENT_MESSAGE,
	// LOCAL_SYSTEM_MESSAGE, SYSTEM_PROMPT, USER_SYSTEM_PROMPT events.
	Text string `json:"text,omitempty"`

	// ToolCall carries the payload for TOOL_CALL events.
	ToolCall *ToolCallData `json:"toolCall,omitempty"`

	// ToolResult carries the payload for TOOL_RESULT events.
	ToolResult *ToolResultData `json:"toolResult,omitempty"`
}

// ToolCallData is the structured payload of a TOOL_CALL event.
type ToolCallData struct {
	CallID string          `json:"callId"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args"`
}

// ToolResultData is the structured payload of a TOOL_RESULT event.
type ToolResultData struct {
	CallID   string         `json:"callId"`
	IsError  bool           `json:"isError"`
	Content  []ContentBlock `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ContentBlock is one piece of a tool Result's content array.
type ContentBlock struct {
	Type string `json:"type"` // "text" (only variant currently produced)
	Text string `json:"text"`
}

// NewTextData builds an EventData carrying plain text, for message-shaped
// event types (USER_MESSAGE, AGENT_MESSAGE, LOCAL_SYSTEM_MESSAGE, ...).
func NewTextData(text string) EventData {
	return EventData{Text: text}
}
