package event

import "github.com/opencode-ai/lace/pkg/types"

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData is the data for session.updated events.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	Info *types.Session `json:"info"`
}

// ThreadCreatedData is the data for thread.created events.
type ThreadCreatedData struct {
	Thread *types.Thread `json:"thread"`
}

// ThreadEventAppendedData is the data for thread.event_appended events,
// published after ThreadStore.AppendEvent persists a new Event. Agents
// and any session-attached observers subscribe to this to react to
// newly written turns without polling storage.
type ThreadEventAppendedData struct {
	ThreadID string      `json:"threadId"`
	Event    types.Event `json:"event"`
}

// TaskCreatedData is the data for task.created events.
type TaskCreatedData struct {
	Task *types.Task `json:"task"`
}

// TaskUpdatedData is the data for task.updated events.
type TaskUpdatedData struct {
	Task *types.Task `json:"task"`
}

// TaskNoteAddedData is the data for task.note_added events.
type TaskNoteAddedData struct {
	TaskID string         `json:"taskId"`
	Note   types.TaskNote `json:"note"`
}

// FileEditedData is the data for file.edited events.
type FileEditedData struct {
	File string `json:"file"`
}

// ApprovalRequiredData is the data for approval.required events, raised
// by the approval broker when a tool call needs a human decision.
type ApprovalRequiredData struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	ToolName string   `json:"toolName"`
	Pattern  []string `json:"pattern,omitempty"`
	Title    string   `json:"title"`
}

// ApprovalResolvedData is the data for approval.resolved events.
type ApprovalResolvedData struct {
	ApprovalID string `json:"approvalId"`
	ThreadID   string `json:"threadId"`
	Decision   string `json:"decision"` // "allow_once" | "allow_session" | "deny"
}

// AgentStateChangedData is the data for agent.state_changed events,
// published on every transition of the turn state machine (spec C6).
type AgentStateChangedData struct {
	ThreadID string `json:"threadId"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// ProjectConfigChangedData is the data for project.config_changed events,
// published whenever the on-disk project config file is created, written,
// or removed. Subscribers should re-resolve any cached effective config
// rather than assume the new contents are already reflected elsewhere.
type ProjectConfigChangedData struct {
	ProjectID string `json:"projectId"`
	Path      string `json:"path"`
}
