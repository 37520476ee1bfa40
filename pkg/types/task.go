package types

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskCompleted  TaskStatus = "completed"
	TaskArchived   TaskStatus = "archived"
)

// TaskPriority ranks a Task relative to its siblings.
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// priorityRank orders priorities for sorting: high < medium < low.
var priorityRank = map[TaskPriority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// PriorityRank returns the sort rank of p (lower sorts first). Unknown
// values rank after every known priority.
func PriorityRank(p TaskPriority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Task is a session-scoped unit of work, optionally assigned to an actor.
// A "new:provider/model" spawn spec given on create or update is replaced
// by the spawned thread's id before the task is saved.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Prompt      string       `json:"prompt"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AssignedTo  string       `json:"assignedTo,omitempty"`
	CreatedBy   string       `json:"createdBy"`
	ThreadID    string       `json:"threadId"` // owning session id
	CreatedAt   int64        `json:"createdAt"`
	UpdatedAt   int64        `json:"updatedAt"`
	Notes       []TaskNote   `json:"notes"`
}

// TaskNote is a single timestamped annotation appended to a Task.
type TaskNote struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// TaskPatch describes a partial update to a Task. Pointer/optional fields
// that are nil are left unchanged by UpdateTask. ID, ThreadID, CreatedBy
// and CreatedAt may never be patched.
type TaskPatch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Prompt      *string       `json:"prompt,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
	AssignedTo  *string       `json:"assignedTo,omitempty"`
}

// TaskFilter narrows GetTasks results.
type TaskFilter struct {
	Status     TaskStatus
	Priority   TaskPriority
	AssignedTo string
	CreatedBy  string
}

// TaskListScope selects which tasks ListTasks returns relative to an actor.
type TaskListScope string

const (
	ScopeMine    TaskListScope = "mine"
	ScopeCreated TaskListScope = "created"
	ScopeThread  TaskListScope = "thread"
	ScopeAll     TaskListScope = "all"
)

// TaskSummary counts tasks by status.
type TaskSummary struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Blocked    int `json:"blocked"`
	Completed  int `json:"completed"`
	Archived   int `json:"archived"`
}
