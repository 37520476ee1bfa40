package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/lace/internal/task"
	"github.com/opencode-ai/lace/pkg/types"
)

const taskDescription = `Create, update, and inspect tasks shared across the current session.

Tasks are how work gets handed off: to yourself for later, to a delegate
agent, or to a human. Assigning a task to "new:PROVIDER/MODEL" (e.g.
"new:anthropic/claude-sonnet-4-20250514") spawns a new delegate agent that
starts work on it immediately.

Actions:
- create: make a new task (title, prompt required; description, priority, assignedTo optional)
- update: patch an existing task's status/priority/assignedTo/title/description
- list: list tasks in this session (scope: thread, mine, created, all)
- note: append a note to a task's history
- get: fetch one task by id`

// TaskTool exposes TaskManager (spec C7) operations to the agent.
type TaskTool struct {
	workDir string
	manager *task.Manager
}

// NewTaskTool creates a new task tool backed by manager.
func NewTaskTool(workDir string, manager *task.Manager) *TaskTool {
	return &TaskTool{workDir: workDir, manager: manager}
}

func (t *TaskTool) ID() string          { return "task" }
func (t *TaskTool) Description() string { return taskDescription }

func (t *TaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"description": "One of: create, update, list, note, get",
				"enum": ["create", "update", "list", "note", "get"]
			},
			"id": {
				"type": "string",
				"description": "Task id, required for update/note/get"
			},
			"title": {
				"type": "string",
				"description": "Task title, required for create"
			},
			"description": {
				"type": "string",
				"description": "Longer description of the task"
			},
			"prompt": {
				"type": "string",
				"description": "The prompt a delegate agent would receive, required for create"
			},
			"priority": {
				"type": "string",
				"description": "high, medium, or low",
				"enum": ["high", "medium", "low"]
			},
			"status": {
				"type": "string",
				"description": "pending, in_progress, blocked, completed, or archived"
			},
			"assignedTo": {
				"type": "string",
				"description": "An actor name, or \"new:PROVIDER/MODEL\" to spawn a delegate"
			},
			"scope": {
				"type": "string",
				"description": "For action=list: thread, mine, created, or all"
			},
			"includeCompleted": {
				"type": "boolean",
				"description": "For action=list: include completed tasks (archived tasks are always listed)"
			},
			"note": {
				"type": "string",
				"description": "For action=note: the note content"
			}
		},
		"required": ["action"]
	}`)
}

// TaskInput represents the input for the task tool.
type TaskInput struct {
	Action           string  `json:"action"`
	ID               string  `json:"id,omitempty"`
	Title            string  `json:"title,omitempty"`
	Description      string  `json:"description,omitempty"`
	Prompt           string  `json:"prompt,omitempty"`
	Priority         string  `json:"priority,omitempty"`
	Status           string  `json:"status,omitempty"`
	AssignedTo       *string `json:"assignedTo,omitempty"`
	Scope            string  `json:"scope,omitempty"`
	IncludeCompleted bool    `json:"includeCompleted,omitempty"`
	Note             string  `json:"note,omitempty"`
}

func (t *TaskTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params TaskInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	actor := ActorContext(toolCtx)

	switch params.Action {
	case "create":
		if params.Title == "" || params.Prompt == "" {
			return nil, fmt.Errorf("title and prompt are required to create a task")
		}
		req := task.CreateRequest{
			Title:       params.Title,
			Description: params.Description,
			Prompt:      params.Prompt,
			Priority:    types.TaskPriority(params.Priority),
		}
		if params.AssignedTo != nil {
			req.AssignedTo = *params.AssignedTo
		}
		created, err := t.manager.CreateTask(ctx, toolCtx.ThreadID, req, actor)
		if err != nil {
			return nil, err
		}
		return taskResult(fmt.Sprintf("Created task %s", created.ID), created)

	case "update":
		if params.ID == "" {
			return nil, fmt.Errorf("id is required to update a task")
		}
		patch := types.TaskPatch{}
		if params.Title != "" {
			patch.Title = &params.Title
		}
		if params.Description != "" {
			patch.Description = &params.Description
		}
		if params.Priority != "" {
			p := types.TaskPriority(params.Priority)
			patch.Priority = &p
		}
		if params.Status != "" {
			s := types.TaskStatus(params.Status)
			patch.Status = &s
		}
		if params.AssignedTo != nil {
			patch.AssignedTo = params.AssignedTo
		}
		updated, err := t.manager.UpdateTask(ctx, toolCtx.ThreadID, params.ID, patch)
		if err != nil {
			return nil, err
		}
		return taskResult(fmt.Sprintf("Updated task %s", updated.ID), updated)

	case "note":
		if params.ID == "" || params.Note == "" {
			return nil, fmt.Errorf("id and note are required to add a note")
		}
		updated, err := t.manager.AddNote(ctx, toolCtx.ThreadID, params.ID, actor.Actor, params.Note)
		if err != nil {
			return nil, err
		}
		return taskResult(fmt.Sprintf("Added note to task %s", updated.ID), updated)

	case "get":
		if params.ID == "" {
			return nil, fmt.Errorf("id is required")
		}
		found, err := t.manager.GetTaskByID(ctx, toolCtx.ThreadID, params.ID)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return &Result{Title: "Task not found", Output: fmt.Sprintf("no task %s in this session", params.ID)}, nil
		}
		return taskResult(fmt.Sprintf("Task %s", found.ID), found)

	case "list", "":
		scope := types.TaskListScope(params.Scope)
		tasks, err := t.manager.ListTasks(ctx, toolCtx.ThreadID, scope, params.IncludeCompleted, actor)
		if err != nil {
			return nil, err
		}
		return taskResult(fmt.Sprintf("%d tasks", len(tasks)), tasks)

	default:
		return nil, fmt.Errorf("unknown action %q", params.Action)
	}
}

func taskResult(title string, payload any) (*Result, error) {
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal task result: %w", err)
	}
	return &Result{
		Title:  title,
		Output: string(out),
		Metadata: map[string]any{
			"task": payload,
		},
	}, nil
}

// ActorContext derives a task.ActorContext from a tool call's Context.
func ActorContext(toolCtx *Context) task.ActorContext {
	if toolCtx.Agent != "" {
		return task.ActorContext{Actor: toolCtx.Agent}
	}
	return task.ActorContext{Actor: toolCtx.ThreadID}
}

func (t *TaskTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
