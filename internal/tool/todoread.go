package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
)

const todoreadDescription = `Use this tool to read your todo list`

// TodoReadTool reads the calling thread's current scratch todo list.
type TodoReadTool struct {
	workDir string
	todos   *TodoStore
}

// NewTodoReadTool creates a new todoread tool.
func NewTodoReadTool(workDir string, todos *TodoStore) *TodoReadTool {
	return &TodoReadTool{workDir: workDir, todos: todos}
}

func (t *TodoReadTool) ID() string          { return "todoread" }
func (t *TodoReadTool) Description() string { return todoreadDescription }

func (t *TodoReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {},
		"required": []
	}`)
}

func (t *TodoReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	todos := t.todos.Get(toolCtx.ThreadID)

	nonCompleted := 0
	for _, todo := range todos {
		if todo.Status != "completed" {
			nonCompleted++
		}
	}

	output, _ := json.MarshalIndent(todos, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d todos", nonCompleted),
		Output: string(output),
		Metadata: map[string]any{
			"todos": todos,
		},
	}, nil
}

func (t *TodoReadTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
