package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/lace/internal/event"
	"github.com/opencode-ai/lace/internal/store"
	"github.com/opencode-ai/lace/internal/task"
)

func newTestTaskManager(t *testing.T) *task.Manager {
	t.Helper()
	st := store.New(t.TempDir())
	return task.New(st, event.NewBus(), nil)
}

func TestNewTaskTool(t *testing.T) {
	tool := NewTaskTool("/tmp", newTestTaskManager(t))
	assert.NotNil(t, tool)
	assert.Equal(t, "task", tool.ID())
	assert.NotEmpty(t, tool.Description())
}

func TestTaskTool_Parameters(t *testing.T) {
	tool := NewTaskTool("/tmp", newTestTaskManager(t))
	params := tool.Parameters()
	assert.NotNil(t, params)

	var schema map[string]any
	err := json.Unmarshal(params, &schema)
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	properties := schema["properties"].(map[string]any)
	assert.Contains(t, properties, "action")
	assert.Contains(t, properties, "prompt")
	assert.Contains(t, properties, "assignedTo")
}

func TestTaskTool_Execute_CreateRequiresTitleAndPrompt(t *testing.T) {
	tool := NewTaskTool("/tmp", newTestTaskManager(t))
	ctx := context.Background()
	toolCtx := &Context{ThreadID: "lace_20260101_abcdef", WorkDir: "/tmp"}

	input := json.RawMessage(`{"action": "create", "prompt": "do the thing"}`)
	_, err := tool.Execute(ctx, input, toolCtx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "title and prompt are required")
}

func TestTaskTool_Execute_CreateAndGet(t *testing.T) {
	tool := NewTaskTool("/tmp", newTestTaskManager(t))
	ctx := context.Background()
	toolCtx := &Context{ThreadID: "lace_20260101_abcdef", Agent: "planner", WorkDir: "/tmp"}

	input := json.RawMessage(`{"action": "create", "title": "write docs", "prompt": "write the docs", "priority": "high"}`)
	result, err := tool.Execute(ctx, input, toolCtx)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.Title, "Created task")

	require.Contains(t, result.Metadata, "task")

	var decoded struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Output), &decoded))
	assert.NotEmpty(t, decoded.ID)

	getInput, _ := json.Marshal(map[string]string{"action": "get", "id": decoded.ID})
	getResult, err := tool.Execute(ctx, getInput, toolCtx)
	require.NoError(t, err)
	assert.Contains(t, getResult.Title, decoded.ID)
}

func TestTaskTool_Execute_List(t *testing.T) {
	tool := NewTaskTool("/tmp", newTestTaskManager(t))
	ctx := context.Background()
	toolCtx := &Context{ThreadID: "lace_20260101_abcdef", WorkDir: "/tmp"}

	create := json.RawMessage(`{"action": "create", "title": "task a", "prompt": "do a"}`)
	_, err := tool.Execute(ctx, create, toolCtx)
	require.NoError(t, err)

	list := json.RawMessage(`{"action": "list"}`)
	result, err := tool.Execute(ctx, list, toolCtx)
	require.NoError(t, err)
	assert.Contains(t, result.Title, "1 tasks")
}

func TestTaskTool_Execute_UnknownAction(t *testing.T) {
	tool := NewTaskTool("/tmp", newTestTaskManager(t))
	ctx := context.Background()
	toolCtx := &Context{ThreadID: "lace_20260101_abcdef", WorkDir: "/tmp"}

	input := json.RawMessage(`{"action": "frobnicate"}`)
	_, err := tool.Execute(ctx, input, toolCtx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestTaskTool_EinoTool(t *testing.T) {
	tool := NewTaskTool("/tmp", newTestTaskManager(t))
	einoTool := tool.EinoTool()
	assert.NotNil(t, einoTool)
}
