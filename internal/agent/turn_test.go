package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/opencode-ai/lace/internal/approval"
	"github.com/opencode-ai/lace/internal/event"
	"github.com/opencode-ai/lace/internal/provider"
	"github.com/opencode-ai/lace/internal/store"
	"github.com/opencode-ai/lace/internal/thread"
	"github.com/opencode-ai/lace/internal/tool"
	"github.com/opencode-ai/lace/pkg/types"
)

// fakeStream replays a fixed chunk sequence, satisfying chunkStream
// without a real Eino stream reader.
type fakeStream struct {
	chunks []provider.Chunk
	i      int
}

func (f *fakeStream) Next() (*provider.Chunk, error) {
	if f.i >= len(f.chunks) {
		return nil, errors.New("fakeStream: read past end")
	}
	c := f.chunks[f.i]
	f.i++
	return &c, nil
}

func newTestAgent(t *testing.T) (*Agent, *thread.Manager, string) {
	t.Helper()
	st := store.New(t.TempDir())
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })
	threads := thread.New(st, bus)

	th, err := threads.CreateThread(context.Background(), "session-1", types.ThreadMetadata{Name: "main"})
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	registry := tool.NewRegistry(t.TempDir())
	executor := tool.NewExecutor(registry, approval.NewBroker(bus))

	def := BuiltInAgents()["build"]
	a := New(th.ID, def, nil, "gpt-test", executor, nil, threads, nil, bus)
	return a, threads, th.ID
}

func TestDrainStream_TextOnly(t *testing.T) {
	a, _, _ := newTestAgent(t)

	fs := &fakeStream{chunks: []provider.Chunk{
		{Type: provider.ChunkTextDelta, Text: "hello "},
		{Type: provider.ChunkTextDelta, Text: "world"},
		{Type: provider.ChunkEnd, Usage: provider.Usage{InputTokens: 10, OutputTokens: 2}},
	}}

	text, calls, usage, err := a.drainStream(fs)
	if err != nil {
		t.Fatalf("drainStream failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
	if len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	if usage.InputTokens != 10 || usage.OutputTokens != 2 {
		t.Errorf("usage = %+v, want {10 2}", usage)
	}
}

func TestDrainStream_AccumulatesToolCallAcrossDeltas(t *testing.T) {
	a, _, _ := newTestAgent(t)

	fs := &fakeStream{chunks: []provider.Chunk{
		{Type: provider.ChunkToolCallStart, ToolCallID: "call-1", ToolName: "bash"},
		{Type: provider.ChunkToolCallDelta, ToolCallID: "call-1", ArgDelta: `{"command":`},
		{Type: provider.ChunkToolCallDelta, ToolCallID: "call-1", ArgDelta: `"ls"}`},
		{Type: provider.ChunkEnd},
	}}

	text, calls, _, err := a.drainStream(fs)
	if err != nil {
		t.Fatalf("drainStream failed: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
	if len(calls) != 1 {
		t.Fatalf("calls = %v, want 1", calls)
	}
	if calls[0].ID != "call-1" || calls[0].Name != "bash" {
		t.Errorf("call = %+v, want id=call-1 name=bash", calls[0])
	}
	if calls[0].Arguments != `{"command":"ls"}` {
		t.Errorf("arguments = %q, want %q", calls[0].Arguments, `{"command":"ls"}`)
	}
}

func TestDrainStream_MultipleToolCallsPreserveOrder(t *testing.T) {
	a, _, _ := newTestAgent(t)

	fs := &fakeStream{chunks: []provider.Chunk{
		{Type: provider.ChunkToolCallStart, ToolCallID: "call-a", ToolName: "read"},
		{Type: provider.ChunkToolCallDelta, ToolCallID: "call-a", ArgDelta: `{}`},
		{Type: provider.ChunkToolCallStart, ToolCallID: "call-b", ToolName: "grep"},
		{Type: provider.ChunkToolCallDelta, ToolCallID: "call-b", ArgDelta: `{}`},
		{Type: provider.ChunkEnd},
	}}

	_, calls, _, err := a.drainStream(fs)
	if err != nil {
		t.Fatalf("drainStream failed: %v", err)
	}
	if len(calls) != 2 || calls[0].ID != "call-a" || calls[1].ID != "call-b" {
		t.Fatalf("calls = %+v, want [call-a call-b] in order", calls)
	}
}

func TestDrainStream_MissingStartStillAccumulates(t *testing.T) {
	a, _, _ := newTestAgent(t)

	// A provider that never emits tool-call-start still produces a usable
	// call as long as deltas carry the id.
	fs := &fakeStream{chunks: []provider.Chunk{
		{Type: provider.ChunkToolCallDelta, ToolCallID: "call-1", ArgDelta: `{"x":1}`},
		{Type: provider.ChunkEnd},
	}}

	_, calls, _, err := a.drainStream(fs)
	if err != nil {
		t.Fatalf("drainStream failed: %v", err)
	}
	if len(calls) != 1 || calls[0].Arguments != `{"x":1}` {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestDrainStream_PropagatesChunkErr(t *testing.T) {
	a, _, _ := newTestAgent(t)
	wantErr := errors.New("boom")

	fs := &fakeStream{chunks: []provider.Chunk{
		{Type: provider.ChunkTextDelta, Text: "partial"},
		{Type: provider.ChunkErr, Err: wantErr},
	}}

	_, _, _, err := a.drainStream(fs)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestDrainStream_PropagatesNextError(t *testing.T) {
	a, _, _ := newTestAgent(t)
	fs := &fakeStream{chunks: nil}

	_, _, _, err := a.drainStream(fs)
	if err == nil {
		t.Fatal("expected error reading past an empty stream")
	}
}

func TestPolicyForTool_DeniedWhenNotEnabled(t *testing.T) {
	a, _, _ := newTestAgent(t)
	a.Definition = &Definition{Name: "locked", Tools: map[string]bool{"*": false}}

	if got := a.policyForTool("bash", json.RawMessage(`{}`)); got != types.PolicyDeny {
		t.Errorf("policy = %q, want deny", got)
	}
}

func TestPolicyForTool_EditUsesPermission(t *testing.T) {
	a, _, _ := newTestAgent(t)
	a.Definition = &Definition{
		Name:  "editor",
		Tools: map[string]bool{"*": true},
		Permission: DefinitionPerms{
			Edit: types.PolicyRequireApproval,
		},
	}

	if got := a.policyForTool("edit", json.RawMessage(`{}`)); got != types.PolicyRequireApproval {
		t.Errorf("policy = %q, want require-approval", got)
	}
}

func TestPolicyForTool_BashParsesCommand(t *testing.T) {
	a, _, _ := newTestAgent(t)
	a.Definition = &Definition{
		Name:  "shell",
		Tools: map[string]bool{"*": true},
		Permission: DefinitionPerms{
			Bash: map[string]types.ToolPolicy{"rm *": types.PolicyDeny},
		},
	}

	args, _ := json.Marshal(map[string]string{"command": "rm -rf /"})
	if got := a.policyForTool("bash", args); got != types.PolicyDeny {
		t.Errorf("policy = %q, want deny for rm pattern", got)
	}
}

func TestPolicyForTool_DefaultsToAllow(t *testing.T) {
	a, _, _ := newTestAgent(t)
	a.Definition = &Definition{Name: "reader", Tools: map[string]bool{"*": true}}

	if got := a.policyForTool("read", json.RawMessage(`{}`)); got != types.PolicyAllow {
		t.Errorf("policy = %q, want allow", got)
	}
}

func TestRunToolCalls_AppendsCallAndResultEvents(t *testing.T) {
	a, threads, threadID := newTestAgent(t)
	a.WorkDir = t.TempDir()

	registry := tool.NewRegistry(a.WorkDir)
	registry.Register(tool.NewBaseTool("echo", "echoes input", nil,
		func(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
			return &tool.Result{Title: "echo", Output: "ok"}, nil
		}))
	a.Tools = tool.NewExecutor(registry, nil)
	a.Definition = &Definition{Name: "build", Tools: map[string]bool{"*": true}}

	calls := []provider.ToolCallInfo{{ID: "call-1", Name: "echo", Arguments: `{}`}}
	if err := a.runToolCalls(context.Background(), calls); err != nil {
		t.Fatalf("runToolCalls failed: %v", err)
	}

	events, err := threads.GetEvents(context.Background(), threadID, nil)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (call + result), got %d: %+v", len(events), events)
	}
	if events[0].Type != types.EventToolCall {
		t.Errorf("events[0].Type = %q, want TOOL_CALL", events[0].Type)
	}
	if events[1].Type != types.EventToolResult {
		t.Errorf("events[1].Type = %q, want TOOL_RESULT", events[1].Type)
	}
	if events[1].Data.ToolResult == nil || events[1].Data.ToolResult.IsError {
		t.Errorf("expected a successful tool result, got %+v", events[1].Data.ToolResult)
	}

	if got := a.State(); got != StateWaitingForTool {
		t.Errorf("final state = %q, want waiting_for_tool (loop ends mid-wait, Run advances past it)", got)
	}
}

func TestRunToolCalls_DeniedToolRecordsErrorResult(t *testing.T) {
	a, threads, threadID := newTestAgent(t)
	a.WorkDir = t.TempDir()
	a.Definition = &Definition{Name: "locked", Tools: map[string]bool{"*": false}}

	registry := tool.NewRegistry(a.WorkDir)
	registry.Register(tool.NewBaseTool("bash", "runs a command", nil,
		func(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
			t.Fatal("denied tool must not execute")
			return nil, nil
		}))
	a.Tools = tool.NewExecutor(registry, approval.NewBroker(nil))

	calls := []provider.ToolCallInfo{{ID: "call-1", Name: "bash", Arguments: `{"command":"ls"}`}}
	if err := a.runToolCalls(context.Background(), calls); err != nil {
		t.Fatalf("runToolCalls should not fail the turn on a denied call: %v", err)
	}

	events, err := threads.GetEvents(context.Background(), threadID, nil)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	result := events[len(events)-1].Data.ToolResult
	if result == nil || !result.IsError {
		t.Fatalf("expected an error tool result for a denied call, got %+v", result)
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := []State{StateDone, StateFailed, StateCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("State(%q).Terminal() = false, want true", s)
		}
	}
	nonTerminal := []State{StateIdle, StateRunning, StateWaitingForTool, StateWaitingForApproval, StateAppending}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("State(%q).Terminal() = true, want false", s)
		}
	}
}
