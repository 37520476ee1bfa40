package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/lace/internal/event"
	"github.com/opencode-ai/lace/internal/project"
	"github.com/opencode-ai/lace/internal/provider"
	"github.com/opencode-ai/lace/internal/thread"
	"github.com/opencode-ai/lace/internal/tool"
	"github.com/opencode-ai/lace/pkg/types"
)

const (
	// MaxSteps bounds how many model round-trips a single turn may take
	// before it is treated as a failure, grounded on the teacher's
	// agentic-loop step limit.
	MaxSteps = 50
	// MaxRetries, RetryInitialInterval, RetryMaxInterval and
	// RetryMaxElapsedTime tune the exponential backoff a turn applies to
	// transient provider errors, grounded on the teacher's retry policy.
	MaxRetries           = 3
	RetryInitialInterval = time.Second
	RetryMaxInterval     = 30 * time.Second
	RetryMaxElapsedTime  = 2 * time.Minute
)

// ErrMaxSteps is returned when a turn exhausts MaxSteps without reaching
// a model response that requires no further tool calls.
var ErrMaxSteps = errors.New("agent: max steps exceeded")

// Agent is the runtime turn-execution state machine (spec C6): it reads
// a thread's event history through a ConversationWindow, drives a
// provider completion, executes any requested tool calls through an
// Executor, and appends the results back to the thread as events, one
// turn at a time.
type Agent struct {
	ThreadID    string
	Definition  *Definition
	Provider    provider.Provider
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	WorkDir     string

	Tools     *tool.Executor
	ToolInfos []provider.ToolInfo
	Threads   *thread.Manager
	Window    *project.ConversationWindow
	Bus       *event.Bus

	MaxSteps int

	mu    sync.Mutex
	state State
}

// New creates an Agent bound to threadID, ready to run turns against it.
func New(threadID string, def *Definition, prov provider.Provider, model string, tools *tool.Executor, toolInfos []provider.ToolInfo, threads *thread.Manager, window *project.ConversationWindow, bus *event.Bus) *Agent {
	return &Agent{
		ThreadID:   threadID,
		Definition: def,
		Provider:   prov,
		Model:      model,
		Tools:      tools,
		ToolInfos:  toolInfos,
		Threads:    threads,
		Window:     window,
		Bus:        bus,
		MaxSteps:   MaxSteps,
		state:      StateIdle,
	}
}

// State returns the agent's current turn state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()

	e := event.Event{Type: event.AgentStateChanged, Data: map[string]any{"threadId": a.ThreadID, "state": string(s)}}
	if a.Bus != nil {
		a.Bus.PublishSync(e)
	} else {
		event.PublishSync(e)
	}
}

// Run drives one turn to completion: if userText is non-empty it is
// appended as a USER_MESSAGE first, then the agent streams a completion,
// executes any requested tool calls, and loops until the model responds
// with no further tool calls (DONE), a fatal error occurs (FAILED), or
// ctx is cancelled (CANCELLED).
func (a *Agent) Run(ctx context.Context, userText string) (State, error) {
	if userText != "" {
		if _, err := a.Threads.AddEvent(ctx, a.ThreadID, types.EventUserMessage, types.NewTextData(userText)); err != nil {
			a.setState(StateFailed)
			return StateFailed, fmt.Errorf("append user message: %w", err)
		}
	}

	a.setState(StateRunning)

	maxSteps := a.MaxSteps
	if maxSteps <= 0 {
		maxSteps = MaxSteps
	}

	retry := newRetryBackoff(ctx)

	for step := 0; step < maxSteps; step++ {
		select {
		case <-ctx.Done():
			a.setState(StateCancelled)
			return StateCancelled, ctx.Err()
		default:
		}

		events, err := a.Threads.GetEvents(ctx, a.ThreadID, nil)
		if err != nil {
			a.setState(StateFailed)
			return StateFailed, fmt.Errorf("load thread events: %w", err)
		}
		messages := a.Window.Build(events)

		req := &provider.CompletionRequest{
			Model:       a.Model,
			Messages:    messages,
			Tools:       a.ToolInfos,
			MaxTokens:   a.MaxTokens,
			Temperature: a.Temperature,
			TopP:        a.TopP,
		}

		stream, err := a.Provider.CreateStreamingResponse(ctx, req)
		if err != nil {
			if wait, retriable := a.nextRetry(retry, err); retriable {
				time.Sleep(wait)
				continue
			}
			if ctx.Err() != nil {
				a.setState(StateCancelled)
				return StateCancelled, ctx.Err()
			}
			a.setState(StateFailed)
			return StateFailed, fmt.Errorf("open completion stream: %w", err)
		}

		text, calls, usage, err := a.drainStream(stream)
		stream.Close()
		if err != nil {
			if wait, retriable := a.nextRetry(retry, err); retriable {
				time.Sleep(wait)
				continue
			}
			if ctx.Err() != nil {
				a.setState(StateCancelled)
				return StateCancelled, ctx.Err()
			}
			a.setState(StateFailed)
			return StateFailed, fmt.Errorf("read completion stream: %w", err)
		}
		retry.Reset()

		log.Debug().Str("thread", a.ThreadID).Int("step", step).Int("toolCalls", len(calls)).
			Int("inputTokens", usage.InputTokens).Int("outputTokens", usage.OutputTokens).Msg("turn step completed")

		if text != "" {
			if _, err := a.Threads.AddEvent(ctx, a.ThreadID, types.EventAgentMessage, types.NewTextData(text)); err != nil {
				a.setState(StateFailed)
				return StateFailed, fmt.Errorf("append agent message: %w", err)
			}
		}

		if len(calls) == 0 {
			a.setState(StateDone)
			return StateDone, nil
		}

		if err := a.runToolCalls(ctx, calls); err != nil {
			if ctx.Err() != nil {
				a.setState(StateCancelled)
				return StateCancelled, ctx.Err()
			}
			a.setState(StateFailed)
			return StateFailed, err
		}
	}

	a.setState(StateFailed)
	return StateFailed, ErrMaxSteps
}

// pendingCall accumulates one tool call's arguments across
// tool-call-start/delta chunks, in the order calls were first seen.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// chunkStream is the minimal pull interface drainStream needs; *provider.Stream
// satisfies it structurally, and tests can substitute a fake without
// constructing a real Eino stream reader.
type chunkStream interface {
	Next() (*provider.Chunk, error)
}

// drainStream pulls every Chunk from stream, accumulating assistant text
// and tool calls until ChunkEnd or ChunkErr. Since the provider never
// emits an explicit tool-call-end boundary on its own, reaching ChunkEnd
// is itself the signal that every call seen so far is complete.
func (a *Agent) drainStream(stream chunkStream) (string, []provider.ToolCallInfo, provider.Usage, error) {
	var text strings.Builder
	var order []string
	pending := make(map[string]*pendingCall)

	for {
		chunk, err := stream.Next()
		if err != nil {
			return "", nil, provider.Usage{}, err
		}
		if chunk == nil {
			continue
		}

		switch chunk.Type {
		case provider.ChunkTextDelta:
			text.WriteString(chunk.Text)
		case provider.ChunkToolCallStart:
			pc := &pendingCall{id: chunk.ToolCallID, name: chunk.ToolName}
			pending[chunk.ToolCallID] = pc
			order = append(order, chunk.ToolCallID)
		case provider.ChunkToolCallDelta:
			pc, ok := pending[chunk.ToolCallID]
			if !ok {
				pc = &pendingCall{id: chunk.ToolCallID}
				pending[chunk.ToolCallID] = pc
				order = append(order, chunk.ToolCallID)
			}
			pc.args.WriteString(chunk.ArgDelta)
		case provider.ChunkToolCallEnd:
			// Explicit boundary, when a provider does emit one.
		case provider.ChunkErr:
			return "", nil, provider.Usage{}, chunk.Err
		case provider.ChunkEnd:
			calls := make([]provider.ToolCallInfo, 0, len(order))
			for _, id := range order {
				pc := pending[id]
				calls = append(calls, provider.ToolCallInfo{ID: pc.id, Name: pc.name, Arguments: pc.args.String()})
			}
			return text.String(), calls, chunk.Usage, nil
		}
	}
}

// runToolCalls appends a TOOL_CALL event, executes, and appends a
// TOOL_RESULT event for each call in order. A call's own failure (bad
// args, denial, a failing command) is recorded as an error TOOL_RESULT
// and does not stop the turn; only an Executor infrastructure error does.
func (a *Agent) runToolCalls(ctx context.Context, calls []provider.ToolCallInfo) error {
	a.setState(StateWaitingForTool)

	for _, call := range calls {
		args := json.RawMessage(call.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}

		if _, err := a.Threads.AddEvent(ctx, a.ThreadID, types.EventToolCall, types.EventData{
			ToolCall: &types.ToolCallData{CallID: call.ID, Name: call.Name, Args: args},
		}); err != nil {
			return fmt.Errorf("append tool call: %w", err)
		}

		policy := a.policyForTool(call.Name, args)
		if policy == types.PolicyRequireApproval {
			a.setState(StateWaitingForApproval)
		}

		res, err := a.Tools.Execute(ctx, tool.Call{
			ThreadID: a.ThreadID,
			CallID:   call.ID,
			ToolName: call.Name,
			Args:     args,
			Policy:   policy,
			Context: &tool.Context{
				ThreadID: a.ThreadID,
				CallID:   call.ID,
				Agent:    a.Definition.Name,
				WorkDir:  a.WorkDir,
			},
		})
		if err != nil {
			return fmt.Errorf("execute tool %s: %w", call.Name, err)
		}

		a.setState(StateAppending)
		resultData := types.ToolResultData{
			CallID:   call.ID,
			IsError:  res.Error != nil,
			Content:  []types.ContentBlock{{Type: "text", Text: res.Output}},
			Metadata: res.Metadata,
		}
		if _, err := a.Threads.AddEvent(ctx, a.ThreadID, types.EventToolResult, types.EventData{ToolResult: &resultData}); err != nil {
			return fmt.Errorf("append tool result: %w", err)
		}
		a.setState(StateWaitingForTool)
	}

	return nil
}

// policyForTool resolves the effective ToolPolicy for one tool call,
// consulting the agent Definition's per-tool enable map and permission
// categories. Tools not covered by a specific permission category default
// to allow, since they carry no side effects the approval broker needs
// to gate (read, glob, grep, list, todo*).
func (a *Agent) policyForTool(name string, args json.RawMessage) types.ToolPolicy {
	if a.Definition != nil && !a.Definition.ToolEnabled(name) {
		return types.PolicyDeny
	}
	if a.Definition == nil {
		return types.PolicyRequireApproval
	}

	switch name {
	case "edit", "Write":
		return a.Definition.GetPermission("edit")
	case "webfetch":
		return a.Definition.GetPermission("webfetch")
	case "bash":
		var parsed struct {
			Command string `json:"command"`
		}
		_ = json.Unmarshal(args, &parsed)
		return a.Definition.CheckBashPermission(parsed.Command)
	default:
		return types.PolicyAllow
	}
}

// newRetryBackoff builds the exponential backoff a turn applies to
// transient provider errors.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

// nextRetry classifies err: fatal provider errors and anything once the
// backoff is exhausted are not retriable.
func (a *Agent) nextRetry(b backoff.BackOff, err error) (time.Duration, bool) {
	if errors.Is(err, provider.ErrProviderFatal) {
		return 0, false
	}
	wait := b.NextBackOff()
	if wait == backoff.Stop {
		return 0, false
	}
	return wait, true
}
