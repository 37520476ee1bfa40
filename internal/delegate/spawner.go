// Package delegate implements task.Spawner (spec C9): turning a task's
// "new:provider/model" assignment into a running subagent, bound to a
// fresh delegate thread under the assigning session's root thread.
package delegate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/lace/internal/agent"
	"github.com/opencode-ai/lace/internal/event"
	"github.com/opencode-ai/lace/internal/project"
	"github.com/opencode-ai/lace/internal/provider"
	"github.com/opencode-ai/lace/internal/task"
	"github.com/opencode-ai/lace/internal/thread"
	"github.com/opencode-ai/lace/internal/tool"
	"github.com/opencode-ai/lace/pkg/types"
)

// DefaultAgentName is the subagent definition a spawn uses when the
// calling task names no agent explicitly. "general" is the built-in
// subagent with the broadest (read-only-ish) tool access.
const DefaultAgentName = "general"

// Spawner implements task.Spawner by constructing an agent.Agent bound
// to a new delegate thread and running its first turn. It shares the
// tool executor, provider registry, and conversation window config of
// whatever session is delegating, so a spawned subagent behaves exactly
// like a primary agent operating under the same project.
type Spawner struct {
	Threads   *thread.Manager
	Agents    *agent.Registry
	Providers *provider.Registry
	ToolExec  *tool.Executor
	ToolInfos []provider.ToolInfo
	Tasks     *task.Manager
	Window    *project.ConversationWindow
	Bus       *event.Bus
	WorkDir   string

	// AgentName selects the subagent Definition a spawn instantiates.
	// Empty defaults to DefaultAgentName.
	AgentName string
}

// Spawn creates a delegate thread under t's owning session, instantiates
// an Agent for the resolved provider/model, appends t.Prompt as the
// delegate thread's first USER_MESSAGE, and starts the turn in the
// background. It returns as soon as the delegate thread exists; the
// caller (task.Manager) persists the task with AssignedTo set to the
// returned thread id before the turn necessarily completes.
func (s *Spawner) Spawn(ctx context.Context, t *types.Task, spec string) (string, error) {
	providerID, modelID := provider.ParseModelString(spec)
	if providerID == "" {
		return "", fmt.Errorf("delegate: model spec %q must be providerInstanceId/modelId", spec)
	}
	prov, err := s.Providers.Get(providerID)
	if err != nil {
		return "", fmt.Errorf("delegate: resolve provider for task %s: %w", t.ID, err)
	}

	agentName := s.AgentName
	if agentName == "" {
		agentName = DefaultAgentName
	}
	def, err := s.Agents.Get(agentName)
	if err != nil {
		return "", fmt.Errorf("delegate: resolve agent %q for task %s: %w", agentName, t.ID, err)
	}
	if !def.IsSubagent() {
		return "", fmt.Errorf("delegate: agent %q cannot be used as a subagent (mode: %s)", agentName, def.Mode)
	}

	delegateThread, err := s.Threads.CreateDelegateThread(ctx, t.ThreadID, t.ThreadID, types.ThreadMetadata{
		Name: fmt.Sprintf("task:%s:%s", t.ID, agentName),
	})
	if err != nil {
		return "", fmt.Errorf("delegate: create delegate thread for task %s: %w", t.ID, err)
	}
	if _, err := s.Threads.AddEvent(ctx, delegateThread.ID, types.EventUserMessage, types.NewTextData(t.Prompt)); err != nil {
		return "", fmt.Errorf("delegate: append prompt to delegate thread %s: %w", delegateThread.ID, err)
	}

	a := agent.New(delegateThread.ID, def, prov, modelID, s.ToolExec, s.ToolInfos, s.Threads, s.Window, s.Bus)
	a.WorkDir = s.WorkDir
	a.Temperature = def.Temperature
	a.TopP = def.TopP

	log.Info().Str("task", t.ID).Str("thread", delegateThread.ID).Str("agent", agentName).
		Str("provider", providerID).Str("model", modelID).Msg("delegate: spawning subagent")

	go s.run(a, t, delegateThread.ID)

	return delegateThread.ID, nil
}

// run drives the delegate's turn to completion in the background; the
// prompt was already appended synchronously in Spawn. A failure is
// recorded as a note on the originating task and the task is moved to
// blocked, rather than surfacing an error to whatever caller triggered
// the spawn (CreateTask/UpdateTask have already returned successfully
// by the time this runs).
func (s *Spawner) run(a *agent.Agent, t *types.Task, delegateThreadID string) {
	ctx := context.Background()
	state, err := a.Run(ctx, "")
	if err == nil && state == agent.StateDone {
		return
	}

	msg := fmt.Sprintf("delegate thread %s ended in state %s", delegateThreadID, state)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	log.Warn().Str("task", t.ID).Str("thread", delegateThreadID).Str("state", string(state)).Err(err).
		Msg("delegate: subagent turn did not complete")

	if s.Tasks == nil {
		return
	}
	if _, noteErr := s.Tasks.AddNote(ctx, t.ThreadID, t.ID, "delegate", msg); noteErr != nil {
		log.Error().Err(noteErr).Str("task", t.ID).Msg("delegate: failed to record failure note")
	}
	blocked := types.TaskBlocked
	if _, patchErr := s.Tasks.UpdateTask(ctx, t.ThreadID, t.ID, types.TaskPatch{Status: &blocked}); patchErr != nil {
		log.Error().Err(patchErr).Str("task", t.ID).Msg("delegate: failed to mark task blocked")
	}
}
