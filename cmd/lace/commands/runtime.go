package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/opencode-ai/lace/internal/agent"
	"github.com/opencode-ai/lace/internal/approval"
	"github.com/opencode-ai/lace/internal/delegate"
	"github.com/opencode-ai/lace/internal/event"
	"github.com/opencode-ai/lace/internal/project"
	"github.com/opencode-ai/lace/internal/provider"
	"github.com/opencode-ai/lace/internal/store"
	"github.com/opencode-ai/lace/internal/task"
	"github.com/opencode-ai/lace/internal/thread"
	"github.com/opencode-ai/lace/internal/tool"
)

// runtime bundles every component a command needs to drive turns and task
// delegation against a single working directory.
// Construction is two-phase: tool.DefaultRegistry needs a *task.Manager
// (for the task tool), task.Manager needs a task.Spawner, and
// delegate.Spawner needs the *tool.Executor built from that same
// registry. A bare *delegate.Spawner stands in for the Spawner
// interface during wiring and is backfilled once everything else
// exists; it is never invoked until a task is actually assigned, well
// after buildRuntime returns.
type runtime struct {
	workDir   string
	store     *store.ThreadStore
	bus       *event.Bus
	threads   *thread.Manager
	tasks     *task.Manager
	toolReg   *tool.Registry
	toolExec  *tool.Executor
	toolInfos []provider.ToolInfo
	agents    *agent.Registry
	providers *provider.Registry
	broker    *approval.Broker
	project   *project.Service
	window    *project.ConversationWindow
	cfgWatch  *project.ConfigWatcher
}

// Close stops any background resources the runtime started, such as the
// project config watcher. Safe to call on a runtime returned with a
// nil cfgWatch (no .lace directory was present to watch).
func (r *runtime) Close() error {
	if r.cfgWatch != nil {
		return r.cfgWatch.Stop()
	}
	return nil
}

func buildRuntime(ctx context.Context, workDir string) (*runtime, error) {
	st := store.New(filepath.Join(workDir, ".lace", "store"))
	bus := event.NewBus()
	threads := thread.New(st, bus)
	broker := approval.NewBroker(bus)

	spawner := &delegate.Spawner{}
	tasks := task.New(st, bus, spawner)

	toolReg := tool.DefaultRegistry(workDir, tool.DefaultRegistryOptions{
		Broker: broker,
		Tasks:  tasks,
	})
	toolExec := tool.NewExecutor(toolReg, broker)

	toolInfos := buildToolInfos(toolReg)

	agents := agent.NewRegistry()

	providers, err := provider.InitializeProviders(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize providers: %w", err)
	}

	projectSvc := project.NewService(workDir)
	proj, err := projectSvc.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve project: %w", err)
	}
	window := project.NewConversationWindow(project.ResolveEffectiveConfig(*proj, nil, nil))

	cfgWatch, err := project.NewConfigWatcher(proj.Worktree, proj.ID, bus)
	if err != nil {
		return nil, fmt.Errorf("start config watcher: %w", err)
	}
	if cfgWatch != nil {
		cfgWatch.Start()
	}

	spawner.Threads = threads
	spawner.Agents = agents
	spawner.Providers = providers
	spawner.ToolExec = toolExec
	spawner.ToolInfos = toolInfos
	spawner.Tasks = tasks
	spawner.Window = window
	spawner.Bus = bus
	spawner.WorkDir = workDir

	return &runtime{
		workDir:   workDir,
		store:     st,
		bus:       bus,
		threads:   threads,
		tasks:     tasks,
		toolReg:   toolReg,
		toolExec:  toolExec,
		toolInfos: toolInfos,
		agents:    agents,
		providers: providers,
		broker:    broker,
		project:   projectSvc,
		window:    window,
		cfgWatch:  cfgWatch,
	}, nil
}

// buildToolInfos converts a tool.Registry's entries into the provider
// package's own ToolInfo shape; the registry's ToolInfos() method
// returns Eino's schema.ToolInfo instead, which is what the in-process
// Eino tool-calling model needs, not what provider.CompletionRequest
// takes.
func buildToolInfos(reg *tool.Registry) []provider.ToolInfo {
	list := reg.List()
	infos := make([]provider.ToolInfo, 0, len(list))
	for _, t := range list {
		infos = append(infos, provider.ToolInfo{
			Name:        t.ID(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return infos
}
