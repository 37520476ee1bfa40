package tool

import (
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/lace/internal/approval"
	"github.com/opencode-ai/lace/internal/task"
	"github.com/opencode-ai/lace/pkg/types"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string
}

// NewRegistry creates a new tool registry.
func NewRegistry(workDir string) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.Debug().Str("tool", t.ID()).Msg("registering tool")
	r.tools[t.ID()] = t
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// IDs returns all tool IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	return ids
}

// EinoTools returns Eino-compatible tools.
func (r *Registry) EinoTools() []einotool.BaseTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]einotool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t.EinoTool())
	}
	return tools
}

// ToolInfos returns Eino tool infos for all tools.
func (r *Registry) ToolInfos() ([]*schema.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		params := parseJSONSchemaToParams(t.Parameters())
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos, nil
}

// DefaultRegistryOptions configures the shared state DefaultRegistry wires
// into tools that need it: approval for bash, a todo store for the
// scratch-list tools, and a task manager for the task tool.
type DefaultRegistryOptions struct {
	Broker       *approval.Broker
	BashPolicies map[string]types.ToolPolicy
	ExternalDir  types.ToolPolicy
	Todos        *TodoStore
	Tasks        *task.Manager
}

// DefaultRegistry creates a registry with all built-in tools.
func DefaultRegistry(workDir string, opts DefaultRegistryOptions) *Registry {
	r := NewRegistry(workDir)

	if opts.Todos == nil {
		opts.Todos = NewTodoStore()
	}

	bashOpts := []BashToolOption{}
	if opts.Broker != nil {
		bashOpts = append(bashOpts, WithApprovalBroker(opts.Broker))
	}
	if opts.BashPolicies != nil {
		bashOpts = append(bashOpts, WithBashPolicies(opts.BashPolicies))
	}
	if opts.ExternalDir != "" {
		bashOpts = append(bashOpts, WithExternalDirPolicy(opts.ExternalDir))
	}

	r.Register(NewReadTool(workDir))
	r.Register(NewWriteTool(workDir))
	r.Register(NewEditTool(workDir))
	r.Register(NewBashTool(workDir, bashOpts...))
	r.Register(NewGlobTool(workDir))
	r.Register(NewGrepTool(workDir))
	r.Register(NewListTool(workDir))
	r.Register(NewWebFetchTool(workDir))

	r.Register(NewTodoWriteTool(workDir, opts.Todos))
	r.Register(NewTodoReadTool(workDir, opts.Todos))

	r.Register(NewBatchTool(workDir, r))

	if opts.Tasks != nil {
		r.Register(NewTaskTool(workDir, opts.Tasks))
	}

	log.Info().Strs("tools", r.IDs()).Msg("default tool registry assembled")
	return r
}
