package agent

import (
	"fmt"
	"sync"

	"github.com/opencode-ai/lace/pkg/types"
)

// Registry manages agent definitions.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Definition
}

// NewRegistry creates a new agent registry seeded with the built-ins.
func NewRegistry() *Registry {
	r := &Registry{
		agents: make(map[string]*Definition),
	}

	for name, def := range BuiltInAgents() {
		r.agents[name] = def
	}

	return r
}

// Get retrieves a definition by name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", name)
	}

	return def, nil
}

// Register adds or updates a definition.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[def.Name] = def
}

// Unregister removes a definition by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, name)
}

// List returns all registered definitions.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.agents))
	for _, def := range r.agents {
		defs = append(defs, def)
	}
	return defs
}

// ListPrimary returns definitions usable as a primary agent.
func (r *Registry) ListPrimary() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []*Definition
	for _, def := range r.agents {
		if def.IsPrimary() {
			defs = append(defs, def)
		}
	}
	return defs
}

// ListSubagents returns definitions usable as a subagent (delegation target).
func (r *Registry) ListSubagents() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []*Definition
	for _, def := range r.agents {
		if def.IsSubagent() {
			defs = append(defs, def)
		}
	}
	return defs
}

// Names returns all definition names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	return names
}

// Exists checks if a definition exists.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Count returns the number of registered definitions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// LoadFromConfig applies user-supplied agent configuration on top of the
// built-ins, cloning a built-in before mutating it so BuiltInAgents()
// stays pristine for future registries.
func (r *Registry) LoadFromConfig(config map[string]DefinitionConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, cfg := range config {
		def, exists := r.agents[name]
		if !exists {
			def = &Definition{
				Name:    name,
				Mode:    ModePrimary,
				BuiltIn: false,
				Tools:   make(map[string]bool),
			}
		} else {
			def = def.Clone()
			def.BuiltIn = false
		}

		if cfg.Description != "" {
			def.Description = cfg.Description
		}
		if cfg.Mode != "" {
			def.Mode = cfg.Mode
		}
		if cfg.Model != nil {
			def.Model = cfg.Model
		}
		if cfg.Prompt != "" {
			def.Prompt = cfg.Prompt
		}
		if cfg.Temperature > 0 {
			def.Temperature = cfg.Temperature
		}
		if cfg.TopP > 0 {
			def.TopP = cfg.TopP
		}
		if cfg.Color != "" {
			def.Color = cfg.Color
		}
		if cfg.Tools != nil {
			if def.Tools == nil {
				def.Tools = make(map[string]bool)
			}
			for k, v := range cfg.Tools {
				def.Tools[k] = v
			}
		}
		if cfg.Permission != nil {
			if cfg.Permission.Edit != "" {
				def.Permission.Edit = cfg.Permission.Edit
			}
			if cfg.Permission.WebFetch != "" {
				def.Permission.WebFetch = cfg.Permission.WebFetch
			}
			if cfg.Permission.ExternalDir != "" {
				def.Permission.ExternalDir = cfg.Permission.ExternalDir
			}
			if cfg.Permission.DoomLoop != "" {
				def.Permission.DoomLoop = cfg.Permission.DoomLoop
			}
			if cfg.Permission.Bash != nil {
				if def.Permission.Bash == nil {
					def.Permission.Bash = make(map[string]types.ToolPolicy)
				}
				for k, v := range cfg.Permission.Bash {
					def.Permission.Bash[k] = v
				}
			}
		}
		if cfg.Options != nil {
			if def.Options == nil {
				def.Options = make(map[string]any)
			}
			for k, v := range cfg.Options {
				def.Options[k] = v
			}
		}

		r.agents[name] = def
	}
}

// DefinitionConfig represents user configuration for an agent definition,
// as loaded from the project/session config layer.
type DefinitionConfig struct {
	Description string                 `json:"description,omitempty"`
	Mode        Mode                   `json:"mode,omitempty"`
	Model       *ModelRef              `json:"model,omitempty"`
	Prompt      string                 `json:"prompt,omitempty"`
	Temperature float64                `json:"temperature,omitempty"`
	TopP        float64                `json:"topP,omitempty"`
	Color       string                 `json:"color,omitempty"`
	Tools       map[string]bool        `json:"tools,omitempty"`
	Permission  *DefinitionPermsConfig `json:"permission,omitempty"`
	Options     map[string]any         `json:"options,omitempty"`
}

// DefinitionPermsConfig represents permission configuration overrides.
type DefinitionPermsConfig struct {
	Edit        types.ToolPolicy            `json:"edit,omitempty"`
	Bash        map[string]types.ToolPolicy `json:"bash,omitempty"`
	WebFetch    types.ToolPolicy            `json:"webfetch,omitempty"`
	ExternalDir types.ToolPolicy            `json:"external_directory,omitempty"`
	DoomLoop    types.ToolPolicy            `json:"doom_loop,omitempty"`
}
