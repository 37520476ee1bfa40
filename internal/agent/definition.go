// Package agent provides the agent definition registry (C8) and the
// turn-execution state machine (C6).
package agent

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/opencode-ai/lace/pkg/types"
)

// Definition represents an agent's static configuration: the mode it
// may run in, which tools it may use, and its default permissions and
// model. A Definition is instantiated into a running Agent (turn.go)
// for a given thread.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Mode        Mode            `json:"mode"`
	BuiltIn     bool            `json:"builtIn"`
	Permission  DefinitionPerms `json:"permission"`
	Tools       map[string]bool `json:"tools"`
	Options     map[string]any  `json:"options,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"topP,omitempty"`
	Model       *ModelRef       `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Color       string          `json:"color,omitempty"`
}

// Mode represents the agent operation mode.
type Mode string

const (
	ModePrimary  Mode = "primary"
	ModeSubagent Mode = "subagent"
	ModeAll      Mode = "all"
)

// ModelRef references a specific model.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// DefinitionPerms defines per-tool-category default policies for a
// Definition, expressed with the same types.ToolPolicy vocabulary the
// approval Broker and LayerConfig use, so an agent's defaults merge
// cleanly into a session's effective ToolPolicies (pkg/types.MergeLayerConfig).
type DefinitionPerms struct {
	Edit        types.ToolPolicy            `json:"edit,omitempty"`
	Bash        map[string]types.ToolPolicy `json:"bash,omitempty"`
	WebFetch    types.ToolPolicy            `json:"webfetch,omitempty"`
	ExternalDir types.ToolPolicy            `json:"external_directory,omitempty"`
	DoomLoop    types.ToolPolicy            `json:"doom_loop,omitempty"`
}

// ToolEnabled checks if a tool is enabled for this definition.
func (d *Definition) ToolEnabled(toolID string) bool {
	if enabled, ok := d.Tools[toolID]; ok {
		return enabled
	}
	for pattern, enabled := range d.Tools {
		if matchWildcard(pattern, toolID) {
			return enabled
		}
	}
	return true
}

// CheckBashPermission checks bash command permission for this definition.
func (d *Definition) CheckBashPermission(command string) types.ToolPolicy {
	for pattern, action := range d.Permission.Bash {
		if matchWildcard(pattern, command) {
			return action
		}
	}
	return types.PolicyRequireApproval
}

// GetPermission returns the effective policy for one of the fixed
// permission categories a Definition declares outside the per-tool map.
func (d *Definition) GetPermission(category string) types.ToolPolicy {
	var policy types.ToolPolicy
	switch category {
	case "edit":
		policy = d.Permission.Edit
	case "webfetch":
		policy = d.Permission.WebFetch
	case "external_directory":
		policy = d.Permission.ExternalDir
	case "doom_loop":
		policy = d.Permission.DoomLoop
	}
	if policy == "" {
		return types.PolicyRequireApproval
	}
	return policy
}

// IsPrimary returns true if the definition can be used as a primary agent.
func (d *Definition) IsPrimary() bool {
	return d.Mode == ModePrimary || d.Mode == ModeAll
}

// IsSubagent returns true if the definition can be used as a subagent.
func (d *Definition) IsSubagent() bool {
	return d.Mode == ModeSubagent || d.Mode == ModeAll
}

// Clone creates a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	clone := &Definition{
		Name:        d.Name,
		Description: d.Description,
		Mode:        d.Mode,
		BuiltIn:     d.BuiltIn,
		Temperature: d.Temperature,
		TopP:        d.TopP,
		Prompt:      d.Prompt,
		Color:       d.Color,
	}

	clone.Permission = DefinitionPerms{
		Edit:        d.Permission.Edit,
		WebFetch:    d.Permission.WebFetch,
		ExternalDir: d.Permission.ExternalDir,
		DoomLoop:    d.Permission.DoomLoop,
	}
	if d.Permission.Bash != nil {
		clone.Permission.Bash = make(map[string]types.ToolPolicy)
		for k, v := range d.Permission.Bash {
			clone.Permission.Bash[k] = v
		}
	}

	if d.Tools != nil {
		clone.Tools = make(map[string]bool)
		for k, v := range d.Tools {
			clone.Tools[k] = v
		}
	}

	if d.Options != nil {
		clone.Options = make(map[string]any)
		for k, v := range d.Options {
			clone.Options[k] = v
		}
	}

	if d.Model != nil {
		clone.Model = &ModelRef{
			ProviderID: d.Model.ProviderID,
			ModelID:    d.Model.ModelID,
		}
	}

	return clone
}

// matchWildcard checks if a string matches a wildcard pattern.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}
	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(s, prefix)
	}
	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(s, suffix)
	}
	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}
	return pattern == s
}

// BuiltInAgents returns the default agent definitions.
func BuiltInAgents() map[string]*Definition {
	return map[string]*Definition{
		"build": {
			Name:        "build",
			Description: "Primary agent for executing tasks, writing code, and making changes",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Permission: DefinitionPerms{
				Edit:        types.PolicyAllow,
				Bash:        map[string]types.ToolPolicy{"*": types.PolicyAllow},
				WebFetch:    types.PolicyAllow,
				ExternalDir: types.PolicyRequireApproval,
				DoomLoop:    types.PolicyRequireApproval,
			},
			Tools: map[string]bool{
				"*": true,
			},
		},
		"plan": {
			Name:        "plan",
			Description: "Planning agent for analysis and exploration without making changes",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Permission: DefinitionPerms{
				Edit: types.PolicyDeny,
				Bash: map[string]types.ToolPolicy{
					"grep*":      types.PolicyAllow,
					"find*":      types.PolicyAllow,
					"ls*":        types.PolicyAllow,
					"cat*":       types.PolicyAllow,
					"git status": types.PolicyAllow,
					"git diff*":  types.PolicyAllow,
					"git log*":   types.PolicyAllow,
					"*":          types.PolicyDeny,
				},
				WebFetch:    types.PolicyAllow,
				ExternalDir: types.PolicyDeny,
				DoomLoop:    types.PolicyDeny,
			},
			Tools: map[string]bool{
				"read":  true,
				"glob":  true,
				"grep":  true,
				"ls":    true,
				"bash":  true,
				"edit":  false,
				"write": false,
			},
		},
		"general": {
			Name:        "general",
			Description: "General-purpose subagent for searches and exploration",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: DefinitionPerms{
				Edit:        types.PolicyDeny,
				Bash:        map[string]types.ToolPolicy{"*": types.PolicyDeny},
				WebFetch:    types.PolicyAllow,
				ExternalDir: types.PolicyDeny,
				DoomLoop:    types.PolicyDeny,
			},
			Tools: map[string]bool{
				"read":     true,
				"glob":     true,
				"grep":     true,
				"webfetch": true,
				"bash":     false,
				"edit":     false,
				"write":    false,
			},
		},
		"explore": {
			Name:        "explore",
			Description: "Fast agent specialized for codebase exploration",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: DefinitionPerms{
				Edit:        types.PolicyDeny,
				Bash:        map[string]types.ToolPolicy{"*": types.PolicyDeny},
				WebFetch:    types.PolicyDeny,
				ExternalDir: types.PolicyDeny,
				DoomLoop:    types.PolicyDeny,
			},
			Tools: map[string]bool{
				"read": true,
				"glob": true,
				"grep": true,
				"ls":   true,
				"bash": false,
				"edit": false,
			},
		},
	}
}
