package types

// ToolPolicy is the effective access decision for a tool.
type ToolPolicy string

const (
	PolicyAllow           ToolPolicy = "allow"
	PolicyDeny            ToolPolicy = "deny"
	PolicyRequireApproval ToolPolicy = "require-approval"
)

// LayerConfig is the shape shared by Project, Session and Agent config
// layers. Effective configuration is computed by shallow-merging these
// layers child-overrides-parent, except ToolPolicies which merges
// key-wise (child keys win per key, parent keys not present in the
// child are kept).
type LayerConfig struct {
	ProviderInstanceID  string                `json:"providerInstanceId,omitempty"`
	ModelID             string                `json:"modelId,omitempty"`
	MaxTokens           int                   `json:"maxTokens,omitempty"`
	Temperature         *float64              `json:"temperature,omitempty"`
	SystemPrompt        string                `json:"systemPrompt,omitempty"`
	Tools               []string              `json:"tools,omitempty"`
	ToolPolicies        map[string]ToolPolicy `json:"toolPolicies,omitempty"`
	Capabilities        []string              `json:"capabilities,omitempty"`
	Restrictions        []string              `json:"restrictions,omitempty"`
	MemorySize          int                   `json:"memorySize,omitempty"`
	ConversationHistory int                   `json:"conversationHistory,omitempty"`
	Role                string                `json:"role,omitempty"`
}

// MergeLayerConfig shallow-merges override on top of base per §3: scalars and slices
// from override replace base's when set; ToolPolicies merges key-wise.
// Neither argument is mutated; a new LayerConfig is returned.
func MergeLayerConfig(base, override LayerConfig) LayerConfig {
	out := base

	if override.ProviderInstanceID != "" {
		out.ProviderInstanceID = override.ProviderInstanceID
	}
	if override.ModelID != "" {
		out.ModelID = override.ModelID
	}
	if override.MaxTokens != 0 {
		out.MaxTokens = override.MaxTokens
	}
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.SystemPrompt != "" {
		out.SystemPrompt = override.SystemPrompt
	}
	if override.Tools != nil {
		out.Tools = override.Tools
	}
	if override.Capabilities != nil {
		out.Capabilities = override.Capabilities
	}
	if override.Restrictions != nil {
		out.Restrictions = override.Restrictions
	}
	if override.MemorySize != 0 {
		out.MemorySize = override.MemorySize
	}
	if override.ConversationHistory != 0 {
		out.ConversationHistory = override.ConversationHistory
	}
	if override.Role != "" {
		out.Role = override.Role
	}

	if len(base.ToolPolicies) > 0 || len(override.ToolPolicies) > 0 {
		merged := make(map[string]ToolPolicy, len(base.ToolPolicies)+len(override.ToolPolicies))
		for k, v := range base.ToolPolicies {
			merged[k] = v
		}
		for k, v := range override.ToolPolicies {
			merged[k] = v
		}
		out.ToolPolicies = merged
	}

	return out
}

// Project is the top of the configuration chain: it associates a working
// directory with default provider/tool configuration and owns many
// Sessions.
type Project struct {
	ID        string      `json:"id"`
	Worktree  string      `json:"worktree"`
	VCS       string      `json:"vcs,omitempty"` // "git" or empty
	Config    LayerConfig `json:"config"`
	CreatedAt int64       `json:"createdAt"`
}

// Session groups Threads under one Project with shared configuration and
// task list.
type Session struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectId"`
	Title     string      `json:"title,omitempty"`
	Config    LayerConfig `json:"config"`
	CreatedAt int64       `json:"createdAt"`
	UpdatedAt int64       `json:"updatedAt"`
}

// Model represents an LLM model available from a provider.
type Model struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProviderID      string `json:"providerID"`
	ContextLength   int    `json:"contextLength"`
	MaxOutputTokens int    `json:"maxOutputTokens,omitempty"`
	SupportsTools   bool   `json:"supportsTools"`
	SupportsVision  bool   `json:"supportsVision"`
}
