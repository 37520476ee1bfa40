package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/lace/pkg/types"
)

// AnthropicProvider implements Provider over Anthropic Claude models,
// via Eino's claude chat model (backed by anthropic-sdk-go).
type AnthropicProvider struct {
	chatModel model.ToolCallingChatModel
	models    []types.Model
	config    *AnthropicConfig
}

// AnthropicConfig holds configuration for one Anthropic provider instance.
type AnthropicConfig struct {
	// ID is the provider instance identifier. Defaults to "anthropic".
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	Thinking *claude.Thinking

	UseBedrock bool
	Region     string
	Profile    string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
func NewAnthropicProvider(ctx context.Context, config *AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" && !config.UseBedrock {
		return nil, fmt.Errorf("ANTHROPIC_KEY not set")
	}

	modelID := config.Model
	if modelID == "" {
		modelID = "claude-sonnet-4-20250514"
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	var chatModel model.ToolCallingChatModel
	var err error

	if config.UseBedrock {
		bedrockModel := "anthropic." + modelID + "-v1:0"
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			ByBedrock: true,
			Region:    config.Region,
			Profile:   config.Profile,
			Model:     bedrockModel,
			MaxTokens: maxTokens,
			Thinking:  config.Thinking,
		})
	} else {
		cfg := &claude.Config{
			APIKey:    apiKey,
			Model:     modelID,
			MaxTokens: maxTokens,
			Thinking:  config.Thinking,
		}
		if config.BaseURL != "" {
			cfg.BaseURL = &config.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("create claude chat model: %w", err)
	}

	return &AnthropicProvider{
		chatModel: chatModel,
		models:    anthropicModels(),
		config:    config,
	}, nil
}

// ID returns the provider instance identifier.
func (p *AnthropicProvider) ID() string {
	if p.config.ID != "" {
		return p.config.ID
	}
	return "anthropic"
}

// Name returns the human-readable provider name.
func (p *AnthropicProvider) Name() string { return "Anthropic" }

// Models returns the catalogue of models this provider instance serves.
func (p *AnthropicProvider) Models() []types.Model { return p.models }

// ChatModel returns the underlying Eino chat model.
func (p *AnthropicProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }

// CreateResponse runs a non-streaming completion.
func (p *AnthropicProvider) CreateResponse(ctx context.Context, req *CompletionRequest) (*Response, error) {
	cm, err := p.bindTools(req)
	if err != nil {
		return nil, err
	}

	msg, err := cm.Generate(ctx, toEinoMessages(req.Messages),
		model.WithMaxTokens(req.MaxTokens),
		model.WithTemperature(float32(req.Temperature)),
	)
	if err != nil {
		return nil, classifyStreamErr(err)
	}
	return fromEinoMessage(msg), nil
}

// CreateStreamingResponse opens a streaming completion.
func (p *AnthropicProvider) CreateStreamingResponse(ctx context.Context, req *CompletionRequest) (*Stream, error) {
	cm, err := p.bindTools(req)
	if err != nil {
		return nil, err
	}

	reader, err := cm.Stream(ctx, toEinoMessages(req.Messages),
		model.WithMaxTokens(req.MaxTokens),
		model.WithTemperature(float32(req.Temperature)),
	)
	if err != nil {
		return nil, classifyStreamErr(err)
	}
	return NewStream(reader), nil
}

func (p *AnthropicProvider) bindTools(req *CompletionRequest) (model.ToolCallingChatModel, error) {
	if len(req.Tools) == 0 {
		return p.chatModel, nil
	}
	cm, err := p.chatModel.WithTools(toEinoTools(req.Tools))
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	return cm, nil
}

func anthropicModels() []types.Model {
	return []types.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 64000, SupportsTools: true, SupportsVision: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 32000, SupportsTools: true, SupportsVision: true},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true, SupportsVision: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true, SupportsVision: true},
		{ID: "claude-haiku-4-5-20251001", Name: "Claude 4.5 Haiku", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true, SupportsVision: true},
	}
}

// toEinoMessages converts provider-agnostic Messages into Eino's schema,
// the shape both the Claude and OpenAI Eino chat models consume.
func toEinoMessages(msgs []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		em := &schema.Message{Role: schema.RoleType(m.Role), Content: m.Content}
		if m.ToolCallID != "" {
			em.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			em.ToolCalls = append(em.ToolCalls, schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, em)
	}
	return out
}

// toEinoTools converts ToolInfo into Eino's tool-binding shape.
func toEinoTools(tools []ToolInfo) []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}
		out = append(out, &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return out
}

// parseJSONSchemaToParams converts a flat JSON Schema object into Eino's
// ParameterInfo map.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var js struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaJSON, &js); err != nil {
		return nil
	}

	required := make(map[string]bool, len(js.Required))
	for _, r := range js.Required {
		required[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(js.Properties))
	for name, prop := range js.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}
		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: required[name],
		}
	}
	return params
}

// fromEinoMessage converts one complete Eino message into a Response.
func fromEinoMessage(msg *schema.Message) *Response {
	resp := &Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCallInfo{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		resp.Usage = Usage{
			InputTokens:  msg.ResponseMeta.Usage.PromptTokens,
			OutputTokens: msg.ResponseMeta.Usage.CompletionTokens,
		}
	}
	return resp
}
