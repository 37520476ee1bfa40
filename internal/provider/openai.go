package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/lace/pkg/types"
)

// OpenAIProvider implements Provider over OpenAI (and Azure-OpenAI
// compatible) chat models via Eino's openai chat model.
type OpenAIProvider struct {
	chatModel model.ToolCallingChatModel
	models    []types.Model
	config    *OpenAIConfig
}

// OpenAIConfig holds configuration for one OpenAI provider instance.
type OpenAIConfig struct {
	// ID is the provider instance identifier. Defaults to "openai".
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	UseAzure   bool
	APIVersion string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
func NewOpenAIProvider(ctx context.Context, config *OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		if config.UseAzure {
			apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		} else {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	modelID := config.Model
	if modelID == "" {
		modelID = "gpt-4o"
	}

	cfg := &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	if config.UseAzure {
		cfg.ByAzure = true
		cfg.APIVersion = config.APIVersion
		if cfg.APIVersion == "" {
			cfg.APIVersion = "2024-02-15-preview"
		}
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create openai chat model: %w", err)
	}

	return &OpenAIProvider{
		chatModel: chatModel,
		models:    openAIModels(),
		config:    config,
	}, nil
}

// ID returns the provider instance identifier.
func (p *OpenAIProvider) ID() string {
	if p.config.ID != "" {
		return p.config.ID
	}
	return "openai"
}

// Name returns the human-readable provider name.
func (p *OpenAIProvider) Name() string { return "OpenAI" }

// Models returns the catalogue of models this provider instance serves.
func (p *OpenAIProvider) Models() []types.Model { return p.models }

// ChatModel returns the underlying Eino chat model.
func (p *OpenAIProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }

// CreateResponse runs a non-streaming completion.
func (p *OpenAIProvider) CreateResponse(ctx context.Context, req *CompletionRequest) (*Response, error) {
	cm, err := p.bindTools(req)
	if err != nil {
		return nil, err
	}

	msg, err := cm.Generate(ctx, toEinoMessages(req.Messages), p.genOpts(req)...)
	if err != nil {
		return nil, classifyStreamErr(err)
	}
	return fromEinoMessage(msg), nil
}

// CreateStreamingResponse opens a streaming completion.
func (p *OpenAIProvider) CreateStreamingResponse(ctx context.Context, req *CompletionRequest) (*Stream, error) {
	cm, err := p.bindTools(req)
	if err != nil {
		return nil, err
	}

	reader, err := cm.Stream(ctx, toEinoMessages(req.Messages), p.genOpts(req)...)
	if err != nil {
		return nil, classifyStreamErr(err)
	}
	return NewStream(reader), nil
}

func (p *OpenAIProvider) bindTools(req *CompletionRequest) (model.ToolCallingChatModel, error) {
	if len(req.Tools) == 0 {
		return p.chatModel, nil
	}
	cm, err := p.chatModel.WithTools(toEinoTools(req.Tools))
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	return cm, nil
}

// genOpts builds Eino generation options. GPT-5/O1-family models require
// max_completion_tokens rather than max_tokens.
func (p *OpenAIProvider) genOpts(req *CompletionRequest) []model.Option {
	opts := []model.Option{openai.WithMaxCompletionTokens(req.MaxTokens)}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}
	return opts
}

func openAIModels() []types.Model {
	return []types.Model{
		{ID: "gpt-5", Name: "GPT-5", ProviderID: "openai", ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true, SupportsVision: true},
		{ID: "gpt-5-mini", Name: "GPT-5 Mini", ProviderID: "openai", ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true, SupportsVision: true},
		{ID: "gpt-5-nano", Name: "GPT-5 Nano", ProviderID: "openai", ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true, SupportsVision: true},
		{ID: "gpt-4o", Name: "GPT-4o", ProviderID: "openai", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true, SupportsVision: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ProviderID: "openai", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true, SupportsVision: true},
		{ID: "o1", Name: "O1", ProviderID: "openai", ContextLength: 200000, MaxOutputTokens: 100000, SupportsTools: true},
		{ID: "o1-mini", Name: "O1 Mini", ProviderID: "openai", ContextLength: 128000, MaxOutputTokens: 65536, SupportsTools: true},
	}
}
