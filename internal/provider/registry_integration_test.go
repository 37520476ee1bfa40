package provider

import (
	"context"
	"os"
	"testing"
)

// providerTestConfig names an env-gated end-to-end provider configuration.
type providerTestConfig struct {
	Name           string
	ProviderID     string
	Kind           InstanceKind
	APIKeyEnv      string
	BaseURLEnv     string
	ModelIDEnv     string
	DefaultModelID string
}

var providerTestConfigs = []providerTestConfig{
	{
		Name:           "Anthropic",
		ProviderID:     "anthropic",
		Kind:           KindAnthropic,
		APIKeyEnv:      "ANTHROPIC_KEY",
		ModelIDEnv:     "ANTHROPIC_MODEL_ID",
		DefaultModelID: "claude-3-5-haiku-20241022",
	},
	{
		Name:           "OpenAI",
		ProviderID:     "openai",
		Kind:           KindOpenAI,
		APIKeyEnv:      "OPENAI_API_KEY",
		BaseURLEnv:     "OPENAI_BASE_URL",
		ModelIDEnv:     "OPENAI_MODEL_ID",
		DefaultModelID: "gpt-4o-mini",
	},
}

func TestRegistryLLMIntegration(t *testing.T) {
	for _, tc := range providerTestConfigs {
		t.Run(tc.Name, func(t *testing.T) {
			apiKey := os.Getenv(tc.APIKeyEnv)
			if apiKey == "" {
				t.Skipf("%s not set, skipping %s integration test", tc.APIKeyEnv, tc.Name)
			}

			modelID := os.Getenv(tc.ModelIDEnv)
			if modelID == "" {
				modelID = tc.DefaultModelID
			}

			ctx := context.Background()
			registry, err := InitializeProviders(ctx, []InstanceConfig{
				{ID: tc.ProviderID, Kind: tc.Kind, APIKey: apiKey, BaseURL: os.Getenv(tc.BaseURLEnv), Model: modelID},
			})
			if err != nil {
				t.Fatalf("failed to initialize providers: %v", err)
			}

			provider, err := registry.Get(tc.ProviderID)
			if err != nil {
				t.Fatalf("failed to get provider %s from registry: %v", tc.ProviderID, err)
			}

			runProviderIntegrationTests(t, provider, modelID)
		})
	}
}

func runProviderIntegrationTests(t *testing.T, provider Provider, modelID string) {
	ctx := context.Background()

	if provider.ID() == "" {
		t.Error("expected non-empty provider ID")
	}
	if provider.Name() == "" {
		t.Error("expected non-empty provider name")
	}

	t.Run("SimpleCompletion", func(t *testing.T) {
		req := &CompletionRequest{
			Model:       modelID,
			Messages:    []Message{{Role: "user", Content: "Say 'Hello, World!' and nothing else."}},
			MaxTokens:   100,
			Temperature: 0.0,
		}
		resp, err := provider.CreateResponse(ctx, req)
		if err != nil {
			t.Fatalf("CreateResponse failed: %v", err)
		}
		if resp.Content == "" {
			t.Error("expected non-empty response")
		}
	})

	t.Run("StreamingChunks", func(t *testing.T) {
		req := &CompletionRequest{
			Model:     modelID,
			Messages:  []Message{{Role: "user", Content: "Count from 1 to 5, one number per line."}},
			MaxTokens: 100,
		}
		stream, err := provider.CreateStreamingResponse(ctx, req)
		if err != nil {
			t.Fatalf("CreateStreamingResponse failed: %v", err)
		}
		defer stream.Close()

		chunkCount := 0
		for {
			chunk, err := stream.Next()
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if chunk == nil || chunk.Type == ChunkEnd || chunk.Type == ChunkErr {
				break
			}
			chunkCount++
		}
		if chunkCount == 0 {
			t.Error("expected at least one chunk")
		}
	})

	t.Run("MultiTurnConversation", func(t *testing.T) {
		req := &CompletionRequest{
			Model: modelID,
			Messages: []Message{
				{Role: "user", Content: "Remember the number 42."},
				{Role: "assistant", Content: "I'll remember the number 42."},
				{Role: "user", Content: "What number did I ask you to remember? Reply with just the number."},
			},
			MaxTokens: 50,
		}
		resp, err := provider.CreateResponse(ctx, req)
		if err != nil {
			t.Fatalf("CreateResponse failed: %v", err)
		}
		if resp.Content == "" {
			t.Error("expected non-empty response")
		}
	})
}

func TestRegistryMultiProvider(t *testing.T) {
	var instances []InstanceConfig
	var available []string

	for _, tc := range providerTestConfigs {
		apiKey := os.Getenv(tc.APIKeyEnv)
		if apiKey == "" {
			continue
		}
		modelID := os.Getenv(tc.ModelIDEnv)
		if modelID == "" {
			modelID = tc.DefaultModelID
		}
		instances = append(instances, InstanceConfig{ID: tc.ProviderID, Kind: tc.Kind, APIKey: apiKey, BaseURL: os.Getenv(tc.BaseURLEnv), Model: modelID})
		available = append(available, tc.ProviderID)
	}

	if len(available) == 0 {
		t.Skip("no provider API keys configured, skipping multi-provider test")
	}

	registry, err := InitializeProviders(context.Background(), instances)
	if err != nil {
		t.Fatalf("failed to initialize providers: %v", err)
	}

	if got := len(registry.List()); got != len(available) {
		t.Errorf("expected %d providers, got %d", len(available), got)
	}
	for _, id := range available {
		if _, err := registry.Get(id); err != nil {
			t.Errorf("failed to get provider %s: %v", id, err)
		}
	}
}
