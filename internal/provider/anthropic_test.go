package provider

import (
	"context"
	"os"
	"testing"
)

func TestAnthropicProviderIntegration(t *testing.T) {
	apiKey := os.Getenv("ANTHROPIC_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		t.Skip("ANTHROPIC_KEY not set, skipping integration test")
	}

	modelID := os.Getenv("ANTHROPIC_MODEL_ID")
	if modelID == "" {
		modelID = "claude-3-5-haiku-20241022"
	}

	ctx := context.Background()

	provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{APIKey: apiKey, MaxTokens: 1024})
	if err != nil {
		t.Fatalf("failed to create anthropic provider: %v", err)
	}

	if provider.ID() != "anthropic" {
		t.Errorf("ID = %s, want anthropic", provider.ID())
	}
	if provider.Name() != "Anthropic" {
		t.Errorf("Name = %s, want Anthropic", provider.Name())
	}
	if len(provider.Models()) == 0 {
		t.Error("expected at least one model")
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
			Model:       modelID,
			Messages:    []Message{{Role: "user", Content: "Count from 1 to 5, one number per line."}},
			MaxTokens:   100,
			Temperature: 0.0,
		}

		stream, err := provider.CreateStreamingResponse(ctx, req)
		if err != nil {
			t.Fatalf("CreateStreamingResponse failed: %v", err)
		}
		defer stream.Close()

		sawEnd := false
		chunkCount := 0
		for {
			chunk, err := stream.Next()
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if chunk == nil {
				break
			}
			chunkCount++
			if chunk.Type == ChunkEnd {
				sawEnd = true
				break
			}
			if chunk.Type == ChunkErr {
				t.Fatalf("stream error chunk: %v", chunk.Err)
			}
		}
		if chunkCount == 0 {
			t.Error("expected at least one chunk")
		}
		if !sawEnd {
			t.Error("expected stream to terminate with an end chunk")
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
			MaxTokens:   50,
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

	t.Run("ToolBinding", func(t *testing.T) {
		tools := []ToolInfo{
			{
				Name:        "calculator",
				Description: "Performs arithmetic calculations",
				Parameters:  []byte(`{"type":"object","properties":{"expression":{"type":"string"}}}`),
			},
		}
		req := &CompletionRequest{Model: modelID, Tools: tools}
		cm, err := provider.bindTools(req)
		if err != nil {
			t.Fatalf("bindTools failed: %v", err)
		}
		if cm == nil {
			t.Error("expected non-nil bound chat model")
		}
	})
}

func TestAnthropicProviderCustomID(t *testing.T) {
	apiKey := os.Getenv("ANTHROPIC_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		t.Skip("ANTHROPIC_KEY not set, skipping test")
	}

	ctx := context.Background()
	provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{ID: "claude", APIKey: apiKey, MaxTokens: 1024})
	if err != nil {
		t.Fatalf("failed to create anthropic provider: %v", err)
	}
	if provider.ID() != "claude" {
		t.Errorf("ID = %s, want claude", provider.ID())
	}
}

func TestAnthropicProviderNoAPIKey(t *testing.T) {
	ctx := context.Background()

	for _, key := range []string{"ANTHROPIC_KEY", "ANTHROPIC_API_KEY"} {
		original := os.Getenv(key)
		os.Unsetenv(key)
		defer os.Setenv(key, original)
	}

	if _, err := NewAnthropicProvider(ctx, &AnthropicConfig{MaxTokens: 1024}); err == nil {
		t.Error("expected error when no API key is set")
	}
}
