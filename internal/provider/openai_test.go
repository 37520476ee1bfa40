package provider

import (
	"context"
	"os"
	"testing"
)

func TestOpenAIProviderIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	modelID := os.Getenv("OPENAI_MODEL_ID")
	if modelID == "" {
		modelID = "gpt-4o-mini"
	}

	ctx := context.Background()

	provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{APIKey: apiKey, Model: modelID, MaxTokens: 1024})
	if err != nil {
		t.Fatalf("failed to create openai provider: %v", err)
	}

	if provider.ID() != "openai" {
		t.Errorf("ID = %s, want openai", provider.ID())
	}
	if provider.Name() != "OpenAI" {
		t.Errorf("Name = %s, want OpenAI", provider.Name())
	}
	if len(provider.Models()) == 0 {
		t.Error("expected at least one model")
	}

	t.Run("SimpleCompletion", func(t *testing.T) {
		req := &CompletionRequest{
			Model:     modelID,
			Messages:  []Message{{Role: "user", Content: "Say 'Hello, World!' and nothing else."}},
			MaxTokens: 100,
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
