// Package provider implements Lace's provider capability: the only
// surface through which an Agent talks to an LLM. It unifies Anthropic
// Claude and OpenAI GPT behind one interface, backed by the Eino
// framework.
//
// # Core Components
//
//   - Provider: the capability interface (CreateResponse,
//     CreateStreamingResponse) every backend implements.
//   - Registry: holds configured provider instances keyed by
//     providerInstanceId, as referenced from a thread's LayerConfig.
//   - Chunk/Stream: the provider-agnostic streaming model. A Stream
//     translates an Eino StreamReader into a sequence of Chunks
//     (text-delta, tool-call-start, tool-call-delta, end, error) so that
//     the agent package never imports Eino types directly. A Stream emits
//     no tool-call-end chunk; EmitToolCallEnd builds one on request.
//
// # Anthropic (Claude)
//
// Supports Claude models directly or via AWS Bedrock, with optional
// extended thinking:
//
//	p, err := NewAnthropicProvider(ctx, &AnthropicConfig{
//	    ID:    "anthropic",
//	    Model: "claude-sonnet-4-20250514",
//	})
//
// # OpenAI (GPT)
//
// Supports native OpenAI and Azure OpenAI endpoints:
//
//	p, err := NewOpenAIProvider(ctx, &OpenAIConfig{
//	    ID:    "openai",
//	    Model: "gpt-4o",
//	})
//
// # Registry Usage
//
//	registry, err := InitializeProviders(ctx, instances)
//	p, err := registry.Get("anthropic")
//	model, err := registry.GetModel("anthropic", "claude-sonnet-4-20250514")
//	model, err := registry.DefaultModel()
//
// # Streaming
//
//	stream, err := p.CreateStreamingResponse(ctx, req)
//	for {
//	    chunk, err := stream.Next()
//	    if err != nil || chunk == nil {
//	        break
//	    }
//	    if chunk.Type == ChunkEnd || chunk.Type == ChunkErr {
//	        break
//	    }
//	}
//	stream.Close()
package provider
