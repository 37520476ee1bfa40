// Package provider defines the Provider capability (spec C5): the only
// surface through which an Agent talks to an LLM. The core never imports
// HTTP types; concrete providers adapt a transport (Eino chat models,
// wrapping the Anthropic and OpenAI SDKs) to this package's Chunk model.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/lace/pkg/types"
)

// ErrProviderTransient marks a stream error safe to retry (spec §7).
var ErrProviderTransient = errors.New("provider: transient error")

// ErrProviderFatal marks a non-retryable provider error (spec §7).
var ErrProviderFatal = errors.New("provider: fatal error")

// Provider is the capability an Agent depends on to drive a turn.
type Provider interface {
	ID() string
	Name() string
	Models() []types.Model

	// ChatModel exposes the underlying Eino chat model. Only this
	// package and concrete provider implementations touch it directly.
	ChatModel() model.ToolCallingChatModel

	// CreateResponse runs a non-streaming completion.
	CreateResponse(ctx context.Context, req *CompletionRequest) (*Response, error)

	// CreateStreamingResponse opens a streaming completion. The
	// returned Stream yields a finite, forward-only sequence of Chunks
	// terminated by exactly one ChunkEnd or ChunkErr.
	CreateStreamingResponse(ctx context.Context, req *CompletionRequest) (*Stream, error)
}

// Message is the provider-agnostic wire shape for one turn of history,
// translated from thread Events by the Agent before a request is built.
type Message struct {
	Role       string // "user" | "assistant" | "system" | "tool"
	Content    string
	ToolCalls  []ToolCallInfo // assistant message requesting tool calls
	ToolCallID string         // tool-role message: result for this call
}

// ToolCallInfo is one model-requested tool invocation.
type ToolCallInfo struct {
	ID        string
	Name      string
	Arguments string // JSON object, as produced by the model
}

// ToolInfo describes a tool available to the model for this request.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema
}

// CompletionRequest is a request to generate (or stream) a completion.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolInfo
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Usage reports token accounting for a completed response.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the result of a non-streaming completion.
type Response struct {
	Content   string
	ToolCalls []ToolCallInfo
	Usage     Usage
}

// ChunkType discriminates the payload of a streamed Chunk, matching spec
// §4.5's chunk taxonomy exactly.
type ChunkType string

const (
	ChunkTextDelta     ChunkType = "text-delta"
	ChunkToolCallStart ChunkType = "tool-call-start"
	ChunkToolCallDelta ChunkType = "tool-call-delta"
	ChunkToolCallEnd   ChunkType = "tool-call-end"
	ChunkEnd           ChunkType = "end"
	ChunkErr           ChunkType = "error"
)

// Chunk is one element of a provider's streaming response. Tool-call
// chunks for the same ID are produced in causal order; a consumer
// reassembles Arguments by concatenating ArgDelta across the
// tool-call-delta chunks that follow its tool-call-start. A Stream never
// emits tool-call-end itself; see EmitToolCallEnd.
type Chunk struct {
	Type ChunkType

	// text-delta
	Text string

	// tool-call-start / tool-call-delta / tool-call-end
	ToolCallID string
	ToolName   string // tool-call-start only
	ArgDelta   string // tool-call-delta only

	// end
	Usage Usage

	// error
	Err error
}

// Stream is a pull-based iterator over Chunks, adapting an Eino
// StreamReader so callers never see Eino types.
type Stream struct {
	reader *schema.StreamReader[*schema.Message]

	pending []Chunk // chunks derived from the last Recv, not yet returned

	textOpen    bool
	toolIndex   map[int]string // eino tool-call Index -> our ToolCallID
	toolStarted map[string]bool
	done        bool
}

// NewStream wraps an Eino message stream reader.
func NewStream(reader *schema.StreamReader[*schema.Message]) *Stream {
	return &Stream{
		reader:      reader,
		toolIndex:   make(map[int]string),
		toolStarted: make(map[string]bool),
	}
}

// Next returns the next Chunk. After a ChunkEnd or ChunkErr chunk is
// returned, every subsequent call returns (nil, nil); callers stop on
// Type == ChunkEnd/ChunkErr.
func (s *Stream) Next() (*Chunk, error) {
	for len(s.pending) == 0 && !s.done {
		msg, err := s.reader.Recv()
		if err != nil {
			s.done = true
			if isStreamEOF(err) {
				s.pending = append(s.pending, Chunk{Type: ChunkEnd})
				break
			}
			s.pending = append(s.pending, Chunk{Type: ChunkErr, Err: classifyStreamErr(err)})
			break
		}
		s.translate(msg)
		if msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason != "" {
			s.done = true
			usage := Usage{}
			if msg.ResponseMeta.Usage != nil {
				usage.InputTokens = msg.ResponseMeta.Usage.PromptTokens
				usage.OutputTokens = msg.ResponseMeta.Usage.CompletionTokens
			}
			s.pending = append(s.pending, Chunk{Type: ChunkEnd, Usage: usage})
		}
	}

	if len(s.pending) == 0 {
		return nil, nil
	}
	c := s.pending[0]
	s.pending = s.pending[1:]
	return &c, nil
}

// Close releases the underlying stream.
func (s *Stream) Close() {
	s.reader.Close()
}

// translate appends zero or more Chunks derived from one Eino message
// delta into s.pending, in causal order.
func (s *Stream) translate(msg *schema.Message) {
	if msg.Content != "" {
		s.pending = append(s.pending, Chunk{Type: ChunkTextDelta, Text: msg.Content})
	}

	for _, tc := range msg.ToolCalls {
		idx := -1
		if tc.Index != nil {
			idx = *tc.Index
		}

		id, known := s.toolIndex[idx]
		if !known {
			id = tc.ID
			if id == "" {
				id = fmt.Sprintf("toolcall-%d", idx)
			}
			s.toolIndex[idx] = id
		}

		if !s.toolStarted[id] && tc.ID != "" && tc.Function.Name != "" {
			s.toolStarted[id] = true
			s.pending = append(s.pending, Chunk{
				Type:       ChunkToolCallStart,
				ToolCallID: id,
				ToolName:   tc.Function.Name,
			})
		}

		if tc.Function.Arguments != "" {
			s.pending = append(s.pending, Chunk{
				Type:       ChunkToolCallDelta,
				ToolCallID: id,
				ArgDelta:   tc.Function.Arguments,
			})
		}
	}
}

// EmitToolCallEnd lets a caller (the Agent) signal that it has decided a
// tool call's argument accumulation is complete, once it sees no more
// deltas are coming for that ID. The provider package does not know when
// a tool call ends on its own — Eino does not emit an explicit boundary
// chunk — so this is a pure helper, not driven by the stream.
func EmitToolCallEnd(id string) Chunk {
	return Chunk{Type: ChunkToolCallEnd, ToolCallID: id}
}

func isStreamEOF(err error) bool {
	return err != nil && err.Error() == "EOF"
}

// classifyStreamErr maps a raw Eino/transport error onto the spec's
// retryable/fatal taxonomy. Network and rate-limit style errors are
// treated as transient; everything else is fatal. Concrete providers may
// wrap errors with more specific classification before they reach here.
func classifyStreamErr(err error) error {
	if errors.Is(err, ErrProviderTransient) || errors.Is(err, ErrProviderFatal) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrProviderTransient, err)
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "429", "503", "overloaded", "connection reset", "timeout"} {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %v", ErrProviderTransient, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrProviderFatal, err)
}
