package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/opencode-ai/lace/internal/approval"
	"github.com/opencode-ai/lace/pkg/types"
)

// ErrUnknownTool is returned (wrapped into an error Result, never thrown
// past Execute) when a Call names a tool the Registry does not have.
var ErrUnknownTool = errors.New("tool: unknown tool")

// ErrValidation is returned (wrapped into an error Result) when a Call's
// Args fail the tool's declared JSON Schema.
var ErrValidation = errors.New("tool: argument validation failed")

// Call is one tool invocation, already reassembled from a provider's
// tool-call-start/delta/end chunks by the Agent.
type Call struct {
	ThreadID string
	CallID   string
	ToolName string
	Args     json.RawMessage
	Policy   types.ToolPolicy // effective policy for this call, from the merged session config
	Context  *Context
}

// Executor is the spec's Tool Registry & Executor (C3) call contract:
// resolve, validate, approve, invoke, normalise. A Registry alone only
// does step 1 (resolve); Executor wraps it with the remaining four.
type Executor struct {
	registry *Registry
	broker   *approval.Broker

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema // tool id -> compiled schema, nil cached for schema-less tools
}

// NewExecutor creates an Executor over registry, consulting broker for
// require-approval policies. A nil broker treats every require-approval
// call as denied, since there is nothing to ask.
func NewExecutor(registry *Registry, broker *approval.Broker) *Executor {
	return &Executor{
		registry: registry,
		broker:   broker,
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

// Execute runs the five-step contract. It only returns a non-nil error
// for infrastructure failures (context cancellation, a broker with no
// way to resolve a pending request) — tool-level failures (unknown tool,
// bad args, denial, a failing command) come back as an error Result so
// the turn can feed them to the model as a TOOL_RESULT, per spec §7.
func (e *Executor) Execute(ctx context.Context, call Call) (*Result, error) {
	t, ok := e.registry.Get(call.ToolName)
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool %q", call.ToolName), ErrUnknownTool), nil
	}

	if err := e.validate(t, call.Args); err != nil {
		return errorResult(err.Error(), err), nil
	}

	if err := e.approve(ctx, call); err != nil {
		if approval.IsDenied(err) {
			return errorResult(err.Error(), err), nil
		}
		return nil, err
	}

	res, err := t.Execute(ctx, call.Args, call.Context)
	if err != nil {
		return errorResult(err.Error(), err), nil
	}
	if res == nil {
		res = &Result{}
	}
	return res, nil
}

func (e *Executor) approve(ctx context.Context, call Call) error {
	policy := call.Policy
	if policy == "" {
		policy = types.PolicyRequireApproval
	}
	if e.broker == nil {
		if policy == types.PolicyAllow {
			return nil
		}
		return &approval.DeniedError{ThreadID: call.ThreadID, ToolName: call.ToolName, Message: "no approval broker configured"}
	}
	if policy == types.PolicyAllow && e.broker.CheckDoomLoop(call.ThreadID, call.ToolName, call.Args) {
		policy = types.PolicyRequireApproval
	}
	return e.broker.Check(ctx, approval.Request{
		ThreadID: call.ThreadID,
		ToolName: call.ToolName,
		Policy:   policy,
		Title:    call.ToolName,
	})
}

// errorResult builds the error Result shape spec §4.3 step 2/5 requires:
// never thrown past the executor, carrying the failure as text so a
// model can react to it.
func errorResult(msg string, err error) *Result {
	return &Result{
		Title:    "error",
		Output:   msg,
		Error:    err,
		Metadata: map[string]any{"isError": true},
	}
}

// validate checks args against t's declared JSON Schema, returning an
// error that names the field path and reason on failure (spec §4.3 step
// 2). A tool with no properties in its schema is treated as schema-less
// and always passes.
func (e *Executor) validate(t Tool, args json.RawMessage) error {
	schema, err := e.compiledSchema(t)
	if err != nil {
		return fmt.Errorf("%w: compiling schema for %s: %v", ErrValidation, t.ID(), err)
	}
	if schema == nil {
		return nil
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("%w: %s: invalid JSON: %v", ErrValidation, t.ID(), err)
	}

	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := ve
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			loc := leaf.InstanceLocation
			if loc == "" {
				loc = "(root)"
			}
			return fmt.Errorf("%w: %s: %s: %s", ErrValidation, t.ID(), loc, leaf.Message)
		}
		return fmt.Errorf("%w: %s: %v", ErrValidation, t.ID(), err)
	}
	return nil
}

// compiledSchema lazily compiles and caches t's JSON Schema by tool ID.
// Most tools have a fixed Parameters() result for the registry's
// lifetime, so compiling once per tool (not per call) keeps validation
// off the hot path.
func (e *Executor) compiledSchema(t Tool) (*jsonschema.Schema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, cached := e.schemas[t.ID()]; cached {
		return s, nil
	}

	raw := t.Parameters()
	if len(raw) == 0 {
		e.schemas[t.ID()] = nil
		return nil, nil
	}

	resourceURL := "lace://tool/" + t.ID() + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, err
	}
	e.schemas[t.ID()] = compiled
	return compiled, nil
}
