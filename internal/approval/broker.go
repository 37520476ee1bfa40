package approval

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/lace/internal/event"
	"github.com/opencode-ai/lace/pkg/types"
)

// Broker is the ApprovalBroker: caches ALLOW_SESSION decisions per
// (threadId, toolName) and per (threadId, pattern), and mediates
// require-approval tool calls through the event bus.
type Broker struct {
	mu       sync.RWMutex
	approved map[string]map[string]bool // threadId -> toolName -> approved for the rest of the session
	patterns map[string]map[string]bool // threadId -> pattern -> approved
	pending  map[string]chan Response   // requestId -> response channel

	doomLoop *DoomLoopDetector
	bus      *event.Bus
}

// NewBroker creates a Broker publishing notifications on bus. A nil bus
// falls back to the package-level global bus.
func NewBroker(bus *event.Bus) *Broker {
	return &Broker{
		approved: make(map[string]map[string]bool),
		patterns: make(map[string]map[string]bool),
		pending:  make(map[string]chan Response),
		doomLoop: NewDoomLoopDetector(),
		bus:      bus,
	}
}

func (b *Broker) publish(e event.Event) {
	if b.bus != nil {
		b.bus.Publish(e)
		return
	}
	event.Publish(e)
}

// Check applies the executor's effective policy for a tool call: allow
// and deny resolve immediately, require-approval consults the broker (and
// blocks the calling turn until a decision arrives).
func (b *Broker) Check(ctx context.Context, req Request) error {
	switch req.Policy {
	case types.PolicyAllow:
		return nil
	case types.PolicyDeny:
		return &DeniedError{ThreadID: req.ThreadID, ToolName: req.ToolName, Metadata: req.Metadata, Message: "tool policy denies " + req.ToolName}
	default:
		return b.RequestApproval(ctx, req)
	}
}

// RequestApproval asks the broker to resolve req, short-circuiting if an
// earlier ALLOW_SESSION decision already covers this tool or pattern.
func (b *Broker) RequestApproval(ctx context.Context, req Request) error {
	if b.IsApproved(req.ThreadID, req.ToolName) {
		return nil
	}
	if len(req.Pattern) > 0 && b.allPatternsApproved(req.ThreadID, req.Pattern) {
		return nil
	}

	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	respChan := make(chan Response, 1)
	b.mu.Lock()
	b.pending[req.ID] = respChan
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	b.publish(event.Event{
		Type: event.ApprovalRequired,
		Data: event.ApprovalRequiredData{
			ID:       req.ID,
			ThreadID: req.ThreadID,
			ToolName: req.ToolName,
			Pattern:  req.Pattern,
			Title:    req.Title,
		},
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-respChan:
		switch resp.Decision {
		case AllowOnce:
			return nil
		case AllowSession:
			b.approveSession(req.ThreadID, req.ToolName, req.Pattern)
			return nil
		default:
			return &DeniedError{ThreadID: req.ThreadID, ToolName: req.ToolName, Metadata: req.Metadata, Message: "approval denied by user"}
		}
	}
}

// Resolve delivers decision to the request's waiting RequestApproval call
// and publishes approval.resolved.
func (b *Broker) Resolve(requestID string, decision Decision) {
	b.mu.RLock()
	ch, ok := b.pending[requestID]
	b.mu.RUnlock()

	if ok {
		ch <- Response{RequestID: requestID, Decision: decision}
	}

	b.publish(event.Event{
		Type: event.ApprovalResolved,
		Data: event.ApprovalResolvedData{ApprovalID: requestID, Decision: string(decision)},
	})
}

// approveSession marks toolName (and any patterns) as approved for the
// remainder of threadId's session.
func (b *Broker) approveSession(threadID, toolName string, patterns []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.approved[threadID] == nil {
		b.approved[threadID] = make(map[string]bool)
	}
	b.approved[threadID][toolName] = true

	if len(patterns) > 0 {
		if b.patterns[threadID] == nil {
			b.patterns[threadID] = make(map[string]bool)
		}
		for _, p := range patterns {
			b.patterns[threadID][p] = true
		}
	}
}

// IsApproved reports whether toolName is already ALLOW_SESSION-approved
// for threadID.
func (b *Broker) IsApproved(threadID, toolName string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.approved[threadID][toolName]
}

// IsPatternApproved reports whether pattern is already approved for
// threadID.
func (b *Broker) IsPatternApproved(threadID, pattern string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.patterns[threadID][pattern]
}

func (b *Broker) allPatternsApproved(threadID string, patterns []string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	approved := b.patterns[threadID]
	for _, p := range patterns {
		if !approved[p] {
			return false
		}
	}
	return true
}

// ApprovePattern explicitly marks pattern as approved for threadID,
// bypassing the RequestApproval round trip (used to seed tests/headless
// policies).
func (b *Broker) ApprovePattern(threadID, pattern string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.patterns[threadID] == nil {
		b.patterns[threadID] = make(map[string]bool)
	}
	b.patterns[threadID][pattern] = true
}

// ClearThread forgets every ALLOW_SESSION approval recorded for threadID.
// Nothing else in the module calls it, so recorded approvals last as long
// as the Broker does.
func (b *Broker) ClearThread(threadID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.approved, threadID)
	delete(b.patterns, threadID)
}

// CheckDoomLoop reports whether toolName+input repeats the prior
// DoomLoopThreshold calls on threadID, per spec §4.4's implicit "doom
// loop" approval type, re-surfaced here as an executor-side guard rather
// than its own PermissionType.
func (b *Broker) CheckDoomLoop(threadID, toolName string, input any) bool {
	return b.doomLoop.Check(threadID, toolName, input)
}

// ResetDoomLoop clears doom-loop history for threadID (e.g. on cancel).
func (b *Broker) ResetDoomLoop(threadID string) {
	b.doomLoop.Reset(threadID)
}
