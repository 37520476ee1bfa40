// Package approval implements the ApprovalBroker (spec C4): per-thread
// caching of approve/deny decisions for tool calls, plus bash command
// parsing and doom-loop detection used to scope those decisions.
package approval

import (
	"errors"
	"fmt"

	"github.com/opencode-ai/lace/pkg/types"
)

// Decision is the user's resolution of an approval request.
type Decision string

const (
	AllowOnce    Decision = "ALLOW_ONCE"
	AllowSession Decision = "ALLOW_SESSION"
	Deny         Decision = "DENY"
)

// Request describes a tool call awaiting an approval decision, per the
// {toolName, args, readOnlyHint, policy} shape spec §4.3 step 3 asks the
// executor to hand the broker.
type Request struct {
	ID           string           `json:"id"`
	ThreadID     string           `json:"threadId"`
	ToolName     string           `json:"toolName"`
	Pattern      []string         `json:"pattern,omitempty"`
	ReadOnlyHint bool             `json:"readOnlyHint,omitempty"`
	Policy       types.ToolPolicy `json:"policy"`
	Title        string           `json:"title"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

// Response is a resolved Decision for a specific request id.
type Response struct {
	RequestID string   `json:"requestId"`
	Decision  Decision `json:"decision"`
}

// ErrDenied is the sentinel a denied tool call's error wraps, per spec §7.
var ErrDenied = errors.New("approval denied")

// DeniedError is returned when a request resolves to DENY, or the
// effective tool policy is deny outright.
type DeniedError struct {
	ThreadID string
	ToolName string
	Metadata map[string]any
	Message  string
}

func (e *DeniedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("tool %q denied", e.ToolName)
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

// IsDenied reports whether err is (or wraps) a tool-call denial.
func IsDenied(err error) bool {
	return errors.Is(err, ErrDenied)
}
