// Package agent provides agent definitions and the turn-execution state
// machine that drives a thread forward one model turn at a time.
//
// It covers two related concerns: [Definition] is static configuration —
// which tools an agent may use, its default permissions and model — and
// [Agent] is the runtime object that actually drives a thread through a
// turn, consuming provider output and invoking tools until the turn is
// DONE, FAILED, or CANCELLED.
//
// # Agent Definitions
//
// The package provides four built-in definitions:
//
//   - build: Primary agent for executing tasks, writing code, and making changes.
//     Has full tool access and permissive permissions.
//   - plan: Primary agent for analysis and exploration without making changes.
//     Restricted to read-only operations.
//   - general: Subagent for general-purpose searches and exploration.
//   - explore: Fast subagent specialized for codebase exploration.
//
// # Modes
//
// Definitions operate in one of three modes:
//
//   - ModePrimary: Can be selected as the main agent for a session
//   - ModeSubagent: Can only be invoked by other agents via the Task tool
//   - ModeAll: Can operate in both primary and subagent contexts
//
// # Tool Access Control
//
// Each definition has a Tools map that controls which tools are
// available, using exact names or wildcard patterns:
//
//	def.Tools = map[string]bool{
//	    "*":     true,   // Enable all tools by default
//	    "bash":  false,  // Disable bash specifically
//	    "mcp_*": true,   // Enable all MCP tools
//	}
//
// [Definition.ToolEnabled] checks tool availability, supporting glob
// patterns including doublestar (**) for complex matching.
//
// # Permissions
//
// Definitions carry default tool policies through [DefinitionPerms],
// expressed with the same types.ToolPolicy vocabulary the approval
// broker uses (allow, deny, require-approval):
//
//   - Edit: file editing
//   - Bash: command patterns mapped to policies
//   - WebFetch: web fetching
//   - ExternalDir: access outside the project worktree
//   - DoomLoop: handling of repeated failure patterns
//
// # Registry
//
// [Registry] manages definitions with thread-safe operations:
//
//	registry := agent.NewRegistry()  // Includes built-in definitions
//	registry.Register(customDef)
//	def, err := registry.Get("build")
//	primary := registry.ListPrimary()
//	subagents := registry.ListSubagents()
//
// # Turn Execution
//
// [Agent] implements the IDLE -> RUNNING -> WAITING_FOR_TOOL ->
// WAITING_FOR_APPROVAL -> APPENDING -> DONE/FAILED/CANCELLED state
// machine: it builds a conversation window from a thread's event log,
// streams a provider completion, executes any tool calls the model
// requests, and appends the results back to the thread as events.
package agent
