// Package approval implements the ApprovalBroker (spec C4): a per-thread
// cache of approve/deny decisions for tool execution, gated by the merged
// tool policy (allow/deny/require-approval) resolved from session config.
//
// # Overview
//
// The broker operates on a thread-scoped model where each turn's tool
// calls are checked against three policy outcomes:
//   - Allow: execute immediately
//   - Deny: fail the call with ErrDenied
//   - RequireApproval: ask the broker, which blocks until a Decision
//     arrives (ALLOW_ONCE, ALLOW_SESSION or DENY)
//
// # Core Components
//
// ## Broker
//
// Broker is the central component: it tracks pending requests and the
// set of tools/patterns already approved for the rest of a thread's
// session.
//
//	broker := approval.NewBroker(nil)
//	err := broker.Check(ctx, approval.Request{
//		ThreadID: thread.ID,
//		ToolName: "bash",
//		Pattern:  []string{"git *"},
//		Policy:   types.PolicyRequireApproval,
//		Title:    "Execute git command",
//	})
//
// ## Bash Command Parsing
//
// ParseBashCommand extracts command names, arguments, and subcommands for
// fine-grained policy matching:
//
//	commands, err := approval.ParseBashCommand("git commit -m 'fix bug'")
//	// Returns: BashCommand{Name: "git", Subcommand: "commit", Args: ["commit", "-m", "fix bug"]}
//
// ## Pattern Matching
//
// Bash tool policies support wildcard patterns with hierarchical
// matching:
//   - "git commit *" - Matches git commit with any arguments
//   - "git *" - Matches any git subcommand
//   - "git" - Matches git command exactly
//   - "*" - Matches any command
//
// ## Doom Loop Detection
//
// DoomLoopDetector flags a tool call repeated DoomLoopThreshold times in a
// row with identical input, so the executor can force an approval prompt
// even when the tool is otherwise auto-allowed:
//
//	loop := broker.CheckDoomLoop(thread.ID, "bash", args)
//	if loop {
//		// force a require-approval prompt regardless of configured policy
//	}
//
// # Thread Safety
//
// Broker and DoomLoopDetector are safe for concurrent use across
// multiple agent turns.
package approval
