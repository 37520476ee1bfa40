package approval

import (
	"strings"

	"github.com/opencode-ai/lace/pkg/types"
)

// MatchBashPolicy finds the matching tool policy override for a parsed
// bash command, falling back to require-approval when nothing matches.
func MatchBashPolicy(cmd BashCommand, policies map[string]types.ToolPolicy) types.ToolPolicy {
	// Build command string variations for matching
	cmdWithSubcommand := cmd.Name
	if cmd.Subcommand != "" {
		cmdWithSubcommand = cmd.Name + " " + cmd.Subcommand
	}

	// Try most specific match first: "git commit *"
	if cmd.Subcommand != "" {
		if policy, ok := policies[cmdWithSubcommand+" *"]; ok {
			return policy
		}
	}

	// Try command + wildcard: "git *"
	if policy, ok := policies[cmd.Name+" *"]; ok {
		return policy
	}

	// Try command alone: "git"
	if policy, ok := policies[cmd.Name]; ok {
		return policy
	}

	// Try global wildcard: "*"
	if policy, ok := policies["*"]; ok {
		return policy
	}

	return types.PolicyRequireApproval
}

// MatchPattern checks if a command matches a wildcard pattern.
// Pattern format: "command subcommand *" or "command *" or "*"
func MatchPattern(pattern string, cmd BashCommand) bool {
	parts := strings.Split(pattern, " ")
	if len(parts) == 0 {
		return false
	}

	// Global wildcard matches everything
	if parts[0] == "*" && len(parts) == 1 {
		return true
	}

	// Match command name
	if parts[0] != "*" && parts[0] != cmd.Name {
		return false
	}

	// If only command name, must match exactly
	if len(parts) == 1 {
		return cmd.Name == parts[0] && len(cmd.Args) == 0
	}

	// If pattern ends with *, match any subcommand/args
	if parts[len(parts)-1] == "*" {
		// Match intermediate parts (subcommands)
		for i := 1; i < len(parts)-1; i++ {
			argIndex := i - 1
			if argIndex >= len(cmd.Args) {
				return false
			}
			if parts[i] != "*" && parts[i] != cmd.Args[argIndex] {
				return false
			}
		}
		return true
	}

	// Exact match required
	if len(parts)-1 != len(cmd.Args) {
		return false
	}
	for i := 1; i < len(parts); i++ {
		if parts[i] != cmd.Args[i-1] {
			return false
		}
	}
	return true
}

// BuildPattern creates a tool-policy pattern for a command.
// For "git commit -m msg", returns "git commit *"
// For "ls -la", returns "ls *"
func BuildPattern(cmd BashCommand) string {
	if cmd.Subcommand != "" {
		return cmd.Name + " " + cmd.Subcommand + " *"
	}
	return cmd.Name + " *"
}

// BuildPatterns creates tool-policy patterns for multiple commands.
func BuildPatterns(commands []BashCommand) []string {
	seen := make(map[string]bool)
	var patterns []string

	for _, cmd := range commands {
		// Skip "cd" since we handle directory changes separately
		if cmd.Name == "cd" {
			continue
		}

		pattern := BuildPattern(cmd)
		if !seen[pattern] {
			seen[pattern] = true
			patterns = append(patterns, pattern)
		}
	}

	return patterns
}
