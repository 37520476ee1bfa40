package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/lace/internal/agent"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect agent definitions",
}

var agentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List built-in and configured agent definitions",
	RunE:    runAgentList,
}

func init() {
	agentCmd.AddCommand(agentListCmd)
}

func runAgentList(cmd *cobra.Command, args []string) error {
	reg := agent.NewRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODE\tBUILT-IN\tTOOLS\t")

	names := reg.Names()
	for _, name := range names {
		def, err := reg.Get(name)
		if err != nil {
			continue
		}
		tools := "*"
		if !def.Tools["*"] {
			var enabled []string
			for id, v := range def.Tools {
				if v {
					enabled = append(enabled, id)
				}
			}
			tools = strings.Join(enabled, ", ")
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t\n", def.Name, def.Mode, def.BuiltIn, tools)
	}

	return w.Flush()
}
