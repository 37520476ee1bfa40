package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/lace/internal/agent"
	"github.com/opencode-ai/lace/internal/provider"
	"github.com/opencode-ai/lace/pkg/types"
)

var (
	runAgentName string
	runThreadID  string
	runSessionID string
	runDir       string
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Run a single agent turn against a thread",
	Long: `Run drives one agent turn to completion: it appends the given message
to a thread (creating one if --thread is omitted), streams a provider
completion, executes any requested tool calls, and prints the
assistant's reply.

Examples:
  lace run "fix the bug in main.go"
  lace run --model anthropic/claude-sonnet-4-20250514 "explain this code"
  lace run --agent plan "what would change if I renamed this package?"`,
	RunE: runTurn,
}

func init() {
	runCmd.Flags().StringVar(&runAgentName, "agent", "build", "Agent definition to run")
	runCmd.Flags().StringVar(&runThreadID, "thread", "", "Existing thread id to continue")
	runCmd.Flags().StringVar(&runSessionID, "session", "", "Session id a new thread belongs to (defaults to a generated id)")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
}

func runTurn(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. Usage: lace run \"your message\"")
	}

	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := buildRuntime(ctx, workDir)
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer rt.Close()

	model := GetGlobalModel()
	if model == "" {
		dm, err := rt.providers.DefaultModel()
		if err != nil {
			return fmt.Errorf("no model specified and no provider configured (set --model or ANTHROPIC_KEY/OPENAI_API_KEY): %w", err)
		}
		model = fmt.Sprintf("%s/%s", dm.ProviderID, dm.ID)
	}
	providerID, modelID := provider.ParseModelString(model)
	if providerID == "" {
		return fmt.Errorf("model %q must be providerInstanceId/modelId", model)
	}
	prov, err := rt.providers.Get(providerID)
	if err != nil {
		return err
	}

	def, err := rt.agents.Get(runAgentName)
	if err != nil {
		return err
	}

	threadID := runThreadID
	if threadID == "" {
		sessionID := runSessionID
		if sessionID == "" {
			sessionID = fmt.Sprintf("sess_%d", os.Getpid())
		}
		th, err := rt.threads.CreateThread(ctx, sessionID, types.ThreadMetadata{Name: runAgentName})
		if err != nil {
			return fmt.Errorf("create thread: %w", err)
		}
		threadID = th.ID
	}

	a := agent.New(threadID, def, prov, modelID, rt.toolExec, rt.toolInfos, rt.threads, rt.window, rt.bus)
	a.WorkDir = workDir
	a.Temperature = def.Temperature
	a.TopP = def.TopP

	fmt.Printf("thread %s, agent %s, model %s\n\n", threadID, runAgentName, model)

	state, err := a.Run(ctx, message)
	if err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	events, err := rt.threads.GetEvents(ctx, threadID, nil)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	for _, e := range events {
		if e.Type == types.EventAgentMessage {
			fmt.Println(e.Data.Text)
		}
	}

	fmt.Printf("\n[%s]\n", state)
	if state == agent.StateFailed {
		return fmt.Errorf("turn ended in state %s", state)
	}
	return nil
}
