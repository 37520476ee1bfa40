// Package commands provides the CLI commands for Lace.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/lace/internal/logging"
	"github.com/opencode-ai/lace/internal/project"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags.
var (
	printLogs   bool
	logLevel    string
	logToFile   bool
	showConfig  bool
	globalModel string
)

var rootCmd = &cobra.Command{
	Use:   "lace",
	Short: "Lace - a multi-agent coding runtime",
	Long: `Lace runs one or more LLM agents against a shared project, streaming
their tool calls and conversation onto append-only threads.

Run 'lace run' to start a turn, or 'lace agent list' to see the
available agent definitions.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logToFile,
		}
		if !printLogs && !logToFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)

		if logToFile {
			logging.Info().Str("version", Version).Str("logFile", logging.GetLogFilePath()).
				Msg("lace started with file logging")
		}

		if showConfig {
			dir, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(os.Stderr, "error getting working directory: %v\n", err)
				os.Exit(1)
			}

			svc := project.NewService(dir)
			proj, err := svc.CurrentForDir(cmd.Context(), dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error resolving project: %v\n", err)
				os.Exit(1)
			}
			cfg := project.ResolveEffectiveConfig(*proj, nil, nil)

			jsonData, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "error marshaling config: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(jsonData))
			os.Exit(0)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-file", false, "Write logs to a timestamped file in /tmp")
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "Print the effective project configuration as JSON and exit")
	rootCmd.PersistentFlags().StringVarP(&globalModel, "model", "m", "", "Model to use (providerInstanceId/modelId format)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("lace %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns dir if non-empty, otherwise the current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// GetGlobalModel returns the -m/--model flag value.
func GetGlobalModel() string {
	return globalModel
}
