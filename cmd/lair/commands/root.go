// Package commands provides the CLI commands for lair.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lair-ai/lair/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	configPath  string
	logLevel    string
	sessionRef  string
	allowCreate bool
	readOnly    bool
)

var rootCmd = &cobra.Command{
	Use:   "lair",
	Short: "lair - session-based LLM client with tool calling",
	Long: `lair talks to an OpenAI-compatible chat endpoint, keeps conversations in
persistent sessions, and lets the model call local and MCP-provided tools.

Run 'lair chat' to submit a prompt, or 'lair sessions' to manage stored
conversations.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Pretty: true,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("lair %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(modelsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
