// Command tape is the interactive terminal coding agent.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		modelIDs   []string
		baseURL    string
		sessionID  string
		logFile    string
		logLevel   string
		timeout    time.Duration
	)

	root := &cobra.Command{
		Use:           "tape",
		Short:         "Interactive terminal coding agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(agentOptions{
				configPath: configPath,
				modelIDs:   modelIDs,
				baseURL:    baseURL,
				sessionID:  sessionID,
				logFile:    logFile,
				logLevel:   logLevel,
				timeout:    timeout,
			})
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "config file path (default ~/.tape/config.yaml)")
	root.Flags().StringSliceVar(&modelIDs, "model", nil, "model id (repeatable, overrides config)")
	root.Flags().StringVar(&baseURL, "base-url", "", "codex API base URL")
	root.Flags().StringVar(&sessionID, "session-id", "", "transport session id header")
	root.Flags().StringVar(&logFile, "log-file", "", "structured log destination")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().DurationVar(&timeout, "timeout", 0, "per-request transport timeout")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the tape version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tape %s\n", version)
		},
	})

	return root
}
