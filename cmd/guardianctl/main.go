package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"guardian/internal/config"
	"guardian/internal/observability/logging"
)

var rootCmd = &cobra.Command{
	Use:   "guardianctl",
	Short: "Operator tooling for the guardian service",
	Long: `Operator tooling for the guardian service.

Commands read the same environment (and optional .env file) as the server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
		slog.SetDefault(logging.NewLogger(logging.Config{
			ServiceName: "guardianctl",
			Environment: os.Getenv("ENVIRONMENT"),
			Level:       os.Getenv("LOG_LEVEL"),
			Output:      os.Stderr,
		}))
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
