// Package main provides the cisync command line: one-off syncs, status views,
// the scheduler/API server, the Redpanda sync worker and the MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	tenantID   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cisync",
	Short: "cisync - keeps a local mirror of CI runs and test reports",
	Long: `cisync mirrors workflow runs from GitHub Actions and Buildkite into a
local store, attaches parsed JUnit test reports to the newest runs, and
re-syncs builds when their repository moves.

It supports two modes:
- Local Mode: in-memory store and broker (default)
- Distributed Mode: Postgres store and Redpanda events

Mode is detected from the database DSN and Redpanda brokers in the config.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./cisync.yaml or $HOME/.config/cisync/cisync.yaml)")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "Tenant of the build when its ID is not unique")

	rootCmd.AddCommand(syncCmd, checkCmd, invalidateCmd)
	rootCmd.AddCommand(statusCmd, parseCmd)
	rootCmd.AddCommand(serveCmd, workerCmd, mcpCmd)
	rootCmd.AddCommand(validateTokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
