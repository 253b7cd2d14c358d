package main

import (
	"github.com/spf13/cobra"

	cisyncmcp "cisync/src/mcp"
)

// mcpCmd serves the MCP tools over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve sync and test report tools to LLM agents over MCP (stdio)",
	Long: `Starts an MCP server on stdin/stdout. Logs go only to log.file, since
stdout carries the protocol.

Tools: sync_build, check_build, get_sync_status, get_test_report,
get_test_failure, parse_test_report.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		a.log.Info("[MCP] Serving %s mode store over stdio", a.mode)
		return cisyncmcp.NewServer(a.pipeline, a.store, a.log).Run()
	},
}
