package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cisync/src/contracts"
	"cisync/src/junit"
	cisyncmcp "cisync/src/mcp"
)

const parseTraceLines = 8

// parseCmd parses a local JUnit report or artifact archive
var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a JUnit XML report or a zipped test artifact",
	Long: `Parses a JUnit XML file, or a zip artifact holding XML reports, the same way
synced artifacts are parsed, and prints the counts and failed tests.

With --json: prints the failures as the tiered JSON report served over MCP.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		report := junit.ParseArchive(data)
		if report == nil {
			return fmt.Errorf("no usable test results in %s", args[0])
		}

		if asJSON {
			tiered := cisyncmcp.TierFailures(report, nil, limit)
			tiered.Summary = cisyncmcp.Summarize(report)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tiered)
		}
		printReport(report, limit)
		return nil
	},
}

func init() {
	parseCmd.Flags().Bool("json", false, "Print JSON instead of text")
	parseCmd.Flags().IntP("limit", "n", cisyncmcp.DefaultNewLimit, "Maximum failed tests to show")
}

func printReport(report *contracts.TestReport, limit int) {
	fmt.Printf("Tests: %d total, %d passed, %d failed, %d skipped\n",
		report.TotalTests, report.PassedTests, report.FailedTests, report.SkippedTests)

	failed := junit.FailedCases(report)
	if len(failed) == 0 {
		return
	}
	fmt.Println()
	for i, tc := range failed {
		if i == limit {
			fmt.Printf("... and %d more\n", len(failed)-limit)
			break
		}
		fmt.Printf("✗ %s › %s\n", tc.Suite, tc.Name)
		if tc.ErrorMessage != "" {
			fmt.Printf("    %s\n", tc.ErrorMessage)
		}
		for _, line := range cisyncmcp.CompressTrace(junit.StackTraceLines(tc, parseTraceLines)) {
			fmt.Printf("    %s\n", line)
		}
	}
}
