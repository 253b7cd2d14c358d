package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"cisync/src/contracts"
	"cisync/src/store"
	"cisync/src/tui"
)

const defaultBrowseRuns = 200

// statusCmd shows sync bookkeeping
var statusCmd = &cobra.Command{
	Use:   "status [build-id]",
	Short: "Show the sync status of all builds, or the recent runs of one",
	Long: `Without arguments, lists every tracked build with its sync status.
With a build ID, prints the build's status and its most recent runs.

With --tui: opens the interactive run browser for the build.

Example:
  cisync status
  cisync status web-main --runs 20
  cisync status web-main --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useTUI, _ := cmd.Flags().GetBool("tui")
		limit, _ := cmd.Flags().GetInt("runs")
		ctx := cmd.Context()

		a, err := openApp(ctx, useTUI)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			if useTUI {
				return fmt.Errorf("--tui needs a build ID")
			}
			out, err := buildsTable(ctx, a.store, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		build, err := a.resolveBuild(ctx, args[0])
		if err != nil {
			return err
		}
		if useTUI {
			return tui.Start(ctx, build.Name, snapshotLoader(a.store, build, defaultBrowseRuns))
		}

		snap, err := snapshotLoader(a.store, build, limit)(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s, %s)\n", build.Name, build.Provider, build.Slug())
		fmt.Println(snap.Summary)
		fmt.Println()
		fmt.Println(runsTable(snap.Items, time.Now()))
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("tui", false, "Browse the build's runs interactively")
	statusCmd.Flags().IntP("runs", "n", 10, "Number of recent runs to print")
}

// describeStatus renders a build's sync bookkeeping on one line.
func describeStatus(status *contracts.SyncStatus, now time.Time) string {
	if status == nil {
		return "never synced"
	}

	var parts []string
	if status.LastSyncedAt != nil {
		if ago := tui.Ago(*status.LastSyncedAt, now); ago == "now" {
			parts = append(parts, "synced just now")
		} else {
			parts = append(parts, "synced "+ago+" ago")
		}
	} else {
		parts = append(parts, "never synced")
	}
	parts = append(parts, fmt.Sprintf("%d runs", status.TotalRunsSynced))
	if !status.InitialBackfillCompleted {
		parts = append(parts, "backfill pending")
	}
	if status.LastSyncError != nil {
		parts = append(parts, "last error: "+*status.LastSyncError)
	}
	return strings.Join(parts, " · ")
}

// snapshotLoader reads the newest runs of build with their test reports.
func snapshotLoader(st store.Store, build *contracts.Build, limit int) tui.Loader {
	return func(ctx context.Context) (tui.Snapshot, error) {
		runs, err := st.ListRuns(ctx, build.ID, build.TenantID, limit)
		if err != nil {
			return tui.Snapshot{}, fmt.Errorf("failed to list runs: %w", err)
		}

		items := make([]tui.Item, 0, len(runs))
		for _, run := range runs {
			report, err := st.FindTestReportByRunID(ctx, run.ID)
			if err != nil {
				return tui.Snapshot{}, fmt.Errorf("failed to load report of run %d: %w", run.ProviderRunID, err)
			}
			items = append(items, tui.Item{Run: run, Report: report})
		}

		status, err := st.FindSyncStatus(ctx, build.ID, build.TenantID)
		if err != nil {
			return tui.Snapshot{}, fmt.Errorf("failed to load sync status: %w", err)
		}
		return tui.Snapshot{Items: items, Summary: describeStatus(status, time.Now())}, nil
	}
}

var tableStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return tableStyle }).
		Headers(headers...)
}

func buildsTable(ctx context.Context, st store.Store, now time.Time) (string, error) {
	builds, err := st.ListBuilds(ctx)
	if err != nil {
		return "", err
	}
	if len(builds) == 0 {
		return "No builds configured.", nil
	}

	t := newTable("TENANT", "BUILD", "PROVIDER", "REPOSITORY", "STATUS")
	for _, b := range builds {
		status, err := st.FindSyncStatus(ctx, b.ID, b.TenantID)
		if err != nil {
			return "", err
		}
		t.Row(b.TenantID, b.ID, b.Provider, b.Slug(), describeStatus(status, now))
	}
	return t.String(), nil
}

func runsTable(items []tui.Item, now time.Time) string {
	if len(items) == 0 {
		return "No runs synced yet."
	}
	t := newTable("RUN", "STATUS", "BRANCH", "AGE", "DURATION", "TESTS", "NAME")
	for _, it := range items {
		t.Row(
			strconv.FormatInt(it.Run.ProviderRunID, 10),
			it.Run.Status,
			it.Run.HeadBranch,
			tui.Ago(it.Run.CreatedAt, now),
			tui.FormatDuration(it.Run.Duration),
			it.TestSummary(),
			it.Run.Name,
		)
	}
	return t.String()
}
