package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cisync/src/broker"
	"cisync/src/contracts"
	"cisync/src/pipeline"
	"cisync/src/provider"
	"cisync/src/syncer"
	"cisync/src/tui"
)

// syncCmd runs a sync for one build
var syncCmd = &cobra.Command{
	Use:   "sync [build-id]",
	Short: "Sync a build's runs and test reports now",
	Long: `Fetches new runs for the build, persists those matching its selectors
and parses test reports for the newest completed runs.

The first sync of a build backfills its lookback window; later syncs only
fetch runs created since the last one.

With --tui: shows live progress, then opens the run browser.
With --async: publishes a sync request for a 'cisync worker' to pick up
(requires Redpanda).

Example:
  cisync sync web-main
  cisync sync web-main --tui
  cisync sync web-main --tenant acme --async`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useTUI, _ := cmd.Flags().GetBool("tui")
		async, _ := cmd.Flags().GetBool("async")
		ctx := cmd.Context()

		a, err := openApp(ctx, useTUI)
		if err != nil {
			return err
		}
		defer a.Close()

		build, err := a.resolveBuild(ctx, args[0])
		if err != nil {
			return err
		}

		switch {
		case async:
			return submitSync(ctx, a, build, true)
		case useTUI:
			return tui.StartWithSync(ctx, build.Name, func(ctx context.Context, progress func(syncer.Progress)) error {
				a.progress.set(progress)
				_, err := a.pipeline.Sync(ctx, build)
				return provider.WrapError(err)
			}, snapshotLoader(a.store, build, defaultBrowseRuns))
		}

		a.progress.set(printProgress)
		result, err := a.pipeline.Sync(ctx, build)
		if err != nil {
			return fmt.Errorf("sync of %s failed: %w", build.ID, provider.WrapError(err))
		}
		fmt.Printf("✅ Synced %s (%s)\n", build.Name, build.Slug())
		fmt.Printf("   New runs:     %d\n", result.NewRunsSynced)
		fmt.Printf("   Test reports: %d\n", result.TestResultsParsed)
		return nil
	},
}

// checkCmd syncs a build only if its repository moved
var checkCmd = &cobra.Command{
	Use:   "check [build-id]",
	Short: "Sync a build if its repository has a new commit",
	Long: `Compares the repository's latest commit with the last analyzed one and
syncs only when it changed. Errors are logged, never returned.

With --async: publishes a change-gated request for a 'cisync worker'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		async, _ := cmd.Flags().GetBool("async")
		ctx := cmd.Context()

		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		build, err := a.resolveBuild(ctx, args[0])
		if err != nil {
			return err
		}
		if async {
			return submitSync(ctx, a, build, false)
		}

		if a.pipeline.CheckAndSync(ctx, build) {
			fmt.Printf("✅ %s changed, synced\n", build.Name)
		} else {
			fmt.Printf("%s unchanged, nothing to do\n", build.Name)
		}
		return nil
	},
}

// invalidateCmd drops cached provider responses for a build
var invalidateCmd = &cobra.Command{
	Use:   "invalidate [build-id]",
	Short: "Drop cached provider responses for a build's repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		build, err := a.resolveBuild(ctx, args[0])
		if err != nil {
			return err
		}
		n, err := a.pipeline.Invalidate(build)
		if err != nil {
			return err
		}
		fmt.Printf("Dropped %d cached entries for %s\n", n, build.Slug())
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("tui", false, "Show live progress and browse the runs afterwards")
	syncCmd.Flags().BoolP("async", "d", false, "Publish a sync request and exit (requires Redpanda)")
	checkCmd.Flags().BoolP("async", "d", false, "Publish a change-gated sync request and exit (requires Redpanda)")
	syncCmd.MarkFlagsMutuallyExclusive("tui", "async")
}

// submitSync publishes a sync request for a worker process.
func submitSync(ctx context.Context, a *app, build *contracts.Build, force bool) error {
	if len(a.cfg.Redpanda.Brokers) == 0 {
		return fmt.Errorf("--async requires redpanda.brokers (current mode: %s)", a.mode)
	}
	if a.mode != pipeline.DistributedMode {
		a.log.Warn("[CLI] Submitting to Redpanda without a database; the worker must share its store")
	}

	req := contracts.SyncRequest{
		RequestID: uuid.NewString(),
		BuildID:   build.ID,
		TenantID:  build.TenantID,
		Force:     force,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := broker.PublishSyncRequest(ctx, a.broker, req); err != nil {
		return fmt.Errorf("failed to submit request: %w", err)
	}

	fmt.Printf("✅ Submitted sync request %s\n", req.RequestID)
	fmt.Printf("   Build: %s (%s)\n", build.Name, build.Slug())
	fmt.Println()
	fmt.Println("💡 Run 'cisync status " + build.ID + "' once a worker has processed it.")
	return nil
}

func printProgress(p syncer.Progress) {
	switch p.Stage {
	case syncer.StageHydrating:
		fmt.Printf("   %s %d/%d: %s\n", p.Stage, p.Current+1, p.Total, p.Message)
	case syncer.StageDone, syncer.StageFailed:
	default:
		if p.Message != "" {
			fmt.Printf("🔧 %s: %s\n", p.Stage, p.Message)
		} else {
			fmt.Printf("🔧 %s...\n", p.Stage)
		}
	}
}
