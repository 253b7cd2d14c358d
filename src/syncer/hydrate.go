package syncer

import (
	"context"
	"fmt"

	"cisync/src/contracts"
	"cisync/src/junit"
	"cisync/src/metrics"
	"cisync/src/provider"
)

type hydrationOutcome string

const (
	outcomeParsed  hydrationOutcome = "parsed"
	outcomeExists  hydrationOutcome = "exists"
	outcomeEmpty   hydrationOutcome = "empty"
	outcomeErrored hydrationOutcome = "error"
)

// hydrationResult is the outcome of hydrating one run.
type hydrationResult struct {
	run      *contracts.RunRecord
	outcome  hydrationOutcome
	artifact string
	err      error
}

// hydrate attaches a test report to each of the newest completed runs.
// A failing run never stops the others; only cancellation aborts the batch.
func (s *Syncer) hydrate(ctx context.Context, build *contracts.Build, records []contracts.RunRecord) (int, error) {
	candidates := records
	if len(candidates) > s.opts.HydrationLimit {
		candidates = candidates[:s.opts.HydrationLimit]
	}

	var eligible []*contracts.RunRecord
	for i := range candidates {
		switch provider.RunStatus(candidates[i].Status) {
		case provider.StatusSuccess, provider.StatusFailure:
			eligible = append(eligible, &candidates[i])
		}
	}

	results := make([]hydrationResult, 0, len(eligible))
	for i, run := range eligible {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.report(Progress{Stage: StageHydrating, Current: i, Total: len(eligible), Message: run.Name})
		results = append(results, s.hydrateRun(ctx, build, run))
	}

	parsed := 0
	failed := 0
	for _, r := range results {
		metrics.Hydrations.WithLabelValues(string(r.outcome)).Inc()
		switch r.outcome {
		case outcomeParsed:
			parsed++
			s.logger.Debug("[SyncOrchestrator] Run %d: parsed %s", r.run.ProviderRunID, r.artifact)
		case outcomeErrored:
			failed++
			s.logger.Warn("[SyncOrchestrator] Run %d: test hydration failed: %v", r.run.ProviderRunID, r.err)
		}
	}
	if len(results) > 0 {
		s.logger.Info("[SyncOrchestrator] Hydrated %d/%d runs (%d failed)", parsed, len(results), failed)
	}
	return parsed, nil
}

// hydrateRun tries the run's test artifacts in order and stores the first usable report.
func (s *Syncer) hydrateRun(ctx context.Context, build *contracts.Build, run *contracts.RunRecord) hydrationResult {
	result := hydrationResult{run: run}

	existing, err := s.store.FindTestReportByRunID(ctx, run.ID)
	if err != nil {
		result.outcome, result.err = outcomeErrored, fmt.Errorf("failed to look up test report: %w", err)
		return result
	}
	if existing != nil {
		result.outcome = outcomeExists
		return result
	}

	artifacts, err := s.client.ListArtifacts(ctx, build.Owner, build.Repo, run.ProviderRunID)
	if err != nil {
		result.outcome, result.err = outcomeErrored, fmt.Errorf("failed to list artifacts: %w", err)
		return result
	}

	var lastErr error
	for _, artifact := range artifacts {
		if !junit.IsTestArtifact(artifact.Name) {
			continue
		}

		data, err := s.client.DownloadArtifact(ctx, build.Owner, build.Repo, artifact.ID)
		if err != nil {
			lastErr = fmt.Errorf("failed to download %s: %w", artifact.Name, err)
			continue
		}
		if data == nil {
			continue
		}

		report := junit.ParseArchive(data)
		if report == nil {
			continue
		}

		report.ID = s.newID()
		report.RunID = run.ID
		report.BuildID = build.ID
		report.TenantID = build.TenantID
		report.ArtifactName = artifact.Name
		report.Checksum = junit.Checksum(data)
		report.CreatedAt = s.now()

		if err := s.store.CreateTestReport(ctx, report); err != nil {
			result.outcome, result.err = outcomeErrored, fmt.Errorf("failed to save test report: %w", err)
			return result
		}
		result.outcome, result.artifact = outcomeParsed, artifact.Name
		return result
	}

	if lastErr != nil {
		result.outcome, result.err = outcomeErrored, lastErr
		return result
	}
	result.outcome = outcomeEmpty
	return result
}
