package mcp

import (
	"sort"

	"cisync/src/contracts"
	"cisync/src/junit"
	"cisync/src/sanitize"
)

// Stack trace line limits per tier.
// New failures get the full budget; persistent ones are summarized.
const (
	TraceLinesNew   = 30
	TraceLinesFull  = 200
	messageMaxChars = 100
)

// Default failure limits per tier.
const (
	DefaultNewLimit        = 15
	DefaultPersistentLimit = 5
)

// failingSet returns the fingerprints of the failed cases of a report.
func failingSet(r *contracts.TestReport) map[string]bool {
	set := make(map[string]bool)
	for _, tc := range junit.FailedCases(r) {
		set[tc.Fingerprint()] = true
	}
	return set
}

// toFailure converts a failed case into an LLM-ready Failure, keeping at most
// traceLines raw lines of its stack trace before compression.
func toFailure(tc contracts.TestCase, traceLines int) Failure {
	raw := junit.StackTraceLines(tc, 0)
	truncated := traceLines > 0 && len(raw) > traceLines
	if truncated {
		raw = raw[:traceLines]
	}
	return Failure{
		ID:         tc.Fingerprint(),
		Suite:      tc.Suite,
		Name:       tc.Name,
		Message:    sanitize.Clean(tc.ErrorMessage),
		DurationMs: tc.DurationMs,
		StackTrace: CompressTrace(sanitize.CleanLines(raw)),
		Truncated:  truncated,
	}
}

func toSummary(tc contracts.TestCase) FailureSummary {
	msg := sanitize.Clean(tc.ErrorMessage)
	if len(msg) > messageMaxChars {
		msg = msg[:messageMaxChars-3] + "..."
	}
	return FailureSummary{
		ID:      tc.Fingerprint(),
		Suite:   tc.Suite,
		Name:    tc.Name,
		Message: msg,
	}
}

// TierFailures splits the failed tests of current into new failures (not
// failing in previous) and persistent ones (also failing in previous).
// A nil previous report makes every failure new. limit caps tier 1; tier 2
// scales down from it. Failures are ordered by suite then name.
//
// Run, Summary and ComparedToRun are left for the caller.
func TierFailures(current, previous *contracts.TestReport, limit int) TieredReport {
	newLimit := DefaultNewLimit
	persistentLimit := DefaultPersistentLimit
	if limit > 0 && limit != DefaultNewLimit {
		newLimit = limit
		persistentLimit = max(1, limit/3)
	}

	failed := junit.FailedCases(current)
	sort.SliceStable(failed, func(i, j int) bool {
		if failed[i].Suite != failed[j].Suite {
			return failed[i].Suite < failed[j].Suite
		}
		return failed[i].Name < failed[j].Name
	})

	before := failingSet(previous)
	seen := make(map[string]bool)

	resp := TieredReport{
		NewFailures:        []Failure{},
		PersistentFailures: []FailureSummary{},
	}
	for _, tc := range failed {
		id := tc.Fingerprint()
		if seen[id] {
			continue
		}
		seen[id] = true

		if before[id] {
			if len(resp.PersistentFailures) < persistentLimit {
				resp.PersistentFailures = append(resp.PersistentFailures, toSummary(tc))
			}
			continue
		}
		if len(resp.NewFailures) < newLimit {
			resp.NewFailures = append(resp.NewFailures, toFailure(tc, TraceLinesNew))
		}
	}
	return resp
}

// FindFailure returns the full failure with the given ID from a report.
func FindFailure(r *contracts.TestReport, id string) (Failure, bool) {
	for _, tc := range junit.FailedCases(r) {
		if tc.Fingerprint() == id {
			return toFailure(tc, TraceLinesFull), true
		}
	}
	return Failure{}, false
}

// Summarize copies the counts of a report.
func Summarize(r *contracts.TestReport) ReportSummary {
	return ReportSummary{
		Total:   r.TotalTests,
		Passed:  r.PassedTests,
		Failed:  r.FailedTests,
		Skipped: r.SkippedTests,
	}
}

func runInfo(run *contracts.RunRecord) RunInfo {
	return RunInfo{
		ProviderRunID: run.ProviderRunID,
		Name:          run.Name,
		Status:        run.Status,
		Branch:        run.HeadBranch,
		URL:           run.HTMLURL,
		CreatedAt:     run.CreatedAt,
	}
}
