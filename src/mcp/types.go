// Package mcp exposes the sync engine and its test reports to LLM agents over MCP.
package mcp

import "time"

// TieredReport is the get_test_report response.
type TieredReport struct {
	Run                RunInfo          `json:"run"`
	Summary            ReportSummary    `json:"summary"`
	ComparedToRun      int64            `json:"compared_to_run,omitempty"`
	NewFailures        []Failure        `json:"tier_1_new_failures"`
	PersistentFailures []FailureSummary `json:"tier_2_persistent_failures"`
}

// RunInfo describes the run a report belongs to.
type RunInfo struct {
	ProviderRunID int64     `json:"provider_run_id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	Branch        string    `json:"branch,omitempty"`
	URL           string    `json:"url"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReportSummary carries the report counters.
type ReportSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Failure is a failed test with a compacted stack trace.
type Failure struct {
	ID         string   `json:"id"`
	Suite      string   `json:"suite"`
	Name       string   `json:"name"`
	Message    string   `json:"message"`
	DurationMs int64    `json:"duration_ms"`
	StackTrace []string `json:"stack_trace,omitempty"`
	Truncated  bool     `json:"truncated,omitempty"`
}

// FailureSummary is the lightweight form used for lower tiers.
// Use get_test_failure with the ID to see the full trace.
type FailureSummary struct {
	ID      string `json:"id"`
	Suite   string `json:"suite"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// StatusResponse is the get_sync_status response.
type StatusResponse struct {
	BuildID                  string     `json:"build_id"`
	TenantID                 string     `json:"tenant_id"`
	LastSyncedAt             *time.Time `json:"last_synced_at,omitempty"`
	TotalRunsSynced          int        `json:"total_runs_synced"`
	InitialBackfillCompleted bool       `json:"initial_backfill_completed"`
	LastSyncError            string     `json:"last_sync_error,omitempty"`
	LastAnalyzedCommit       string     `json:"last_analyzed_commit,omitempty"`
	RecentRuns               []RunInfo  `json:"recent_runs"`
}
