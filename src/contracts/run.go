package contracts

import "time"

// RunRecord is a provider workflow run persisted for a Build.
// At most one record exists per (BuildID, ProviderRunID, TenantID).
type RunRecord struct {
	ID            string        `json:"id"`
	BuildID       string        `json:"build_id"`
	TenantID      string        `json:"tenant_id"`
	ProviderRunID int64         `json:"provider_run_id"`
	Name          string        `json:"name"`
	Status        string        `json:"status"`
	HTMLURL       string        `json:"html_url"`
	HeadBranch    string        `json:"head_branch,omitempty"`
	Event         string        `json:"event,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// SyncStatus is the persisted bookkeeping of a Build's synchronization progress.
// One row exists per (BuildID, TenantID).
type SyncStatus struct {
	BuildID                  string     `json:"build_id"`
	TenantID                 string     `json:"tenant_id"`
	LastSyncedAt             *time.Time `json:"last_synced_at,omitempty"`
	LastSyncedRunID          *int64     `json:"last_synced_run_id,omitempty"`
	LastSyncedRunCreatedAt   *time.Time `json:"last_synced_run_created_at,omitempty"`
	TotalRunsSynced          int        `json:"total_runs_synced"`
	InitialBackfillCompleted bool       `json:"initial_backfill_completed"`
	LastSyncError            *string    `json:"last_sync_error,omitempty"`
}

// SyncResult is returned by a single sync call.
type SyncResult struct {
	NewRunsSynced     int       `json:"new_runs_synced"`
	TestResultsParsed int       `json:"test_results_parsed"`
	LastSyncedAt      time.Time `json:"last_synced_at"`
}
