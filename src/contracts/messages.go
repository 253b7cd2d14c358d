package contracts

// SyncEvent is published after every sync attempt.
// Published to: cisync.sync.completed or cisync.sync.failed
// Key: {build_id}
type SyncEvent struct {
	BuildID           string `json:"build_id"`
	TenantID          string `json:"tenant_id"`
	Repository        string `json:"repository"`
	Mode              string `json:"mode"` // backfill or incremental
	NewRunsSynced     int    `json:"new_runs_synced"`
	TestResultsParsed int    `json:"test_results_parsed"`
	Error             string `json:"error,omitempty"`
	Timestamp         string `json:"timestamp"`
}

// Topic names used for sync events.
const (
	// TopicSyncCompleted receives one event per successful sync.
	TopicSyncCompleted = "cisync.sync.completed"

	// TopicSyncFailed receives one event per failed sync.
	TopicSyncFailed = "cisync.sync.failed"
)

// SyncRequest asks a worker to sync one build.
// Published to: cisync.sync.requested
// Key: {build_id}
type SyncRequest struct {
	RequestID string `json:"request_id"`
	BuildID   string `json:"build_id"`
	TenantID  string `json:"tenant_id"`
	// Force syncs even when the repository has no new commit.
	Force     bool   `json:"force"`
	Timestamp string `json:"timestamp"`
}

// TopicSyncRequested receives sync requests for workers.
const TopicSyncRequested = "cisync.sync.requested"
