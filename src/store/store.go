// Package store defines the interface for persistent data storage.
package store

import (
	"context"
	"errors"

	"cisync/src/contracts"
)

// ErrNotFound is returned by Get lookups for a missing record.
var ErrNotFound = errors.New("record not found")

// Store defines the persistence contract of the sync engine.
// Find lookups return nil with no error when the record does not exist.
type Store interface {
	// SaveBuild creates or replaces a build definition
	SaveBuild(ctx context.Context, build *contracts.Build) error

	// GetBuild returns a build or ErrNotFound
	GetBuild(ctx context.Context, buildID, tenantID string) (*contracts.Build, error)

	// ListBuilds returns every build across tenants
	ListBuilds(ctx context.Context) ([]contracts.Build, error)

	// UpdateLastAnalyzedCommit records the commit a build was last synced at
	UpdateLastAnalyzedCommit(ctx context.Context, buildID, tenantID, sha string) error

	// FindByProviderRunID returns the persisted run with that provider identifier
	FindByProviderRunID(ctx context.Context, buildID string, providerRunID int64, tenantID string) (*contracts.RunRecord, error)

	// BulkCreateRuns inserts runs, skipping any that already exist, and returns how many were inserted
	BulkCreateRuns(ctx context.Context, runs []contracts.RunRecord) (int, error)

	// ListRuns returns a build's runs newest first; limit <= 0 means all
	ListRuns(ctx context.Context, buildID, tenantID string, limit int) ([]contracts.RunRecord, error)

	// FindSyncStatus returns the build's sync bookkeeping
	FindSyncStatus(ctx context.Context, buildID, tenantID string) (*contracts.SyncStatus, error)

	// UpsertSyncStatus creates or replaces the build's sync bookkeeping (last write wins)
	UpsertSyncStatus(ctx context.Context, status *contracts.SyncStatus) error

	// FindTestReportByRunID returns the report attached to a persisted run
	FindTestReportByRunID(ctx context.Context, runID string) (*contracts.TestReport, error)

	// CreateTestReport saves a report; at most one exists per run
	CreateTestReport(ctx context.Context, report *contracts.TestReport) error

	// Close closes the store connection
	Close() error
}

func buildKey(buildID, tenantID string) string {
	return tenantID + "/" + buildID
}
