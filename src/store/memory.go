package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cisync/src/contracts"
)

type runKey struct {
	build         string
	providerRunID int64
}

// MemoryStore is an in-memory implementation of Store.
// Used when no database is configured, and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	builds   map[string]contracts.Build
	runs     map[string][]contracts.RunRecord // build key -> runs
	runIndex map[runKey]contracts.RunRecord
	statuses map[string]contracts.SyncStatus
	reports  map[string]contracts.TestReport // run ID -> report
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		builds:   make(map[string]contracts.Build),
		runs:     make(map[string][]contracts.RunRecord),
		runIndex: make(map[runKey]contracts.RunRecord),
		statuses: make(map[string]contracts.SyncStatus),
		reports:  make(map[string]contracts.TestReport),
	}
}

func (s *MemoryStore) SaveBuild(ctx context.Context, build *contracts.Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.builds[buildKey(build.ID, build.TenantID)] = *build
	return nil
}

func (s *MemoryStore) GetBuild(ctx context.Context, buildID, tenantID string) (*contracts.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	build, exists := s.builds[buildKey(buildID, tenantID)]
	if !exists {
		return nil, fmt.Errorf("build %s: %w", buildID, ErrNotFound)
	}
	return &build, nil
}

func (s *MemoryStore) ListBuilds(ctx context.Context) ([]contracts.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	builds := make([]contracts.Build, 0, len(s.builds))
	for _, b := range s.builds {
		builds = append(builds, b)
	}
	sort.Slice(builds, func(i, j int) bool {
		if builds[i].TenantID != builds[j].TenantID {
			return builds[i].TenantID < builds[j].TenantID
		}
		return builds[i].ID < builds[j].ID
	})
	return builds, nil
}

func (s *MemoryStore) UpdateLastAnalyzedCommit(ctx context.Context, buildID, tenantID, sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := buildKey(buildID, tenantID)
	build, exists := s.builds[key]
	if !exists {
		return fmt.Errorf("build %s: %w", buildID, ErrNotFound)
	}
	build.LastAnalyzedCommitSHA = &sha
	s.builds[key] = build
	return nil
}

func (s *MemoryStore) FindByProviderRunID(ctx context.Context, buildID string, providerRunID int64, tenantID string) (*contracts.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runIndex[runKey{buildKey(buildID, tenantID), providerRunID}]
	if !exists {
		return nil, nil
	}
	return &run, nil
}

func (s *MemoryStore) BulkCreateRuns(ctx context.Context, runs []contracts.RunRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, run := range runs {
		bk := buildKey(run.BuildID, run.TenantID)
		key := runKey{bk, run.ProviderRunID}
		if _, exists := s.runIndex[key]; exists {
			continue
		}
		s.runIndex[key] = run
		s.runs[bk] = append(s.runs[bk], run)
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, buildID, tenantID string, limit int) ([]contracts.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := append([]contracts.RunRecord(nil), s.runs[buildKey(buildID, tenantID)]...)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) FindSyncStatus(ctx context.Context, buildID, tenantID string) (*contracts.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, exists := s.statuses[buildKey(buildID, tenantID)]
	if !exists {
		return nil, nil
	}
	return &status, nil
}

func (s *MemoryStore) UpsertSyncStatus(ctx context.Context, status *contracts.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[buildKey(status.BuildID, status.TenantID)] = *status
	return nil
}

func (s *MemoryStore) FindTestReportByRunID(ctx context.Context, runID string) (*contracts.TestReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[runID]
	if !exists {
		return nil, nil
	}
	return &report, nil
}

func (s *MemoryStore) CreateTestReport(ctx context.Context, report *contracts.TestReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.RunID]; exists {
		return fmt.Errorf("test report for run %s already exists", report.RunID)
	}
	s.reports[report.RunID] = *report
	return nil
}

// Close closes the store (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
