package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cisync/src/contracts"
)

func testRun(id string, providerRunID int64, created time.Time) contracts.RunRecord {
	return contracts.RunRecord{
		ID:            id,
		BuildID:       "build-1",
		TenantID:      "tenant-a",
		ProviderRunID: providerRunID,
		Name:          "CI",
		Status:        "success",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestMemoryStore_SaveAndGetBuild(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	build := &contracts.Build{
		ID:        "build-1",
		TenantID:  "tenant-a",
		Owner:     "acme",
		Repo:      "widgets",
		Selectors: []contracts.Selector{{Type: contracts.SelectorBranch, Pattern: "main"}},
	}
	if err := store.SaveBuild(ctx, build); err != nil {
		t.Fatalf("SaveBuild failed: %v", err)
	}

	got, err := store.GetBuild(ctx, "build-1", "tenant-a")
	if err != nil {
		t.Fatalf("GetBuild failed: %v", err)
	}
	if got.Slug() != "acme/widgets" {
		t.Errorf("Expected slug acme/widgets, got %s", got.Slug())
	}

	// Same ID under another tenant is a different build
	if _, err := store.GetBuild(ctx, "build-1", "tenant-b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other tenant, got %v", err)
	}
}

func TestMemoryStore_UpdateLastAnalyzedCommit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.UpdateLastAnalyzedCommit(ctx, "missing", "tenant-a", "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	store.SaveBuild(ctx, &contracts.Build{ID: "build-1", TenantID: "tenant-a"})
	if err := store.UpdateLastAnalyzedCommit(ctx, "build-1", "tenant-a", "abc"); err != nil {
		t.Fatalf("UpdateLastAnalyzedCommit failed: %v", err)
	}

	got, _ := store.GetBuild(ctx, "build-1", "tenant-a")
	if got.LastAnalyzedCommitSHA == nil || *got.LastAnalyzedCommitSHA != "abc" {
		t.Errorf("Expected last analyzed commit abc, got %v", got.LastAnalyzedCommitSHA)
	}
}

func TestMemoryStore_ListBuildsSorted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.SaveBuild(ctx, &contracts.Build{ID: "b", TenantID: "t2"})
	store.SaveBuild(ctx, &contracts.Build{ID: "b", TenantID: "t1"})
	store.SaveBuild(ctx, &contracts.Build{ID: "a", TenantID: "t1"})

	builds, err := store.ListBuilds(ctx)
	if err != nil {
		t.Fatalf("ListBuilds failed: %v", err)
	}
	want := []string{"t1/a", "t1/b", "t2/b"}
	if len(builds) != len(want) {
		t.Fatalf("Expected %d builds, got %d", len(want), len(builds))
	}
	for i, b := range builds {
		if got := b.TenantID + "/" + b.ID; got != want[i] {
			t.Errorf("builds[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestMemoryStore_BulkCreateRunsSkipsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	n, err := store.BulkCreateRuns(ctx, []contracts.RunRecord{
		testRun("r1", 1, now),
		testRun("r2", 2, now.Add(time.Minute)),
	})
	if err != nil {
		t.Fatalf("BulkCreateRuns failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 inserted, got %d", n)
	}

	// Provider run 2 is already stored; duplicates within the batch also collapse
	n, err = store.BulkCreateRuns(ctx, []contracts.RunRecord{
		testRun("r2-dup", 2, now),
		testRun("r3", 3, now),
		testRun("r3-dup", 3, now),
	})
	if err != nil {
		t.Fatalf("BulkCreateRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 inserted, got %d", n)
	}

	runs, _ := store.ListRuns(ctx, "build-1", "tenant-a", 0)
	if len(runs) != 3 {
		t.Errorf("Expected 3 stored runs, got %d", len(runs))
	}
}

func TestMemoryStore_FindByProviderRunID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.FindByProviderRunID(ctx, "build-1", 42, "tenant-a")
	if err != nil || got != nil {
		t.Fatalf("Expected nil, nil for absent run, got %v, %v", got, err)
	}

	store.BulkCreateRuns(ctx, []contracts.RunRecord{testRun("r42", 42, time.Now())})

	got, err = store.FindByProviderRunID(ctx, "build-1", 42, "tenant-a")
	if err != nil {
		t.Fatalf("FindByProviderRunID failed: %v", err)
	}
	if got == nil || got.ID != "r42" {
		t.Errorf("Expected run r42, got %v", got)
	}

	if got, _ := store.FindByProviderRunID(ctx, "build-1", 42, "tenant-b"); got != nil {
		t.Errorf("Expected tenant isolation, got %v", got)
	}
}

func TestMemoryStore_ListRunsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	store.BulkCreateRuns(ctx, []contracts.RunRecord{
		testRun("old", 1, base),
		testRun("new", 3, base.Add(2*time.Hour)),
		testRun("mid", 2, base.Add(time.Hour)),
	})

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"new", "mid", "old"}},
		{"limited", 2, []string{"new", "mid"}},
		{"limit above count", 10, []string{"new", "mid", "old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, "build-1", "tenant-a", tt.limit)
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("Expected %d runs, got %d", len(tt.want), len(runs))
			}
			for i, r := range runs {
				if r.ID != tt.want[i] {
					t.Errorf("runs[%d] = %s, want %s", i, r.ID, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryStore_UpsertSyncStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.FindSyncStatus(ctx, "build-1", "tenant-a")
	if err != nil || got != nil {
		t.Fatalf("Expected nil, nil before first sync, got %v, %v", got, err)
	}

	now := time.Now()
	store.UpsertSyncStatus(ctx, &contracts.SyncStatus{
		BuildID:         "build-1",
		TenantID:        "tenant-a",
		LastSyncedAt:    &now,
		TotalRunsSynced: 5,
	})

	msg := "boom"
	store.UpsertSyncStatus(ctx, &contracts.SyncStatus{
		BuildID:                  "build-1",
		TenantID:                 "tenant-a",
		LastSyncedAt:             &now,
		TotalRunsSynced:          7,
		InitialBackfillCompleted: true,
		LastSyncError:            &msg,
	})

	got, err = store.FindSyncStatus(ctx, "build-1", "tenant-a")
	if err != nil {
		t.Fatalf("FindSyncStatus failed: %v", err)
	}
	if got.TotalRunsSynced != 7 || !got.InitialBackfillCompleted {
		t.Errorf("Expected replaced status, got %+v", got)
	}
	if got.LastSyncError == nil || *got.LastSyncError != "boom" {
		t.Errorf("Expected last sync error boom, got %v", got.LastSyncError)
	}
}

func TestMemoryStore_TestReports(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if got, err := store.FindTestReportByRunID(ctx, "r1"); err != nil || got != nil {
		t.Fatalf("Expected nil, nil for absent report, got %v, %v", got, err)
	}

	report := &contracts.TestReport{ID: "rep-1", RunID: "r1", TotalTests: 3, PassedTests: 3}
	if err := store.CreateTestReport(ctx, report); err != nil {
		t.Fatalf("CreateTestReport failed: %v", err)
	}
	if err := store.CreateTestReport(ctx, &contracts.TestReport{ID: "rep-2", RunID: "r1"}); err == nil {
		t.Error("Expected error for a second report on the same run")
	}

	got, err := store.FindTestReportByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("FindTestReportByRunID failed: %v", err)
	}
	if got.ID != "rep-1" || got.TotalTests != 3 {
		t.Errorf("Expected original report, got %+v", got)
	}
}
