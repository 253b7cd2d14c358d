package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"cisync/src/contracts"
	"cisync/src/store"
	"cisync/src/syncer"
)

func seededStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	for _, b := range []contracts.Build{
		{ID: "web", TenantID: "acme", Name: "Web", Provider: "github", Owner: "acme", Repo: "web"},
		{ID: "api", TenantID: "acme", Name: "API", Provider: "github", Owner: "acme", Repo: "api"},
		{ID: "api", TenantID: "globex", Name: "API", Provider: "buildkite", Owner: "globex", Repo: "api"},
	} {
		b := b
		if err := st.SaveBuild(ctx, &b); err != nil {
			t.Fatalf("SaveBuild failed: %v", err)
		}
	}
	return st
}

func TestResolveBuild(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		buildID    string
		tenant     string
		wantTenant string
		wantErr    string
	}{
		{"unique id", "web", "", "acme", ""},
		{"tenant scoped", "api", "globex", "globex", ""},
		{"ambiguous", "api", "", "", "pass --tenant"},
		{"missing", "nope", "", "", "not found"},
		{"missing for tenant", "web", "globex", "", "not found for tenant globex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			build, err := resolveBuild(ctx, st, tt.buildID, tt.tenant)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if build.ID != tt.buildID || build.TenantID != tt.wantTenant {
				t.Errorf("Expected %s/%s, got %s/%s", tt.wantTenant, tt.buildID, build.TenantID, build.ID)
			}
		})
	}
}

func TestDescribeStatus(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	twoHoursAgo := now.Add(-2 * time.Hour)
	justNow := now.Add(-10 * time.Second)
	msg := "rate limited"

	tests := []struct {
		name   string
		status *contracts.SyncStatus
		want   string
	}{
		{"no status", nil, "never synced"},
		{
			"backfill pending",
			&contracts.SyncStatus{TotalRunsSynced: 0},
			"never synced · 0 runs · backfill pending",
		},
		{
			"healthy",
			&contracts.SyncStatus{LastSyncedAt: &twoHoursAgo, TotalRunsSynced: 42, InitialBackfillCompleted: true},
			"synced 2h ago · 42 runs",
		},
		{
			"just now with error",
			&contracts.SyncStatus{LastSyncedAt: &justNow, TotalRunsSynced: 3, InitialBackfillCompleted: true, LastSyncError: &msg},
			"synced just now · 3 runs · last error: rate limited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeStatus(tt.status, now); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSnapshotLoader(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	build, _ := st.GetBuild(ctx, "web", "acme")

	base := time.Now().Add(-time.Hour)
	runs := []contracts.RunRecord{
		{ID: "r1", BuildID: "web", TenantID: "acme", ProviderRunID: 1, Name: "CI", Status: "failure", CreatedAt: base},
		{ID: "r2", BuildID: "web", TenantID: "acme", ProviderRunID: 2, Name: "CI", Status: "success", CreatedAt: base.Add(time.Minute)},
	}
	if _, err := st.BulkCreateRuns(ctx, runs); err != nil {
		t.Fatalf("BulkCreateRuns failed: %v", err)
	}
	report := &contracts.TestReport{ID: "t1", RunID: "r1", BuildID: "web", TenantID: "acme", TotalTests: 3, PassedTests: 2, FailedTests: 1}
	if err := st.CreateTestReport(ctx, report); err != nil {
		t.Fatalf("CreateTestReport failed: %v", err)
	}

	snap, err := snapshotLoader(st, build, 10)(ctx)
	if err != nil {
		t.Fatalf("Loader failed: %v", err)
	}
	if len(snap.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(snap.Items))
	}
	if snap.Items[0].Run.ProviderRunID != 2 || snap.Items[0].Report != nil {
		t.Errorf("Expected newest run without report first, got %+v", snap.Items[0])
	}
	if snap.Items[1].Report == nil || snap.Items[1].Report.FailedTests != 1 {
		t.Errorf("Expected report on run 1, got %+v", snap.Items[1].Report)
	}
	if snap.Summary != "never synced" {
		t.Errorf("Expected never synced summary, got %q", snap.Summary)
	}

	table := runsTable(snap.Items, time.Now())
	for _, want := range []string{"RUN", "failure", "2/3"} {
		if !strings.Contains(table, want) {
			t.Errorf("Expected runs table to contain %q:\n%s", want, table)
		}
	}
}

func TestBuildsTable(t *testing.T) {
	st := seededStore(t)
	out, err := buildsTable(context.Background(), st, time.Now())
	if err != nil {
		t.Fatalf("buildsTable failed: %v", err)
	}
	for _, want := range []string{"globex", "acme/web", "never synced"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected table to contain %q:\n%s", want, out)
		}
	}

	empty, _ := buildsTable(context.Background(), store.NewMemoryStore(), time.Now())
	if empty != "No builds configured." {
		t.Errorf("Unexpected empty output %q", empty)
	}
}

func TestProgressRelay(t *testing.T) {
	var r progressRelay
	r.report(syncer.Progress{Message: "ignored"})

	var got []string
	r.set(func(p syncer.Progress) { got = append(got, p.Message) })
	r.report(syncer.Progress{Message: "a"})
	r.report(syncer.Progress{Message: "b"})

	if strings.Join(got, ",") != "a,b" {
		t.Errorf("Expected a,b got %v", got)
	}
}
