package mcp

import (
	"fmt"
	"strings"
	"testing"

	"cisync/src/contracts"
)

func failedCase(suite, name, msg string) contracts.TestCase {
	return contracts.TestCase{
		Suite:        suite,
		Name:         name,
		Status:       contracts.TestFailed,
		ErrorMessage: msg,
		StackTrace:   msg + "\n\tat " + suite + "." + name + "(X.java:1)",
	}
}

func reportOf(cases ...contracts.TestCase) *contracts.TestReport {
	r := &contracts.TestReport{TestCases: cases, TotalTests: len(cases)}
	for _, tc := range cases {
		if tc.Status == contracts.TestFailed {
			r.FailedTests++
		} else {
			r.PassedTests++
		}
	}
	return r
}

func TestTierFailures(t *testing.T) {
	current := reportOf(
		failedCase("auth", "TestLogin", "expected 200"),
		failedCase("api", "TestList", "timeout"),
		contracts.TestCase{Suite: "api", Name: "TestGet", Status: contracts.TestPassed},
		failedCase("db", "TestMigrate", "\x1b[31mrelation missing\x1b[0m"),
	)
	previous := reportOf(
		failedCase("api", "TestList", "timeout"),
		failedCase("gone", "TestOld", "x"),
	)

	resp := TierFailures(current, previous, 0)

	if len(resp.NewFailures) != 2 {
		t.Fatalf("Expected 2 new failures, got %d", len(resp.NewFailures))
	}
	// ordered by suite
	if resp.NewFailures[0].Suite != "auth" || resp.NewFailures[1].Suite != "db" {
		t.Errorf("Unexpected order: %s, %s", resp.NewFailures[0].Suite, resp.NewFailures[1].Suite)
	}
	if resp.NewFailures[1].Message != "relation missing" {
		t.Errorf("Message not sanitized: %q", resp.NewFailures[1].Message)
	}
	if len(resp.NewFailures[0].StackTrace) != 2 {
		t.Errorf("Expected 2 trace lines, got %v", resp.NewFailures[0].StackTrace)
	}

	if len(resp.PersistentFailures) != 1 || resp.PersistentFailures[0].Name != "TestList" {
		t.Errorf("Expected TestList to persist, got %+v", resp.PersistentFailures)
	}
}

func TestTierFailures_NoPrevious(t *testing.T) {
	resp := TierFailures(reportOf(failedCase("a", "T1", "m"), failedCase("a", "T2", "m")), nil, 0)
	if len(resp.NewFailures) != 2 {
		t.Errorf("Expected all failures to be new, got %d", len(resp.NewFailures))
	}
	if resp.PersistentFailures == nil {
		t.Error("PersistentFailures should be an empty slice for JSON output")
	}
}

func TestTierFailures_Limits(t *testing.T) {
	var current, previous []contracts.TestCase
	for i := 0; i < 20; i++ {
		current = append(current, failedCase("new", fmt.Sprintf("T%02d", i), "m"))
		old := failedCase("old", fmt.Sprintf("T%02d", i), "m")
		current = append(current, old)
		previous = append(previous, old)
	}

	tests := []struct {
		limit          int
		wantNew        int
		wantPersistent int
	}{
		{0, DefaultNewLimit, DefaultPersistentLimit},
		{DefaultNewLimit, DefaultNewLimit, DefaultPersistentLimit},
		{6, 6, 2},
		{1, 1, 1},
	}

	for _, tt := range tests {
		resp := TierFailures(reportOf(current...), reportOf(previous...), tt.limit)
		if len(resp.NewFailures) != tt.wantNew {
			t.Errorf("limit %d: expected %d new, got %d", tt.limit, tt.wantNew, len(resp.NewFailures))
		}
		if len(resp.PersistentFailures) != tt.wantPersistent {
			t.Errorf("limit %d: expected %d persistent, got %d", tt.limit, tt.wantPersistent, len(resp.PersistentFailures))
		}
	}
}

func TestTierFailures_DuplicateCases(t *testing.T) {
	tc := failedCase("a", "T", "m")
	resp := TierFailures(reportOf(tc, tc), nil, 0)
	if len(resp.NewFailures) != 1 {
		t.Errorf("Expected duplicates to collapse, got %d", len(resp.NewFailures))
	}
}

func TestTraceTruncation(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = fmt.Sprintf("at app.Frame%d(App.java:%d)", i, i)
	}
	tc := contracts.TestCase{Suite: "s", Name: "n", Status: contracts.TestFailed, StackTrace: strings.Join(lines, "\n")}

	f := toFailure(tc, TraceLinesNew)
	if len(f.StackTrace) != TraceLinesNew || !f.Truncated {
		t.Errorf("Expected %d truncated lines, got %d (truncated=%v)", TraceLinesNew, len(f.StackTrace), f.Truncated)
	}

	full, ok := FindFailure(reportOf(tc), tc.Fingerprint())
	if !ok {
		t.Fatal("FindFailure did not find the case")
	}
	if len(full.StackTrace) != 50 || full.Truncated {
		t.Errorf("Expected the full trace, got %d lines", len(full.StackTrace))
	}
}

func TestToSummary_TruncatesMessage(t *testing.T) {
	s := toSummary(failedCase("s", "n", strings.Repeat("x", 150)))
	if len(s.Message) != messageMaxChars || !strings.HasSuffix(s.Message, "...") {
		t.Errorf("Unexpected summary message %q", s.Message)
	}
}

func TestFindFailure_Missing(t *testing.T) {
	if _, ok := FindFailure(nil, "abc"); ok {
		t.Error("Expected no failure in a nil report")
	}
}
