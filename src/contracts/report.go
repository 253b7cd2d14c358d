package contracts

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/xxh3"
)

// TestStatus is the outcome of a single test case.
type TestStatus string

const (
	TestPassed  TestStatus = "passed"
	TestFailed  TestStatus = "failed"
	TestSkipped TestStatus = "skipped"
)

// TestReport summarizes the test results attached to one run.
type TestReport struct {
	ID           string     `json:"id,omitempty"`
	RunID        string     `json:"run_id,omitempty"`
	BuildID      string     `json:"build_id,omitempty"`
	TenantID     string     `json:"tenant_id,omitempty"`
	ArtifactName string     `json:"artifact_name,omitempty"`
	Checksum     string     `json:"checksum,omitempty"`
	TotalTests   int        `json:"total_tests"`
	PassedTests  int        `json:"passed_tests"`
	FailedTests  int        `json:"failed_tests"`
	SkippedTests int        `json:"skipped_tests"`
	TestCases    []TestCase `json:"test_cases,omitempty"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
}

// TestCase is a single test result extracted from a report.
type TestCase struct {
	Name         string     `json:"name"`
	Suite        string     `json:"suite"`
	Status       TestStatus `json:"status"`
	DurationMs   int64      `json:"duration_ms"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StackTrace   string     `json:"stack_trace,omitempty"`
}

// Fingerprint identifies the same test across runs (suite + name).
func (tc TestCase) Fingerprint() string {
	sum := xxh3.HashString128(tc.Suite + "::" + tc.Name).Bytes()
	return hex.EncodeToString(sum[:8])
}
