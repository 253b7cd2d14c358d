package tui

import (
	"cisync/src/contracts"
	"cisync/src/junit"
)

// Item is one persisted run shown in the run list.
// It wraps the RunRecord and implements bubbles/list.Item.
type Item struct {
	Run    contracts.RunRecord
	Report *contracts.TestReport
}

// FilterValue is the value used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Run.Name }

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string { return i.Run.Name }

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return i.Run.HeadBranch }

// FailedTests returns the failed cases of the run's report, if any.
func (i Item) FailedTests() []contracts.TestCase {
	return junit.FailedCases(i.Report)
}

// TestSummary renders the report counters as "passed/total", or "-" without a report.
func (i Item) TestSummary() string {
	if i.Report == nil {
		return "-"
	}
	return formatCount(i.Report.PassedTests) + "/" + formatCount(i.Report.TotalTests)
}
