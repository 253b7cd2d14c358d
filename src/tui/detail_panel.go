package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cisync/src/junit"
)

// detailTraceLines is how many stack trace lines are shown per failed test.
const detailTraceLines = 12

// renderDetail renders the run metadata and its failed tests.
func (m MainModel) renderDetail(item Item, maxWidth int) string {
	var content strings.Builder
	secondary := lipgloss.NewStyle().Foreground(m.styles.TextSecondary)

	header := lipgloss.NewStyle().
		Foreground(m.styles.StatusColor(item.Run.Status)).
		Bold(true).
		Render(Wrap(fmt.Sprintf("Run #%d │ %s │ %s", item.Run.ProviderRunID, item.Run.Status, item.Run.Name), maxWidth))
	fmt.Fprintf(&content, "%s\n", header)

	meta := fmt.Sprintf("Branch: %s │ Event: %s │ Duration: %s │ Created: %s",
		valueOr(item.Run.HeadBranch, "-"), valueOr(item.Run.Event, "-"),
		FormatDuration(item.Run.Duration), item.Run.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(&content, secondary.Render(Wrap(meta, maxWidth)))
	if item.Run.HTMLURL != "" {
		fmt.Fprintln(&content, secondary.Faint(true).Render(Wrap(item.Run.HTMLURL, maxWidth)))
	}
	fmt.Fprintln(&content)

	if item.Report == nil {
		fmt.Fprintln(&content, secondary.Faint(true).Render("No test report for this run."))
		return content.String()
	}

	r := item.Report
	fmt.Fprintln(&content, lipgloss.NewStyle().Bold(true).Render(
		Wrap(fmt.Sprintf("Tests: %d total, %d passed, %d failed, %d skipped (%s)",
			r.TotalTests, r.PassedTests, r.FailedTests, r.SkippedTests, r.ArtifactName), maxWidth)))
	fmt.Fprintln(&content)

	failed := item.FailedTests()
	if len(failed) == 0 {
		fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.Success).Render("All tests passed."))
		return content.String()
	}

	errorStyle := lipgloss.NewStyle().Foreground(m.styles.Failure).Bold(true)
	for _, tc := range failed {
		fmt.Fprintln(&content, errorStyle.Render(Wrap("✗ "+tc.Suite+" › "+tc.Name, maxWidth)))
		if tc.ErrorMessage != "" {
			fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.Failure).Render(Wrap(tc.ErrorMessage, maxWidth)))
		}
		for _, line := range junit.StackTraceLines(tc, detailTraceLines) {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprintln(&content, secondary.Faint(true).Render(Wrap(line, maxWidth)))
		}
		fmt.Fprintln(&content)
	}

	return content.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent(item Item) {
	maxWidth := m.detailViewport.Width - 2 // 1 char padding on each side
	m.detailViewport.SetContent(m.renderDetail(item, maxWidth))
	m.detailViewport.GotoTop()
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	if _, ok := m.listView.GetSelectedItem(); ok {
		headerRow := lipgloss.NewStyle().
			Foreground(m.styles.PrimaryBlue).
			Bold(true).
			Padding(0, 1).
			Render("Details")

		panel := m.styles.PanelStyle(m.detailFocused).
			Width(width - 2).
			Height(height).
			Render(m.detailViewport.View())

		return lipgloss.JoinVertical(lipgloss.Left, headerRow, panel)
	}

	placeholderRow := lipgloss.NewStyle().
		Padding(0, 1).
		Render(" ")

	empty := m.styles.PanelStyle(false).
		Width(width-2).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true).
		Render("No runs match")

	return lipgloss.JoinVertical(lipgloss.Left, placeholderRow, empty)
}
