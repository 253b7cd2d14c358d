package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cisync/src/provider"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	listRenderingOverhead = 10

	branchWidth = 14
	ageWidth    = 4
	testsWidth  = 9
)

// Delegate renders runs as table rows.
type Delegate struct {
	RunIDWidth int
	styles     *StyleConfig
	now        func() time.Time
}

// NewDelegate creates a new run row delegate with default styles
func NewDelegate() Delegate {
	return Delegate{
		RunIDWidth: 2,
		styles:     DefaultStyles(),
		now:        time.Now,
	}
}

// SetColumnWidths sizes the run ID column to the largest provider run ID.
func (d *Delegate) SetColumnWidths(maxRunID int64) {
	d.RunIDWidth = max(2, len(fmt.Sprintf("%d", maxRunID)))
}

// Height returns the height of a list item
func (d Delegate) Height() int {
	return 1
}

// Spacing returns spacing between items
func (d Delegate) Spacing() int {
	return 0
}

// Update handles item updates
func (d Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

func statusIcon(status string) string {
	switch provider.RunStatus(status) {
	case provider.StatusSuccess:
		return "✓"
	case provider.StatusFailure:
		return "✗"
	case provider.StatusCancelled:
		return "⊘"
	default:
		return "●"
	}
}

// fixedWidth is the width of every column except the run name.
func (d Delegate) fixedWidth() int {
	// icon + separators (5 x " │ ")
	return 1 + d.RunIDWidth + branchWidth + ageWidth + testsWidth + 15
}

// Render renders a list item
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	icon := lipgloss.NewStyle().Foreground(d.styles.StatusColor(entry.Run.Status)).Render(statusIcon(entry.Run.Status))
	idCol := fmt.Sprintf("%*d", d.RunIDWidth, entry.Run.ProviderRunID)
	branchCol := TruncateAndPad(entry.Run.HeadBranch, branchWidth, true)
	ageCol := TruncateAndPad(Ago(entry.Run.CreatedAt, d.now()), ageWidth, false)
	testsCol := TruncateAndPad(entry.TestSummary(), testsWidth, false)

	var name string
	if available := m.Width() - d.fixedWidth() - listRenderingOverhead; available > 0 {
		name = TruncateAndPad(entry.Run.Name, available, true)
	}

	line := fmt.Sprintf("%s │ %s │ %s │ %s │ %s │ %s",
		icon, idCol, branchCol, ageCol, testsCol, name)

	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if isSelected {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}

	fmt.Fprint(w, style.Render(line))
}
