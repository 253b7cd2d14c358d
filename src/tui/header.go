package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// statusFilters are cycled with Tab.
var statusFilters = []string{"ALL", "failure", "success", "in_progress"}

// Header represents the top status bar component.
type Header struct {
	buildName      string
	syncSummary    string
	selectedFilter string
	searchQuery    string
	searchMode     bool
	styles         *StyleConfig
}

// NewHeader creates a new header with default styles
func NewHeader(buildName, syncSummary string) Header {
	return Header{
		buildName:      buildName,
		syncSummary:    syncSummary,
		selectedFilter: statusFilters[0],
		styles:         DefaultStyles(),
	}
}

// SetSyncSummary replaces the sync summary shown next to the build name.
func (h *Header) SetSyncSummary(summary string) {
	h.syncSummary = summary
}

// GetFilter returns the current status filter
func (h Header) GetFilter() string {
	return h.selectedFilter
}

// CycleFilter cycles to the next status filter
func (h *Header) CycleFilter() {
	currentIndex := 0
	for i, f := range statusFilters {
		if f == h.selectedFilter {
			currentIndex = i
			break
		}
	}
	h.selectedFilter = statusFilters[(currentIndex+1)%len(statusFilters)]
}

// SetSearch updates the search state
func (h *Header) SetSearch(query string, mode bool) {
	h.searchQuery = query
	h.searchMode = mode
}

// Render renders the header
func (h Header) Render(width int) string {
	sectionStyle := lipgloss.NewStyle().
		Foreground(h.styles.PrimaryBlue).
		Bold(true).
		Padding(0, 2)

	build := sectionStyle.Render(fmt.Sprintf("📦 %s", h.buildName))
	filter := sectionStyle.Render(fmt.Sprintf("⚙️ Status: %s", h.selectedFilter))

	summary := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2).
		Render(h.syncSummary)

	var searchText string
	switch {
	case h.searchMode:
		searchText = fmt.Sprintf("🔍 Search: %s█", h.searchQuery)
	case h.searchQuery != "":
		searchText = fmt.Sprintf("🔍 Search: %s", h.searchQuery)
	default:
		searchText = "🔍 [/] to search"
	}
	searchStyle := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2)
	if h.searchMode {
		searchStyle = searchStyle.Foreground(h.styles.PrimaryBlue)
	}
	search := searchStyle.Render(searchText)

	content := lipgloss.JoinHorizontal(lipgloss.Left, build, summary, filter, search)
	if lipgloss.Width(content) > width {
		content = lipgloss.JoinHorizontal(lipgloss.Left, build, filter)
	}

	headerStyle := lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		MaxWidth(width).
		Width(width)

	return headerStyle.Render(content)
}
