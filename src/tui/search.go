package tui

import (
	"strings"
)

// matchesQuery reports whether the run's name, branch, event or any failed
// test name or message contains the lowercase query.
func matchesQuery(item Item, query string) bool {
	fields := []string{item.Run.Name, item.Run.HeadBranch, item.Run.Event}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	for _, tc := range item.FailedTests() {
		if strings.Contains(strings.ToLower(tc.Name), query) ||
			strings.Contains(strings.ToLower(tc.ErrorMessage), query) {
			return true
		}
	}
	return false
}

// applyFilter filters items by status filter and search query
func (m *MainModel) applyFilter() {
	filter := m.header.GetFilter()
	query := strings.ToLower(m.searchQuery)

	var filtered []Item
	for _, item := range m.items {
		if filter != "ALL" && item.Run.Status != filter {
			continue
		}
		if query != "" && !matchesQuery(item, query) {
			continue
		}
		filtered = append(filtered, item)
	}

	m.listView.SetItems(filtered)
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	} else {
		m.detailViewport.SetContent("")
	}
}
