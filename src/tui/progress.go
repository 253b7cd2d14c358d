package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cisync/src/syncer"
)

// ASCII art logo lines for the sync screen
var cisyncLogo = []string{
	" ▄██████▄ ████ ▄████████▄ ██    ██ ██▄    ██  ▄██████▄",
	" ██        ██  ██          ██  ██  ████   ██  ██      ",
	" ██        ██   ████████▄   ████   ██ ██  ██  ██      ",
	" ██        ██           ██   ██    ██  ██ ██  ██      ",
	" ▀██████▀ ████ ▀████████▀    ██    ██   ▀███  ▀██████▀",
}

// Gradient colors from light (top) to dark (bottom)
var logoGradientColors = []string{
	"#5DADE2",
	"#3498DB",
	"#2E86C1",
	"#2874A6",
	"#21618C",
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ProgressMsg carries a sync progress update into the program.
type ProgressMsg syncer.Progress

// SpinnerTickMsg triggers spinner animation frame advance
type SpinnerTickMsg time.Time

type ProgressModel struct {
	stage        syncer.Stage
	message      string
	current      int
	total        int
	done         bool
	failed       bool
	spinnerFrame int
}

func NewProgressModel() ProgressModel {
	return ProgressModel{}
}

// SpinnerTick returns a command that sends SpinnerTickMsg after a delay
func SpinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.stage = msg.Stage
		m.message = msg.Message
		m.current = msg.Current
		m.total = msg.Total
		switch msg.Stage {
		case syncer.StageDone:
			m.done = true
		case syncer.StageFailed:
			m.done, m.failed = true, true
		}
	case SpinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		if !m.done {
			return m, SpinnerTick()
		}
	}
	return m, nil
}

// Done reports whether the sync reached a terminal stage.
func (m ProgressModel) Done() bool {
	return m.done
}

func (m ProgressModel) View() string {
	var logoLines []string
	for i, line := range cisyncLogo {
		color := logoGradientColors[i%len(logoGradientColors)]
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color(color)).
			Bold(true)
		logoLines = append(logoLines, style.Render(line))
	}
	logo := strings.Join(logoLines, "\n")

	if m.failed {
		failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
		status := failStyle.Render("✗ Sync failed: " + m.message)
		return lipgloss.JoinVertical(lipgloss.Center, logo, "", status)
	}
	if m.done {
		completeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		status := completeStyle.Render("✓ Complete! " + m.message)
		return lipgloss.JoinVertical(lipgloss.Center, logo, "", status)
	}

	spinner := spinnerFrames[m.spinnerFrame]
	spinnerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")) // Gold

	var statusLine string
	if m.total > 0 {
		pct := float64(m.current) / float64(m.total) * 100
		statusLine = fmt.Sprintf("%s %s (%d/%d, %.0f%%)",
			spinnerStyle.Render(spinner), m.stage, m.current, m.total, pct)
	} else if m.stage != "" {
		statusLine = fmt.Sprintf("%s %s...", spinnerStyle.Render(spinner), m.stage)
	} else {
		statusLine = fmt.Sprintf("%s Starting sync...", spinnerStyle.Render(spinner))
	}

	return lipgloss.JoinVertical(lipgloss.Center, logo, "", statusLine)
}
