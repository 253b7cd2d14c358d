// Package tui provides the terminal UI for cisync: live sync progress and a
// browser over a build's persisted runs and their test failures.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"cisync/src/syncer"
)

// Snapshot is what the browser displays: the runs newest first and a one-line
// summary of the build's sync status.
type Snapshot struct {
	Items   []Item
	Summary string
}

// Loader reads the current snapshot from the store.
type Loader func(ctx context.Context) (Snapshot, error)

// SyncFunc runs one sync, reporting progress through the callback.
type SyncFunc func(ctx context.Context, progress func(syncer.Progress)) error

type loadedMsg struct {
	snapshot Snapshot
	err      error
}

type syncDoneMsg struct {
	err error
}

// MainModel is the root Bubble Tea model.
type MainModel struct {
	ctx  context.Context
	load Loader

	header         Header
	listView       View
	detailViewport viewport.Model
	progress       ProgressModel
	styles         *StyleConfig

	items   []Item
	syncing bool
	syncErr error
	err     error

	width         int
	height        int
	ready         bool
	detailFocused bool
	searchMode    bool
	searchQuery   string
}

func newMainModel(ctx context.Context, buildName string, load Loader) MainModel {
	return MainModel{
		ctx:            ctx,
		load:           load,
		header:         NewHeader(buildName, ""),
		listView:       NewView(),
		detailViewport: viewport.New(0, 0),
		progress:       NewProgressModel(),
		styles:         DefaultStyles(),
	}
}

func (m MainModel) loadCmd() tea.Cmd {
	ctx, load := m.ctx, m.load
	return func() tea.Msg {
		snapshot, err := load(ctx)
		return loadedMsg{snapshot: snapshot, err: err}
	}
}

// Init starts the spinner while syncing, otherwise loads the runs.
func (m MainModel) Init() tea.Cmd {
	if m.syncing {
		return SpinnerTick()
	}
	return m.loadCmd()
}

// Update handles messages and updates the model state.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case ProgressMsg, SpinnerTickMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case syncDoneMsg:
		m.syncing = false
		m.syncErr = msg.err
		return m, m.loadCmd()

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.items = msg.snapshot.Items
		summary := msg.snapshot.Summary
		if m.syncErr != nil {
			summary = fmt.Sprintf("sync failed: %v", m.syncErr)
		}
		m.header.SetSyncSummary(summary)
		m.applyFilter()
		return m, nil

	case tea.KeyMsg:
		if m.searchMode {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m MainModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	if m.syncing {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.detailFocused = false
		return m, nil
	case "enter":
		m.detailFocused = m.listView.Len() > 0
		return m, nil
	case "tab":
		m.header.CycleFilter()
		m.applyFilter()
		return m, nil
	case "/":
		m.searchMode = true
		m.header.SetSearch(m.searchQuery, true)
		return m, nil
	case "r":
		return m, m.loadCmd()
	}

	var cmd tea.Cmd
	if m.detailFocused {
		m.detailViewport, cmd = m.detailViewport.Update(msg)
		return m, cmd
	}

	before, _ := m.listView.GetSelectedItem()
	m.listView, cmd = m.listView.Update(msg)
	if after, ok := m.listView.GetSelectedItem(); ok && after.Run.ID != before.Run.ID {
		m.updateDetailContent(after)
	}
	return m, cmd
}

func (m MainModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.searchQuery = ""
		m.searchMode = false
	case tea.KeyEnter:
		m.searchMode = false
	case tea.KeyBackspace:
		if r := []rune(m.searchQuery); len(r) > 0 {
			m.searchQuery = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.searchQuery += string(msg.Runes)
	default:
		return m, nil
	}
	m.header.SetSearch(m.searchQuery, m.searchMode)
	m.applyFilter()
	return m, nil
}

// Start opens the run browser over the snapshot returned by load.
func Start(ctx context.Context, buildName string, load Loader) error {
	p := tea.NewProgram(newMainModel(ctx, buildName, load), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// StartWithSync shows live progress while sync runs, then opens the run browser.
// The sync error, if any, is shown in the header and returned once the UI exits.
func StartWithSync(ctx context.Context, buildName string, sync SyncFunc, load Loader) error {
	m := newMainModel(ctx, buildName, load)
	m.syncing = true
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	syncErr := make(chan error, 1)
	go func() {
		err := sync(ctx, func(pr syncer.Progress) { p.Send(ProgressMsg(pr)) })
		syncErr <- err
		p.Send(syncDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	select {
	case err := <-syncErr:
		return err
	default:
		return nil
	}
}
