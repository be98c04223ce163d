// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history implements the conversation history panel: a lazily paged
// list of conversation summaries.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/hud-tui/internal/convo"
	"github.com/morganforge/hud-tui/internal/model"
	"github.com/morganforge/hud-tui/internal/util"
)

// pageTimeout bounds one summary page load.
const pageTimeout = 10 * time.Second

// =============================================================================
// MESSAGES
// =============================================================================

// PageLoadedMsg delivers one page of summaries (or the load failure).
type PageLoadedMsg struct {
	Summaries []model.Summary
	Err       error
}

// SelectedMsg reports the conversation the user picked.
type SelectedMsg struct {
	ID string
}

// DeleteRequestedMsg reports a deletion request for a conversation.
type DeleteRequestedMsg struct {
	ID string
}

// =============================================================================
// LIST ITEM
// =============================================================================

// item adapts a summary to the bubbles list.
type item struct {
	summary model.Summary
}

// Title implements list.DefaultItem.
func (i item) Title() string {
	name := i.summary.Name
	if name == "" {
		name = "New Conversation"
	}
	return util.TruncateWidth(name, 40)
}

// Description implements list.DefaultItem.
func (i item) Description() string {
	return fmt.Sprintf("%d messages · %s",
		i.summary.MessageCount,
		i.summary.UpdatedAt.Format("Jan 2 15:04"))
}

// FilterValue implements list.Item.
func (i item) FilterValue() string {
	return i.summary.Name
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the history panel. It pulls pages from the pager as the cursor
// approaches the bottom and emits SelectedMsg when the user picks an entry.
type Model struct {
	list    list.Model
	pager   *convo.HistoryPager
	loading bool
	err     error
}

// New creates a history panel over the pager.
func New(pager *convo.HistoryPager, width, height int) Model {
	delegate := list.NewDefaultDelegate()
	l := list.New(nil, delegate, width, height)
	l.Title = "Conversations"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	return Model{list: l, pager: pager}
}

// Init starts the first page load.
func (m Model) Init() tea.Cmd {
	return m.loadPage()
}

// loadPage fetches the next page from the pager.
func (m Model) loadPage() tea.Cmd {
	pager := m.pager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pageTimeout)
		defer cancel()
		page, err := pager.NextPage(ctx)
		return PageLoadedMsg{Summaries: page, Err: err}
	}
}

// Reload clears the list and starts over from page zero, e.g. after a
// deletion elsewhere.
func (m *Model) Reload() tea.Cmd {
	m.pager.Reset()
	m.list.SetItems(nil)
	m.loading = true
	return m.loadPage()
}

// SetSize resizes the panel.
func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}

// Err returns the last page-load failure, if any.
func (m Model) Err() error {
	return m.err
}

// Update handles panel input and page results.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PageLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		items := m.list.Items()
		for _, sum := range msg.Summaries {
			items = append(items, item{summary: sum})
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if sel, ok := m.list.SelectedItem().(item); ok {
				return m, func() tea.Msg { return SelectedMsg{ID: sel.summary.ID} }
			}
		case "x", "delete":
			if sel, ok := m.list.SelectedItem().(item); ok {
				return m, func() tea.Msg { return DeleteRequestedMsg{ID: sel.summary.ID} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	// Pull the next page once the cursor is in the last loaded screenful.
	if !m.loading && !m.pager.Exhausted() &&
		m.list.Index() >= len(m.list.Items())-1 && len(m.list.Items()) > 0 {
		m.loading = true
		return m, tea.Batch(cmd, m.loadPage())
	}
	return m, cmd
}

// View renders the panel.
func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Could not load conversations: %v\n\nPress ctrl+h to go back.", m.err)
	}
	return m.list.View()
}
