// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hud

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/hud-tui/internal/convo"
	"github.com/morganforge/hud-tui/internal/events"
	"github.com/morganforge/hud-tui/internal/ui/history"
)

// errDisplayDuration is how long a transient error line stays visible.
const errDisplayDuration = 4 * time.Second

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ActivityMsg:
		m.refreshViewport()
		return m, listenActivity(m.activity)

	case BusEventMsg:
		return m.handleBusEvent(msg.Event)

	case SendFailedMsg:
		return m.showError(msg.Err)

	case ConversationSwitchedMsg:
		if msg.Err != nil {
			return m.showError(msg.Err)
		}
		m.refreshViewport()
		return m, nil

	case ConversationDeletedMsg:
		if msg.Err != nil {
			return m.showError(msg.Err)
		}
		m.refreshViewport()
		if m.showHistory {
			return m, m.historyPanel.Reload()
		}
		return m, nil

	case ClearErrorMsg:
		m.errText = ""
		return m, nil

	case history.SelectedMsg:
		m.showHistory = false
		m.textarea.Focus()
		return m, m.selectConversation(msg.ID)

	case history.DeleteRequestedMsg:
		return m, m.deleteConversation(msg.ID)

	case history.PageLoadedMsg:
		var cmd tea.Cmd
		m.historyPanel, cmd = m.historyPanel.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateChildren(msg)
}

// handleResize recomputes the layout for a new terminal size.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.markdown.SetWidth(m.contentWidth())

	// Header, input box, and status bar frame the transcript viewport.
	chromeHeight := 1 + m.textarea.Height() + 2 + 1
	vpHeight := msg.Height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = newViewport(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(msg.Width - 2)
	m.historyPanel.SetSize(msg.Width, msg.Height-1)

	m.refreshViewport()
	return m, nil
}

// handleKey routes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showHistory {
		if key.Matches(msg, m.keys.ToggleHistory) {
			m.showHistory = false
			m.textarea.Focus()
			return m, nil
		}
		var cmd tea.Cmd
		m.historyPanel, cmd = m.historyPanel.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.CancelStream):
		if m.streaming() {
			m.deps.Controller.CancelStream()
			m.refreshViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m, m.newConversation()

	case key.Matches(msg, m.keys.ToggleHistory):
		m.showHistory = true
		m.textarea.Blur()
		return m, m.historyPanel.Reload()
	}

	return m.updateChildren(msg)
}

// handleBusEvent folds one cross-window event into every interested piece of
// window state, in bus order.
func (m Model) handleBusEvent(ev events.Event) (tea.Model, tea.Cmd) {
	m.deps.Session.HandleEvent(ev)
	m.deps.Usage.HandleEvent(ev)
	m.deps.Controller.HandleEvent(ev)

	cmds := []tea.Cmd{listenBus(m.busQ)}

	// A message submitted from another surface sends through this window
	// when it is idle.
	if chat, ok := ev.(events.HudChat); ok && !m.streaming() {
		if text := strings.TrimSpace(chat.Text); text != "" {
			cmds = append(cmds, m.send(text))
		}
	}

	m.refreshViewport()
	return m, tea.Batch(cmds...)
}

// submit sends the textarea content.
func (m Model) submit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.textarea.Value())
	if content == "" {
		return m, nil
	}
	if m.streaming() {
		return m.showError(convo.ErrConcurrentStream)
	}
	m.textarea.Reset()
	return m, m.send(content)
}

// send issues the controller call off the update loop.
func (m Model) send(content string) tea.Cmd {
	controller := m.deps.Controller
	return func() tea.Msg {
		if _, err := controller.SendMessage(context.Background(), content, nil); err != nil {
			return SendFailedMsg{Err: err}
		}
		return ActivityMsg{}
	}
}

// newConversation starts a fresh conversation explicitly.
func (m Model) newConversation() tea.Cmd {
	controller := m.deps.Controller
	return func() tea.Msg {
		if _, err := controller.CreateConversation(context.Background(), "", ""); err != nil {
			return SendFailedMsg{Err: err}
		}
		return ActivityMsg{}
	}
}

// selectConversation activates a conversation picked from history.
func (m Model) selectConversation(id string) tea.Cmd {
	controller := m.deps.Controller
	return func() tea.Msg {
		_, err := controller.SelectConversation(context.Background(), id)
		return ConversationSwitchedMsg{Err: err}
	}
}

// deleteConversation removes a conversation picked from history.
func (m Model) deleteConversation(id string) tea.Cmd {
	controller := m.deps.Controller
	return func() tea.Msg {
		err := controller.DeleteConversation(context.Background(), id)
		return ConversationDeletedMsg{ID: id, Err: err}
	}
}

// showError displays a transient error line.
func (m Model) showError(err error) (tea.Model, tea.Cmd) {
	m.errText = userFacing(err)
	m.deps.Logger.Printf("error: %v", err)
	return m, tea.Tick(errDisplayDuration, func(time.Time) tea.Msg {
		return ClearErrorMsg{}
	})
}

// userFacing maps internal errors to short display strings.
func userFacing(err error) string {
	switch {
	case errors.Is(err, convo.ErrConcurrentStream):
		return "A reply is still streaming. Press esc to stop it first."
	case errors.Is(err, convo.ErrNoActiveConversation):
		return "No conversation is active."
	default:
		var te *convo.TransportError
		if errors.As(err, &te) {
			return "Connection problem. Your message is kept locally."
		}
		return err.Error()
	}
}

// updateChildren forwards a message to the focused child components.
func (m Model) updateChildren(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}
