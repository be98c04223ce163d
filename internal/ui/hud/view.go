// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hud

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/hud-tui/internal/convo"
	"github.com/morganforge/hud-tui/internal/model"
)

// newViewport constructs the transcript viewport with mouse wheel enabled.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

// refreshViewport re-renders the transcript and reports the new content
// height to the geometry reactor. Called whenever the store changes.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	wasAtBottom := m.viewport.AtBottom()
	rendered := m.renderTranscript()
	m.viewport.SetContent(rendered)
	if wasAtBottom {
		m.viewport.GotoBottom()
	}
	m.deps.Reactor.Measure(transcriptHeight(rendered))
}

// renderTranscript renders every entry from the controller's snapshot.
func (m *Model) renderTranscript() string {
	entries := m.deps.Controller.Transcript()
	if len(entries) == 0 {
		return m.theme.HeaderMeta.Render("Start a conversation. Enter sends, ctrl+h opens history.")
	}

	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderEntry(entry))
		b.WriteString("\n")
	}
	return b.String()
}

// renderEntry renders one message bubble.
func (m *Model) renderEntry(entry convo.Entry) string {
	width := m.contentWidth()

	label := m.theme.RoleLabel.Render(entry.Role.DisplayName())
	stamp := m.theme.Timestamp.Render(entry.Timestamp.Format("15:04"))
	header := label + " " + stamp

	content := entry.Content
	if entry.Role == model.RoleAssistant {
		if entry.Streaming && content == "" {
			content = m.spinner.View() + " thinking..."
		} else if !entry.Streaming && !entry.Failed {
			content = strings.TrimRight(m.markdown.Render(content), "\n")
		}
	}
	if entry.Failed {
		if content != "" {
			content += "\n"
		}
		content += m.theme.StatusError.Render("⚠ incomplete")
	}

	bubble := m.theme.AssistantBubble
	if entry.Role == model.RoleUser {
		bubble = m.theme.UserBubble
	}
	if entry.Failed {
		bubble = m.theme.FailedBubble
	}
	body := bubble.Width(width).Render(content)

	if len(entry.Attachments) > 0 {
		tags := make([]string, 0, len(entry.Attachments))
		for _, att := range entry.Attachments {
			tags = append(tags, m.theme.AttachmentTag.Render("📎 "+att.FileName))
		}
		body += "\n" + strings.Join(tags, "  ")
	}

	return header + "\n" + body
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}
	if m.showHistory {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.historyPanel.View(),
			m.statusBar(),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerBar(),
		m.viewport.View(),
		m.theme.InputContainer.Width(m.width).Render(m.textarea.View()),
		m.statusBar(),
	)
}

// headerBar shows the conversation name and session token usage.
func (m Model) headerBar() string {
	title := "New Conversation"
	if active := m.deps.Controller.Active(); active != nil {
		title = active.DisplayName()
	}
	left := m.theme.HeaderTitle.Render(title)

	in, out := m.deps.Usage.SessionTokens()
	var right string
	if in > 0 || out > 0 {
		right = m.theme.HeaderMeta.Render(fmt.Sprintf("%d↑ %d↓ tokens", in, out))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// statusBar shows connection state, any transient error, and shortcuts.
func (m Model) statusBar() string {
	var status string
	switch {
	case m.errText != "":
		status = m.theme.StatusError.Render("● " + m.errText)
	case m.deps.Offline:
		status = m.theme.StatusOff.Render("● offline")
	case m.deps.Session.SignedIn():
		status = m.theme.StatusOnline.Render("● connected")
	default:
		status = m.theme.StatusOff.Render("● signed out")
	}

	shortcuts := m.renderShortcuts()
	gap := m.width - lipgloss.Width(status) - lipgloss.Width(shortcuts) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(status + strings.Repeat(" ", gap) + shortcuts)
}

// renderShortcuts renders the key hints for the current state.
func (m Model) renderShortcuts() string {
	type hint struct{ keys, desc string }
	hints := []hint{
		{"enter", "send"},
		{"ctrl+h", "history"},
		{"ctrl+n", "new"},
	}
	if m.streaming() {
		hints = append([]hint{{"esc", "stop"}}, hints...)
	}
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, m.theme.ShortcutKey.Render(h.keys)+" "+m.theme.ShortcutDesc.Render(h.desc))
	}
	return strings.Join(parts, "  ")
}
