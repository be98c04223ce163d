// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable rendering pieces for the hud TUI.
package components

import (
	"sync"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders assistant replies as terminal markdown.
// USABILITY: Renders markdown responses with syntax highlighting and formatting.
type MarkdownRenderer struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdownRenderer creates a renderer wrapping at the given width.
// If glamour fails to initialize, Render degrades to plain text.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	mr := &MarkdownRenderer{width: width}
	mr.rebuild()
	return mr
}

// SetWidth changes the wrap width, rebuilding the underlying renderer.
func (mr *MarkdownRenderer) SetWidth(width int) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if width == mr.width {
		return
	}
	mr.width = width
	mr.rebuildLocked()
}

// Render renders markdown for terminal display. Returns the input unchanged
// when rendering is unavailable or fails.
func (mr *MarkdownRenderer) Render(content string) string {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.renderer == nil {
		return content
	}
	rendered, err := mr.renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

func (mr *MarkdownRenderer) rebuild() {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.rebuildLocked()
}

func (mr *MarkdownRenderer) rebuildLocked() {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(mr.width),
	)
	if err != nil {
		mr.renderer = nil
		return
	}
	mr.renderer = renderer
}
