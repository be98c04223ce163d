// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"context"

	"github.com/morganforge/hud-tui/internal/bridge"
	"github.com/morganforge/hud-tui/internal/model"
)

// =============================================================================
// HISTORY PAGER
// =============================================================================

// HistoryPager walks the conversation list page by page, most recently
// updated first. It remembers its own position; callers just ask for the
// next page until Exhausted reports true.
//
// Like the stores, a pager belongs to one window and is never shared.
type HistoryPager struct {
	backend   bridge.Backend
	pageSize  int
	offset    int
	exhausted bool
}

// NewHistoryPager creates a pager positioned before the first page.
func NewHistoryPager(backend bridge.Backend, pageSize int) *HistoryPager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &HistoryPager{backend: backend, pageSize: pageSize}
}

// NextPage returns the next page of conversation summaries. Once the end of
// the list is reached it keeps returning an empty page without touching the
// backend again; use Reset to start over.
func (p *HistoryPager) NextPage(ctx context.Context) ([]model.Summary, error) {
	if p.exhausted {
		return nil, nil
	}
	page, err := p.backend.ListConversations(ctx, p.pageSize, p.offset)
	if err != nil {
		return nil, wrapTransport("list_conversations", err)
	}
	p.offset += len(page)
	if len(page) < p.pageSize {
		p.exhausted = true
	}
	return page, nil
}

// Exhausted reports whether the end of the list has been reached.
func (p *HistoryPager) Exhausted() bool {
	return p.exhausted
}

// Reset rewinds the pager to the beginning, e.g. after a delete or when the
// history window is reopened.
func (p *HistoryPager) Reset() {
	p.offset = 0
	p.exhausted = false
}
