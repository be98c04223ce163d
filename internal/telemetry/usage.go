// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry tracks token usage reported by the daemon. The counters
// feed the usage readout only; conversation state never depends on them.
package telemetry

import (
	"sync"
	"time"

	"github.com/morganforge/hud-tui/internal/events"
)

// Usage accumulates token-usage reports. Values are cumulative as reported
// by the daemon; the tracker keeps the latest snapshot plus session deltas.
type Usage struct {
	mu           sync.RWMutex
	inputTokens  int
	outputTokens int
	updatedAt    time.Time

	// baseline captures the first report, so SessionTokens reflects usage
	// since this window started rather than account lifetime totals.
	baselineIn  int
	baselineOut int
	hasBaseline bool
}

// NewUsage creates an empty tracker.
func NewUsage() *Usage {
	return &Usage{}
}

// HandleEvent folds a token_usage_changed event in. Other events are
// ignored.
func (u *Usage) HandleEvent(ev events.Event) {
	e, ok := ev.(events.TokenUsageChanged)
	if !ok {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.hasBaseline {
		u.baselineIn = e.InputTokens
		u.baselineOut = e.OutputTokens
		u.hasBaseline = true
	}
	u.inputTokens = e.InputTokens
	u.outputTokens = e.OutputTokens
	u.updatedAt = time.Now()
}

// Totals returns the latest cumulative counters.
func (u *Usage) Totals() (input, output int) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.inputTokens, u.outputTokens
}

// SessionTokens returns tokens consumed since the first report this window
// saw.
func (u *Usage) SessionTokens() (input, output int) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if !u.hasBaseline {
		return 0, 0
	}
	return u.inputTokens - u.baselineIn, u.outputTokens - u.baselineOut
}

// UpdatedAt returns when the last report arrived, zero if none has.
func (u *Usage) UpdatedAt() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.updatedAt
}
