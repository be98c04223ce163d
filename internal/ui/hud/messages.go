// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hud implements the main always-on-top chat window.
//
// This file defines the Bubble Tea message types the window uses. Everything
// asynchronous — streamed chunks, bus events, backend results — enters the
// update loop through one of these, so all state transitions happen on the
// single program goroutine.
package hud

import (
	"github.com/morganforge/hud-tui/internal/events"
)

// ActivityMsg signals that the transcript changed (a chunk arrived, a stream
// resolved or failed). Coalesced: many changes may collapse into one.
type ActivityMsg struct{}

// BusEventMsg carries one cross-window event into the update loop.
type BusEventMsg struct {
	Event events.Event
}

// SendFailedMsg reports that submitting a message failed before a stream
// could start.
type SendFailedMsg struct {
	Err error
}

// ConversationSwitchedMsg reports the outcome of selecting a conversation
// from history.
type ConversationSwitchedMsg struct {
	Err error
}

// ConversationDeletedMsg reports the outcome of a deletion.
type ConversationDeletedMsg struct {
	ID  string
	Err error
}

// ClearErrorMsg hides the transient error line.
type ClearErrorMsg struct{}
