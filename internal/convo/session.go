// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"github.com/morganforge/hud-tui/internal/model"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// SessionState is the lifecycle state of a streaming session.
type SessionState int

const (
	// StatePending means the request was issued and no chunk has arrived.
	StatePending SessionState = iota

	// StateStreaming means at least one chunk has been applied.
	StateStreaming

	// StateResolved means the terminal marker arrived and the final text
	// was applied.
	StateResolved

	// StateFailed means the transport or the backend reported an error.
	StateFailed

	// StateCancelled means the caller cancelled the session, e.g. by
	// switching conversations mid-stream.
	StateCancelled
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// =============================================================================
// STREAM SESSION
// =============================================================================

// StreamSession drives one in-flight assistant reply. It owns the accumulated
// partial text through the store's open assistant message, which is the
// rendering projection of that accumulation while streaming.
//
// At most one session per conversation may be pending or streaming at a time;
// the Controller enforces this. After Cancel, chunks that were already in
// flight are dropped here — the session stops listening, it does not rely on
// the UI to ignore them.
type StreamSession struct {
	conversationID string
	messageID      string
	state          SessionState
	store          *MessageStore
	err            error
}

// NewStreamSession creates a session in the pending state, bound to the open
// assistant message identified by messageID.
func NewStreamSession(store *MessageStore, conversationID, messageID string) *StreamSession {
	return &StreamSession{
		conversationID: conversationID,
		messageID:      messageID,
		store:          store,
	}
}

// ConversationID returns the conversation this session streams into.
func (ss *StreamSession) ConversationID() string { return ss.conversationID }

// MessageID returns the client-generated id of the assistant message.
func (ss *StreamSession) MessageID() string { return ss.messageID }

// State returns the current lifecycle state.
func (ss *StreamSession) State() SessionState { return ss.state }

// Err returns the error that failed the session, if any.
func (ss *StreamSession) Err() error { return ss.err }

// Live reports whether the session still accepts chunks.
func (ss *StreamSession) Live() bool {
	return ss.state == StatePending || ss.state == StateStreaming
}

// HandleChunk applies one streamed chunk. The first chunk moves the session
// from pending to streaming. Chunks arriving after cancellation, resolution
// or failure are dropped without touching the store.
func (ss *StreamSession) HandleChunk(text string) error {
	if !ss.Live() {
		return nil
	}
	ss.state = StateStreaming
	return ss.store.UpdateLast(text)
}

// HandleComplete resolves the session with the backend's authoritative final
// text. A no-op if the session is no longer live.
func (ss *StreamSession) HandleComplete(final string, memory *model.MemoryRef) error {
	if !ss.Live() {
		return nil
	}
	ss.state = StateResolved
	return ss.store.ReplaceLast(final, memory)
}

// HandleError fails the session. The partial content stays in the store,
// marked incomplete.
func (ss *StreamSession) HandleError(err error) {
	if !ss.Live() {
		return
	}
	ss.state = StateFailed
	ss.err = err
	// FailLast can only report ErrInvalidState, which cannot happen while
	// the session is live: the open assistant message is still last.
	_ = ss.store.FailLast()
}

// Cancel stops the session. The partial content applied so far stays in the
// store, marked incomplete; any chunk delivered afterwards is dropped.
func (ss *StreamSession) Cancel() {
	if !ss.Live() {
		return
	}
	ss.state = StateCancelled
	_ = ss.store.FailLast()
}
