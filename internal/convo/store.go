// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"github.com/morganforge/hud-tui/internal/model"
)

// =============================================================================
// MESSAGE STORE
// =============================================================================

// MessageStore holds the ordered messages of the active conversation.
// Order is insertion order and is never changed; during streaming the open
// assistant message is always the last element.
//
// The store performs no locking of its own: it is owned by exactly one
// Controller, which serializes every mutation (one logical execution context
// per window). Subscribers are invoked synchronously after each mutation.
type MessageStore struct {
	messages    []*model.Message
	subscribers []func()
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append adds a message at the end of the sequence.
func (s *MessageStore) Append(msg *model.Message) {
	s.messages = append(s.messages, msg)
	s.notify()
}

// UpdateLast appends streamed partial content to the last message. It is
// only valid while the last element is an open assistant message; calling it
// otherwise returns ErrInvalidState.
func (s *MessageStore) UpdateLast(partial string) error {
	last := s.Last()
	if last == nil || !last.Open() {
		return ErrInvalidState
	}
	last.AppendToken(partial)
	s.notify()
	return nil
}

// ReplaceLast resolves the last message with the authoritative final text,
// which may differ from the locally accumulated text when the backend
// post-processes its output. The optional memory note is attached to the
// resolved message.
func (s *MessageStore) ReplaceLast(final string, memory *model.MemoryRef) error {
	last := s.Last()
	if last == nil || !last.Open() {
		return ErrInvalidState
	}
	last.FinalizeStream(final)
	last.Memory = memory
	s.notify()
	return nil
}

// FailLast closes the last message keeping its partial content, flagged
// incomplete so the UI can indicate failure without losing shown text.
func (s *MessageStore) FailLast() error {
	last := s.Last()
	if last == nil || !last.Open() {
		return ErrInvalidState
	}
	last.MarkFailed()
	s.notify()
	return nil
}

// All returns the messages in order. The returned slice is a copy; the
// messages themselves are shared.
func (s *MessageStore) All() []*model.Message {
	out := make([]*model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Last returns the most recent message, or nil if the store is empty.
func (s *MessageStore) Last() *model.Message {
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

// Len returns the number of messages.
func (s *MessageStore) Len() int {
	return len(s.messages)
}

// Reset replaces the contents with a freshly loaded message page.
func (s *MessageStore) Reset(msgs []*model.Message) {
	s.messages = append(s.messages[:0:0], msgs...)
	s.notify()
}

// Subscribe registers a callback invoked after every mutation, used by the
// window to schedule a re-render. No filtering is performed.
func (s *MessageStore) Subscribe(fn func()) {
	s.subscribers = append(s.subscribers, fn)
}

// notify runs all subscriber callbacks.
func (s *MessageStore) notify() {
	for _, fn := range s.subscribers {
		fn()
	}
}
