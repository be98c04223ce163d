// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment describes a file attached to a message. The attachment list is
// fixed at submission time and never mutated afterwards.
type Attachment struct {
	ID            string    `json:"id"`
	MessageID     string    `json:"message_id"`
	FileName      string    `json:"file_name"`
	FileType      string    `json:"file_type"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewAttachment creates an attachment descriptor for a message.
func NewAttachment(messageID, fileName, fileType string) Attachment {
	return Attachment{
		ID:        uuid.New().String(),
		MessageID: messageID,
		FileName:  fileName,
		FileType:  fileType,
		CreatedAt: time.Now(),
	}
}

// =============================================================================
// MEMORY REFERENCE
// =============================================================================

// MemoryRef points at a long-term-memory note derived from the user message
// that preceded an assistant reply. Nil on messages without one.
type MemoryRef struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Message ids are generated client-side at submission time so the optimistic
// UI can reference a message before the backend confirms it. The client id
// stays canonical after confirmation.
type Message struct {
	// Identity
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Timestamp      time.Time `json:"timestamp"`

	// Content
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Memory note attached to the preceding user message (assistant only).
	Memory *MemoryRef `json:"memory,omitempty"`

	// Streaming state (not persisted).
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`

	// Failed marks an assistant message whose stream ended in an error or
	// cancellation. The partial content shown so far is kept.
	Failed bool `json:"failed,omitempty"`
}

// NewUserMessage creates a user message with a client-generated id.
// User message content is immutable once submitted.
func NewUserMessage(conversationID, content string, attachments []Attachment) *Message {
	return &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		Attachments:    attachments,
		Timestamp:      time.Now(),
	}
}

// NewAssistantMessage creates an empty streaming assistant message. Its id is
// the one the send request was issued with, so streamed chunks can be matched
// back to it.
func NewAssistantMessage(conversationID, messageID string) *Message {
	return &Message{
		ID:             messageID,
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Timestamp:      time.Now(),
		IsStreaming:    true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends streamed content to an open assistant message.
// Tokens arriving after the stream has been finalized are dropped.
func (m *Message) AppendToken(token string) {
	if m.IsStreaming {
		m.streamContent.WriteString(token)
	}
}

// FinalizeStream closes the stream with the authoritative final text. The
// backend may post-process its output, so final wins over whatever was
// accumulated locally.
func (m *Message) FinalizeStream(final string) {
	if !m.IsStreaming {
		return
	}
	m.Content = final
	m.streamContent.Reset()
	m.IsStreaming = false
}

// MarkFailed closes the stream keeping the partial content, flagged so the
// UI can indicate failure without losing text already shown.
func (m *Message) MarkFailed() {
	if m.IsStreaming {
		m.Content = m.streamContent.String()
		m.streamContent.Reset()
		m.IsStreaming = false
	}
	m.Failed = true
}

// GetDisplayContent returns the content to render (streaming or final).
func (m *Message) GetDisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.GetDisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// Open reports whether the message is an assistant message still receiving
// a stream.
func (m *Message) Open() bool {
	return m.Role == RoleAssistant && m.IsStreaming
}
