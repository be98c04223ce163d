// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// DefaultConversationType is the classification applied when none is given.
// The type selects which tool affordances the UI shows for the conversation.
const DefaultConversationType = "chat"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the identity and display metadata of one conversation.
// The backend assigns the id at creation; everything except the name and the
// timestamps is immutable afterwards.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// NameUserSet records that the name was chosen explicitly. An
	// asynchronous auto-name result never overwrites an explicit name.
	NameUserSet bool `json:"name_user_set,omitempty"`
}

// NewConversation creates a conversation with a generated id. Used by backend
// implementations; the presentation layer only ever receives conversations.
func NewConversation(name, convType string) *Conversation {
	if convType == "" {
		convType = DefaultConversationType
	}
	now := time.Now()
	return &Conversation{
		ID:        generateConversationID(),
		Name:      name,
		Type:      convType,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Named reports whether the conversation has a display name yet.
func (c *Conversation) Named() bool {
	return c.Name != ""
}

// SetName applies an explicit, user-chosen name. It always wins and blocks
// any later auto-name result.
func (c *Conversation) SetName(name string) {
	c.Name = name
	c.NameUserSet = true
	c.UpdatedAt = time.Now()
}

// ApplyAutoName applies a backend-derived name. It only takes effect while
// the conversation is still unnamed; an explicit name is never overwritten.
func (c *Conversation) ApplyAutoName(name string) bool {
	if c.Named() {
		return false
	}
	c.Name = name
	c.UpdatedAt = time.Now()
	return true
}

// DisplayName returns the conversation name or a default.
func (c *Conversation) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return "New Conversation"
}

// =============================================================================
// CONVERSATION SUMMARY
// =============================================================================

// Summary is the lightweight, list-display projection of a conversation used
// by the history panel. It never carries message bodies and is never the live
// Conversation object.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// =============================================================================
// HUD DIMENSIONS
// =============================================================================

// HUDDimensions are the externally supplied window dimensions. They are
// read-only inputs to the geometry reactor.
type HUDDimensions struct {
	ChatWidth     float64 `json:"chat_width"`
	ChatMaxHeight float64 `json:"chat_max_height"`
	LoginWidth    float64 `json:"login_width"`
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateConversationID creates a unique conversation ID.
func generateConversationID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "conv_" + hex.EncodeToString(bytes)
}
