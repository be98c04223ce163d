// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events carries the cross-window event bus.
//
// Windows never share mutable state by reference; each runs its own
// conversation controller and reconciles through these events. Every external
// event is a tagged variant with a fixed schema per tag. Unknown tags are
// rejected at decode time rather than handled with best-effort field access.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// EVENT TAGS
// =============================================================================

// Type identifies an event variant on the wire.
type Type string

const (
	// TypeAuthChanged signals that session validity may have changed.
	TypeAuthChanged Type = "auth_changed"

	// TypeTokenUsageChanged reports updated token-usage counters. It has no
	// effect on conversation state; the usage view consumes it.
	TypeTokenUsageChanged Type = "token_usage_changed"

	// TypeConversationNameGenerated delivers an asynchronous auto-name
	// result for a conversation.
	TypeConversationNameGenerated Type = "generate_conversation_name_result"

	// TypeRenameConversation signals an explicit rename performed in
	// another window.
	TypeRenameConversation Type = "rename_conversation"

	// TypeHudChat delivers a chat message submitted from another surface
	// (e.g. the browser extension content script).
	TypeHudChat Type = "hud_chat"
)

// ErrUnknownEvent is returned when a payload carries a tag this build does
// not understand. Callers ignore such events instead of guessing at fields.
var ErrUnknownEvent = errors.New("unknown event type")

// =============================================================================
// EVENT VARIANTS
// =============================================================================

// Event is implemented by every inbound event variant.
type Event interface {
	EventType() Type
}

// AuthChanged reports a change in authentication state.
type AuthChanged struct {
	SignedIn  bool      `json:"signed_in"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType implements Event.
func (AuthChanged) EventType() Type { return TypeAuthChanged }

// TokenUsageChanged reports cumulative token usage.
type TokenUsageChanged struct {
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventType implements Event.
func (TokenUsageChanged) EventType() Type { return TypeTokenUsageChanged }

// ConversationNameGenerated carries a backend-derived conversation title.
type ConversationNameGenerated struct {
	ConversationID string    `json:"conv_id"`
	Name           string    `json:"name"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventType implements Event.
func (ConversationNameGenerated) EventType() Type { return TypeConversationNameGenerated }

// RenameConversation carries an explicit rename from another window.
type RenameConversation struct {
	ConversationID string    `json:"conv_id"`
	NewName        string    `json:"new_name"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventType implements Event.
func (RenameConversation) EventType() Type { return TypeRenameConversation }

// HudChat carries a message submitted to the HUD from another surface.
type HudChat struct {
	Text           string    `json:"text"`
	ConversationID string    `json:"conv_id"`
	MessageID      string    `json:"message_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventType implements Event.
func (HudChat) EventType() Type { return TypeHudChat }

// =============================================================================
// DECODING
// =============================================================================

// Envelope is the wire framing of an event: a tag plus a tag-specific payload.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses an envelope into its typed variant. Unknown tags return
// ErrUnknownEvent; malformed payloads return the json error.
func Decode(env Envelope) (Event, error) {
	switch env.Type {
	case TypeAuthChanged:
		var ev AuthChanged
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case TypeTokenUsageChanged:
		var ev TokenUsageChanged
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case TypeConversationNameGenerated:
		var ev ConversationNameGenerated
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case TypeRenameConversation:
		var ev RenameConversation
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case TypeHudChat:
		var ev HudChat
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}
