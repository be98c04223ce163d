// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bridge defines the boundary to the native backend and implements
// its HTTP transport.
//
// Everything hard — inference, persistence, token accounting, OS window
// manipulation — lives behind this boundary. The presentation layer only
// issues requests and consumes pushed chunks and events.
package bridge

import (
	"context"

	"github.com/morganforge/hud-tui/internal/model"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// SendRequest carries one user message to the backend. MessageID is the
// client-generated id of the assistant reply; the push channel delivering
// progressive output is keyed by it.
type SendRequest struct {
	ConversationID string
	MessageID      string
	Content        string
	Attachments    []model.Attachment
}

// ChunkFunc receives one progressive content delta. Implementations invoke
// it sequentially, in arrival order, from a single goroutine.
type ChunkFunc func(delta string)

// Backend is the request/response surface of the native backend. All calls
// honor context cancellation.
type Backend interface {
	// CreateConversation makes a new conversation; the backend assigns
	// the id. Empty name and type get backend defaults.
	CreateConversation(ctx context.Context, name, convType string) (*model.Conversation, error)

	// Conversation loads a conversation's identity and metadata.
	Conversation(ctx context.Context, id string) (*model.Conversation, error)

	// Messages returns one page of a conversation's messages in insertion
	// order.
	Messages(ctx context.Context, conversationID string, limit, offset int) ([]*model.Message, error)

	// SendMessage submits a user message and blocks until the assistant
	// reply is complete, invoking onChunk for each progressive delta. The
	// returned text is authoritative and may differ from the concatenated
	// chunks if the backend post-processes its output.
	SendMessage(ctx context.Context, req SendRequest, onChunk ChunkFunc) (string, error)

	// DeleteConversation removes a conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error

	// ListConversations returns one page of summaries, most recently
	// updated first.
	ListConversations(ctx context.Context, limit, offset int) ([]model.Summary, error)

	// EmitGenerateConversationName asks the backend to derive a title from
	// the first exchange. Fire-and-forget: the result arrives as a
	// generate_conversation_name_result event.
	EmitGenerateConversationName(ctx context.Context, conversationID, message string) error

	// ResizeWindow requests a window geometry change.
	ResizeWindow(ctx context.Context, width, height float64) error
}
