// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/morganforge/hud-tui/internal/bridge"
	"github.com/morganforge/hud-tui/internal/events"
	"github.com/morganforge/hud-tui/internal/model"
)

// Responder produces an assistant reply for a local conversation. It may
// invoke onChunk for progressive output and returns the final text.
type Responder func(ctx context.Context, history []*model.Message, onChunk bridge.ChunkFunc) (string, error)

// offlineNotice is the default local reply when no responder is configured.
const offlineNotice = "The assistant daemon is not connected. Your message was saved and will be available when you reconnect."

// =============================================================================
// LOCAL BACKEND
// =============================================================================

// LocalBackend implements bridge.Backend entirely against the SQLite store.
// It serves offline operation and development: messages persist, history
// pages, and auto-naming works, while replies come from the configured
// Responder (by default a canned offline notice).
type LocalBackend struct {
	store   *Store
	bus     *events.Bus
	respond Responder
	// now is injected for naming tests.
	now func() time.Time
}

var _ bridge.Backend = (*LocalBackend)(nil)

// NewLocalBackend creates a backend over the store. Auto-name results are
// published on bus; a nil bus disables them.
func NewLocalBackend(store *Store, bus *events.Bus) *LocalBackend {
	return &LocalBackend{
		store: store,
		bus:   bus,
		now:   time.Now,
	}
}

// WithResponder replaces the reply source.
func (b *LocalBackend) WithResponder(r Responder) *LocalBackend {
	b.respond = r
	return b
}

// CreateConversation implements bridge.Backend.
func (b *LocalBackend) CreateConversation(ctx context.Context, name, convType string) (*model.Conversation, error) {
	return b.store.CreateConversation(ctx, name, convType)
}

// Conversation implements bridge.Backend.
func (b *LocalBackend) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	return b.store.GetConversation(ctx, id)
}

// Messages implements bridge.Backend.
func (b *LocalBackend) Messages(ctx context.Context, conversationID string, limit, offset int) ([]*model.Message, error) {
	return b.store.Messages(ctx, conversationID, limit, offset)
}

// SendMessage implements bridge.Backend: the user message is persisted, the
// responder produces the reply, and the reply is persisted before returning.
func (b *LocalBackend) SendMessage(ctx context.Context, req bridge.SendRequest, onChunk bridge.ChunkFunc) (string, error) {
	userMsg := &model.Message{
		ID:             uniqueUserMessageID(req),
		ConversationID: req.ConversationID,
		Role:           model.RoleUser,
		Content:        req.Content,
		Attachments:    req.Attachments,
		Timestamp:      b.now(),
	}
	if err := b.store.AppendMessage(ctx, userMsg); err != nil {
		return "", err
	}

	history, err := b.store.Messages(ctx, req.ConversationID, 1000, 0)
	if err != nil {
		return "", err
	}

	final := offlineNotice
	if b.respond != nil {
		final, err = b.respond(ctx, history, onChunk)
		if err != nil {
			return "", err
		}
	} else if onChunk != nil {
		onChunk(final)
	}

	reply := &model.Message{
		ID:             req.MessageID,
		ConversationID: req.ConversationID,
		Role:           model.RoleAssistant,
		Content:        final,
		Timestamp:      b.now(),
	}
	if err := b.store.AppendMessage(ctx, reply); err != nil {
		return "", err
	}
	return final, nil
}

// DeleteConversation implements bridge.Backend.
func (b *LocalBackend) DeleteConversation(ctx context.Context, id string) error {
	return b.store.DeleteConversation(ctx, id)
}

// ListConversations implements bridge.Backend.
func (b *LocalBackend) ListConversations(ctx context.Context, limit, offset int) ([]model.Summary, error) {
	return b.store.ListConversations(ctx, limit, offset)
}

// EmitGenerateConversationName implements bridge.Backend. The name derives
// from the conversation's first user message (falling back to the message
// passed in) and comes back as an event, matching the daemon's asynchronous
// shape.
func (b *LocalBackend) EmitGenerateConversationName(ctx context.Context, conversationID, message string) error {
	first, err := b.store.FirstUserMessage(ctx, conversationID)
	if err != nil {
		return err
	}
	if first == "" {
		first = message
	}
	name := DeriveName(first, b.now())
	if err := b.store.RenameConversation(ctx, conversationID, name, false); err != nil {
		return err
	}
	if b.bus != nil {
		b.bus.Publish(events.ConversationNameGenerated{
			ConversationID: conversationID,
			Name:           name,
			Timestamp:      b.now(),
		})
	}
	return nil
}

// ResizeWindow implements bridge.Backend. There is no daemon-managed OS
// window locally, so geometry requests are accepted and dropped.
func (b *LocalBackend) ResizeWindow(ctx context.Context, width, height float64) error {
	return nil
}

// uniqueUserMessageID derives a stable id for the persisted user message
// from the reply id the client generated.
func uniqueUserMessageID(req bridge.SendRequest) string {
	return req.MessageID + "-user"
}
