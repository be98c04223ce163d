// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/hud-tui/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "hud.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetConversation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConversationType, conv.Type)
	assert.Empty(t, conv.Name)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.False(t, got.NameUserSet)
}

func TestGetConversationNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetConversation(context.Background(), "conv_missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestRenameConversation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "")
	require.NoError(t, err)

	// Auto-name first, then explicit rename.
	require.NoError(t, s.RenameConversation(ctx, conv.ID, "Auto Name", false))
	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Auto Name", got.Name)
	assert.False(t, got.NameUserSet)

	require.NoError(t, s.RenameConversation(ctx, conv.ID, "My Name", true))
	got, err = s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Name", got.Name)
	assert.True(t, got.NameUserSet, "explicit rename must stick")

	assert.ErrorIs(t, s.RenameConversation(ctx, "conv_missing", "x", false), ErrConversationNotFound)
}

func TestMessagesInsertionOrderAndPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "")
	require.NoError(t, err)

	contents := []string{"one", "two", "three", "four", "five"}
	for i, content := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msg := model.NewUserMessage(conv.ID, content, nil)
		msg.Role = role
		require.NoError(t, s.AppendMessage(ctx, msg))
	}

	page, err := s.Messages(ctx, conv.ID, 3, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "one", page[0].Content)
	assert.Equal(t, "three", page[2].Content)

	page, err = s.Messages(ctx, conv.ID, 3, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "five", page[1].Content)
}

func TestMessagesRoundTripAttachments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "")
	require.NoError(t, err)

	msg := model.NewUserMessage(conv.ID, "see attached", nil)
	att := model.NewAttachment(msg.ID, "notes.pdf", "application/pdf")
	att.ExtractedText = "meeting notes"
	msg.Attachments = []model.Attachment{att}
	require.NoError(t, s.AppendMessage(ctx, msg))

	page, err := s.Messages(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Len(t, page[0].Attachments, 1)
	assert.Equal(t, "notes.pdf", page[0].Attachments[0].FileName)
	assert.Equal(t, "meeting notes", page[0].Attachments[0].ExtractedText)
}

func TestListConversationsOrderAndCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older, err := s.CreateConversation(ctx, "older", "")
	require.NoError(t, err)
	newer, err := s.CreateConversation(ctx, "newer", "")
	require.NoError(t, err)

	// Touching the older conversation moves it to the front.
	require.NoError(t, s.AppendMessage(ctx, model.NewUserMessage(older.ID, "bump", nil)))

	list, err := s.ListConversations(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, 1, list[0].MessageCount)
	assert.Equal(t, newer.ID, list[1].ID)
	assert.Equal(t, 0, list[1].MessageCount)
}

func TestDeleteConversationCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, model.NewUserMessage(conv.ID, "hi", nil)))

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	_, err = s.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	msgs, err := s.Messages(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "messages should be deleted with the conversation")

	// Idempotent.
	assert.NoError(t, s.DeleteConversation(ctx, conv.ID))
}

func TestFirstUserMessage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "")
	require.NoError(t, err)

	first, err := s.FirstUserMessage(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, first)

	assistant := model.NewUserMessage(conv.ID, "greeting", nil)
	assistant.Role = model.RoleAssistant
	require.NoError(t, s.AppendMessage(ctx, assistant))
	require.NoError(t, s.AppendMessage(ctx, model.NewUserMessage(conv.ID, "plan my trip", nil)))
	require.NoError(t, s.AppendMessage(ctx, model.NewUserMessage(conv.ID, "second question", nil)))

	first, err = s.FirstUserMessage(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "plan my trip", first)
}
