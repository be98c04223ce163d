// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"errors"
	"testing"

	"github.com/morganforge/hud-tui/internal/model"
)

func TestStoreAppendPreservesOrder(t *testing.T) {
	s := NewMessageStore()
	s.Append(model.NewUserMessage("c1", "first", nil))
	s.Append(model.NewAssistantMessage("c1", "m1"))
	s.Append(model.NewUserMessage("c1", "second", nil))

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	if all[0].Content != "first" || all[2].Content != "second" {
		t.Error("insertion order not preserved")
	}
}

func TestStoreUpdateLastAccumulates(t *testing.T) {
	s := NewMessageStore()
	s.Append(model.NewAssistantMessage("c1", "m1"))

	for _, chunk := range []string{"Hel", "lo ", "world"} {
		if err := s.UpdateLast(chunk); err != nil {
			t.Fatalf("UpdateLast failed: %v", err)
		}
	}
	if got := s.Last().GetDisplayContent(); got != "Hello world" {
		t.Errorf("expected accumulated content, got %q", got)
	}
}

func TestStoreUpdateLastRequiresOpenAssistant(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *MessageStore)
	}{
		{"empty store", func(s *MessageStore) {}},
		{"user message last", func(s *MessageStore) {
			s.Append(model.NewUserMessage("c1", "hi", nil))
		}},
		{"resolved assistant last", func(s *MessageStore) {
			s.Append(model.NewAssistantMessage("c1", "m1"))
			if err := s.ReplaceLast("done", nil); err != nil {
				t.Fatalf("ReplaceLast failed: %v", err)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMessageStore()
			tt.setup(s)
			if err := s.UpdateLast("x"); !errors.Is(err, ErrInvalidState) {
				t.Errorf("expected ErrInvalidState, got %v", err)
			}
		})
	}
}

func TestStoreReplaceLastUsesAuthoritativeText(t *testing.T) {
	s := NewMessageStore()
	s.Append(model.NewAssistantMessage("c1", "m1"))
	if err := s.UpdateLast("raw partial"); err != nil {
		t.Fatalf("UpdateLast failed: %v", err)
	}

	mem := &model.MemoryRef{ID: "mem1", Content: "user likes trains"}
	if err := s.ReplaceLast("polished final", mem); err != nil {
		t.Fatalf("ReplaceLast failed: %v", err)
	}

	last := s.Last()
	if last.GetDisplayContent() != "polished final" {
		t.Errorf("final text should win over accumulation, got %q", last.GetDisplayContent())
	}
	if last.Open() {
		t.Error("message should be closed after replace")
	}
	if last.Memory == nil || last.Memory.ID != "mem1" {
		t.Error("memory note not attached")
	}
}

func TestStoreFailLastKeepsPartial(t *testing.T) {
	s := NewMessageStore()
	s.Append(model.NewAssistantMessage("c1", "m1"))
	if err := s.UpdateLast("partial tex"); err != nil {
		t.Fatalf("UpdateLast failed: %v", err)
	}
	if err := s.FailLast(); err != nil {
		t.Fatalf("FailLast failed: %v", err)
	}

	last := s.Last()
	if !last.Failed {
		t.Error("message should be marked failed")
	}
	if last.GetDisplayContent() != "partial tex" {
		t.Errorf("partial content lost: %q", last.GetDisplayContent())
	}
}

func TestStoreSubscribersNotifiedPerMutation(t *testing.T) {
	s := NewMessageStore()
	count := 0
	s.Subscribe(func() { count++ })

	s.Append(model.NewAssistantMessage("c1", "m1"))
	if err := s.UpdateLast("a"); err != nil {
		t.Fatalf("UpdateLast failed: %v", err)
	}
	if err := s.ReplaceLast("ab", nil); err != nil {
		t.Fatalf("ReplaceLast failed: %v", err)
	}
	s.Reset(nil)

	if count != 4 {
		t.Errorf("expected 4 notifications, got %d", count)
	}
}

func TestStoreResetReplacesContents(t *testing.T) {
	s := NewMessageStore()
	s.Append(model.NewUserMessage("c1", "old", nil))

	page := []*model.Message{
		model.NewUserMessage("c2", "loaded one", nil),
		model.NewUserMessage("c2", "loaded two", nil),
	}
	s.Reset(page)

	if s.Len() != 2 {
		t.Fatalf("expected 2 messages after reset, got %d", s.Len())
	}
	if s.All()[0].Content != "loaded one" {
		t.Error("reset did not install loaded page")
	}
}

func TestStoreAllReturnsCopy(t *testing.T) {
	s := NewMessageStore()
	s.Append(model.NewUserMessage("c1", "hi", nil))

	all := s.All()
	all[0] = nil
	if s.Last() == nil {
		t.Error("mutating returned slice must not affect the store")
	}
}
