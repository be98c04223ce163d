// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hud

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/morganforge/hud-tui/internal/convo"
	"github.com/morganforge/hud-tui/internal/events"
)

func TestTranscriptHeight(t *testing.T) {
	tests := []struct {
		name     string
		rendered string
		want     float64
	}{
		{"empty", "", 0},
		{"single line", "hello", 1},
		{"three lines", "a\nb\nc", 3},
		{"trailing newline", "a\nb\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transcriptHeight(tt.rendered); got != tt.want {
				t.Errorf("transcriptHeight(%q) = %v, want %v", tt.rendered, got, tt.want)
			}
		})
	}
}

func TestUserFacingErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "concurrent stream",
			err:  convo.ErrConcurrentStream,
			want: "still streaming",
		},
		{
			name: "no active conversation",
			err:  convo.ErrNoActiveConversation,
			want: "No conversation",
		},
		{
			name: "transport failure",
			err:  &convo.TransportError{Op: "send_message", Err: errors.New("connection refused")},
			want: "Connection problem",
		},
		{
			name: "wrapped transport failure",
			err:  errors.Join(errors.New("outer"), &convo.TransportError{Op: "x", Err: errors.New("y")}),
			want: "Connection problem",
		},
		{
			name: "unknown error passes through",
			err:  errors.New("something odd"),
			want: "something odd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := userFacing(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("userFacing(%v) = %q, want it to contain %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestEventQueuePreservesOrder(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 50; i++ {
		q.push(events.ConversationNameGenerated{ConversationID: fmt.Sprintf("conv-%d", i)})
	}
	for i := 0; i < 50; i++ {
		ev, ok := q.pop()
		if !ok {
			t.Fatalf("queue empty after %d pops, want 50", i)
		}
		named, ok := ev.(events.ConversationNameGenerated)
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		if want := fmt.Sprintf("conv-%d", i); named.ConversationID != want {
			t.Fatalf("event %d out of order: got %s, want %s", i, named.ConversationID, want)
		}
	}
	if _, ok := q.pop(); ok {
		t.Error("drained queue should be empty")
	}
}

func TestEventQueueNeverBlocksPublisher(t *testing.T) {
	bus := events.NewBus()
	q := newEventQueue()
	bus.Subscribe(q.push)

	// Nothing drains the queue while publishing. Every publish must still
	// return: a stalled update loop may never back a publisher up behind
	// the bus mutex.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			bus.Publish(events.TokenUsageChanged{InputTokens: i})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked with an undrained event queue")
	}

	for i := 0; i < 500; i++ {
		ev, ok := q.pop()
		if !ok {
			t.Fatalf("queue empty after %d pops, want 500", i)
		}
		usage, ok := ev.(events.TokenUsageChanged)
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		if usage.InputTokens != i {
			t.Fatalf("event %d out of order: got %d", i, usage.InputTokens)
		}
	}
}

func TestDefaultKeyMapBindings(t *testing.T) {
	keys := DefaultKeyMap()
	checks := map[string][]string{
		"enter":  keys.Send.Keys(),
		"esc":    keys.CancelStream.Keys(),
		"ctrl+n": keys.NewChat.Keys(),
		"ctrl+h": keys.ToggleHistory.Keys(),
		"ctrl+c": keys.Quit.Keys(),
	}
	for want, got := range checks {
		found := false
		for _, k := range got {
			if k == want {
				found = true
			}
		}
		if !found {
			t.Errorf("binding %q missing from %v", want, got)
		}
	}
}
