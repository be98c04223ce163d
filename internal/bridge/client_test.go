// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morganforge/hud-tui/internal/events"
	"github.com/morganforge/hud-tui/internal/model"
)

func TestClientCreateConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/conversations" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("missing session token, got %q", got)
		}
		var req struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(model.Conversation{ID: "conv_1", Name: req.Name, Type: "chat"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithToken("tok123")
	conv, err := c.CreateConversation(context.Background(), "", "")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.ID != "conv_1" || conv.Type != "chat" {
		t.Errorf("unexpected conversation %+v", conv)
	}
}

func TestClientSendMessageStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			ConversationID string `json:"conversation_id"`
			MessageID      string `json:"message_id"`
			Content        string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.MessageID != "m1" || req.Content != "hello" {
			t.Errorf("unexpected request %+v", req)
		}
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`{"message_id":"m1","delta":"Hi"}`,
			`{"message_id":"m1","delta":" there"}`,
			`{"message_id":"m1","done":true,"final_text":"Hi there"}`,
		} {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	var deltas []string
	final, err := c.SendMessage(context.Background(), SendRequest{
		ConversationID: "conv_1",
		MessageID:      "m1",
		Content:        "hello",
	}, func(delta string) {
		deltas = append(deltas, delta)
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if final != "Hi there" {
		t.Errorf("unexpected final %q", final)
	}
	if len(deltas) != 2 {
		t.Errorf("expected 2 deltas, got %v", deltas)
	}
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"code":"nope","message":"denied"}}`)
			}))
			defer srv.Close()

			c := NewClient(srv.URL).WithMaxRetries(1)
			_, err := c.Conversation(context.Background(), "conv_x")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestClientDaemonErrorCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":"invalid_type","message":"unknown conversation type"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateConversation(context.Background(), "", "bogus")
	var de *DaemonError
	if !errors.As(err, &de) {
		t.Fatalf("expected DaemonError, got %v", err)
	}
	if de.Code != "invalid_type" || de.Status != http.StatusBadRequest {
		t.Errorf("unexpected error detail %+v", de)
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]model.Summary{{ID: "conv_1", Name: "only"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	summaries, err := c.ListConversations(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "conv_1" {
		t.Errorf("unexpected summaries %v", summaries)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientDoesNotRetrySends(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.SendMessage(context.Background(), SendRequest{MessageID: "m1"}, nil); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("sends must not be retried, got %d attempts", calls.Load())
	}
}

func TestClientMessagesPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "50" || q.Get("offset") != "100" {
			t.Errorf("pagination not forwarded: %v", q)
		}
		json.NewEncoder(w).Encode([]*model.Message{
			{ID: "m1", Role: model.RoleUser, Content: "hi"},
		})
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL).Messages(context.Background(), "conv_1", 50, 100)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Errorf("unexpected messages %v", msgs)
	}
}

func TestEventFeedPublishesDecodedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events" {
			http.NotFound(w, r)
			return
		}
		flusher := w.(http.Flusher)
		lines := []string{
			`{"type":"generate_conversation_name_result","payload":{"conv_id":"conv_1","name":"Trip Planning"}}`,
			`{"type":"some_future_event","payload":{}}`,
			`{"type":"auth_changed","payload":{"signed_in":false}}`,
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
		// Hold the stream open so the feed does not reconnect mid-test.
		<-r.Context().Done()
	}))
	defer srv.Close()

	bus := events.NewBus()
	received := make(chan events.Event, 8)
	bus.Subscribe(func(ev events.Event) { received <- ev })

	feed := NewEventFeed(NewClient(srv.URL), bus, nil)
	go feed.Run()
	defer feed.Stop()

	var got []events.Event
	for len(got) < 2 {
		select {
		case ev := <-received:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, received %d events", len(got))
		}
	}

	name, ok := got[0].(events.ConversationNameGenerated)
	if !ok || name.Name != "Trip Planning" {
		t.Errorf("first event wrong: %#v", got[0])
	}
	auth, ok := got[1].(events.AuthChanged)
	if !ok || auth.SignedIn {
		t.Errorf("unknown tag should be skipped, second event wrong: %#v", got[1])
	}
}
