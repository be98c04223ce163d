// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/morganforge/hud-tui/internal/bridge"
	"github.com/morganforge/hud-tui/internal/events"
	"github.com/morganforge/hud-tui/internal/model"
)

// DefaultPageSize is the message page size loaded when a conversation is
// selected from history.
const DefaultPageSize = 50

// =============================================================================
// CONTROLLER OPTIONS
// =============================================================================

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for best-effort failures (auto-naming).
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithIdleTimeout bounds the gap between streamed chunks. Zero (the default)
// means a stalled stream stays streaming until cancelled or terminated by the
// backend.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Controller) { c.idleTimeout = d }
}

// WithNotify sets a callback invoked after controller-level state changes
// that do not pass through the message store (conversation name, auth reset).
func WithNotify(fn func()) Option {
	return func(c *Controller) { c.notifyFn = fn }
}

// =============================================================================
// CONVERSATION CONTROLLER
// =============================================================================

// Controller owns the active conversation and its message store for one
// window. Multiple windows each run their own Controller and reconcile only
// through the event bus; no mutable object is ever shared across windows.
//
// All state transitions happen under one mutex, so between suspension points
// they are atomic from the perspective of other operations.
type Controller struct {
	mu      sync.Mutex
	backend bridge.Backend

	store   *MessageStore
	active  *model.Conversation
	session *StreamSession

	// sending marks a SendMessage in flight before its session exists,
	// covering the implicit-creation suspension point. Together with the
	// session liveness check it keeps at most one send live per window.
	sending bool

	// cancelStream aborts the transport of the live session.
	cancelStream context.CancelFunc

	// exchanges counts resolved replies in the active conversation, used
	// to trigger auto-naming after the first one.
	exchanges int

	// nameLimiter throttles fire-and-forget auto-name requests.
	nameLimiter *rate.Limiter

	idleTimeout time.Duration
	logger      *log.Logger
	notifyFn    func()
}

// NewController creates a controller over the given backend.
func NewController(backend bridge.Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:     backend,
		store:       NewMessageStore(),
		nameLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
		logger:      log.New(log.Writer(), "convo: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the message store of the active conversation. The store is
// owned by this controller; callers only read and subscribe.
func (c *Controller) Store() *MessageStore {
	return c.store
}

// Entry is a value snapshot of one transcript message, safe to render while
// the stream goroutine keeps appending.
type Entry struct {
	ID          string
	Role        model.Role
	Content     string
	Failed      bool
	Streaming   bool
	Timestamp   time.Time
	Attachments []model.Attachment
}

// Transcript returns a render snapshot of the active conversation.
func (c *Controller) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.store.All()
	out := make([]Entry, len(msgs))
	for i, m := range msgs {
		out[i] = Entry{
			ID:          m.ID,
			Role:        m.Role,
			Content:     m.GetDisplayContent(),
			Failed:      m.Failed,
			Streaming:   m.Open(),
			Timestamp:   m.Timestamp,
			Attachments: m.Attachments,
		}
	}
	return out
}

// Active returns a snapshot of the active conversation, or nil.
func (c *Controller) Active() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	snapshot := *c.active
	return &snapshot
}

// Session returns the live streaming session, or nil.
func (c *Controller) Session() *StreamSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StreamState reports the lifecycle state of the most recent session. The
// second return is false when no message has been sent yet.
func (c *Controller) StreamState() (SessionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, false
	}
	return c.session.State(), true
}

// Streaming reports whether a reply is currently in flight.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.Live()
}

// notify runs the controller-level change callback, if set.
func (c *Controller) notify() {
	if c.notifyFn != nil {
		c.notifyFn()
	}
}

// =============================================================================
// CONVERSATION LIFECYCLE
// =============================================================================

// CreateConversation asks the backend for a new conversation and makes it
// active with an empty message store.
func (c *Controller) CreateConversation(ctx context.Context, name, convType string) (*model.Conversation, error) {
	conv, err := c.backend.CreateConversation(ctx, name, convType)
	if err != nil {
		return nil, wrapTransport("create_conversation", err)
	}

	c.mu.Lock()
	c.cancelActiveStreamLocked()
	c.active = conv
	c.exchanges = 0
	c.store.Reset(nil)
	c.mu.Unlock()
	c.notify()
	return conv, nil
}

// SelectConversation makes a conversation from history active, loading its
// first page of messages. A live stream on the previously active
// conversation is cancelled; its partial content stays in that window's
// transcript until replaced by the fresh load.
func (c *Controller) SelectConversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := c.backend.Conversation(ctx, id)
	if err != nil {
		return nil, wrapTransport("get_conversation", err)
	}
	msgs, err := c.backend.Messages(ctx, id, DefaultPageSize, 0)
	if err != nil {
		return nil, wrapTransport("list_messages", err)
	}

	c.mu.Lock()
	c.cancelActiveStreamLocked()
	c.active = conv
	c.exchanges = countExchanges(msgs)
	c.store.Reset(msgs)
	c.mu.Unlock()
	c.notify()
	return conv, nil
}

// DeleteConversation removes a conversation. If it is the active one, local
// state is cleared and no conversation is active afterwards.
func (c *Controller) DeleteConversation(ctx context.Context, id string) error {
	if err := c.backend.DeleteConversation(ctx, id); err != nil {
		return wrapTransport("delete_conversation", err)
	}

	c.mu.Lock()
	if c.active != nil && c.active.ID == id {
		c.cancelActiveStreamLocked()
		c.active = nil
		c.exchanges = 0
		c.store.Reset(nil)
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// RenameActive applies an explicit, user-chosen name to the active
// conversation. Explicit names are never overwritten by auto-name results.
func (c *Controller) RenameActive(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ErrNoActiveConversation
	}
	c.active.SetName(name)
	defer c.notify()
	return nil
}

// =============================================================================
// SENDING
// =============================================================================

// SendMessage appends the user message optimistically, opens a streaming
// session for the assistant reply, and issues the backend request. If no
// conversation is active one is created first, synchronously.
//
// The returned id identifies the assistant message the stream resolves into.
// Transport failures of the reply surface on the session and mark the
// assistant message incomplete; the user's own message is never rolled back.
func (c *Controller) SendMessage(ctx context.Context, content string, attachments []model.Attachment) (string, error) {
	c.mu.Lock()
	if c.sending || (c.session != nil && c.session.Live()) {
		c.mu.Unlock()
		return "", ErrConcurrentStream
	}
	c.sending = true
	active := c.active
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	if active == nil {
		if _, err := c.CreateConversation(ctx, "", ""); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Live() {
		// A stream started through another path while creation was in
		// flight.
		return "", ErrConcurrentStream
	}
	if c.active == nil {
		// Creation raced with an auth reset or delete.
		return "", ErrNoActiveConversation
	}

	messageID := uuid.New().String()
	userMsg := model.NewUserMessage(c.active.ID, content, attachments)
	c.store.Append(userMsg)
	c.store.Append(model.NewAssistantMessage(c.active.ID, messageID))

	session := NewStreamSession(c.store, c.active.ID, messageID)
	c.session = session

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancelStream = cancel

	req := bridge.SendRequest{
		ConversationID: c.active.ID,
		MessageID:      messageID,
		Content:        content,
		Attachments:    attachments,
	}
	go c.runStream(streamCtx, cancel, session, req)

	return messageID, nil
}

// runStream drives the backend call for one session and folds its chunks,
// completion, or failure back into controller state.
func (c *Controller) runStream(ctx context.Context, cancel context.CancelFunc, session *StreamSession, req bridge.SendRequest) {
	var idle *time.Timer
	if c.idleTimeout > 0 {
		idle = time.AfterFunc(c.idleTimeout, cancel)
		defer idle.Stop()
	}

	final, err := c.backend.SendMessage(ctx, req, func(delta string) {
		if idle != nil {
			idle.Reset(c.idleTimeout)
		}
		c.mu.Lock()
		// Dropped here, not merely ignored by the UI, once the session
		// is no longer live.
		if hErr := session.HandleChunk(delta); hErr != nil {
			c.logger.Printf("chunk apply failed for %s: %v", session.MessageID(), hErr)
		}
		c.mu.Unlock()
		c.notify()
	})

	c.mu.Lock()
	firstExchange := false
	if err != nil {
		session.HandleError(wrapTransport("send_message", err))
	} else {
		if cErr := session.HandleComplete(final, nil); cErr != nil {
			c.logger.Printf("completion apply failed for %s: %v", session.MessageID(), cErr)
		}
		if session.State() == StateResolved && c.active != nil && c.active.ID == session.ConversationID() {
			c.exchanges++
			firstExchange = c.exchanges == 1 && !c.active.Named()
		}
	}
	convID := session.ConversationID()
	c.mu.Unlock()
	c.notify()

	if firstExchange {
		c.RequestAutoName(context.Background(), convID, req.Content)
	}
}

// CancelStream cancels the live streaming session, if any. The partial
// content applied so far stays in the transcript, marked incomplete.
func (c *Controller) CancelStream() {
	c.mu.Lock()
	c.cancelActiveStreamLocked()
	c.mu.Unlock()
	c.notify()
}

// cancelActiveStreamLocked cancels the session and its transport.
// Caller must hold c.mu.
func (c *Controller) cancelActiveStreamLocked() {
	if c.session != nil {
		c.session.Cancel()
	}
	if c.cancelStream != nil {
		c.cancelStream()
		c.cancelStream = nil
	}
}

// =============================================================================
// AUTO-NAMING
// =============================================================================

// RequestAutoName asks the backend to derive a conversation title from the
// first exchange. Fire-and-forget: it never blocks or fails the surrounding
// send; failures are logged and ignored. The result arrives later as a
// generate_conversation_name_result event and applies only while the name is
// still unset.
func (c *Controller) RequestAutoName(ctx context.Context, conversationID, message string) {
	if !c.nameLimiter.Allow() {
		return
	}
	go func() {
		if err := c.backend.EmitGenerateConversationName(ctx, conversationID, message); err != nil {
			c.logger.Printf("auto-name request failed for %s: %v", conversationID, err)
		}
	}()
}

// =============================================================================
// EVENT HANDLING
// =============================================================================

// HandleEvent folds one cross-window event into local state. Events must be
// delivered in emission order; the bus guarantees that.
func (c *Controller) HandleEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.AuthChanged:
		if !e.SignedIn {
			c.mu.Lock()
			c.cancelActiveStreamLocked()
			c.active = nil
			c.exchanges = 0
			c.store.Reset(nil)
			c.mu.Unlock()
			c.notify()
		}

	case events.ConversationNameGenerated:
		c.mu.Lock()
		changed := c.active != nil && c.active.ID == e.ConversationID &&
			c.active.ApplyAutoName(e.Name)
		c.mu.Unlock()
		if changed {
			c.notify()
		}

	case events.RenameConversation:
		c.mu.Lock()
		changed := c.active != nil && c.active.ID == e.ConversationID
		if changed {
			c.active.SetName(e.NewName)
		}
		c.mu.Unlock()
		if changed {
			c.notify()
		}

	case events.TokenUsageChanged:
		// Consumed by the usage view, not conversation state.

	default:
		// Unknown variants are ignored.
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// countExchanges counts resolved assistant replies in a loaded page, so that
// auto-naming is not re-triggered for conversations with history.
func countExchanges(msgs []*model.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == model.RoleAssistant && !m.Open() && !m.Failed {
			n++
		}
	}
	return n
}
