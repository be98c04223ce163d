// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events carries the cross-window event bus.
package events

import "sync"

// =============================================================================
// EVENT BUS
// =============================================================================

// Handler consumes one event. Handlers run on the publishing goroutine so
// delivery order equals emission order.
type Handler func(Event)

// Bus dispatches events to subscribers in emission order. Distinct event
// types are never reordered or coalesced: every published event reaches every
// subscriber exactly once, in the order Publish was called.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
	closed   bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers an event to every subscriber. The publisher's mutex is
// held across delivery, which is what serializes concurrent publishers into
// one global order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, h := range b.handlers {
		h(ev)
	}
}

// Close stops delivery. Events published after Close are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
}
