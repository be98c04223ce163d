// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geometry reacts to rendered content size and keeps the OS window
// sized to fit, debounced by value so identical measurements never produce
// redundant resize calls.
package geometry

import (
	"context"
	"sync"

	"github.com/morganforge/hud-tui/internal/bridge"
	"github.com/morganforge/hud-tui/internal/model"
)

// Mode selects which configured width the window uses.
type Mode int

const (
	// ModeChat is the regular HUD chat window.
	ModeChat Mode = iota

	// ModeLogin is the narrower sign-in window.
	ModeLogin
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeLogin {
		return "login"
	}
	return "chat"
}

// =============================================================================
// RESIZE DECISION
// =============================================================================

// ShouldResize is the pure debounce decision: given the last height a request
// was sent for and a new measurement, report whether a request is due. The
// first measurement always sends. Decoupled from the reactor so it is
// testable without any window machinery.
func ShouldResize(lastSent float64, haveSent bool, measured float64) bool {
	if !haveSent {
		return true
	}
	return measured != lastSent
}

// clampHeight bounds a measured height to the configured maximum. Zero max
// means unbounded.
func clampHeight(measured, max float64) float64 {
	if max > 0 && measured > max {
		return max
	}
	return measured
}

// =============================================================================
// REACTOR
// =============================================================================

// Reactor consumes content height measurements for one window and issues
// resize requests through the backend. Width comes from the configured HUD
// dimensions and the window mode; only height tracks content.
//
// Resize calls run asynchronously and may overlap; a generation counter makes
// the last request win — results of superseded calls are ignored. After Close
// no further requests are issued, so a torn-down window is never resized.
type Reactor struct {
	mu      sync.Mutex
	backend bridge.Backend
	dims    model.HUDDimensions
	mode    Mode

	lastSent float64
	haveSent bool
	gen      uint64

	closed bool
	cancel context.CancelFunc
	ctx    context.Context

	// errFn receives failures of individual resize calls. Optional.
	errFn func(error)
}

// NewReactor creates a reactor for one window in the given mode.
func NewReactor(backend bridge.Backend, dims model.HUDDimensions, mode Mode) *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		backend: backend,
		dims:    dims,
		mode:    mode,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnError sets a callback for failed resize calls. Failures never stop the
// reactor; the next measurement simply tries again.
func (r *Reactor) OnError(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errFn = fn
}

// SetMode switches between chat and login width. The next measurement after
// a mode change always sends, since the target width changed.
func (r *Reactor) SetMode(mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != mode {
		r.mode = mode
		r.haveSent = false
	}
}

// SetDimensions replaces the HUD dimensions, e.g. after a config reload
// switched size presets. The next measurement always sends.
func (r *Reactor) SetDimensions(dims model.HUDDimensions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dims != dims {
		r.dims = dims
		r.haveSent = false
	}
}

// Width returns the fixed target width for the current mode.
func (r *Reactor) Width() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.widthLocked()
}

func (r *Reactor) widthLocked() float64 {
	if r.mode == ModeLogin {
		return r.dims.LoginWidth
	}
	return r.dims.ChatWidth
}

// Measure feeds one content height measurement. A resize request goes out
// only when the (clamped) height differs from the last one a request was
// sent for. It returns whether a request was issued.
func (r *Reactor) Measure(height float64) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}

	target := height
	if r.mode == ModeChat {
		target = clampHeight(height, r.dims.ChatMaxHeight)
	}
	if !ShouldResize(r.lastSent, r.haveSent, target) {
		r.mu.Unlock()
		return false
	}

	r.lastSent = target
	r.haveSent = true
	r.gen++
	gen := r.gen
	width := r.widthLocked()
	ctx := r.ctx
	r.mu.Unlock()

	go r.resize(ctx, gen, width, target)
	return true
}

// resize performs one outbound call. Superseded and post-teardown results
// are dropped.
func (r *Reactor) resize(ctx context.Context, gen uint64, width, height float64) {
	err := r.backend.ResizeWindow(ctx, width, height)

	r.mu.Lock()
	stale := r.closed || gen != r.gen
	errFn := r.errFn
	if err != nil && !stale {
		// Let the next identical measurement retry instead of wedging on
		// a height the window never reached.
		r.haveSent = false
	}
	r.mu.Unlock()

	if err != nil && !stale && errFn != nil {
		errFn(err)
	}
}

// Close stops the reactor: pending calls are cancelled and later
// measurements are ignored.
func (r *Reactor) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
}
