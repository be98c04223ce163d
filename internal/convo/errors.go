// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package convo implements the conversation orchestration core: message
// store, streaming sessions, the per-window controller, and history paging.
package convo

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

var (
	// ErrConcurrentStream is returned when a second stream is started on a
	// conversation that is already streaming. Callers must cancel first.
	ErrConcurrentStream = errors.New("a stream is already active for this conversation")

	// ErrNoActiveConversation is returned by mutating operations that need
	// an active conversation when none exists and implicit creation was not
	// possible.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrInvalidState is returned when an operation requires the last
	// message to be an open assistant message and it is not. Hitting this
	// is a programming error in the caller.
	ErrInvalidState = errors.New("last message is not an open assistant message")
)

// TransportError wraps a failed backend call: network failure, serialization
// failure, or a backend-reported error. It is surfaced to the caller of the
// mutating operation that triggered it and never discards already-applied
// local state.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// wrapTransport wraps a backend error, leaving already-typed transport
// errors untouched.
func wrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
