// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth tracks session validity for the hud windows.
//
// Sign-in and token issuance happen in the daemon; this package only mirrors
// the resulting state, driven by auth_changed events, and keeps the session
// token on disk for the bridge client to present.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/morganforge/hud-tui/internal/events"
	"github.com/morganforge/hud-tui/internal/util"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// Session is the window-local view of authentication state. Safe for
// concurrent reads; updates arrive through HandleEvent on the bus order.
type Session struct {
	mu        sync.RWMutex
	signedIn  bool
	userID    string
	changedAt time.Time

	// onChange is invoked after each state transition (not for redundant
	// events that confirm the current state).
	onChange func(signedIn bool)
}

// NewSession creates a signed-out session.
func NewSession() *Session {
	return &Session{}
}

// OnChange registers the transition callback.
func (s *Session) OnChange(fn func(signedIn bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// SignedIn reports whether the session is currently valid.
func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedIn
}

// UserID returns the signed-in user id, empty when signed out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// HandleEvent folds an auth_changed event into the session. Other event
// types are ignored.
func (s *Session) HandleEvent(ev events.Event) {
	e, ok := ev.(events.AuthChanged)
	if !ok {
		return
	}

	s.mu.Lock()
	transition := s.signedIn != e.SignedIn
	s.signedIn = e.SignedIn
	if e.SignedIn {
		s.userID = e.UserID
	} else {
		s.userID = ""
	}
	s.changedAt = time.Now()
	onChange := s.onChange
	s.mu.Unlock()

	if transition && onChange != nil {
		onChange(e.SignedIn)
	}
}

// =============================================================================
// TOKEN RECORD
// =============================================================================

// TokenRecord is the session token the daemon issued, persisted so a
// restarted window can reconnect without a fresh sign-in.
type TokenRecord struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the record holds an unexpired token.
func (t *TokenRecord) Valid(now time.Time) bool {
	if t.Token == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

// SaveToken writes the record atomically with owner-only permissions.
func SaveToken(path string, rec *TokenRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}
	return util.AtomicWriteFile(path, data, 0600)
}

// LoadToken reads a record. A missing file returns an empty record, not an
// error: a fresh install just is not signed in yet.
func LoadToken(path string) (*TokenRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &TokenRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token record: %w", err)
	}
	var rec TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode token record: %w", err)
	}
	return &rec, nil
}

// ClearToken removes the record, e.g. after a sign-out event.
func ClearToken(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
