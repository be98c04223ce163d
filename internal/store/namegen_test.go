// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"testing"
	"time"
)

func TestDeriveName(t *testing.T) {
	now := time.Date(2025, 3, 7, 9, 5, 0, 0, time.UTC)

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"short message verbatim", "plan my trip", "plan my trip"},
		{"first five words", "please help me plan a trip to Norway", "please help me plan a"},
		{"collapses whitespace", "  hello\t there \n friend ", "hello there friend"},
		{
			"ellipsized over forty chars",
			"supercalifragilisticexpialidocious antidisestablishmentarianism floccinaucinihilipilification",
			"supercalifragilisticexpialidocious an...",
		},
		{"empty falls back to timestamp", "", "New Chat 03/07 09:05"},
		{"whitespace only falls back", "   \n\t ", "New Chat 03/07 09:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveName(tt.message, now); got != tt.want {
				t.Errorf("DeriveName(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestDeriveNameLengthBound(t *testing.T) {
	long := "aaaaaaaaaaaaaaaaaaaa bbbbbbbbbbbbbbbbbbbb cccccccccccccccccccc d e"
	got := DeriveName(long, time.Now())
	if n := len([]rune(got)); n > nameMaxChars {
		t.Errorf("derived name %q is %d runes, max %d", got, n, nameMaxChars)
	}
}
