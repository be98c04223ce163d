// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"strings"
	"time"
)

// Name derivation limits.
const (
	nameMaxWords = 5
	nameMaxChars = 40
)

// DeriveName builds a conversation title from the first user message: the
// first five words, ellipsized when the result runs over 40 characters. A
// blank message falls back to a timestamped default.
func DeriveName(firstMessage string, now time.Time) string {
	words := strings.Fields(firstMessage)
	if len(words) == 0 {
		return fmt.Sprintf("New Chat %02d/%02d %02d:%02d",
			int(now.Month()), now.Day(), now.Hour(), now.Minute())
	}
	if len(words) > nameMaxWords {
		words = words[:nameMaxWords]
	}
	name := strings.Join(words, " ")
	if len([]rune(name)) > nameMaxChars {
		name = string([]rune(name)[:nameMaxChars-3]) + "..."
	}
	return name
}
