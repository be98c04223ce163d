// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// streamChunk is one line of the newline-delimited JSON push channel that
// carries progressive reply output. The channel is keyed by message id; the
// daemon only writes chunks for the request that opened it.
type streamChunk struct {
	MessageID string `json:"message_id"`
	Delta     string `json:"delta,omitempty"`
	Done      bool   `json:"done"`
	FinalText string `json:"final_text,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StreamReader parses the line-delimited JSON reply stream.
type StreamReader struct {
	reader *bufio.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	chunkCount  int
	startTime   time.Time
}

// NewStreamReader creates a stream reader over a response body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader:    bufio.NewReader(r),
		startTime: time.Now(),
	}
}

// Process consumes the stream, invoking onChunk for each content delta, and
// returns the final reply text. Blocks until the terminal line, stream end,
// or context cancellation.
//
// If the stream ends without a terminal line the accumulated text stands in
// for the final text, so a daemon that closes the connection cleanly after
// its last delta still resolves.
func (s *StreamReader) Process(ctx context.Context, onChunk ChunkFunc) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		chunk, err := s.readChunk()
		if err != nil {
			if err == io.EOF {
				return s.accumulator.String(), nil
			}
			return "", err
		}
		if chunk == nil {
			continue
		}

		if chunk.Error != "" {
			return "", errors.New(chunk.Error)
		}
		if chunk.Delta != "" {
			s.accumulator.WriteString(chunk.Delta)
			s.chunkCount++
			if onChunk != nil {
				onChunk(chunk.Delta)
			}
		}
		if chunk.Done {
			if chunk.FinalText != "" {
				return chunk.FinalText, nil
			}
			return s.accumulator.String(), nil
		}
	}
}

// ChunkCount returns the number of content deltas seen so far.
func (s *StreamReader) ChunkCount() int {
	return s.chunkCount
}

// readChunk reads and parses a single line from the stream.
func (s *StreamReader) readChunk() (*streamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		// Process the last unterminated line before surfacing EOF.
		if len(line) == 0 {
			return nil, err
		}
	}

	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
		// Skip malformed lines
		return nil, nil
	}
	return &chunk, nil
}
