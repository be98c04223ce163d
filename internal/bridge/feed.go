// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/morganforge/hud-tui/internal/events"
)

// feedReconnectDelay is the pause between event feed reconnect attempts.
const feedReconnectDelay = 2 * time.Second

// =============================================================================
// EVENT FEED
// =============================================================================

// EventFeed maintains the long-lived subscription to the daemon's event
// stream and republishes decoded events on the local bus. The stream is
// line-delimited JSON envelopes; unknown tags are skipped, and a dropped
// connection reconnects until the feed is stopped.
type EventFeed struct {
	client *Client
	bus    *events.Bus
	logger *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEventFeed creates a feed publishing onto bus. Call Run to start it.
func NewEventFeed(client *Client, bus *events.Bus, logger *log.Logger) *EventFeed {
	if logger == nil {
		logger = log.New(log.Writer(), "events: ", log.LstdFlags)
	}
	return &EventFeed{
		client: client,
		bus:    bus,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run connects and consumes the event stream until Stop is called. It
// returns after teardown completes.
func (f *EventFeed) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	defer close(f.done)

	for {
		if err := f.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Printf("event stream dropped: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(feedReconnectDelay):
		}
	}
}

// Stop tears the feed down and waits for Run to return.
func (f *EventFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	<-f.done
}

// consume holds one stream connection open, publishing each decoded event.
func (f *EventFeed) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.client.baseURL+"/v1/events", nil)
	if err != nil {
		return err
	}
	f.client.setHeaders(req)

	resp, err := f.client.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, rErr := readResponse(resp)
		if rErr != nil {
			return rErr
		}
		return decodeError(resp, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxResponseSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			f.logger.Printf("malformed event line skipped: %v", err)
			continue
		}
		ev, err := events.Decode(env)
		if err != nil {
			if errors.Is(err, events.ErrUnknownEvent) {
				// Newer daemon, older client. Skip quietly.
				continue
			}
			f.logger.Printf("event %s dropped: %v", env.Type, err)
			continue
		}
		f.bus.Publish(ev)
	}
	return scanner.Err()
}
