// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/morganforge/hud-tui/internal/model"
)

// Configuration constants for the daemon HTTP API.
const (
	// DefaultDaemonURL is the base URL of the local daemon.
	DefaultDaemonURL = "http://127.0.0.1:7433"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// Error variables for common daemon errors.
var (
	// ErrUnauthorized indicates the session token was rejected.
	ErrUnauthorized = errors.New("daemon rejected session token")

	// ErrNotFound indicates the referenced conversation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")
)

// DaemonError represents an error reported by the daemon API.
type DaemonError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *DaemonError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("daemon error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("daemon error (HTTP %d): %s", e.Status, e.Message)
}

// apiErrorResponse is the daemon's error body shape.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the local daemon over HTTP and implements Backend. The
// daemon owns inference, persistence, token accounting, and the OS windows;
// this client only moves requests and streamed output across that boundary.
type Client struct {
	baseURL    string
	token      string
	maxRetries int

	// httpClient serves bounded request/response calls.
	httpClient *http.Client

	// streamClient has no timeout; streaming lifetime is context-controlled.
	streamClient *http.Client
}

var _ Backend = (*Client)(nil)

// NewClient creates a client for the daemon at baseURL. An empty baseURL
// uses the default local address.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultDaemonURL
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL:      baseURL,
		maxRetries:   DefaultMaxRetries,
		httpClient:   &http.Client{Transport: transport, Timeout: DefaultTimeout},
		streamClient: &http.Client{Transport: transport},
	}
}

// WithToken sets the session token attached to every request.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// WithTimeout overrides the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithMaxRetries overrides the retry count for transient errors.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	c.maxRetries = maxRetries
	return c
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// setHeaders sets the headers common to all daemon requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hud-tui/0.1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// calculateBackoff returns the delay before the given retry attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// isRetryable reports whether a request may be retried: server-side
// failures and rate limiting, never client errors.
func isRetryable(err error) bool {
	var de *DaemonError
	if errors.As(err, &de) {
		return de.Status >= 500 || de.Status == http.StatusTooManyRequests
	}
	// Connection-level failures (daemon restarting) are retryable.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// readResponse reads a response body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// decodeError maps a non-2xx response to a typed error.
func decodeError(resp *http.Response, body []byte) error {
	var apiErr apiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	de := &DaemonError{
		Code:    apiErr.Error.Code,
		Message: apiErr.Error.Message,
		Status:  resp.StatusCode,
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, de.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, de.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, de.Message)
	}
	return de
}

// do performs one request and decodes a 2xx JSON body into out (which may be
// nil for empty responses). Retries transient failures with backoff when the
// method is safe to repeat.
func (c *Client) do(ctx context.Context, method, path string, reqBody, out any, retry bool) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if retry {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(attempt - 1)):
			}
		}

		err := c.doOnce(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retry || !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doOnce performs a single request/response exchange.
func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// BACKEND IMPLEMENTATION
// =============================================================================

// CreateConversation implements Backend.
func (c *Client) CreateConversation(ctx context.Context, name, convType string) (*model.Conversation, error) {
	req := struct {
		Name string `json:"name,omitempty"`
		Type string `json:"type,omitempty"`
	}{Name: name, Type: convType}

	var conv model.Conversation
	if err := c.do(ctx, http.MethodPost, "/v1/conversations", req, &conv, false); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Conversation implements Backend.
func (c *Client) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	path := "/v1/conversations/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &conv, true); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Messages implements Backend.
func (c *Client) Messages(ctx context.Context, conversationID string, limit, offset int) ([]*model.Message, error) {
	var msgs []*model.Message
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/messages" +
		"?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs, true); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage implements Backend. The response is a line-delimited JSON
// stream; progressive deltas go to onChunk and the terminal line carries the
// authoritative final text. Not retried: resend is the user's decision.
func (c *Client) SendMessage(ctx context.Context, req SendRequest, onChunk ChunkFunc) (string, error) {
	payload, err := json.Marshal(struct {
		ConversationID string             `json:"conversation_id"`
		MessageID      string             `json:"message_id"`
		Content        string             `json:"content"`
		Attachments    []model.Attachment `json:"attachments,omitempty"`
	}{req.ConversationID, req.MessageID, req.Content, req.Attachments})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, rErr := readResponse(resp)
		if rErr != nil {
			return "", rErr
		}
		return "", decodeError(resp, body)
	}

	return NewStreamReader(resp.Body).Process(ctx, onChunk)
}

// DeleteConversation implements Backend.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	path := "/v1/conversations/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, true)
}

// ListConversations implements Backend.
func (c *Client) ListConversations(ctx context.Context, limit, offset int) ([]model.Summary, error) {
	var summaries []model.Summary
	path := "/v1/conversations?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &summaries, true); err != nil {
		return nil, err
	}
	return summaries, nil
}

// EmitGenerateConversationName implements Backend. Fire-and-forget; the
// derived name comes back as an event.
func (c *Client) EmitGenerateConversationName(ctx context.Context, conversationID, message string) error {
	req := struct {
		Message string `json:"message"`
	}{Message: message}
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/name"
	return c.do(ctx, http.MethodPost, path, req, nil, false)
}

// ResizeWindow implements Backend.
func (c *Client) ResizeWindow(ctx context.Context, width, height float64) error {
	req := struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}{Width: width, Height: height}
	return c.do(ctx, http.MethodPost, "/v1/window/resize", req, nil, false)
}
