package codex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const maxRetries = 3

// retryDelay returns the backoff before the given retry attempt.
func retryDelay(attempt int) time.Duration {
	return time.Duration(250*(1<<attempt)) * time.Millisecond
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// CancelSignal is the atomically readable cancellation flag shared between
// the caller and the stream loop.
type CancelSignal = *atomic.Bool

// StreamResult is a fully drained stream: its events plus terminal status.
type StreamResult struct {
	Events   []StreamEvent
	Terminal ResponseStatus
	// HasTerminal is false only when the stream produced no terminal
	// marker at all; the client then reports incomplete.
	HasTerminal bool
}

// Client is the HTTP Codex transport.
type Client struct {
	http   *http.Client
	config Config
}

// NewClient validates the config and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	return &Client{http: httpClient, config: cfg}, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Endpoint returns the normalized responses endpoint.
func (c *Client) Endpoint() string { return NormalizeURL(c.config.BaseURL) }

// BuildHeaders exposes header construction for validation at startup.
func (c *Client) BuildHeaders(userAgent string) (map[string]string, error) {
	return BuildHeaders(c.config, userAgent)
}

func isCancelled(cancel CancelSignal) bool {
	return cancel != nil && cancel.Load()
}

func (c *Client) newHTTPRequest(request *Request) (*http.Request, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("codex: encoding request: %w", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("codex: building request: %w", err)
	}
	headers, err := BuildHeaders(c.config, c.config.UserAgent)
	if err != nil {
		return nil, err
	}
	for _, name := range SortedHeaderNames(headers) {
		httpReq.Header.Set(name, headers[name])
	}
	return httpReq, nil
}

// sendWithRetry posts the request, retrying retryable failures with
// backoff, and returns the streaming response body.
func (c *Client) sendWithRetry(request *Request, cancel CancelSignal) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if isCancelled(cancel) {
			return nil, ErrCancelled
		}

		httpReq, err := c.newHTTPRequest(request)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, fmt.Errorf("codex: request failed after retries: %w", lastErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		message := parseErrorMessage(resp.StatusCode, body)

		if attempt < maxRetries && retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("codex: %s", message)
			time.Sleep(retryDelay(attempt))
			continue
		}
		return nil, fmt.Errorf("codex: %s", message)
	}

	return nil, fmt.Errorf("codex: request failed after retries: %w", lastErr)
}

// parseErrorMessage extracts a useful message from an error body.
func parseErrorMessage(status int, body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return fmt.Sprintf("HTTP %d: %s", status, payload.Error.Message)
		}
		if payload.Detail != "" {
			return fmt.Sprintf("HTTP %d: %s", status, payload.Detail)
		}
	}
	trimmed := string(bytes.TrimSpace(body))
	if trimmed == "" {
		trimmed = "request failed"
	}
	return fmt.Sprintf("HTTP %d: %s", status, trimmed)
}

// Stream posts the request and drains the SSE stream into a result.
func (c *Client) Stream(request *Request, cancel CancelSignal) (StreamResult, error) {
	var result StreamResult
	err := c.StreamWithHandler(request, cancel, func(event StreamEvent) {
		result.Events = append(result.Events, event)
	})
	if err != nil {
		return StreamResult{}, err
	}
	result.Terminal, result.HasTerminal = TerminalStatus(result.Events)
	return result, nil
}

// StreamWithHandler posts the request and invokes onEvent for each stream
// event in arrival order. It returns only a transport or decode error; the
// terminal status is derived from the events with TerminalStatus.
func (c *Client) StreamWithHandler(request *Request, cancel CancelSignal, onEvent func(StreamEvent)) error {
	resp, err := c.sendWithRetry(request, cancel)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	parser := &SSEParser{}
	buf := make([]byte, 16*1024)
	for {
		if isCancelled(cancel) {
			return ErrCancelled
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, event := range parser.Feed(buf[:n]) {
				onEvent(event)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("codex: reading stream: %w", readErr)
		}
	}

	if isCancelled(cancel) {
		return ErrCancelled
	}
	return nil
}
