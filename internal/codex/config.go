package codex

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DefaultBaseURL is the endpoint used when no base URL is configured.
const DefaultBaseURL = "https://chatgpt.com/backend-api/codex"

// Config carries the transport configuration.
type Config struct {
	AccessToken  string
	AccountID    string
	BaseURL      string
	SessionID    string
	Originator   string
	UserAgent    string
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

// NewConfig builds a config with defaults for everything but the token.
func NewConfig(accessToken string) Config {
	return Config{
		AccessToken: accessToken,
		BaseURL:     DefaultBaseURL,
		Originator:  "codex_cli_go",
	}
}

// NormalizeURL canonicalizes a base URL into the responses endpoint:
// trailing slashes are dropped and "/responses" is appended when missing.
func NormalizeURL(baseURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = strings.TrimRight(DefaultBaseURL, "/")
	}
	if strings.HasSuffix(trimmed, "/responses") {
		return trimmed
	}
	return trimmed + "/responses"
}

// Errors surfaced by config validation and the client.
var (
	ErrMissingAccessToken = errors.New("codex: access token is required")
	ErrMissingAccountID   = errors.New("codex: account id is required")
	ErrCancelled          = errors.New("codex: cancelled")
)

// Header names the transport sends.
const (
	HeaderSessionID          = "session_id"
	HeaderAccountID          = "chatgpt-account-id"
	HeaderAccountIDCanonical = "ChatGPT-Account-Id"
	HeaderOpenAIBeta         = "OpenAI-Beta"
	HeaderOriginator         = "originator"
)

// BuildHeaders returns the deterministic header map for a request; use
// SortedHeaderNames to iterate it in name order. userAgent overrides the
// configured value when non-blank.
func BuildHeaders(cfg Config, userAgent string) (map[string]string, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrMissingAccessToken
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, ErrMissingAccountID
	}

	headers := map[string]string{
		"authorization":          "Bearer " + strings.TrimSpace(cfg.AccessToken),
		HeaderAccountID:          strings.TrimSpace(cfg.AccountID),
		HeaderAccountIDCanonical: strings.TrimSpace(cfg.AccountID),
		HeaderOpenAIBeta:         "responses=experimental",
		HeaderOriginator:         strings.TrimSpace(cfg.Originator),
		"accept":                 "text/event-stream",
		"content-type":           "application/json",
	}

	ua := "codex-api/0.1.0"
	if strings.TrimSpace(userAgent) != "" {
		ua = strings.TrimSpace(userAgent)
	} else if strings.TrimSpace(cfg.UserAgent) != "" {
		ua = strings.TrimSpace(cfg.UserAgent)
	}
	headers["User-Agent"] = ua

	if strings.TrimSpace(cfg.SessionID) != "" {
		headers[HeaderSessionID] = strings.TrimSpace(cfg.SessionID)
	}

	for key, value := range cfg.ExtraHeaders {
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	return headers, nil
}

// SortedHeaderNames returns header names in deterministic order.
func SortedHeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the config including base URL syntax.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrMissingAccessToken
	}
	if c.BaseURL != "" {
		endpoint := NormalizeURL(c.BaseURL)
		if _, err := url.Parse(endpoint); err != nil {
			return fmt.Errorf("codex: invalid base URL: %w", err)
		}
	}
	return nil
}
