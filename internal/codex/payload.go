// Package codex implements the streaming Codex Responses transport: wire
// payloads, deterministic headers, SSE parsing, and a retrying HTTP client.
package codex

import "encoding/json"

// Reasoning is the optional reasoning payload attached to a request.
type Reasoning struct {
	Effort  string  `json:"effort,omitempty"`
	Summary *string `json:"summary"`
}

// Request is the wire shape of one Codex Responses call. Input is a JSON
// array of input items.
type Request struct {
	Model             string            `json:"model"`
	Input             []json.RawMessage `json:"input"`
	Instructions      string            `json:"instructions,omitempty"`
	Reasoning         *Reasoning        `json:"reasoning,omitempty"`
	Tools             []json.RawMessage `json:"tools,omitempty"`
	Include           []string          `json:"include"`
	ToolChoice        string            `json:"tool_choice"`
	ParallelToolCalls bool              `json:"parallel_tool_calls"`
	Store             bool              `json:"store"`
	Stream            bool              `json:"stream"`
}

// NewRequest builds a request with the fixed per-request fields the
// transport always sends.
func NewRequest(model string, input []json.RawMessage, instructions string) *Request {
	return &Request{
		Model:             model,
		Input:             input,
		Instructions:      instructions,
		Include:           []string{"reasoning.encrypted_content"},
		ToolChoice:        "auto",
		ParallelToolCalls: true,
		Store:             false,
		Stream:            true,
	}
}
