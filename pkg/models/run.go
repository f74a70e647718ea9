// Package models provides the provider-neutral domain types shared by the
// TUI runtime, the agent providers, and the session store.
package models

import (
	"bytes"
	"encoding/json"
)

// RunID identifies a single provider run within a process.
type RunID uint64

// RunMessageKind identifies the kind of a RunMessage.
type RunMessageKind string

const (
	RunMessageUserText      RunMessageKind = "user_text"
	RunMessageAssistantText RunMessageKind = "assistant_text"
	RunMessageToolCall      RunMessageKind = "tool_call"
	RunMessageToolResult    RunMessageKind = "tool_result"
)

// RunMessage is one entry in the provider-neutral conversation history.
// Exactly one payload group is meaningful for a given Kind:
//
//   - UserText / AssistantText: Text
//   - ToolCall: CallID, ToolName, Arguments (must be a JSON object)
//   - ToolResult: CallID, ToolName, Content, IsError
type RunMessage struct {
	Kind      RunMessageKind  `json:"kind"`
	Text      string          `json:"text,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// UserText builds a user text message.
func UserText(text string) RunMessage {
	return RunMessage{Kind: RunMessageUserText, Text: text}
}

// AssistantText builds an assistant text message.
func AssistantText(text string) RunMessage {
	return RunMessage{Kind: RunMessageAssistantText, Text: text}
}

// ToolCall builds a tool call message. Arguments must encode a JSON object.
func ToolCall(callID, toolName string, arguments json.RawMessage) RunMessage {
	return RunMessage{
		Kind:      RunMessageToolCall,
		CallID:    callID,
		ToolName:  toolName,
		Arguments: arguments,
	}
}

// ToolResultMessage builds a tool result message.
func ToolResultMessage(callID, toolName string, content json.RawMessage, isError bool) RunMessage {
	return RunMessage{
		Kind:     RunMessageToolResult,
		CallID:   callID,
		ToolName: toolName,
		Content:  content,
		IsError:  isError,
	}
}

// RunRequest is the host-assembled input for one provider run.
type RunRequest struct {
	RunID        RunID        `json:"run_id"`
	Messages     []RunMessage `json:"messages"`
	Instructions string       `json:"instructions"`
}

// RunEventType identifies the kind of a RunEvent.
type RunEventType string

const (
	RunEventStarted   RunEventType = "started"
	RunEventChunk     RunEventType = "chunk"
	RunEventFinished  RunEventType = "finished"
	RunEventCancelled RunEventType = "cancelled"
	RunEventFailed    RunEventType = "failed"
)

// RunEvent is one UI-facing lifecycle event emitted by a provider run.
// Text is set for Chunk events; Error is set for Failed events.
type RunEvent struct {
	Type  RunEventType `json:"type"`
	RunID RunID        `json:"run_id"`
	Text  string       `json:"text,omitempty"`
	Error string       `json:"error,omitempty"`
}

// ToolCallRequest is the host-facing contract for executing one tool call.
type ToolCallRequest struct {
	CallID    string          `json:"call_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the host-facing outcome of one tool execution.
type ToolResult struct {
	CallID   string          `json:"call_id"`
	ToolName string          `json:"tool_name"`
	Content  json.RawMessage `json:"content"`
	IsError  bool            `json:"is_error,omitempty"`
}

// SuccessToolResult builds a successful tool result whose content is the
// given text encoded as a JSON string.
func SuccessToolResult(callID, toolName, content string) ToolResult {
	encoded, _ := json.Marshal(content)
	return ToolResult{CallID: callID, ToolName: toolName, Content: encoded}
}

// ErrorToolResult builds a failed tool result whose content is the given
// text encoded as a JSON string.
func ErrorToolResult(callID, toolName, content string) ToolResult {
	encoded, _ := json.Marshal(content)
	return ToolResult{CallID: callID, ToolName: toolName, Content: encoded, IsError: true}
}

// ContentText returns the text form of a tool result content value: the
// decoded string when the content is a JSON string, otherwise the compact
// JSON serialization.
func (r ToolResult) ContentText() string {
	return ContentText(r.Content)
}

// ContentText returns the text form of a JSON content value.
func ContentText(content json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(content, &asString); err == nil {
		return asString
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, content); err == nil {
		return compact.String()
	}
	return string(content)
}

// ToolDefinition describes one tool advertised to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ProviderProfile reports the active provider/model/thinking selection.
type ProviderProfile struct {
	ProviderID    string `json:"provider_id"`
	ModelID       string `json:"model_id"`
	ThinkingLevel string `json:"thinking_level,omitempty"`
}
