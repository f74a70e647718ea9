package codex

import "encoding/json"

// ResponseStatus is the terminal status enumeration of a response.
type ResponseStatus string

const (
	StatusCompleted  ResponseStatus = "completed"
	StatusCancelled  ResponseStatus = "cancelled"
	StatusFailed     ResponseStatus = "failed"
	StatusInProgress ResponseStatus = "in_progress"
	StatusIncomplete ResponseStatus = "incomplete"
)

// String returns the wire form.
func (s ResponseStatus) String() string { return string(s) }

// StreamEventType discriminates stream events.
type StreamEventType uint8

const (
	// EventOutputTextDelta carries a chunk of assistant text.
	EventOutputTextDelta StreamEventType = iota
	// EventReasoningSummaryTextDelta carries reasoning summary text.
	EventReasoningSummaryTextDelta
	// EventToolCallRequested carries a completed function_call item.
	EventToolCallRequested
	// EventResponseCompleted carries the terminal status.
	EventResponseCompleted
	// EventResponseFailed marks a failed response.
	EventResponseFailed
	// EventError marks a transport-level error event.
	EventError
	// EventIgnored is any recognized-but-unused event.
	EventIgnored
)

// StreamEvent is one parsed SSE event. Optional string fields are nil when
// the wire payload omitted them, so downstream validation can distinguish
// missing from empty.
type StreamEvent struct {
	Type StreamEventType

	// Delta for OutputTextDelta / ReasoningSummaryTextDelta.
	Delta string

	// Tool call fields for ToolCallRequested.
	ItemID    *string
	CallID    *string
	ToolName  *string
	Arguments *json.RawMessage

	// Status for ResponseCompleted.
	Status ResponseStatus

	// Message for Error / ResponseFailed.
	Message string
}

// sse wire shapes

type sseEnvelope struct {
	Type     string       `json:"type"`
	Delta    string       `json:"delta"`
	Item     *sseItem     `json:"item"`
	Response *sseResponse `json:"response"`
	Error    *sseError    `json:"error"`
	Message  string       `json:"message"`
}

type sseItem struct {
	Type      string           `json:"type"`
	ID        *string          `json:"id"`
	CallID    *string          `json:"call_id"`
	Name      *string          `json:"name"`
	Arguments *json.RawMessage `json:"arguments"`
}

type sseResponse struct {
	Status string `json:"status"`
}

type sseError struct {
	Message string `json:"message"`
}

// parseStreamEvent maps one SSE data payload to a stream event.
func parseStreamEvent(data []byte) (StreamEvent, bool) {
	var envelope sseEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return StreamEvent{}, false
	}

	switch envelope.Type {
	case "response.output_text.delta":
		return StreamEvent{Type: EventOutputTextDelta, Delta: envelope.Delta}, true
	case "response.reasoning_summary_text.delta":
		return StreamEvent{Type: EventReasoningSummaryTextDelta, Delta: envelope.Delta}, true
	case "response.output_item.done":
		if envelope.Item != nil && envelope.Item.Type == "function_call" {
			return StreamEvent{
				Type:      EventToolCallRequested,
				ItemID:    envelope.Item.ID,
				CallID:    envelope.Item.CallID,
				ToolName:  envelope.Item.Name,
				Arguments: envelope.Item.Arguments,
			}, true
		}
		return StreamEvent{Type: EventIgnored}, true
	case "response.completed":
		status := StatusCompleted
		if envelope.Response != nil && envelope.Response.Status != "" {
			status = ResponseStatus(envelope.Response.Status)
		}
		return StreamEvent{Type: EventResponseCompleted, Status: status}, true
	case "response.failed":
		message := ""
		if envelope.Error != nil {
			message = envelope.Error.Message
		}
		return StreamEvent{Type: EventResponseFailed, Message: message}, true
	case "error":
		message := envelope.Message
		if message == "" && envelope.Error != nil {
			message = envelope.Error.Message
		}
		return StreamEvent{Type: EventError, Message: message}, true
	default:
		return StreamEvent{Type: EventIgnored}, true
	}
}

// TerminalStatus derives the terminal status from an event sequence: the
// last completed/failed/error event wins; a stream with no terminal event
// (including an empty one) reports incomplete with ok=false.
func TerminalStatus(events []StreamEvent) (ResponseStatus, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		switch events[i].Type {
		case EventResponseCompleted:
			return events[i].Status, true
		case EventResponseFailed, EventError:
			return StatusFailed, true
		}
	}
	return StatusIncomplete, false
}
