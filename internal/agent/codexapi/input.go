package codexapi

import (
	"encoding/json"
	"fmt"

	"github.com/gurpartap/tape/pkg/models"
)

// codexInputFromRunMessages maps normalized run messages 1:1 onto
// transport input items, in order.
func codexInputFromRunMessages(messages []models.RunMessage) ([]json.RawMessage, error) {
	input := make([]json.RawMessage, 0, len(messages))
	assistantMessageIndex := 0

	for _, message := range messages {
		switch message.Kind {
		case models.RunMessageUserText:
			item, err := codexUserTextMessage(message.Text)
			if err != nil {
				return nil, err
			}
			input = append(input, item)

		case models.RunMessageAssistantText:
			item, err := codexAssistantOutputMessage(message.Text, assistantMessageIndex)
			if err != nil {
				return nil, err
			}
			assistantMessageIndex++
			input = append(input, item)

		case models.RunMessageToolCall:
			canonicalCallID, err := sanitizeNonemptyField(message.CallID, "tool call call_id")
			if err != nil {
				return nil, err
			}
			transportCallID, responseItemID := splitCanonicalToolCallID(canonicalCallID)
			toolName, err := sanitizeNonemptyField(message.ToolName, "tool call tool_name")
			if err != nil {
				return nil, err
			}
			argumentsJSON, err := encodeToolCallArguments(toolName, message.Arguments)
			if err != nil {
				return nil, err
			}

			functionCall := map[string]any{
				"type":      "function_call",
				"call_id":   transportCallID,
				"name":      toolName,
				"arguments": argumentsJSON,
			}
			if responseItemID != "" {
				functionCall["id"] = responseItemID
			}
			item, err := json.Marshal(functionCall)
			if err != nil {
				return nil, fmt.Errorf("codex-api provider failed to encode function call item: %v", err)
			}
			input = append(input, item)

		case models.RunMessageToolResult:
			canonicalCallID, err := sanitizeNonemptyField(message.CallID, "tool result call_id")
			if err != nil {
				return nil, err
			}
			transportCallID, _ := splitCanonicalToolCallID(canonicalCallID)
			if _, err := sanitizeNonemptyField(message.ToolName, "tool result tool_name"); err != nil {
				return nil, err
			}

			item, err := json.Marshal(map[string]any{
				"type":    "function_call_output",
				"call_id": transportCallID,
				"output":  models.ContentText(message.Content),
			})
			if err != nil {
				return nil, fmt.Errorf("codex-api provider failed to encode function call output item: %v", err)
			}
			input = append(input, item)

		default:
			return nil, fmt.Errorf("codex-api provider cannot replay unknown run message kind '%s'", message.Kind)
		}
	}

	return input, nil
}

func codexUserTextMessage(text string) (json.RawMessage, error) {
	if err := validateNonemptyUserText(text); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"role": "user",
		"content": []map[string]any{
			{"type": "input_text", "text": text},
		},
	})
}

func codexAssistantOutputMessage(text string, messageIndex int) (json.RawMessage, error) {
	if err := validateNonemptyAssistantText(text); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "output_text", "text": text, "annotations": []any{}},
		},
		"status": "completed",
		"id":     fmt.Sprintf("msg_%d", messageIndex),
	})
}
