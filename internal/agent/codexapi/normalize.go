package codexapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gurpartap/tape/pkg/models"
)

const syntheticOrphanToolResultContent = "No result provided"

// Normalization/backfill policy for Codex replay history.
//
//   - Boundary backfill: at every user/assistant boundary, unresolved tool
//     calls with no remaining raw-id tool results later in the history are
//     backfilled immediately with a synthetic error result.
//   - EOF backfill: after the last message, any still-unresolved tool calls
//     are backfilled the same way, in unresolved-encounter order.
//   - Collision rules: unresolved tool calls must stay unique across both
//     canonical ids and transport call ids; either collision hard-fails.
//   - Mapping precedence: tool results first match the raw-id queue of
//     unresolved calls; without a queued match the raw result id is
//     normalized directly.

type unresolvedToolCall struct {
	rawID           string
	canonicalID     string
	transportCallID string
	toolName        string
}

type normalizeState struct {
	normalized           []models.RunMessage
	unresolved           []unresolvedToolCall
	canonicalIDs         map[string]bool
	transportCallIDs     map[string]bool
	canonicalIDsByRaw    map[string][]string
	remainingResultsByRaw map[string]int
}

func duplicateCanonicalIDError(callID string) string {
	return fmt.Sprintf("codex-api provider cannot normalize run history: duplicate normalized unresolved tool call id '%s'", callID)
}

func duplicateTransportIDError(callID string) string {
	return fmt.Sprintf("codex-api provider cannot normalize run history: duplicate normalized unresolved tool transport id '%s'", callID)
}

func sanitizeNonemptyField(value, fieldName string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("codex-api provider requires non-empty %s in run history", fieldName)
	}
	return trimmed, nil
}

func validateNonemptyUserText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("codex-api provider requires non-empty user text messages in run history")
	}
	return nil
}

func validateNonemptyAssistantText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("codex-api provider requires non-empty assistant text messages in run history")
	}
	return nil
}

func encodeToolCallArguments(toolName string, arguments json.RawMessage) (string, error) {
	var decoded any
	if err := json.Unmarshal(arguments, &decoded); err != nil {
		return "", fmt.Errorf("codex-api provider requires tool call arguments to be a JSON object for tool '%s'", toolName)
	}
	if _, ok := decoded.(map[string]any); !ok {
		return "", fmt.Errorf("codex-api provider requires tool call arguments to be a JSON object for tool '%s'", toolName)
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		return "", fmt.Errorf("codex-api provider failed to serialize tool call arguments for '%s': %v", toolName, err)
	}
	return string(encoded), nil
}

// normalizeRunMessages runs the single-pass normalization over sanitized
// history.
func normalizeRunMessages(messages []models.RunMessage) ([]models.RunMessage, error) {
	remaining, err := buildRemainingToolResultCounts(messages)
	if err != nil {
		return nil, err
	}

	state := &normalizeState{
		normalized:            make([]models.RunMessage, 0, len(messages)),
		canonicalIDs:          make(map[string]bool),
		transportCallIDs:      make(map[string]bool),
		canonicalIDsByRaw:     make(map[string][]string),
		remainingResultsByRaw: remaining,
	}

	for _, message := range messages {
		switch message.Kind {
		case models.RunMessageUserText:
			if err := validateNonemptyUserText(message.Text); err != nil {
				return nil, err
			}
			state.flushUnresolvedWithoutFutureResults()
			state.normalized = append(state.normalized, message)

		case models.RunMessageAssistantText:
			if err := validateNonemptyAssistantText(message.Text); err != nil {
				return nil, err
			}
			state.flushUnresolvedWithoutFutureResults()
			state.normalized = append(state.normalized, message)

		case models.RunMessageToolCall:
			if err := state.appendToolCall(message); err != nil {
				return nil, err
			}

		case models.RunMessageToolResult:
			if err := state.appendToolResult(message); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("codex-api provider cannot replay unknown run message kind '%s'", message.Kind)
		}
	}

	state.flushAllUnresolved()
	return state.normalized, nil
}

func buildRemainingToolResultCounts(messages []models.RunMessage) (map[string]int, error) {
	counts := make(map[string]int)
	for _, message := range messages {
		if message.Kind != models.RunMessageToolResult {
			continue
		}
		rawCallID, err := sanitizeNonemptyField(message.CallID, "tool result call_id")
		if err != nil {
			return nil, err
		}
		counts[rawCallID]++
	}
	return counts, nil
}

func (s *normalizeState) appendToolCall(message models.RunMessage) error {
	rawCallID, err := sanitizeNonemptyField(message.CallID, "tool call call_id")
	if err != nil {
		return err
	}
	normalizedID := normalizeToolCallID(rawCallID)
	toolName, err := sanitizeNonemptyField(message.ToolName, "tool call tool_name")
	if err != nil {
		return err
	}
	if _, err := encodeToolCallArguments(toolName, message.Arguments); err != nil {
		return err
	}

	if s.canonicalIDs[normalizedID.canonical] {
		return fmt.Errorf("%s", duplicateCanonicalIDError(normalizedID.canonical))
	}
	if s.transportCallIDs[normalizedID.transportCallID] {
		return fmt.Errorf("%s", duplicateTransportIDError(normalizedID.transportCallID))
	}

	s.canonicalIDs[normalizedID.canonical] = true
	s.transportCallIDs[normalizedID.transportCallID] = true
	s.canonicalIDsByRaw[rawCallID] = append(s.canonicalIDsByRaw[rawCallID], normalizedID.canonical)
	s.unresolved = append(s.unresolved, unresolvedToolCall{
		rawID:           rawCallID,
		canonicalID:     normalizedID.canonical,
		transportCallID: normalizedID.transportCallID,
		toolName:        toolName,
	})
	s.normalized = append(s.normalized, models.ToolCall(normalizedID.canonical, toolName, message.Arguments))
	return nil
}

func (s *normalizeState) appendToolResult(message models.RunMessage) error {
	rawCallID, err := sanitizeNonemptyField(message.CallID, "tool result call_id")
	if err != nil {
		return err
	}
	canonicalID, found := s.popCanonicalIDForRaw(rawCallID)
	if !found {
		canonicalID = normalizeToolCallID(rawCallID).canonical
	}
	toolName, err := sanitizeNonemptyField(message.ToolName, "tool result tool_name")
	if err != nil {
		return err
	}

	s.decrementRemainingResultCount(rawCallID)
	s.removeUnresolvedByCanonicalID(canonicalID)

	s.normalized = append(s.normalized, models.ToolResultMessage(canonicalID, toolName, message.Content, message.IsError))
	return nil
}

// flushUnresolvedWithoutFutureResults emits synthetic error results for
// unresolved calls whose raw id has no tool result left in the future.
func (s *normalizeState) flushUnresolvedWithoutFutureResults() {
	var stillUnresolved []unresolvedToolCall

	for _, unresolved := range s.unresolved {
		if s.remainingResultsByRaw[unresolved.rawID] > 0 {
			stillUnresolved = append(stillUnresolved, unresolved)
			continue
		}
		s.normalized = append(s.normalized, syntheticToolResult(unresolved))
	}

	s.unresolved = stillUnresolved
	s.rebuildUnresolvedIndexes()
}

// flushAllUnresolved emits synthetic error results for every remaining
// unresolved call, in encounter order.
func (s *normalizeState) flushAllUnresolved() {
	for _, unresolved := range s.unresolved {
		s.normalized = append(s.normalized, syntheticToolResult(unresolved))
	}
	s.unresolved = nil
	s.canonicalIDs = make(map[string]bool)
	s.transportCallIDs = make(map[string]bool)
	s.canonicalIDsByRaw = make(map[string][]string)
}

func syntheticToolResult(unresolved unresolvedToolCall) models.RunMessage {
	content, _ := json.Marshal(syntheticOrphanToolResultContent)
	return models.ToolResultMessage(unresolved.canonicalID, unresolved.toolName, content, true)
}

func (s *normalizeState) popCanonicalIDForRaw(rawCallID string) (string, bool) {
	queue := s.canonicalIDsByRaw[rawCallID]
	if len(queue) == 0 {
		return "", false
	}
	canonicalID := queue[0]
	if len(queue) == 1 {
		delete(s.canonicalIDsByRaw, rawCallID)
	} else {
		s.canonicalIDsByRaw[rawCallID] = queue[1:]
	}
	return canonicalID, true
}

func (s *normalizeState) removeUnresolvedByCanonicalID(canonicalID string) {
	position := -1
	for i, unresolved := range s.unresolved {
		if unresolved.canonicalID == canonicalID {
			position = i
			break
		}
	}
	if position < 0 {
		return
	}

	removed := s.unresolved[position]
	s.unresolved = append(s.unresolved[:position], s.unresolved[position+1:]...)
	delete(s.canonicalIDs, canonicalID)
	delete(s.transportCallIDs, removed.transportCallID)

	if queue, ok := s.canonicalIDsByRaw[removed.rawID]; ok {
		for i, queuedID := range queue {
			if queuedID == canonicalID {
				queue = append(queue[:i], queue[i+1:]...)
				break
			}
		}
		if len(queue) == 0 {
			delete(s.canonicalIDsByRaw, removed.rawID)
		} else {
			s.canonicalIDsByRaw[removed.rawID] = queue
		}
	}
}

func (s *normalizeState) rebuildUnresolvedIndexes() {
	s.canonicalIDs = make(map[string]bool)
	s.transportCallIDs = make(map[string]bool)
	s.canonicalIDsByRaw = make(map[string][]string)
	for _, unresolved := range s.unresolved {
		s.canonicalIDs[unresolved.canonicalID] = true
		s.transportCallIDs[unresolved.transportCallID] = true
		s.canonicalIDsByRaw[unresolved.rawID] = append(s.canonicalIDsByRaw[unresolved.rawID], unresolved.canonicalID)
	}
}

func (s *normalizeState) decrementRemainingResultCount(rawCallID string) {
	if count, ok := s.remainingResultsByRaw[rawCallID]; ok {
		if count <= 1 {
			delete(s.remainingResultsByRaw, rawCallID)
		} else {
			s.remainingResultsByRaw[rawCallID] = count - 1
		}
	}
}

// sanitizeRunMessages applies the pre-flight history checks.
func sanitizeRunMessages(messages []models.RunMessage) ([]models.RunMessage, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("codex-api provider requires non-empty run message history before sending requests")
	}
	hasUserMessage := false
	for _, message := range messages {
		if message.Kind == models.RunMessageUserText {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, fmt.Errorf("codex-api provider requires at least one user text message in run history")
	}
	return messages, nil
}

// sanitizeRunInstructions trims and validates the system instructions.
func sanitizeRunInstructions(instructions string) (string, error) {
	trimmed := strings.TrimSpace(instructions)
	if trimmed == "" {
		return "", fmt.Errorf("codex-api provider requires non-empty run instructions before sending requests")
	}
	return trimmed, nil
}
