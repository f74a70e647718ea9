package codexapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gurpartap/tape/internal/agent"
	"github.com/gurpartap/tape/internal/codex"
	"github.com/gurpartap/tape/pkg/models"
)

// ProviderID is the stable identifier used by startup selection.
const ProviderID = "codex-api"

// Config is the runtime configuration for the Codex API provider.
type Config struct {
	AccessToken string
	AccountID   string
	ModelIDs    []string
	BaseURL     string
	SessionID   string
	Timeout     time.Duration
}

// streamClient abstracts the transport so tests drive scripted streams.
type streamClient interface {
	StreamWithHandler(request *codex.Request, cancel agent.CancelSignal, onEvent func(codex.StreamEvent)) (terminal *codex.ResponseStatus, err error)
}

type defaultStreamClient struct {
	client *codex.Client
}

func (d *defaultStreamClient) StreamWithHandler(request *codex.Request, cancel agent.CancelSignal, onEvent func(codex.StreamEvent)) (*codex.ResponseStatus, error) {
	var events []codex.StreamEvent
	err := d.client.StreamWithHandler(request, cancel, func(event codex.StreamEvent) {
		events = append(events, event)
		onEvent(event)
	})
	if err != nil {
		return nil, err
	}
	status, _ := codex.TerminalStatus(events)
	return &status, nil
}

type selectionState struct {
	modelIndex    int
	thinkingIndex int
}

// Provider adapts codex transport primitives to the RunProvider contract.
type Provider struct {
	modelIDs []string

	mu        sync.Mutex
	selection selectionState

	stream streamClient
}

// New creates a provider backed by the real Codex transport. The config is
// validated eagerly, including header construction, so startup fails fast.
func New(cfg Config) (*Provider, error) {
	modelIDs, err := sanitizeModelIDs(cfg.ModelIDs)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("codex-api provider requires a non-empty access token")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("codex-api provider timeout must be greater than zero when provided")
	}

	clientConfig := codex.NewConfig(strings.TrimSpace(cfg.AccessToken))
	clientConfig.AccountID = strings.TrimSpace(cfg.AccountID)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientConfig.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.SessionID) != "" {
		clientConfig.SessionID = strings.TrimSpace(cfg.SessionID)
	}
	clientConfig.Timeout = cfg.Timeout

	client, err := codex.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize codex-api provider: %w", err)
	}
	if _, err := client.BuildHeaders(""); err != nil {
		return nil, fmt.Errorf("failed to initialize codex-api provider: %w", err)
	}

	return &Provider{
		modelIDs: modelIDs,
		stream:   &defaultStreamClient{client: client},
	}, nil
}

// newWithStreamClient wires a scripted transport for tests.
func newWithStreamClient(modelIDs []string, stream streamClient) *Provider {
	sanitized, err := sanitizeModelIDs(modelIDs)
	if err != nil {
		panic("tests must provide at least one non-empty model id")
	}
	return &Provider{modelIDs: sanitized, stream: stream}
}

func sanitizeModelIDs(modelIDs []string) ([]string, error) {
	sanitized := make([]string, 0, len(modelIDs))
	for _, modelID := range modelIDs {
		if trimmed := strings.TrimSpace(modelID); trimmed != "" {
			sanitized = append(sanitized, trimmed)
		}
	}
	if len(sanitized) == 0 {
		return nil, errors.New("codex-api provider requires at least one non-empty model id")
	}
	return sanitized, nil
}

func (p *Provider) selectedModelAndThinking() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	modelID := p.modelIDs[p.selection.modelIndex]
	levels := thinkingLevelsForModel(modelID)
	idx := p.selection.thinkingIndex
	if idx > len(levels)-1 {
		idx = len(levels) - 1
	}
	return modelID, levels[idx]
}

func (p *Provider) profileForSelection(selection selectionState) models.ProviderProfile {
	modelID := p.modelIDs[selection.modelIndex]
	levels := thinkingLevelsForModel(modelID)
	idx := selection.thinkingIndex
	if idx > len(levels)-1 {
		idx = len(levels) - 1
	}
	return models.ProviderProfile{
		ProviderID:    ProviderID,
		ModelID:       modelID,
		ThinkingLevel: levels[idx],
	}
}

// Profile implements agent.RunProvider.
func (p *Provider) Profile() models.ProviderProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profileForSelection(p.selection)
}

// ToolDefinitions implements agent.RunProvider.
func (p *Provider) ToolDefinitions() []models.ToolDefinition {
	return V1ToolDefinitions()
}

// CycleModel advances the model and clamps the thinking index into the new
// model's family.
func (p *Provider) CycleModel() (models.ProviderProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection.modelIndex = (p.selection.modelIndex + 1) % len(p.modelIDs)
	p.selection.thinkingIndex = normalizeThinkingIndex(p.modelIDs[p.selection.modelIndex], p.selection.thinkingIndex)
	return p.profileForSelection(p.selection), nil
}

// CycleThinkingLevel advances the thinking level within the current
// model's family.
func (p *Provider) CycleThinkingLevel() (models.ProviderProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	levels := thinkingLevelsForModel(p.modelIDs[p.selection.modelIndex])
	p.selection.thinkingIndex = (p.selection.thinkingIndex + 1) % len(levels)
	return p.profileForSelection(p.selection), nil
}

// pendingToolCall is one tool call parsed out of a stream step.
type pendingToolCall struct {
	executionCallID string
	replayCallID    string
	toolName        string
	arguments       json.RawMessage
}

// replayStepItem is one ordered item produced by a stream step.
type replayStepItem struct {
	assistantText string
	toolCall      *pendingToolCall
}

func (p *Provider) buildRequest(modelID, thinkingLevel string, messages []models.RunMessage, instructions string) (*codex.Request, error) {
	sanitized, err := sanitizeRunMessages(messages)
	if err != nil {
		return nil, err
	}
	normalized, err := normalizeRunMessages(sanitized)
	if err != nil {
		return nil, err
	}
	input, err := codexInputFromRunMessages(normalized)
	if err != nil {
		return nil, err
	}
	request := codex.NewRequest(modelID, input, instructions)
	request.Reasoning = thinkingReasoningPayload(thinkingLevel)
	request.Tools = codexToolPayloads()
	return request, nil
}

func (p *Provider) processStreamEvent(
	runID models.RunID,
	event codex.StreamEvent,
	replayItems *[]replayStepItem,
	textBuffer *strings.Builder,
	emit agent.EmitFunc,
) error {
	switch event.Type {
	case codex.EventOutputTextDelta:
		if event.Delta != "" {
			textBuffer.WriteString(event.Delta)
			emit(models.RunEvent{Type: models.RunEventChunk, RunID: runID, Text: event.Delta})
		}
	case codex.EventToolCallRequested:
		flushTextBuffer(textBuffer, replayItems)
		pending, err := parsePendingToolCall(event.ItemID, event.CallID, event.ToolName, event.Arguments)
		if err != nil {
			return err
		}
		*replayItems = append(*replayItems, replayStepItem{toolCall: pending})
	}
	return nil
}

func flushTextBuffer(textBuffer *strings.Builder, replayItems *[]replayStepItem) {
	if textBuffer.Len() > 0 {
		*replayItems = append(*replayItems, replayStepItem{assistantText: textBuffer.String()})
		textBuffer.Reset()
	}
}

func (p *Provider) emitTerminalEvent(runID models.RunID, terminal *codex.ResponseStatus, emit agent.EmitFunc) {
	switch {
	case terminal == nil:
		emit(models.RunEvent{
			Type:  models.RunEventFailed,
			RunID: runID,
			Error: "Codex API stream ended without terminal status",
		})
	case *terminal == codex.StatusCompleted:
		emit(models.RunEvent{Type: models.RunEventFinished, RunID: runID})
	case *terminal == codex.StatusCancelled:
		emit(models.RunEvent{Type: models.RunEventCancelled, RunID: runID})
	case *terminal == codex.StatusFailed:
		emit(models.RunEvent{
			Type:  models.RunEventFailed,
			RunID: runID,
			Error: "Codex API response failed",
		})
	default:
		emit(models.RunEvent{
			Type:  models.RunEventFailed,
			RunID: runID,
			Error: fmt.Sprintf("Codex API response ended with non-complete terminal status '%s'", terminal.String()),
		})
	}
}

// Run implements agent.RunProvider: the streaming tool-roundtrip loop.
func (p *Provider) Run(req models.RunRequest, cancel agent.CancelSignal, executeTool agent.ToolExecutor, emit agent.EmitFunc) error {
	runID := req.RunID
	modelID, thinkingLevel := p.selectedModelAndThinking()

	messages, err := sanitizeRunMessages(req.Messages)
	if err != nil {
		return err
	}
	instructions, err := sanitizeRunInstructions(req.Instructions)
	if err != nil {
		return err
	}

	replayMessages := append([]models.RunMessage(nil), messages...)
	request, err := p.buildRequest(modelID, thinkingLevel, replayMessages, instructions)
	if err != nil {
		return err
	}

	emit(models.RunEvent{Type: models.RunEventStarted, RunID: runID})

	if cancel.Load() {
		emit(models.RunEvent{Type: models.RunEventCancelled, RunID: runID})
		return nil
	}

	for {
		if cancel.Load() {
			emit(models.RunEvent{Type: models.RunEventCancelled, RunID: runID})
			return nil
		}

		var replayItems []replayStepItem
		var textBuffer strings.Builder
		var streamParseError error

		terminal, streamErr := p.stream.StreamWithHandler(request, cancel, func(event codex.StreamEvent) {
			if streamParseError != nil {
				return
			}
			if err := p.processStreamEvent(runID, event, &replayItems, &textBuffer, emit); err != nil {
				streamParseError = err
			}
		})
		if streamErr != nil {
			if errors.Is(streamErr, codex.ErrCancelled) {
				emit(models.RunEvent{Type: models.RunEventCancelled, RunID: runID})
				return nil
			}
			emit(models.RunEvent{
				Type:  models.RunEventFailed,
				RunID: runID,
				Error: fmt.Sprintf("Codex API request failed: %v", streamErr),
			})
			return nil
		}

		if streamParseError != nil {
			emit(models.RunEvent{Type: models.RunEventFailed, RunID: runID, Error: streamParseError.Error()})
			return nil
		}

		flushTextBuffer(&textBuffer, &replayItems)

		hasPendingToolCalls := false
		for _, item := range replayItems {
			if item.toolCall != nil {
				hasPendingToolCalls = true
				break
			}
		}

		if !hasPendingToolCalls {
			p.emitTerminalEvent(runID, terminal, emit)
			return nil
		}

		switch {
		case terminal != nil && *terminal == codex.StatusCompleted:
			// Continue into tool execution.
		case terminal != nil && *terminal == codex.StatusCancelled:
			emit(models.RunEvent{Type: models.RunEventCancelled, RunID: runID})
			return nil
		case terminal != nil:
			emit(models.RunEvent{
				Type:  models.RunEventFailed,
				RunID: runID,
				Error: fmt.Sprintf("Codex API response ended with non-complete terminal status '%s' while processing tool calls", terminal.String()),
			})
			return nil
		default:
			emit(models.RunEvent{
				Type:  models.RunEventFailed,
				RunID: runID,
				Error: "Codex API stream ended without terminal status while processing tool calls",
			})
			return nil
		}

		var pendingToolCalls []pendingToolCall
		for _, item := range replayItems {
			if item.toolCall != nil {
				replayMessages = append(replayMessages, models.ToolCall(
					item.toolCall.replayCallID,
					item.toolCall.toolName,
					item.toolCall.arguments,
				))
				pendingToolCalls = append(pendingToolCalls, *item.toolCall)
			} else if item.assistantText != "" {
				replayMessages = append(replayMessages, models.AssistantText(item.assistantText))
			}
		}

		type pendingResult struct {
			replayCallID string
			result       models.ToolResult
		}
		results := make([]pendingResult, 0, len(pendingToolCalls))
		for _, pending := range pendingToolCalls {
			if cancel.Load() {
				emit(models.RunEvent{Type: models.RunEventCancelled, RunID: runID})
				return nil
			}
			result := executeTool(models.ToolCallRequest{
				CallID:    pending.executionCallID,
				ToolName:  pending.toolName,
				Arguments: pending.arguments,
			})
			results = append(results, pendingResult{replayCallID: pending.replayCallID, result: result})
		}

		for _, pending := range results {
			replayMessages = append(replayMessages, models.ToolResultMessage(
				pending.replayCallID,
				pending.result.ToolName,
				pending.result.Content,
				pending.result.IsError,
			))
		}

		request, err = p.buildRequest(modelID, thinkingLevel, replayMessages, instructions)
		if err != nil {
			emit(models.RunEvent{Type: models.RunEventFailed, RunID: runID, Error: err.Error()})
			return nil
		}
	}
}

// parsePendingToolCall validates a streamed function_call item. The
// executor later receives the raw transport call id; the replay history
// uses the canonical "<call_id>|fc_<item_id>" form when both are present.
func parsePendingToolCall(itemID, callID, toolName *string, arguments *json.RawMessage) (*pendingToolCall, error) {
	executionCallID, err := requiredStreamString(callID, "call_id")
	if err != nil {
		return nil, err
	}
	name, err := requiredStreamString(toolName, "tool_name")
	if err != nil {
		return nil, err
	}

	if !isV1ToolName(name) {
		return nil, fmt.Errorf(
			"Unsupported tool call '%s' from Codex API; supported tools: %s",
			name, strings.Join(v1ToolNames, ", "),
		)
	}

	if arguments == nil {
		return nil, fmt.Errorf("Malformed tool call payload for '%s': missing arguments", name)
	}
	normalizedArguments, err := normalizeToolArguments(name, *arguments)
	if err != nil {
		return nil, err
	}

	replayRawCallID := executionCallID
	if item := sanitizeOptionalStreamString(itemID); item != "" {
		replayRawCallID = executionCallID + "|" + item
	}
	replayCallID := normalizeToolCallID(replayRawCallID).canonical

	return &pendingToolCall{
		executionCallID: executionCallID,
		replayCallID:    replayCallID,
		toolName:        name,
		arguments:       normalizedArguments,
	}, nil
}

func requiredStreamString(value *string, fieldName string) (string, error) {
	if value == nil {
		return "", fmt.Errorf("Malformed tool call payload: missing required field '%s'", fieldName)
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return "", fmt.Errorf("Malformed tool call payload: field '%s' cannot be empty", fieldName)
	}
	return trimmed, nil
}

func sanitizeOptionalStreamString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

// normalizeToolArguments accepts a JSON object, or a JSON string encoding
// an object, and rejects everything else.
func normalizeToolArguments(toolName string, arguments json.RawMessage) (json.RawMessage, error) {
	var decoded any
	if err := json.Unmarshal(arguments, &decoded); err != nil {
		return nil, fmt.Errorf("Malformed tool call payload for '%s': arguments must be valid JSON (%v)", toolName, err)
	}

	switch typed := decoded.(type) {
	case string:
		var inner any
		if err := json.Unmarshal([]byte(typed), &inner); err != nil {
			return nil, fmt.Errorf("Malformed tool call payload for '%s': arguments must be valid JSON (%v)", toolName, err)
		}
		if _, ok := inner.(map[string]any); !ok {
			return nil, fmt.Errorf("Malformed tool call payload for '%s': arguments must decode to a JSON object", toolName)
		}
		return json.RawMessage(typed), nil
	case map[string]any:
		return arguments, nil
	default:
		return nil, fmt.Errorf(
			"Malformed tool call payload for '%s': arguments must be a JSON object or string, got %s",
			toolName, jsonTypeName(decoded),
		)
	}
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
