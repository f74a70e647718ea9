package codexapi

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gurpartap/tape/internal/agent"
	"github.com/gurpartap/tape/internal/codex"
	"github.com/gurpartap/tape/pkg/models"
)

func strptr(s string) *string { return &s }

func rawptr(s string) *json.RawMessage {
	raw := json.RawMessage(s)
	return &raw
}

func statusPtr(s codex.ResponseStatus) *codex.ResponseStatus { return &s }

func textDelta(delta string) codex.StreamEvent {
	return codex.StreamEvent{Type: codex.EventOutputTextDelta, Delta: delta}
}

func toolRequested(itemID, callID, toolName, arguments string) codex.StreamEvent {
	event := codex.StreamEvent{
		Type:     codex.EventToolCallRequested,
		CallID:   strptr(callID),
		ToolName: strptr(toolName),
	}
	if itemID != "" {
		event.ItemID = strptr(itemID)
	}
	if arguments != "" {
		event.Arguments = rawptr(arguments)
	}
	return event
}

// scriptedStream replays canned steps: each step's events are delivered to
// the handler in order, then the step's terminal status is returned.
type scriptedStream struct {
	steps []scriptedStep

	requests  []*codex.Request
	callCount int

	// onStep optionally runs before delivering a step's events.
	onStep func(step int, cancel agent.CancelSignal)
}

type scriptedStep struct {
	events   []codex.StreamEvent
	terminal *codex.ResponseStatus
	err      error
}

func (s *scriptedStream) StreamWithHandler(request *codex.Request, cancel agent.CancelSignal, onEvent func(codex.StreamEvent)) (*codex.ResponseStatus, error) {
	cloned := *request
	s.requests = append(s.requests, &cloned)
	stepIndex := s.callCount
	s.callCount++
	if stepIndex >= len(s.steps) {
		return statusPtr(codex.StatusCompleted), nil
	}
	step := s.steps[stepIndex]
	if s.onStep != nil {
		s.onStep(stepIndex, cancel)
	}
	for _, event := range step.events {
		onEvent(event)
	}
	return step.terminal, step.err
}

func collectEvents(t *testing.T, provider *Provider, req models.RunRequest, executor agent.ToolExecutor) ([]models.RunEvent, error) {
	t.Helper()
	if executor == nil {
		executor = func(request models.ToolCallRequest) models.ToolResult {
			return models.SuccessToolResult(request.CallID, request.ToolName, "ok")
		}
	}
	var events []models.RunEvent
	cancel := &atomic.Bool{}
	err := provider.Run(req, cancel, executor, func(event models.RunEvent) {
		events = append(events, event)
	})
	return events, err
}

func basicRequest() models.RunRequest {
	return models.RunRequest{
		RunID:        9,
		Messages:     []models.RunMessage{models.UserText("hello")},
		Instructions: "system instructions",
	}
}

func eventTypes(events []models.RunEvent) []models.RunEventType {
	types := make([]models.RunEventType, len(events))
	for i, event := range events {
		types[i] = event.Type
	}
	return types
}

func assertTransportInvariants(t *testing.T, request *codex.Request, instructions string) {
	t.Helper()
	if request.Store != false {
		t.Errorf("store = %v, want false", request.Store)
	}
	if request.Stream != true {
		t.Errorf("stream = %v, want true", request.Stream)
	}
	if len(request.Include) != 1 || request.Include[0] != "reasoning.encrypted_content" {
		t.Errorf("include = %v", request.Include)
	}
	if request.ToolChoice != "auto" {
		t.Errorf("tool_choice = %q", request.ToolChoice)
	}
	if !request.ParallelToolCalls {
		t.Errorf("parallel_tool_calls = false")
	}
	if request.Instructions != instructions {
		t.Errorf("instructions = %q, want %q", request.Instructions, instructions)
	}
	if len(request.Tools) != 5 {
		t.Fatalf("tools length = %d, want the v1 pack", len(request.Tools))
	}
	var names []string
	for _, tool := range request.Tools {
		var decoded struct {
			Type string `json:"type"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(tool, &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded.Type != "function" {
			t.Errorf("tool type = %q", decoded.Type)
		}
		names = append(names, decoded.Name)
	}
	want := []string{"bash", "read", "edit", "write", "apply_patch"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestSingleTurnTextOnly(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{textDelta("Hello")},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	events, err := collectEvents(t, provider, basicRequest(), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []models.RunEvent{
		{Type: models.RunEventStarted, RunID: 9},
		{Type: models.RunEventChunk, RunID: 9, Text: "Hello"},
		{Type: models.RunEventFinished, RunID: 9},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, events[i], want[i])
		}
	}

	if len(stream.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(stream.requests))
	}
	request := stream.requests[0]
	assertTransportInvariants(t, request, "system instructions")
	if len(request.Input) != 1 {
		t.Fatalf("input length = %d", len(request.Input))
	}
	var user map[string]any
	if err := json.Unmarshal(request.Input[0], &user); err != nil {
		t.Fatal(err)
	}
	if user["role"] != "user" {
		t.Errorf("first item = %v", user)
	}
}

func TestEmptyDeltasAreNotEmitted(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{textDelta(""), textDelta("x")},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	events, err := collectEvents(t, provider, basicRequest(), nil)
	if err != nil {
		t.Fatal(err)
	}
	chunks := 0
	for _, event := range events {
		if event.Type == models.RunEventChunk {
			chunks++
		}
	}
	if chunks != 1 {
		t.Errorf("chunks = %d, want 1", chunks)
	}
}

func TestSingleToolCallRoundtrip(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{
		{
			events: []codex.StreamEvent{
				toolRequested("fc_1", "call_1", "read", `"{\"path\":\"README.md\"}"`),
			},
			terminal: statusPtr(codex.StatusCompleted),
		},
		{
			events:   []codex.StreamEvent{textDelta("done")},
			terminal: statusPtr(codex.StatusCompleted),
		},
	}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	var executed []models.ToolCallRequest
	executor := func(request models.ToolCallRequest) models.ToolResult {
		executed = append(executed, request)
		return models.SuccessToolResult("call_1", "read", "file contents")
	}

	events, err := collectEvents(t, provider, basicRequest(), executor)
	if err != nil {
		t.Fatal(err)
	}

	if len(executed) != 1 {
		t.Fatalf("executed = %d tool calls", len(executed))
	}
	if executed[0].CallID != "call_1" || executed[0].ToolName != "read" {
		t.Errorf("execution request = %+v", executed[0])
	}
	if string(executed[0].Arguments) != `{"path":"README.md"}` {
		t.Errorf("execution arguments = %s", executed[0].Arguments)
	}

	final := events[len(events)-1]
	if final.Type != models.RunEventFinished || final.RunID != 9 {
		t.Errorf("final event = %+v", final)
	}

	if len(stream.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(stream.requests))
	}
	followUp := stream.requests[1]

	var foundCall, foundOutput bool
	for _, item := range followUp.Input {
		var decoded map[string]any
		if err := json.Unmarshal(item, &decoded); err != nil {
			t.Fatal(err)
		}
		switch decoded["type"] {
		case "function_call":
			foundCall = true
			if decoded["call_id"] != "call_1" || decoded["id"] != "fc_1" || decoded["name"] != "read" {
				t.Errorf("function call item = %v", decoded)
			}
			if decoded["arguments"] != `{"path":"README.md"}` {
				t.Errorf("arguments = %v", decoded["arguments"])
			}
		case "function_call_output":
			foundOutput = true
			if decoded["call_id"] != "call_1" || decoded["output"] != "file contents" {
				t.Errorf("function call output item = %v", decoded)
			}
		}
	}
	if !foundCall || !foundOutput {
		t.Errorf("follow-up input missing replay items: call=%v output=%v", foundCall, foundOutput)
	}
}

func TestToolExecutorReturnedCallIDIsIgnoredForReplay(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{
		{
			events: []codex.StreamEvent{
				toolRequested("fc_1", "call_1", "read", `{"path":"a"}`),
			},
			terminal: statusPtr(codex.StatusCompleted),
		},
		{
			events:   []codex.StreamEvent{textDelta("done")},
			terminal: statusPtr(codex.StatusCompleted),
		},
	}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	executor := func(request models.ToolCallRequest) models.ToolResult {
		return models.SuccessToolResult("totally-different-id", "read", "contents")
	}
	if _, err := collectEvents(t, provider, basicRequest(), executor); err != nil {
		t.Fatal(err)
	}

	followUp := stream.requests[1]
	for _, item := range followUp.Input {
		var decoded map[string]any
		if err := json.Unmarshal(item, &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded["type"] == "function_call_output" && decoded["call_id"] != "call_1" {
			t.Errorf("replay used executor call id: %v", decoded)
		}
	}
}

func TestNormalizationHardFailReturnsErrorBeforeTransport(t *testing.T) {
	stream := &scriptedStream{}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	req := models.RunRequest{
		RunID: 9,
		Messages: []models.RunMessage{
			models.UserText("x"),
			models.ToolCall("call 1", "read", args(`{"path":"a"}`)),
			models.ToolCall("call@1", "write", args(`{"path":"a","content":"b"}`)),
		},
		Instructions: "system instructions",
	}

	events, err := collectEvents(t, provider, req, nil)
	if err == nil {
		t.Fatal("run accepted colliding history")
	}
	want := "codex-api provider cannot normalize run history: duplicate normalized unresolved tool call id 'call_1'"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
	if len(events) != 0 {
		t.Errorf("events emitted before hard fail: %+v", events)
	}
	if len(stream.requests) != 0 {
		t.Errorf("transport called despite hard fail")
	}
}

func TestOrphanBackfillShapesInitialRequest(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{textDelta("ok")},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	req := models.RunRequest{
		RunID: 9,
		Messages: []models.RunMessage{
			models.UserText("u"),
			models.ToolCall("call_1", "read", args(`{"path":"R"}`)),
			models.AssistantText("a"),
		},
		Instructions: "system instructions",
	}
	if _, err := collectEvents(t, provider, req, nil); err != nil {
		t.Fatal(err)
	}

	request := stream.requests[0]
	if len(request.Input) != 4 {
		t.Fatalf("input length = %d, want 4", len(request.Input))
	}
	var synthetic map[string]any
	if err := json.Unmarshal(request.Input[2], &synthetic); err != nil {
		t.Fatal(err)
	}
	if synthetic["type"] != "function_call_output" || synthetic["output"] != "No result provided" {
		t.Errorf("synthetic item = %v", synthetic)
	}
}

func TestCancellationBeforeFirstRequest(t *testing.T) {
	stream := &scriptedStream{}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	cancel := &atomic.Bool{}
	cancel.Store(true)
	var events []models.RunEvent
	err := provider.Run(basicRequest(), cancel, func(models.ToolCallRequest) models.ToolResult {
		t.Fatal("executor invoked after cancel")
		return models.ToolResult{}
	}, func(event models.RunEvent) { events = append(events, event) })
	if err != nil {
		t.Fatal(err)
	}

	types := eventTypes(events)
	if len(types) != 2 || types[0] != models.RunEventStarted || types[1] != models.RunEventCancelled {
		t.Errorf("events = %v", types)
	}
	if len(stream.requests) != 0 {
		t.Errorf("transport called after cancel")
	}
}

func TestCancellationDuringStreamMapsToCancelled(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events: []codex.StreamEvent{textDelta("partial")},
		err:    codex.ErrCancelled,
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	events, err := collectEvents(t, provider, basicRequest(), nil)
	if err != nil {
		t.Fatal(err)
	}
	types := eventTypes(events)
	if types[0] != models.RunEventStarted || types[len(types)-1] != models.RunEventCancelled {
		t.Errorf("events = %v", types)
	}
}

func TestCancellationBetweenToolExecutions(t *testing.T) {
	cancel := &atomic.Bool{}
	stream := &scriptedStream{steps: []scriptedStep{{
		events: []codex.StreamEvent{
			toolRequested("", "call_1", "read", `{"path":"a"}`),
			toolRequested("", "call_2", "read", `{"path":"b"}`),
		},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	executions := 0
	executor := func(request models.ToolCallRequest) models.ToolResult {
		executions++
		cancel.Store(true)
		return models.SuccessToolResult(request.CallID, request.ToolName, "ok")
	}

	var events []models.RunEvent
	err := provider.Run(basicRequest(), cancel, executor, func(event models.RunEvent) {
		events = append(events, event)
	})
	if err != nil {
		t.Fatal(err)
	}

	if executions != 1 {
		t.Errorf("executions = %d, want 1 (cancel observed between tools)", executions)
	}
	types := eventTypes(events)
	if types[len(types)-1] != models.RunEventCancelled {
		t.Errorf("events = %v", types)
	}
}

func TestTerminalStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		terminal  *codex.ResponseStatus
		withTools bool
		wantType  models.RunEventType
		wantError string
	}{
		{"completed no tools", statusPtr(codex.StatusCompleted), false, models.RunEventFinished, ""},
		{"cancelled no tools", statusPtr(codex.StatusCancelled), false, models.RunEventCancelled, ""},
		{"failed no tools", statusPtr(codex.StatusFailed), false, models.RunEventFailed, "Codex API response failed"},
		{
			"in_progress no tools", statusPtr(codex.StatusInProgress), false, models.RunEventFailed,
			"Codex API response ended with non-complete terminal status 'in_progress'",
		},
		{
			"none no tools", nil, false, models.RunEventFailed,
			"Codex API stream ended without terminal status",
		},
		{"cancelled with tools", statusPtr(codex.StatusCancelled), true, models.RunEventCancelled, ""},
		{
			"failed with tools", statusPtr(codex.StatusFailed), true, models.RunEventFailed,
			"Codex API response ended with non-complete terminal status 'failed' while processing tool calls",
		},
		{
			"in_progress with tools", statusPtr(codex.StatusInProgress), true, models.RunEventFailed,
			"Codex API response ended with non-complete terminal status 'in_progress' while processing tool calls",
		},
		{
			"none with tools", nil, true, models.RunEventFailed,
			"Codex API stream ended without terminal status while processing tool calls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var streamEvents []codex.StreamEvent
			if tt.withTools {
				streamEvents = append(streamEvents, toolRequested("", "call_1", "read", `{"path":"a"}`))
			} else {
				streamEvents = append(streamEvents, textDelta("x"))
			}
			stream := &scriptedStream{steps: []scriptedStep{{
				events:   streamEvents,
				terminal: tt.terminal,
			}}}
			provider := newWithStreamClient([]string{"model-1"}, stream)

			events, err := collectEvents(t, provider, basicRequest(), nil)
			if err != nil {
				t.Fatal(err)
			}
			final := events[len(events)-1]
			if final.Type != tt.wantType {
				t.Errorf("final type = %v, want %v (events %+v)", final.Type, tt.wantType, events)
			}
			if final.Error != tt.wantError {
				t.Errorf("final error = %q, want %q", final.Error, tt.wantError)
			}
		})
	}
}

func TestUnsupportedToolFails(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{toolRequested("", "call_1", "browse", `{}`)},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	events, err := collectEvents(t, provider, basicRequest(), nil)
	if err != nil {
		t.Fatal(err)
	}
	final := events[len(events)-1]
	want := "Unsupported tool call 'browse' from Codex API; supported tools: bash, read, edit, write, apply_patch"
	if final.Type != models.RunEventFailed || final.Error != want {
		t.Errorf("final = %+v, want %q", final, want)
	}
}

func TestMalformedToolArgumentsFail(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{toolRequested("", "call_1", "read", `"not json{"`)},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	events, err := collectEvents(t, provider, basicRequest(), nil)
	if err != nil {
		t.Fatal(err)
	}
	final := events[len(events)-1]
	if final.Type != models.RunEventFailed {
		t.Fatalf("final = %+v", final)
	}
	if !strings.HasPrefix(final.Error, "Malformed tool call payload for 'read': arguments must be valid JSON") {
		t.Errorf("error = %q", final.Error)
	}
}

func TestNonObjectToolArgumentsFail(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{toolRequested("", "call_1", "read", `[1,2]`)},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	events, err := collectEvents(t, provider, basicRequest(), nil)
	if err != nil {
		t.Fatal(err)
	}
	final := events[len(events)-1]
	want := "Malformed tool call payload for 'read': arguments must be a JSON object or string, got array"
	if final.Error != want {
		t.Errorf("error = %q, want %q", final.Error, want)
	}
}

func TestTextFlushedAroundToolCallsIntoReplay(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{
		{
			events: []codex.StreamEvent{
				textDelta("before "),
				toolRequested("", "call_1", "read", `{"path":"a"}`),
				textDelta("after"),
			},
			terminal: statusPtr(codex.StatusCompleted),
		},
		{
			events:   []codex.StreamEvent{textDelta("done")},
			terminal: statusPtr(codex.StatusCompleted),
		},
	}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	if _, err := collectEvents(t, provider, basicRequest(), nil); err != nil {
		t.Fatal(err)
	}

	followUp := stream.requests[1]
	var kinds []string
	var texts []string
	for _, item := range followUp.Input {
		var decoded map[string]any
		if err := json.Unmarshal(item, &decoded); err != nil {
			t.Fatal(err)
		}
		if itemType, ok := decoded["type"].(string); ok {
			kinds = append(kinds, itemType)
			if itemType == "message" {
				content := decoded["content"].([]any)[0].(map[string]any)
				texts = append(texts, content["text"].(string))
			}
		} else {
			kinds = append(kinds, "user")
		}
	}

	// user, assistant("before "), function_call, assistant("after"),
	// function_call_output — the trailing text flushes after the stream
	// and replays after the call, with the result appended last.
	if len(texts) != 2 || texts[0] != "before " || texts[1] != "after" {
		t.Errorf("assistant texts = %v (kinds %v)", texts, kinds)
	}
}

func TestChunkEmittedBeforeTerminalProcessing(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{textDelta("a"), textDelta("b")},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	var order []string
	cancel := &atomic.Bool{}
	err := provider.Run(basicRequest(), cancel, func(models.ToolCallRequest) models.ToolResult {
		return models.ToolResult{}
	}, func(event models.RunEvent) {
		order = append(order, string(event.Type)+":"+event.Text)
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"started:", "chunk:a", "chunk:b", "finished:"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestThinkingCycleOrderIsModelFamilyAware(t *testing.T) {
	provider := newWithStreamClient([]string{"gpt-5.2-codex", "gpt-4o"}, &scriptedStream{})

	if profile := provider.Profile(); profile.ThinkingLevel != "off" {
		t.Fatalf("initial thinking = %q", profile.ThinkingLevel)
	}

	var seen []string
	for range 7 {
		profile, err := provider.CycleThinkingLevel()
		if err != nil {
			t.Fatal(err)
		}
		seen = append(seen, profile.ThinkingLevel)
	}
	want := []string{"minimal", "low", "medium", "high", "xhigh", "off", "minimal"}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("cycle[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestModelCycleClampsXHighToHigh(t *testing.T) {
	provider := newWithStreamClient([]string{"gpt-5.2-codex", "gpt-4o"}, &scriptedStream{})

	// Walk to xhigh on the codex model.
	for range 5 {
		if _, err := provider.CycleThinkingLevel(); err != nil {
			t.Fatal(err)
		}
	}
	if profile := provider.Profile(); profile.ThinkingLevel != "xhigh" {
		t.Fatalf("thinking = %q, want xhigh", profile.ThinkingLevel)
	}

	profile, err := provider.CycleModel()
	if err != nil {
		t.Fatal(err)
	}
	if profile.ModelID != "gpt-4o" {
		t.Errorf("model = %q", profile.ModelID)
	}
	if profile.ThinkingLevel != "high" {
		t.Errorf("thinking = %q, want clamped high", profile.ThinkingLevel)
	}
}

func TestSupportsXHighThinking(t *testing.T) {
	tests := []struct {
		modelID string
		want    bool
	}{
		{"gpt-5.2-codex", true},
		{"openai/gpt-5.3-codex-mini", true},
		{"gpt-5.2", false},
		{"gpt-5.1-codex", false},
		{"codex-gpt-5.2", false},
	}
	for _, tt := range tests {
		if got := supportsXHighThinking(tt.modelID); got != tt.want {
			t.Errorf("supportsXHighThinking(%q) = %v, want %v", tt.modelID, got, tt.want)
		}
	}
}

func TestReasoningPayloadIncludedWhenThinkingEnabled(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{textDelta("ok")},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)
	if _, err := provider.CycleThinkingLevel(); err != nil { // off -> minimal
		t.Fatal(err)
	}

	if _, err := collectEvents(t, provider, basicRequest(), nil); err != nil {
		t.Fatal(err)
	}
	request := stream.requests[0]
	if request.Reasoning == nil || request.Reasoning.Effort != "minimal" {
		t.Errorf("reasoning = %+v", request.Reasoning)
	}
}

func TestReasoningOmittedWhenThinkingOff(t *testing.T) {
	stream := &scriptedStream{steps: []scriptedStep{{
		events:   []codex.StreamEvent{textDelta("ok")},
		terminal: statusPtr(codex.StatusCompleted),
	}}}
	provider := newWithStreamClient([]string{"model-1"}, stream)

	if _, err := collectEvents(t, provider, basicRequest(), nil); err != nil {
		t.Fatal(err)
	}
	if stream.requests[0].Reasoning != nil {
		t.Errorf("reasoning sent while off: %+v", stream.requests[0].Reasoning)
	}
}

func TestToolDefinitionsAdvertiseOnlyV1Tools(t *testing.T) {
	provider := newWithStreamClient([]string{"model-1"}, &scriptedStream{})
	definitions := provider.ToolDefinitions()
	want := []string{"bash", "read", "edit", "write", "apply_patch"}
	if len(definitions) != len(want) {
		t.Fatalf("definitions = %d", len(definitions))
	}
	for i, definition := range definitions {
		if definition.Name != want[i] {
			t.Errorf("definition[%d] = %q", i, definition.Name)
		}
		var schema map[string]any
		if err := json.Unmarshal(definition.InputSchema, &schema); err != nil {
			t.Fatalf("schema for %s: %v", definition.Name, err)
		}
		if schema["additionalProperties"] != false {
			t.Errorf("%s schema allows additional properties", definition.Name)
		}
	}
}

func TestProfileReportsProviderID(t *testing.T) {
	provider := newWithStreamClient([]string{"model-a", "model-b"}, &scriptedStream{})
	profile := provider.Profile()
	if profile.ProviderID != "codex-api" || profile.ModelID != "model-a" {
		t.Errorf("profile = %+v", profile)
	}

	profile, err := provider.CycleModel()
	if err != nil {
		t.Fatal(err)
	}
	if profile.ModelID != "model-b" {
		t.Errorf("cycled model = %q", profile.ModelID)
	}
}

func TestRunRejectsBlankInstructionsBeforeEvents(t *testing.T) {
	provider := newWithStreamClient([]string{"model-1"}, &scriptedStream{})
	req := basicRequest()
	req.Instructions = "  "

	events, err := collectEvents(t, provider, req, nil)
	if err == nil || err.Error() != "codex-api provider requires non-empty run instructions before sending requests" {
		t.Errorf("err = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %+v", events)
	}
}

func TestValidateToolArgumentsAgainstSchema(t *testing.T) {
	if err := ValidateToolArguments("bash", args(`{"command":"ls"}`)); err != nil {
		t.Errorf("valid bash args rejected: %v", err)
	}
	if err := ValidateToolArguments("bash", args(`{"cmd":"ls"}`)); err == nil {
		t.Error("missing required command accepted")
	}
	if err := ValidateToolArguments("read", args(`{"path":"a","extra":1}`)); err == nil {
		t.Error("additional property accepted")
	}
	if err := ValidateToolArguments("bash", args(`{"command":"ls","timeout_sec":0}`)); err == nil {
		t.Error("timeout below minimum accepted")
	}
}
