package agent

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gurpartap/tape/pkg/models"
)

// stubProvider drives a scripted Run implementation.
type stubProvider struct {
	run func(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error
}

func (p *stubProvider) Profile() models.ProviderProfile {
	return models.ProviderProfile{ProviderID: "stub", ModelID: "stub-model"}
}

func (p *stubProvider) ToolDefinitions() []models.ToolDefinition { return nil }

func (p *stubProvider) CycleModel() (models.ProviderProfile, error) {
	return p.Profile(), nil
}

func (p *stubProvider) CycleThinkingLevel() (models.ProviderProfile, error) {
	return p.Profile(), nil
}

func (p *stubProvider) Run(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error {
	return p.run(req, cancel, executeTool, emit)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.RunEvent
	done   chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{done: make(chan struct{}, 8)}
}

func (r *eventRecorder) sink(event models.RunEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	terminal := event.Type == models.RunEventFinished ||
		event.Type == models.RunEventCancelled ||
		event.Type == models.RunEventFailed
	r.mu.Unlock()
	if terminal {
		r.done <- struct{}{}
	}
}

func (r *eventRecorder) wait(t *testing.T) []models.RunEvent {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not reach a terminal event")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.RunEvent(nil), r.events...)
}

func userHistory() []models.RunMessage {
	return []models.RunMessage{models.UserText("hi")}
}

func TestControllerDeliversEventsInOrder(t *testing.T) {
	provider := &stubProvider{run: func(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error {
		emit(models.RunEvent{Type: models.RunEventStarted, RunID: req.RunID})
		emit(models.RunEvent{Type: models.RunEventChunk, RunID: req.RunID, Text: "hello "})
		emit(models.RunEvent{Type: models.RunEventChunk, RunID: req.RunID, Text: "world"})
		emit(models.RunEvent{Type: models.RunEventFinished, RunID: req.RunID})
		return nil
	}}
	recorder := newEventRecorder()
	controller := NewController(provider, nil, recorder.sink)

	runID, err := controller.StartRun(userHistory(), "sys")
	if err != nil {
		t.Fatal(err)
	}

	events := recorder.wait(t)
	if len(events) != 4 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Type != models.RunEventStarted || events[0].RunID != runID {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Text != "hello " || events[2].Text != "world" {
		t.Errorf("chunk order wrong: %+v", events)
	}
	if events[3].Type != models.RunEventFinished {
		t.Errorf("final = %+v", events[3])
	}
}

func TestControllerRejectsConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	provider := &stubProvider{run: func(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error {
		emit(models.RunEvent{Type: models.RunEventStarted, RunID: req.RunID})
		<-release
		emit(models.RunEvent{Type: models.RunEventFinished, RunID: req.RunID})
		return nil
	}}
	recorder := newEventRecorder()
	controller := NewController(provider, nil, recorder.sink)

	if _, err := controller.StartRun(userHistory(), "sys"); err != nil {
		t.Fatal(err)
	}
	if _, err := controller.StartRun(userHistory(), "sys"); !errors.Is(err, ErrRunAlreadyActive) {
		t.Errorf("second run err = %v, want ErrRunAlreadyActive", err)
	}
	if err := ErrRunAlreadyActive; err.Error() != "Run already active" {
		t.Errorf("stable message = %q", err.Error())
	}

	close(release)
	recorder.wait(t)

	// A new run is accepted after the first completes.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, active := controller.ActiveRunID(); !active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("active run never cleared")
		}
		time.Sleep(time.Millisecond)
	}
	release = make(chan struct{})
	close(release)
	if _, err := controller.StartRun(userHistory(), "sys"); err != nil {
		t.Errorf("third run rejected: %v", err)
	}
	recorder.wait(t)
}

func TestControllerCancelSetsSignal(t *testing.T) {
	observed := make(chan bool, 1)
	started := make(chan models.RunID, 1)
	provider := &stubProvider{run: func(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error {
		emit(models.RunEvent{Type: models.RunEventStarted, RunID: req.RunID})
		started <- req.RunID
		deadline := time.Now().Add(2 * time.Second)
		for !cancel.Load() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		observed <- cancel.Load()
		emit(models.RunEvent{Type: models.RunEventCancelled, RunID: req.RunID})
		return nil
	}}
	recorder := newEventRecorder()
	controller := NewController(provider, nil, recorder.sink)

	if _, err := controller.StartRun(userHistory(), "sys"); err != nil {
		t.Fatal(err)
	}
	controller.CancelRun(<-started)

	if !<-observed {
		t.Error("cancel signal not observed by provider")
	}
	events := recorder.wait(t)
	if events[len(events)-1].Type != models.RunEventCancelled {
		t.Errorf("final = %+v", events[len(events)-1])
	}
}

func TestControllerObservesToolExecution(t *testing.T) {
	provider := &stubProvider{run: func(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error {
		emit(models.RunEvent{Type: models.RunEventStarted, RunID: req.RunID})
		result := executeTool(models.ToolCallRequest{
			CallID:    "call_1",
			ToolName:  "read",
			Arguments: json.RawMessage(`{"path":"a"}`),
		})
		if result.IsError {
			emit(models.RunEvent{Type: models.RunEventFailed, RunID: req.RunID, Error: result.ContentText()})
			return nil
		}
		emit(models.RunEvent{Type: models.RunEventFinished, RunID: req.RunID})
		return nil
	}}

	var timeline []string
	var timelineMu sync.Mutex
	observer := &funcObserver{
		started: func(runID models.RunID, callID, toolName string, arguments []byte) {
			timelineMu.Lock()
			timeline = append(timeline, "start:"+toolName+":"+callID)
			timelineMu.Unlock()
		},
		finished: func(runID models.RunID, toolName, callID string, isError bool, content []byte, contentText string) {
			timelineMu.Lock()
			timeline = append(timeline, "finish:"+toolName+":"+contentText)
			timelineMu.Unlock()
		},
	}

	executor := func(request models.ToolCallRequest) models.ToolResult {
		return models.SuccessToolResult(request.CallID, request.ToolName, "contents")
	}

	recorder := newEventRecorder()
	controller := NewController(provider, executor, recorder.sink)
	controller.SetToolObserver(observer)

	if _, err := controller.StartRun(userHistory(), "sys"); err != nil {
		t.Fatal(err)
	}
	events := recorder.wait(t)
	if events[len(events)-1].Type != models.RunEventFinished {
		t.Fatalf("events = %+v", events)
	}

	timelineMu.Lock()
	defer timelineMu.Unlock()
	if len(timeline) != 2 || timeline[0] != "start:read:call_1" || timeline[1] != "finish:read:contents" {
		t.Errorf("timeline = %v", timeline)
	}
}

func TestControllerValidatorTurnsBadArgumentsIntoErrorResult(t *testing.T) {
	provider := &stubProvider{run: func(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error {
		emit(models.RunEvent{Type: models.RunEventStarted, RunID: req.RunID})
		result := executeTool(models.ToolCallRequest{
			CallID:    "call_1",
			ToolName:  "read",
			Arguments: json.RawMessage(`{}`),
		})
		if !result.IsError {
			emit(models.RunEvent{Type: models.RunEventFailed, RunID: req.RunID, Error: "validator did not fire"})
			return nil
		}
		emit(models.RunEvent{Type: models.RunEventFinished, RunID: req.RunID})
		return nil
	}}

	executorCalled := false
	executor := func(request models.ToolCallRequest) models.ToolResult {
		executorCalled = true
		return models.SuccessToolResult(request.CallID, request.ToolName, "ok")
	}

	recorder := newEventRecorder()
	controller := NewController(provider, executor, recorder.sink)
	controller.SetArgumentValidator(func(toolName string, arguments []byte) error {
		return errors.New("path is required")
	})

	if _, err := controller.StartRun(userHistory(), "sys"); err != nil {
		t.Fatal(err)
	}
	events := recorder.wait(t)
	if events[len(events)-1].Type != models.RunEventFinished {
		t.Errorf("events = %+v", events)
	}
	if executorCalled {
		t.Error("executor invoked despite validation failure")
	}
}

func TestControllerRejectsPostTerminalToolExecution(t *testing.T) {
	provider := &stubProvider{run: func(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error {
		emit(models.RunEvent{Type: models.RunEventStarted, RunID: req.RunID})
		emit(models.RunEvent{Type: models.RunEventFinished, RunID: req.RunID})

		result := executeTool(models.ToolCallRequest{
			CallID:    "late",
			ToolName:  "bash",
			Arguments: json.RawMessage(`{"command":"ls"}`),
		})
		if !result.IsError || !strings.Contains(result.ContentText(), "terminal") {
			panic("post-terminal execution was not rejected")
		}
		return nil
	}}

	executed := false
	executor := func(request models.ToolCallRequest) models.ToolResult {
		executed = true
		return models.ToolResult{}
	}

	recorder := newEventRecorder()
	controller := NewController(provider, executor, recorder.sink)
	if _, err := controller.StartRun(userHistory(), "sys"); err != nil {
		t.Fatal(err)
	}
	recorder.wait(t)

	time.Sleep(50 * time.Millisecond)
	if executed {
		t.Error("executor ran after terminal event")
	}
}

func TestControllerSurfacesPreflightErrorAsFailedEvent(t *testing.T) {
	provider := &stubProvider{run: func(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error {
		return errors.New("codex-api provider requires non-empty run instructions before sending requests")
	}}
	recorder := newEventRecorder()
	controller := NewController(provider, nil, recorder.sink)

	if _, err := controller.StartRun(userHistory(), ""); err != nil {
		t.Fatal(err)
	}
	events := recorder.wait(t)
	if len(events) != 1 || events[0].Type != models.RunEventFailed {
		t.Errorf("events = %+v", events)
	}
}

type funcObserver struct {
	started  func(models.RunID, string, string, []byte)
	finished func(models.RunID, string, string, bool, []byte, string)
}

func (o *funcObserver) ToolCallStarted(runID models.RunID, callID, toolName string, arguments []byte) {
	o.started(runID, callID, toolName, arguments)
}

func (o *funcObserver) ToolCallFinished(runID models.RunID, toolName, callID string, isError bool, content []byte, contentText string) {
	o.finished(runID, toolName, callID, isError, content, contentText)
}
