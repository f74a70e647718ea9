package agent

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gurpartap/tape/pkg/models"
)

// ErrRunAlreadyActive is returned by StartRun while a run is in flight.
// The UI matches on the message, so it is stable.
var ErrRunAlreadyActive = errors.New("Run already active")

// PostTerminalToolRejection is the content of the error tool result handed
// back for tool executions attempted after the run reached a terminal
// event.
const PostTerminalToolRejection = "tool execution rejected: run already reached a terminal event"

// EventSink receives provider run events, in emission order.
type EventSink func(models.RunEvent)

// ToolObserver watches host-side tool execution for the UI timeline.
type ToolObserver interface {
	ToolCallStarted(runID models.RunID, callID, toolName string, arguments []byte)
	ToolCallFinished(runID models.RunID, toolName, callID string, isError bool, content []byte, contentText string)
}

// ArgumentValidator checks tool arguments before execution; a non-nil
// error turns into an error tool result without invoking the executor.
type ArgumentValidator func(toolName string, arguments []byte) error

// Controller owns run lifecycle on behalf of the UI: one active run at a
// time, serialized event delivery, tool timeline observation, and
// post-terminal tool rejection.
type Controller struct {
	provider  RunProvider
	executor  ToolExecutor
	sink      EventSink
	observer  ToolObserver
	validator ArgumentValidator

	mu        sync.Mutex
	nextRunID models.RunID
	active    *activeRun

	deliver sync.Mutex
}

type activeRun struct {
	runID    models.RunID
	cancel   *atomic.Bool
	terminal atomic.Bool
}

// NewController wires a controller. observer and validator may be nil.
func NewController(provider RunProvider, executor ToolExecutor, sink EventSink) *Controller {
	return &Controller{
		provider:  provider,
		executor:  executor,
		sink:      sink,
		nextRunID: 1,
	}
}

// SetToolObserver installs the tool timeline observer.
func (c *Controller) SetToolObserver(observer ToolObserver) { c.observer = observer }

// SetArgumentValidator installs the pre-execution argument check.
func (c *Controller) SetArgumentValidator(validator ArgumentValidator) { c.validator = validator }

// Provider returns the wrapped provider.
func (c *Controller) Provider() RunProvider { return c.provider }

// StartRun begins a run over the given history. It returns
// ErrRunAlreadyActive while another run is in flight. The provider runs on
// its own goroutine; events are delivered to the sink in emission order.
func (c *Controller) StartRun(messages []models.RunMessage, instructions string) (models.RunID, error) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return 0, ErrRunAlreadyActive
	}
	runID := c.nextRunID
	c.nextRunID++
	run := &activeRun{runID: runID, cancel: &atomic.Bool{}}
	c.active = run
	c.mu.Unlock()

	req := models.RunRequest{
		RunID:        runID,
		Messages:     append([]models.RunMessage(nil), messages...),
		Instructions: instructions,
	}

	go func() {
		emit := func(event models.RunEvent) {
			c.deliver.Lock()
			defer c.deliver.Unlock()
			if isTerminalEvent(event) {
				run.terminal.Store(true)
			}
			if c.sink != nil {
				c.sink(event)
			}
		}

		executor := func(request models.ToolCallRequest) models.ToolResult {
			return c.executeObserved(run, request)
		}

		err := c.provider.Run(req, run.cancel, executor, emit)
		if err != nil {
			// Pre-flight failure: the provider emitted nothing, so the UI
			// learns about it through a Failed event.
			emit(models.RunEvent{Type: models.RunEventFailed, RunID: runID, Error: err.Error()})
		}

		c.mu.Lock()
		if c.active == run {
			c.active = nil
		}
		c.mu.Unlock()
	}()

	return runID, nil
}

func (c *Controller) executeObserved(run *activeRun, request models.ToolCallRequest) models.ToolResult {
	if run.terminal.Load() {
		return models.ErrorToolResult(request.CallID, request.ToolName, PostTerminalToolRejection)
	}

	if c.observer != nil {
		c.observer.ToolCallStarted(run.runID, request.CallID, request.ToolName, request.Arguments)
	}

	var result models.ToolResult
	executed := false
	if c.validator != nil {
		if err := c.validator(request.ToolName, request.Arguments); err != nil {
			result = models.ErrorToolResult(request.CallID, request.ToolName,
				"invalid arguments for '"+request.ToolName+"': "+err.Error())
			executed = true
		}
	}
	if !executed {
		if c.executor != nil {
			result = c.executor(request)
		} else {
			result = models.ErrorToolResult(request.CallID, request.ToolName, "no tool executor configured")
		}
	}

	if c.observer != nil {
		c.observer.ToolCallFinished(run.runID, result.ToolName, request.CallID, result.IsError, result.Content, result.ContentText())
	}
	return result
}

// CancelRun sets the cancel signal for the given run when it is active.
func (c *Controller) CancelRun(runID models.RunID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.runID == runID {
		c.active.cancel.Store(true)
	}
}

// ActiveRunID reports the in-flight run, if any.
func (c *Controller) ActiveRunID() (models.RunID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return 0, false
	}
	return c.active.runID, true
}

func isTerminalEvent(event models.RunEvent) bool {
	switch event.Type {
	case models.RunEventFinished, models.RunEventCancelled, models.RunEventFailed:
		return true
	default:
		return false
	}
}
