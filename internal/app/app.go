package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gurpartap/tape/pkg/models"
)

// ModeKind is the UI mode discriminator.
type ModeKind uint8

const (
	ModeIdle ModeKind = iota
	ModeRunning
	ModeError
	ModeExiting
)

// Mode is the UI mode with its payload.
type Mode struct {
	Kind  ModeKind
	RunID models.RunID
	Error string
}

// Role tags transcript messages.
type Role uint8

const (
	RoleUser Role = iota
	RoleAssistant
	RoleSystem
	RoleTool
)

// Message is one transcript line.
type Message struct {
	Role      Role
	Content   string
	Streaming bool
	RunID     models.RunID
	HasRunID  bool
}

// HostOps is the surface the app drives on the host runtime.
type HostOps interface {
	StartRun(messages []models.RunMessage, instructions string) (models.RunID, error)
	CancelRun(runID models.RunID)
	RequestRender()
	RequestStop()
}

const (
	helpText              = "Commands: /help, /clear, /cancel, /quit"
	errRunAlreadyActive   = "Run already active"
	runInProgressNotice   = "Run already in progress. Use /cancel to stop it."
	cancellingNotice      = "Cancelling active run, please wait."
	noActiveRunNotice     = "No active run"
	runCancelledNotice    = "Run cancelled"
	transcriptClearedText = "Transcript cleared"
)

// SystemInstructionsEnvVar overrides the built-in system instructions.
const SystemInstructionsEnvVar = "CODING_AGENT_SYSTEM_INSTRUCTIONS"

// DefaultSystemInstructions is used when the env override is unset or
// blank.
const DefaultSystemInstructions = "You are a careful coding agent. Follow user requests exactly, keep output deterministic, and fail explicitly when constraints cannot be satisfied."

// SystemInstructionsFrom sanitizes a raw override into instructions.
func SystemInstructionsFrom(raw string, ok bool) string {
	if !ok {
		return DefaultSystemInstructions
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultSystemInstructions
	}
	return trimmed
}

type inputHistory struct {
	entries   []string
	cursor    int
	hasCursor bool
	draft     string
}

func (h *inputHistory) record(text string) {
	h.entries = append(h.entries, text)
	h.hasCursor = false
	h.draft = ""
}

func (h *inputHistory) resetNavigation() {
	h.hasCursor = false
	h.draft = ""
}

func (h *inputHistory) previous(currentInput string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.hasCursor && h.cursor >= len(h.entries) {
		h.hasCursor = false
	}
	if !h.hasCursor {
		h.draft = currentInput
		h.cursor = len(h.entries) - 1
		h.hasCursor = true
		return h.entries[h.cursor], true
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.entries[h.cursor], true
}

func (h *inputHistory) next() (string, bool) {
	if !h.hasCursor {
		return "", false
	}
	if h.cursor >= len(h.entries) || h.cursor+1 >= len(h.entries) {
		h.hasCursor = false
		draft := h.draft
		h.draft = ""
		return draft, true
	}
	h.cursor++
	return h.entries[h.cursor], true
}

type pendingRunMemory struct {
	runID   models.RunID
	entries []models.RunMessage
}

// App is the UI state machine. It is single-threaded: the host serializes
// run events onto the same goroutine that handles input.
type App struct {
	Mode       Mode
	Input      string
	Transcript []Message
	ShouldExit bool

	conversation []models.RunMessage
	pending      *pendingRunMemory
	history      inputHistory

	cancellingRun      models.RunID
	cancelling         bool
	systemInstructions string
}

// New builds an app with the default system instructions.
func New() *App {
	return NewWithSystemInstructions("")
}

// NewWithSystemInstructions builds an app; blank instructions fall back to
// the default.
func NewWithSystemInstructions(systemInstructions string) *App {
	return &App{
		systemInstructions: SystemInstructionsFrom(systemInstructions, systemInstructions != ""),
	}
}

// SystemInstructions returns the active system instructions.
func (a *App) SystemInstructions() string { return a.systemInstructions }

// ConversationMessages returns the committed model-facing history.
func (a *App) ConversationMessages() []models.RunMessage { return a.conversation }

// HistoryEntries returns the submitted prompt history, oldest first.
func (a *App) HistoryEntries() []string { return a.history.entries }

// HistoryCursor returns the active navigation cursor, if any.
func (a *App) HistoryCursor() (int, bool) { return a.history.cursor, a.history.hasCursor }

// PushHistoryEntry records a prompt and resets navigation.
func (a *App) PushHistoryEntry(text string) { a.history.record(text) }

// OnInputReplace replaces the draft input and invalidates history
// navigation.
func (a *App) OnInputReplace(text string) {
	a.Input = text
	a.history.resetNavigation()
}

// OnInputHistoryPrevious steps back through history, saving the draft on
// the first step.
func (a *App) OnInputHistoryPrevious() {
	if text, ok := a.history.previous(a.Input); ok {
		a.Input = text
	}
}

// OnInputHistoryNext steps forward through history, restoring the draft
// past the newest entry.
func (a *App) OnInputHistoryNext() {
	if text, ok := a.history.next(); ok {
		a.Input = text
	}
}

// PushSystemMessage appends a system transcript line.
func (a *App) PushSystemMessage(content string) { a.pushSystem(content) }

// ToolCallArguments returns the recorded arguments for a call id, checking
// pending run memory for the given run first, then committed history.
func (a *App) ToolCallArguments(runID models.RunID, callID string) (json.RawMessage, bool) {
	if a.pending != nil && a.pending.runID == runID {
		for i := len(a.pending.entries) - 1; i >= 0; i-- {
			entry := a.pending.entries[i]
			if entry.Kind == models.RunMessageToolCall && entry.CallID == callID {
				return entry.Arguments, true
			}
		}
	}
	for i := len(a.conversation) - 1; i >= 0; i-- {
		entry := a.conversation[i]
		if entry.Kind == models.RunMessageToolCall && entry.CallID == callID {
			return entry.Arguments, true
		}
	}
	return nil, false
}

// OnSubmit consumes the input buffer: slash command dispatch or run start.
func (a *App) OnSubmit(host HostOps) {
	submitted := a.Input
	a.Input = ""
	prompt := strings.TrimSpace(submitted)

	if prompt == "" {
		host.RequestRender()
		return
	}

	if command, ok := ParseSlashCommand(prompt); ok {
		switch command.Kind {
		case CommandHelp:
			a.pushSystem(helpText)
			host.RequestRender()
		case CommandClear:
			a.Transcript = nil
			a.conversation = nil
			a.pending = nil
			a.pushSystem(transcriptClearedText)
			host.RequestRender()
		case CommandCancel:
			a.OnCancel(host)
		case CommandQuit:
			a.OnQuit(host)
		case CommandUnknown:
			a.pushSystem("Unknown command: " + command.Raw)
			host.RequestRender()
		}
		return
	}

	if a.Mode.Kind == ModeRunning {
		a.pushSystem(runInProgressNotice)
		host.RequestRender()
		return
	}
	if a.cancelling {
		a.pushSystem(cancellingNotice)
		host.RequestRender()
		return
	}

	runMessages := append(append([]models.RunMessage(nil), a.conversation...), models.UserText(prompt))

	a.PushHistoryEntry(prompt)
	a.Transcript = append(a.Transcript, Message{Role: RoleUser, Content: prompt})
	a.conversation = append(a.conversation, models.UserText(prompt))

	runID, err := host.StartRun(runMessages, a.systemInstructions)
	switch {
	case err == nil:
		a.Mode = Mode{Kind: ModeRunning, RunID: runID}
	case err.Error() == errRunAlreadyActive:
		a.rollbackSubmittedUserTurn(prompt)
		a.pushSystem(runInProgressNotice)
	default:
		a.Mode = Mode{Kind: ModeError, Error: err.Error()}
		a.pushSystem("Failed to start run: " + err.Error())
	}

	host.RequestRender()
}

func (a *App) rollbackSubmittedUserTurn(prompt string) {
	if n := len(a.history.entries); n > 0 && a.history.entries[n-1] == prompt {
		a.history.entries = a.history.entries[:n-1]
	}
	if n := len(a.Transcript); n > 0 {
		last := a.Transcript[n-1]
		if last.Role == RoleUser && last.Content == prompt && !last.Streaming && !last.HasRunID {
			a.Transcript = a.Transcript[:n-1]
		}
	}
	if n := len(a.conversation); n > 0 {
		last := a.conversation[n-1]
		if last.Kind == models.RunMessageUserText && last.Text == prompt {
			a.conversation = a.conversation[:n-1]
		}
	}
}

// OnCancel requests cancellation of the active run.
func (a *App) OnCancel(host HostOps) {
	if a.cancelling {
		host.RequestRender()
		return
	}

	if a.Mode.Kind == ModeRunning {
		runID := a.Mode.RunID
		a.cancellingRun = runID
		a.cancelling = true
		a.finalizeStream(runID)
		a.Mode = Mode{Kind: ModeIdle}
		a.pushSystem(runCancelledNotice)
		host.CancelRun(runID)
	} else {
		a.pushSystem(noActiveRunNotice)
	}

	host.RequestRender()
}

// OnControlC clears a non-empty input, cancels an active run, or quits.
func (a *App) OnControlC(host HostOps) {
	if a.Input != "" {
		a.OnInputReplace("")
		host.RequestRender()
		return
	}
	if a.Mode.Kind == ModeRunning {
		a.OnCancel(host)
		return
	}
	a.OnQuit(host)
}

// OnQuit moves to Exiting and stops the host loop.
func (a *App) OnQuit(host HostOps) {
	a.Mode = Mode{Kind: ModeExiting}
	a.ShouldExit = true
	host.RequestStop()
	host.RequestRender()
}

// OnRunStarted appends a streaming assistant placeholder unless one
// already exists for the run.
func (a *App) OnRunStarted(runID models.RunID) {
	if !a.isActiveRun(runID) {
		return
	}
	if a.isCancelling(runID) || a.hasAssistantForRun(runID) {
		return
	}
	a.Transcript = append(a.Transcript, Message{
		Role:      RoleAssistant,
		Streaming: true,
		RunID:     runID,
		HasRunID:  true,
	})
}

// OnRunChunk appends text to the run's last assistant line and coalesces
// into pending run memory.
func (a *App) OnRunChunk(runID models.RunID, chunk string) {
	if !a.isActiveRun(runID) && !a.isCancelling(runID) {
		return
	}

	streamActive := !a.isCancelling(runID)

	appended := false
	for i := len(a.Transcript) - 1; i >= 0; i-- {
		message := &a.Transcript[i]
		if message.Role == RoleAssistant && message.HasRunID && message.RunID == runID {
			message.Content += chunk
			if !streamActive {
				message.Streaming = false
			}
			appended = true
			break
		}
	}
	if !appended {
		a.Transcript = append(a.Transcript, Message{
			Role:      RoleAssistant,
			Content:   chunk,
			Streaming: streamActive,
			RunID:     runID,
			HasRunID:  true,
		})
	}

	a.appendPendingAssistantChunk(runID, chunk)
}

// OnToolCallStarted records the tool call in pending memory and appends a
// timeline line.
func (a *App) OnToolCallStarted(runID models.RunID, callID, toolName string, arguments json.RawMessage) {
	if !a.shouldApplyRunEvent(runID) {
		return
	}
	pending := a.ensurePendingRunMemory(runID)
	pending.entries = append(pending.entries, models.ToolCall(callID, toolName, arguments))
	a.pushTool(runID, fmt.Sprintf("Tool %s (%s) started", toolName, callID))
}

// OnToolCallFinished records the result in pending memory and appends a
// timeline line.
func (a *App) OnToolCallFinished(runID models.RunID, toolName, callID string, isError bool, content json.RawMessage, contentText string) {
	if !a.shouldApplyRunEvent(runID) {
		return
	}
	pending := a.ensurePendingRunMemory(runID)
	pending.entries = append(pending.entries, models.ToolResultMessage(callID, toolName, content, isError))

	outcome := "completed"
	if isError {
		outcome = "failed"
	}
	message := fmt.Sprintf("Tool %s (%s) %s", toolName, callID, outcome)
	if isError && contentText != "" {
		message += ": " + contentText
	}
	a.pushTool(runID, message)
}

// OnRunFinished finalizes the stream and commits pending memory.
func (a *App) OnRunFinished(runID models.RunID) {
	if !a.shouldApplyRunEvent(runID) {
		return
	}
	if a.isCancelling(runID) {
		a.finalizeStream(runID)
		a.discardPendingRunMemory(runID)
		a.finalizeCancelledRun(runID)
		return
	}
	if !a.isActiveRun(runID) {
		return
	}
	a.finalizeStream(runID)
	a.commitPendingRunMemory(runID)
	a.Mode = Mode{Kind: ModeIdle}
}

// OnRunFailed finalizes the stream, discards pending memory, and surfaces
// the error.
func (a *App) OnRunFailed(runID models.RunID, errorMessage string) {
	if !a.shouldApplyRunEvent(runID) {
		return
	}
	if a.isCancelling(runID) {
		a.finalizeStream(runID)
		a.discardPendingRunMemory(runID)
		a.finalizeCancelledRun(runID)
		return
	}
	if !a.isActiveRun(runID) {
		return
	}
	a.finalizeStream(runID)
	a.discardPendingRunMemory(runID)
	a.Mode = Mode{Kind: ModeError, Error: errorMessage}
	a.pushSystem("Run failed: " + errorMessage)
}

// OnRunCancelled completes the cancel path for the run being torn down.
func (a *App) OnRunCancelled(runID models.RunID) {
	if !a.shouldApplyRunEvent(runID) || !a.isCancelling(runID) {
		return
	}
	a.finalizeStream(runID)
	a.discardPendingRunMemory(runID)
	a.finalizeCancelledRun(runID)
}

// ApplyRunEvent dispatches a provider run event onto the state machine.
func (a *App) ApplyRunEvent(event models.RunEvent) {
	switch event.Type {
	case models.RunEventStarted:
		a.OnRunStarted(event.RunID)
	case models.RunEventChunk:
		a.OnRunChunk(event.RunID, event.Text)
	case models.RunEventFinished:
		a.OnRunFinished(event.RunID)
	case models.RunEventCancelled:
		a.OnRunCancelled(event.RunID)
	case models.RunEventFailed:
		a.OnRunFailed(event.RunID, event.Error)
	}
}

func (a *App) ensurePendingRunMemory(runID models.RunID) *pendingRunMemory {
	if a.pending == nil {
		a.pending = &pendingRunMemory{runID: runID}
	}
	if a.pending.runID != runID {
		panic(fmt.Sprintf("pending run memory belongs to run %d, cannot append event for run %d", a.pending.runID, runID))
	}
	return a.pending
}

func (a *App) appendPendingAssistantChunk(runID models.RunID, chunk string) {
	if chunk == "" {
		return
	}
	pending := a.ensurePendingRunMemory(runID)
	if n := len(pending.entries); n > 0 && pending.entries[n-1].Kind == models.RunMessageAssistantText {
		pending.entries[n-1].Text += chunk
		return
	}
	pending.entries = append(pending.entries, models.AssistantText(chunk))
}

func (a *App) commitPendingRunMemory(runID models.RunID) {
	if a.pending == nil {
		return
	}
	if a.pending.runID != runID {
		panic(fmt.Sprintf("pending run memory belongs to run %d, cannot commit run %d", a.pending.runID, runID))
	}
	a.conversation = append(a.conversation, a.pending.entries...)
	a.pending = nil
}

func (a *App) discardPendingRunMemory(runID models.RunID) {
	if a.pending == nil {
		return
	}
	if a.pending.runID != runID {
		panic(fmt.Sprintf("pending run memory belongs to run %d, cannot discard run %d", a.pending.runID, runID))
	}
	a.pending = nil
}

func (a *App) shouldApplyRunEvent(runID models.RunID) bool {
	return !a.ShouldExit && (a.isActiveRun(runID) || a.isCancelling(runID))
}

func (a *App) isActiveRun(runID models.RunID) bool {
	return a.Mode.Kind == ModeRunning && a.Mode.RunID == runID
}

func (a *App) isCancelling(runID models.RunID) bool {
	return a.cancelling && a.cancellingRun == runID
}

// finalizeStream merges every assistant line for the run into the
// first-seen one and clears its streaming flag.
func (a *App) finalizeStream(runID models.RunID) {
	firstIndex := -1
	var merged strings.Builder

	for i, message := range a.Transcript {
		if message.Role == RoleAssistant && message.HasRunID && message.RunID == runID {
			if firstIndex < 0 {
				firstIndex = i
			}
			merged.WriteString(message.Content)
		}
	}
	if firstIndex < 0 {
		return
	}

	a.Transcript[firstIndex].Content = merged.String()
	a.Transcript[firstIndex].Streaming = false

	for i := len(a.Transcript) - 1; i > firstIndex; i-- {
		message := a.Transcript[i]
		if message.Role == RoleAssistant && message.HasRunID && message.RunID == runID {
			a.Transcript = append(a.Transcript[:i], a.Transcript[i+1:]...)
		}
	}
}

func (a *App) hasAssistantForRun(runID models.RunID) bool {
	for _, message := range a.Transcript {
		if message.Role == RoleAssistant && message.HasRunID && message.RunID == runID {
			return true
		}
	}
	return false
}

func (a *App) finalizeCancelledRun(runID models.RunID) {
	if !a.isCancelling(runID) {
		return
	}
	a.cancelling = false
	a.cancellingRun = 0
	a.Mode = Mode{Kind: ModeIdle}
	a.finalizeStream(runID)
}

func (a *App) pushTool(runID models.RunID, content string) {
	a.Transcript = append(a.Transcript, Message{
		Role:     RoleTool,
		Content:  content,
		RunID:    runID,
		HasRunID: true,
	})
}

func (a *App) pushSystem(content string) {
	a.Transcript = append(a.Transcript, Message{Role: RoleSystem, Content: content})
}
