// Package agent defines the host-side run contracts: the provider
// interface, cancellation, tool execution, and the runtime controller that
// serializes run events onto the UI loop.
package agent

import (
	"sync/atomic"

	"github.com/gurpartap/tape/pkg/models"
)

// CancelSignal is the shared atomically readable cancellation flag.
type CancelSignal = *atomic.Bool

// ToolExecutor runs one tool call on the host and returns its result.
type ToolExecutor func(models.ToolCallRequest) models.ToolResult

// EmitFunc receives run lifecycle events on the provider's call stack.
type EmitFunc func(models.RunEvent)

// RunProvider drives one streaming conversation run to completion.
//
// Run returns an error only for pre-flight validation failures that occur
// before any event is emitted; every in-flight failure surfaces as a
// Failed event instead.
type RunProvider interface {
	// Profile reports the active provider/model/thinking selection.
	Profile() models.ProviderProfile

	// ToolDefinitions lists the tools the provider advertises.
	ToolDefinitions() []models.ToolDefinition

	// CycleModel advances the model selection.
	CycleModel() (models.ProviderProfile, error)

	// CycleThinkingLevel advances the thinking level selection.
	CycleThinkingLevel() (models.ProviderProfile, error)

	// Run executes the request, invoking executeTool serially for each
	// requested tool call and emit for each lifecycle event.
	Run(req models.RunRequest, cancel CancelSignal, executeTool ToolExecutor, emit EmitFunc) error
}
