// Package tui is the terminal UI runtime: a component registry with a
// focus/surface model, per-tick frame production, and a diff renderer that
// emits minimal terminal commands through the output gate.
package tui

// ComponentID is an opaque handle to a registered component. The runtime
// owns the ComponentID -> Component mapping; holding an id never keeps a
// component alive past Unregister.
type ComponentID uint64

// CursorPos is a cursor position relative to a component's rendered lines,
// 0-based.
type CursorPos struct {
	Row int
	Col int
}

// Component renders to a list of display lines at a given width. All other
// capabilities are optional interfaces the runtime probes for.
type Component interface {
	Render(width int) []string
}

// EventHandler receives input events routed to the component.
type EventHandler interface {
	HandleEvent(event InputEvent)
}

// CursorReporter exposes the cursor position for the last render.
type CursorReporter interface {
	CursorPos() (CursorPos, bool)
}

// Focusable components track focus for cursor and IME handling.
type Focusable interface {
	SetFocused(focused bool)
	IsFocused() bool
}

// Invalidator drops cached render state.
type Invalidator interface {
	Invalidate()
}

// ViewportSizer receives the allocated viewport so nested emulators can
// size content. The size is a budget, not a promise about rendered lines.
type ViewportSizer interface {
	SetViewportSize(cols, rows int)
}

// KeyReleaseWanter opts a component into key-release events; without it the
// runtime drops releases before dispatch.
type KeyReleaseWanter interface {
	WantsKeyRelease() bool
}
