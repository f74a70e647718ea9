// Package term defines the minimal terminal port the TUI runtime drives,
// plus the process-backed implementation and its lifecycle guard.
package term

// InputFunc receives complete input sequences from the reader thread.
type InputFunc func(data string)

// ResizeFunc is invoked whenever the OS reports a terminal-size change.
type ResizeFunc func()

// Terminal is the minimal port between the runtime and a terminal device.
// Write is the single sink used only by the output gate.
type Terminal interface {
	// Start enters raw mode and installs the input and resize callbacks.
	Start(onInput InputFunc, onResize ResizeFunc) error

	// Stop restores prior terminal state. Callers drain input first; see
	// Guard for the required ordering.
	Stop() error

	// DrainInput disables delivery of new input events and consumes
	// incoming bytes until maxMillis have elapsed or idleMillis pass with
	// no new bytes, whichever is first.
	DrainInput(maxMillis, idleMillis int)

	// Write sends output bytes to the terminal.
	Write(data string)

	// Columns and Rows report the current terminal size.
	Columns() int
	Rows() int
}

// Guard runs drain + stop on every exit path. Drain must precede Stop:
// restoring cooked mode before the input buffer is empty leaks buffered
// bytes into the parent shell.
type Guard struct {
	terminal      Terminal
	maxDrainMs    int
	idleDrainMs   int
	released      bool
	closedAlready bool
}

// NewGuard wraps a terminal with default drain timings (max 1000ms, idle
// 50ms).
func NewGuard(terminal Terminal) *Guard {
	return &Guard{terminal: terminal, maxDrainMs: 1000, idleDrainMs: 50}
}

// SetDrainTimings adjusts the drain window.
func (g *Guard) SetDrainTimings(maxMillis, idleMillis int) {
	g.maxDrainMs = maxMillis
	g.idleDrainMs = idleMillis
}

// Terminal returns the wrapped terminal.
func (g *Guard) Terminal() Terminal { return g.terminal }

// Release detaches the terminal without running cleanup.
func (g *Guard) Release() Terminal {
	g.released = true
	return g.terminal
}

// Close drains input and stops the terminal. Safe to call more than once.
func (g *Guard) Close() error {
	if g.released || g.closedAlready {
		return nil
	}
	g.closedAlready = true
	g.terminal.DrainInput(g.maxDrainMs, g.idleDrainMs)
	return g.terminal.Stop()
}
