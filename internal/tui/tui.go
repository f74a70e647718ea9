package tui

import (
	"strings"
	"sync"

	"github.com/gurpartap/tape/internal/config"
	"github.com/gurpartap/tape/internal/output"
	"github.com/gurpartap/tape/internal/term"
	"github.com/gurpartap/tape/internal/textlayout"
)

// commandQueueSize bounds the cross-thread runtime command queue. Posts to
// a full queue are dropped: a pending render request already covers them.
const commandQueueSize = 64

type runtimeCommand uint8

const (
	cmdRequestRender runtimeCommand = iota
	cmdRequestStop
	cmdResize
)

// TUI is the cooperative single-threaded UI runtime. All methods must be
// called from the runtime thread; other threads communicate through the
// Handle.
type TUI struct {
	terminal term.Terminal
	env      config.EnvConfig
	gate     *output.Gate

	components map[ComponentID]Component
	nextID     ComponentID
	root       []ComponentID
	surfaces   []*surface

	focus    ComponentID
	hasFocus bool

	dirty      bool
	stopped    bool
	started    bool
	prevFrame  []string
	prevCursor *clampedCursor
	prevCols   int
	prevRows   int

	commands chan runtimeCommand
	inputs   chan string
	handle   *Handle
}

type clampedCursor struct {
	row int // 1-based absolute terminal row within the frame
	col int // 1-based absolute terminal column
}

// New builds a runtime over the given terminal with default env config.
func New(terminal term.Terminal) *TUI {
	return NewWithEnv(terminal, config.EnvConfig{})
}

// NewWithEnv builds a runtime honoring the TUI env toggles.
func NewWithEnv(terminal term.Terminal, env config.EnvConfig) *TUI {
	t := &TUI{
		terminal:   terminal,
		env:        env,
		gate:       output.NewGate(),
		components: make(map[ComponentID]Component),
		nextID:     1,
		commands:   make(chan runtimeCommand, commandQueueSize),
		inputs:     make(chan string, commandQueueSize),
	}
	t.handle = &Handle{runtime: t}
	return t
}

// Handle returns the thread-safe handle other threads use to post render
// and stop requests.
func (t *TUI) Handle() *Handle { return t.handle }

// Start opens the terminal: raw mode plus input/resize callbacks that post
// into the runtime queues.
func (t *TUI) Start() error {
	if err := t.terminal.Start(
		func(data string) { t.handle.PostInput(data) },
		func() { t.handle.PostResize() },
	); err != nil {
		return err
	}
	t.started = true
	t.prevCols = t.terminal.Columns()
	t.prevRows = t.terminal.Rows()
	t.gate.Extend(
		output.Cmd{Kind: output.CmdBracketedPasteEnable},
		output.Cmd{Kind: output.CmdKittyEnable},
		output.Cmd{Kind: output.CmdQueryCellSize},
		output.Cmd{Kind: output.CmdHideCursor},
	)
	t.gate.Flush(t.terminal)
	t.dirty = true
	return nil
}

// Stop restores the terminal after a final cleanup write.
func (t *TUI) Stop() error {
	if !t.started {
		return nil
	}
	t.started = false
	t.gate.Extend(
		output.Cmd{Kind: output.CmdKittyDisable},
		output.Cmd{Kind: output.CmdBracketedPasteDisable},
		output.Cmd{Kind: output.CmdShowCursor},
	)
	t.gate.Flush(t.terminal)
	return t.terminal.Stop()
}

// ShouldStop reports whether a stop request has been posted.
func (t *TUI) ShouldStop() bool { return t.stopped }

// RegisterComponent adds a component and returns its id.
func (t *TUI) RegisterComponent(component Component) ComponentID {
	id := t.nextID
	t.nextID++
	t.components[id] = component
	return id
}

// UnregisterComponent removes a component. Focus moves away first.
func (t *TUI) UnregisterComponent(id ComponentID) {
	if t.hasFocus && t.focus == id {
		t.clearFocus()
	}
	delete(t.components, id)
	t.dirty = true
}

// Component returns the registered component for an id.
func (t *TUI) Component(id ComponentID) (Component, bool) {
	component, ok := t.components[id]
	return component, ok
}

// SetRoot replaces the inline root component list.
func (t *TUI) SetRoot(ids []ComponentID) {
	t.root = append([]ComponentID(nil), ids...)
	t.dirty = true
}

// SetFocus moves focus. The previous target is unfocused before the next
// target is focused; focusing the current target is a no-op.
func (t *TUI) SetFocus(id ComponentID) {
	if t.hasFocus && t.focus == id {
		return
	}
	if t.hasFocus {
		if focusable, ok := t.components[t.focus].(Focusable); ok {
			focusable.SetFocused(false)
		}
	}
	t.focus = id
	t.hasFocus = true
	if focusable, ok := t.components[id].(Focusable); ok {
		focusable.SetFocused(true)
	}
	t.dirty = true
}

func (t *TUI) clearFocus() {
	if !t.hasFocus {
		return
	}
	if focusable, ok := t.components[t.focus].(Focusable); ok {
		focusable.SetFocused(false)
	}
	t.hasFocus = false
	t.focus = 0
	t.dirty = true
}

// FocusedComponent returns the focused component id, if any.
func (t *TUI) FocusedComponent() (ComponentID, bool) {
	return t.focus, t.hasFocus
}

// ShowSurface appends a surface for the component. nil options use
// DefaultSurfaceOptions; modal surfaces always capture input. Focus moves
// to the surface component and is restored on hide.
func (t *TUI) ShowSurface(id ComponentID, options *SurfaceOptions) *SurfaceHandle {
	opts := DefaultSurfaceOptions()
	if options != nil {
		opts = *options
	}
	if opts.Kind == SurfaceModal {
		opts.InputPolicy = SurfaceCapture
	}

	s := &surface{component: id, options: opts, prevFocus: t.focus, hadFocus: t.hasFocus}
	t.surfaces = append(t.surfaces, s)
	if !opts.Hidden {
		t.SetFocus(id)
	}
	t.dirty = true
	return &SurfaceHandle{runtime: t, surface: s}
}

func (t *TUI) hideSurface(s *surface) {
	for i, candidate := range t.surfaces {
		if candidate == s {
			t.surfaces = append(t.surfaces[:i], t.surfaces[i+1:]...)
			break
		}
	}
	t.restoreFocusFrom(s)
	t.dirty = true
}

func (t *TUI) setSurfaceHidden(s *surface, hidden bool) {
	if s.options.Hidden == hidden {
		return
	}
	s.options.Hidden = hidden
	if hidden {
		t.restoreFocusFrom(s)
	} else {
		s.prevFocus = t.focus
		s.hadFocus = t.hasFocus
		t.SetFocus(s.component)
	}
	t.dirty = true
}

func (t *TUI) restoreFocusFrom(s *surface) {
	if !t.hasFocus || t.focus != s.component {
		return
	}
	if s.hadFocus {
		t.SetFocus(s.prevFocus)
	} else {
		t.clearFocus()
	}
}

// DispatchResize delivers a Resize event to every component, invalidates
// cached output, and schedules a full repaint.
func (t *TUI) DispatchResize() {
	event := InputEvent{
		Type:    InputResize,
		Columns: t.terminal.Columns(),
		Rows:    t.terminal.Rows(),
	}
	for _, component := range t.components {
		if handler, ok := component.(EventHandler); ok {
			handler.HandleEvent(event)
		}
	}
	t.invalidateAll()
	t.prevFrame = nil
	t.prevCursor = nil
	t.dirty = true
}

// HandleInput decodes one complete input sequence and routes the event.
func (t *TUI) HandleInput(data string) {
	event := ParseInputEvent(data)

	target, ok := t.routeTarget()
	if !ok {
		return
	}
	component := t.components[target]
	if component == nil {
		return
	}

	if event.Type == InputKey && event.KeyType == KeyRelease {
		wanter, ok := component.(KeyReleaseWanter)
		if !ok || !wanter.WantsKeyRelease() {
			return
		}
	}

	if handler, ok := component.(EventHandler); ok {
		handler.HandleEvent(event)
		t.dirty = true
	}
}

// routeTarget walks surfaces from top to bottom: the first visible surface
// with a Capture policy consumes input; otherwise the focused component
// receives it.
func (t *TUI) routeTarget() (ComponentID, bool) {
	for i := len(t.surfaces) - 1; i >= 0; i-- {
		s := t.surfaces[i]
		if s.options.Hidden {
			continue
		}
		if s.options.InputPolicy == SurfaceCapture {
			return s.component, true
		}
	}
	if t.hasFocus {
		return t.focus, true
	}
	return 0, false
}

// RunOnce drains pending input and runtime commands, then renders if dirty.
func (t *TUI) RunOnce() {
	for {
		select {
		case data := <-t.inputs:
			t.HandleInput(data)
			continue
		default:
		}
		break
	}
	for {
		select {
		case cmd := <-t.commands:
			switch cmd {
			case cmdRequestRender:
				t.dirty = true
			case cmdRequestStop:
				t.stopped = true
			case cmdResize:
				t.DispatchResize()
			}
			continue
		default:
		}
		break
	}
	t.RenderIfNeeded()
}

// RenderIfNeeded renders when state changed since the last render.
func (t *TUI) RenderIfNeeded() {
	if !t.dirty {
		return
	}
	t.RenderNow()
}

// RenderNow produces a frame and diffs it against the previous one. If the
// frame, cursor, and terminal size are unchanged it emits zero bytes.
func (t *TUI) RenderNow() {
	t.dirty = false
	cols := t.terminal.Columns()
	rows := t.terminal.Rows()

	if cols != t.prevCols || rows != t.prevRows {
		shrunk := cols < t.prevCols || rows < t.prevRows
		t.invalidateAll()
		t.prevFrame = nil
		t.prevCols = cols
		t.prevRows = rows
		if shrunk && t.env.ClearOnShrink {
			t.gate.Push(output.Cmd{Kind: output.CmdClearScreen})
		}
	}

	if t.env.DebugRedraw {
		// Redraw tracing works by forcing the full-repaint path each tick.
		t.prevFrame = nil
		t.prevCursor = nil
	}

	frame, cursor := t.composeFrame(cols, rows)
	t.diffAndEmit(frame, cursor)
	t.gate.Flush(t.terminal)

	t.prevFrame = frame
	t.prevCursor = cursor
}

func (t *TUI) invalidateAll() {
	for _, component := range t.components {
		if invalidator, ok := component.(Invalidator); ok {
			invalidator.Invalidate()
		}
	}
}

// componentSpan records where a component landed in the composed frame.
type componentSpan struct {
	id    ComponentID
	start int
}

func (t *TUI) composeFrame(cols, rows int) ([]string, *clampedCursor) {
	var frame []string
	var spans []componentSpan

	for _, id := range t.root {
		component := t.components[id]
		if component == nil {
			continue
		}
		if sizer, ok := component.(ViewportSizer); ok {
			sizer.SetViewportSize(cols, rows)
		}
		lines := component.Render(cols)
		spans = append(spans, componentSpan{id: id, start: len(frame)})
		frame = append(frame, lines...)
	}

	// Overlays and modals stitch over the inline flow at their anchor,
	// clamped to the viewport bottom row.
	for _, s := range t.surfaces {
		if s.options.Hidden {
			continue
		}
		component := t.components[s.component]
		if component == nil {
			continue
		}

		width := cols - 2*s.options.MarginX
		if s.options.WidthPercent > 0 {
			width = cols * s.options.WidthPercent / 100
		} else if s.options.WidthCells > 0 {
			width = s.options.WidthCells
		}
		if width < 1 {
			width = 1
		}
		if width > cols {
			width = cols
		}

		if sizer, ok := component.(ViewportSizer); ok {
			sizer.SetViewportSize(width, rows)
		}
		lines := component.Render(width)

		anchorRow := s.options.MarginY
		anchorCol := s.options.MarginX
		if s.options.Anchor != nil {
			anchorRow = s.options.Anchor.Row
			anchorCol = s.options.Anchor.Col
		}
		if anchorRow > rows-1 {
			anchorRow = rows - 1
		}
		if anchorRow < 0 {
			anchorRow = 0
		}

		for len(frame) < anchorRow+len(lines) {
			frame = append(frame, "")
		}
		start := anchorRow
		for i, line := range lines {
			row := start + i
			if row >= rows {
				break
			}
			frame[row] = t.stitchLine(frame[row], line, anchorCol, cols)
		}
		spans = append(spans, componentSpan{id: s.component, start: start})
	}

	cursor := t.cursorFor(spans, frame, cols, rows)
	return frame, cursor
}

// stitchLine overlays text onto base starting at col, preserving the
// surrounding content and styles.
func (t *TUI) stitchLine(base, text string, col, cols int) string {
	textWidth := textlayout.VisibleWidth(text)
	if col <= 0 && textWidth >= textlayout.VisibleWidth(base) {
		return textlayout.SliceByColumn(text, 0, cols, true)
	}
	padded := textlayout.PadToWidth(base, col+textWidth)
	afterLen := cols - (col + textWidth)
	if afterLen < 0 {
		afterLen = 0
	}
	segments := textlayout.ExtractSegments(padded, col, col+textWidth, afterLen, false)
	var out strings.Builder
	out.WriteString(segments.Before)
	out.WriteString(text)
	out.WriteString(segments.After)
	return out.String()
}

func (t *TUI) cursorFor(spans []componentSpan, frame []string, cols, rows int) *clampedCursor {
	if !t.hasFocus {
		return nil
	}
	component := t.components[t.focus]
	reporter, ok := component.(CursorReporter)
	if !ok {
		return nil
	}
	pos, ok := reporter.CursorPos()
	if !ok {
		return nil
	}

	start := 0
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].id == t.focus {
			start = spans[i].start
			break
		}
	}

	row := start + pos.Row + 1
	col := pos.Col + 1
	if col > cols {
		col = cols
	}
	if col < 1 {
		col = 1
	}
	maxRow := len(frame)
	if maxRow > rows {
		maxRow = rows
	}
	if row > maxRow {
		row = maxRow
	}
	if row < 1 {
		row = 1
	}
	return &clampedCursor{row: row, col: col}
}

// diffAndEmit writes the minimal command sequence turning the previous
// frame into the new one. The correctness contract is that the post-diff
// terminal state equals a from-scratch paint.
func (t *TUI) diffAndEmit(frame []string, cursor *clampedCursor) {
	sameFrame := len(frame) == len(t.prevFrame)
	if sameFrame {
		for i := range frame {
			if frame[i] != t.prevFrame[i] {
				sameFrame = false
				break
			}
		}
	}
	sameCursor := (cursor == nil && t.prevCursor == nil) ||
		(cursor != nil && t.prevCursor != nil && *cursor == *t.prevCursor)
	if sameFrame && sameCursor {
		return
	}

	t.gate.Push(output.Cmd{Kind: output.CmdHideCursor})

	if len(t.prevFrame) == 0 {
		for i, line := range frame {
			if i > 0 {
				t.gate.Push(output.Bytes("\r\n"))
			}
			t.gate.Extend(output.ColumnAbs(1), output.Cmd{Kind: output.CmdClearLine}, output.Bytes(line))
		}
	} else {
		// The cursor rests where the previous render left it: the focused
		// cursor position, or the last previous-frame line.
		currentRow := len(t.prevFrame)
		if t.prevCursor != nil {
			currentRow = t.prevCursor.row
		}
		t.gate.Extend(output.MoveUp(currentRow-1), output.ColumnAbs(1))

		for i := 0; i < len(frame); i++ {
			if i > 0 {
				t.gate.Push(output.Bytes("\r\n"))
			}
			if i < len(t.prevFrame) && frame[i] == t.prevFrame[i] {
				continue
			}
			t.gate.Extend(output.ColumnAbs(1), output.Cmd{Kind: output.CmdClearLine}, output.Bytes(frame[i]))
		}
		if len(t.prevFrame) > len(frame) {
			t.gate.Extend(output.Bytes("\r\n"), output.ColumnAbs(1), output.Cmd{Kind: output.CmdClearFromCursor}, output.MoveUp(1))
		}
	}

	// Place the hardware cursor when a focused component reports one; hide
	// it otherwise. The next diff reads the resting row from prevCursor.
	if cursor != nil {
		if up := len(frame) - cursor.row; up > 0 {
			t.gate.Push(output.MoveUp(up))
		}
		t.gate.Push(output.ColumnAbs(cursor.col))
		t.gate.Push(output.Cmd{Kind: output.CmdShowCursor})
	} else if t.env.HardwareCursor {
		// With the hardware cursor forced on, keep it visible at the frame
		// end instead of hiding it between focused components.
		t.gate.Push(output.Cmd{Kind: output.CmdShowCursor})
	}
}
