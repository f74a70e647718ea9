package widgets

import (
	"strings"

	"github.com/gurpartap/tape/internal/textlayout"
	"github.com/gurpartap/tape/internal/tui"
)

// EditorHeightMode controls how many rows the editor occupies.
type EditorHeightMode uint8

const (
	// EditorHeightFixed renders exactly Options.Rows content rows.
	EditorHeightFixed EditorHeightMode = iota
	// EditorHeightFillAvailable grows with content up to the viewport.
	EditorHeightFillAvailable
)

// EditorTheme styles the editor chrome.
type EditorTheme struct {
	BorderColor      StyleFunc
	PlaceholderColor StyleFunc
}

// EditorOptions configure an Editor.
type EditorOptions struct {
	Placeholder string
	PaddingX    int
	Border      bool
	HeightMode  EditorHeightMode
	Rows        int

	// AutocompleteMaxVisible bounds the suggestion list. Zero uses 5.
	AutocompleteMaxVisible int
}

// AutocompleteProvider supplies suggestions for the current input.
type AutocompleteProvider interface {
	// Suggestions returns candidate completions for the text before the
	// cursor, or nil when no suggestions apply.
	Suggestions(prefix string) []SelectItem
}

// Editor is a multi-line text input with history navigation, paste
// handling, configurable key bindings, and an optional autocomplete list.
type Editor struct {
	lines  [][]rune
	row    int
	col    int
	scroll int

	keys    *KeyBindings
	theme   EditorTheme
	options EditorOptions

	history       []string
	historyCursor int
	historyDraft  string
	navigating    bool

	autocomplete AutocompleteProvider
	suggestions  *SelectList
	suggesting   bool

	onSubmit func(string)
	onChange func(string)

	focused      bool
	viewportRows int
}

// NewEditor builds an empty editor.
func NewEditor(options EditorOptions, theme *EditorTheme, keys *KeyBindings) *Editor {
	if keys == nil {
		keys = DefaultKeyBindings()
	}
	resolvedTheme := EditorTheme{}
	if theme != nil {
		resolvedTheme = *theme
	}
	if options.Rows <= 0 {
		options.Rows = 1
	}
	if options.AutocompleteMaxVisible <= 0 {
		options.AutocompleteMaxVisible = 5
	}
	return &Editor{
		lines:   [][]rune{{}},
		keys:    keys,
		theme:   resolvedTheme,
		options: options,
	}
}

// SetOnSubmit installs the submit handler.
func (e *Editor) SetOnSubmit(fn func(string)) { e.onSubmit = fn }

// SetOnChange installs the change handler.
func (e *Editor) SetOnChange(fn func(string)) { e.onChange = fn }

// SetAutocompleteProvider installs the suggestion source.
func (e *Editor) SetAutocompleteProvider(provider AutocompleteProvider) {
	e.autocomplete = provider
}

// Text returns the editor content.
func (e *Editor) Text() string {
	parts := make([]string, len(e.lines))
	for i, line := range e.lines {
		parts[i] = string(line)
	}
	return strings.Join(parts, "\n")
}

// SetText replaces the content and moves the cursor to the end.
func (e *Editor) SetText(text string) {
	rawLines := strings.Split(text, "\n")
	e.lines = make([][]rune, len(rawLines))
	for i, line := range rawLines {
		e.lines[i] = []rune(line)
	}
	e.row = len(e.lines) - 1
	e.col = len(e.lines[e.row])
	e.notifyChange()
}

// AddToHistory appends an entry for up/down navigation.
func (e *Editor) AddToHistory(text string) {
	e.history = append(e.history, text)
	e.navigating = false
}

// InsertTextAtCursor inserts text, splitting on newlines.
func (e *Editor) InsertTextAtCursor(text string) {
	for _, ch := range text {
		if ch == '\n' || ch == '\r' {
			e.insertNewline()
		} else {
			e.insertRune(ch)
		}
	}
	e.notifyChange()
}

// SetFocused implements tui.Focusable.
func (e *Editor) SetFocused(focused bool) { e.focused = focused }

// IsFocused implements tui.Focusable.
func (e *Editor) IsFocused() bool { return e.focused }

// SetViewportSize implements tui.ViewportSizer.
func (e *Editor) SetViewportSize(cols, rows int) { e.viewportRows = rows }

func (e *Editor) notifyChange() {
	e.navigating = false
	if e.onChange != nil {
		e.onChange(e.Text())
	}
	e.refreshSuggestions()
}

func (e *Editor) refreshSuggestions() {
	e.suggesting = false
	e.suggestions = nil
	if e.autocomplete == nil {
		return
	}
	prefix := string(e.lines[e.row][:e.col])
	items := e.autocomplete.Suggestions(prefix)
	if len(items) == 0 {
		return
	}
	e.suggestions = NewSelectList(items, e.options.AutocompleteMaxVisible, nil, e.keys)
	e.suggesting = true
}

func (e *Editor) insertRune(ch rune) {
	line := e.lines[e.row]
	line = append(line[:e.col], append([]rune{ch}, line[e.col:]...)...)
	e.lines[e.row] = line
	e.col++
}

func (e *Editor) insertNewline() {
	line := e.lines[e.row]
	rest := append([]rune(nil), line[e.col:]...)
	e.lines[e.row] = line[:e.col]
	e.lines = append(e.lines[:e.row+1], append([][]rune{rest}, e.lines[e.row+1:]...)...)
	e.row++
	e.col = 0
}

func (e *Editor) deleteBack() {
	if e.col > 0 {
		line := e.lines[e.row]
		e.lines[e.row] = append(line[:e.col-1], line[e.col:]...)
		e.col--
		return
	}
	if e.row > 0 {
		prev := e.lines[e.row-1]
		e.col = len(prev)
		e.lines[e.row-1] = append(prev, e.lines[e.row]...)
		e.lines = append(e.lines[:e.row], e.lines[e.row+1:]...)
		e.row--
	}
}

func (e *Editor) deleteForward() {
	line := e.lines[e.row]
	if e.col < len(line) {
		e.lines[e.row] = append(line[:e.col], line[e.col+1:]...)
		return
	}
	if e.row < len(e.lines)-1 {
		e.lines[e.row] = append(line, e.lines[e.row+1]...)
		e.lines = append(e.lines[:e.row+1], e.lines[e.row+2:]...)
	}
}

func (e *Editor) deleteWord() {
	line := e.lines[e.row]
	col := e.col
	for col > 0 && line[col-1] == ' ' {
		col--
	}
	for col > 0 && line[col-1] != ' ' {
		col--
	}
	e.lines[e.row] = append(line[:col], line[e.col:]...)
	e.col = col
}

// HistoryPrevious steps back through submitted entries, saving the draft on
// the first step.
func (e *Editor) HistoryPrevious() {
	if len(e.history) == 0 {
		return
	}
	if !e.navigating {
		e.historyDraft = e.Text()
		e.historyCursor = len(e.history)
		e.navigating = true
	}
	if e.historyCursor > 0 {
		e.historyCursor--
	}
	e.replaceText(e.history[e.historyCursor])
}

// HistoryNext steps forward, restoring the saved draft past the newest
// entry.
func (e *Editor) HistoryNext() {
	if !e.navigating {
		return
	}
	e.historyCursor++
	if e.historyCursor >= len(e.history) {
		e.replaceText(e.historyDraft)
		e.navigating = false
		return
	}
	e.replaceText(e.history[e.historyCursor])
}

// replaceText swaps content without clearing history navigation state.
func (e *Editor) replaceText(text string) {
	rawLines := strings.Split(text, "\n")
	e.lines = make([][]rune, len(rawLines))
	for i, line := range rawLines {
		e.lines[i] = []rune(line)
	}
	e.row = len(e.lines) - 1
	e.col = len(e.lines[e.row])
	if e.onChange != nil {
		e.onChange(text)
	}
}

// HandleEvent implements the editing contract.
func (e *Editor) HandleEvent(event tui.InputEvent) {
	if event.Type == tui.InputPaste {
		e.InsertTextAtCursor(event.Text)
		return
	}

	raw := event.Raw

	if e.suggesting && e.suggestions != nil {
		switch {
		case e.keys.Matches(raw, ActionSelectUp), e.keys.Matches(raw, ActionSelectDown):
			e.suggestions.HandleEvent(event)
			return
		case e.keys.Matches(raw, ActionSelectConfirm):
			if item, ok := e.suggestions.SelectedItem(); ok {
				e.acceptSuggestion(item)
			}
			return
		case e.keys.Matches(raw, ActionSelectCancel):
			e.suggesting = false
			e.suggestions = nil
			return
		}
	}

	switch {
	case e.keys.Matches(raw, ActionSubmit):
		text := e.Text()
		e.lines = [][]rune{{}}
		e.row, e.col = 0, 0
		e.suggesting = false
		e.suggestions = nil
		if e.onSubmit != nil {
			e.onSubmit(text)
		}
		return
	case e.keys.Matches(raw, ActionNewLine):
		e.insertNewline()
	case e.keys.Matches(raw, ActionCursorLeft):
		if e.col > 0 {
			e.col--
		} else if e.row > 0 {
			e.row--
			e.col = len(e.lines[e.row])
		}
		return
	case e.keys.Matches(raw, ActionCursorRight):
		if e.col < len(e.lines[e.row]) {
			e.col++
		} else if e.row < len(e.lines)-1 {
			e.row++
			e.col = 0
		}
		return
	case e.keys.Matches(raw, ActionCursorUp):
		if e.row > 0 {
			e.row--
			e.col = min(e.col, len(e.lines[e.row]))
			return
		}
		e.HistoryPrevious()
		return
	case e.keys.Matches(raw, ActionCursorDown):
		if e.row < len(e.lines)-1 {
			e.row++
			e.col = min(e.col, len(e.lines[e.row]))
			return
		}
		e.HistoryNext()
		return
	case e.keys.Matches(raw, ActionCursorHome):
		e.col = 0
		return
	case e.keys.Matches(raw, ActionCursorEnd):
		e.col = len(e.lines[e.row])
		return
	case e.keys.Matches(raw, ActionDeleteBack):
		e.deleteBack()
	case e.keys.Matches(raw, ActionDeleteForward):
		e.deleteForward()
	case e.keys.Matches(raw, ActionDeleteWord):
		e.deleteWord()
	case e.keys.Matches(raw, ActionKillLine):
		e.lines[e.row] = e.lines[e.row][:e.col]
	default:
		if event.Type == tui.InputText {
			for _, ch := range event.Text {
				if ch >= 0x20 || ch == '\t' {
					e.insertRune(ch)
				}
			}
		} else {
			return
		}
	}

	e.notifyChange()
}

func (e *Editor) acceptSuggestion(item SelectItem) {
	line := e.lines[e.row]
	e.lines[e.row] = append([]rune(item.Value), line[e.col:]...)
	e.col = len([]rune(item.Value))
	e.suggesting = false
	e.suggestions = nil
	if e.onChange != nil {
		e.onChange(e.Text())
	}
}

// CursorPos implements tui.CursorReporter: the cursor is relative to the
// rendered lines, accounting for border and padding.
func (e *Editor) CursorPos() (tui.CursorPos, bool) {
	row := e.row - e.scroll
	if row < 0 {
		row = 0
	}
	col := e.col + e.options.PaddingX
	if e.options.Border {
		row++
		col++
	}
	return tui.CursorPos{Row: row, Col: col}, true
}

// Render implements tui.Component.
func (e *Editor) Render(width int) []string {
	contentWidth := width - e.options.PaddingX*2
	if e.options.Border {
		contentWidth -= 2
	}
	if contentWidth < 1 {
		contentWidth = 1
	}

	rows := e.options.Rows
	if e.options.HeightMode == EditorHeightFillAvailable {
		rows = len(e.lines)
		if e.viewportRows > 2 && rows > e.viewportRows-2 {
			rows = e.viewportRows - 2
		}
	}
	if rows < 1 {
		rows = 1
	}

	if e.row < e.scroll {
		e.scroll = e.row
	}
	if e.row >= e.scroll+rows {
		e.scroll = e.row - rows + 1
	}

	margin := strings.Repeat(" ", e.options.PaddingX)
	var content []string
	showPlaceholder := e.Text() == "" && e.options.Placeholder != ""

	for i := 0; i < rows; i++ {
		lineIdx := e.scroll + i
		text := ""
		if lineIdx < len(e.lines) {
			text = string(e.lines[lineIdx])
		}
		if showPlaceholder && lineIdx == 0 {
			placeholder := e.options.Placeholder
			if e.theme.PlaceholderColor != nil {
				placeholder = e.theme.PlaceholderColor(placeholder)
			}
			text = placeholder
		}
		line := margin + textlayout.TruncateToWidth(text, contentWidth, "", false) + margin
		content = append(content, textlayout.PadToWidth(line, width-borderCells(e.options.Border)))
	}

	if !e.options.Border {
		out := content
		if e.suggesting && e.suggestions != nil {
			out = append(out, e.suggestions.Render(width)...)
		}
		return out
	}

	borderWidth := width - 2
	if borderWidth < 0 {
		borderWidth = 0
	}
	top := "╭" + strings.Repeat("─", borderWidth) + "╮"
	bottom := "╰" + strings.Repeat("─", borderWidth) + "╯"
	if e.theme.BorderColor != nil {
		top = e.theme.BorderColor(top)
		bottom = e.theme.BorderColor(bottom)
	}

	out := []string{top}
	for _, line := range content {
		side := "│"
		if e.theme.BorderColor != nil {
			side = e.theme.BorderColor(side)
		}
		out = append(out, side+line+side)
	}
	out = append(out, bottom)

	if e.suggesting && e.suggestions != nil {
		out = append(out, e.suggestions.Render(width)...)
	}
	return out
}

func borderCells(border bool) int {
	if border {
		return 2
	}
	return 0
}

// Input is a single-line editor facade.
type Input struct {
	*Editor
}

// NewInput builds a single-line input.
func NewInput(options EditorOptions, theme *EditorTheme, keys *KeyBindings) *Input {
	options.Rows = 1
	options.HeightMode = EditorHeightFixed
	return &Input{Editor: NewEditor(options, theme, keys)}
}

// HandleEvent filters newline insertion out of the editor contract.
func (i *Input) HandleEvent(event tui.InputEvent) {
	if i.keys.Matches(event.Raw, ActionNewLine) {
		return
	}
	i.Editor.HandleEvent(event)
}
