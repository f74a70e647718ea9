// Package widgets provides the component library built on the TUI runtime:
// text, markdown, editor, select lists, loaders, images, and layout
// helpers. Widgets receive their configuration (themes, keybindings)
// explicitly at construction; there is no process-global state.
package widgets

// EditorAction names a bindable editor/list action.
type EditorAction string

const (
	ActionSubmit        EditorAction = "submit"
	ActionNewLine       EditorAction = "newline"
	ActionCursorLeft    EditorAction = "cursor_left"
	ActionCursorRight   EditorAction = "cursor_right"
	ActionCursorUp      EditorAction = "cursor_up"
	ActionCursorDown    EditorAction = "cursor_down"
	ActionCursorHome    EditorAction = "cursor_home"
	ActionCursorEnd     EditorAction = "cursor_end"
	ActionDeleteBack    EditorAction = "delete_back"
	ActionDeleteForward EditorAction = "delete_forward"
	ActionDeleteWord    EditorAction = "delete_word"
	ActionKillLine      EditorAction = "kill_line"
	ActionSelectUp      EditorAction = "select_up"
	ActionSelectDown    EditorAction = "select_down"
	ActionSelectConfirm EditorAction = "select_confirm"
	ActionSelectCancel  EditorAction = "select_cancel"
)

// KeyBindings maps actions to the raw input sequences that trigger them.
type KeyBindings struct {
	bindings map[EditorAction][]string
}

// DefaultKeyBindings returns the stock binding set.
func DefaultKeyBindings() *KeyBindings {
	return &KeyBindings{bindings: map[EditorAction][]string{
		ActionSubmit:        {"\r"},
		ActionNewLine:       {"\x1b\r", "\n"},
		ActionCursorLeft:    {"\x1b[D", "\x1bOD", "\x02"},
		ActionCursorRight:   {"\x1b[C", "\x1bOC", "\x06"},
		ActionCursorUp:      {"\x1b[A", "\x1bOA"},
		ActionCursorDown:    {"\x1b[B", "\x1bOB"},
		ActionCursorHome:    {"\x1b[H", "\x01"},
		ActionCursorEnd:     {"\x1b[F", "\x05"},
		ActionDeleteBack:    {"\x7f", "\b"},
		ActionDeleteForward: {"\x1b[3~", "\x04"},
		ActionDeleteWord:    {"\x17"},
		ActionKillLine:      {"\x0b"},
		ActionSelectUp:      {"\x1b[A", "\x1bOA"},
		ActionSelectDown:    {"\x1b[B", "\x1bOB"},
		ActionSelectConfirm: {"\r"},
		ActionSelectCancel:  {"\x1b"},
	}}
}

// Bind replaces the sequences for one action.
func (k *KeyBindings) Bind(action EditorAction, sequences ...string) {
	k.bindings[action] = sequences
}

// Matches reports whether raw input triggers the action.
func (k *KeyBindings) Matches(raw string, action EditorAction) bool {
	for _, sequence := range k.bindings[action] {
		if raw == sequence {
			return true
		}
	}
	return false
}
