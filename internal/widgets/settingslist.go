package widgets

import (
	"strings"

	"github.com/gurpartap/tape/internal/textlayout"
	"github.com/gurpartap/tape/internal/tui"
)

// SettingItem is one label/value row whose value cycles on confirm.
type SettingItem struct {
	Key    string
	Label  string
	Values []string
	Index  int
}

// CurrentValue returns the active value.
func (s SettingItem) CurrentValue() string {
	if len(s.Values) == 0 {
		return ""
	}
	return s.Values[s.Index%len(s.Values)]
}

// SettingsListTheme styles the rows.
type SettingsListTheme struct {
	SelectedText StyleFunc
	Value        StyleFunc
}

// SettingsList shows label/value pairs; up/down moves, confirm cycles the
// selected row's value, cancel closes.
type SettingsList struct {
	items    []SettingItem
	selected int
	theme    SettingsListTheme
	keys     *KeyBindings

	onChange func(SettingItem)
	onCancel func()
}

// NewSettingsList builds a settings list.
func NewSettingsList(items []SettingItem, theme *SettingsListTheme, keys *KeyBindings) *SettingsList {
	identity := func(s string) string { return s }
	resolved := SettingsListTheme{SelectedText: identity, Value: identity}
	if theme != nil {
		resolved = *theme
	}
	if keys == nil {
		keys = DefaultKeyBindings()
	}
	return &SettingsList{items: items, theme: resolved, keys: keys}
}

// SetOnChange installs the value-change callback.
func (l *SettingsList) SetOnChange(fn func(SettingItem)) { l.onChange = fn }

// SetOnCancel installs the cancel callback.
func (l *SettingsList) SetOnCancel(fn func()) { l.onCancel = fn }

// Items returns the current items.
func (l *SettingsList) Items() []SettingItem { return l.items }

// Render implements tui.Component.
func (l *SettingsList) Render(width int) []string {
	lines := make([]string, 0, len(l.items))
	for i, item := range l.items {
		prefix := "  "
		if i == l.selected {
			prefix = "→ "
		}
		label := item.Label
		if label == "" {
			label = item.Key
		}
		padding := max(1, 24-textlayout.VisibleWidth(label))
		row := prefix + label + strings.Repeat(" ", padding) + l.theme.Value(item.CurrentValue())
		row = textlayout.TruncateToWidth(row, width, "…", false)
		if i == l.selected {
			row = l.theme.SelectedText(row)
		}
		lines = append(lines, row)
	}
	return lines
}

// HandleEvent implements navigation and value cycling.
func (l *SettingsList) HandleEvent(event tui.InputEvent) {
	raw := event.Raw
	switch {
	case l.keys.Matches(raw, ActionSelectUp):
		if len(l.items) == 0 {
			return
		}
		l.selected = (l.selected + len(l.items) - 1) % len(l.items)
	case l.keys.Matches(raw, ActionSelectDown):
		if len(l.items) == 0 {
			return
		}
		l.selected = (l.selected + 1) % len(l.items)
	case l.keys.Matches(raw, ActionSelectConfirm):
		if l.selected >= len(l.items) {
			return
		}
		item := &l.items[l.selected]
		if len(item.Values) == 0 {
			return
		}
		item.Index = (item.Index + 1) % len(item.Values)
		if l.onChange != nil {
			l.onChange(*item)
		}
	case l.keys.Matches(raw, ActionSelectCancel):
		if l.onCancel != nil {
			l.onCancel()
		}
	}
}
