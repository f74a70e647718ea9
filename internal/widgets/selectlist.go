package widgets

import (
	"fmt"
	"strings"

	"github.com/gurpartap/tape/internal/textlayout"
	"github.com/gurpartap/tape/internal/tui"
)

// SelectItem is one row of a SelectList.
type SelectItem struct {
	Value       string
	Label       string
	Description string
}

// SelectListTheme styles the list rows.
type SelectListTheme struct {
	SelectedText StyleFunc
	Description  StyleFunc
	ScrollInfo   StyleFunc
	NoMatch      StyleFunc
}

func plainSelectListTheme() SelectListTheme {
	identity := func(s string) string { return s }
	return SelectListTheme{
		SelectedText: identity,
		Description:  identity,
		ScrollInfo:   identity,
		NoMatch:      identity,
	}
}

// SelectList is a filterable list with wrapping up/down navigation, a
// scroll window, and confirm/cancel callbacks.
type SelectList struct {
	items         []SelectItem
	filteredItems []SelectItem
	selectedIndex int
	maxVisible    int
	theme         SelectListTheme
	keys          *KeyBindings

	onSelect          func(SelectItem)
	onCancel          func()
	onSelectionChange func(SelectItem)
}

// NewSelectList builds a list showing at most maxVisible rows.
func NewSelectList(items []SelectItem, maxVisible int, theme *SelectListTheme, keys *KeyBindings) *SelectList {
	resolvedTheme := plainSelectListTheme()
	if theme != nil {
		resolvedTheme = *theme
	}
	if keys == nil {
		keys = DefaultKeyBindings()
	}
	return &SelectList{
		items:         items,
		filteredItems: append([]SelectItem(nil), items...),
		maxVisible:    maxVisible,
		theme:         resolvedTheme,
		keys:          keys,
	}
}

// SetFilter keeps items whose value starts with the filter
// (case-insensitive) and resets the selection.
func (l *SelectList) SetFilter(filter string) {
	filter = strings.ToLower(filter)
	l.filteredItems = l.filteredItems[:0]
	for _, item := range l.items {
		if strings.HasPrefix(strings.ToLower(item.Value), filter) {
			l.filteredItems = append(l.filteredItems, item)
		}
	}
	l.selectedIndex = 0
}

// SetOnSelect installs the confirm callback.
func (l *SelectList) SetOnSelect(fn func(SelectItem)) { l.onSelect = fn }

// SetOnCancel installs the cancel callback.
func (l *SelectList) SetOnCancel(fn func()) { l.onCancel = fn }

// SetOnSelectionChange installs the navigation callback.
func (l *SelectList) SetOnSelectionChange(fn func(SelectItem)) { l.onSelectionChange = fn }

// SelectedItem returns the highlighted item.
func (l *SelectList) SelectedItem() (SelectItem, bool) {
	if l.selectedIndex >= len(l.filteredItems) {
		return SelectItem{}, false
	}
	return l.filteredItems[l.selectedIndex], true
}

// SetSelectedIndex moves the highlight, clamped to the filtered items.
func (l *SelectList) SetSelectedIndex(index int) {
	if len(l.filteredItems) == 0 {
		l.selectedIndex = 0
		return
	}
	if index > len(l.filteredItems)-1 {
		index = len(l.filteredItems) - 1
	}
	if index < 0 {
		index = 0
	}
	l.selectedIndex = index
}

func normalizeToSingleLine(text string) string {
	var out strings.Builder
	lastWasBreak := false
	for _, ch := range text {
		if ch == '\n' || ch == '\r' {
			if !lastWasBreak {
				out.WriteRune(' ')
			}
			lastWasBreak = true
		} else {
			out.WriteRune(ch)
			lastWasBreak = false
		}
	}
	return strings.TrimSpace(out.String())
}

func (l *SelectList) displayValue(item SelectItem) string {
	if item.Label != "" {
		return item.Label
	}
	return item.Value
}

func (l *SelectList) renderRow(width int, item SelectItem, description string, selected bool) string {
	prefix := "  "
	if selected {
		prefix = "→ "
	}

	if description != "" && width > 40 {
		maxValueWidth := min(30, width-len(prefix)-4)
		value := textlayout.TruncateToWidth(l.displayValue(item), maxValueWidth, "", false)
		spacingLen := max(1, 32-textlayout.VisibleWidth(value))
		spacing := strings.Repeat(" ", spacingLen)

		descriptionStart := len(prefix) + textlayout.VisibleWidth(value) + spacingLen
		remainingWidth := width - descriptionStart - 2
		if remainingWidth > 10 {
			desc := textlayout.TruncateToWidth(description, remainingWidth, "", false)
			if selected {
				return l.theme.SelectedText(prefix + value + spacing + desc)
			}
			return prefix + value + l.theme.Description(spacing+desc)
		}
	}

	maxWidth := width - len(prefix) - 2
	if maxWidth < 0 {
		maxWidth = 0
	}
	value := textlayout.TruncateToWidth(l.displayValue(item), maxWidth, "", false)
	if selected {
		return l.theme.SelectedText(prefix + value)
	}
	return prefix + value
}

// Render implements tui.Component.
func (l *SelectList) Render(width int) []string {
	if len(l.filteredItems) == 0 {
		return []string{l.theme.NoMatch("  No matching commands")}
	}

	maxVisible := l.maxVisible
	if maxVisible < 1 {
		maxVisible = 1
	}
	if maxVisible > len(l.filteredItems) {
		maxVisible = len(l.filteredItems)
	}

	startIndex := 0
	if len(l.filteredItems) > maxVisible {
		startIndex = l.selectedIndex - maxVisible/2
		if startIndex < 0 {
			startIndex = 0
		}
		if maxStart := len(l.filteredItems) - maxVisible; startIndex > maxStart {
			startIndex = maxStart
		}
	}
	endIndex := min(startIndex+maxVisible, len(l.filteredItems))

	var lines []string
	for idx := startIndex; idx < endIndex; idx++ {
		item := l.filteredItems[idx]
		description := normalizeToSingleLine(item.Description)
		lines = append(lines, l.renderRow(width, item, description, idx == l.selectedIndex))
	}

	if startIndex > 0 || endIndex < len(l.filteredItems) {
		scrollText := fmt.Sprintf("  (%d/%d)", l.selectedIndex+1, len(l.filteredItems))
		truncated := textlayout.TruncateToWidth(scrollText, max(width-2, 0), "", false)
		lines = append(lines, l.theme.ScrollInfo(truncated))
	}

	return lines
}

// HandleEvent implements navigation and the confirm/cancel callbacks.
func (l *SelectList) HandleEvent(event tui.InputEvent) {
	raw := event.Raw
	switch {
	case l.keys.Matches(raw, ActionSelectUp):
		if len(l.filteredItems) == 0 {
			return
		}
		if l.selectedIndex == 0 {
			l.selectedIndex = len(l.filteredItems) - 1
		} else {
			l.selectedIndex--
		}
		l.notifySelectionChange()
	case l.keys.Matches(raw, ActionSelectDown):
		if len(l.filteredItems) == 0 {
			return
		}
		if l.selectedIndex == len(l.filteredItems)-1 {
			l.selectedIndex = 0
		} else {
			l.selectedIndex++
		}
		l.notifySelectionChange()
	case l.keys.Matches(raw, ActionSelectConfirm):
		if item, ok := l.SelectedItem(); ok && l.onSelect != nil {
			l.onSelect(item)
		}
	case l.keys.Matches(raw, ActionSelectCancel):
		if l.onCancel != nil {
			l.onCancel()
		}
	}
}

func (l *SelectList) notifySelectionChange() {
	if item, ok := l.SelectedItem(); ok && l.onSelectionChange != nil {
		l.onSelectionChange(item)
	}
}
