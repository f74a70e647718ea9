package widgets

import (
	"strings"

	"github.com/gurpartap/tape/internal/textlayout"
)

// StyleFunc maps text to styled text (typically wrapping it in SGR codes).
type StyleFunc func(string) string

// Text wraps content to the width, pads every line to full width, applies
// an optional background function across the padding, and caches the
// rendered frame per (text, width).
type Text struct {
	text     string
	paddingX int
	paddingY int
	bg       StyleFunc

	cachedText  string
	cachedWidth int
	cachedFrame []string
	cacheValid  bool
}

// NewText builds a Text with the default padding of one cell/line.
func NewText(text string) *Text {
	return &Text{text: text, paddingX: 1, paddingY: 1}
}

// NewTextWithPadding builds a Text with explicit padding.
func NewTextWithPadding(text string, paddingX, paddingY int) *Text {
	return &Text{text: text, paddingX: paddingX, paddingY: paddingY}
}

// SetText replaces the content and invalidates the cache.
func (t *Text) SetText(text string) {
	t.text = text
	t.Invalidate()
}

// Text returns the current content.
func (t *Text) Text() string { return t.text }

// SetPadding updates padding and invalidates the cache.
func (t *Text) SetPadding(paddingX, paddingY int) {
	t.paddingX = paddingX
	t.paddingY = paddingY
	t.Invalidate()
}

// SetBackground sets the full-width background function.
func (t *Text) SetBackground(bg StyleFunc) {
	t.bg = bg
	t.Invalidate()
}

// Render implements tui.Component.
func (t *Text) Render(width int) []string {
	if t.cacheValid && t.cachedText == t.text && t.cachedWidth == width {
		return t.cachedFrame
	}

	var frame []string
	if strings.TrimSpace(t.text) == "" {
		frame = nil
	} else {
		normalized := strings.ReplaceAll(t.text, "\t", "   ")
		contentWidth := width - t.paddingX*2
		if contentWidth < 1 {
			contentWidth = 1
		}
		wrapped := textlayout.WrapTextWithANSI(normalized, contentWidth)

		margin := strings.Repeat(" ", t.paddingX)
		var contentLines []string
		for _, line := range wrapped {
			withMargins := margin + line + margin
			if t.bg != nil {
				contentLines = append(contentLines, textlayout.ApplyBackgroundToLine(withMargins, width, t.bg))
			} else {
				contentLines = append(contentLines, textlayout.PadToWidth(withMargins, width))
			}
		}

		emptyLine := strings.Repeat(" ", width)
		if t.bg != nil {
			emptyLine = textlayout.ApplyBackgroundToLine(emptyLine, width, t.bg)
		}
		for range t.paddingY {
			frame = append(frame, emptyLine)
		}
		frame = append(frame, contentLines...)
		for range t.paddingY {
			frame = append(frame, emptyLine)
		}
	}

	t.cachedText = t.text
	t.cachedWidth = width
	t.cachedFrame = frame
	t.cacheValid = true
	return frame
}

// Invalidate drops the cached frame.
func (t *Text) Invalidate() {
	t.cacheValid = false
	t.cachedFrame = nil
}
