package widgets

import (
	"strings"

	"github.com/gurpartap/tape/internal/textlayout"
	"github.com/gurpartap/tape/internal/tui"
)

// Container renders its children concatenated in order.
type Container struct {
	children []tui.Component
}

// NewContainer returns an empty container.
func NewContainer() *Container { return &Container{} }

// AddChild appends a child.
func (c *Container) AddChild(child tui.Component) {
	c.children = append(c.children, child)
}

// RemoveChild removes the first matching child and reports success.
func (c *Container) RemoveChild(child tui.Component) bool {
	for i, candidate := range c.children {
		if candidate == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all children.
func (c *Container) Clear() { c.children = nil }

// Render implements tui.Component.
func (c *Container) Render(width int) []string {
	var lines []string
	for _, child := range c.children {
		lines = append(lines, child.Render(width)...)
	}
	return lines
}

// Invalidate forwards to every child.
func (c *Container) Invalidate() {
	for _, child := range c.children {
		if invalidator, ok := child.(tui.Invalidator); ok {
			invalidator.Invalidate()
		}
	}
}

// Spacer renders a fixed number of empty lines.
type Spacer struct {
	lines int
}

// NewSpacer returns a one-line spacer.
func NewSpacer() *Spacer { return &Spacer{lines: 1} }

// NewSpacerWithLines returns a spacer of the given height.
func NewSpacerWithLines(lines int) *Spacer { return &Spacer{lines: lines} }

// SetLines updates the height.
func (s *Spacer) SetLines(lines int) { s.lines = lines }

// Render implements tui.Component.
func (s *Spacer) Render(width int) []string {
	return make([]string, s.lines)
}

// Box wraps a child with horizontal and vertical padding.
type Box struct {
	child    tui.Component
	paddingX int
	paddingY int
	bg       StyleFunc
}

// NewBox wraps child with the given padding.
func NewBox(child tui.Component, paddingX, paddingY int) *Box {
	return &Box{child: child, paddingX: paddingX, paddingY: paddingY}
}

// SetBackground applies a background function across the padded width.
func (b *Box) SetBackground(bg StyleFunc) { b.bg = bg }

// Render implements tui.Component.
func (b *Box) Render(width int) []string {
	innerWidth := width - b.paddingX*2
	if innerWidth < 1 {
		innerWidth = 1
	}
	margin := strings.Repeat(" ", b.paddingX)

	inner := b.child.Render(innerWidth)
	lines := make([]string, 0, len(inner)+b.paddingY*2)
	for range b.paddingY {
		lines = append(lines, "")
	}
	for _, line := range inner {
		lines = append(lines, margin+line+margin)
	}
	for range b.paddingY {
		lines = append(lines, "")
	}

	if b.bg != nil {
		for i, line := range lines {
			lines[i] = textlayout.ApplyBackgroundToLine(line, width, b.bg)
		}
	}
	return lines
}

// Invalidate forwards to the child.
func (b *Box) Invalidate() {
	if invalidator, ok := b.child.(tui.Invalidator); ok {
		invalidator.Invalidate()
	}
}

// TruncatedText renders a single line sliced to the width with an ellipsis
// when content is cut. The slice is non-strict, so a wide grapheme at the
// boundary keeps its first column.
type TruncatedText struct {
	text     string
	ellipsis string
}

// NewTruncatedText builds a TruncatedText with the default ellipsis.
func NewTruncatedText(text string) *TruncatedText {
	return &TruncatedText{text: text, ellipsis: "…"}
}

// SetText replaces the content.
func (t *TruncatedText) SetText(text string) { t.text = text }

// Render implements tui.Component.
func (t *TruncatedText) Render(width int) []string {
	return []string{textlayout.TruncateToWidth(t.text, width, t.ellipsis, false)}
}
