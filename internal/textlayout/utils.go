package textlayout

import "strings"

// PadToWidth right-pads line with spaces so its visible width reaches
// width. Lines already at or past width are returned unchanged.
func PadToWidth(line string, width int) string {
	visible := VisibleWidth(line)
	if visible >= width {
		return line
	}
	return line + strings.Repeat(" ", width-visible)
}

// ApplyBackgroundToLine pads line to the full width and passes the padded
// line through the background function, so the background covers the whole
// row including padding.
func ApplyBackgroundToLine(line string, width int, bg func(string) string) string {
	return bg(PadToWidth(line, width))
}

// TruncateToWidth slices text to at most maxWidth visible columns and
// appends suffix when anything was cut. The suffix width is reserved out of
// maxWidth so the result never exceeds it.
func TruncateToWidth(text string, maxWidth int, suffix string, strict bool) string {
	if VisibleWidth(text) <= maxWidth {
		return text
	}
	suffixWidth := VisibleWidth(suffix)
	keep := maxWidth - suffixWidth
	if keep < 0 {
		keep = 0
	}
	return SliceByColumn(text, 0, keep, strict) + suffix
}
