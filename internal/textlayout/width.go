package textlayout

import (
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"github.com/unilibs/uniwidth"
)

func decodeRune(s string) (rune, int) {
	return utf8.DecodeRuneInString(s)
}

// GraphemeWidth returns the display width of one grapheme cluster: 2 for
// wide clusters (CJK ideographs, fullwidth forms, emoji), 1 for narrow
// printable clusters, 0 for pure zero-width content.
func GraphemeWidth(grapheme string) int {
	width := uniwidth.StringWidth(grapheme)
	if width < 0 {
		return 0
	}
	if width > 2 {
		return 2
	}
	return width
}

// VisibleWidth returns the display width of a line, ignoring bytes inside
// recognized CSI/OSC/DCS/APC sequences.
func VisibleWidth(line string) int {
	total := 0
	idx := 0
	for idx < len(line) {
		if code, ok := extractANSICode(line, idx); ok {
			idx += code.length
			continue
		}
		textEnd := nextANSIOrEnd(line, idx)
		state := -1
		segment := line[idx:textEnd]
		for len(segment) > 0 {
			var grapheme string
			grapheme, segment, _, state = uniseg.FirstGraphemeClusterInString(segment, state)
			total += GraphemeWidth(grapheme)
		}
		idx = textEnd
	}
	return total
}

// graphemes splits plain text (no escape sequences) into grapheme clusters.
func graphemes(text string) []string {
	var out []string
	state := -1
	for len(text) > 0 {
		var grapheme string
		grapheme, text, _, state = uniseg.FirstGraphemeClusterInString(text, state)
		out = append(out, grapheme)
	}
	return out
}
