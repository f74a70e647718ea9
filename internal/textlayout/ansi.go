// Package textlayout provides width-aware measurement, slicing, and
// wrapping for terminal lines that interleave graphemes with ANSI escape
// sequences (CSI/OSC/DCS/APC).
package textlayout

import (
	"strconv"
	"strings"
)

const esc = '\x1b'

// ansiCode is one recognized escape sequence found inside a line.
type ansiCode struct {
	code   string
	length int
}

// extractANSICode returns the escape sequence starting at byte offset idx,
// or ok=false when the bytes at idx do not begin a recognized sequence.
// Truncated sequences at end-of-string are consumed to the end so callers
// never split a sequence across graphemes.
func extractANSICode(s string, idx int) (ansiCode, bool) {
	if idx >= len(s) || s[idx] != esc {
		return ansiCode{}, false
	}
	if idx+1 >= len(s) {
		return ansiCode{code: s[idx:], length: len(s) - idx}, true
	}

	switch s[idx+1] {
	case '[':
		end := idx + 2
		for end < len(s) {
			b := s[end]
			if b >= 0x40 && b <= 0x7e {
				return ansiCode{code: s[idx : end+1], length: end + 1 - idx}, true
			}
			end++
		}
		return ansiCode{code: s[idx:], length: len(s) - idx}, true
	case ']':
		// OSC terminates on BEL or ST.
		for end := idx + 2; end < len(s); end++ {
			if s[end] == '\x07' {
				return ansiCode{code: s[idx : end+1], length: end + 1 - idx}, true
			}
			if s[end] == esc && end+1 < len(s) && s[end+1] == '\\' {
				return ansiCode{code: s[idx : end+2], length: end + 2 - idx}, true
			}
		}
		return ansiCode{code: s[idx:], length: len(s) - idx}, true
	case 'P', '_':
		for end := idx + 2; end < len(s); end++ {
			if s[end] == esc && end+1 < len(s) && s[end+1] == '\\' {
				return ansiCode{code: s[idx : end+2], length: end + 2 - idx}, true
			}
		}
		return ansiCode{code: s[idx:], length: len(s) - idx}, true
	default:
		return ansiCode{}, false
	}
}

// nextANSIOrEnd returns the byte offset of the next escape sequence at or
// after idx, or len(s) when none remains.
func nextANSIOrEnd(s string, idx int) int {
	for idx < len(s) {
		if _, ok := extractANSICode(s, idx); ok {
			return idx
		}
		_, size := decodeRune(s[idx:])
		idx += size
	}
	return idx
}

// sgrAttribute is a toggled text attribute with a dedicated close code.
type sgrAttribute struct {
	open  int
	close int
}

var sgrAttributes = []sgrAttribute{
	{open: 1, close: 22},
	{open: 2, close: 22},
	{open: 3, close: 23},
	{open: 4, close: 24},
	{open: 5, close: 25},
	{open: 7, close: 27},
	{open: 8, close: 28},
	{open: 9, close: 29},
}

// StyleTracker follows SGR state across a line so slicing and wrapping can
// re-establish the active style after a break and close attribute-scoped
// styles at soft line ends.
type StyleTracker struct {
	attributes map[int]bool
	foreground string
	background string
}

// NewStyleTracker returns a tracker with no active style.
func NewStyleTracker() *StyleTracker {
	return &StyleTracker{attributes: make(map[int]bool)}
}

// Process consumes one escape sequence and updates tracked state. Non-SGR
// sequences are ignored.
func (t *StyleTracker) Process(code string) {
	if !strings.HasPrefix(code, "\x1b[") || !strings.HasSuffix(code, "m") {
		return
	}
	body := code[2 : len(code)-1]
	if body == "" {
		t.reset()
		return
	}

	params := strings.Split(body, ";")
	for i := 0; i < len(params); i++ {
		n, err := strconv.Atoi(params[i])
		if err != nil {
			continue
		}
		switch {
		case n == 0:
			t.reset()
		case n == 22:
			delete(t.attributes, 1)
			delete(t.attributes, 2)
		case n == 23, n == 24, n == 25, n == 27, n == 28, n == 29:
			for _, attr := range sgrAttributes {
				if attr.close == n {
					delete(t.attributes, attr.open)
				}
			}
		case n == 39:
			t.foreground = ""
		case n == 49:
			t.background = ""
		case n == 38, n == 48:
			// Extended color: consume the whole remaining parameter list
			// as one color spec (2;r;g;b or 5;idx).
			spec := strings.Join(params[i:], ";")
			if n == 38 {
				t.foreground = "\x1b[" + spec + "m"
			} else {
				t.background = "\x1b[" + spec + "m"
			}
			i = len(params)
		case (n >= 30 && n <= 37) || (n >= 90 && n <= 97):
			t.foreground = "\x1b[" + strconv.Itoa(n) + "m"
		case (n >= 40 && n <= 47) || (n >= 100 && n <= 107):
			t.background = "\x1b[" + strconv.Itoa(n) + "m"
		default:
			for _, attr := range sgrAttributes {
				if attr.open == n {
					t.attributes[n] = true
				}
			}
		}
	}
}

func (t *StyleTracker) reset() {
	t.attributes = make(map[int]bool)
	t.foreground = ""
	t.background = ""
}

// ActiveCodes returns the escape sequences that recreate the tracked style
// from a clean state, or "" when no style is active.
func (t *StyleTracker) ActiveCodes() string {
	var out strings.Builder
	for _, attr := range sgrAttributes {
		if t.attributes[attr.open] {
			out.WriteString("\x1b[")
			out.WriteString(strconv.Itoa(attr.open))
			out.WriteString("m")
		}
	}
	out.WriteString(t.foreground)
	out.WriteString(t.background)
	return out.String()
}

// LineEndReset returns the closing sequences for active attribute-scoped
// styles (underline, bold, ...). Colors carry across soft breaks without a
// close, so they are excluded.
func (t *StyleTracker) LineEndReset() string {
	var out strings.Builder
	seen := make(map[int]bool)
	for _, attr := range sgrAttributes {
		if t.attributes[attr.open] && !seen[attr.close] {
			seen[attr.close] = true
			out.WriteString("\x1b[")
			out.WriteString(strconv.Itoa(attr.close))
			out.WriteString("m")
		}
	}
	return out.String()
}

// processText feeds every escape sequence embedded in text to the tracker.
func (t *StyleTracker) processText(text string) {
	idx := 0
	for idx < len(text) {
		if code, ok := extractANSICode(text, idx); ok {
			t.Process(code.code)
			idx += code.length
			continue
		}
		_, size := decodeRune(text[idx:])
		idx += size
	}
}
