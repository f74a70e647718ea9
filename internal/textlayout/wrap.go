package textlayout

import "strings"

// WrapTextWithANSI word-wraps text to the target column width while
// preserving style state across breaks. Words longer than width are broken
// at the grapheme level; blank tokens never begin a continuation line. At
// every soft break the closing codes for attribute-scoped styles are
// appended and the active style prefix is re-emitted on the next line.
//
// Always returns at least one line; width 0 returns a single empty line.
func WrapTextWithANSI(text string, width int) []string {
	if text == "" || width == 0 {
		return []string{""}
	}

	var result []string
	tracker := NewStyleTracker()

	for i, inputLine := range strings.Split(text, "\n") {
		prefix := ""
		if i > 0 {
			prefix = tracker.ActiveCodes()
		}
		wrapped := wrapSingleLine(prefix+inputLine, width)
		result = append(result, wrapped...)
		tracker.processText(inputLine)
	}

	if len(result) == 0 {
		return []string{""}
	}
	for i, line := range result {
		result[i] = strings.TrimRight(line, " \t")
	}
	return result
}

func wrapSingleLine(line string, width int) []string {
	if line == "" {
		return []string{""}
	}
	if VisibleWidth(line) <= width {
		return []string{line}
	}

	tokens := splitIntoTokensWithANSI(line)
	tracker := NewStyleTracker()
	var wrapped []string

	var currentLine strings.Builder
	currentWidth := 0

	closeLine := func() {
		lineToWrap := strings.TrimRight(currentLine.String(), " ")
		if reset := tracker.LineEndReset(); reset != "" {
			lineToWrap += reset
		}
		wrapped = append(wrapped, lineToWrap)
		currentLine.Reset()
		currentWidth = 0
	}

	for _, token := range tokens {
		tokenWidth := VisibleWidth(token)
		isWhitespace := strings.TrimSpace(stripANSI(token)) == ""

		if tokenWidth > width && !isWhitespace {
			if currentLine.Len() > 0 {
				closeLine()
			}
			broken := breakLongWord(token, width, tracker)
			if len(broken) > 0 {
				last := broken[len(broken)-1]
				wrapped = append(wrapped, broken[:len(broken)-1]...)
				currentLine.WriteString(last)
				currentWidth = VisibleWidth(last)
			}
			continue
		}

		if currentWidth+tokenWidth > width && currentWidth > 0 {
			closeLine()
			currentLine.WriteString(tracker.ActiveCodes())
			if !isWhitespace {
				currentLine.WriteString(token)
				currentWidth = tokenWidth
			}
		} else {
			currentLine.WriteString(token)
			currentWidth += tokenWidth
		}

		tracker.processText(token)
	}

	if currentLine.Len() > 0 {
		wrapped = append(wrapped, currentLine.String())
	}

	return wrapped
}

// splitIntoTokensWithANSI splits a line into alternating runs of spaces and
// non-spaces. Escape sequences attach to the token that follows them so a
// style change never strands at a token boundary.
func splitIntoTokensWithANSI(text string) []string {
	var tokens []string
	var current, pendingANSI strings.Builder
	inWhitespace := false
	idx := 0

	for idx < len(text) {
		if code, ok := extractANSICode(text, idx); ok {
			pendingANSI.WriteString(code.code)
			idx += code.length
			continue
		}

		ch, size := decodeRune(text[idx:])
		isSpace := ch == ' '

		if isSpace != inWhitespace && current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}

		if pendingANSI.Len() > 0 {
			current.WriteString(pendingANSI.String())
			pendingANSI.Reset()
		}

		inWhitespace = isSpace
		current.WriteRune(ch)
		idx += size
	}

	if pendingANSI.Len() > 0 {
		current.WriteString(pendingANSI.String())
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

func breakLongWord(word string, width int, tracker *StyleTracker) []string {
	var lines []string
	var currentLine strings.Builder
	currentLine.WriteString(tracker.ActiveCodes())
	currentWidth := 0
	idx := 0

	for idx < len(word) {
		if code, ok := extractANSICode(word, idx); ok {
			currentLine.WriteString(code.code)
			tracker.Process(code.code)
			idx += code.length
			continue
		}

		textEnd := nextANSIOrEnd(word, idx)
		for _, grapheme := range graphemes(word[idx:textEnd]) {
			graphemeWidth := GraphemeWidth(grapheme)
			if currentWidth+graphemeWidth > width {
				if reset := tracker.LineEndReset(); reset != "" {
					currentLine.WriteString(reset)
				}
				lines = append(lines, currentLine.String())
				currentLine.Reset()
				currentLine.WriteString(tracker.ActiveCodes())
				currentWidth = 0
			}
			currentLine.WriteString(grapheme)
			currentWidth += graphemeWidth
		}
		idx = textEnd
	}

	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func stripANSI(text string) string {
	var out strings.Builder
	idx := 0
	for idx < len(text) {
		if code, ok := extractANSICode(text, idx); ok {
			idx += code.length
			continue
		}
		ch, size := decodeRune(text[idx:])
		out.WriteRune(ch)
		idx += size
	}
	return out.String()
}
