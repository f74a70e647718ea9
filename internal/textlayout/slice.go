package textlayout

import "strings"

// SliceResult carries a slice plus its visible width.
type SliceResult struct {
	Text  string
	Width int
}

// Segments is the result of splitting one line into a prefix and a styled
// continuation in a single pass.
type Segments struct {
	Before      string
	BeforeWidth int
	After       string
	AfterWidth  int
}

// SliceByColumn returns the substring of line whose visible columns fall in
// [startCol, startCol+length). When strict, a wide grapheme that would
// straddle the right boundary is dropped. Escape sequences seen before
// startCol are coalesced and re-emitted immediately before the first
// emitted grapheme so the slice is self-contained.
func SliceByColumn(line string, startCol, length int, strict bool) string {
	return SliceWithWidth(line, startCol, length, strict).Text
}

// SliceWithWidth is SliceByColumn plus the resulting visible width.
func SliceWithWidth(line string, startCol, length int, strict bool) SliceResult {
	if length == 0 {
		return SliceResult{}
	}

	endCol := startCol + length
	var result strings.Builder
	var pendingANSI strings.Builder
	resultWidth := 0
	currentCol := 0
	idx := 0

	for idx < len(line) && currentCol < endCol {
		if code, ok := extractANSICode(line, idx); ok {
			if currentCol >= startCol && currentCol < endCol {
				result.WriteString(code.code)
			} else if currentCol < startCol {
				pendingANSI.WriteString(code.code)
			}
			idx += code.length
			continue
		}

		textEnd := nextANSIOrEnd(line, idx)
		for _, grapheme := range graphemes(line[idx:textEnd]) {
			width := GraphemeWidth(grapheme)
			inRange := currentCol >= startCol && currentCol < endCol
			fits := !strict || currentCol+width <= endCol

			if inRange && fits {
				if pendingANSI.Len() > 0 {
					result.WriteString(pendingANSI.String())
					pendingANSI.Reset()
				}
				result.WriteString(grapheme)
				resultWidth += width
			}

			currentCol += width
			if currentCol >= endCol {
				break
			}
		}
		idx = textEnd
	}

	return SliceResult{Text: result.String(), Width: resultWidth}
}

// ExtractSegments splits line into the columns before beforeEnd and the
// columns [afterStart, afterStart+afterLen) in one pass. The active style
// at afterStart is inherited into the After segment.
func ExtractSegments(line string, beforeEnd, afterStart, afterLen int, strictAfter bool) Segments {
	var before, after strings.Builder
	var pendingANSIBefore strings.Builder
	beforeWidth := 0
	afterWidth := 0

	tracker := NewStyleTracker()
	currentCol := 0
	idx := 0
	afterStarted := false
	afterEnd := afterStart + afterLen

	limitReached := func() bool {
		if afterLen == 0 {
			return currentCol >= beforeEnd
		}
		return currentCol >= afterEnd
	}

	for idx < len(line) {
		if code, ok := extractANSICode(line, idx); ok {
			tracker.Process(code.code)
			if currentCol < beforeEnd {
				pendingANSIBefore.WriteString(code.code)
			} else if currentCol >= afterStart && currentCol < afterEnd && afterStarted {
				after.WriteString(code.code)
			}
			idx += code.length
			continue
		}

		textEnd := nextANSIOrEnd(line, idx)
		for _, grapheme := range graphemes(line[idx:textEnd]) {
			width := GraphemeWidth(grapheme)

			if currentCol < beforeEnd {
				if pendingANSIBefore.Len() > 0 {
					before.WriteString(pendingANSIBefore.String())
					pendingANSIBefore.Reset()
				}
				before.WriteString(grapheme)
				beforeWidth += width
			} else if currentCol >= afterStart && currentCol < afterEnd && afterLen > 0 {
				fits := !strictAfter || currentCol+width <= afterEnd
				if fits {
					if !afterStarted {
						after.WriteString(tracker.ActiveCodes())
						afterStarted = true
					}
					after.WriteString(grapheme)
					afterWidth += width
				}
			}

			currentCol += width
			if limitReached() {
				break
			}
		}

		idx = textEnd
		if limitReached() {
			break
		}
	}

	return Segments{
		Before:      before.String(),
		BeforeWidth: beforeWidth,
		After:       after.String(),
		AfterWidth:  afterWidth,
	}
}
