package widgets

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/gurpartap/tape/internal/termimg"
	"github.com/gurpartap/tape/internal/textlayout"
)

// MarkdownTheme styles rendered markdown. Every function may be nil, in
// which case the text passes through unstyled.
type MarkdownTheme struct {
	Heading       StyleFunc
	Bold          StyleFunc
	Italic        StyleFunc
	Strikethrough StyleFunc
	Code          StyleFunc
	CodeBlock     StyleFunc
	Link          StyleFunc
	Blockquote    StyleFunc
	ListBullet    StyleFunc
}

func style(fn StyleFunc, s string) string {
	if fn == nil {
		return s
	}
	return fn(s)
}

// HighlightFunc optionally transforms code-block lines (syntax coloring).
type HighlightFunc func(line, language string) string

// Markdown renders GFM markdown into terminal lines. Blank-line separation
// between blocks is reconstructed from source offsets so the output keeps
// or drops blank lines the way the input did. Cached per (text, width).
type Markdown struct {
	source    string
	theme     MarkdownTheme
	highlight HighlightFunc

	cachedText  string
	cachedWidth int
	cachedLines []string
	cacheValid  bool
}

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// NewMarkdown builds a Markdown widget.
func NewMarkdown(source string, theme MarkdownTheme) *Markdown {
	return &Markdown{source: source, theme: theme}
}

// SetText replaces the source and invalidates the cache.
func (m *Markdown) SetText(source string) {
	m.source = source
	m.Invalidate()
}

// SetHighlight installs the code highlight callback.
func (m *Markdown) SetHighlight(fn HighlightFunc) {
	m.highlight = fn
	m.Invalidate()
}

// Invalidate drops the cached render.
func (m *Markdown) Invalidate() {
	m.cacheValid = false
	m.cachedLines = nil
}

// Render implements tui.Component.
func (m *Markdown) Render(width int) []string {
	if m.cacheValid && m.cachedText == m.source && m.cachedWidth == width {
		return m.cachedLines
	}

	lines := m.renderSource(width)

	m.cachedText = m.source
	m.cachedWidth = width
	m.cachedLines = lines
	m.cacheValid = true
	return lines
}

func (m *Markdown) renderSource(width int) []string {
	source := []byte(m.source)
	doc := markdownParser.Parser().Parse(text.NewReader(source))

	var out []string
	prevStop := -1

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		start, stop := nodeSpan(node, source)

		if len(out) > 0 {
			// One blank line between blocks only when the source had one.
			if prevStop >= 0 && hasBlankLineBetween(source, prevStop, start) {
				out = append(out, "")
			}
		}

		out = append(out, m.renderBlock(node, source, width)...)
		if stop > prevStop {
			prevStop = stop
		}
	}

	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// nodeSpan returns the byte span of a block node's source lines.
func nodeSpan(node ast.Node, source []byte) (int, int) {
	lines := node.Lines()
	if lines != nil && lines.Len() > 0 {
		return lines.At(0).Start, lines.At(lines.Len() - 1).Stop
	}
	// Container blocks (lists, quotes, tables) take the span of their
	// descendants.
	start, stop := -1, -1
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		childStart, childStop := nodeSpan(child, source)
		if childStart >= 0 && (start < 0 || childStart < start) {
			start = childStart
		}
		if childStop > stop {
			stop = childStop
		}
	}
	return start, stop
}

func hasBlankLineBetween(source []byte, end, start int) bool {
	if end < 0 || start < 0 || end >= start || start > len(source) {
		return false
	}
	between := source[end:start]
	newlines := 0
	for _, b := range between {
		if b == '\n' {
			newlines++
		} else if b != ' ' && b != '\t' && b != '\r' && b != '>' && b != '-' && b != '*' {
			return newlines >= 2
		}
	}
	return newlines >= 2
}

func (m *Markdown) renderBlock(node ast.Node, source []byte, width int) []string {
	switch block := node.(type) {
	case *ast.Heading:
		content := m.renderInline(block, source)
		prefix := strings.Repeat("#", block.Level) + " "
		return m.wrapStyled(style(m.theme.Heading, prefix+content), width)
	case *ast.Paragraph, *ast.TextBlock:
		content := m.renderInline(node, source)
		if termimg.IsImageLine(content) {
			return []string{content}
		}
		return m.wrapStyled(content, width)
	case *ast.FencedCodeBlock:
		language := string(block.Language(source))
		return m.renderCodeLines(block, source, language)
	case *ast.CodeBlock:
		return m.renderCodeLines(block, source, "")
	case *ast.Blockquote:
		return m.renderBlockquote(block, source, width)
	case *ast.List:
		return m.renderList(block, source, width, 0)
	case *ast.ThematicBreak:
		return []string{strings.Repeat("─", max(width, 1))}
	case *east.Table:
		return m.renderTable(block, source, width)
	case *ast.HTMLBlock:
		var lines []string
		for i := 0; i < block.Lines().Len(); i++ {
			segment := block.Lines().At(i)
			lines = append(lines, strings.TrimRight(string(segment.Value(source)), "\n"))
		}
		return lines
	default:
		content := m.renderInline(node, source)
		return m.wrapStyled(content, width)
	}
}

func (m *Markdown) wrapStyled(content string, width int) []string {
	return textlayout.WrapTextWithANSI(content, max(width, 1))
}

func (m *Markdown) renderCodeLines(node ast.Node, source []byte, language string) []string {
	var lines []string
	for i := 0; i < node.Lines().Len(); i++ {
		segment := node.Lines().At(i)
		line := strings.TrimRight(string(segment.Value(source)), "\n")
		if m.highlight != nil {
			line = m.highlight(line, language)
		} else {
			line = style(m.theme.CodeBlock, line)
		}
		lines = append(lines, "  "+line)
	}
	return lines
}

func (m *Markdown) renderBlockquote(block *ast.Blockquote, source []byte, width int) []string {
	innerWidth := width - 2
	if innerWidth < 1 {
		innerWidth = 1
	}
	var out []string
	for child := block.FirstChild(); child != nil; child = child.NextSibling() {
		for _, line := range m.renderBlock(child, source, innerWidth) {
			out = append(out, style(m.theme.Blockquote, "▌ "+line))
		}
	}
	return out
}

func (m *Markdown) renderList(list *ast.List, source []byte, width, depth int) []string {
	var out []string
	indent := strings.Repeat("  ", depth)
	index := list.Start
	if index == 0 {
		index = 1
	}

	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		bullet := "- "
		if list.IsOrdered() {
			bullet = fmt.Sprintf("%d. ", index)
			index++
		}
		marker := indent + style(m.theme.ListBullet, bullet)
		markerWidth := textlayout.VisibleWidth(indent + bullet)
		continuation := strings.Repeat(" ", markerWidth)
		innerWidth := width - markerWidth
		if innerWidth < 1 {
			innerWidth = 1
		}

		first := true
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if nested, ok := child.(*ast.List); ok {
				out = append(out, m.renderList(nested, source, width, depth+1)...)
				continue
			}
			for _, line := range m.renderBlock(child, source, innerWidth) {
				if first {
					out = append(out, marker+line)
					first = false
				} else {
					out = append(out, continuation+line)
				}
			}
		}
		if first {
			out = append(out, strings.TrimRight(marker, " "))
		}
	}
	return out
}

func (m *Markdown) renderInline(node ast.Node, source []byte) string {
	var out strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		out.WriteString(m.renderInlineNode(child, source))
	}
	return out.String()
}

func (m *Markdown) renderInlineNode(node ast.Node, source []byte) string {
	switch inline := node.(type) {
	case *ast.Text:
		content := string(inline.Segment.Value(source))
		if inline.SoftLineBreak() {
			content += " "
		} else if inline.HardLineBreak() {
			content += "\n"
		}
		return content
	case *ast.String:
		return string(inline.Value)
	case *ast.Emphasis:
		content := m.renderInline(inline, source)
		if inline.Level >= 2 {
			return style(m.theme.Bold, content)
		}
		return style(m.theme.Italic, content)
	case *east.Strikethrough:
		return style(m.theme.Strikethrough, m.renderInline(inline, source))
	case *ast.CodeSpan:
		return style(m.theme.Code, m.renderInline(inline, source))
	case *ast.Link:
		label := plainText(inline, source)
		url := string(inline.Destination)
		if label == "" || label == url {
			return style(m.theme.Link, url)
		}
		return style(m.theme.Link, label) + " (" + url + ")"
	case *ast.AutoLink:
		return style(m.theme.Link, string(inline.URL(source)))
	case *ast.Image:
		alt := m.renderInline(inline, source)
		if alt == "" {
			alt = string(inline.Destination)
		}
		return "[Image: " + alt + "]"
	case *ast.RawHTML:
		var out strings.Builder
		for i := 0; i < inline.Segments.Len(); i++ {
			segment := inline.Segments.At(i)
			out.Write(segment.Value(source))
		}
		return out.String()
	default:
		return m.renderInline(node, source)
	}
}

// renderTable lays a GFM table out in two passes: measure natural and
// minimum (longest word) widths per column, use natural widths when they
// fit, otherwise grow columns proportionally from the minimum allocation.
func (m *Markdown) renderTable(table *east.Table, source []byte, width int) []string {
	var rows [][]string
	for section := table.FirstChild(); section != nil; section = section.NextSibling() {
		switch typed := section.(type) {
		case *east.TableHeader:
			rows = append(rows, m.tableCells(typed, source))
		case *east.TableRow:
			rows = append(rows, m.tableCells(typed, source))
		}
	}
	if len(rows) == 0 {
		return nil
	}

	columns := 0
	for _, row := range rows {
		if len(row) > columns {
			columns = len(row)
		}
	}

	natural := make([]int, columns)
	minimum := make([]int, columns)
	for _, row := range rows {
		for i, cell := range row {
			if w := textlayout.VisibleWidth(cell); w > natural[i] {
				natural[i] = w
			}
			if w := longestWordWidth(cell); w > minimum[i] {
				minimum[i] = w
			}
		}
	}

	// Border overhead: a leading "│" plus " " and " │" around each column.
	overhead := columns*3 + 1
	available := width - overhead
	if available < columns {
		available = columns
	}

	widths := make([]int, columns)
	naturalSum := 0
	for _, w := range natural {
		naturalSum += w
	}

	if naturalSum <= available {
		copy(widths, natural)
	} else {
		minSum := 0
		for i := range minimum {
			if minimum[i] < 1 {
				minimum[i] = 1
			}
			minSum += minimum[i]
		}
		copy(widths, minimum)
		if extra := available - minSum; extra > 0 && naturalSum > minSum {
			distributed := 0
			for i := range widths {
				share := extra * (natural[i] - minimum[i]) / (naturalSum - minSum)
				widths[i] += share
				distributed += share
			}
			for i := 0; distributed < extra && i < columns; i++ {
				if widths[i] < natural[i] {
					widths[i]++
					distributed++
				}
			}
		}
	}

	wrapped := make([][][]string, len(rows))
	for r, row := range rows {
		wrapped[r] = make([][]string, columns)
		for c := 0; c < columns; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			wrapped[r][c] = textlayout.WrapTextWithANSI(cell, max(widths[c], 1))
		}
	}

	var out []string
	out = append(out, tableBorder("┌", "┬", "┐", widths))
	for r, row := range wrapped {
		height := 1
		for _, cell := range row {
			if len(cell) > height {
				height = len(cell)
			}
		}
		for line := 0; line < height; line++ {
			var rowOut strings.Builder
			rowOut.WriteString("│")
			for c := 0; c < columns; c++ {
				content := ""
				if line < len(row[c]) {
					content = row[c][line]
				}
				rowOut.WriteString(" ")
				rowOut.WriteString(textlayout.PadToWidth(content, widths[c]))
				rowOut.WriteString(" │")
			}
			out = append(out, rowOut.String())
		}
		if r == 0 && len(rows) > 1 {
			out = append(out, tableBorder("├", "┼", "┤", widths))
		}
	}
	out = append(out, tableBorder("└", "┴", "┘", widths))
	return out
}

func (m *Markdown) tableCells(row ast.Node, source []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, m.renderInline(cell, source))
	}
	return cells
}

func tableBorder(left, mid, right string, widths []int) string {
	var out strings.Builder
	out.WriteString(left)
	for i, w := range widths {
		out.WriteString(strings.Repeat("─", w+2))
		if i < len(widths)-1 {
			out.WriteString(mid)
		}
	}
	out.WriteString(right)
	return out.String()
}

// plainText concatenates the unstyled text content of a node's subtree.
func plainText(node ast.Node, source []byte) string {
	var out strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch typed := child.(type) {
		case *ast.Text:
			out.Write(typed.Segment.Value(source))
		case *ast.String:
			out.Write(typed.Value)
		case *ast.AutoLink:
			out.Write(typed.URL(source))
		default:
			out.WriteString(plainText(child, source))
		}
	}
	return out.String()
}

func longestWordWidth(text string) int {
	longest := 0
	for _, word := range strings.Fields(text) {
		if w := textlayout.VisibleWidth(word); w > longest {
			longest = w
		}
	}
	return longest
}
