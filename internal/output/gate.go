// Package output provides the typed terminal command stream and the single
// write gate through which every byte reaches the terminal.
package output

import (
	"strconv"
	"strings"
)

// When a frame is large, coalescing all output into one string doubles peak
// memory usage (payload + coalesced copy). Large flushes stream in chunks
// instead.
const (
	streamThresholdBytes = 64 * 1024
	streamChunkBytes     = 16 * 1024
)

// Writer is the sink the gate flushes into. The terminal implementation
// satisfies it; nothing else in the module may write terminal bytes.
type Writer interface {
	Write(data string)
}

// CmdKind discriminates terminal commands.
type CmdKind uint8

const (
	// CmdBytes carries raw control sequences or text.
	CmdBytes CmdKind = iota
	CmdHideCursor
	CmdShowCursor
	CmdClearLine
	CmdClearFromCursor
	CmdClearScreen
	CmdMoveUp
	CmdMoveDown
	CmdColumnAbs
	CmdBracketedPasteEnable
	CmdBracketedPasteDisable
	CmdKittyQuery
	CmdKittyEnable
	CmdKittyDisable
	CmdQueryCellSize
)

// Cmd is one typed terminal command. Data is set for CmdBytes; N is set for
// cursor movement commands, where N == 0 is a no-op.
type Cmd struct {
	Kind CmdKind
	Data string
	N    int
}

// Bytes builds a raw byte command.
func Bytes(data string) Cmd { return Cmd{Kind: CmdBytes, Data: data} }

// MoveUp moves the cursor up by n rows; n == 0 encodes nothing.
func MoveUp(n int) Cmd { return Cmd{Kind: CmdMoveUp, N: n} }

// MoveDown moves the cursor down by n rows; n == 0 encodes nothing.
func MoveDown(n int) Cmd { return Cmd{Kind: CmdMoveDown, N: n} }

// ColumnAbs moves the cursor to an absolute 1-based column (CSI n G);
// n == 0 encodes nothing.
func ColumnAbs(n int) Cmd { return Cmd{Kind: CmdColumnAbs, N: n} }

var fixedEncodings = map[CmdKind]string{
	CmdHideCursor:            "\x1b[?25l",
	CmdShowCursor:            "\x1b[?25h",
	CmdClearLine:             "\x1b[K",
	CmdClearFromCursor:       "\x1b[J",
	CmdClearScreen:           "\x1b[2J\x1b[H",
	CmdBracketedPasteEnable:  "\x1b[?2004h",
	CmdBracketedPasteDisable: "\x1b[?2004l",
	CmdKittyQuery:            "\x1b[?u",
	CmdKittyEnable:           "\x1b[>7u",
	CmdKittyDisable:          "\x1b[<u",
	CmdQueryCellSize:         "\x1b[16t",
}

var moveSuffixes = map[CmdKind]byte{
	CmdMoveUp:    'A',
	CmdMoveDown:  'B',
	CmdColumnAbs: 'G',
}

func encodedLen(cmd Cmd) int {
	switch cmd.Kind {
	case CmdBytes:
		return len(cmd.Data)
	case CmdMoveUp, CmdMoveDown, CmdColumnAbs:
		if cmd.N == 0 {
			return 0
		}
		return 3 + decimalLen(cmd.N)
	default:
		return len(fixedEncodings[cmd.Kind])
	}
}

func encodeInto(out *strings.Builder, cmd Cmd) {
	switch cmd.Kind {
	case CmdBytes:
		out.WriteString(cmd.Data)
	case CmdMoveUp, CmdMoveDown, CmdColumnAbs:
		if cmd.N > 0 {
			out.WriteString("\x1b[")
			out.WriteString(strconv.Itoa(cmd.N))
			out.WriteByte(moveSuffixes[cmd.Kind])
		}
	default:
		out.WriteString(fixedEncodings[cmd.Kind])
	}
}

func decimalLen(n int) int {
	length := 1
	for n >= 10 {
		n /= 10
		length++
	}
	return length
}

// Gate buffers typed commands and flushes them through a single write path.
type Gate struct {
	cmds []Cmd
}

// NewGate returns an empty gate.
func NewGate() *Gate { return &Gate{} }

// Push appends one command.
func (g *Gate) Push(cmd Cmd) { g.cmds = append(g.cmds, cmd) }

// Extend appends commands in order.
func (g *Gate) Extend(cmds ...Cmd) { g.cmds = append(g.cmds, cmds...) }

// IsEmpty reports whether any command is pending.
func (g *Gate) IsEmpty() bool { return len(g.cmds) == 0 }

// Clear drops all pending commands without writing.
func (g *Gate) Clear() { g.cmds = g.cmds[:0] }

// Flush encodes pending commands and writes them. Small totals coalesce
// into a single write; totals above the streaming threshold are written in
// chunks, with large raw payloads written directly as their own write so
// ordering relative to preceding buffered control bytes holds. Flushing an
// empty gate issues no writes.
func (g *Gate) Flush(w Writer) {
	if len(g.cmds) == 0 {
		return
	}

	totalLen := 0
	for _, cmd := range g.cmds {
		totalLen += encodedLen(cmd)
	}

	if totalLen > streamThresholdBytes {
		g.flushStreaming(w)
		return
	}

	var out strings.Builder
	out.Grow(totalLen)
	for _, cmd := range g.cmds {
		encodeInto(&out, cmd)
	}
	g.cmds = g.cmds[:0]

	if out.Len() > 0 {
		w.Write(out.String())
	}
}

func (g *Gate) flushStreaming(w Writer) {
	var buffer strings.Builder
	buffer.Grow(streamChunkBytes)

	for _, cmd := range g.cmds {
		if cmd.Kind == CmdBytes && len(cmd.Data) >= streamChunkBytes {
			if buffer.Len() > 0 {
				w.Write(buffer.String())
				buffer.Reset()
			}
			w.Write(cmd.Data)
			continue
		}

		encodeInto(&buffer, cmd)

		if buffer.Len() >= streamChunkBytes {
			w.Write(buffer.String())
			buffer.Reset()
		}
	}

	if buffer.Len() > 0 {
		w.Write(buffer.String())
	}
	g.cmds = g.cmds[:0]
}

// TitleSequence returns the OSC 0 title sequence for the given title.
func TitleSequence(title string) string {
	return "\x1b]0;" + title + "\x07"
}

// SetTitle writes the terminal window/tab title through the gate.
func SetTitle(w Writer, title string) {
	gate := NewGate()
	gate.Push(Bytes(TitleSequence(title)))
	gate.Flush(w)
}
